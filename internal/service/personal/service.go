package personal_service

import (
	"context"
	"sync"

	"personal-connect/internal/auth"
	"personal-connect/internal/logger"
	"personal-connect/internal/models"
	"personal-connect/internal/notify"
	"personal-connect/internal/repository"
	"personal-connect/internal/service"
)

// profileService mirrors PersonalTrainer/{uid} of the signed-in identity.
type profileService struct {
	session  service.SessionService
	repo     repository.PersonalRepository
	blobs    repository.BlobStore
	notifier notify.Notifier
	log      *logger.Logger

	mu      sync.RWMutex
	profile *models.Personal
	loading bool
	gen     uint64
	cancel  context.CancelFunc
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

func NewProfileService(
	session service.SessionService,
	repo repository.PersonalRepository,
	blobs repository.BlobStore,
	notifier notify.Notifier,
	log *logger.Logger,
) service.ProfileService {
	return &profileService{
		session:  session,
		repo:     repo,
		blobs:    blobs,
		notifier: notifier,
		log:      log.With("service", "PersonalProfile"),
		loading:  true,
	}
}

// Start follows the session identity until ctx is done or Close is called.
func (s *profileService) Start(ctx context.Context) {
	ctx, stop := context.WithCancel(ctx)
	s.mu.Lock()
	s.stop = stop
	s.mu.Unlock()

	identities := s.session.Watch(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for cred := range identities {
			s.follow(ctx, cred)
		}
		s.follow(ctx, nil)
	}()
}

func (s *profileService) follow(ctx context.Context, cred *auth.Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.profile = nil
	if cred == nil {
		s.loading = false
		return
	}
	s.loading = true

	subCtx, cancel := context.WithCancel(ctx)
	snapshots, err := s.repo.Watch(subCtx, cred.UID)
	if err != nil {
		cancel()
		s.loading = false
		s.log.Error("watch trainer profile", "uid", cred.UID, "error", err)
		return
	}
	s.cancel = cancel
	gen := s.gen

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for snap := range snapshots {
			s.apply(gen, snap)
		}
	}()
}

func (s *profileService) apply(gen uint64, snap repository.Snapshot[*models.Personal]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	s.loading = false
	if snap.Err != nil {
		s.log.Error("trainer profile snapshot", "error", snap.Err)
		return
	}
	s.profile = snap.Value
}

func (s *profileService) Profile() *models.Personal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return nil
	}
	p := *s.profile
	return &p
}

func (s *profileService) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// UpdateProfile writes the trainer document and then moves the identity to
// the new email or password.
func (s *profileService) UpdateProfile(ctx context.Context, u models.PersonalUpdate, photo *service.Photo) error {
	cred := s.session.Current()
	if cred == nil {
		return service.ErrNotAuthenticated
	}
	if err := models.Validate(u); err != nil {
		return err
	}

	current := s.Profile()
	if current == nil {
		loaded, err := s.repo.Get(ctx, cred.UID)
		if err != nil {
			return s.report(err)
		}
		current = loaded
	}

	fallback := u.Foto
	if fallback == "" && current != nil {
		fallback = current.Foto
	}
	foto, err := service.UploadPhoto(ctx, s.blobs, service.ProfilePicturePath(cred.UID), photo, fallback)
	if err != nil {
		s.log.Error("upload profile picture", "uid", cred.UID, "error", err)
		return s.reportMessage("Erro ao salvar a imagem no servidor.", err)
	}
	u.Foto = foto

	if err := s.repo.Update(ctx, cred.UID, u); err != nil {
		return s.report(err)
	}

	currentPassword := ""
	if current != nil {
		currentPassword = current.Senha
	}
	if err := s.session.UpdateIdentity(ctx, u.Email, u.Senha, currentPassword); err != nil {
		return s.report(err)
	}

	s.notifier.Notify(notify.Alert{Kind: notify.Success, Title: "Sucesso", Body: "Dados atualizados com sucesso!"})
	return nil
}

func (s *profileService) report(err error) error {
	msg := "Erro ao atualizar os dados."
	if auth.IsCategorized(err) {
		msg = auth.Message(err)
	}
	return s.reportMessage(msg, err)
}

func (s *profileService) reportMessage(msg string, err error) error {
	s.log.Error("update trainer profile", "error", err)
	s.notifier.Notify(notify.Alert{Kind: notify.Error, Title: "Erro", Body: msg})
	return &service.ReportedError{Title: "Erro", Body: msg, Err: err}
}

func (s *profileService) Close() {
	s.mu.Lock()
	if s.stop != nil {
		s.stop()
	}
	s.mu.Unlock()
	s.wg.Wait()
}
