package session_service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"personal-connect/internal/auth"
	"personal-connect/internal/logger"
	"personal-connect/internal/models"
	"personal-connect/internal/notify"
	"personal-connect/internal/repository"
	"personal-connect/internal/service"
)

type sessionService struct {
	provider    auth.Provider
	store       repository.DocumentStore
	users       repository.UserRepository
	personals   repository.PersonalRepository
	notifier    notify.Notifier
	placeholder string
	log         *logger.Logger

	mu      sync.RWMutex
	cred    *auth.Credential
	pending int
	changes *service.Broadcaster[*auth.Credential]
}

func NewSessionService(
	provider auth.Provider,
	store repository.DocumentStore,
	users repository.UserRepository,
	personals repository.PersonalRepository,
	notifier notify.Notifier,
	placeholder string,
	log *logger.Logger,
) service.SessionService {
	return &sessionService{
		provider:    provider,
		store:       store,
		users:       users,
		personals:   personals,
		notifier:    notifier,
		placeholder: placeholder,
		log:         log.With("service", "Session"),
		changes:     service.NewBroadcaster[*auth.Credential](),
	}
}

func (s *sessionService) SignIn(ctx context.Context, email, password string) *auth.Credential {
	defer s.begin()()

	cred, err := s.provider.SignIn(ctx, strings.TrimSpace(email), password)
	if err != nil {
		s.log.Warn("sign in failed", "error", err)
		s.alert(notify.Error, "Erro de Autenticação", auth.Message(err))
		return nil
	}
	s.setCredential(cred)
	return cred
}

func (s *sessionService) SignInAs(ctx context.Context, email, password string, want models.UserType) *auth.Credential {
	cred := s.SignIn(ctx, email, password)
	if cred == nil {
		return nil
	}

	got, ok, err := s.users.GetType(ctx, cred.UID)
	switch {
	case err != nil:
		s.log.Error("read user type", "uid", cred.UID, "error", err)
		s.alert(notify.Error, "Erro de Autenticação", "Não foi possível obter os dados do usuário.")
		s.drop(ctx)
		return nil
	case !ok:
		s.alert(notify.Error, "Erro de Autenticação", "O usuário não possui informações cadastradas.")
		s.drop(ctx)
		return nil
	case got != want:
		s.alert(notify.Error, "Tipo de Usuário Inválido",
			fmt.Sprintf("Você tentou logar como %s, mas sua conta é do tipo %s.", want, got))
		s.drop(ctx)
		return nil
	}

	s.alert(notify.Success, "Logado com sucesso!", "Desfrute do nosso App :)")
	return cred
}

func (s *sessionService) SignOut(ctx context.Context) error {
	defer s.begin()()

	if cred := s.Current(); cred != nil {
		if err := s.provider.SignOut(ctx, cred); err != nil {
			return s.report("Erro ao sair", auth.Message(err), err)
		}
	}
	s.setCredential(nil)
	s.alert(notify.Success, "Logout", "Você saiu com sucesso!")
	return nil
}

// CreateUser registers a trainer. The identity cannot join the profile
// transaction: when the writes fail the identity stays without a profile.
func (s *sessionService) CreateUser(ctx context.Context, form models.PersonalSignUp) (*auth.Credential, error) {
	if err := models.Validate(form); err != nil {
		return nil, err
	}
	defer s.begin()()

	cred, err := s.provider.CreateUser(ctx, strings.TrimSpace(form.Email), form.Senha)
	if err != nil {
		return nil, s.report("Erro ao criar conta", auth.Message(err), err)
	}
	s.log.Info("identity created", "uid", cred.UID)
	s.setCredential(cred)

	profile := models.Personal{
		ID:       cred.UID,
		Foto:     s.placeholder,
		Nome:     form.Nome,
		Email:    form.Email,
		Senha:    form.Senha,
		Telefone: form.Telefone,
		Sexo:     form.Sexo,
	}
	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := s.personals.Create(tx, profile); err != nil {
			return err
		}
		return s.users.SetType(tx, cred.UID, models.UserTypePersonal)
	})
	if err != nil {
		s.log.Warn("identity left without profile", "uid", cred.UID, "error", err)
		return nil, s.report("Erro ao criar conta", auth.Message(err), err)
	}

	s.alert(notify.Success, "Conta Criada", "Conta criada com sucesso!")
	return cred, nil
}

func (s *sessionService) SendPasswordReset(ctx context.Context, email string) error {
	defer s.begin()()

	if err := s.provider.SendPasswordReset(ctx, strings.TrimSpace(email)); err != nil {
		return s.report("Erro ao enviar o email de recuperação.", auth.Message(err), err)
	}
	s.alert(notify.Success, "Email de recuperação enviado.", "Abra seu email para resetar sua senha.")
	return nil
}

func (s *sessionService) Reauthenticate(ctx context.Context, password string) error {
	cred := s.Current()
	if cred == nil {
		return service.ErrNotAuthenticated
	}
	next, err := s.provider.Reauthenticate(ctx, cred, password)
	if err != nil {
		return err
	}
	s.setCredential(next)
	return nil
}

func (s *sessionService) UpdateIdentity(ctx context.Context, email, password, currentPassword string) error {
	if s.Current() == nil {
		return service.ErrNotAuthenticated
	}
	err := s.applyIdentity(ctx, email, password, currentPassword)
	if errors.Is(err, auth.ErrRequiresRecentLogin) {
		s.log.Info("identity update requires recent login, reauthenticating")
		if err := s.Reauthenticate(ctx, currentPassword); err != nil {
			return err
		}
		err = s.applyIdentity(ctx, email, password, currentPassword)
	}
	return err
}

func (s *sessionService) applyIdentity(ctx context.Context, email, password, currentPassword string) error {
	cred := s.Current()
	if cred == nil {
		return service.ErrNotAuthenticated
	}
	email = strings.TrimSpace(email)
	if email != "" && !strings.EqualFold(email, cred.Email) {
		next, err := s.provider.UpdateEmail(ctx, cred, email)
		if err != nil {
			return err
		}
		s.setCredential(next)
		cred = next
	}
	if password != "" && password != currentPassword {
		next, err := s.provider.UpdatePassword(ctx, cred, password)
		if err != nil {
			return err
		}
		s.setCredential(next)
	}
	return nil
}

func (s *sessionService) Current() *auth.Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred
}

func (s *sessionService) Type(ctx context.Context) (models.UserType, error) {
	cred := s.Current()
	if cred == nil {
		return "", service.ErrNotAuthenticated
	}
	t, _, err := s.users.GetType(ctx, cred.UID)
	return t, err
}

func (s *sessionService) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending > 0
}

func (s *sessionService) Watch(ctx context.Context) <-chan *auth.Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.changes.Subscribe(ctx, s.cred)
}

func (s *sessionService) Close() {
	s.changes.Close()
}

// setCredential replaces the credential and announces identity changes.
// A refreshed token for the same uid is not announced.
func (s *sessionService) setCredential(cred *auth.Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.cred
	s.cred = cred
	if uid(prev) != uid(cred) {
		s.changes.Publish(cred)
	}
}

func (s *sessionService) drop(ctx context.Context) {
	if cred := s.Current(); cred != nil {
		if err := s.provider.SignOut(ctx, cred); err != nil {
			s.log.Warn("sign out after rejected login", "error", err)
		}
	}
	s.setCredential(nil)
}

func (s *sessionService) begin() func() {
	s.mu.Lock()
	s.pending++
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.pending--
		s.mu.Unlock()
	}
}

func (s *sessionService) alert(kind notify.Kind, title, body string) {
	s.notifier.Notify(notify.Alert{Kind: kind, Title: title, Body: body})
}

func (s *sessionService) report(title, body string, err error) error {
	s.log.Error(title, "error", err)
	s.alert(notify.Error, title, body)
	return &service.ReportedError{Title: title, Body: body, Err: err}
}

func uid(c *auth.Credential) string {
	if c == nil {
		return ""
	}
	return c.UID
}
