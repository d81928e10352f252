package personal_service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	authmem "personal-connect/internal/auth/memory"
	"personal-connect/internal/logger"
	"personal-connect/internal/models"
	"personal-connect/internal/notify"
	"personal-connect/internal/repository"
	"personal-connect/internal/repository/memory"
	"personal-connect/internal/repository/personal"
	"personal-connect/internal/repository/user"
	"personal-connect/internal/service"
	session_service "personal-connect/internal/service/session"

	"go.uber.org/zap/zaptest"
)

type fixture struct {
	provider *authmem.Provider
	store    *memory.Store
	blobs    *memory.BlobStore
	alerts   *notify.Recorder
	session  service.SessionService
	profile  service.ProfileService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.FromZap(zaptest.NewLogger(t))
	f := &fixture{
		provider: authmem.New(5 * time.Minute),
		store:    memory.NewStore(),
		blobs:    memory.NewBlobStore("https://cdn.test"),
		alerts:   &notify.Recorder{},
	}
	personals := personal.NewPersonalRepository(f.store)
	f.session = session_service.NewSessionService(f.provider, f.store, user.NewUserRepository(f.store),
		personals, f.alerts, "https://cdn.test/placeholder.png", log)
	f.profile = NewProfileService(f.session, personals, f.blobs, f.alerts, log)

	ctx, cancel := context.WithCancel(context.Background())
	f.profile.Start(ctx)
	t.Cleanup(func() {
		cancel()
		f.profile.Close()
		f.session.Close()
	})
	return f
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (f *fixture) signUp(t *testing.T) {
	t.Helper()
	_, err := f.session.CreateUser(context.Background(), models.PersonalSignUp{
		Email: "joao@x.com", Senha: "segredo1", Nome: "João Silva", Telefone: "11912345678", Sexo: "Masculino",
	})
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	waitFor(t, "profile", func() bool { return f.profile.Profile() != nil })
}

func TestProfileFollowsIdentity(t *testing.T) {
	f := newFixture(t)
	f.signUp(t)

	p := f.profile.Profile()
	if p.Nome != "João Silva" || p.Email != "joao@x.com" {
		t.Errorf("profile = %+v", p)
	}
	if f.profile.Loading() {
		t.Error("still loading")
	}

	if err := f.session.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}
	waitFor(t, "teardown", func() bool { return f.profile.Profile() == nil })
}

func TestProfileDefaultsName(t *testing.T) {
	f := newFixture(t)
	f.signUp(t)
	uid := f.session.Current().UID

	if err := f.store.Update(context.Background(), repository.PersonalPath(uid), map[string]interface{}{"nome": ""}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	waitFor(t, "default name", func() bool {
		p := f.profile.Profile()
		return p != nil && p.Nome == "Usuário"
	})
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	f.signUp(t)
	f.alerts.Reset()
	ctx := context.Background()

	err := f.profile.UpdateProfile(ctx, models.PersonalUpdate{
		Nome:      "João Souza",
		Email:     "joao.souza@x.com",
		Senha:     "segredo2",
		Telefone:  "(11) 91234-5678",
		Instagram: "joao.souza",
		CREF:      "CREF123456-G/SP",
	}, &service.Photo{Reader: strings.NewReader("jpeg"), ContentType: "image/jpeg"})
	if err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}

	uid := f.session.Current().UID
	waitFor(t, "updated profile", func() bool {
		p := f.profile.Profile()
		return p != nil && p.Nome == "João Souza"
	})
	p := f.profile.Profile()
	if !strings.HasPrefix(p.Foto, "https://cdn.test/") || p.CREF != "CREF123456-G/SP" {
		t.Errorf("profile = %+v", p)
	}
	if _, _, ok := f.blobs.Object(service.ProfilePicturePath(uid)); !ok {
		t.Error("photo not uploaded")
	}
	if _, err := f.provider.SignIn(ctx, "joao.souza@x.com", "segredo2"); err != nil {
		t.Errorf("identity not updated: %v", err)
	}
	if alerts := f.alerts.Alerts(); len(alerts) != 1 || alerts[0].Title != "Sucesso" {
		t.Errorf("alerts = %+v", alerts)
	}
}

func TestUpdateProfilePreconditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := models.PersonalUpdate{Nome: "João Souza", Email: "joao@x.com", Senha: "segredo1", Telefone: "11912345678"}

	if err := f.profile.UpdateProfile(ctx, u, nil); !errors.Is(err, service.ErrNotAuthenticated) {
		t.Fatalf("UpdateProfile() error = %v, want not authenticated", err)
	}

	f.signUp(t)
	u.CREF = "123"
	var verr *models.ValidationError
	if err := f.profile.UpdateProfile(ctx, u, nil); !errors.As(err, &verr) {
		t.Fatalf("UpdateProfile() error = %v, want validation error", err)
	}
}
