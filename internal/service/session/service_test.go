package session_service

import (
	"context"
	"errors"
	"testing"
	"time"

	"personal-connect/internal/auth"
	authmem "personal-connect/internal/auth/memory"
	"personal-connect/internal/logger"
	"personal-connect/internal/models"
	"personal-connect/internal/notify"
	"personal-connect/internal/repository"
	"personal-connect/internal/repository/memory"
	"personal-connect/internal/repository/personal"
	"personal-connect/internal/repository/user"
	"personal-connect/internal/service"

	"go.uber.org/zap/zaptest"
)

const placeholder = "https://example.test/placeholder.png"

type fixture struct {
	provider *authmem.Provider
	store    *memory.Store
	alerts   *notify.Recorder
	session  service.SessionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		provider: authmem.New(5 * time.Minute),
		store:    memory.NewStore(),
		alerts:   &notify.Recorder{},
	}
	f.session = NewSessionService(
		f.provider,
		f.store,
		user.NewUserRepository(f.store),
		personal.NewPersonalRepository(f.store),
		f.alerts,
		placeholder,
		logger.FromZap(zaptest.NewLogger(t)),
	)
	t.Cleanup(f.session.Close)
	return f
}

func trainerForm() models.PersonalSignUp {
	return models.PersonalSignUp{
		Email:    "joao@x.com",
		Senha:    "segredo1",
		Nome:     "João Silva",
		Telefone: "(11) 91234-5678",
		Sexo:     "Masculino",
	}
}

func TestSignInFailureAlertsOnce(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		network  bool
		want     string
	}{
		{name: "unknown user", email: "ninguem@x.com", password: "segredo1", want: auth.Message(auth.ErrUserNotFound)},
		{name: "wrong password", email: "joao@x.com", password: "errada1", want: auth.Message(auth.ErrWrongPassword)},
		{name: "invalid email", email: "joao", password: "segredo1", want: auth.Message(auth.ErrInvalidEmail)},
		{name: "network", email: "joao@x.com", password: "segredo1", network: true, want: auth.Message(auth.ErrNetworkFailure)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			if _, err := f.provider.CreateUser(ctx, "joao@x.com", "segredo1"); err != nil {
				t.Fatalf("CreateUser() error = %v", err)
			}
			f.provider.SetNetworkDown(tt.network)

			if cred := f.session.SignIn(ctx, tt.email, tt.password); cred != nil {
				t.Fatalf("SignIn() = %+v, want nil", cred)
			}
			alerts := f.alerts.Alerts()
			if len(alerts) != 1 {
				t.Fatalf("alerts = %+v, want exactly one", alerts)
			}
			if alerts[0].Kind != notify.Error || alerts[0].Title != "Erro de Autenticação" || alerts[0].Body != tt.want {
				t.Errorf("alert = %+v", alerts[0])
			}
			if f.session.Current() != nil {
				t.Error("session set after failed sign in")
			}
		})
	}
}

func TestSignInSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, _ := f.provider.CreateUser(ctx, "joao@x.com", "segredo1")

	cred := f.session.SignIn(ctx, " joao@x.com ", "segredo1")
	if cred == nil || cred.UID != created.UID {
		t.Fatalf("SignIn() = %+v", cred)
	}
	if got := f.session.Current(); got == nil || got.UID != created.UID {
		t.Errorf("Current() = %+v", got)
	}
	if len(f.alerts.Alerts()) != 0 {
		t.Errorf("unexpected alerts %+v", f.alerts.Alerts())
	}
	if f.session.Loading() {
		t.Error("still loading")
	}
}

func TestCreateUserWritesProfileAndType(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cred, err := f.session.CreateUser(ctx, trainerForm())
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	doc, _ := f.store.Get(ctx, repository.PersonalPath(cred.UID))
	p := models.PersonalFromData(doc.ID, doc.Data)
	if !doc.Exists || p.Nome != "João Silva" || p.Foto != placeholder || p.Senha != "segredo1" {
		t.Errorf("profile = %+v", p)
	}
	typ, _ := f.store.Get(ctx, repository.UserTypePath(cred.UID))
	if models.UserTypeFromData(typ.Data) != models.UserTypePersonal {
		t.Errorf("type = %v", typ.Data)
	}
	alerts := f.alerts.Alerts()
	if len(alerts) != 1 || alerts[0].Title != "Conta Criada" {
		t.Errorf("alerts = %+v", alerts)
	}
}

func TestCreateUserValidation(t *testing.T) {
	f := newFixture(t)
	form := trainerForm()
	form.Nome = "Jo"

	_, err := f.session.CreateUser(context.Background(), form)
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("CreateUser() error = %v, want validation error", err)
	}
	if len(f.alerts.Alerts()) != 0 {
		t.Error("validation errors must not alert")
	}
}

func TestCreateUserOrphanedIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.FailWrites(errors.New("unavailable"))

	_, err := f.session.CreateUser(ctx, trainerForm())
	var reported *service.ReportedError
	if !errors.As(err, &reported) {
		t.Fatalf("CreateUser() error = %v, want reported error", err)
	}
	alerts := f.alerts.Alerts()
	if len(alerts) != 1 || alerts[0].Title != "Erro ao criar conta" {
		t.Errorf("alerts = %+v", alerts)
	}
	if _, err := f.provider.SignIn(ctx, "joao@x.com", "segredo1"); err != nil {
		t.Errorf("identity should survive failed writes: %v", err)
	}
}

func TestSignInAsChecksType(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.session.CreateUser(ctx, trainerForm()); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	f.alerts.Reset()

	if cred := f.session.SignInAs(ctx, "joao@x.com", "segredo1", models.UserTypeAluno); cred != nil {
		t.Fatalf("SignInAs() = %+v, want nil", cred)
	}
	alerts := f.alerts.Alerts()
	if len(alerts) != 1 || alerts[0].Title != "Tipo de Usuário Inválido" ||
		alerts[0].Body != "Você tentou logar como aluno, mas sua conta é do tipo personal." {
		t.Errorf("alerts = %+v", alerts)
	}
	if f.session.Current() != nil {
		t.Error("mismatching type must sign out")
	}

	f.alerts.Reset()
	if cred := f.session.SignInAs(ctx, "joao@x.com", "segredo1", models.UserTypePersonal); cred == nil {
		t.Fatal("SignInAs(personal) = nil")
	}
	if alerts := f.alerts.Alerts(); len(alerts) != 1 || alerts[0].Kind != notify.Success {
		t.Errorf("alerts = %+v", alerts)
	}
}

func TestSignOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.session.CreateUser(ctx, trainerForm()); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	f.provider.SetNetworkDown(true)
	if err := f.session.SignOut(ctx); err == nil {
		t.Fatal("SignOut() with network down should fail")
	}
	if f.session.Current() == nil {
		t.Fatal("failed sign out must keep the identity")
	}

	f.provider.SetNetworkDown(false)
	f.alerts.Reset()
	if err := f.session.SignOut(ctx); err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}
	if f.session.Current() != nil {
		t.Error("identity kept after sign out")
	}
	if alerts := f.alerts.Alerts(); len(alerts) != 1 || alerts[0].Title != "Logout" {
		t.Errorf("alerts = %+v", alerts)
	}
}

func TestUpdateIdentityReauthenticates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Now()
	f.provider.SetClock(func() time.Time { return now })
	if _, err := f.session.CreateUser(ctx, trainerForm()); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	now = now.Add(time.Hour)
	if err := f.session.UpdateIdentity(ctx, "novo@x.com", "segredo2", "segredo1"); err != nil {
		t.Fatalf("UpdateIdentity() error = %v", err)
	}
	if got := f.session.Current().Email; got != "novo@x.com" {
		t.Errorf("email = %q", got)
	}
	if _, err := f.provider.SignIn(ctx, "novo@x.com", "segredo2"); err != nil {
		t.Errorf("SignIn with new identity: %v", err)
	}
}

func TestSendPasswordReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _ = f.provider.CreateUser(ctx, "joao@x.com", "segredo1")

	if err := f.session.SendPasswordReset(ctx, "joao@x.com"); err != nil {
		t.Fatalf("SendPasswordReset() error = %v", err)
	}
	if err := f.session.SendPasswordReset(ctx, "ninguem@x.com"); err == nil {
		t.Fatal("expected error for unknown email")
	}
	alerts := f.alerts.Alerts()
	if len(alerts) != 2 || alerts[0].Kind != notify.Success || alerts[1].Title != "Erro ao enviar o email de recuperação." {
		t.Errorf("alerts = %+v", alerts)
	}
}

func TestWatchFollowsIdentity(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, _ = f.provider.CreateUser(ctx, "joao@x.com", "segredo1")

	changes := f.session.Watch(ctx)
	if got := <-changes; got != nil {
		t.Fatalf("initial = %+v, want nil", got)
	}
	f.session.SignIn(ctx, "joao@x.com", "segredo1")
	select {
	case got := <-changes:
		if got == nil || got.Email != "joao@x.com" {
			t.Errorf("change = %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("no identity change delivered")
	}
}
