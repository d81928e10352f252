package memory

import (
	"context"
	"net/mail"
	"strings"
	"sync"
	"time"

	"personal-connect/internal/auth"

	"github.com/google/uuid"
)

type account struct {
	uid      string
	email    string
	password string
	disabled bool
}

// Provider is an in-process identity provider with the same error
// categories as the managed backends.
type Provider struct {
	mu          sync.Mutex
	byEmail     map[string]*account
	byUID       map[string]*account
	resets      []string
	networkDown bool

	recentLogin time.Duration
	now         func() time.Time
}

func New(recentLogin time.Duration) *Provider {
	if recentLogin <= 0 {
		recentLogin = 5 * time.Minute
	}
	return &Provider{
		byEmail:     make(map[string]*account),
		byUID:       make(map[string]*account),
		recentLogin: recentLogin,
		now:         time.Now,
	}
}

var _ auth.Provider = (*Provider)(nil)

// SetNetworkDown makes every call fail with a network error.
func (p *Provider) SetNetworkDown(down bool) {
	p.mu.Lock()
	p.networkDown = down
	p.mu.Unlock()
}

func (p *Provider) Disable(email string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if a, ok := p.byEmail[normalize(email)]; ok {
		a.disabled = true
	}
}

// SetClock replaces the time source used for credential age.
func (p *Provider) SetClock(now func() time.Time) {
	p.mu.Lock()
	p.now = now
	p.mu.Unlock()
}

// PasswordResets lists the addresses a reset was requested for.
func (p *Provider) PasswordResets() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.resets...)
}

func (p *Provider) CreateUser(ctx context.Context, email, password string) (*auth.Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(ctx, "createUser"); err != nil {
		return nil, err
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, auth.NewError("createUser", auth.ErrInvalidEmail, email)
	}
	if len(password) < auth.MinPasswordLength {
		return nil, auth.NewError("createUser", auth.ErrWeakPassword, "")
	}
	key := normalize(email)
	if _, exists := p.byEmail[key]; exists {
		return nil, auth.NewError("createUser", auth.ErrEmailAlreadyInUse, email)
	}
	a := &account{uid: uuid.NewString(), email: email, password: password}
	p.byEmail[key] = a
	p.byUID[a.uid] = a
	return p.issue(a), nil
}

func (p *Provider) SignIn(ctx context.Context, email, password string) (*auth.Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(ctx, "signIn"); err != nil {
		return nil, err
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, auth.NewError("signIn", auth.ErrInvalidEmail, email)
	}
	a, ok := p.byEmail[normalize(email)]
	if !ok {
		return nil, auth.NewError("signIn", auth.ErrUserNotFound, "")
	}
	if a.disabled {
		return nil, auth.NewError("signIn", auth.ErrUserDisabled, "")
	}
	if a.password != password {
		return nil, auth.NewError("signIn", auth.ErrWrongPassword, "")
	}
	return p.issue(a), nil
}

func (p *Provider) SignOut(ctx context.Context, _ *auth.Credential) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.check(ctx, "signOut")
}

func (p *Provider) Reauthenticate(ctx context.Context, cred *auth.Credential, password string) (*auth.Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(ctx, "reauthenticate"); err != nil {
		return nil, err
	}
	a, err := p.account("reauthenticate", cred)
	if err != nil {
		return nil, err
	}
	if a.password != password {
		return nil, auth.NewError("reauthenticate", auth.ErrWrongPassword, "")
	}
	return p.issue(a), nil
}

func (p *Provider) UpdateEmail(ctx context.Context, cred *auth.Credential, email string) (*auth.Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(ctx, "updateEmail"); err != nil {
		return nil, err
	}
	a, err := p.recent("updateEmail", cred)
	if err != nil {
		return nil, err
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, auth.NewError("updateEmail", auth.ErrInvalidEmail, email)
	}
	key := normalize(email)
	if other, exists := p.byEmail[key]; exists && other != a {
		return nil, auth.NewError("updateEmail", auth.ErrEmailAlreadyInUse, email)
	}
	delete(p.byEmail, normalize(a.email))
	a.email = email
	p.byEmail[key] = a
	return p.issue(a), nil
}

func (p *Provider) UpdatePassword(ctx context.Context, cred *auth.Credential, password string) (*auth.Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(ctx, "updatePassword"); err != nil {
		return nil, err
	}
	a, err := p.recent("updatePassword", cred)
	if err != nil {
		return nil, err
	}
	if len(password) < auth.MinPasswordLength {
		return nil, auth.NewError("updatePassword", auth.ErrWeakPassword, "")
	}
	a.password = password
	return p.issue(a), nil
}

func (p *Provider) SendPasswordReset(ctx context.Context, email string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(ctx, "sendPasswordReset"); err != nil {
		return err
	}
	if _, ok := p.byEmail[normalize(email)]; !ok {
		return auth.NewError("sendPasswordReset", auth.ErrUserNotFound, "")
	}
	p.resets = append(p.resets, email)
	return nil
}

func (p *Provider) check(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return auth.NewError(op, auth.ErrNetworkFailure, err.Error())
	}
	if p.networkDown {
		return auth.NewError(op, auth.ErrNetworkFailure, "network down")
	}
	return nil
}

func (p *Provider) account(op string, cred *auth.Credential) (*account, error) {
	if cred == nil {
		return nil, auth.NewError(op, auth.ErrInvalidCredential, "no credential")
	}
	a, ok := p.byUID[cred.UID]
	if !ok {
		return nil, auth.NewError(op, auth.ErrUserNotFound, "")
	}
	if a.disabled {
		return nil, auth.NewError(op, auth.ErrUserDisabled, "")
	}
	return a, nil
}

func (p *Provider) recent(op string, cred *auth.Credential) (*account, error) {
	a, err := p.account(op, cred)
	if err != nil {
		return nil, err
	}
	if p.now().Sub(cred.IssuedAt) > p.recentLogin {
		return nil, auth.NewError(op, auth.ErrRequiresRecentLogin, "")
	}
	return a, nil
}

func (p *Provider) issue(a *account) *auth.Credential {
	return &auth.Credential{
		UID:          a.uid,
		Email:        a.email,
		IDToken:      uuid.NewString(),
		RefreshToken: uuid.NewString(),
		IssuedAt:     p.now(),
	}
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
