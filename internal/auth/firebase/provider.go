package firebase

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"personal-connect/internal/auth"
	"personal-connect/internal/logger"

	"google.golang.org/api/googleapi"
	identitytoolkit "google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"
)

type provider struct {
	svc *identitytoolkit.Service
	log *logger.Logger
	now func() time.Time
}

// New talks to the Firebase Auth REST API with a web API key.
func New(ctx context.Context, apiKey string, log *logger.Logger, opts ...option.ClientOption) (auth.Provider, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := identitytoolkit.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create identity toolkit client: %w", err)
	}
	return &provider{svc: svc, log: log.With("service", "FirebaseAuth"), now: time.Now}, nil
}

func (p *provider) CreateUser(ctx context.Context, email, password string) (*auth.Credential, error) {
	resp, err := p.svc.Relyingparty.SignupNewUser(&identitytoolkit.IdentitytoolkitRelyingpartySignupNewUserRequest{
		Email:    email,
		Password: password,
	}).Context(ctx).Do()
	if err != nil {
		return nil, mapError("createUser", err)
	}
	return p.credential(resp.LocalId, resp.Email, resp.IdToken, resp.RefreshToken), nil
}

func (p *provider) SignIn(ctx context.Context, email, password string) (*auth.Credential, error) {
	resp, err := p.svc.Relyingparty.VerifyPassword(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyPasswordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		return nil, mapError("signIn", err)
	}
	return p.credential(resp.LocalId, resp.Email, resp.IdToken, resp.RefreshToken), nil
}

// SignOut has nothing to revoke on the REST API; the session drops the
// credential.
func (p *provider) SignOut(ctx context.Context, cred *auth.Credential) error {
	if err := ctx.Err(); err != nil {
		return auth.NewError("signOut", auth.ErrNetworkFailure, err.Error())
	}
	return nil
}

func (p *provider) Reauthenticate(ctx context.Context, cred *auth.Credential, password string) (*auth.Credential, error) {
	if cred == nil {
		return nil, auth.NewError("reauthenticate", auth.ErrInvalidCredential, "no credential")
	}
	fresh, err := p.SignIn(ctx, cred.Email, password)
	if err != nil {
		return nil, err
	}
	if fresh.UID != cred.UID {
		return nil, auth.NewError("reauthenticate", auth.ErrInvalidCredential, "user mismatch")
	}
	return fresh, nil
}

func (p *provider) UpdateEmail(ctx context.Context, cred *auth.Credential, email string) (*auth.Credential, error) {
	return p.setAccountInfo(ctx, "updateEmail", cred, &identitytoolkit.IdentitytoolkitRelyingpartySetAccountInfoRequest{
		Email: email,
	})
}

func (p *provider) UpdatePassword(ctx context.Context, cred *auth.Credential, password string) (*auth.Credential, error) {
	return p.setAccountInfo(ctx, "updatePassword", cred, &identitytoolkit.IdentitytoolkitRelyingpartySetAccountInfoRequest{
		Password: password,
	})
}

func (p *provider) setAccountInfo(ctx context.Context, op string, cred *auth.Credential, req *identitytoolkit.IdentitytoolkitRelyingpartySetAccountInfoRequest) (*auth.Credential, error) {
	if cred == nil {
		return nil, auth.NewError(op, auth.ErrInvalidCredential, "no credential")
	}
	req.IdToken = cred.IDToken
	req.ReturnSecureToken = true
	resp, err := p.svc.Relyingparty.SetAccountInfo(req).Context(ctx).Do()
	if err != nil {
		return nil, mapError(op, err)
	}
	email := resp.Email
	if email == "" {
		email = cred.Email
	}
	refresh := resp.RefreshToken
	if refresh == "" {
		refresh = cred.RefreshToken
	}
	if resp.IdToken == "" {
		c := *cred
		c.Email = email
		return &c, nil
	}
	return p.credential(cred.UID, email, resp.IdToken, refresh), nil
}

func (p *provider) SendPasswordReset(ctx context.Context, email string) error {
	_, err := p.svc.Relyingparty.GetOobConfirmationCode(&identitytoolkit.Relyingparty{
		RequestType: "PASSWORD_RESET",
		Email:       email,
	}).Context(ctx).Do()
	if err != nil {
		return mapError("sendPasswordReset", err)
	}
	p.log.Debug("password reset requested")
	return nil
}

func (p *provider) credential(uid, email, idToken, refreshToken string) *auth.Credential {
	return &auth.Credential{
		UID:          uid,
		Email:        email,
		IDToken:      idToken,
		RefreshToken: refreshToken,
		IssuedAt:     p.now(),
	}
}

var codes = map[string]error{
	"EMAIL_EXISTS":                   auth.ErrEmailAlreadyInUse,
	"INVALID_EMAIL":                  auth.ErrInvalidEmail,
	"MISSING_EMAIL":                  auth.ErrInvalidEmail,
	"WEAK_PASSWORD":                  auth.ErrWeakPassword,
	"OPERATION_NOT_ALLOWED":          auth.ErrOperationNotAllowed,
	"PASSWORD_LOGIN_DISABLED":        auth.ErrOperationNotAllowed,
	"USER_DISABLED":                  auth.ErrUserDisabled,
	"EMAIL_NOT_FOUND":                auth.ErrUserNotFound,
	"USER_NOT_FOUND":                 auth.ErrUserNotFound,
	"INVALID_PASSWORD":               auth.ErrWrongPassword,
	"INVALID_LOGIN_CREDENTIALS":      auth.ErrInvalidCredential,
	"INVALID_ID_TOKEN":               auth.ErrRequiresRecentLogin,
	"TOKEN_EXPIRED":                  auth.ErrRequiresRecentLogin,
	"CREDENTIAL_TOO_OLD_LOGIN_AGAIN": auth.ErrRequiresRecentLogin,
}

// mapError turns API error strings such as "WEAK_PASSWORD : Password should
// be at least 6 characters" into categorized errors.
func mapError(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		code := strings.TrimSpace(strings.SplitN(gerr.Message, ":", 2)[0])
		if sentinel, ok := codes[code]; ok {
			return auth.NewError(op, sentinel, gerr.Message)
		}
		return auth.NewError(op, err, gerr.Message)
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return auth.NewError(op, auth.ErrNetworkFailure, err.Error())
	}
	return auth.NewError(op, err, "")
}
