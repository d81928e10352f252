package auth

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Credential is a signed-in identity as returned by the provider.
type Credential struct {
	UID          string
	Email        string
	IDToken      string
	RefreshToken string
	IssuedAt     time.Time
}

// Provider is the identity backend. Implementations are stateless with
// respect to sessions; callers keep the Credential.
type Provider interface {
	CreateUser(ctx context.Context, email, password string) (*Credential, error)
	SignIn(ctx context.Context, email, password string) (*Credential, error)
	SignOut(ctx context.Context, cred *Credential) error
	Reauthenticate(ctx context.Context, cred *Credential, password string) (*Credential, error)
	UpdateEmail(ctx context.Context, cred *Credential, email string) (*Credential, error)
	UpdatePassword(ctx context.Context, cred *Credential, password string) (*Credential, error)
	SendPasswordReset(ctx context.Context, email string) error
}

var (
	ErrEmailAlreadyInUse   = errors.New("auth/email-already-in-use")
	ErrInvalidEmail        = errors.New("auth/invalid-email")
	ErrWeakPassword        = errors.New("auth/weak-password")
	ErrOperationNotAllowed = errors.New("auth/operation-not-allowed")
	ErrNetworkFailure      = errors.New("auth/network-request-failed")
	ErrUserDisabled        = errors.New("auth/user-disabled")
	ErrWrongPassword       = errors.New("auth/wrong-password")
	ErrUserNotFound        = errors.New("auth/user-not-found")
	ErrInvalidCredential   = errors.New("auth/invalid-credential")
	ErrRequiresRecentLogin = errors.New("auth/requires-recent-login")
)

// Error carries the failed operation and the provider's raw detail next to
// the categorized sentinel.
type Error struct {
	Op     string
	Err    error
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(op string, err error, detail string) *Error {
	return &Error{Op: op, Err: err, Detail: detail}
}

const MinPasswordLength = 6

// Message returns the user-facing text for an identity error.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrEmailAlreadyInUse):
		return "Este e-mail já está em uso. Por favor, use outro e-mail."
	case errors.Is(err, ErrInvalidEmail):
		return "O e-mail fornecido é inválido."
	case errors.Is(err, ErrWeakPassword):
		return "A senha é muito fraca. Use pelo menos 6 caracteres."
	case errors.Is(err, ErrOperationNotAllowed):
		return "Cadastro de novos usuários está desabilitado no momento."
	case errors.Is(err, ErrNetworkFailure):
		return "Falha na conexão com a rede. Verifique sua internet."
	case errors.Is(err, ErrUserDisabled):
		return "Este usuário foi desativado. Entre em contato com o suporte."
	case errors.Is(err, ErrUserNotFound):
		return "Usuário não encontrado. Verifique seu e-mail."
	case errors.Is(err, ErrWrongPassword):
		return "Senha incorreta. Tente Novamente."
	case errors.Is(err, ErrInvalidCredential):
		return "Revise seu e-mail e sua senha e tente novamente."
	case errors.Is(err, ErrRequiresRecentLogin):
		return "Por segurança, faça login novamente para continuar."
	default:
		return "Ocorreu um erro inesperado."
	}
}

// IsCategorized reports whether err maps to a known identity category.
func IsCategorized(err error) bool {
	for _, sentinel := range []error{
		ErrEmailAlreadyInUse, ErrInvalidEmail, ErrWeakPassword, ErrOperationNotAllowed,
		ErrNetworkFailure, ErrUserDisabled, ErrWrongPassword, ErrUserNotFound,
		ErrInvalidCredential, ErrRequiresRecentLogin,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
