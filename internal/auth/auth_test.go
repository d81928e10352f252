package auth

import (
	"errors"
	"fmt"
	"testing"
)

func TestMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{NewError("createUser", ErrEmailAlreadyInUse, "EMAIL_EXISTS"), "Este e-mail já está em uso. Por favor, use outro e-mail."},
		{fmt.Errorf("wrapped: %w", NewError("signIn", ErrWrongPassword, "")), "Senha incorreta. Tente Novamente."},
		{NewError("signIn", ErrNetworkFailure, "dial tcp"), "Falha na conexão com a rede. Verifique sua internet."},
		{errors.New("boom"), "Ocorreu um erro inesperado."},
	}
	for _, tt := range tests {
		if got := Message(tt.err); got != tt.want {
			t.Errorf("Message(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestErrorFormatting(t *testing.T) {
	err := NewError("updateEmail", ErrRequiresRecentLogin, "CREDENTIAL_TOO_OLD_LOGIN_AGAIN")
	if !errors.Is(err, ErrRequiresRecentLogin) {
		t.Error("errors.Is does not reach the sentinel")
	}
	want := "updateEmail: auth/requires-recent-login (CREDENTIAL_TOO_OLD_LOGIN_AGAIN)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !IsCategorized(err) || IsCategorized(errors.New("x")) {
		t.Error("IsCategorized misclassifies")
	}
}
