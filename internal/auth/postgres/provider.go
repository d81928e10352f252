package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"personal-connect/internal/auth"
	"personal-connect/internal/logger"
	"personal-connect/internal/mailer"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
)

//go:embed schema.sql
var schema string

const (
	tokenTTL = time.Hour
	resetTTL = time.Hour

	identityColumns = `uid, email, password_hash, disabled, pending_hash, pending_until`
)

// identity is one row of identities. A reset parks the mailed password in
// pending_hash; the current hash stays valid until the pending one is used.
type identity struct {
	UID          string         `db:"uid"`
	Email        string         `db:"email"`
	PasswordHash string         `db:"password_hash"`
	Disabled     bool           `db:"disabled"`
	PendingHash  sql.NullString `db:"pending_hash"`
	PendingUntil sql.NullTime   `db:"pending_until"`
}

type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type provider struct {
	db          *sqlx.DB
	secret      []byte
	recentLogin time.Duration
	mail        mailer.Mailer
	log         *logger.Logger
	now         func() time.Time
}

// New is a self-hosted identity provider: bcrypt hashes in an identities
// table and HS256 ID tokens. Password resets mail a generated password
// that replaces the current one on its first use.
func New(ctx context.Context, db *sqlx.DB, secret string, recentLogin time.Duration, m mailer.Mailer, log *logger.Logger) (auth.Provider, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("identities schema: %w", err)
	}
	return newProvider(db, secret, recentLogin, m, log), nil
}

func newProvider(db *sqlx.DB, secret string, recentLogin time.Duration, m mailer.Mailer, log *logger.Logger) *provider {
	return &provider{
		db:          db,
		secret:      []byte(secret),
		recentLogin: recentLogin,
		mail:        m,
		log:         log.With("service", "PostgresAuth"),
		now:         time.Now,
	}
}

func (p *provider) CreateUser(ctx context.Context, email, password string) (*auth.Credential, error) {
	email = normalize(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, auth.NewError("createUser", auth.ErrInvalidEmail, email)
	}
	if len(password) < auth.MinPasswordLength {
		return nil, auth.NewError("createUser", auth.ErrWeakPassword, "")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, auth.NewError("createUser", err, "")
	}
	id := identity{UID: uuid.NewString(), Email: email, PasswordHash: string(hash)}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO identities (uid, email, password_hash) VALUES ($1, $2, $3)`,
		id.UID, id.Email, id.PasswordHash)
	if err != nil {
		return nil, mapError("createUser", err)
	}
	return p.issue(id)
}

func (p *provider) SignIn(ctx context.Context, email, password string) (*auth.Credential, error) {
	email = normalize(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, auth.NewError("signIn", auth.ErrInvalidEmail, email)
	}
	var id identity
	err := p.db.GetContext(ctx, &id, `SELECT `+identityColumns+` FROM identities WHERE email = $1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.NewError("signIn", auth.ErrUserNotFound, "")
	}
	if err != nil {
		return nil, mapError("signIn", err)
	}
	if err := p.check(ctx, "signIn", id, password); err != nil {
		return nil, err
	}
	return p.issue(id)
}

func (p *provider) SignOut(ctx context.Context, _ *auth.Credential) error {
	if err := ctx.Err(); err != nil {
		return auth.NewError("signOut", auth.ErrNetworkFailure, err.Error())
	}
	return nil
}

func (p *provider) Reauthenticate(ctx context.Context, cred *auth.Credential, password string) (*auth.Credential, error) {
	id, err := p.lookup(ctx, "reauthenticate", cred)
	if err != nil {
		return nil, err
	}
	if err := p.check(ctx, "reauthenticate", id, password); err != nil {
		return nil, err
	}
	return p.issue(id)
}

func (p *provider) UpdateEmail(ctx context.Context, cred *auth.Credential, email string) (*auth.Credential, error) {
	email = normalize(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, auth.NewError("updateEmail", auth.ErrInvalidEmail, email)
	}
	id, err := p.recent(ctx, "updateEmail", cred)
	if err != nil {
		return nil, err
	}
	_, err = p.db.ExecContext(ctx, `UPDATE identities SET email = $1, updated_at = now() WHERE uid = $2`, email, id.UID)
	if err != nil {
		return nil, mapError("updateEmail", err)
	}
	id.Email = email
	return p.issue(id)
}

func (p *provider) UpdatePassword(ctx context.Context, cred *auth.Credential, password string) (*auth.Credential, error) {
	if len(password) < auth.MinPasswordLength {
		return nil, auth.NewError("updatePassword", auth.ErrWeakPassword, "")
	}
	id, err := p.recent(ctx, "updatePassword", cred)
	if err != nil {
		return nil, err
	}
	if err := p.setPassword(ctx, id.UID, password); err != nil {
		return nil, mapError("updatePassword", err)
	}
	return p.issue(id)
}

func (p *provider) SendPasswordReset(ctx context.Context, email string) error {
	email = normalize(email)
	var uid string
	err := p.db.GetContext(ctx, &uid, `SELECT uid FROM identities WHERE email = $1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.NewError("sendPasswordReset", auth.ErrUserNotFound, "")
	}
	if err != nil {
		return mapError("sendPasswordReset", err)
	}
	password, err := auth.GeneratePassword(8)
	if err != nil {
		return auth.NewError("sendPasswordReset", err, "")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return auth.NewError("sendPasswordReset", err, "")
	}
	_, err = p.db.ExecContext(ctx,
		`UPDATE identities SET pending_hash = $1, pending_until = $2, updated_at = now() WHERE uid = $3`,
		string(hash), p.now().Add(resetTTL), uid)
	if err != nil {
		return mapError("sendPasswordReset", err)
	}
	if err := p.mail.SendPassword(ctx, email, password); err != nil {
		return auth.NewError("sendPasswordReset", auth.ErrNetworkFailure, err.Error())
	}
	p.log.Info("password reset mailed", "uid", uid)
	return nil
}

// check verifies the password and promotes a pending reset password that
// was just used.
func (p *provider) check(ctx context.Context, op string, id identity, password string) error {
	usedPending, err := verify(id, password, p.now())
	if err != nil {
		return auth.NewError(op, err, "")
	}
	if usedPending {
		if _, err := p.db.ExecContext(ctx,
			`UPDATE identities SET password_hash = pending_hash, pending_hash = NULL, pending_until = NULL, updated_at = now() WHERE uid = $1`,
			id.UID); err != nil {
			return mapError(op, err)
		}
		p.log.Info("reset password adopted", "uid", id.UID)
	}
	return nil
}

// setPassword replaces the hash and drops any pending reset.
func (p *provider) setPassword(ctx context.Context, uid, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx,
		`UPDATE identities SET password_hash = $1, pending_hash = NULL, pending_until = NULL, updated_at = now() WHERE uid = $2`,
		string(hash), uid)
	return err
}

func (p *provider) lookup(ctx context.Context, op string, cred *auth.Credential) (identity, error) {
	if cred == nil {
		return identity{}, auth.NewError(op, auth.ErrInvalidCredential, "no credential")
	}
	var id identity
	err := p.db.GetContext(ctx, &id, `SELECT `+identityColumns+` FROM identities WHERE uid = $1`, cred.UID)
	if errors.Is(err, sql.ErrNoRows) {
		return identity{}, auth.NewError(op, auth.ErrUserNotFound, "")
	}
	if err != nil {
		return identity{}, mapError(op, err)
	}
	if id.Disabled {
		return identity{}, auth.NewError(op, auth.ErrUserDisabled, "")
	}
	return id, nil
}

// recent requires a token issued inside the recent-login window.
func (p *provider) recent(ctx context.Context, op string, cred *auth.Credential) (identity, error) {
	if cred == nil {
		return identity{}, auth.NewError(op, auth.ErrInvalidCredential, "no credential")
	}
	c, err := p.parse(cred.IDToken)
	if err != nil {
		return identity{}, auth.NewError(op, auth.ErrRequiresRecentLogin, err.Error())
	}
	if c.Subject != cred.UID || c.IssuedAt == nil || p.now().Sub(c.IssuedAt.Time) > p.recentLogin {
		return identity{}, auth.NewError(op, auth.ErrRequiresRecentLogin, "")
	}
	return p.lookup(ctx, op, cred)
}

func (p *provider) issue(id identity) (*auth.Credential, error) {
	now := p.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email: id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	})
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &auth.Credential{
		UID:          id.UID,
		Email:        id.Email,
		IDToken:      signed,
		RefreshToken: uuid.NewString(),
		IssuedAt:     now,
	}, nil
}

func (p *provider) parse(tokenString string) (*claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(p.now),
	)
	c := &claims{}
	tok, err := parser.ParseWithClaims(tokenString, c, func(t *jwt.Token) (interface{}, error) {
		return p.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, errors.New("invalid token")
	}
	return c, nil
}

// verify accepts the current password or an unexpired pending one, and
// reports which matched.
func verify(id identity, password string, now time.Time) (usedPending bool, err error) {
	if id.Disabled {
		return false, auth.ErrUserDisabled
	}
	if bcrypt.CompareHashAndPassword([]byte(id.PasswordHash), []byte(password)) == nil {
		return false, nil
	}
	if id.PendingHash.Valid && id.PendingUntil.Valid && now.Before(id.PendingUntil.Time) &&
		bcrypt.CompareHashAndPassword([]byte(id.PendingHash.String), []byte(password)) == nil {
		return true, nil
	}
	return false, auth.ErrWrongPassword
}

func mapError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return auth.NewError(op, auth.ErrEmailAlreadyInUse, pqErr.Constraint)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.Is(err, sql.ErrConnDone) {
		return auth.NewError(op, auth.ErrNetworkFailure, err.Error())
	}
	return auth.NewError(op, err, "")
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
