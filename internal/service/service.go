package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"personal-connect/internal/auth"
	"personal-connect/internal/models"
	"personal-connect/internal/notify"
	"personal-connect/internal/repository"
)

var ErrNotAuthenticated = errors.New("Usuário não autenticado.")

// ReportedError is a failed remote operation the user was already alerted
// about. Adapters must not alert again.
type ReportedError struct {
	Title string
	Body  string
	Err   error
}

func (e *ReportedError) Error() string {
	return fmt.Sprintf("%s: %v", e.Title, e.Err)
}

func (e *ReportedError) Unwrap() error {
	return e.Err
}

// Photo is an optional profile picture upload.
type Photo struct {
	Reader      io.Reader
	ContentType string
}

// UploadPhoto stores p at path and returns its download URL, or fallback
// when no photo was given.
func UploadPhoto(ctx context.Context, blobs repository.BlobStore, path string, p *Photo, fallback string) (string, error) {
	if p == nil || p.Reader == nil {
		return fallback, nil
	}
	contentType := p.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}
	url, err := blobs.Upload(ctx, path, p.Reader, contentType)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", path, err)
	}
	return url, nil
}

func ProfilePicturePath(id string) string {
	return "profilePictures/" + id
}

type SessionService interface {
	// SignIn returns nil on failure after alerting the categorized error.
	SignIn(ctx context.Context, email, password string) *auth.Credential
	// SignInAs additionally requires the account to have the given type.
	SignInAs(ctx context.Context, email, password string, t models.UserType) *auth.Credential
	SignOut(ctx context.Context) error
	CreateUser(ctx context.Context, form models.PersonalSignUp) (*auth.Credential, error)
	SendPasswordReset(ctx context.Context, email string) error

	Reauthenticate(ctx context.Context, password string) error
	// UpdateIdentity changes email and/or password of the signed-in
	// identity, re-authenticating once with currentPassword when the
	// provider asks for a recent login.
	UpdateIdentity(ctx context.Context, email, password, currentPassword string) error

	Current() *auth.Credential
	Type(ctx context.Context) (models.UserType, error)
	Loading() bool
	// Watch yields the current identity and every later change, nil after
	// sign-out. Only the latest value is kept for slow readers.
	Watch(ctx context.Context) <-chan *auth.Credential
	Close()
}

// Client is the session bundle of one connected user: its own identity,
// trainer profile mirror and roster mirror.
type Client interface {
	ID() string
	Session() SessionService
	Profile() ProfileService
	Roster() RosterService
	Close()
}

// ClientFactory builds started clients. Alerts of a client go to n.
type ClientFactory interface {
	NewClient(ctx context.Context, n notify.Notifier) Client
}

type ProfileService interface {
	Start(ctx context.Context)
	Profile() *models.Personal
	Loading() bool
	UpdateProfile(ctx context.Context, u models.PersonalUpdate, photo *Photo) error
	Close()
}

// RosterService mirrors a trainer's students, routines and workouts, or the
// student's own flattened copy when the session belongs to an aluno.
type RosterService interface {
	Start(ctx context.Context)
	State() RosterState
	// Changes signals after every state change. Signals coalesce.
	Changes(ctx context.Context) <-chan struct{}

	SelectStudent(s *models.Student)
	SelectStudentByID(id string) error
	SelectRoutine(r *models.Routine)
	SelectRoutineByID(id string) error

	CreateStudent(ctx context.Context, form models.StudentForm) (string, error)
	RegisterStudent(ctx context.Context, form models.StudentForm, photo *Photo) (string, error)
	CreateRoutine(ctx context.Context, form models.RoutineForm) (string, error)
	SaveExercise(ctx context.Context, form models.WorkoutForm) error
	UpdateOwnProfile(ctx context.Context, u models.StudentUpdate, photo *Photo) error
	Reconcile(ctx context.Context, studentID string) (ReconcileReport, error)

	Close()
}

type RosterLoading struct {
	Students     bool `json:"alunos"`
	Create       bool `json:"create"`
	Routines     bool `json:"rotinas"`
	SaveExercise bool `json:"saveExercise"`
	Workouts     bool `json:"treinos"`
	Profile      bool `json:"alunoData"`
}

type RosterState struct {
	Students        []models.Student `json:"alunos"`
	Routines        []models.Routine `json:"rotinas"`
	Workouts        []models.Workout `json:"treinos"`
	Profile         *models.Student  `json:"alunoData"`
	SelectedStudent *models.Student  `json:"alunoSelecionado"`
	SelectedRoutine *models.Routine  `json:"rotinaSelecionada"`
	Loading         RosterLoading    `json:"loading"`
}

// ReconcileReport lists what was copied from the nested tree onto the
// flattened one.
type ReconcileReport struct {
	StudentID        string   `json:"alunoId"`
	StudentRepaired  bool     `json:"alunoReparado"`
	RoutinesRepaired []string `json:"rotinasReparadas"`
	WorkoutsRepaired []string `json:"treinosReparados"`
}

func (r ReconcileReport) Repaired() int {
	n := len(r.RoutinesRepaired) + len(r.WorkoutsRepaired)
	if r.StudentRepaired {
		n++
	}
	return n
}
