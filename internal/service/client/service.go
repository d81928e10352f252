package client_service

import (
	"context"
	"sync"

	"personal-connect/internal/auth"
	"personal-connect/internal/catalog"
	"personal-connect/internal/events"
	"personal-connect/internal/logger"
	"personal-connect/internal/mailer"
	"personal-connect/internal/notify"
	"personal-connect/internal/repository"
	"personal-connect/internal/repository/personal"
	"personal-connect/internal/repository/routine"
	"personal-connect/internal/repository/student"
	"personal-connect/internal/repository/user"
	"personal-connect/internal/repository/workout"
	"personal-connect/internal/service"
	aluno_service "personal-connect/internal/service/aluno"
	personal_service "personal-connect/internal/service/personal"
	session_service "personal-connect/internal/service/session"

	"github.com/google/uuid"
)

// Backends are the process-wide boundaries shared by every client.
type Backends struct {
	Provider    auth.Provider
	Store       repository.DocumentStore
	Blobs       repository.BlobStore
	Mailer      mailer.Mailer
	Events      events.Publisher
	Catalog     *catalog.Catalog
	Placeholder string
}

type clientFactory struct {
	b         Backends
	users     repository.UserRepository
	personals repository.PersonalRepository
	students  repository.StudentRepository
	routines  repository.RoutineRepository
	workouts  repository.WorkoutRepository
	log       *logger.Logger
}

func NewClientFactory(b Backends, log *logger.Logger) service.ClientFactory {
	return &clientFactory{
		b:         b,
		users:     user.NewUserRepository(b.Store),
		personals: personal.NewPersonalRepository(b.Store),
		students:  student.NewStudentRepository(b.Store),
		routines:  routine.NewRoutineRepository(b.Store),
		workouts:  workout.NewWorkoutRepository(b.Store),
		log:       log,
	}
}

func (f *clientFactory) NewClient(ctx context.Context, n notify.Notifier) service.Client {
	id := uuid.NewString()
	log := f.log.With("client", id)

	session := session_service.NewSessionService(f.b.Provider, f.b.Store, f.users, f.personals, n, f.b.Placeholder, log)
	profile := personal_service.NewProfileService(session, f.personals, f.b.Blobs, n, log)
	roster := aluno_service.NewRosterService(aluno_service.Deps{
		Session:     session,
		Profile:     profile,
		Provider:    f.b.Provider,
		Store:       f.b.Store,
		Users:       f.users,
		Students:    f.students,
		Routines:    f.routines,
		Workouts:    f.workouts,
		Blobs:       f.b.Blobs,
		Mailer:      f.b.Mailer,
		Events:      f.b.Events,
		Catalog:     f.b.Catalog,
		Notifier:    n,
		Placeholder: f.b.Placeholder,
		Log:         log,
	})

	ctx, cancel := context.WithCancel(ctx)
	profile.Start(ctx)
	roster.Start(ctx)
	log.Debug("client started")

	return &client{
		id:      id,
		session: session,
		profile: profile,
		roster:  roster,
		cancel:  cancel,
		log:     log,
	}
}

type client struct {
	id      string
	session service.SessionService
	profile service.ProfileService
	roster  service.RosterService
	cancel  context.CancelFunc
	log     *logger.Logger
	once    sync.Once
}

func (c *client) ID() string                       { return c.id }
func (c *client) Session() service.SessionService { return c.session }
func (c *client) Profile() service.ProfileService { return c.profile }
func (c *client) Roster() service.RosterService   { return c.roster }

// Close stops every subscription of the client. The identity is not signed
// out.
func (c *client) Close() {
	c.once.Do(func() {
		c.cancel()
		c.roster.Close()
		c.profile.Close()
		c.session.Close()
		c.log.Debug("client closed")
	})
}
