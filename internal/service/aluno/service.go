package aluno_service

import (
	"context"
	"errors"
	"sync"

	"personal-connect/internal/auth"
	"personal-connect/internal/catalog"
	"personal-connect/internal/events"
	"personal-connect/internal/logger"
	"personal-connect/internal/mailer"
	"personal-connect/internal/models"
	"personal-connect/internal/notify"
	"personal-connect/internal/repository"
	"personal-connect/internal/service"
)

var (
	ErrNoStudentSelected         = errors.New("Nenhum aluno selecionado.")
	ErrNoRoutineSelected         = errors.New("Nenhuma rotina selecionada.")
	ErrMissingMuscle             = errors.New("Músculo não especificado!")
	ErrMissingTrainerCredentials = errors.New("Não foi possível recuperar as credenciais do personal trainer.")
	ErrStudentNotFound           = errors.New("Aluno não encontrado.")
	ErrRoutineNotFound           = errors.New("Rotina não encontrada.")
	ErrProfileNotFound           = errors.New("Perfil do aluno não encontrado.")
)

// Deps are the collaborators of one roster.
type Deps struct {
	Session     service.SessionService
	Profile     service.ProfileService
	Provider    auth.Provider
	Store       repository.DocumentStore
	Users       repository.UserRepository
	Students    repository.StudentRepository
	Routines    repository.RoutineRepository
	Workouts    repository.WorkoutRepository
	Blobs       repository.BlobStore
	Mailer      mailer.Mailer
	Events      events.Publisher
	Catalog     *catalog.Catalog
	Notifier    notify.Notifier
	Placeholder string
	Log         *logger.Logger
}

type slotKind int

const (
	studentsSlot slotKind = iota
	routinesNestedSlot
	routinesRootSlot
	workoutsNestedSlot
	workoutsRootSlot
	profileSlot
	slotCount
)

var slotNames = [slotCount]string{"alunos", "rotinas", "rotinasRoot", "treinos", "treinosRoot", "alunoData"}

func (k slotKind) String() string { return slotNames[k] }

// slot is one live subscription. Snapshots carrying an older gen are
// dropped.
type slot struct {
	gen    uint64
	cancel context.CancelFunc
}

// sources holds the two feeds of one list: the trainer's nested tree and
// the flattened student tree. The nested feed is shown whenever it has
// entries.
type sources[T any] struct {
	nested []T
	root   []T
}

func (s sources[T]) value() []T {
	if len(s.nested) > 0 {
		return s.nested
	}
	return s.root
}

type rosterService struct {
	session     service.SessionService
	trainer     service.ProfileService
	provider    auth.Provider
	store       repository.DocumentStore
	users       repository.UserRepository
	students    repository.StudentRepository
	routines    repository.RoutineRepository
	workouts    repository.WorkoutRepository
	blobs       repository.BlobStore
	mail        mailer.Mailer
	publisher   events.Publisher
	catalog     *catalog.Catalog
	notifier    notify.Notifier
	placeholder string
	log         *logger.Logger

	mu         sync.Mutex
	ctx        context.Context
	stop       context.CancelFunc
	uid        string
	gen        uint64
	slots      [slotCount]slot
	roster     []models.Student
	rotinas    sources[models.Routine]
	treinos    sources[models.Workout]
	profile    *models.Student
	selStudent *models.Student
	selRoutine *models.Routine
	loading    service.RosterLoading
	// routine writes in flight; reported through Loading.Routines
	routineWrites int

	changes *service.Broadcaster[struct{}]
	wg      sync.WaitGroup
}

func NewRosterService(d Deps) service.RosterService {
	publisher := d.Events
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &rosterService{
		session:     d.Session,
		trainer:     d.Profile,
		provider:    d.Provider,
		store:       d.Store,
		users:       d.Users,
		students:    d.Students,
		routines:    d.Routines,
		workouts:    d.Workouts,
		blobs:       d.Blobs,
		mail:        d.Mailer,
		publisher:   publisher,
		catalog:     d.Catalog,
		notifier:    d.Notifier,
		placeholder: d.Placeholder,
		log:         d.Log.With("service", "Roster"),
		changes:     service.NewBroadcaster[struct{}](),
	}
}

// Start binds the roster to the session identity. Identity-scoped
// subscriptions are rebuilt on every identity change.
func (r *rosterService) Start(ctx context.Context) {
	ctx, stop := context.WithCancel(ctx)
	r.mu.Lock()
	r.ctx = ctx
	r.stop = stop
	r.mu.Unlock()

	identities := r.session.Watch(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for cred := range identities {
			uid := ""
			if cred != nil {
				uid = cred.UID
			}
			r.follow(uid)
		}
		r.follow("")
	}()
}

func (r *rosterService) follow(uid string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if uid == r.uid {
		return
	}
	r.log.Debug("identity changed", "uid", uid)
	r.uid = uid
	for k := slotKind(0); k < slotCount; k++ {
		r.teardown(k)
	}
	r.roster = nil
	r.rotinas = sources[models.Routine]{}
	r.treinos = sources[models.Workout]{}
	r.profile = nil
	r.selStudent = nil
	r.selRoutine = nil
	r.loading = service.RosterLoading{}
	defer r.changed()

	if uid == "" {
		return
	}
	r.watchStudents()
	r.watchRoutinesRoot()
	r.watchProfile()
}

// teardown must be called with mu held.
func (r *rosterService) teardown(k slotKind) {
	if r.slots[k].cancel != nil {
		r.slots[k].cancel()
	}
	r.gen++
	r.slots[k] = slot{gen: r.gen}
}

// watch replaces the subscription in slot k. Called with mu held; apply and
// fail run with mu held too.
func watch[T any](
	r *rosterService,
	k slotKind,
	open func(ctx context.Context) (<-chan repository.Snapshot[T], error),
	apply func(T),
	fail func(),
) {
	r.teardown(k)
	ctx, cancel := context.WithCancel(r.ctx)
	snapshots, err := open(ctx)
	if err != nil {
		cancel()
		r.log.Error("subscribe", "slot", k.String(), "error", err)
		fail()
		return
	}
	r.slots[k].cancel = cancel
	gen := r.slots[k].gen

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for snap := range snapshots {
			r.mu.Lock()
			if r.slots[k].gen == gen {
				if snap.Err != nil {
					r.log.Error("snapshot", "slot", k.String(), "error", snap.Err)
					fail()
				} else {
					apply(snap.Value)
				}
				r.changed()
			}
			r.mu.Unlock()
		}
	}()
}

func (r *rosterService) watchStudents() {
	uid := r.uid
	r.loading.Students = true
	watch(r, studentsSlot,
		func(ctx context.Context) (<-chan repository.Snapshot[[]models.Student], error) {
			return r.students.WatchByPersonal(ctx, uid)
		},
		func(list []models.Student) {
			r.roster = list
			r.loading.Students = false
			if r.selStudent != nil {
				for _, s := range list {
					if s.ID == r.selStudent.ID {
						s := s
						r.selStudent = &s
					}
				}
			}
		},
		func() { r.loading.Students = false },
	)
}

func (r *rosterService) watchRoutinesNested() {
	uid, studentID := r.uid, r.selStudent.ID
	r.loading.Routines = true
	watch(r, routinesNestedSlot,
		func(ctx context.Context) (<-chan repository.Snapshot[[]models.Routine], error) {
			return r.routines.WatchNested(ctx, uid, studentID)
		},
		func(list []models.Routine) {
			r.rotinas.nested = list
			r.loading.Routines = false
		},
		func() { r.loading.Routines = false },
	)
}

func (r *rosterService) watchRoutinesRoot() {
	uid := r.uid
	watch(r, routinesRootSlot,
		func(ctx context.Context) (<-chan repository.Snapshot[[]models.Routine], error) {
			return r.routines.WatchRoot(ctx, uid)
		},
		r.applyRootRoutines,
		func() {
			if r.selStudent == nil {
				r.loading.Routines = false
			}
		},
	)
}

// applyRootRoutines takes a flattened snapshot. While a student is selected
// the loading flag belongs to the nested feed.
func (r *rosterService) applyRootRoutines(list []models.Routine) {
	r.rotinas.root = list
	if r.selStudent == nil {
		r.loading.Routines = false
	}
}

func (r *rosterService) watchWorkoutsNested() {
	uid, studentID, routineID := r.uid, r.selStudent.ID, r.selRoutine.ID
	r.loading.Workouts = true
	watch(r, workoutsNestedSlot,
		func(ctx context.Context) (<-chan repository.Snapshot[[]models.Workout], error) {
			return r.workouts.WatchNested(ctx, uid, studentID, routineID)
		},
		func(list []models.Workout) {
			r.treinos.nested = list
			r.loading.Workouts = false
		},
		func() { r.loading.Workouts = false },
	)
}

func (r *rosterService) watchWorkoutsRoot() {
	uid, routineID := r.uid, r.selRoutine.ID
	r.loading.Workouts = true
	watch(r, workoutsRootSlot,
		func(ctx context.Context) (<-chan repository.Snapshot[[]models.Workout], error) {
			return r.workouts.WatchRoot(ctx, uid, routineID)
		},
		func(list []models.Workout) {
			r.treinos.root = list
			r.loading.Workouts = false
		},
		func() { r.loading.Workouts = false },
	)
}

func (r *rosterService) watchProfile() {
	uid := r.uid
	r.loading.Profile = true
	watch(r, profileSlot,
		func(ctx context.Context) (<-chan repository.Snapshot[*models.Student], error) {
			return r.students.WatchRoot(ctx, uid)
		},
		func(s *models.Student) {
			r.profile = s
			r.loading.Profile = false
		},
		func() { r.loading.Profile = false },
	)
}

// SelectStudent moves the student cursor. The routines of the previous
// student are unsubscribed and cleared before the new subscription starts;
// the routine cursor is reset.
func (r *rosterService) SelectStudent(s *models.Student) {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer r.changed()

	if s != nil && r.selStudent != nil && s.ID == r.selStudent.ID {
		cp := *s
		r.selStudent = &cp
		return
	}

	r.teardown(routinesNestedSlot)
	r.rotinas.nested = nil
	r.clearRoutineSelection()

	if s == nil {
		r.selStudent = nil
		r.loading.Routines = false
		return
	}
	cp := *s
	r.selStudent = &cp
	if r.uid != "" {
		r.watchRoutinesNested()
	}
}

func (r *rosterService) SelectStudentByID(id string) error {
	r.mu.Lock()
	var found *models.Student
	for _, s := range r.roster {
		if s.ID == id {
			s := s
			found = &s
			break
		}
	}
	r.mu.Unlock()
	if found == nil {
		return ErrStudentNotFound
	}
	r.SelectStudent(found)
	return nil
}

// SelectRoutine moves the routine cursor and rebuilds both workout feeds.
func (r *rosterService) SelectRoutine(rt *models.Routine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer r.changed()

	if rt != nil && r.selRoutine != nil && rt.ID == r.selRoutine.ID {
		cp := *rt
		r.selRoutine = &cp
		return
	}

	r.clearRoutineSelection()
	if rt == nil {
		return
	}
	cp := *rt
	r.selRoutine = &cp
	if r.uid == "" {
		return
	}
	r.watchWorkoutsRoot()
	if r.selStudent != nil {
		r.watchWorkoutsNested()
	}
}

// clearRoutineSelection must be called with mu held.
func (r *rosterService) clearRoutineSelection() {
	r.teardown(workoutsNestedSlot)
	r.teardown(workoutsRootSlot)
	r.treinos = sources[models.Workout]{}
	r.selRoutine = nil
	r.loading.Workouts = false
}

func (r *rosterService) SelectRoutineByID(id string) error {
	r.mu.Lock()
	var found *models.Routine
	for _, rt := range r.rotinas.value() {
		if rt.ID == id {
			rt := rt
			found = &rt
			break
		}
	}
	r.mu.Unlock()
	if found == nil {
		return ErrRoutineNotFound
	}
	r.SelectRoutine(found)
	return nil
}

func (r *rosterService) State() service.RosterState {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := service.RosterState{
		Students: append([]models.Student(nil), r.roster...),
		Routines: append([]models.Routine(nil), r.rotinas.value()...),
		Workouts: append([]models.Workout(nil), r.treinos.value()...),
		Loading:  r.loading,
	}
	st.Loading.Routines = st.Loading.Routines || r.routineWrites > 0
	if r.profile != nil {
		p := *r.profile
		st.Profile = &p
	}
	if r.selStudent != nil {
		s := *r.selStudent
		st.SelectedStudent = &s
	}
	if r.selRoutine != nil {
		rt := *r.selRoutine
		st.SelectedRoutine = &rt
	}
	return st
}

func (r *rosterService) Changes(ctx context.Context) <-chan struct{} {
	return r.changes.Subscribe(ctx, struct{}{})
}

// changed must be called with mu held.
func (r *rosterService) changed() {
	r.changes.Publish(struct{}{})
}

func (r *rosterService) selection() (student *models.Student, routine *models.Routine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.selStudent != nil {
		s := *r.selStudent
		student = &s
	}
	if r.selRoutine != nil {
		rt := *r.selRoutine
		routine = &rt
	}
	return student, routine
}

// busy raises a loading flag until the returned func is called.
func (r *rosterService) busy(flag *bool) func() {
	r.mu.Lock()
	*flag = true
	r.changed()
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		*flag = false
		r.changed()
		r.mu.Unlock()
	}
}

// writingRoutine counts a routine write until the returned func is called.
func (r *rosterService) writingRoutine() func() {
	r.mu.Lock()
	r.routineWrites++
	r.changed()
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		r.routineWrites--
		r.changed()
		r.mu.Unlock()
	}
}

func (r *rosterService) alert(kind notify.Kind, title, body string) {
	r.notifier.Notify(notify.Alert{Kind: kind, Title: title, Body: body})
}

// report logs a failed remote operation and alerts it once.
func (r *rosterService) report(title, body string, err error) error {
	r.log.Error(title, "error", err)
	r.alert(notify.Error, title, body)
	return &service.ReportedError{Title: title, Body: body, Err: err}
}

func (r *rosterService) publish(ctx context.Context, ev events.Event) {
	if err := r.publisher.Publish(ctx, ev); err != nil {
		r.log.Warn("publish event", "type", ev.Type, "error", err)
	}
}

func (r *rosterService) Close() {
	r.mu.Lock()
	if r.stop != nil {
		r.stop()
	}
	for k := slotKind(0); k < slotCount; k++ {
		r.teardown(k)
	}
	r.mu.Unlock()
	r.wg.Wait()
	r.changes.Close()
}
