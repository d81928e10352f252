package aluno_service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"personal-connect/internal/auth"
	authmem "personal-connect/internal/auth/memory"
	"personal-connect/internal/catalog"
	"personal-connect/internal/events"
	"personal-connect/internal/logger"
	"personal-connect/internal/models"
	"personal-connect/internal/notify"
	"personal-connect/internal/repository"
	"personal-connect/internal/repository/memory"
	"personal-connect/internal/repository/personal"
	"personal-connect/internal/repository/routine"
	"personal-connect/internal/repository/student"
	"personal-connect/internal/repository/user"
	"personal-connect/internal/repository/workout"
	"personal-connect/internal/service"
	personal_service "personal-connect/internal/service/personal"
	session_service "personal-connect/internal/service/session"

	"go.uber.org/zap/zaptest"
)

type mailRecorder struct {
	mu   sync.Mutex
	sent map[string]string
	// hold, when set, delays every mail until it is closed
	hold chan struct{}
}

func (m *mailRecorder) SendPassword(ctx context.Context, to, password string) error {
	if m.hold != nil {
		select {
		case <-m.hold:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sent == nil {
		m.sent = map[string]string{}
	}
	m.sent[to] = password
	return nil
}

func (m *mailRecorder) password(to string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent[to]
}

// env is the backend shared by every client of a test.
type env struct {
	provider *authmem.Provider
	store    *memory.Store
	blobs    *memory.BlobStore
	mail     *mailRecorder
	events   *events.Recorder
	catalog  *catalog.Catalog
}

func newEnv(t *testing.T) *env {
	t.Helper()
	c, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return &env{
		provider: authmem.New(5 * time.Minute),
		store:    memory.NewStore(),
		blobs:    memory.NewBlobStore("https://cdn.test"),
		mail:     &mailRecorder{},
		events:   &events.Recorder{},
		catalog:  c,
	}
}

type client struct {
	alerts  *notify.Recorder
	session service.SessionService
	profile service.ProfileService
	roster  service.RosterService
}

func (e *env) client(t *testing.T) *client {
	t.Helper()
	log := logger.FromZap(zaptest.NewLogger(t))
	c := &client{alerts: &notify.Recorder{}}
	users := user.NewUserRepository(e.store)
	personals := personal.NewPersonalRepository(e.store)
	c.session = session_service.NewSessionService(e.provider, e.store, users, personals, c.alerts,
		"https://cdn.test/placeholder.png", log)
	c.profile = personal_service.NewProfileService(c.session, personals, e.blobs, c.alerts, log)
	c.roster = NewRosterService(Deps{
		Session:     c.session,
		Profile:     c.profile,
		Provider:    e.provider,
		Store:       e.store,
		Users:       users,
		Students:    student.NewStudentRepository(e.store),
		Routines:    routine.NewRoutineRepository(e.store),
		Workouts:    workout.NewWorkoutRepository(e.store),
		Blobs:       e.blobs,
		Mailer:      e.mail,
		Events:      e.events,
		Catalog:     e.catalog,
		Notifier:    c.alerts,
		Placeholder: "https://cdn.test/placeholder.png",
		Log:         log,
	})

	ctx, cancel := context.WithCancel(context.Background())
	c.profile.Start(ctx)
	c.roster.Start(ctx)
	t.Cleanup(func() {
		cancel()
		c.roster.Close()
		c.profile.Close()
		c.session.Close()
	})
	return c
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

// trainer signs up João and waits until his profile is mirrored.
func (e *env) trainer(t *testing.T) *client {
	t.Helper()
	c := e.client(t)
	_, err := c.session.CreateUser(context.Background(), models.PersonalSignUp{
		Email: "joao@x.com", Senha: "segredo1", Nome: "João Silva",
		Telefone: "11912345678", Sexo: "Masculino",
	})
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	waitFor(t, "trainer profile", func() bool { return c.profile.Profile() != nil })
	c.alerts.Reset()
	return c
}

func studentForm(name, email string) models.StudentForm {
	return models.StudentForm{
		Nome:     name,
		Email:    email,
		Senha:    "senha123",
		Telefone: "11912345678",
		Idade:    "25",
		Sexo:     "Feminino",
		Grupo:    "Online",
	}
}

func routineForm(name string) models.RoutineForm {
	return models.RoutineForm{
		Nome:              name,
		DivisaoTreinos:    "ABC",
		ObjetivoTreino:    "Hipertrofia",
		DificuldadeTreino: "Intermediário",
		DataInicio:        "2024-03-01",
		DataTermino:       "2024-06-01",
	}
}

func exercise(muscle, name string) models.WorkoutForm {
	return models.WorkoutForm{
		Musculo: muscle,
		Exercicio: models.ExerciseEntry{
			name: {Series: "4", Reps: "12", Divisao: "segunda"},
		},
	}
}

func (c *client) createStudent(t *testing.T, name, email string) string {
	t.Helper()
	id, err := c.roster.CreateStudent(context.Background(), studentForm(name, email))
	if err != nil {
		t.Fatalf("CreateStudent(%s) error = %v", name, err)
	}
	waitFor(t, name+" in roster", func() bool {
		for _, s := range c.roster.State().Students {
			if s.ID == id {
				return true
			}
		}
		return false
	})
	return id
}

func (c *client) routineNames() []string {
	var names []string
	for _, r := range c.roster.State().Routines {
		names = append(names, r.Nome)
	}
	return names
}

func TestCreateStudentWritesBothCopies(t *testing.T) {
	e := newEnv(t)
	c := e.trainer(t)
	ctx := context.Background()
	trainerID := c.session.Current().UID

	id := c.createStudent(t, "Maria Souza", "maria@x.com")

	nested, _ := e.store.Get(ctx, repository.NestedStudentPath(trainerID, id))
	root, _ := e.store.Get(ctx, repository.RootStudentPath(id))
	if !nested.Exists || !root.Exists {
		t.Fatalf("nested exists=%v root exists=%v", nested.Exists, root.Exists)
	}
	if root.Data["personalId"] != trainerID {
		t.Errorf("personalId = %v, want %s", root.Data["personalId"], trainerID)
	}
	for k, v := range nested.Data {
		if root.Data[k] != v {
			t.Errorf("field %s: nested %v root %v", k, v, root.Data[k])
		}
	}
	if len(root.Data) != len(nested.Data)+1 {
		t.Errorf("root has %d fields, nested %d", len(root.Data), len(nested.Data))
	}

	typ, _ := e.store.Get(ctx, repository.UserTypePath(id))
	if models.UserTypeFromData(typ.Data) != models.UserTypeAluno {
		t.Errorf("type = %v", typ.Data)
	}
	if alerts := c.alerts.Alerts(); len(alerts) != 1 || alerts[0].Title != "Aluno Criado" {
		t.Errorf("alerts = %+v", alerts)
	}
	if got := e.events.Events(); len(got) != 1 || got[0].Type != events.StudentCreated || got[0].StudentID != id {
		t.Errorf("events = %+v", got)
	}
	if c.session.Current().UID != trainerID {
		t.Error("trainer session lost after creating an aluno")
	}
}

func TestCreateStudentPreconditions(t *testing.T) {
	e := newEnv(t)
	anon := e.client(t)
	ctx := context.Background()

	if _, err := anon.roster.CreateStudent(ctx, studentForm("Maria Souza", "maria@x.com")); !errors.Is(err, service.ErrNotAuthenticated) {
		t.Fatalf("CreateStudent() error = %v, want not authenticated", err)
	}

	c := e.trainer(t)
	bad := studentForm("Ma", "maria@x.com")
	var verr *models.ValidationError
	if _, err := c.roster.CreateStudent(ctx, bad); !errors.As(err, &verr) {
		t.Fatalf("CreateStudent() error = %v, want validation error", err)
	}

	uid := c.session.Current().UID
	if err := e.store.Update(ctx, repository.PersonalPath(uid), map[string]interface{}{"senha": ""}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	waitFor(t, "profile without password", func() bool {
		p := c.profile.Profile()
		return p != nil && p.Senha == ""
	})
	if _, err := c.roster.CreateStudent(ctx, studentForm("Maria Souza", "maria@x.com")); !errors.Is(err, ErrMissingTrainerCredentials) {
		t.Fatalf("CreateStudent() error = %v, want missing credentials", err)
	}
	if alerts := c.alerts.Alerts(); len(alerts) != 0 {
		t.Errorf("preconditions must not alert: %+v", alerts)
	}
}

func TestCreateStudentCategorizedErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(e *env)
		want  error
	}{
		{
			name:  "duplicate email",
			setup: func(e *env) { _, _ = e.provider.CreateUser(context.Background(), "maria@x.com", "outra123") },
			want:  auth.ErrEmailAlreadyInUse,
		},
		{
			name:  "network",
			setup: func(e *env) { e.provider.SetNetworkDown(true) },
			want:  auth.ErrNetworkFailure,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			c := e.trainer(t)
			tt.setup(e)

			_, err := c.roster.CreateStudent(context.Background(), studentForm("Maria Souza", "maria@x.com"))
			var reported *service.ReportedError
			if !errors.As(err, &reported) || !errors.Is(err, tt.want) {
				t.Fatalf("CreateStudent() error = %v, want reported %v", err, tt.want)
			}
			alerts := c.alerts.Alerts()
			if len(alerts) != 1 || alerts[0].Title != "Erro ao criar o aluno" || alerts[0].Body != auth.Message(tt.want) {
				t.Errorf("alerts = %+v", alerts)
			}
			if c.roster.State().Loading.Create {
				t.Error("create flag left raised")
			}
		})
	}
}

func TestCreateStudentAtomicWrites(t *testing.T) {
	e := newEnv(t)
	c := e.trainer(t)
	ctx := context.Background()
	trainerID := c.session.Current().UID
	e.store.FailWrites(errors.New("unavailable"))

	_, err := c.roster.CreateStudent(ctx, studentForm("Maria Souza", "maria@x.com"))
	if err == nil {
		t.Fatal("expected error")
	}
	e.store.FailWrites(nil)

	students, _ := e.store.List(ctx, repository.NestedStudentsPath(trainerID))
	roots, _ := e.store.List(ctx, repository.RootStudents)
	if len(students) != 0 || len(roots) != 0 {
		t.Errorf("partial write: nested=%d root=%d", len(students), len(roots))
	}
}

func TestSelectStudentReplacesRoutines(t *testing.T) {
	e := newEnv(t)
	c := e.trainer(t)
	ctx := context.Background()

	ana := c.createStudent(t, "Ana Lima", "ana@x.com")
	bia := c.createStudent(t, "Bia Rocha", "bia@x.com")

	if err := c.roster.SelectStudentByID(ana); err != nil {
		t.Fatalf("SelectStudentByID() error = %v", err)
	}
	if _, err := c.roster.CreateRoutine(ctx, routineForm("Rotina da Ana")); err != nil {
		t.Fatalf("CreateRoutine() error = %v", err)
	}
	waitFor(t, "routines of Ana", func() bool { return len(c.roster.State().Routines) == 1 })

	if err := c.roster.SelectStudentByID(bia); err != nil {
		t.Fatalf("SelectStudentByID() error = %v", err)
	}
	if got := c.roster.State().Routines; len(got) != 0 {
		t.Fatalf("routines right after switching = %+v, want empty", got)
	}

	trainerID := c.session.Current().UID
	err := e.store.RunTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		return routine.NewRoutineRepository(e.store).Create(tx, trainerID, ana, "late", routineForm("Outra da Ana"))
	})
	if err != nil {
		t.Fatalf("write to Ana: %v", err)
	}
	if _, err := c.roster.CreateRoutine(ctx, routineForm("Rotina da Bia")); err != nil {
		t.Fatalf("CreateRoutine() error = %v", err)
	}
	waitFor(t, "routines of Bia", func() bool { return len(c.roster.State().Routines) == 1 })
	time.Sleep(20 * time.Millisecond)
	if names := c.routineNames(); len(names) != 1 || names[0] != "Rotina da Bia" {
		t.Errorf("routines = %v, want only Bia's", names)
	}
	if st := c.roster.State(); st.SelectedStudent == nil || st.SelectedStudent.ID != bia {
		t.Errorf("selected = %+v", st.SelectedStudent)
	}
}

func TestSaveExerciseAppendsAtBothPaths(t *testing.T) {
	e := newEnv(t)
	c := e.trainer(t)
	ctx := context.Background()
	trainerID := c.session.Current().UID

	id := c.createStudent(t, "Maria Souza", "maria@x.com")
	_ = c.roster.SelectStudentByID(id)
	rid, err := c.roster.CreateRoutine(ctx, routineForm("Hipertrofia A"))
	if err != nil {
		t.Fatalf("CreateRoutine() error = %v", err)
	}
	waitFor(t, "routine listed", func() bool { return len(c.roster.State().Routines) == 1 })
	if err := c.roster.SelectRoutineByID(rid); err != nil {
		t.Fatalf("SelectRoutineByID() error = %v", err)
	}

	lengths := func() (int, int) {
		nested, _ := e.store.Get(ctx, repository.Join(repository.NestedWorkoutsPath(trainerID, id, rid), "Peito"))
		root, _ := e.store.Get(ctx, repository.Join(repository.RootWorkoutsPath(id, rid), "Peito"))
		return len(models.WorkoutFromData(nested.ID, nested.Data).Exercicios),
			len(models.WorkoutFromData(root.ID, root.Data).Exercicios)
	}

	if err := c.roster.SaveExercise(ctx, exercise("Peito", "Supino reto")); err != nil {
		t.Fatalf("SaveExercise() error = %v", err)
	}
	if n, r := lengths(); n != 1 || r != 1 {
		t.Fatalf("after first save nested=%d root=%d, want 1/1", n, r)
	}

	if err := c.roster.SaveExercise(ctx, exercise("Peito", "Crucifixo")); err != nil {
		t.Fatalf("SaveExercise() error = %v", err)
	}
	if err := c.roster.SaveExercise(ctx, exercise("Peito", "Crucifixo")); err != nil {
		t.Fatalf("SaveExercise() error = %v", err)
	}
	if n, r := lengths(); n != 3 || r != 3 {
		t.Fatalf("after repeated save nested=%d root=%d, want 3/3", n, r)
	}

	waitFor(t, "workouts listed", func() bool {
		w := c.roster.State().Workouts
		return len(w) == 1 && len(w[0].Exercicios) == 3
	})
	first := c.roster.State().Workouts[0].Exercicios[0]["Supino reto"]
	if first.YoutubeLink != "https://www.youtube.com/shorts/YM3eSbh4bNw" {
		t.Errorf("video link = %q, want catalog link", first.YoutubeLink)
	}
}

func TestSaveExercisePreconditions(t *testing.T) {
	e := newEnv(t)
	c := e.trainer(t)
	ctx := context.Background()

	if err := c.roster.SaveExercise(ctx, exercise("Peito", "Supino reto")); !errors.Is(err, ErrNoStudentSelected) {
		t.Fatalf("error = %v, want no student", err)
	}
	id := c.createStudent(t, "Maria Souza", "maria@x.com")
	_ = c.roster.SelectStudentByID(id)
	if err := c.roster.SaveExercise(ctx, exercise("Peito", "Supino reto")); !errors.Is(err, ErrNoRoutineSelected) {
		t.Fatalf("error = %v, want no routine", err)
	}
	c.roster.SelectRoutine(&models.Routine{ID: "r1", Nome: "Hipertrofia A"})
	if err := c.roster.SaveExercise(ctx, exercise("  ", "Supino reto")); !errors.Is(err, ErrMissingMuscle) {
		t.Fatalf("error = %v, want missing muscle", err)
	}
	bad := exercise("Peito", "Supino reto")
	bad.Exercicio["Supino reto"] = models.ExerciseDetail{Series: "4", Reps: "12", Divisao: "feriado"}
	var verr *models.ValidationError
	if err := c.roster.SaveExercise(ctx, bad); !errors.As(err, &verr) {
		t.Fatalf("error = %v, want validation error", err)
	}
	if alerts := c.alerts.Alerts(); len(alerts) != 1 || alerts[0].Title != "Aluno Criado" {
		t.Errorf("preconditions must not alert: %+v", alerts)
	}
}

func TestCreateRoutineFailureAlerts(t *testing.T) {
	e := newEnv(t)
	c := e.trainer(t)
	ctx := context.Background()
	id := c.createStudent(t, "Maria Souza", "maria@x.com")
	_ = c.roster.SelectStudentByID(id)
	c.alerts.Reset()

	e.store.FailWrites(errors.New("unavailable"))
	if _, err := c.roster.CreateRoutine(ctx, routineForm("Hipertrofia A")); err == nil {
		t.Fatal("expected error")
	}
	alerts := c.alerts.Alerts()
	if len(alerts) != 1 || alerts[0].Title != "Erro ao criar a rotina" || alerts[0].Body != "Verifique os dados digitados" {
		t.Errorf("alerts = %+v", alerts)
	}
	if c.roster.State().Loading.Routines {
		t.Error("routines flag left raised")
	}

	form := routineForm("Hipertrofia A")
	form.DataInicio, form.DataTermino = "2024-06-01", "2024-03-01"
	var verr *models.ValidationError
	if _, err := c.roster.CreateRoutine(ctx, form); !errors.As(err, &verr) {
		t.Fatalf("error = %v, want validation error for date order", err)
	}
}

func TestTrainerAndStudentScenario(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	trainer := e.trainer(t)

	if trainer.session.SignIn(ctx, "joao@x.com", "segredo1") == nil {
		t.Fatal("trainer sign in failed")
	}
	id := trainer.createStudent(t, "Maria", "maria@x.com")
	var maria *models.Student
	for _, s := range trainer.roster.State().Students {
		if s.Nome == "Maria" {
			s := s
			maria = &s
		}
	}
	if maria == nil || maria.ID != id {
		t.Fatalf("students = %+v", trainer.roster.State().Students)
	}

	trainer.roster.SelectStudent(maria)
	rid, err := trainer.roster.CreateRoutine(ctx, routineForm("Hipertrofia A"))
	if err != nil {
		t.Fatalf("CreateRoutine() error = %v", err)
	}
	waitFor(t, "nested routine", func() bool {
		names := trainer.routineNames()
		return len(names) == 1 && names[0] == "Hipertrofia A"
	})

	aluno := e.client(t)
	if aluno.session.SignInAs(ctx, "maria@x.com", "senha123", models.UserTypeAluno) == nil {
		t.Fatalf("aluno sign in failed: %+v", aluno.alerts.Alerts())
	}
	waitFor(t, "flattened routine", func() bool {
		names := aluno.routineNames()
		return len(names) == 1 && names[0] == "Hipertrofia A"
	})
	waitFor(t, "aluno profile", func() bool {
		p := aluno.roster.State().Profile
		return p != nil && p.PersonalID == trainer.session.Current().UID
	})

	trainer.roster.SelectRoutine(&trainer.roster.State().Routines[0])
	if err := trainer.roster.SaveExercise(ctx, exercise("Costas", "Remada curvada")); err != nil {
		t.Fatalf("SaveExercise() error = %v", err)
	}
	if err := aluno.roster.SelectRoutineByID(rid); err != nil {
		t.Fatalf("aluno SelectRoutineByID() error = %v", err)
	}
	waitFor(t, "aluno workouts", func() bool {
		w := aluno.roster.State().Workouts
		return len(w) == 1 && w[0].Musculo == "Costas"
	})
}

func TestRegisterStudentMailsGeneratedPassword(t *testing.T) {
	e := newEnv(t)
	c := e.trainer(t)
	ctx := context.Background()

	form := studentForm("Maria Souza", "maria@x.com")
	form.Senha = ""
	id, err := c.roster.RegisterStudent(ctx, form, nil)
	if err != nil {
		t.Fatalf("RegisterStudent() error = %v", err)
	}

	waitFor(t, "password mail", func() bool { return e.mail.password("maria@x.com") != "" })
	password := e.mail.password("maria@x.com")
	if len(password) != 6 {
		t.Errorf("password %q, want 6 characters", password)
	}
	cred, err := e.provider.SignIn(ctx, "maria@x.com", password)
	if err != nil || cred.UID != id {
		t.Errorf("SignIn with mailed password: cred=%+v err=%v", cred, err)
	}
	root, _ := e.store.Get(ctx, repository.RootStudentPath(id))
	if root.Data["foto"] != "https://cdn.test/placeholder.png" {
		t.Errorf("foto = %v, want placeholder", root.Data["foto"])
	}
}

func TestCloseDoesNotWaitForPasswordMail(t *testing.T) {
	e := newEnv(t)
	e.mail.hold = make(chan struct{})
	c := e.trainer(t)

	form := studentForm("Maria Souza", "maria@x.com")
	form.Senha = ""
	if _, err := c.roster.RegisterStudent(context.Background(), form, nil); err != nil {
		t.Fatalf("RegisterStudent() error = %v", err)
	}

	done := make(chan struct{})
	go func() {
		c.roster.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close() blocked on the pending mail")
	}

	close(e.mail.hold)
	waitFor(t, "password mail after close", func() bool { return e.mail.password("maria@x.com") != "" })
}

func TestUpdateOwnProfile(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	trainer := e.trainer(t)
	trainerID := trainer.session.Current().UID
	id := trainer.createStudent(t, "Maria Souza", "maria@x.com")

	aluno := e.client(t)
	if aluno.session.SignIn(ctx, "maria@x.com", "senha123") == nil {
		t.Fatal("aluno sign in failed")
	}
	waitFor(t, "aluno profile", func() bool { return aluno.roster.State().Profile != nil })

	err := aluno.roster.UpdateOwnProfile(ctx, models.StudentUpdate{
		Nome: "Maria Clara", Email: "maria@x.com", Senha: "senha123", Telefone: "11987654321",
	}, nil)
	if err != nil {
		t.Fatalf("UpdateOwnProfile() error = %v", err)
	}
	nested, _ := e.store.Get(ctx, repository.NestedStudentPath(trainerID, id))
	root, _ := e.store.Get(ctx, repository.RootStudentPath(id))
	if nested.Data["nome"] != "Maria Clara" || root.Data["nome"] != "Maria Clara" {
		t.Errorf("nested=%v root=%v", nested.Data["nome"], root.Data["nome"])
	}
	if root.Data["personalId"] != trainerID {
		t.Error("personalId lost")
	}
	waitFor(t, "trainer sees the edit", func() bool {
		for _, s := range trainer.roster.State().Students {
			if s.Nome == "Maria Clara" {
				return true
			}
		}
		return false
	})
}

func TestReconcileRepairsFlattenedTree(t *testing.T) {
	e := newEnv(t)
	c := e.trainer(t)
	ctx := context.Background()

	id := c.createStudent(t, "Maria Souza", "maria@x.com")
	_ = c.roster.SelectStudentByID(id)
	rid, _ := c.roster.CreateRoutine(ctx, routineForm("Hipertrofia A"))
	c.roster.SelectRoutine(&models.Routine{ID: rid})
	if err := c.roster.SaveExercise(ctx, exercise("Pernas", "Agachamento")); err != nil {
		t.Fatalf("SaveExercise() error = %v", err)
	}

	report, err := c.roster.Reconcile(ctx, id)
	if err != nil || report.Repaired() != 0 {
		t.Fatalf("consistent tree: report=%+v err=%v", report, err)
	}

	_ = e.store.Update(ctx, repository.RootStudentPath(id), map[string]interface{}{"nome": "Outra"})
	_ = e.store.Update(ctx, repository.Join(repository.RootRoutinesPath(id), rid), map[string]interface{}{"nome": "Divergente"})
	_ = e.store.Set(ctx, repository.Join(repository.RootWorkoutsPath(id, rid), "Pernas"), map[string]interface{}{"musculo": "Pernas"})

	report, err = c.roster.Reconcile(ctx, id)
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if !report.StudentRepaired || len(report.RoutinesRepaired) != 1 || len(report.WorkoutsRepaired) != 1 {
		t.Errorf("report = %+v", report)
	}
	root, _ := e.store.Get(ctx, repository.RootStudentPath(id))
	if root.Data["nome"] != "Maria Souza" {
		t.Errorf("root nome = %v", root.Data["nome"])
	}

	report, err = c.roster.Reconcile(ctx, id)
	if err != nil || report.Repaired() != 0 {
		t.Errorf("second pass: report=%+v err=%v", report, err)
	}

	if _, err := c.roster.Reconcile(ctx, "ninguem"); !errors.Is(err, ErrStudentNotFound) {
		t.Errorf("unknown aluno: %v", err)
	}
}

func TestSourcesPreferNested(t *testing.T) {
	s := sources[string]{root: []string{"root"}}
	if got := s.value(); len(got) != 1 || got[0] != "root" {
		t.Errorf("value() = %v, want root fallback", got)
	}
	s.nested = []string{"nested"}
	if got := s.value(); len(got) != 1 || got[0] != "nested" {
		t.Errorf("value() = %v, want nested", got)
	}
}

func TestRootRoutinesKeepNestedLoading(t *testing.T) {
	r := &rosterService{}
	r.selStudent = &models.Student{ID: "a1"}
	r.loading.Routines = true

	r.applyRootRoutines([]models.Routine{{ID: "r1", Nome: "Hipertrofia A"}})
	if !r.loading.Routines {
		t.Error("flattened snapshot cleared the loading flag of the selected student")
	}

	r.selStudent = nil
	r.applyRootRoutines(nil)
	if r.loading.Routines {
		t.Error("loading flag still set without a selected student")
	}
}

func TestRoutineWriteKeepsSubscriptionLoading(t *testing.T) {
	r := &rosterService{changes: service.NewBroadcaster[struct{}]()}
	r.loading.Routines = true

	r.writingRoutine()()
	if !r.State().Loading.Routines {
		t.Error("finished write cleared the pending subscription flag")
	}

	r.loading.Routines = false
	done := r.writingRoutine()
	if !r.State().Loading.Routines {
		t.Error("write in flight not reported as loading")
	}
	done()
	if r.State().Loading.Routines {
		t.Error("loading after the write finished")
	}
}

func TestSignOutClearsRoster(t *testing.T) {
	e := newEnv(t)
	c := e.trainer(t)
	id := c.createStudent(t, "Maria Souza", "maria@x.com")
	_ = c.roster.SelectStudentByID(id)

	if err := c.session.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}
	waitFor(t, "cleared roster", func() bool {
		st := c.roster.State()
		return len(st.Students) == 0 && st.SelectedStudent == nil
	})
}
