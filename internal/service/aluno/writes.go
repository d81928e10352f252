package aluno_service

import (
	"context"
	"strings"
	"time"

	"personal-connect/internal/auth"
	"personal-connect/internal/events"
	"personal-connect/internal/models"
	"personal-connect/internal/notify"
	"personal-connect/internal/repository"
	"personal-connect/internal/service"
)

const (
	generatedPasswordLength = 6
	mailTimeout             = 30 * time.Second
)

// CreateStudent provisions the aluno identity, signs the trainer back in and
// writes the type tag and both student copies in one transaction. The
// identity cannot be rolled back when the transaction fails.
func (r *rosterService) CreateStudent(ctx context.Context, form models.StudentForm) (string, error) {
	cred := r.session.Current()
	if cred == nil {
		return "", service.ErrNotAuthenticated
	}
	if err := models.Validate(form); err != nil {
		return "", err
	}
	var trainer *models.Personal
	if r.trainer != nil {
		trainer = r.trainer.Profile()
	}
	if cred.Email == "" || trainer == nil || trainer.Senha == "" {
		return "", ErrMissingTrainerCredentials
	}

	defer r.busy(&r.loading.Create)()

	created, err := r.provider.CreateUser(ctx, strings.TrimSpace(form.Email), form.Senha)
	if err != nil {
		return "", r.report("Erro ao criar o aluno", auth.Message(err), err)
	}
	studentID := created.UID

	if err := r.session.Reauthenticate(ctx, trainer.Senha); err != nil {
		r.log.Warn("aluno identity left without documents", "alunoId", studentID, "error", err)
		return "", r.report("Erro ao criar o aluno", auth.Message(err), err)
	}

	student := form.Student(studentID)
	err = r.store.RunTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := r.users.SetType(tx, studentID, models.UserTypeAluno); err != nil {
			return err
		}
		return r.students.Create(tx, cred.UID, student)
	})
	if err != nil {
		r.log.Warn("aluno identity left without documents", "alunoId", studentID, "error", err)
		return "", r.report("Erro ao criar o aluno", auth.Message(err), err)
	}

	r.log.Info("aluno created", "alunoId", studentID)
	r.alert(notify.Success, "Aluno Criado", "A senha foi enviada para o email cadastrado!")
	r.publish(ctx, events.Event{Type: events.StudentCreated, PersonalID: cred.UID, StudentID: studentID})
	return studentID, nil
}

// RegisterStudent is the onboarding flow: a generated password, the
// optional photo, CreateStudent, then the password mail in the background.
func (r *rosterService) RegisterStudent(ctx context.Context, form models.StudentForm, photo *service.Photo) (string, error) {
	if r.session.Current() == nil {
		return "", service.ErrNotAuthenticated
	}
	password, err := auth.GeneratePassword(generatedPasswordLength)
	if err != nil {
		return "", err
	}
	form.Senha = password
	if err := models.Validate(form); err != nil {
		return "", err
	}

	foto, err := service.UploadPhoto(ctx, r.blobs, service.ProfilePicturePath(r.store.NewID()), photo, r.placeholder)
	if err != nil {
		return "", r.report("Erro", "Erro ao salvar a imagem no servidor.", err)
	}
	form.Foto = foto

	studentID, err := r.CreateStudent(ctx, form)
	if err != nil {
		return "", err
	}

	// the mail outlives the client: a logout must not wait for it
	email := strings.TrimSpace(form.Email)
	go func() {
		mctx, cancel := context.WithTimeout(context.Background(), mailTimeout)
		defer cancel()
		if err := r.mail.SendPassword(mctx, email, password); err != nil {
			r.log.Warn("send generated password", "alunoId", studentID, "error", err)
		}
	}()
	return studentID, nil
}

// CreateRoutine writes the routine under the selected student at both
// locations with one id and one commit.
func (r *rosterService) CreateRoutine(ctx context.Context, form models.RoutineForm) (string, error) {
	cred := r.session.Current()
	if cred == nil {
		return "", service.ErrNotAuthenticated
	}
	student, _ := r.selection()
	if student == nil {
		return "", ErrNoStudentSelected
	}
	if err := models.Validate(form); err != nil {
		return "", err
	}
	defer r.writingRoutine()()

	routineID := r.routines.NewID()
	err := r.store.RunTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		return r.routines.Create(tx, cred.UID, student.ID, routineID, form)
	})
	if err != nil {
		return "", r.report("Erro ao criar a rotina", "Verifique os dados digitados", err)
	}

	r.alert(notify.Success, "Rotina Criada", "A rotina foi criada com sucesso!")
	r.publish(ctx, events.Event{
		Type:       events.RoutineCreated,
		PersonalID: cred.UID,
		StudentID:  student.ID,
		RoutineID:  routineID,
	})
	return routineID, nil
}

// SaveExercise appends one exercise entry to the muscle group's treino of
// the selected routine, creating the treino when needed. Repeating the call
// appends a duplicate.
func (r *rosterService) SaveExercise(ctx context.Context, form models.WorkoutForm) error {
	cred := r.session.Current()
	if cred == nil {
		return service.ErrNotAuthenticated
	}
	student, routine := r.selection()
	if student == nil {
		return ErrNoStudentSelected
	}
	if routine == nil {
		return ErrNoRoutineSelected
	}
	form.Musculo = strings.TrimSpace(form.Musculo)
	if form.Musculo == "" {
		return ErrMissingMuscle
	}
	if err := models.Validate(form); err != nil {
		return err
	}
	form.Exercicio = r.withVideoLinks(form.Exercicio)
	defer r.busy(&r.loading.SaveExercise)()

	err := r.store.RunTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		return r.workouts.AppendExercise(tx, cred.UID, student.ID, routine.ID, form)
	})
	if err != nil {
		return r.report("Erro ao salvar o exercício",
			"Houve um erro ao tentar salvar o exercício. Tente novamente.", err)
	}

	r.alert(notify.Success, "Exercicio Salvo", "Volte a tela para anterior para ver os treinos!")
	r.publish(ctx, events.Event{
		Type:       events.WorkoutSaved,
		PersonalID: cred.UID,
		StudentID:  student.ID,
		RoutineID:  routine.ID,
		Musculo:    form.Musculo,
	})
	return nil
}

func (r *rosterService) withVideoLinks(entry models.ExerciseEntry) models.ExerciseEntry {
	out := make(models.ExerciseEntry, len(entry))
	for name, d := range entry {
		if d.YoutubeLink == "" && r.catalog != nil {
			if link, ok := r.catalog.VideoLink(name); ok {
				d.YoutubeLink = link
			}
		}
		out[name] = d
	}
	return out
}

// UpdateOwnProfile is the aluno editing itself: both copies in one commit,
// then the identity.
func (r *rosterService) UpdateOwnProfile(ctx context.Context, u models.StudentUpdate, photo *service.Photo) error {
	cred := r.session.Current()
	if cred == nil {
		return service.ErrNotAuthenticated
	}
	if err := models.Validate(u); err != nil {
		return err
	}

	r.mu.Lock()
	var current *models.Student
	if r.profile != nil {
		p := *r.profile
		current = &p
	}
	r.mu.Unlock()
	if current == nil {
		doc, err := r.students.GetRoot(ctx, cred.UID)
		if err != nil {
			return r.report("Erro", "Erro ao atualizar os dados.", err)
		}
		if !doc.Exists {
			return ErrProfileNotFound
		}
		s := models.StudentRootFromData(doc.Data)
		current = &s
	}
	if current.PersonalID == "" {
		return ErrProfileNotFound
	}

	fallback := u.Foto
	if fallback == "" {
		fallback = current.Foto
	}
	foto, err := service.UploadPhoto(ctx, r.blobs, service.ProfilePicturePath(cred.UID), photo, fallback)
	if err != nil {
		return r.report("Erro", "Erro ao salvar a imagem no servidor.", err)
	}
	u.Foto = foto

	err = r.store.RunTransaction(ctx, func(ctx context.Context, tx repository.Tx) error {
		return r.students.UpdateBoth(tx, current.PersonalID, cred.UID, u.Data())
	})
	if err != nil {
		return r.report("Erro", "Erro ao atualizar os dados.", err)
	}
	if err := r.session.UpdateIdentity(ctx, u.Email, u.Senha, current.Senha); err != nil {
		return r.report("Erro", auth.Message(err), err)
	}

	r.alert(notify.Success, "Sucesso", "Dados atualizados com sucesso!")
	r.publish(ctx, events.Event{Type: events.StudentUpdated, PersonalID: current.PersonalID, StudentID: cred.UID})
	return nil
}
