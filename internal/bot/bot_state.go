package bot

import (
	"sync"

	"personal-connect/internal/models"
	"personal-connect/internal/service"
)

type BotState int

const (
	StateDefault BotState = iota

	// trainer sign-up
	StateSignUpName
	StateSignUpEmail
	StateSignUpPassword
	StateSignUpPhone
	StateSignUpSex

	// new aluno
	StateStudentName
	StateStudentEmail
	StateStudentPhone
	StateStudentAge
	StateStudentSex
	StateStudentGroup

	// numbered list selection
	StateSelectingStudent
	StateSelectingRoutine

	// new routine
	StateRoutineName
	StateRoutineSplit
	StateRoutineGoal
	StateRoutineDifficulty
	StateRoutineStart
	StateRoutineEnd

	// new exercise
	StateExerciseMuscle
	StateExerciseName
	StateExerciseSeries
	StateExerciseReps
	StateExerciseDay
)

// afterSelection is what a selection step continues with.
type afterSelection int

const (
	showRoutines afterSelection = iota
	startRoutine
	showWorkouts
	startExercise
)

type exerciseDraft struct {
	muscle string
	name   string
	series string
	reps   string
}

// UserSession is the state of one chat. Messages of a chat are handled one
// at a time under mu.
type UserSession struct {
	mu sync.Mutex

	State  BotState
	client service.Client
	tipo   models.UserType

	signUp   models.PersonalSignUp
	student  models.StudentForm
	routine  models.RoutineForm
	exercise exerciseDraft

	// choices are the ids offered by the last numbered list
	choices []string
	next    afterSelection
}

// resetDraft leaves the identity and clears the wizard.
func (s *UserSession) resetDraft() {
	s.State = StateDefault
	s.signUp = models.PersonalSignUp{}
	s.student = models.StudentForm{}
	s.routine = models.RoutineForm{}
	s.exercise = exerciseDraft{}
	s.choices = nil
}

func (b *Bot) getOrCreateSession(chatID int64) *UserSession {
	b.mu.Lock()
	defer b.mu.Unlock()

	if session, exists := b.userSessions[chatID]; exists {
		return session
	}

	session := &UserSession{State: StateDefault}
	b.userSessions[chatID] = session
	return session
}

// resetSession closes the chat's client and forgets the chat.
func (b *Bot) resetSession(chatID int64) {
	b.mu.Lock()
	session, ok := b.userSessions[chatID]
	delete(b.userSessions, chatID)
	b.mu.Unlock()
	if ok && session.client != nil {
		session.client.Close()
	}
}
