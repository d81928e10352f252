package bot

import (
	"fmt"
	"strings"

	"personal-connect/internal/models"
)

func (b *Bot) handleNewExercise(chatID int64, s *UserSession) {
	st := s.client.Roster().State()
	switch {
	case st.SelectedStudent == nil:
		b.selectStudentThen(chatID, s, startExercise)
	case st.SelectedRoutine == nil:
		b.selectRoutineThen(chatID, s, startExercise)
	default:
		b.startNewExercise(chatID, s)
	}
}

func (b *Bot) startNewExercise(chatID int64, s *UserSession) {
	routine := s.client.Roster().State().SelectedRoutine
	s.resetDraft()
	s.State = StateExerciseMuscle

	text := "➕ Novo exercício\n\nEscolha o músculo:"
	if routine != nil {
		text = fmt.Sprintf("➕ Novo exercício em %s\n\nEscolha o músculo:", routine.Nome)
	}
	b.sendWithKeyboard(chatID, text, createOptionsKeyboard(b.catalog.Muscles()))
}

func (b *Bot) handleExerciseStep(chatID int64, s *UserSession, text string) {
	switch s.State {
	case StateExerciseMuscle:
		s.exercise.muscle = text
		s.State = StateExerciseName

		exercises := b.catalog.Exercises(text)
		names := make([]string, 0, len(exercises))
		for _, e := range exercises {
			names = append(names, e.Nome)
		}
		if len(names) == 0 {
			b.sendWithKeyboard(chatID, "Nome do exercício:", createCancelKeyboard())
			return
		}
		b.sendWithKeyboard(chatID, "Escolha o exercício ou digite outro nome:", createOptionsKeyboard(names))
	case StateExerciseName:
		s.exercise.name = text
		s.State = StateExerciseSeries
		b.sendWithKeyboard(chatID, "Número de séries:", createCancelKeyboard())
	case StateExerciseSeries:
		s.exercise.series = text
		s.State = StateExerciseReps
		b.sendMessage(chatID, "Número de repetições:")
	case StateExerciseReps:
		s.exercise.reps = text
		s.State = StateExerciseDay
		b.sendWithKeyboard(chatID, "Dia da semana:", createOptionsKeyboard(weekdayOptions))
	case StateExerciseDay:
		draft := s.exercise
		s.resetDraft()

		form := models.WorkoutForm{
			Musculo: draft.muscle,
			Exercicio: models.ExerciseEntry{
				draft.name: {
					Series:  draft.series,
					Reps:    draft.reps,
					Divisao: strings.ToLower(text),
				},
			},
		}

		ctx, cancel := b.opContext()
		defer cancel()

		if err := s.client.Roster().SaveExercise(ctx, form); err != nil {
			b.reportFailure(chatID, err)
		}
		b.sendWithKeyboard(chatID, "Escolha uma opção:", createMainKeyboard(s.tipo))
	}
}
