package bot

import (
	"fmt"
	"strings"

	"personal-connect/internal/models"
	"personal-connect/internal/service"
)

// routinesLoaded reports whether the routine list can be shown. The aluno
// feed has no loading flag, so it waits for the first routine instead.
func (s *UserSession) routinesLoaded(st service.RosterState) bool {
	if s.tipo == models.UserTypeAluno {
		return len(st.Routines) > 0
	}
	return !st.Loading.Routines
}

func (b *Bot) showRoutines(chatID int64, s *UserSession) {
	st := b.awaitRoster(s, s.routinesLoaded)

	header := "📋 Suas rotinas:\n\n"
	if st.SelectedStudent != nil {
		header = fmt.Sprintf("📋 Rotinas de %s:\n\n", st.SelectedStudent.Nome)
	}
	if len(st.Routines) == 0 {
		b.sendWithKeyboard(chatID, "📭 Nenhuma rotina cadastrada", createMainKeyboard(s.tipo))
		return
	}

	var message strings.Builder
	message.WriteString(header)
	for i, r := range st.Routines {
		message.WriteString(formatRoutine(i+1, r))
	}
	b.sendWithKeyboard(chatID, message.String(), createMainKeyboard(s.tipo))
}

func formatRoutine(n int, r models.Routine) string {
	var out strings.Builder
	out.WriteString(fmt.Sprintf("%d. %s\n", n, r.Nome))
	out.WriteString(fmt.Sprintf("   %s · %s · %s\n", r.DivisaoTreinos, r.ObjetivoTreino, r.DificuldadeTreino))
	out.WriteString(fmt.Sprintf("   📅 %s → %s\n", formatDate(r.DataInicio), formatDate(r.DataTermino)))
	return out.String()
}

func (b *Bot) handleNewRoutine(chatID int64, s *UserSession) {
	if s.client.Roster().State().SelectedStudent == nil {
		b.selectStudentThen(chatID, s, startRoutine)
		return
	}
	b.startNewRoutine(chatID, s)
}

func (b *Bot) startNewRoutine(chatID int64, s *UserSession) {
	student := s.client.Roster().State().SelectedStudent
	s.resetDraft()
	s.State = StateRoutineName
	name := ""
	if student != nil {
		name = " para " + student.Nome
	}
	b.sendWithKeyboard(chatID, "🆕 Nova rotina"+name+"\n\nNome da rotina (6 a 50 caracteres):", createCancelKeyboard())
}

func (b *Bot) handleRoutineStep(chatID int64, s *UserSession, text string) {
	switch s.State {
	case StateRoutineName:
		s.routine.Nome = text
		s.State = StateRoutineSplit
		b.sendWithKeyboard(chatID, "Divisão de treinos:", createOptionsKeyboard(splitOptions))
	case StateRoutineSplit:
		s.routine.DivisaoTreinos = text
		s.State = StateRoutineGoal
		b.sendWithKeyboard(chatID, "🎯 Objetivo do treino:", createCancelKeyboard())
	case StateRoutineGoal:
		s.routine.ObjetivoTreino = text
		s.State = StateRoutineDifficulty
		b.sendWithKeyboard(chatID, "Dificuldade:", createOptionsKeyboard(difficultyOptions))
	case StateRoutineDifficulty:
		s.routine.DificuldadeTreino = text
		s.State = StateRoutineStart
		b.sendWithKeyboard(chatID, "📅 Data de início (DD/MM/AAAA):", createCancelKeyboard())
	case StateRoutineStart:
		date, ok := parseDate(text)
		if !ok {
			b.sendError(chatID, "❌ Data inválida. Use o formato DD/MM/AAAA")
			return
		}
		s.routine.DataInicio = date
		s.State = StateRoutineEnd
		b.sendMessage(chatID, "📅 Data de término (DD/MM/AAAA):")
	case StateRoutineEnd:
		date, ok := parseDate(text)
		if !ok {
			b.sendError(chatID, "❌ Data inválida. Use o formato DD/MM/AAAA")
			return
		}
		s.routine.DataTermino = date
		form := s.routine
		s.resetDraft()

		ctx, cancel := b.opContext()
		defer cancel()

		if _, err := s.client.Roster().CreateRoutine(ctx, form); err != nil {
			b.reportFailure(chatID, err)
		}
		b.sendWithKeyboard(chatID, "Escolha uma opção:", createMainKeyboard(s.tipo))
	}
}

// selectRoutineThen offers the routines of the current student as a
// numbered list and continues with next once one is picked.
func (b *Bot) selectRoutineThen(chatID int64, s *UserSession, next afterSelection) {
	st := b.awaitRoster(s, s.routinesLoaded)
	if len(st.Routines) == 0 {
		b.sendWithKeyboard(chatID, "📭 Nenhuma rotina cadastrada", createMainKeyboard(s.tipo))
		return
	}

	labels := make([]string, len(st.Routines))
	s.choices = make([]string, len(st.Routines))
	for i, r := range st.Routines {
		labels[i] = r.Nome
		s.choices[i] = r.ID
	}
	s.State = StateSelectingRoutine
	s.next = next
	b.sendWithKeyboard(chatID, "📋 Escolha a rotina:", createOptionsKeyboard(numbered(labels)))
}

func (b *Bot) handleRoutineSelection(chatID int64, s *UserSession, text string) {
	st := s.client.Roster().State()
	labels := make([]string, 0, len(s.choices))
	for _, id := range s.choices {
		labels = append(labels, routineName(st.Routines, id))
	}
	i, ok := pickChoice(text, labels)
	if !ok {
		b.sendError(chatID, "❌ Escolha uma rotina da lista")
		return
	}

	id := s.choices[i]
	next := s.next
	s.resetDraft()
	if err := s.client.Roster().SelectRoutineByID(id); err != nil {
		b.reportFailure(chatID, err)
		return
	}
	b.log.Debug("routine selected", "chatId", chatID, "rotinaId", id)

	if next == startExercise {
		b.startNewExercise(chatID, s)
		return
	}
	b.showWorkouts(chatID, s)
}

func routineName(routines []models.Routine, id string) string {
	for _, r := range routines {
		if r.ID == id {
			return r.Nome
		}
	}
	return id
}

func (b *Bot) handleWorkouts(chatID int64, s *UserSession) {
	if s.client.Roster().State().SelectedStudent == nil {
		b.selectStudentThen(chatID, s, showWorkouts)
		return
	}
	b.selectRoutineThen(chatID, s, showWorkouts)
}

// showWorkouts prints the treinos of the selected routine grouped by muscle.
func (b *Bot) showWorkouts(chatID int64, s *UserSession) {
	st := b.awaitRoster(s, func(st service.RosterState) bool { return !st.Loading.Workouts })
	if st.SelectedRoutine == nil {
		b.sendError(chatID, "❌ Nenhuma rotina selecionada.")
		return
	}
	if len(st.Workouts) == 0 {
		b.sendWithKeyboard(chatID, fmt.Sprintf("📭 Nenhum treino em %s", st.SelectedRoutine.Nome), createMainKeyboard(s.tipo))
		return
	}

	var message strings.Builder
	message.WriteString(fmt.Sprintf("🏋️ %s\n", st.SelectedRoutine.Nome))
	for _, group := range models.GroupByMuscle(st.Workouts) {
		message.WriteString(fmt.Sprintf("\n💪 %s (%d)\n", group.Musculo, group.Exercise))
		for _, w := range group.Treinos {
			for _, entry := range w.Exercicios {
				for _, name := range entry.ExerciseNames() {
					d := entry[name]
					message.WriteString(fmt.Sprintf("• %s: %sx%s (%s)\n", name, d.Series, d.Reps, d.Divisao))
					if d.YoutubeLink != "" {
						message.WriteString(fmt.Sprintf("  🎬 %s\n", d.YoutubeLink))
					}
				}
			}
		}
	}
	b.sendWithKeyboard(chatID, message.String(), createMainKeyboard(s.tipo))
}
