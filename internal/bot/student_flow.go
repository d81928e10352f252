package bot

import (
	"fmt"
	"strings"

	"personal-connect/internal/models"
	"personal-connect/internal/service"
)

func (b *Bot) showStudents(chatID int64, s *UserSession) {
	st := b.awaitRoster(s, func(st service.RosterState) bool { return !st.Loading.Students })
	if len(st.Students) == 0 {
		if st.Loading.Students {
			b.sendMessage(chatID, "⏳ Carregando alunos...")
			return
		}
		b.sendMessage(chatID, "📭 Nenhum aluno cadastrado")
		return
	}

	var message strings.Builder
	message.WriteString("👥 Seus alunos:\n\n")
	for i, student := range st.Students {
		message.WriteString(fmt.Sprintf("%d. %s\n", i+1, student.Nome))
		message.WriteString(fmt.Sprintf("   📧 %s\n", student.Email))
		if student.Telefone != "" {
			message.WriteString(fmt.Sprintf("   📞 %s\n", student.Telefone))
		}
		if student.Grupo != "" {
			message.WriteString(fmt.Sprintf("   🏷 %s\n", student.Grupo))
		}
	}
	b.sendWithKeyboard(chatID, message.String(), createMainKeyboard(s.tipo))
}

func (b *Bot) startNewStudent(chatID int64, s *UserSession) {
	s.resetDraft()
	s.State = StateStudentName
	b.sendWithKeyboard(chatID, "➕ Novo aluno\n\nNome completo:", createCancelKeyboard())
}

func (b *Bot) handleStudentStep(chatID int64, s *UserSession, text string) {
	switch s.State {
	case StateStudentName:
		s.student.Nome = text
		s.State = StateStudentEmail
		b.sendMessage(chatID, "📧 Email do aluno:")
	case StateStudentEmail:
		s.student.Email = text
		s.State = StateStudentPhone
		b.sendMessage(chatID, "📞 Telefone (ou - para pular):")
	case StateStudentPhone:
		if text != "-" {
			s.student.Telefone = text
		}
		s.State = StateStudentAge
		b.sendMessage(chatID, "🎂 Idade:")
	case StateStudentAge:
		s.student.Idade = text
		s.State = StateStudentSex
		b.sendWithKeyboard(chatID, "Sexo:", createOptionsKeyboard(sexOptions))
	case StateStudentSex:
		s.student.Sexo = text
		s.State = StateStudentGroup
		b.sendWithKeyboard(chatID, "Grupo:", createOptionsKeyboard(groupOptions))
	case StateStudentGroup:
		s.student.Grupo = text
		form := s.student
		s.resetDraft()

		ctx, cancel := b.opContext()
		defer cancel()

		if _, err := s.client.Roster().RegisterStudent(ctx, form, nil); err != nil {
			b.reportFailure(chatID, err)
		}
		b.sendWithKeyboard(chatID, "Escolha uma opção:", createMainKeyboard(s.tipo))
	}
}

// selectStudentThen offers the students as a numbered list and continues
// with next once one is picked.
func (b *Bot) selectStudentThen(chatID int64, s *UserSession, next afterSelection) {
	st := b.awaitRoster(s, func(st service.RosterState) bool { return !st.Loading.Students })
	if len(st.Students) == 0 {
		b.sendMessage(chatID, "📭 Nenhum aluno cadastrado. Use "+btnNewStudent)
		return
	}

	labels := make([]string, len(st.Students))
	s.choices = make([]string, len(st.Students))
	for i, student := range st.Students {
		labels[i] = student.Nome
		s.choices[i] = student.ID
	}
	s.State = StateSelectingStudent
	s.next = next
	b.sendWithKeyboard(chatID, "👤 Escolha o aluno:", createOptionsKeyboard(numbered(labels)))
}

func (b *Bot) handleStudentSelection(chatID int64, s *UserSession, text string) {
	st := s.client.Roster().State()
	labels := make([]string, 0, len(s.choices))
	for _, id := range s.choices {
		labels = append(labels, studentName(st.Students, id))
	}
	i, ok := pickChoice(text, labels)
	if !ok {
		b.sendError(chatID, "❌ Escolha um aluno da lista")
		return
	}

	id := s.choices[i]
	next := s.next
	s.resetDraft()
	if err := s.client.Roster().SelectStudentByID(id); err != nil {
		b.reportFailure(chatID, err)
		return
	}
	b.log.Debug("student selected", "chatId", chatID, "alunoId", id)

	switch next {
	case showRoutines:
		b.showRoutines(chatID, s)
	case startRoutine:
		b.startNewRoutine(chatID, s)
	case showWorkouts, startExercise:
		b.selectRoutineThen(chatID, s, next)
	}
}

func studentName(students []models.Student, id string) string {
	for _, student := range students {
		if student.ID == id {
			return student.Nome
		}
	}
	return id
}

func (b *Bot) showOwnProfile(chatID int64, s *UserSession) {
	st := b.awaitRoster(s, func(st service.RosterState) bool { return st.Profile != nil })
	if st.Profile == nil {
		b.sendMessage(chatID, "⏳ Perfil ainda não carregado")
		return
	}

	p := st.Profile
	var message strings.Builder
	message.WriteString("👤 Meu perfil\n\n")
	message.WriteString(fmt.Sprintf("Nome: %s\n", p.Nome))
	message.WriteString(fmt.Sprintf("Email: %s\n", p.Email))
	if p.Telefone != "" {
		message.WriteString(fmt.Sprintf("Telefone: %s\n", p.Telefone))
	}
	if p.Idade != "" {
		message.WriteString(fmt.Sprintf("Idade: %s\n", p.Idade))
	}
	if p.Grupo != "" {
		message.WriteString(fmt.Sprintf("Grupo: %s\n", p.Grupo))
	}
	b.sendWithKeyboard(chatID, message.String(), createMainKeyboard(s.tipo))
}
