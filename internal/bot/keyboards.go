package bot

import (
	"personal-connect/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
)

const (
	btnStudents    = "👥 Meus alunos"
	btnNewStudent  = "➕ Novo aluno"
	btnRoutines    = "📋 Rotinas"
	btnNewRoutine  = "🆕 Nova rotina"
	btnWorkouts    = "🏋️ Treinos"
	btnNewExercise = "➕ Exercício"
	btnMyRoutines  = "📋 Minhas rotinas"
	btnMyWorkouts  = "🏋️ Meus treinos"
	btnMyProfile   = "👤 Meu perfil"
	btnLogout      = "🚪 Sair"
	btnCancel      = "❌ Cancelar"
)

func createMainKeyboard(tipo models.UserType) tgbotapi.ReplyKeyboardMarkup {
	if tipo == models.UserTypeAluno {
		return createStudentMainKeyboard()
	}
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnStudents),
			tgbotapi.NewKeyboardButton(btnNewStudent),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnRoutines),
			tgbotapi.NewKeyboardButton(btnNewRoutine),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnWorkouts),
			tgbotapi.NewKeyboardButton(btnNewExercise),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnLogout),
		),
	)
}

func createStudentMainKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnMyRoutines),
			tgbotapi.NewKeyboardButton(btnMyWorkouts),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnMyProfile),
			tgbotapi.NewKeyboardButton(btnLogout),
		),
	)
}

func createCancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancel),
		),
	)
}

// createOptionsKeyboard puts each option on its own row, followed by cancel.
func createOptionsKeyboard(options []string) tgbotapi.ReplyKeyboardMarkup {
	var rows [][]tgbotapi.KeyboardButton
	for _, o := range options {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(o)))
	}
	rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(btnCancel)))
	return tgbotapi.NewReplyKeyboard(rows...)
}

var (
	sexOptions        = []string{"Masculino", "Feminino"}
	groupOptions      = []string{"Presencial", "Online", "Híbrido"}
	splitOptions      = []string{"AB", "ABC", "ABCD", "ABCDE"}
	difficultyOptions = []string{"Iniciante", "Intermediário", "Avançado"}
	weekdayOptions    = []string{"segunda", "terça", "quarta", "quinta", "sexta", "sabado", "domingo"}
)
