package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"personal-connect/internal/models"
	"personal-connect/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
)

const (
	operationTimeout = 30 * time.Second
	loadTimeout      = 3 * time.Second
)

// handleMessage routes one chat message: an open wizard first, then
// commands, then the menu buttons.
func (b *Bot) handleMessage(message *tgbotapi.Message) {
	if message == nil || message.Chat == nil {
		return
	}
	chatID := message.Chat.ID
	text := strings.TrimSpace(message.Text)

	session := b.getOrCreateSession(chatID)
	session.mu.Lock()
	defer session.mu.Unlock()

	if text == btnCancel {
		b.cancelOperation(chatID, session)
		return
	}

	if session.State != StateDefault {
		b.log.Debug("wizard step", "chatId", chatID, "state", int(session.State))
		switch session.State {
		case StateSignUpName, StateSignUpEmail, StateSignUpPassword, StateSignUpPhone, StateSignUpSex:
			b.handleSignUpStep(chatID, session, text)
		case StateStudentName, StateStudentEmail, StateStudentPhone, StateStudentAge, StateStudentSex, StateStudentGroup:
			b.handleStudentStep(chatID, session, text)
		case StateSelectingStudent:
			b.handleStudentSelection(chatID, session, text)
		case StateSelectingRoutine:
			b.handleRoutineSelection(chatID, session, text)
		case StateRoutineName, StateRoutineSplit, StateRoutineGoal, StateRoutineDifficulty, StateRoutineStart, StateRoutineEnd:
			b.handleRoutineStep(chatID, session, text)
		case StateExerciseMuscle, StateExerciseName, StateExerciseSeries, StateExerciseReps, StateExerciseDay:
			b.handleExerciseStep(chatID, session, text)
		default:
			session.resetDraft()
		}
		return
	}

	if cmd, args, ok := parseCommand(text); ok {
		b.log.Debug("command", "chatId", chatID, "command", cmd)
		switch cmd {
		case "start":
			b.sendWelcomeMessage(chatID, session)
		case "login":
			b.handleLoginCommand(chatID, session, args, "")
		case "aluno":
			b.handleLoginCommand(chatID, session, args, models.UserTypeAluno)
		case "cadastro":
			b.handleSignUpCommand(chatID, session)
		case "logout":
			b.handleLogout(chatID, session)
		case "reset":
			b.handleResetCommand(chatID, session, args)
		default:
			b.sendWelcomeMessage(chatID, session)
		}
		return
	}

	if !signedIn(session) {
		b.sendWelcomeMessage(chatID, session)
		return
	}

	switch text {
	case btnStudents:
		b.trainerOnly(chatID, session, b.showStudents)
	case btnNewStudent:
		b.trainerOnly(chatID, session, b.startNewStudent)
	case btnRoutines:
		b.trainerOnly(chatID, session, func(chatID int64, s *UserSession) {
			b.selectStudentThen(chatID, s, showRoutines)
		})
	case btnNewRoutine:
		b.trainerOnly(chatID, session, b.handleNewRoutine)
	case btnWorkouts:
		b.trainerOnly(chatID, session, b.handleWorkouts)
	case btnNewExercise:
		b.trainerOnly(chatID, session, b.handleNewExercise)
	case btnMyRoutines:
		b.showRoutines(chatID, session)
	case btnMyWorkouts:
		b.selectRoutineThen(chatID, session, showWorkouts)
	case btnMyProfile:
		b.showOwnProfile(chatID, session)
	case btnLogout:
		b.handleLogout(chatID, session)
	default:
		b.sendWelcomeMessage(chatID, session)
	}
}

// parseCommand splits "/cmd@bot args" into its parts.
func parseCommand(text string) (cmd, args string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	head, rest, _ := strings.Cut(text[1:], " ")
	if i := strings.Index(head, "@"); i >= 0 {
		head = head[:i]
	}
	return strings.ToLower(head), strings.TrimSpace(rest), head != ""
}

func signedIn(s *UserSession) bool {
	return s.client != nil && s.client.Session().Current() != nil
}

func (b *Bot) trainerOnly(chatID int64, s *UserSession, fn func(int64, *UserSession)) {
	if s.tipo != models.UserTypePersonal {
		b.sendError(chatID, "❌ Esta função está disponível apenas para personal trainers")
		return
	}
	fn(chatID, s)
}

func (b *Bot) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(b.base, operationTimeout)
}

func (b *Bot) sendWelcomeMessage(chatID int64, s *UserSession) {
	if !signedIn(s) {
		msg := tgbotapi.NewMessage(chatID, `💪 Bem-vindo ao Personal Connect!

/login <email> <senha> - entrar
/aluno <email> <senha> - entrar como aluno
/cadastro - criar conta de personal
/reset <email> - recuperar a senha`)
		msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
		b.send(msg)
		return
	}

	text := "💪 Olá, personal!\n\nEscolha uma opção:"
	if s.tipo == models.UserTypeAluno {
		text = "💪 Olá!\n\nEscolha uma opção:"
	}
	b.sendWithKeyboard(chatID, text, createMainKeyboard(s.tipo))
}

func (b *Bot) cancelOperation(chatID int64, s *UserSession) {
	s.resetDraft()
	msg := tgbotapi.NewMessage(chatID, "❌ Operação cancelada")
	if signedIn(s) {
		msg.ReplyMarkup = createMainKeyboard(s.tipo)
	} else {
		msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	}
	b.send(msg)
}

// reportFailure tells the chat about an error the services did not alert.
func (b *Bot) reportFailure(chatID int64, err error) {
	var verr *models.ValidationError
	var reported *service.ReportedError
	switch {
	case errors.As(err, &verr):
		lines := make([]string, 0, len(verr.Fields))
		for _, f := range verr.Fields {
			lines = append(lines, "⚠️ "+f.Message)
		}
		b.sendError(chatID, strings.Join(lines, "\n"))
	case errors.As(err, &reported):
		// the service already alerted the chat
	default:
		b.sendError(chatID, "❌ "+err.Error())
	}
}

// awaitRoster waits until cond holds for the roster state or the load
// timeout passes, and returns the last state seen.
func (b *Bot) awaitRoster(s *UserSession, cond func(service.RosterState) bool) service.RosterState {
	roster := s.client.Roster()
	st := roster.State()
	if cond(st) {
		return st
	}
	ctx, cancel := context.WithTimeout(b.base, b.loadWait())
	defer cancel()
	for range roster.Changes(ctx) {
		st = roster.State()
		if cond(st) {
			return st
		}
	}
	return roster.State()
}

func (b *Bot) loadWait() time.Duration {
	if b.wait > 0 {
		return b.wait
	}
	return loadTimeout
}

// pickChoice resolves "2", "2. Maria" or an exact label against the
// offered list.
func pickChoice(text string, labels []string) (int, bool) {
	head := text
	if i := strings.IndexAny(text, ". "); i > 0 {
		head = text[:i]
	}
	if n, err := strconv.Atoi(head); err == nil && n >= 1 && n <= len(labels) {
		return n - 1, true
	}
	for i, l := range labels {
		if strings.EqualFold(l, text) {
			return i, true
		}
	}
	return 0, false
}

func numbered(labels []string) []string {
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = strconv.Itoa(i+1) + ". " + l
	}
	return out
}

// parseDate accepts AAAA-MM-DD and DD/MM/AAAA.
func parseDate(text string) (string, bool) {
	for _, layout := range []string{models.DateLayout, "02/01/2006"} {
		if t, err := time.Parse(layout, strings.TrimSpace(text)); err == nil {
			return t.Format(models.DateLayout), true
		}
	}
	return "", false
}

func formatDate(date string) string {
	t, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return date
	}
	return t.Format("02/01/2006")
}
