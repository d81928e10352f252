package bot

import (
	"strings"

	"personal-connect/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
)

// handleLoginCommand signs the chat in. want is empty for /login, where the
// stored type decides the menu.
func (b *Bot) handleLoginCommand(chatID int64, s *UserSession, args string, want models.UserType) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		if want == models.UserTypeAluno {
			b.sendError(chatID, "Uso: /aluno <email> <senha>")
		} else {
			b.sendError(chatID, "Uso: /login <email> <senha>")
		}
		return
	}

	ctx, cancel := b.opContext()
	defer cancel()

	client := b.clientFor(chatID, s)
	if want != "" {
		if client.Session().SignInAs(ctx, fields[0], fields[1], want) == nil {
			return
		}
	} else if client.Session().SignIn(ctx, fields[0], fields[1]) == nil {
		return
	}

	tipo, err := client.Session().Type(ctx)
	if err != nil || !tipo.Valid() {
		b.log.Warn("user type lookup", "chatId", chatID, "error", err)
		tipo = models.UserTypePersonal
	}
	s.tipo = tipo
	s.resetDraft()
	b.log.Info("chat signed in", "chatId", chatID, "type", string(tipo))
	b.sendWelcomeMessage(chatID, s)
}

func (b *Bot) handleSignUpCommand(chatID int64, s *UserSession) {
	s.resetDraft()
	s.State = StateSignUpName
	b.sendWithKeyboard(chatID, "📝 Cadastro de personal trainer\n\nQual é o seu nome?", createCancelKeyboard())
}

func (b *Bot) handleSignUpStep(chatID int64, s *UserSession, text string) {
	switch s.State {
	case StateSignUpName:
		s.signUp.Nome = text
		s.State = StateSignUpEmail
		b.sendMessage(chatID, "📧 Informe o seu email:")
	case StateSignUpEmail:
		s.signUp.Email = text
		s.State = StateSignUpPassword
		b.sendMessage(chatID, "🔑 Escolha uma senha (mínimo 6 caracteres):")
	case StateSignUpPassword:
		s.signUp.Senha = text
		s.State = StateSignUpPhone
		b.sendMessage(chatID, "📱 Telefone com DDD:")
	case StateSignUpPhone:
		s.signUp.Telefone = text
		s.State = StateSignUpSex
		b.sendWithKeyboard(chatID, "Sexo:", createOptionsKeyboard(sexOptions))
	case StateSignUpSex:
		s.signUp.Sexo = text
		form := s.signUp
		s.resetDraft()

		ctx, cancel := b.opContext()
		defer cancel()

		client := b.clientFor(chatID, s)
		if _, err := client.Session().CreateUser(ctx, form); err != nil {
			b.reportFailure(chatID, err)
			b.sendWelcomeMessage(chatID, s)
			return
		}
		s.tipo = models.UserTypePersonal
		b.sendWelcomeMessage(chatID, s)
	}
}

func (b *Bot) handleLogout(chatID int64, s *UserSession) {
	if !signedIn(s) {
		b.sendMessage(chatID, "Você não está logado.")
		return
	}

	ctx, cancel := b.opContext()
	defer cancel()

	if err := s.client.Session().SignOut(ctx); err != nil {
		b.reportFailure(chatID, err)
		return
	}
	s.tipo = ""
	s.resetDraft()

	msg := tgbotapi.NewMessage(chatID, "👋 Até logo!")
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	b.send(msg)
}

func (b *Bot) handleResetCommand(chatID int64, s *UserSession, args string) {
	email := strings.TrimSpace(args)
	if email == "" {
		b.sendError(chatID, "Uso: /reset <email>")
		return
	}

	ctx, cancel := b.opContext()
	defer cancel()

	if err := b.clientFor(chatID, s).Session().SendPasswordReset(ctx, email); err != nil {
		b.reportFailure(chatID, err)
	}
}
