package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"personal-connect/internal/catalog"
	"personal-connect/internal/logger"
	"personal-connect/internal/models/config"
	"personal-connect/internal/notify"
	"personal-connect/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
)

// sender is the part of the Telegram API the handlers use.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Bot struct {
	api     sender
	botAPI  *tgbotapi.BotAPI
	clients service.ClientFactory
	catalog *catalog.Catalog
	log     *logger.Logger

	base context.Context
	stop context.CancelFunc

	// wait bounds how long a listing waits for the roster to load
	wait time.Duration

	userSessions map[int64]*UserSession // chatID -> session
	mu           sync.RWMutex
	wg           sync.WaitGroup
}

func NewBot(cfg config.BotConfig, clients service.ClientFactory, c *catalog.Catalog, log *logger.Logger) (*Bot, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("BOT_TOKEN не установлен в конфигурации")
	}

	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}
	api.Debug = cfg.Debug

	b := newBot(api, clients, c, log)
	b.botAPI = api
	b.log.Info("bot initialized", "username", api.Self.UserName, "debug", cfg.Debug)
	return b, nil
}

func newBot(api sender, clients service.ClientFactory, c *catalog.Catalog, log *logger.Logger) *Bot {
	base, stop := context.WithCancel(context.Background())
	return &Bot{
		api:          api,
		clients:      clients,
		catalog:      c,
		log:          log.With("service", "Bot"),
		base:         base,
		stop:         stop,
		userSessions: make(map[int64]*UserSession),
	}
}

// Start polls updates until Stop is called.
func (b *Bot) Start() error {
	if b.botAPI == nil {
		return fmt.Errorf("bot API is not configured")
	}
	b.log.Info("polling updates", "username", b.botAPI.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates, err := b.botAPI.GetUpdatesChan(u)
	if err != nil {
		return err
	}

	for {
		select {
		case <-b.base.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.wg.Add(1)
			go func(m *tgbotapi.Message) {
				defer b.wg.Done()
				b.handleMessage(m)
			}(update.Message)
		}
	}
}

// Stop ends polling, waits for handlers in flight and closes every chat
// client.
func (b *Bot) Stop() {
	b.stop()
	if b.botAPI != nil {
		b.botAPI.StopReceivingUpdates()
	}
	b.wg.Wait()

	b.mu.Lock()
	sessions := b.userSessions
	b.userSessions = make(map[int64]*UserSession)
	b.mu.Unlock()
	for _, s := range sessions {
		if s.client != nil {
			s.client.Close()
		}
	}
}

// clientFor returns the chat's client, creating one whose alerts are sent
// to the chat. Called with session.mu held.
func (b *Bot) clientFor(chatID int64, session *UserSession) service.Client {
	if session.client == nil {
		session.client = b.clients.NewClient(b.base, notify.Func(func(a notify.Alert) {
			b.sendAlert(chatID, a)
		}))
	}
	return session.client
}

func (b *Bot) send(msg tgbotapi.MessageConfig) {
	if _, err := b.api.Send(msg); err != nil {
		b.log.Warn("send message", "chatId", msg.ChatID, "error", err)
	}
}

func (b *Bot) sendMessage(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) sendError(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) sendAlert(chatID int64, a notify.Alert) {
	icon := "ℹ️"
	switch a.Kind {
	case notify.Success:
		icon = "✅"
	case notify.Error:
		icon = "❌"
	}
	b.sendMessage(chatID, fmt.Sprintf("%s %s\n%s", icon, a.Title, a.Body))
}

func (b *Bot) sendWithKeyboard(chatID int64, text string, keyboard interface{}) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = keyboard
	b.send(msg)
}
