package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"personal-connect/internal/logger"
	"personal-connect/internal/models/config"
)

// Mailer delivers a generated password to a freshly registered account.
type Mailer interface {
	SendPassword(ctx context.Context, to, password string) error
}

type httpMailer struct {
	endpoint string
	client   *http.Client
	log      *logger.Logger
}

type message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
}

// New posts to cfg.Endpoint. Without an endpoint mails are only logged.
func New(cfg config.MailConfig, log *logger.Logger) Mailer {
	log = log.With("service", "Mailer")
	if cfg.Endpoint == "" {
		return &logMailer{log: log}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &httpMailer{endpoint: cfg.Endpoint, client: &http.Client{Timeout: timeout}, log: log}
}

func Subject(password string) string {
	return "Olá! Sua senha gerada é: " + password
}

func (m *httpMailer) SendPassword(ctx context.Context, to, password string) error {
	body, err := json.Marshal(message{To: to, Subject: Subject(password)})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build mail request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("send mail: unexpected status %d", resp.StatusCode)
	}
	m.log.Info("password mail sent", "to", to)
	return nil
}

type logMailer struct {
	log *logger.Logger
}

func (m *logMailer) SendPassword(_ context.Context, to, _ string) error {
	m.log.Warn("MAIL_ENDPOINT not set, password mail skipped", "to", to)
	return nil
}
