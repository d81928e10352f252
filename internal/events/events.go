package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"personal-connect/internal/logger"
	"personal-connect/internal/models/config"

	"github.com/redis/go-redis/v9"
)

const (
	StudentCreated = "aluno.criado"
	StudentUpdated = "aluno.atualizado"
	RoutineCreated = "rotina.criada"
	WorkoutSaved   = "treino.salvo"
)

// Event announces a committed write.
type Event struct {
	Type       string    `json:"type"`
	PersonalID string    `json:"personalId,omitempty"`
	StudentID  string    `json:"alunoId,omitempty"`
	RoutineID  string    `json:"rotinaId,omitempty"`
	Musculo    string    `json:"musculo,omitempty"`
	At         time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

type redisPublisher struct {
	log     *logger.Logger
	rdb     *redis.Client
	channel string
}

// New returns a Redis pub/sub publisher, or a no-op one when no address is
// configured.
func New(cfg config.RedisConfig, log *logger.Logger) (Publisher, error) {
	if cfg.Addr == "" {
		return Noop{}, nil
	}
	channel := cfg.Channel
	if channel == "" {
		channel = "personal-connect"
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &redisPublisher{
		log:     log.With("service", "RedisEvents"),
		rdb:     rdb,
		channel: channel,
	}, nil
}

func (p *redisPublisher) Publish(ctx context.Context, ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, p.channel, raw).Err()
}

func (p *redisPublisher) Close() error {
	if p == nil || p.rdb == nil {
		return nil
	}
	return p.rdb.Close()
}

type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }

// Recorder is an in-process Publisher that keeps every event.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, ev Event) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Close() error { return nil }

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
