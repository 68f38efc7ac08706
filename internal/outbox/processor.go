package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/keneth217/bank/internal/domain"
)

type OutboxRepository interface {
	GetPendingMessages(ctx context.Context, querier domain.Querier, limit int) ([]domain.OutboxMessage, error)
	MarkSentTx(ctx context.Context, querier domain.Querier, id string) error
	RecordFailureTx(ctx context.Context, querier domain.Querier, id string, cause string, maxAttempts int) error
}

// Publisher is satisfied by the Kafka producer.
type Publisher interface {
	Produce(ctx context.Context, key, topic string, value []byte) error
}

type Config struct {
	Topic        string
	PollInterval time.Duration
	PollTimeout  time.Duration
	BatchSize    int
	MaxAttempts  int
}

// Processor publishes committed ledger events. Each message is published at least once; after
// MaxAttempts failed publishes it is marked FAILED and left for inspection.
type Processor struct {
	db         *sql.DB
	outboxRepo OutboxRepository
	publisher  Publisher
	cfg        Config
	logger     *zap.Logger
}

func NewProcessor(db *sql.DB, outboxRepo OutboxRepository, publisher Publisher, cfg Config, logger *zap.Logger) *Processor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 500 * time.Millisecond
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	return &Processor{
		db:         db,
		outboxRepo: outboxRepo,
		publisher:  publisher,
		cfg:        cfg,
		logger:     logger,
	}
}

// Start polls until ctx is done.
func (p *Processor) Start(ctx context.Context) {
	p.logger.Info("Starting outbox processor...", zap.Duration("poll_interval", p.cfg.PollInterval))
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox processor stopped.")
			return
		case <-ticker.C:
			if _, err := p.ProcessOnce(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("Failed to process outbox messages", zap.Error(err))
			}
		}
	}
}

// ProcessOnce publishes one batch of pending messages and returns how many were sent.
func (p *Processor) ProcessOnce(ctx context.Context) (int, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin outbox transaction: %w", err)
	}
	defer tx.Rollback()

	queryCtx, cancel := context.WithTimeout(ctx, p.cfg.PollTimeout)
	messages, err := p.outboxRepo.GetPendingMessages(queryCtx, tx, p.cfg.BatchSize)
	cancel()
	if err != nil {
		return 0, err
	}
	if len(messages) == 0 {
		p.logger.Debug("No pending outbox messages found.")
		return 0, nil
	}
	p.logger.Debug("Found pending outbox messages", zap.Int("count", len(messages)))

	sent := 0
	for _, msg := range messages {
		if err := p.publisher.Produce(ctx, msg.Key, p.cfg.Topic, msg.Payload); err != nil {
			p.logger.Warn("Failed to publish outbox message",
				zap.String("message_id", msg.ID),
				zap.String("topic", p.cfg.Topic),
				zap.Int("attempt", msg.Attempts+1),
				zap.Error(err))
			if err := p.outboxRepo.RecordFailureTx(ctx, tx, msg.ID, err.Error(), p.cfg.MaxAttempts); err != nil {
				return 0, err
			}
			if msg.Attempts+1 >= p.cfg.MaxAttempts {
				p.logger.Error("Outbox message marked as failed", zap.String("message_id", msg.ID))
			}
			continue
		}

		if err := p.outboxRepo.MarkSentTx(ctx, tx, msg.ID); err != nil {
			return 0, err
		}
		sent++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit outbox transaction: %w", err)
	}
	if sent > 0 {
		p.logger.Info("Outbox messages published", zap.Int("count", sent), zap.String("topic", p.cfg.Topic))
	}
	return sent, nil
}
