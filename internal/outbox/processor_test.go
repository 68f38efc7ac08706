package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/keneth217/bank/internal/domain"
	"github.com/keneth217/bank/internal/infrastructure/database"
	"github.com/keneth217/bank/internal/infrastructure/database/databasetest"
	"github.com/keneth217/bank/internal/repository/outbox_repo"
)

type fakePublisher struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (p *fakePublisher) Produce(_ context.Context, key, _ string, _ []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.keys = append(p.keys, key)
	return nil
}

func (p *fakePublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys...)
}

func seedMessages(t *testing.T, repo outbox_repo.OutboxRepository, q domain.Querier, keys ...string) {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, key := range keys {
		require.NoError(t, repo.CreateMessageTx(context.Background(), q, &domain.OutboxMessage{
			ID:          "msg-" + key,
			AggregateID: "movement-" + key,
			MessageType: "ledger.movement.committed",
			Key:         key,
			Payload:     []byte(`{}`),
			CreatedAt:   base.Add(time.Duration(i) * time.Second),
		}))
	}
}

func TestProcessOncePublishesInOrder(t *testing.T) {
	db := databasetest.NewSQLite(t)
	repo := outbox_repo.NewOutboxRepository(database.SQLite)
	seedMessages(t, repo, db, "A", "B", "C")

	pub := &fakePublisher{}
	p := NewProcessor(db, repo, pub, Config{Topic: "ledger-events", BatchSize: 2}, zap.NewNop())

	sent, err := p.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sent)

	sent, err = p.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	sent, err = p.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sent)

	assert.Equal(t, []string{"A", "B", "C"}, pub.published())
	n, err := repo.CountByStatus(context.Background(), db, domain.OutboxStatusSent)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestProcessOnceMarksFailedAfterMaxAttempts(t *testing.T) {
	db := databasetest.NewSQLite(t)
	repo := outbox_repo.NewOutboxRepository(database.SQLite)
	seedMessages(t, repo, db, "A")

	pub := &fakePublisher{err: errors.New("broker unavailable")}
	p := NewProcessor(db, repo, pub, Config{Topic: "ledger-events", MaxAttempts: 3}, zap.NewNop())

	for i := 0; i < 3; i++ {
		sent, err := p.ProcessOnce(context.Background())
		require.NoError(t, err)
		assert.Zero(t, sent)
	}

	failed, err := repo.CountByStatus(context.Background(), db, domain.OutboxStatusFailed)
	require.NoError(t, err)
	assert.Equal(t, 1, failed)

	pending, err := repo.GetPendingMessages(context.Background(), db, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestStartStopsOnCancel(t *testing.T) {
	db := databasetest.NewSQLite(t)
	repo := outbox_repo.NewOutboxRepository(database.SQLite)
	seedMessages(t, repo, db, "A")

	pub := &fakePublisher{}
	p := NewProcessor(db, repo, pub, Config{Topic: "ledger-events", PollInterval: 5 * time.Millisecond}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(pub.published()) == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("processor did not stop after cancel")
	}
}
