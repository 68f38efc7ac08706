package inbox_repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keneth217/bank/internal/domain"
	"github.com/keneth217/bank/internal/infrastructure/database/databasetest"
	"github.com/keneth217/bank/internal/repository/inbox_repo"
)

func TestCreateMessageRejectsReplay(t *testing.T) {
	db := databasetest.NewSQLite(t)
	repo := inbox_repo.NewInboxRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	msg := &domain.InboxMessage{
		ID:          "req-42",
		Operation:   domain.MovementTransfer,
		Status:      domain.InboxStatusProcessed,
		ReceivedAt:  now,
		ProcessedAt: &now,
	}
	require.NoError(t, repo.CreateMessageTx(ctx, db, msg))
	assert.ErrorIs(t, repo.CreateMessageTx(ctx, db, msg), domain.ErrDuplicateRequest)

	got, err := repo.GetMessageTx(ctx, db, "req-42")
	require.NoError(t, err)
	assert.Equal(t, domain.MovementTransfer, got.Operation)
	assert.Equal(t, domain.InboxStatusProcessed, got.Status)
	require.NotNil(t, got.ProcessedAt)

	_, err = repo.GetMessageTx(ctx, db, "req-missing")
	assert.ErrorIs(t, err, inbox_repo.ErrMessageNotFound)
}
