package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice2order/constants"
	"github.com/joseph-ayodele/invoice2order/internal/common"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), common.DatabaseConfig{
		Driver:      "sqlite",
		DSN:         "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		DialTimeout: time.Second,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(nil) })
	require.NoError(t, db.Migrate(context.Background()))
	require.NoError(t, db.Migrate(context.Background()), "migrate is repeatable")
	return db
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewRunRepository(openTestDB(t), nil)

	run := &Run{DocumentID: "abc-p1", Source: "/in/a.pdf", ContentHash: "abc", Status: constants.RunStatusRunning}
	require.NoError(t, repo.Create(ctx, run))
	require.NotEmpty(t, run.ID)

	run.Status = constants.RunStatusMapped
	run.Stage = "map"
	run.OrderID = "INV-1"
	run.IdempotencyKey = "key-1"
	run.WarningCount = 2
	run.Payload = `{"order_id":"INV-1"}`
	require.NoError(t, repo.Update(ctx, run))

	got, err := repo.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.RunStatusMapped, got.Status)
	assert.Equal(t, "INV-1", got.OrderID)
	assert.Equal(t, 2, got.WarningCount)
	assert.Equal(t, `{"order_id":"INV-1"}`, got.Payload)
	assert.Equal(t, "/in/a.pdf", got.Source)
	assert.WithinDuration(t, run.CreatedAt, got.CreatedAt, time.Second)
}

func TestRunNotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewRunRepository(openTestDB(t), nil)

	_, err := repo.Get(ctx, "missing")
	assert.True(t, errors.Is(err, common.ErrNotFound))

	err = repo.Update(ctx, &Run{ID: "missing", Status: constants.RunStatusFailed})
	assert.True(t, errors.Is(err, common.ErrNotFound))

	_, err = repo.FindMappedByIdempotencyKey(ctx, "")
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestFindMapped(t *testing.T) {
	ctx := context.Background()
	repo := NewRunRepository(openTestDB(t), nil)

	rejected := &Run{DocumentID: "d1", ContentHash: "h1", IdempotencyKey: "k1", Status: constants.RunStatusRejected}
	require.NoError(t, repo.Create(ctx, rejected))
	_, err := repo.FindMappedByIdempotencyKey(ctx, "k1")
	assert.True(t, errors.Is(err, common.ErrNotFound), "only mapped runs count")

	mapped := &Run{DocumentID: "d1", ContentHash: "h1", PageIndex: 1, IdempotencyKey: "k1", Status: constants.RunStatusMapped}
	require.NoError(t, repo.Create(ctx, mapped))

	got, err := repo.FindMappedByIdempotencyKey(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, mapped.ID, got.ID)

	got, err = repo.FindMappedByContent(ctx, "h1", 1)
	require.NoError(t, err)
	assert.Equal(t, mapped.ID, got.ID)

	_, err = repo.FindMappedByContent(ctx, "h1", 0)
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestListRuns(t *testing.T) {
	ctx := context.Background()
	repo := NewRunRepository(openTestDB(t), nil)

	for i, st := range []constants.RunStatus{constants.RunStatusMapped, constants.RunStatusFailed, constants.RunStatusMapped} {
		require.NoError(t, repo.Create(ctx, &Run{DocumentID: string(rune('a' + i)), Status: st}))
	}

	all, err := repo.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	mapped, err := repo.List(ctx, ListFilter{Status: constants.RunStatusMapped})
	require.NoError(t, err)
	assert.Len(t, mapped, 2)

	limited, err := repo.List(ctx, ListFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	future, err := repo.List(ctx, ListFilter{Since: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	assert.Empty(t, future)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), common.DatabaseConfig{Driver: "mysql"}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
}
