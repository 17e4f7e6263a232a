package service_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whiteboard/internal/domain"
	"whiteboard/internal/service"
	"whiteboard/internal/storage"
)

func TestHistoryPruner_RunOnce(t *testing.T) {
	db, err := storage.New(storage.MemoryPath)
	require.NoError(t, err)
	defer db.Close()
	store := storage.NewHistoryStore(db)

	for i := 0; i < 6; i++ {
		require.NoError(t, store.AppendMessage(&domain.Message{
			ID: fmt.Sprintf("m%d", i), SessionID: "s", Role: domain.RoleUser, Content: "x",
		}))
	}

	em := &service.MockEmitter{}
	p := service.NewHistoryPruner(store, 4, em, nil)
	n, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Len(t, em.Named(service.EventHistoryPrune), 1)

	p.SetKeep(1)
	n, err = p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestHistoryPruner_Schedule(t *testing.T) {
	db, err := storage.New(storage.MemoryPath)
	require.NoError(t, err)
	defer db.Close()

	p := service.NewHistoryPruner(storage.NewHistoryStore(db), 10, nil, nil)
	assert.Error(t, p.Start("not a schedule"))
	require.NoError(t, p.Start("@every 1h"))
	require.NoError(t, p.Start("0 3 * * *"))
	p.Stop(context.Background())
}
