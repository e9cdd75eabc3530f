package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/fishing-bot/internal/db/storetest"
	"serotonyl.ru/fishing-bot/internal/features/economy"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "game.db"))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) economy.Store {
		return openTemp(t)
	})
}

func TestOpenTwiceKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "game.db")

	s, err := Open(ctx, path)
	require.NoError(t, err)
	_, err = s.EnsurePlayer(ctx, economy.NewPlayer{ID: 5, Username: "x", Rod: "bamboo", Location: "lake"})
	require.NoError(t, err)
	s.Close()

	// повторные миграции не падают, данные на месте
	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	p, err := s.GetPlayer(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "x", p.Username)
}

func TestOpenEmptyPath(t *testing.T) {
	_, err := Open(context.Background(), "")
	assert.Error(t, err)
}
