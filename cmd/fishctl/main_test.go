package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/fishing-bot/internal/config"
	"serotonyl.ru/fishing-bot/internal/db/sqlite"
	"serotonyl.ru/fishing-bot/internal/features/catalog"
	"serotonyl.ru/fishing-bot/internal/features/economy"
	"serotonyl.ru/fishing-bot/internal/features/loot"
)

func sqliteOpener(t *testing.T) opener {
	t.Helper()
	color.NoColor = true
	path := filepath.Join(t.TempDir(), "game.db")
	cfg := &config.Config{
		AppTimezone:            "Europe/Moscow",
		EconomyLeaderboardSize: 10,
		PlayerCacheSize:        10,
		PlayerCacheTTL:         time.Minute,
	}
	return func(ctx context.Context) (*economy.Service, func(), error) {
		store, err := sqlite.Open(ctx, path)
		if err != nil {
			return nil, nil, err
		}
		cat := catalog.Default()
		return economy.NewService(store, cat, loot.NewResolver(cat), cfg), store.Close, nil
	}
}

func run(t *testing.T, open opener, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(open)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestMigrate(t *testing.T) {
	out, err := run(t, sqliteOpener(t), "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "актуальном")
}

func TestGrantAndTop(t *testing.T) {
	open := sqliteOpener(t)
	ctx := context.Background()

	svc, closeStore, err := open(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.EnsurePlayer(ctx, 42, "rybak"))
	require.NoError(t, svc.EnsurePlayer(ctx, 7, "karas"))
	closeStore()

	out, err := run(t, open, "grant", "coins", "42", "120")
	require.NoError(t, err)
	assert.Contains(t, out, "баланс 120")

	out, err = run(t, open, "top", "-n", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "  1. rybak")
	assert.Contains(t, out, "  2. karas")
}

func TestGrantQuest(t *testing.T) {
	open := sqliteOpener(t)
	ctx := context.Background()
	svc, closeStore, err := open(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.EnsurePlayer(ctx, 42, "rybak"))
	closeStore()

	out, err := run(t, open, "grant", "quest", "42", "catch_10", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "прогресс")

	out, err = run(t, open, "grant", "quest", "42", "catch_10", "20")
	require.NoError(t, err)
	assert.Contains(t, out, "награда 30")

	_, err = run(t, open, "grant", "quest", "42", "nope", "1")
	assert.Error(t, err)
}

func TestUserDump(t *testing.T) {
	open := sqliteOpener(t)
	ctx := context.Background()
	svc, closeStore, err := open(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.EnsurePlayer(ctx, 42, "rybak"))
	_, err = svc.GrantPromoCoins(ctx, 42, 50)
	require.NoError(t, err)
	_, err = svc.BuyRod(ctx, 42, "wood")
	require.NoError(t, err)
	closeStore()

	out, err := run(t, open, "user", "42")
	require.NoError(t, err)
	assert.Contains(t, out, "Игрок 42 rybak")
	assert.Contains(t, out, "Удочка:   wood")
	assert.Contains(t, out, "catch_10")
	assert.Contains(t, out, "wood       50")

	_, err = run(t, open, "user", "abc")
	assert.Error(t, err)

	_, err = run(t, open, "user", "404")
	assert.Error(t, err)
}
