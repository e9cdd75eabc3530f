// Package storetest — общий набор тестов для реализаций economy.Store.
// Каждый бэкенд вызывает Run из своего _test.go.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/fishing-bot/internal/common"
	"serotonyl.ru/fishing-bot/internal/features/economy"
)

// Opener возвращает пустое хранилище с применённой схемой.
type Opener func(t *testing.T) economy.Store

// Run прогоняет все проверки хранилища.
func Run(t *testing.T, open Opener) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s economy.Store)
	}{
		{"EnsurePlayerDefaults", testEnsurePlayerDefaults},
		{"EnsurePlayerKeepsName", testEnsurePlayerKeepsName},
		{"LockMissingPlayer", testLockMissingPlayer},
		{"RollbackOnError", testRollbackOnError},
		{"NegativeBalanceRejected", testNegativeBalanceRejected},
		{"Inventory", testInventory},
		{"Quests", testQuests},
		{"Purchases", testPurchases},
		{"LastDaily", testLastDaily},
		{"TopPlayers", testTopPlayers},
		{"TopPlayersTieByRegistration", testTopPlayersTieByRegistration},
		{"StatsAndPrune", testStatsAndPrune},
		{"ConcurrentIncrements", testConcurrentIncrements},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, open(t))
		})
	}
}

func newPlayer(id int64, name string) economy.NewPlayer {
	return economy.NewPlayer{ID: id, Username: name, Rod: "bamboo", Location: "lake"}
}

func mustEnsure(t *testing.T, s economy.Store, id int64, name string) *economy.Player {
	t.Helper()
	p, err := s.EnsurePlayer(context.Background(), newPlayer(id, name))
	require.NoError(t, err)
	return p
}

func credit(t *testing.T, s economy.Store, id, coins int64) {
	t.Helper()
	err := s.InTx(context.Background(), id, func(tx economy.Tx) error {
		if _, err := tx.LockPlayer(context.Background()); err != nil {
			return err
		}
		return tx.AddCoins(context.Background(), coins)
	})
	require.NoError(t, err)
}

func testEnsurePlayerDefaults(t *testing.T, s economy.Store) {
	p := mustEnsure(t, s, 42, "рыбак")

	assert.Equal(t, int64(42), p.ID)
	assert.Equal(t, "рыбак", p.Username)
	assert.Zero(t, p.Coins)
	assert.Zero(t, p.XP)
	assert.Equal(t, 1, p.Level)
	assert.Equal(t, "bamboo", p.Rod)
	assert.Equal(t, "lake", p.Location)
	assert.Nil(t, p.LastDaily)
	assert.False(t, p.CreatedAt.IsZero())
}

func testEnsurePlayerKeepsName(t *testing.T, s economy.Store) {
	ctx := context.Background()
	mustEnsure(t, s, 1, "Вася")
	credit(t, s, 1, 30)

	p := mustEnsure(t, s, 1, "")
	assert.Equal(t, "Вася", p.Username, "пустое имя не затирает существующее")
	assert.Equal(t, int64(30), p.Coins)

	p = mustEnsure(t, s, 1, "Василий")
	assert.Equal(t, "Василий", p.Username)
	assert.Equal(t, int64(30), p.Coins)

	got, err := s.GetPlayer(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Василий", got.Username)
}

func testLockMissingPlayer(t *testing.T, s economy.Store) {
	err := s.InTx(context.Background(), 404, func(tx economy.Tx) error {
		_, err := tx.LockPlayer(context.Background())
		return err
	})
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = s.GetPlayer(context.Background(), 404)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func testRollbackOnError(t *testing.T, s economy.Store) {
	ctx := context.Background()
	mustEnsure(t, s, 7, "")
	boom := errors.New("boom")

	err := s.InTx(ctx, 7, func(tx economy.Tx) error {
		if _, err := tx.LockPlayer(ctx); err != nil {
			return err
		}
		if err := tx.AddCoins(ctx, 100); err != nil {
			return err
		}
		if err := tx.AddItem(ctx, "Окунь", 3); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	p, err := s.GetPlayer(ctx, 7)
	require.NoError(t, err)
	assert.Zero(t, p.Coins)

	items, err := s.GetInventory(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func testNegativeBalanceRejected(t *testing.T, s economy.Store) {
	ctx := context.Background()
	mustEnsure(t, s, 8, "")

	err := s.InTx(ctx, 8, func(tx economy.Tx) error {
		return tx.AddCoins(ctx, -1)
	})
	require.Error(t, err)

	p, err := s.GetPlayer(ctx, 8)
	require.NoError(t, err)
	assert.Zero(t, p.Coins)
}

func testInventory(t *testing.T, s economy.Store) {
	ctx := context.Background()
	mustEnsure(t, s, 9, "")

	err := s.InTx(ctx, 9, func(tx economy.Tx) error {
		if err := tx.AddItem(ctx, "Щука", 1); err != nil {
			return err
		}
		if err := tx.AddItem(ctx, "Окунь", 2); err != nil {
			return err
		}
		if err := tx.AddItem(ctx, "Окунь", 3); err != nil {
			return err
		}
		items, err := tx.Inventory(ctx)
		if err != nil {
			return err
		}
		assert.Len(t, items, 2)
		return nil
	})
	require.NoError(t, err)

	items, err := s.GetInventory(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, []economy.InventoryEntry{
		{PlayerID: 9, Item: "Окунь", Amount: 5},
		{PlayerID: 9, Item: "Щука", Amount: 1},
	}, items)

	err = s.InTx(ctx, 9, func(tx economy.Tx) error {
		return tx.ClearInventory(ctx)
	})
	require.NoError(t, err)

	items, err = s.GetInventory(ctx, 9)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func testQuests(t *testing.T, s economy.Store) {
	ctx := context.Background()
	mustEnsure(t, s, 10, "")

	err := s.InTx(ctx, 10, func(tx economy.Tx) error {
		q, err := tx.Quest(ctx, "first_catch")
		if err != nil {
			return err
		}
		assert.Equal(t, economy.QuestProgress{PlayerID: 10, QuestKey: "first_catch"}, q)

		q.Progress = 1
		q.Completed = true
		if err := tx.SaveQuest(ctx, q); err != nil {
			return err
		}
		return tx.SaveQuest(ctx, economy.QuestProgress{PlayerID: 10, QuestKey: "catch_50", Progress: 4})
	})
	require.NoError(t, err)

	quests, err := s.GetQuests(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []economy.QuestProgress{
		{PlayerID: 10, QuestKey: "catch_50", Progress: 4},
		{PlayerID: 10, QuestKey: "first_catch", Progress: 1, Completed: true},
	}, quests)
}

func testPurchases(t *testing.T, s economy.Store) {
	ctx := context.Background()
	mustEnsure(t, s, 11, "")

	for _, rod := range []string{"wood", "carbon"} {
		err := s.InTx(ctx, 11, func(tx economy.Tx) error {
			return tx.AppendPurchase(ctx, rod, 50)
		})
		require.NoError(t, err)
	}

	list, err := s.GetPurchases(ctx, 11, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "carbon", list[0].Item, "новые сверху")
	assert.Equal(t, "wood", list[1].Item)
	assert.Equal(t, int64(50), list[1].Price)
	assert.NotZero(t, list[0].ID)

	list, err = s.GetPurchases(ctx, 11, 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func testLastDaily(t *testing.T, s economy.Store) {
	ctx := context.Background()
	mustEnsure(t, s, 12, "")
	day := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)

	err := s.InTx(ctx, 12, func(tx economy.Tx) error {
		if err := tx.SetLastDaily(ctx, day); err != nil {
			return err
		}
		if err := tx.SetRod(ctx, "gold"); err != nil {
			return err
		}
		if err := tx.SetLocation(ctx, "sea"); err != nil {
			return err
		}
		return tx.SetProgress(ctx, 250, 3)
	})
	require.NoError(t, err)

	p, err := s.GetPlayer(ctx, 12)
	require.NoError(t, err)
	require.NotNil(t, p.LastDaily)
	assert.Equal(t, "2026-03-08", p.LastDaily.Format(time.DateOnly))
	assert.Equal(t, "gold", p.Rod)
	assert.Equal(t, "sea", p.Location)
	assert.Equal(t, int64(250), p.XP)
	assert.Equal(t, 3, p.Level)
}

func testTopPlayers(t *testing.T, s economy.Store) {
	ctx := context.Background()
	mustEnsure(t, s, 100, "a")
	mustEnsure(t, s, 50, "b")
	mustEnsure(t, s, 75, "c")
	mustEnsure(t, s, 25, "d")
	credit(t, s, 100, 10)
	credit(t, s, 50, 30)
	credit(t, s, 75, 10)

	top, err := s.TopPlayers(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 4)

	var names []string
	for _, p := range top {
		names = append(names, p.Username)
	}
	// при равных монетах — в порядке регистрации
	assert.Equal(t, []string{"b", "a", "c", "d"}, names)

	top, err = s.TopPlayers(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, top, 2)
}

// Равные монеты: порядок регистрации, а не порядок user_id.
func testTopPlayersTieByRegistration(t *testing.T, s economy.Store) {
	ctx := context.Background()
	mustEnsure(t, s, 900, "first")
	mustEnsure(t, s, 100, "second")
	mustEnsure(t, s, 500, "third")
	credit(t, s, 900, 10)
	credit(t, s, 100, 10)
	credit(t, s, 500, 10)

	// повторный EnsurePlayer не меняет место в очереди
	mustEnsure(t, s, 900, "first")

	top, err := s.TopPlayers(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, []int64{900, 100, 500}, []int64{top[0].ID, top[1].ID, top[2].ID})
}

func testStatsAndPrune(t *testing.T, s economy.Store) {
	ctx := context.Background()
	mustEnsure(t, s, 1, "")
	mustEnsure(t, s, 2, "")
	credit(t, s, 1, 40)
	credit(t, s, 2, 2)

	err := s.InTx(ctx, 1, func(tx economy.Tx) error {
		if err := tx.AddItem(ctx, "Окунь", 0); err != nil {
			return err
		}
		if err := tx.AddItem(ctx, "Сом", 1); err != nil {
			return err
		}
		return tx.AppendPurchase(ctx, "wood", 50)
	})
	require.NoError(t, err)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, economy.Stats{Players: 2, CoinsInCirculation: 42, Purchases: 1}, *st)

	n, err := s.PruneEmptyInventory(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	items, err := s.GetInventory(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []economy.InventoryEntry{{PlayerID: 1, Item: "Сом", Amount: 1}}, items)
}

// Параллельные транзакции одного игрока не теряют обновления.
func testConcurrentIncrements(t *testing.T, s economy.Store) {
	ctx := context.Background()
	mustEnsure(t, s, 13, "")

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.InTx(ctx, 13, func(tx economy.Tx) error {
				p, err := tx.LockPlayer(ctx)
				if err != nil {
					return err
				}
				if err := tx.SetProgress(ctx, p.XP+1, 1); err != nil {
					return err
				}
				return tx.AddItem(ctx, "Карась", 1)
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	p, err := s.GetPlayer(ctx, 13)
	require.NoError(t, err)
	assert.Equal(t, int64(workers), p.XP)

	items, err := s.GetInventory(ctx, 13)
	require.NoError(t, err)
	assert.Equal(t, []economy.InventoryEntry{{PlayerID: 13, Item: "Карась", Amount: workers}}, items)
}
