package economy_test

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/fishing-bot/internal/common"
	"serotonyl.ru/fishing-bot/internal/config"
	"serotonyl.ru/fishing-bot/internal/db/sqlite"
	"serotonyl.ru/fishing-bot/internal/features/catalog"
	"serotonyl.ru/fishing-bot/internal/features/economy"
	"serotonyl.ru/fishing-bot/internal/features/loot"
	"serotonyl.ru/fishing-bot/internal/metrics"
)

func testConfig() *config.Config {
	return &config.Config{
		AppTimezone:       "Europe/Moscow",
		EconomyDailyBonus: 25,
		PlayerCacheSize:   100,
		PlayerCacheTTL:    time.Minute,
	}
}

func newService(t *testing.T) (*economy.Service, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "game.db"))
	require.NoError(t, err)
	t.Cleanup(store.Close)

	cat := catalog.Default()
	resolver := loot.NewResolverWithSource(cat, rand.NewPCG(42, 1024))
	return economy.NewService(store, cat, resolver, testConfig()), store
}

func newPlayer(t *testing.T, svc *economy.Service, id int64, coins int64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, svc.EnsurePlayer(ctx, id, "игрок"))
	if coins > 0 {
		_, err := svc.GrantPromoCoins(ctx, id, coins)
		require.NoError(t, err)
	}
}

func coinsOf(t *testing.T, svc *economy.Service, id int64) int64 {
	t.Helper()
	p, err := svc.Profile(context.Background(), id)
	require.NoError(t, err)
	return p.Coins
}

func TestCastThenSellNewPlayer(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	newPlayer(t, svc, 42, 0)

	cast, err := svc.Cast(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "lake", cast.Catch.Location)
	assert.Equal(t, int64(1), cast.Catch.Quantity)
	assert.Contains(t, []string{"Окунь", "Карась", "Щука", "Сом"}, cast.Catch.Fish)
	assert.Equal(t, cast.Catch.BasePrice, cast.Value)
	assert.Zero(t, coinsOf(t, svc, 42), "заброс не меняет баланс")

	inv, err := svc.Inventory(ctx, 42)
	require.NoError(t, err)
	require.Len(t, inv, 1)
	assert.Equal(t, cast.Catch.Fish, inv[0].Item)
	assert.Equal(t, int64(1), inv[0].Amount)

	sale, err := svc.SellAll(ctx, 42)
	require.NoError(t, err)
	want := svc.Catalog().PriceOf(cast.Catch.Fish)
	assert.Equal(t, want, sale.Total)
	assert.Equal(t, want, sale.Balance)
	assert.Equal(t, want, coinsOf(t, svc, 42))

	inv, err = svc.Inventory(ctx, 42)
	require.NoError(t, err)
	assert.Empty(t, inv)
}

func TestSellAllCreditsPreSaleTotal(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	newPlayer(t, svc, 1, 7)

	for i := 0; i < 25; i++ {
		_, err := svc.Cast(ctx, 1)
		require.NoError(t, err)
	}

	inv, err := svc.Inventory(ctx, 1)
	require.NoError(t, err)
	var expected int64
	for _, it := range inv {
		expected += svc.Catalog().PriceOf(it.Item) * it.Amount
	}
	before := coinsOf(t, svc, 1)

	sale, err := svc.SellAll(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, expected, sale.Total)

	var rewards int64
	for _, c := range sale.Completed {
		rewards += c.Reward
	}
	assert.Equal(t, before+expected+rewards, coinsOf(t, svc, 1))
	assert.Equal(t, before+expected+rewards, sale.Balance)

	inv, err = svc.Inventory(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, inv)
}

// Игровые операции не оставляют нулевых строк: чистка находит только
// строки, записанные в обход движка.
func TestGameplayLeavesNoEmptyInventoryRows(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	newPlayer(t, svc, 1, 0)
	newPlayer(t, svc, 2, 0)

	for i := 0; i < 5; i++ {
		_, err := svc.Cast(ctx, 1)
		require.NoError(t, err)
		_, err = svc.Cast(ctx, 2)
		require.NoError(t, err)
	}
	_, err := svc.SellAll(ctx, 1)
	require.NoError(t, err)

	n, err := svc.PruneEmptyInventory(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	inv, err := svc.Inventory(ctx, 2)
	require.NoError(t, err)
	for _, it := range inv {
		assert.Positive(t, it.Amount, it.Item)
	}
}

func TestSellAllEmptyInventory(t *testing.T) {
	svc, _ := newService(t)
	newPlayer(t, svc, 1, 3)

	sale, err := svc.SellAll(context.Background(), 1)
	require.NoError(t, err)
	assert.Zero(t, sale.Total)
	assert.Empty(t, sale.Items)
	assert.Equal(t, int64(3), sale.Balance)
}

func TestBuyRodInsufficientFunds(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	newPlayer(t, svc, 42, 0)
	before := testutil.ToFloat64(metrics.Purchases.WithLabelValues("wood", "insufficient"))

	_, err := svc.BuyRod(ctx, 42, "wood")
	require.ErrorIs(t, err, common.ErrInsufficientFunds)

	p, err := svc.Profile(ctx, 42)
	require.NoError(t, err)
	assert.Zero(t, p.Coins)
	assert.Equal(t, "bamboo", p.Rod)

	list, err := svc.Purchases(ctx, 42, 10)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.Purchases.WithLabelValues("wood", "insufficient")))
}

func TestBuyRodExactFunds(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	newPlayer(t, svc, 42, 50)

	res, err := svc.BuyRod(ctx, 42, "wood")
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Balance)
	assert.Equal(t, "wood", res.Rod.ID)

	p, err := svc.Profile(ctx, 42)
	require.NoError(t, err)
	assert.Zero(t, p.Coins)
	assert.Equal(t, "wood", p.Rod)

	list, err := svc.Purchases(ctx, 42, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "wood", list[0].Item)
	assert.Equal(t, int64(50), list[0].Price)
}

func TestBuyRodUnknown(t *testing.T) {
	svc, _ := newService(t)
	newPlayer(t, svc, 1, 1000)

	_, err := svc.BuyRod(context.Background(), 1, "spinning")
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	assert.Equal(t, int64(1000), coinsOf(t, svc, 1))
}

func TestBuyRodConcurrentExactlyOneSucceeds(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	newPlayer(t, svc, 9, 50)

	const attempts = 12
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, poor int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.BuyRod(ctx, 9, "wood")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, common.ErrInsufficientFunds):
				poor++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, attempts-1, poor)
	assert.Zero(t, coinsOf(t, svc, 9))

	list, err := svc.Purchases(ctx, 9, 100)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRebuyOwnedRodChargesAgain(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	newPlayer(t, svc, 3, 100)

	_, err := svc.BuyRod(ctx, 3, "wood")
	require.NoError(t, err)
	res, err := svc.BuyRod(ctx, 3, "wood")
	require.NoError(t, err)

	// вторая покупка закрывает квест collector (2 удочки, +50)
	require.Len(t, res.Completed, 1)
	assert.Equal(t, "collector", res.Completed[0].Quest.ID)
	assert.Equal(t, int64(50), res.Balance)
	assert.Equal(t, int64(50), coinsOf(t, svc, 3))

	list, err := svc.Purchases(ctx, 3, 10)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestGrantQuestProgressRewardsOnce(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	newPlayer(t, svc, 5, 0)

	r, err := svc.GrantQuestProgress(ctx, 5, "catch_10", 4)
	require.NoError(t, err)
	assert.Nil(t, r)

	r, err = svc.GrantQuestProgress(ctx, 5, "catch_10", 100)
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, int64(30), r.Reward)

	for i := 0; i < 5; i++ {
		r, err = svc.GrantQuestProgress(ctx, 5, "catch_10", 3)
		require.NoError(t, err)
		assert.Nil(t, r)
	}
	assert.Equal(t, int64(30), coinsOf(t, svc, 5))

	views, err := svc.Quests(ctx, 5)
	require.NoError(t, err)
	for _, v := range views {
		if v.Quest.ID == "catch_10" {
			assert.True(t, v.Completed)
			assert.Equal(t, int64(10), v.Progress, "прогресс не выше цели")
		}
	}
}

func TestGrantQuestProgressHugeDeltaClampsToTarget(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	newPlayer(t, svc, 7, 0)

	_, err := svc.GrantQuestProgress(ctx, 7, "catch_100", 5)
	require.NoError(t, err)
	r, err := svc.GrantQuestProgress(ctx, 7, "catch_100", math.MaxInt64)
	require.NoError(t, err)
	require.NotNil(t, r)

	views, err := svc.Quests(ctx, 7)
	require.NoError(t, err)
	for _, v := range views {
		if v.Quest.ID == "catch_100" {
			assert.True(t, v.Completed)
			assert.Equal(t, v.Quest.Target, v.Progress)
		}
	}
}

func TestGrantQuestProgressInvalid(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	newPlayer(t, svc, 5, 0)

	_, err := svc.GrantQuestProgress(ctx, 5, "no_such_quest", 1)
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = svc.GrantQuestProgress(ctx, 5, "catch_10", 0)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestCastAdvancesCatchQuestAndLevel(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	newPlayer(t, svc, 6, 0)

	var completed []economy.QuestReward
	var last *economy.CastResult
	for i := 0; i < 10; i++ {
		res, err := svc.Cast(ctx, 6)
		require.NoError(t, err)
		completed = append(completed, res.Completed...)
		last = res
	}

	require.Len(t, completed, 1)
	assert.Equal(t, "catch_10", completed[0].Quest.ID)
	assert.Equal(t, int64(30), coinsOf(t, svc, 6))

	// 10 рыб × 10 xp = 100 xp → уровень 2 ровно на последнем забросе
	assert.Equal(t, 2, last.Level)
	assert.True(t, last.LevelUp)

	p, err := svc.Profile(ctx, 6)
	require.NoError(t, err)
	assert.Equal(t, int64(100), p.XP)
}

func TestRodBonusIncreasesQuantity(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	newPlayer(t, svc, 8, 250)

	_, err := svc.BuyRod(ctx, 8, "carbon")
	require.NoError(t, err)

	res, err := svc.Cast(ctx, 8)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Catch.Quantity)
	assert.Equal(t, res.Catch.BasePrice*3, res.Value)
}

func TestSetLocationPersists(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	newPlayer(t, svc, 2, 0)

	loc, err := svc.SetLocation(ctx, 2, "river")
	require.NoError(t, err)
	assert.Equal(t, "river", loc.ID)

	for i := 0; i < 5; i++ {
		res, err := svc.Cast(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, "river", res.Catch.Location)
	}

	_, err = svc.SetLocation(ctx, 2, "atlantis")
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	p, err := svc.Profile(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "river", p.Location)
}

func TestEnsurePlayerIdempotent(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.EnsurePlayer(ctx, 77, "Петя"))
	first, err := svc.Profile(ctx, 77)
	require.NoError(t, err)

	require.NoError(t, svc.EnsurePlayer(ctx, 77, "Петя"))
	require.NoError(t, svc.EnsurePlayer(ctx, 77, ""))
	second, err := svc.Profile(ctx, 77)
	require.NoError(t, err)

	assert.Equal(t, first.Coins, second.Coins)
	assert.Equal(t, first.XP, second.XP)
	assert.Equal(t, first.Level, second.Level)
	assert.Equal(t, first.Rod, second.Rod)
	assert.Equal(t, "Петя", second.Username)

	require.NoError(t, svc.EnsurePlayer(ctx, 77, "Пётр"))
	third, err := svc.Profile(ctx, 77)
	require.NoError(t, err)
	assert.Equal(t, "Пётр", third.Username)
}

func TestClaimDailyOncePerLocalDay(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	newPlayer(t, svc, 4, 0)

	// 20:00 UTC = 23:00 по Москве, 1 января
	evening := time.Date(2026, 1, 1, 20, 0, 0, 0, time.UTC)
	res, err := svc.ClaimDaily(ctx, 4, evening)
	require.NoError(t, err)
	assert.Equal(t, int64(25), res.Bonus)
	assert.Equal(t, int64(25), res.Balance)

	_, err = svc.ClaimDaily(ctx, 4, evening.Add(30*time.Minute))
	assert.ErrorIs(t, err, common.ErrDailyAlreadyClaimed)

	// 22:00 UTC — в Москве уже 2 января
	res, err = svc.ClaimDaily(ctx, 4, evening.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(50), res.Balance)
	assert.Equal(t, int64(50), coinsOf(t, svc, 4))
}

func TestGrantPromoCoins(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	newPlayer(t, svc, 1, 0)

	balance, err := svc.GrantPromoCoins(ctx, 1, 500)
	require.NoError(t, err)
	assert.Equal(t, int64(500), balance)

	// повторное подтверждение просто начисляет ещё раз
	balance, err = svc.GrantPromoCoins(ctx, 1, 500)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), balance)

	_, err = svc.GrantPromoCoins(ctx, 1, 0)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestLeaderboardOrder(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	newPlayer(t, svc, 1, 10)
	newPlayer(t, svc, 2, 300)
	newPlayer(t, svc, 3, 10)
	newPlayer(t, svc, 4, 0)

	top, err := svc.Leaderboard(ctx, 3)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, []int64{2, 1, 3}, []int64{top[0].ID, top[1].ID, top[2].ID})

	_, err = svc.Leaderboard(ctx, 0)
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	st, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), st.Players)
	assert.Equal(t, int64(320), st.CoinsInCirculation)
}

func TestLeaderboardTieKeepsRegistrationOrder(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	newPlayer(t, svc, 900, 10)
	newPlayer(t, svc, 100, 10)

	top, err := svc.Leaderboard(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, []int64{900, 100}, []int64{top[0].ID, top[1].ID})
}

func TestUnknownPlayerNotFound(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Cast(ctx, 999)
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = svc.SellAll(ctx, 999)
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = svc.Profile(ctx, 999)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestStoreFailureIsUnavailable(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	newPlayer(t, svc, 1, 0)
	store.Close()

	_, err := svc.Cast(ctx, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrStoreUnavailable)
	assert.False(t, common.IsGameError(err))
}
