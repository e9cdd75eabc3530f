package admin

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serotonyl.ru/fishing-bot/internal/common"
	"serotonyl.ru/fishing-bot/internal/config"
	"serotonyl.ru/fishing-bot/internal/features/economy"
)

type fakeEconomy struct {
	players   []economy.Player // уже отсортированы как в хранилище
	inventory map[int64][]economy.InventoryEntry
	purchases map[int64][]economy.PurchaseRecord
}

func (f *fakeEconomy) Leaderboard(_ context.Context, limit int) ([]economy.Player, error) {
	if limit > len(f.players) {
		limit = len(f.players)
	}
	return f.players[:limit], nil
}

func (f *fakeEconomy) Profile(_ context.Context, id int64) (*economy.Player, error) {
	for _, p := range f.players {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, common.ErrNotFound
}

func (f *fakeEconomy) Inventory(_ context.Context, id int64) ([]economy.InventoryEntry, error) {
	return f.inventory[id], nil
}

func (f *fakeEconomy) Purchases(_ context.Context, id int64, _ int) ([]economy.PurchaseRecord, error) {
	return f.purchases[id], nil
}

func newFake() *fakeEconomy {
	day := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	return &fakeEconomy{
		players: []economy.Player{
			{ID: 2, Username: "b", Coins: 300, Level: 2, Rod: "wood", Location: "river", LastDaily: &day},
			{ID: 1, Username: "a", Coins: 10, Level: 1, Rod: "bamboo", Location: "lake"},
			{ID: 3, Username: "", Coins: 10, Level: 1, Rod: "bamboo", Location: "lake"},
		},
		inventory: map[int64][]economy.InventoryEntry{
			2: {{PlayerID: 2, Item: "Лещ", Amount: 4}},
		},
		purchases: map[int64][]economy.PurchaseRecord{
			2: {{ID: 1, PlayerID: 2, Item: "wood", Price: 50}},
		},
	}
}

func TestLeaderboardRequiresToken(t *testing.T) {
	svc := NewService(newFake(), &config.Config{AdminToken: "s3cret"})
	ctx := context.Background()

	_, err := svc.Leaderboard(ctx, Caller{Addr: "1.1.1.1", Token: "wrong"}, 10)
	assert.ErrorIs(t, err, common.ErrForbidden)

	_, err = svc.Leaderboard(ctx, Caller{Addr: "1.1.1.1"}, 10)
	assert.ErrorIs(t, err, common.ErrForbidden)

	top, err := svc.Leaderboard(ctx, Caller{Addr: "1.1.1.1", Token: "s3cret"}, 10)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, LeaderboardEntry{Rank: 1, UserID: 2, Username: "b", Coins: 300}, top[0])
	assert.Equal(t, 2, top[1].Rank)
	assert.Equal(t, int64(1), top[1].UserID)
	assert.Equal(t, 3, top[2].Rank)
}

func TestUserDump(t *testing.T) {
	svc := NewService(newFake(), &config.Config{AdminToken: "s3cret"})
	ctx := context.Background()
	c := Caller{Addr: "a", Token: "s3cret"}

	dump, err := svc.UserDump(ctx, c, 2)
	require.NoError(t, err)
	assert.Equal(t, "b", dump.Profile.Username)
	assert.Equal(t, int64(300), dump.Profile.Coins)
	require.NotNil(t, dump.Profile.LastDaily)
	assert.Equal(t, "2026-05-01", *dump.Profile.LastDaily)
	assert.Equal(t, []Item{{Item: "Лещ", Amount: 4}}, dump.Inventory)
	require.Len(t, dump.Purchases, 1)
	assert.Equal(t, int64(50), dump.Purchases[0].Price)

	dump, err = svc.UserDump(ctx, c, 1)
	require.NoError(t, err)
	assert.Nil(t, dump.Profile.LastDaily)
	assert.NotNil(t, dump.Inventory, "пустой инвентарь — пустой массив, не null")

	_, err = svc.UserDump(ctx, c, 404)
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = svc.UserDump(ctx, Caller{Addr: "a", Token: "nope"}, 2)
	assert.ErrorIs(t, err, common.ErrForbidden)
}

func TestHashedToken(t *testing.T) {
	hash, err := HashToken("letmein")
	require.NoError(t, err)
	assert.Contains(t, hash, "$argon2id$v=19$m=65536,t=3,p=2$")

	svc := NewService(newFake(), &config.Config{AdminTokenHash: hash})
	assert.NoError(t, svc.Authorize(Caller{Addr: "x", Token: "letmein"}))
	assert.ErrorIs(t, svc.Authorize(Caller{Addr: "x", Token: "letmeout"}), common.ErrForbidden)
}

func TestVerifyArgon2idRejectsGarbage(t *testing.T) {
	assert.False(t, verifyArgon2id("x", "not-a-hash"))
	assert.False(t, verifyArgon2id("x", "$bcrypt$v=19$m=1,t=1,p=1$AAAA$AAAA"))
	assert.False(t, verifyArgon2id("x", "$argon2id$v=19$m=oops$AAAA$AAAA"))
}

func TestNoSecretConfiguredDeniesAll(t *testing.T) {
	svc := NewService(newFake(), &config.Config{})
	assert.ErrorIs(t, svc.Authorize(Caller{Addr: "x", Token: ""}), common.ErrForbidden)
	assert.ErrorIs(t, svc.Authorize(Caller{Addr: "x", Token: "anything"}), common.ErrForbidden)
}

func TestTooManyFailedAttempts(t *testing.T) {
	svc := NewService(newFake(), &config.Config{AdminToken: "s3cret"})

	for i := 0; i < maxFailedAttempts; i++ {
		assert.ErrorIs(t, svc.Authorize(Caller{Addr: "evil", Token: "guess"}), common.ErrForbidden)
	}
	// даже верный токен с этого адреса пока не принимаем
	assert.ErrorIs(t, svc.Authorize(Caller{Addr: "evil", Token: "s3cret"}), common.ErrTooManyAttempts)
	// другие адреса не страдают
	assert.NoError(t, svc.Authorize(Caller{Addr: "good", Token: "s3cret"}))
}

func TestFailedAttemptsCountedUnderConcurrency(t *testing.T) {
	svc := NewService(newFake(), &config.Config{AdminToken: "s3cret"})

	var forbidden, limited atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			switch err := svc.Authorize(Caller{Addr: "evil", Token: "guess"}); {
			case errors.Is(err, common.ErrForbidden):
				forbidden.Add(1)
			case errors.Is(err, common.ErrTooManyAttempts):
				limited.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(maxFailedAttempts), forbidden.Load())
	assert.Equal(t, int32(50-maxFailedAttempts), limited.Load())
}

func TestSuccessfulLoginDoesNotConsumeAttempts(t *testing.T) {
	svc := NewService(newFake(), &config.Config{AdminToken: "s3cret"})

	for i := 0; i < 2*maxFailedAttempts; i++ {
		require.NoError(t, svc.Authorize(Caller{Addr: "ops", Token: "s3cret"}))
	}
	for i := 0; i < maxFailedAttempts-1; i++ {
		assert.ErrorIs(t, svc.Authorize(Caller{Addr: "ops", Token: "guess"}), common.ErrForbidden)
	}
	assert.NoError(t, svc.Authorize(Caller{Addr: "ops", Token: "s3cret"}))
}
