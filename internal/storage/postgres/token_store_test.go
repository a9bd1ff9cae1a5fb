package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"curve-launchpad/internal/domain"
	"curve-launchpad/internal/storage"
)

func createTestToken(mint string) *domain.Token {
	return domain.NewToken(mint, "Test Token", "TST", 1704067200000)
}

func createTestRecord(id, mint, sig string) *domain.TradeRecord {
	return &domain.TradeRecord{
		TradeID:           id,
		MintID:            mint,
		TraderID:          "trader-1",
		Kind:              domain.TradeKindBuy,
		TokenAmount:       100,
		SolAmount:         50,
		ExternalSignature: sig,
		CreatedAt:         1704067200000,
	}
}

func TestTokenStore_InsertAndGetByMint(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTokenStore(pool)

	tok := createTestToken("mint-1")
	require.NoError(t, store.Insert(ctx, tok))

	got, err := store.GetByMint(ctx, "mint-1")
	require.NoError(t, err)

	assert.Equal(t, tok.MintID, got.MintID)
	assert.Equal(t, tok.Name, got.Name)
	assert.Equal(t, tok.Symbol, got.Symbol)
	assert.Equal(t, domain.DefaultSolReserves, got.SolReserves)
	assert.Equal(t, domain.DefaultTokenReserves, got.TokenReserves)
	assert.Equal(t, domain.DefaultTotalSupply, got.TotalSupply)
	assert.Equal(t, domain.StatusActive, got.Status)
	assert.True(t, got.IsActive)
	assert.False(t, got.MigrationExecuted)
	assert.Nil(t, got.PoolReference)
	assert.Nil(t, got.MigrationTimestamp)
}

func TestTokenStore_InsertDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTokenStore(pool)

	require.NoError(t, store.Insert(ctx, createTestToken("mint-1")))

	err := store.Insert(ctx, createTestToken("mint-1"))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestTokenStore_GetByMint_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTokenStore(pool)

	_, err := store.GetByMint(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTokenStore_ApplyTrade(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTokenStore(pool)
	trades := NewTradeRecordStore(pool)

	tok := createTestToken("mint-1")
	require.NoError(t, store.Insert(ctx, tok))

	upd := storage.ReserveUpdate{
		MintID:            "mint-1",
		PrevSolReserves:   tok.SolReserves,
		PrevTokenReserves: tok.TokenReserves,
		NewSolReserves:    tok.SolReserves + 990,
		NewTokenReserves:  tok.TokenReserves - 100,
		VolumeDelta:       1000,
	}
	require.NoError(t, store.ApplyTrade(ctx, upd, createTestRecord("t-1", "mint-1", "sig-1")))

	got, err := store.GetByMint(ctx, "mint-1")
	require.NoError(t, err)
	assert.Equal(t, upd.NewSolReserves, got.SolReserves)
	assert.Equal(t, upd.NewTokenReserves, got.TokenReserves)
	assert.Equal(t, int64(1000), got.TotalVolume)

	rec, err := trades.GetBySignature(ctx, "sig-1")
	require.NoError(t, err)
	assert.Equal(t, "t-1", rec.TradeID)
	assert.Equal(t, domain.TradeKindBuy, rec.Kind)
}

func TestTokenStore_ApplyTrade_StaleReservesConflict(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTokenStore(pool)

	tok := createTestToken("mint-1")
	require.NoError(t, store.Insert(ctx, tok))

	upd := storage.ReserveUpdate{
		MintID:            "mint-1",
		PrevSolReserves:   tok.SolReserves + 1, // stale read
		PrevTokenReserves: tok.TokenReserves,
		NewSolReserves:    tok.SolReserves + 990,
		NewTokenReserves:  tok.TokenReserves - 100,
		VolumeDelta:       1000,
	}
	err := store.ApplyTrade(ctx, upd, createTestRecord("t-1", "mint-1", "sig-1"))
	assert.ErrorIs(t, err, storage.ErrConflict)

	// Conflict must roll back the trade append as well.
	trades := NewTradeRecordStore(pool)
	_, err = trades.GetBySignature(ctx, "sig-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTokenStore_ApplyTrade_DuplicateSignature(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTokenStore(pool)
	trades := NewTradeRecordStore(pool)

	tok := createTestToken("mint-1")
	require.NoError(t, store.Insert(ctx, tok))

	upd := storage.ReserveUpdate{
		MintID:            "mint-1",
		PrevSolReserves:   tok.SolReserves,
		PrevTokenReserves: tok.TokenReserves,
		NewSolReserves:    tok.SolReserves + 990,
		NewTokenReserves:  tok.TokenReserves - 100,
		VolumeDelta:       1000,
	}
	require.NoError(t, store.ApplyTrade(ctx, upd, createTestRecord("t-1", "mint-1", "sig-1")))

	// Replay with the same signature against fresh reserves.
	upd2 := storage.ReserveUpdate{
		MintID:            "mint-1",
		PrevSolReserves:   upd.NewSolReserves,
		PrevTokenReserves: upd.NewTokenReserves,
		NewSolReserves:    upd.NewSolReserves + 990,
		NewTokenReserves:  upd.NewTokenReserves - 100,
		VolumeDelta:       1000,
	}
	err := store.ApplyTrade(ctx, upd2, createTestRecord("t-2", "mint-1", "sig-1"))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	got, err := store.GetByMint(ctx, "mint-1")
	require.NoError(t, err)
	assert.Equal(t, upd.NewSolReserves, got.SolReserves)
	assert.Equal(t, int64(1000), got.TotalVolume)

	count, err := trades.CountByMint(ctx, "mint-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestTokenStore_ApplyTrade_TradingDisabled(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTokenStore(pool)

	tok := createTestToken("mint-1")
	require.NoError(t, store.Insert(ctx, tok))

	res, err := store.LockForMigration(ctx, "mint-1")
	require.NoError(t, err)
	require.True(t, res.Locked)

	upd := storage.ReserveUpdate{
		MintID:            "mint-1",
		PrevSolReserves:   tok.SolReserves,
		PrevTokenReserves: tok.TokenReserves,
		NewSolReserves:    tok.SolReserves + 990,
		NewTokenReserves:  tok.TokenReserves - 100,
		VolumeDelta:       1000,
	}
	err = store.ApplyTrade(ctx, upd, createTestRecord("t-1", "mint-1", "sig-1"))
	assert.ErrorIs(t, err, storage.ErrTradingDisabled)
}

func TestTokenStore_ApplyTrade_UnknownMint(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTokenStore(pool)

	upd := storage.ReserveUpdate{
		MintID:            "missing",
		PrevSolReserves:   1,
		PrevTokenReserves: 1,
		NewSolReserves:    2,
		NewTokenReserves:  2,
	}
	err := store.ApplyTrade(context.Background(), upd, createTestRecord("t-1", "missing", "sig-1"))
	require.Error(t, err)
	// The foreign key fires before the guarded update, so any error is
	// acceptable as long as nothing was written.
	_, getErr := NewTradeRecordStore(pool).GetBySignature(context.Background(), "sig-1")
	assert.ErrorIs(t, getErr, storage.ErrNotFound)
}

func TestTokenStore_LockForMigration_OnlyFirstWins(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTokenStore(pool)

	require.NoError(t, store.Insert(ctx, createTestToken("mint-1")))

	res, err := store.LockForMigration(ctx, "mint-1")
	require.NoError(t, err)
	require.True(t, res.Locked)
	assert.Equal(t, domain.StatusMigrating, res.Token.Status)
	assert.False(t, res.Token.IsActive)
	assert.True(t, res.Token.MigrationExecuted)

	res2, err := store.LockForMigration(ctx, "mint-1")
	require.NoError(t, err)
	assert.False(t, res2.Locked)
}

func TestTokenStore_LockForMigration_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTokenStore(pool)

	_, err := store.LockForMigration(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTokenStore_FinalizeGraduation(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTokenStore(pool)

	require.NoError(t, store.Insert(ctx, createTestToken("mint-1")))

	// Finalize before the lock must report a state conflict.
	err := store.FinalizeGraduation(ctx, "mint-1", "pool-ref", 1704067300000)
	assert.ErrorIs(t, err, storage.ErrConflict)

	res, err := store.LockForMigration(ctx, "mint-1")
	require.NoError(t, err)
	require.True(t, res.Locked)

	require.NoError(t, store.FinalizeGraduation(ctx, "mint-1", "pool-ref", 1704067300000))

	got, err := store.GetByMint(ctx, "mint-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusGraduated, got.Status)
	require.NotNil(t, got.PoolReference)
	assert.Equal(t, "pool-ref", *got.PoolReference)
	require.NotNil(t, got.MigrationTimestamp)
	assert.Equal(t, int64(1704067300000), *got.MigrationTimestamp)
}

func TestTokenStore_ListUngraduated(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTokenStore(pool)

	a := createTestToken("mint-a")
	b := createTestToken("mint-b")
	b.CreatedAt = a.CreatedAt + 1000
	c := createTestToken("mint-c")
	c.CreatedAt = a.CreatedAt + 2000

	for _, tok := range []*domain.Token{a, b, c} {
		require.NoError(t, store.Insert(ctx, tok))
	}

	res, err := store.LockForMigration(ctx, "mint-c")
	require.NoError(t, err)
	require.True(t, res.Locked)
	require.NoError(t, store.FinalizeGraduation(ctx, "mint-c", "pool", 1))

	got, err := store.ListUngraduated(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "mint-a", got[0].MintID)
	assert.Equal(t, "mint-b", got[1].MintID)

	all, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
