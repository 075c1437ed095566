package flow

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nekogravitycat/futsal-booking-flow/internal/db"
	"github.com/nekogravitycat/futsal-booking-flow/internal/slot"
)

// testRepositoryContract runs the behaviour every draft store must share.
func testRepositoryContract(t *testing.T, repo Repository) {
	ctx := context.Background()
	key := Key{UserID: "42", SessionID: uuid.NewString(), Flow: TypeNew}

	_, err := repo.Get(ctx, key)
	assert.ErrorIs(t, err, ErrDraftNotFound)

	d := slotSelectionDraft(TypeNew, 10)
	d.UserID, d.SessionID = key.UserID, key.SessionID
	d.Overlay.Set(13, slot.StatusBooked)
	require.NoError(t, repo.Save(ctx, &d))
	assert.False(t, d.UpdatedAt.IsZero())

	got, err := repo.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, d.ReservedSlotIDs, got.ReservedSlotIDs)
	assert.Equal(t, d.OfferedShifts, got.OfferedShifts)
	assert.Equal(t, slot.StatusBooked, got.Overlay[13])
	assert.Len(t, got.Slots, len(d.Slots))

	// Same key with another flow type is a different draft
	_, err = repo.Get(ctx, Key{UserID: key.UserID, SessionID: key.SessionID, Flow: TypeUpdate})
	assert.ErrorIs(t, err, ErrDraftNotFound)

	d.Step = StepPayment
	require.NoError(t, repo.Save(ctx, &d))
	got, err = repo.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, StepPayment, got.Step)

	require.NoError(t, repo.Delete(ctx, key))
	require.NoError(t, repo.Delete(ctx, key))
	_, err = repo.Get(ctx, key)
	assert.ErrorIs(t, err, ErrDraftNotFound)
}

func TestPgxRepository(t *testing.T) {
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN is not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()
	require.NoError(t, db.Migrate(ctx, pool))

	repo := NewPgxRepository(pool)
	testRepositoryContract(t, repo)

	t.Run("purge removes only idle drafts", func(t *testing.T) {
		stale := Draft{UserID: "7", SessionID: uuid.NewString(), Flow: TypeNew, Step: StepDate}
		require.NoError(t, repo.Save(ctx, &stale))

		_, err := repo.PurgeExpired(ctx, time.Now().Add(-time.Hour))
		require.NoError(t, err)
		_, err = repo.Get(ctx, stale.Key())
		assert.NoError(t, err)

		n, err := repo.PurgeExpired(ctx, time.Now().Add(time.Minute))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, int64(1))
		_, err = repo.Get(ctx, stale.Key())
		assert.ErrorIs(t, err, ErrDraftNotFound)
	})

	t.Run("closed drafts are rejected by the schema", func(t *testing.T) {
		closedDraft := Draft{UserID: "7", SessionID: uuid.NewString(), Flow: TypeNew, Step: StepClosed}
		assert.ErrorIs(t, repo.Save(ctx, &closedDraft), ErrInvalidDraft)
	})
}

func TestRedisRepository(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR is not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	require.NoError(t, client.Ping(context.Background()).Err())

	testRepositoryContract(t, NewRedisRepository(client, time.Minute))

	t.Run("save slides the ttl", func(t *testing.T) {
		ctx := context.Background()
		repo := NewRedisRepository(client, time.Minute)
		d := Draft{UserID: "7", SessionID: uuid.NewString(), Flow: TypeNew, Step: StepDate}
		require.NoError(t, repo.Save(ctx, &d))
		defer repo.Delete(ctx, d.Key())

		ttl, err := client.TTL(ctx, redisKey(d.Key())).Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, 50*time.Second)
		assert.LessOrEqual(t, ttl, time.Minute)
	})
}

func TestRedisKeyScopesUserSessionAndFlow(t *testing.T) {
	assert.Equal(t, "flow:draft:42:abc:update", redisKey(Key{UserID: "42", SessionID: "abc", Flow: TypeUpdate}))
}

func TestRedisLocker(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR is not set")
	}

	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	require.NoError(t, client.Ping(ctx).Err())

	key := Key{UserID: "42", SessionID: uuid.NewString(), Flow: TypeNew}
	// Two lockers on one Redis behave like two replicas
	first := NewRedisLocker(client, time.Minute, zap.NewNop())
	second := NewRedisLocker(client, time.Minute, zap.NewNop())

	unlock, err := first.TryLock(ctx, key)
	require.NoError(t, err)
	_, err = second.TryLock(ctx, key)
	assert.ErrorIs(t, err, ErrBusy)

	unlock()
	unlock()
	unlock, err = second.TryLock(ctx, key)
	require.NoError(t, err)
	defer unlock()

	t.Run("stale unlock leaves a newer holder alone", func(t *testing.T) {
		other := Key{UserID: "42", SessionID: uuid.NewString(), Flow: TypeUpdate}
		staleUnlock, err := first.TryLock(ctx, other)
		require.NoError(t, err)

		// Simulate expiry and takeover by another replica
		require.NoError(t, client.Del(ctx, lockKey(other)).Err())
		newUnlock, err := second.TryLock(ctx, other)
		require.NoError(t, err)
		defer newUnlock()

		staleUnlock()
		_, err = first.TryLock(ctx, other)
		assert.ErrorIs(t, err, ErrBusy)
	})
}

func TestLockKeyScopesUserSessionAndFlow(t *testing.T) {
	assert.Equal(t, "flow:lock:42:abc:new", lockKey(Key{UserID: "42", SessionID: "abc", Flow: TypeNew}))
}
