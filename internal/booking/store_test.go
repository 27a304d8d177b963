package booking

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/dental-booking/internal/scheduling"
)

func sampleSession() *Session {
	s := NewSession("sess-1", "ana@example.com", at(8, 0))
	p := cleaning
	s.Procedure = &p
	s.DoctorID = drGomez.ID
	s.State = StateSlotPending
	s.Generation = 3
	s.Availability = morning()
	s.Pending = &scheduling.PendingSelection{Start: at(9, 0), End: at(9, 30)}
	return s
}

func storeContract(t *testing.T, store SessionStore) {
	ctx := context.Background()

	_, err := store.Load(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	want := sampleSession()
	require.NoError(t, store.Save(ctx, want))

	got, err := store.Load(ctx, want.ID)
	require.NoError(t, err)
	assert.Equal(t, want.PatientEmail, got.PatientEmail)
	assert.Equal(t, want.State, got.State)
	assert.Equal(t, want.Generation, got.Generation)
	assert.Equal(t, *want.Procedure, *got.Procedure)
	assert.True(t, want.Pending.Start.Equal(got.Pending.Start))
	assert.Len(t, got.Availability.OpenBlocks, 1)
	assert.Len(t, got.Availability.Booked, 1)

	// Loaded sessions are copies.
	got.State = StateIdle
	again, err := store.Load(ctx, want.ID)
	require.NoError(t, err)
	assert.Equal(t, StateSlotPending, again.State)

	unlock, err := store.Lock(ctx, want.ID)
	require.NoError(t, err)

	busyCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = store.Lock(busyCtx, want.ID)
	assert.Error(t, err, "lock is exclusive")

	other, err := store.Lock(ctx, "another-session")
	require.NoError(t, err, "locks are per session")
	other()

	unlock()
	relock, err := store.Lock(ctx, want.ID)
	require.NoError(t, err, "lock is released")
	relock()
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore(time.Hour))
}

func TestMemoryStore_Expires(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	clock := at(8, 0)
	store.now = func() time.Time { return clock }

	require.NoError(t, store.Save(context.Background(), sampleSession()))
	clock = clock.Add(2 * time.Minute)

	_, err := store.Load(context.Background(), "sess-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemoryStore_ExpiredSessionsReleaseLocks(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Minute)
	clock := at(8, 0)
	store.now = func() time.Time { return clock }

	require.NoError(t, store.Save(ctx, sampleSession()))
	unlock, err := store.Lock(ctx, "sess-1")
	require.NoError(t, err)
	unlock()
	stray, err := store.Lock(ctx, "never-saved")
	require.NoError(t, err)
	stray()
	require.Len(t, store.locks, 2)

	clock = clock.Add(2 * time.Minute)
	_, err = store.Load(ctx, "sess-1")
	require.ErrorIs(t, err, ErrSessionNotFound)
	assert.NotContains(t, store.locks, "sess-1")

	fresh := sampleSession()
	fresh.ID = "sess-2"
	require.NoError(t, store.Save(ctx, fresh))
	assert.Empty(t, store.locks)
}

func TestMemoryStore_HeldLockSurvivesEviction(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Minute)

	unlock, err := store.Lock(ctx, "busy")
	require.NoError(t, err)
	defer unlock()

	require.NoError(t, store.Save(ctx, sampleSession()))
	assert.Contains(t, store.locks, "busy")
}

func TestMemoryStore_LockGivesUpWhenBusy(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	unlock, err := store.Lock(context.Background(), "sess-1")
	require.NoError(t, err)
	defer unlock()

	_, err = store.Lock(context.Background(), "sess-1")
	assert.ErrorIs(t, err, ErrSessionBusy)
}

func newRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, ttl, nil), mr
}

func TestRedisStore(t *testing.T) {
	store, _ := newRedisStore(t, time.Hour)
	storeContract(t, store)
}

func TestRedisStore_TTL(t *testing.T) {
	store, mr := newRedisStore(t, 30*time.Minute)
	require.NoError(t, store.Save(context.Background(), sampleSession()))

	assert.Equal(t, 30*time.Minute, mr.TTL("booking:session:sess-1"))

	mr.FastForward(31 * time.Minute)
	_, err := store.Load(context.Background(), "sess-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisStore_UnlockOnlyReleasesOwnLock(t *testing.T) {
	store, mr := newRedisStore(t, time.Hour)
	ctx := context.Background()

	unlock, err := store.Lock(ctx, "sess-1")
	require.NoError(t, err)

	// Simulate the lock expiring and another replica taking it.
	mr.FastForward(lockTTL + time.Second)
	require.False(t, mr.Exists("booking:lock:sess-1"))
	otherUnlock, err := store.Lock(ctx, "sess-1")
	require.NoError(t, err)

	unlock()
	assert.True(t, mr.Exists("booking:lock:sess-1"), "stale holder must not release the new lock")

	otherUnlock()
	assert.False(t, mr.Exists("booking:lock:sess-1"))
}

func TestRedisStore_CorruptPayload(t *testing.T) {
	store, mr := newRedisStore(t, time.Hour)
	require.NoError(t, mr.Set("booking:session:bad", "{not json"))

	_, err := store.Load(context.Background(), "bad")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSessionNotFound)
}
