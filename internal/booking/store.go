package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// DefaultSessionTTL applies when a store is built with a non-positive TTL.
const DefaultSessionTTL = 2 * time.Hour

const (
	lockTTL        = 10 * time.Second
	lockAttempts   = 25
	lockRetryDelay = 20 * time.Millisecond
)

// SessionStore persists booking sessions. Lock serializes read-modify-write
// cycles on one session; the returned func releases it.
type SessionStore interface {
	Save(ctx context.Context, s *Session) error
	Load(ctx context.Context, id string) (*Session, error)
	Lock(ctx context.Context, id string) (func(), error)
}

// MemoryStore keeps sessions in process. Suitable for a single replica and tests.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]memoryEntry
	locks    map[string]*sync.Mutex
	ttl      time.Duration
	now      func() time.Time
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &MemoryStore{
		sessions: make(map[string]memoryEntry),
		locks:    make(map[string]*sync.Mutex),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("booking: marshal session: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.evictExpired(now)
	m.sessions[s.ID] = memoryEntry{data: data, expiresAt: now.Add(m.ttl)}
	return nil
}

// evictExpired drops expired sessions and every lock that is neither held
// nor backing a live session. Callers hold m.mu.
func (m *MemoryStore) evictExpired(now time.Time) {
	for id, entry := range m.sessions {
		if now.After(entry.expiresAt) {
			delete(m.sessions, id)
		}
	}
	for id, l := range m.locks {
		if _, live := m.sessions[id]; live {
			continue
		}
		if l.TryLock() {
			delete(m.locks, id)
			l.Unlock()
		}
	}
}

func (m *MemoryStore) Load(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	entry, ok := m.sessions[id]
	if ok && m.now().After(entry.expiresAt) {
		delete(m.sessions, id)
		if l, held := m.locks[id]; held && l.TryLock() {
			delete(m.locks, id)
			l.Unlock()
		}
		ok = false
	}
	m.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	var s Session
	if err := json.Unmarshal(entry.data, &s); err != nil {
		return nil, fmt.Errorf("booking: decode session: %w", err)
	}
	return &s, nil
}

func (m *MemoryStore) Lock(ctx context.Context, id string) (func(), error) {
	for attempt := 0; attempt < lockAttempts; attempt++ {
		m.mu.Lock()
		l, ok := m.locks[id]
		if !ok {
			l = &sync.Mutex{}
			m.locks[id] = l
		}
		// Taken under m.mu so eviction cannot swap the mutex out from under us.
		locked := l.TryLock()
		m.mu.Unlock()
		if locked {
			return l.Unlock, nil
		}
		if err := sleepCtx(ctx, lockRetryDelay); err != nil {
			return nil, err
		}
	}
	return nil, ErrSessionBusy
}

// RedisStore keeps sessions in Redis as JSON with a sliding TTL.
type RedisStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

func NewRedisStore(client *redis.Client, ttl time.Duration, tracer trace.Tracer) *RedisStore {
	if client == nil {
		panic("booking: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if tracer == nil {
		tracer = otel.Tracer("dental.internal.booking.store")
	}
	return &RedisStore{redis: client, ttl: ttl, tracer: tracer}
}

func (r *RedisStore) Save(ctx context.Context, s *Session) error {
	ctx, span := r.tracer.Start(ctx, "booking.save_session")
	defer span.End()

	data, err := json.Marshal(s)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("booking: marshal session: %w", err)
	}
	if err := r.redis.Set(ctx, sessionKey(s.ID), data, r.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("booking: persist session: %w", err)
	}
	return nil
}

func (r *RedisStore) Load(ctx context.Context, id string) (*Session, error) {
	ctx, span := r.tracer.Start(ctx, "booking.load_session")
	defer span.End()

	data, err := r.redis.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("booking: load session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("booking: decode session: %w", err)
	}
	return &s, nil
}

var releaseLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock takes a short-lived SET NX lock. Only the holder's token can release it.
func (r *RedisStore) Lock(ctx context.Context, id string) (func(), error) {
	key := lockKey(id)
	token := uuid.NewString()
	for attempt := 0; attempt < lockAttempts; attempt++ {
		ok, err := r.redis.SetNX(ctx, key, token, lockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("booking: acquire session lock: %w", err)
		}
		if ok {
			return func() {
				_ = releaseLock.Run(context.WithoutCancel(ctx), r.redis, []string{key}, token).Err()
			}, nil
		}
		if err := sleepCtx(ctx, lockRetryDelay); err != nil {
			return nil, err
		}
	}
	return nil, ErrSessionBusy
}

func sessionKey(id string) string {
	return fmt.Sprintf("booking:session:%s", id)
}

func lockKey(id string) string {
	return fmt.Sprintf("booking:lock:%s", id)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var (
	_ SessionStore = (*MemoryStore)(nil)
	_ SessionStore = (*RedisStore)(nil)
)
