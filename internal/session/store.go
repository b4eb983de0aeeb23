package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrCodeNotFound is returned when no live code exists for a key.
	ErrCodeNotFound = errors.New("no code issued")
	// ErrCodeMismatch is returned by Consume when the live record holds a
	// different digest. The record is left in place.
	ErrCodeMismatch = errors.New("code does not match")
)

// CodeStore keeps the latest issued code digest per (provider, second factor).
// Saving replaces any previous record.
type CodeStore interface {
	Save(ctx context.Context, key string, issued Issued, ttl time.Duration) error
	// Consume atomically removes and returns the record if it holds digest.
	Consume(ctx context.Context, key string, digest common.Hash) (Issued, error)
	// Restore puts a consumed record back unless a newer one was saved since.
	Restore(ctx context.Context, key string, issued Issued, ttl time.Duration) error
}

// StoreKey derives the store key for a provider and second factor.
func StoreKey(provider common.Address, secondFactor [32]byte) string {
	return provider.Hex() + ":" + hexutil.Encode(secondFactor[:])
}

const redisPrefix = "session:code:v1:"

// RedisStore keeps records in Redis hashes that expire with the code.
type RedisStore struct {
	cache *redis.Client
}

// NewRedisStore builds a Redis-backed store.
func NewRedisStore(cache *redis.Client) *RedisStore {
	return &RedisStore{cache: cache}
}

func (s *RedisStore) Save(ctx context.Context, key string, issued Issued, ttl time.Duration) error {
	k := redisPrefix + key
	_, err := s.cache.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, k)
		pipe.HSet(ctx, k,
			"digest", issued.Digest.Hex(),
			"issued_at", strconv.FormatInt(issued.IssuedAt.UnixNano(), 10),
		)
		pipe.PExpire(ctx, k, ttl)
		return nil
	})
	return err
}

func (s *RedisStore) Load(ctx context.Context, key string) (Issued, error) {
	fields, err := s.cache.HGetAll(ctx, redisPrefix+key).Result()
	if err != nil {
		return Issued{}, err
	}
	digest, ok := fields["digest"]
	if !ok {
		return Issued{}, ErrCodeNotFound
	}
	nanos, err := strconv.ParseInt(fields["issued_at"], 10, 64)
	if err != nil {
		return Issued{}, err
	}
	return Issued{Digest: common.HexToHash(digest), IssuedAt: time.Unix(0, nanos).UTC()}, nil
}

// consumeScript deletes the hash only when its digest matches ARGV[1].
// Returns nil when absent, 0 on mismatch, issued_at on success.
var consumeScript = redis.NewScript(`
local d = redis.call("HGET", KEYS[1], "digest")
if not d then
	return false
end
if d ~= ARGV[1] then
	return 0
end
local at = redis.call("HGET", KEYS[1], "issued_at")
redis.call("DEL", KEYS[1])
return at
`)

// restoreScript writes the record only when the key is free.
var restoreScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	return 0
end
redis.call("HSET", KEYS[1], "digest", ARGV[1], "issued_at", ARGV[2])
redis.call("PEXPIRE", KEYS[1], ARGV[3])
return 1
`)

func (s *RedisStore) Consume(ctx context.Context, key string, digest common.Hash) (Issued, error) {
	res, err := consumeScript.Run(ctx, s.cache, []string{redisPrefix + key}, digest.Hex()).Result()
	if errors.Is(err, redis.Nil) {
		return Issued{}, ErrCodeNotFound
	}
	if err != nil {
		return Issued{}, err
	}
	at, ok := res.(string)
	if !ok {
		return Issued{}, ErrCodeMismatch
	}
	nanos, err := strconv.ParseInt(at, 10, 64)
	if err != nil {
		return Issued{}, err
	}
	return Issued{Digest: digest, IssuedAt: time.Unix(0, nanos).UTC()}, nil
}

func (s *RedisStore) Restore(ctx context.Context, key string, issued Issued, ttl time.Duration) error {
	if ttl < time.Millisecond {
		return nil
	}
	return restoreScript.Run(ctx, s.cache, []string{redisPrefix + key},
		issued.Digest.Hex(),
		strconv.FormatInt(issued.IssuedAt.UnixNano(), 10),
		ttl.Milliseconds(),
	).Err()
}

type memoryEntry struct {
	issued  Issued
	expires time.Time
}

// MemoryStore keeps records in process. Used when Redis is not configured.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore builds an in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), now: time.Now}
}

func (s *MemoryStore) Save(_ context.Context, key string, issued Issued, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{issued: issued, expires: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Load(_ context.Context, key string) (Issued, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return Issued{}, ErrCodeNotFound
	}
	if !s.now().Before(e.expires) {
		delete(s.entries, key)
		return Issued{}, ErrCodeNotFound
	}
	return e.issued, nil
}

func (s *MemoryStore) Consume(_ context.Context, key string, digest common.Hash) (Issued, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || !s.now().Before(e.expires) {
		delete(s.entries, key)
		return Issued{}, ErrCodeNotFound
	}
	if subtle.ConstantTimeCompare(e.issued.Digest[:], digest[:]) != 1 {
		return Issued{}, ErrCodeMismatch
	}
	delete(s.entries, key)
	return e.issued, nil
}

func (s *MemoryStore) Restore(_ context.Context, key string, issued Issued, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok && s.now().Before(e.expires) {
		return nil
	}
	s.entries[key] = memoryEntry{issued: issued, expires: s.now().Add(ttl)}
	return nil
}
