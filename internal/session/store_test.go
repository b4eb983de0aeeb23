package session

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
)

func TestRedisStoreRoundTripAndExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	store := NewRedisStore(cache)
	ctx := context.Background()
	key := StoreKey(common.HexToAddress("0x01"), [32]byte{1})
	issued := Issued{Digest: common.HexToHash("0xabc"), IssuedAt: time.Now().UTC().Truncate(time.Millisecond)}

	if err := store.Save(ctx, key, issued, time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.Load(ctx, key)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Digest != issued.Digest || !got.IssuedAt.Equal(issued.IssuedAt) {
		t.Fatalf("unexpected record %+v", got)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := store.Load(ctx, key); err != ErrCodeNotFound {
		t.Fatalf("expected expiry, got %v", err)
	}

	if err := store.Save(ctx, key, issued, time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := store.Consume(ctx, key, common.HexToHash("0xdef")); err != ErrCodeMismatch {
		t.Fatalf("expected mismatch, got %v", err)
	}
	got, err = store.Consume(ctx, key, issued.Digest)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if !got.IssuedAt.Equal(issued.IssuedAt) {
		t.Fatalf("unexpected consumed record %+v", got)
	}
	if _, err := store.Consume(ctx, key, issued.Digest); err != ErrCodeNotFound {
		t.Fatalf("expected second consume to miss, got %v", err)
	}

	if err := store.Restore(ctx, key, issued, time.Minute); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if _, err := store.Load(ctx, key); err != nil {
		t.Fatalf("expected restored record, got %v", err)
	}
	newer := Issued{Digest: common.HexToHash("0x123"), IssuedAt: issued.IssuedAt.Add(time.Second)}
	_ = store.Save(ctx, key, newer, time.Minute)
	if err := store.Restore(ctx, key, issued, time.Minute); err != nil {
		t.Fatalf("restore: %v", err)
	}
	got, _ = store.Load(ctx, key)
	if got.Digest != newer.Digest {
		t.Fatalf("restore overwrote a newer code: %+v", got)
	}
	if ttl := mr.TTL(redisPrefix + key); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected ttl %v", ttl)
	}
}

func TestStoresConsumeOnceUnderContention(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	stores := map[string]CodeStore{
		"redis":  NewRedisStore(cache),
		"memory": NewMemoryStore(),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			digest := common.HexToHash("0xabc")
			if err := store.Save(ctx, "k", Issued{Digest: digest, IssuedAt: time.Now()}, time.Minute); err != nil {
				t.Fatalf("save: %v", err)
			}

			const workers = 16
			var (
				wg   sync.WaitGroup
				wins atomic.Int32
			)
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if _, err := store.Consume(ctx, "k", digest); err == nil {
						wins.Add(1)
					}
				}()
			}
			wg.Wait()
			if wins.Load() != 1 {
				t.Fatalf("expected exactly one consumer, got %d", wins.Load())
			}
		})
	}
}

func TestMemoryStoreReplacesAndExpires(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	_ = store.Save(ctx, "k", Issued{Digest: common.HexToHash("0x1")}, time.Minute)
	_ = store.Save(ctx, "k", Issued{Digest: common.HexToHash("0x2")}, time.Minute)
	got, err := store.Load(ctx, "k")
	if err != nil || got.Digest != common.HexToHash("0x2") {
		t.Fatalf("expected latest record, got %+v err %v", got, err)
	}

	now = now.Add(time.Minute)
	if _, err := store.Load(ctx, "k"); err != ErrCodeNotFound {
		t.Fatalf("expected expiry, got %v", err)
	}
}

func TestNewCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code, err := NewCode()
		if err != nil {
			t.Fatalf("new code: %v", err)
		}
		if len(code) != codeLength {
			t.Fatalf("unexpected length %d", len(code))
		}
		for _, r := range code {
			if !strings.ContainsRune(codeAlphabet, r) {
				t.Fatalf("unexpected character %q", r)
			}
		}
		seen[code] = true
	}
	if len(seen) < 195 {
		t.Fatalf("codes repeat too often: %d distinct of 200", len(seen))
	}
}
