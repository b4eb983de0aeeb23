package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/spliteth/spliteth/internal/apperr"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	idempotencyPrefix    = "idempotency:v2:"
	idempotencyTimeout   = 2 * time.Second
)

// replay is what a key holds: the request fingerprint and, once the first
// request completed, its response. An empty Status marks a request still
// in flight.
type replay struct {
	Fingerprint string            `json:"fingerprint"`
	Status      int               `json:"status,omitempty"`
	Body        []byte            `json:"body,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
}

type idempotencyStore struct {
	cache  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// Idempotency replays the stored response for a repeated Idempotency-Key so a
// retried start or split does not submit a second transaction. Reusing a key
// for a different body is rejected. Requests without the header, and all
// requests when cache is nil, pass through.
func Idempotency(cache *redis.Client, ttl time.Duration, logger *slog.Logger) fiber.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	store := &idempotencyStore{cache: cache, ttl: ttl, logger: logger}

	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next()
		}
		switch strings.ToUpper(c.Method()) {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}
		key := c.Get(idempotencyKeyHeader)
		if key == "" {
			return c.Next()
		}

		cacheKey := idempotencyPrefix + c.Path() + ":" + key
		fingerprint := crypto.Keccak256Hash(c.Body()).Hex()

		prior, found, err := store.reserve(cacheKey, fingerprint)
		if err != nil {
			logger.Error("idempotency reservation failed", slog.String("key", key), slog.Any("error", err))
			return apperr.Unavailable("Idempotency store unavailable")
		}
		if found {
			return prior.write(c, fingerprint)
		}

		if err := c.Next(); err != nil || c.Response().StatusCode() >= fiber.StatusInternalServerError {
			store.release(cacheKey)
			return err
		}

		done := replay{
			Fingerprint: fingerprint,
			Status:      c.Response().StatusCode(),
			Body:        append([]byte(nil), c.Response().Body()...),
			Headers:     map[string]string{},
		}
		c.Response().Header.VisitAll(func(k, v []byte) {
			done.Headers[string(k)] = string(v)
		})
		if err := store.persist(cacheKey, done); err != nil {
			// The response already went through; a retry will run again.
			logger.Error("failed to persist idempotent response", slog.String("key", key), slog.Any("error", err))
			store.release(cacheKey)
		}
		return nil
	}
}

// reserve claims cacheKey for this request. When the key is already taken the
// prior entry is returned with found set.
func (s *idempotencyStore) reserve(cacheKey, fingerprint string) (replay, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), idempotencyTimeout)
	defer cancel()

	marker, err := json.Marshal(replay{Fingerprint: fingerprint})
	if err != nil {
		return replay{}, false, err
	}
	reserved, err := s.cache.SetNX(ctx, cacheKey, marker, s.ttl).Result()
	if err != nil {
		return replay{}, false, err
	}
	if reserved {
		return replay{}, false, nil
	}

	raw, err := s.cache.Get(ctx, cacheKey).Bytes()
	if errors.Is(err, redis.Nil) {
		// Released between SetNX and Get; treat as in flight.
		return replay{Fingerprint: fingerprint}, true, nil
	}
	if err != nil {
		return replay{}, false, err
	}
	var prior replay
	if err := json.Unmarshal(raw, &prior); err != nil {
		s.logger.Warn("failed to decode stored idempotent response", slog.String("key", cacheKey), slog.Any("error", err))
		return replay{Fingerprint: fingerprint}, true, nil
	}
	return prior, true, nil
}

func (s *idempotencyStore) persist(cacheKey string, done replay) error {
	payload, err := json.Marshal(done)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), idempotencyTimeout)
	defer cancel()
	return s.cache.Set(ctx, cacheKey, payload, s.ttl).Err()
}

func (s *idempotencyStore) release(cacheKey string) {
	ctx, cancel := context.WithTimeout(context.Background(), idempotencyTimeout)
	defer cancel()
	if err := s.cache.Del(ctx, cacheKey).Err(); err != nil {
		s.logger.Warn("failed to release idempotency key", slog.String("key", cacheKey), slog.Any("error", err))
	}
}

func (r replay) write(c *fiber.Ctx, fingerprint string) error {
	if r.Fingerprint != fingerprint {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "Idempotency-Key reused with a different request")
	}
	if r.Status == 0 {
		return fiber.NewError(fiber.StatusConflict, "duplicate request currently processing")
	}
	for header, value := range r.Headers {
		if strings.EqualFold(header, fiber.HeaderContentLength) {
			continue
		}
		c.Set(header, value)
	}
	c.Set("Idempotent-Replayed", "true")
	return c.Status(r.Status).Send(r.Body)
}
