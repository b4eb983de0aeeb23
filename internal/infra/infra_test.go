package infra

import (
	"context"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	if _, err := NewRedisClient(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty url")
	}
}

func TestConstructorsRejectEmptyURL(t *testing.T) {
	if _, err := NewPostgresPool(context.Background(), ""); err == nil {
		t.Fatalf("expected postgres error")
	}
	if _, err := NewEthClient(context.Background(), ""); err == nil {
		t.Fatalf("expected rpc error")
	}
}

func TestEmbeddedMigrationsCreateActivationTable(t *testing.T) {
	raw, err := migrationsFS.ReadFile("migrations/001_session_activations.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	for _, want := range []string{"session_activations", "tx_hash", "UNIQUE"} {
		if !strings.Contains(string(raw), want) {
			t.Fatalf("migration missing %q", want)
		}
	}
}
