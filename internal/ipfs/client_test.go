package ipfs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGetDecodesDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/QmBadge" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"Genesis"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/")
	var doc struct {
		Name string `json:"name"`
	}
	require.NoError(t, c.Get(context.Background(), "ipfs://QmBadge", &doc))
	require.Equal(t, "Genesis", doc.Name)

	err := c.Get(context.Background(), "QmMissing", &doc)
	require.ErrorContains(t, err, "status 404")
}

func TestURL(t *testing.T) {
	c := NewClient("")
	require.Equal(t, DefaultGateway+"/QmImage", c.URL("ipfs://QmImage"))
	require.Equal(t, DefaultGateway+"/QmImage", c.URL("QmImage"))
}

func TestGetHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out map[string]any
	require.ErrorIs(t, NewClient("http://127.0.0.1:1").Get(ctx, "x", &out), context.Canceled)
}

func TestGetReturnsWhenContextCancelledMidFetch(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	var out map[string]any
	err := NewClient(srv.URL).Get(ctx, "QmSlow", &out)
	require.ErrorIs(t, err, context.Canceled)
	require.Less(t, time.Since(start), 5*time.Second)
}
