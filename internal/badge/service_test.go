package badge

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/spliteth/spliteth/internal/apperr"
	"github.com/spliteth/spliteth/internal/ipfs"
	"github.com/spliteth/spliteth/internal/logging"
)

type fakeURIs struct {
	uri string
	err error
	id  *big.Int
}

func (f *fakeURIs) BadgeURI(_ context.Context, _ common.Address, id *big.Int) (string, error) {
	f.id = id
	return f.uri, f.err
}

func newGateway(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"name": "Genesis",
			"image": "ipfs://QmFull",
			"image_medium": "ipfs://QmMedium",
			"image_small": "https://cdn.example/small.png",
			"type": "in-person",
			"location": {"name": "Brussels", "coordinates": "50.85,4.35"}
		}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGetRewritesImageLinks(t *testing.T) {
	gw := newGateway(t)
	uris := &fakeURIs{uri: "QmMeta"}
	svc := NewService(uris, ipfs.NewClient(gw.URL))

	b, err := svc.Get(context.Background(), common.Address{1}, big.NewInt(3))
	require.NoError(t, err)
	require.Equal(t, "Genesis", b.Name)
	require.Equal(t, gw.URL+"/QmFull", b.Image)
	require.Equal(t, gw.URL+"/QmMedium", b.ImageMedium)
	require.Equal(t, "https://cdn.example/small.png", b.ImageSmall)
	require.Equal(t, "Brussels", b.Location.Name)
	require.Equal(t, int64(3), uris.id.Int64())
}

func TestGetMapsChainFailure(t *testing.T) {
	svc := NewService(&fakeURIs{err: errors.New("execution reverted")}, ipfs.NewClient("http://127.0.0.1:1"))
	_, err := svc.Get(context.Background(), common.Address{1}, big.NewInt(1))
	require.ErrorIs(t, err, apperr.ErrUpstream)
}

func TestHandler(t *testing.T) {
	gw := newGateway(t)
	svc := NewService(&fakeURIs{uri: "QmMeta"}, ipfs.NewClient(gw.URL))
	app := fiber.New(fiber.Config{ErrorHandler: apperr.Handler(logging.Discard())})
	app.Get("/badges/:collection/:badgeId", NewHandler(svc).Get)

	collection := common.HexToAddress("0x00000000000000000000000000000000000000b1").Hex()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/badges/"+collection+"/7", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var b Badge
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&b))
	require.Equal(t, "Genesis", b.Name)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/badges/"+collection+"/abc", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/badges/0x12/1", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
