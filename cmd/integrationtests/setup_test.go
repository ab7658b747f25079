package integrationtests

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"auction-engine/internal/auth"
	bidding "auction-engine/internal/biddingService"
	"auction-engine/internal/metrics"
	model "auction-engine/internal/models"
	"auction-engine/internal/notify"
	"auction-engine/internal/repository"
	"auction-engine/internal/repository/sqlite"
	"auction-engine/internal/server"
	"auction-engine/internal/sweeper"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

// TestEnv is a fully wired application backed by one store
type TestEnv struct {
	Router  *gin.Engine
	Service *bidding.BiddingService
	Hub     *notify.Hub
	JWT     *auth.JWTManager
}

var (
	alice = model.User{UserID: "alice", Name: "Alice", Email: "alice@example.com", Roles: []string{model.RoleUser}}
	bob   = model.User{UserID: "bob", Name: "Bob", Email: "bob@example.com", Roles: []string{model.RoleUser}}
	carol = model.User{UserID: "carol", Name: "Carol", Email: "carol@example.com", Roles: []string{model.RoleUser}}
	admin = model.User{UserID: "admin", Name: "Admin", Email: "admin@example.com", Roles: []string{model.RoleUser, model.RoleAdmin}}
)

// forEachStore runs fn against the in-memory and the sqlite repository
func forEachStore(t *testing.T, fn func(t *testing.T, env *TestEnv)) {
	t.Helper()

	stores := map[string]func(t *testing.T) repository.AuctionDB{
		"memory": func(*testing.T) repository.AuctionDB { return repository.NewMemoryRepo() },
		"sqlite": func(t *testing.T) repository.AuctionDB {
			store, err := sqlite.New(context.Background(), filepath.Join(t.TempDir(), "auctions.db"))
			require.NoError(t, err)
			t.Cleanup(func() { _ = store.Close() })
			return store
		},
	}

	for name, open := range stores {
		open := open
		t.Run(name, func(t *testing.T) {
			fn(t, SetupTestEnv(t, open(t)))
		})
	}
}

// SetupTestEnv wires the router, service and hub over repo
func SetupTestEnv(t *testing.T, repo repository.AuctionDB) *TestEnv {
	t.Helper()

	gin.SetMode(gin.TestMode)
	metrics.Register()

	hub := notify.NewHub(16)
	service := bidding.NewBiddingService(repo, hub)
	jwtManager := auth.NewJWTManager("integration-secret", time.Hour)
	router := server.SetupRouter(service, hub, jwtManager, server.Options{
		BidRatePerSecond: 1000,
		BidRateBurst:     1000,
	})

	return &TestEnv{Router: router, Service: service, Hub: hub, JWT: jwtManager}
}

// TokenFor issues a bearer token for user
func (e *TestEnv) TokenFor(t *testing.T, user model.User) string {
	t.Helper()

	token, err := e.JWT.Generate(user)
	require.NoError(t, err)
	return token
}

// Sweep settles every auction that has expired by at
func (e *TestEnv) Sweep(at time.Time) {
	sweeper.New(e.Service, time.Minute).
		WithClock(func() time.Time { return at }).
		RunOnce(context.Background())
}

// ExecuteRequest sends an encoded body through the router. It makes no assertions, so it is safe
// to call from spawned goroutines.
func ExecuteRequest(router *gin.Engine, method, url, token string, body []byte) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, url, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	router.ServeHTTP(w, req)
	return w
}

// ExecuteRequestAndParse executes an HTTP request as the holder of token and parses the response envelope
func ExecuteRequestAndParse(t *testing.T, router *gin.Engine, method, url, token string, body any) (map[string]any, *httptest.ResponseRecorder) {
	t.Helper()

	var reqBody []byte
	switch v := body.(type) {
	case nil:
	case []byte:
		reqBody = v
	default:
		var err error
		reqBody, err = json.Marshal(v)
		require.NoError(t, err, "failed to marshal body")
	}

	w := ExecuteRequest(router, method, url, token, reqBody)

	var resp map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "failed to unmarshal response")
	}
	return resp, w
}

// dataMap returns the data object of a response envelope
func dataMap(t *testing.T, resp map[string]any) map[string]any {
	t.Helper()

	data, ok := resp["data"].(map[string]any)
	require.True(t, ok, "response data is not an object: %v", resp)
	return data
}

// dataList returns the data array of a response envelope
func dataList(t *testing.T, resp map[string]any) []any {
	t.Helper()

	data, ok := resp["data"].([]any)
	require.True(t, ok, "response data is not a list: %v", resp)
	return data
}

func auctionURL(auctionID string) string {
	return fmt.Sprintf("/auctions/%s", auctionID)
}
