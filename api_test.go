package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/sixdegrees/oracle"
	"github.com/Seednode/sixdegrees/store"
)

type stubOracle struct {
	pairErr error
}

func (s *stubOracle) InitialPair(context.Context) (oracle.Node, oracle.Node, error) {
	if s.pairErr != nil {
		return oracle.Node{}, oracle.Node{}, s.pairErr
	}
	start := oracle.Node{ID: "actor:tom-hanks", Kind: "actor", Name: "Tom Hanks"}
	target := oracle.Node{ID: "actor:zendaya", Kind: "actor", Name: "Zendaya"}
	return start, target, nil
}

func (s *stubOracle) NextChoices(_ context.Context, from oracle.Node) ([]oracle.Node, error) {
	return []oracle.Node{{ID: "movie:cast-away", Kind: "movie", Name: "Cast Away"}}, nil
}

func (s *stubOracle) ShortestPath(context.Context, oracle.Node, oracle.Node) ([]oracle.Node, error) {
	return []oracle.Node{
		{ID: "actor:tom-hanks", Kind: "actor", Name: "Tom Hanks"},
		{ID: "movie:the-polar-express", Kind: "movie", Name: "The Polar Express"},
		{ID: "actor:zendaya", Kind: "actor", Name: "Zendaya"},
	}, nil
}

func newTestMux(co *Coordinator, orc oracle.Oracle) *httprouter.Router {
	cfg := co.cfg
	errs := make(chan error, 64)

	mux := httprouter.New()
	mux.POST("/api/users/login", serveLogin(cfg, co, errs))
	mux.GET("/api/users/leaderboard", serveLeaderboard(cfg, co, errs))
	mux.POST("/api/challenge/create", serveCreateChallenge(cfg, co, errs))
	mux.GET("/api/oracle/pair", serveOraclePair(cfg, orc, errs))
	mux.POST("/api/oracle/choices", serveOracleChoices(cfg, orc, errs))
	mux.POST("/api/oracle/path", serveOraclePath(cfg, orc, errs))
	return mux
}

func TestServeLogin(t *testing.T) {
	co := newTestCoordinator(store.NewMemoryStore())
	mux := newTestMux(co, nil)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/api/users/login", strings.NewReader(`{"username": "alice"}`))
	mux.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)

	var profile PublicProfile
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &profile))
	assert.NotEmpty(t, profile.ID)
	assert.Equal(t, "alice", profile.Username)
	assert.Equal(t, store.DefaultRating, profile.Rating)
	assert.Equal(t, "Script Analyst", profile.Rank)

	// Logging in again returns the same profile.
	w = httptest.NewRecorder()
	r = httptest.NewRequest("POST", "/api/users/login", strings.NewReader(`{"username": "alice"}`))
	mux.ServeHTTP(w, r)

	var again PublicProfile
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &again))
	assert.Equal(t, profile.ID, again.ID)
}

func TestServeLoginRejectsMissingUsername(t *testing.T) {
	co := newTestCoordinator(store.NewMemoryStore())
	mux := newTestMux(co, nil)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/api/users/login", strings.NewReader(`{}`))
	mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServeLeaderboard(t *testing.T) {
	profiles := store.NewMemoryStore()
	co := newTestCoordinator(profiles)
	mux := newTestMux(co, nil)

	ctx := context.Background()
	alice := mustProfile(t, profiles, "alice")
	bob := mustProfile(t, profiles, "bob")
	require.NoError(t, profiles.UpdateRating(ctx, alice.ID, 900))
	require.NoError(t, profiles.UpdateRating(ctx, bob.ID, 1600))

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/api/users/leaderboard", nil)
	mux.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)

	var board []PublicProfile
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &board))
	require.Len(t, board, 2)
	assert.Equal(t, "bob", board[0].Username)
	assert.Equal(t, "alice", board[1].Username)
}

func TestServeCreateChallenge(t *testing.T) {
	co := newTestCoordinator(store.NewMemoryStore())
	mux := newTestMux(co, nil)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/api/challenge/create",
		strings.NewReader(`{"start_id": "actor:tom-hanks", "target_id": "actor:zendaya"}`))
	mux.ServeHTTP(w, r)

	require.Equal(t, http.StatusCreated, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp["challenge_id"], 8)
	assert.True(t, co.challenges.exists(resp["challenge_id"]))
}

func TestServeCreateChallengeDuplicate(t *testing.T) {
	co := newTestCoordinator(store.NewMemoryStore())
	mux := newTestMux(co, nil)

	body := `{"challenge_id": "match-1", "start_id": "actor:a", "target_id": "actor:b"}`

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("POST", "/api/challenge/create", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("POST", "/api/challenge/create", strings.NewReader(body)))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestServeCreateChallengeRequiresEndpoints(t *testing.T) {
	co := newTestCoordinator(store.NewMemoryStore())
	mux := newTestMux(co, nil)

	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/api/challenge/create", strings.NewReader(`{"start_id": "actor:a"}`))
	mux.ServeHTTP(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServeOracleUnconfigured(t *testing.T) {
	co := newTestCoordinator(store.NewMemoryStore())
	mux := newTestMux(co, nil)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/api/oracle/pair", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestServeOraclePair(t *testing.T) {
	co := newTestCoordinator(store.NewMemoryStore())
	mux := newTestMux(co, &stubOracle{})

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/api/oracle/pair", nil))

	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]oracle.Node
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "actor:tom-hanks", resp["start"].ID)
	assert.Equal(t, "actor:zendaya", resp["target"].ID)
}

func TestServeOracleChoices(t *testing.T) {
	co := newTestCoordinator(store.NewMemoryStore())
	mux := newTestMux(co, &stubOracle{})

	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/api/oracle/choices",
		strings.NewReader(`{"id": "actor:tom-hanks", "kind": "actor", "name": "Tom Hanks"}`))
	mux.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string][]oracle.Node
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp["choices"], 1)
	assert.Equal(t, "movie:cast-away", resp["choices"][0].ID)
}

func TestServeOraclePath(t *testing.T) {
	co := newTestCoordinator(store.NewMemoryStore())
	mux := newTestMux(co, &stubOracle{})

	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/api/oracle/path",
		strings.NewReader(`{"start": {"kind": "actor", "name": "Tom Hanks"}, "target": {"kind": "actor", "name": "Zendaya"}}`))
	mux.ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string][]oracle.Node
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp["path"], 3)
}
