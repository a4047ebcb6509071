package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"pulsepoll/internal/config"
	"pulsepoll/internal/model"
	"pulsepoll/internal/service"
	"pulsepoll/internal/testutil"
	"pulsepoll/internal/transport/rest"
	"pulsepoll/internal/transport/ws"
)

type fixture struct {
	router     http.Handler
	pollSvc    *service.PollService
	voteLocks  *testutil.MemoryVoteLockCache
	rateLimits *testutil.MemoryRateLimitStore
}

func newFixture(t *testing.T, rateLimitMax int64) *fixture {
	t.Helper()

	cfg := &config.Config{
		CORSAllowedOrigins: "*",
		RateLimitWindow:    time.Minute,
		RateLimitMax:       rateLimitMax,
	}

	pollRepo := testutil.NewMemoryPollRepo()
	voteRepo := testutil.NewMemoryVoteRepo()
	tallyCache := testutil.NewMemoryTallyCache()
	voteLocks := testutil.NewMemoryVoteLockCache()
	rateLimits := testutil.NewMemoryRateLimitStore()

	hub := ws.NewHub()
	authSvc := service.NewAuthService("admin", "hunter2", "test-secret")
	pollSvc := service.NewPollService(pollRepo, voteRepo, tallyCache)
	voteSvc := service.NewVoteService(pollRepo, voteRepo, tallyCache, voteLocks, hub)
	wsHandler := ws.NewHandler(hub, pollSvc, ws.NewIPRateLimiter(rate.Limit(100), 100))

	router := rest.NewRouter(&rest.Container{
		Config:         cfg,
		AuthService:    authSvc,
		PollService:    pollSvc,
		VoteService:    voteSvc,
		RateLimitStore: rateLimits,
		WSHandler:      wsHandler,
	})

	return &fixture{
		router:     router,
		pollSvc:    pollSvc,
		voteLocks:  voteLocks,
		rateLimits: rateLimits,
	}
}

// do sends a JSON request attributed to the given client origin.
func (f *fixture) do(t *testing.T, method, path, origin string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	return f.doAuth(t, method, path, origin, "", body)
}

func (f *fixture) doAuth(t *testing.T, method, path, origin, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if origin != "" {
		req.Header.Set("X-Forwarded-For", origin)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func (f *fixture) createPoll(t *testing.T, question string, options []string) (pollID, shareCode string) {
	t.Helper()

	w := f.do(t, "POST", "/api/v1/polls", "203.0.113.50", map[string]interface{}{
		"question": question,
		"options":  options,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create poll: status %d, body %s", w.Code, w.Body.String())
	}
	var resp struct {
		PollID    string `json:"pollId"`
		ShareCode string `json:"shareCode"`
		CreatedAt string `json:"createdAt"`
	}
	decode(t, w, &resp)
	if resp.PollID == "" || resp.ShareCode == "" || resp.CreatedAt == "" {
		t.Fatalf("incomplete create response: %+v", resp)
	}
	return resp.PollID, resp.ShareCode
}

func TestHealth(t *testing.T) {
	f := newFixture(t, 1000)

	for _, path := range []string{"/health", "/api/v1/health"} {
		w := f.do(t, "GET", path, "", nil)
		if w.Code != http.StatusOK {
			t.Errorf("GET %s: status %d", path, w.Code)
		}
		var resp map[string]interface{}
		decode(t, w, &resp)
		if resp["status"] != "ok" {
			t.Errorf("GET %s: status field = %v", path, resp["status"])
		}
	}
}

func TestCreatePollValidation(t *testing.T) {
	f := newFixture(t, 1000)

	cases := []struct {
		name string
		body interface{}
	}{
		{"malformed json", "not json"},
		{"one option", map[string]interface{}{"question": "Q?", "options": []string{"A"}}},
		{"duplicate options", map[string]interface{}{"question": "Q?", "options": []string{"A", "a"}}},
		{"empty question", map[string]interface{}{"question": "<b></b>", "options": []string{"A", "B"}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := f.do(t, "POST", "/api/v1/polls", "203.0.113.50", tc.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status %d, want 400; body %s", w.Code, w.Body.String())
			}
		})
	}
}

type voteResponse struct {
	Success    bool           `json:"success"`
	Tallies    map[string]int `json:"tallies"`
	TotalVotes int            `json:"totalVotes"`
}

type conflictResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// TestVoteScenario walks the reference flow: create, read, vote, both
// duplicate rejections, and the re-opened origin after lock clearing.
func TestVoteScenario(t *testing.T) {
	f := newFixture(t, 1000)
	ctx := context.Background()

	pollID, shareCode := f.createPoll(t, "Best color?", []string{"Red", "Blue"})

	w := f.do(t, "GET", "/api/v1/polls/"+shareCode, "203.0.113.50", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get poll: status %d", w.Code)
	}
	var detail model.PollDetail
	decode(t, w, &detail)
	if len(detail.Options) != 2 || detail.TotalVotes != 0 {
		t.Fatalf("fresh poll detail: %+v", detail)
	}
	redID := detail.Options[0].ID

	// First vote succeeds.
	w = f.do(t, "POST", "/api/v1/polls/"+shareCode+"/vote", "203.0.113.50",
		map[string]string{"optionId": redID, "fingerprint": "f1"})
	if w.Code != http.StatusOK {
		t.Fatalf("vote: status %d, body %s", w.Code, w.Body.String())
	}
	var vr voteResponse
	decode(t, w, &vr)
	if !vr.Success || vr.Tallies[redID] != 1 || vr.TotalVotes != 1 {
		t.Fatalf("vote response: %+v", vr)
	}

	// Same identity, different origin: identity duplicate.
	w = f.do(t, "POST", "/api/v1/polls/"+shareCode+"/vote", "198.51.100.7",
		map[string]string{"optionId": redID, "fingerprint": "f1"})
	if w.Code != http.StatusConflict {
		t.Fatalf("identity duplicate: status %d", w.Code)
	}
	var conflict conflictResponse
	decode(t, w, &conflict)
	if conflict.Message != "You have already voted on this poll." {
		t.Errorf("identity duplicate message: %q", conflict.Message)
	}

	// Same origin, new identity: network duplicate, distinguishable text.
	w = f.do(t, "POST", "/api/v1/polls/"+shareCode+"/vote", "203.0.113.50",
		map[string]string{"optionId": redID, "fingerprint": "f2"})
	if w.Code != http.StatusConflict {
		t.Fatalf("network duplicate: status %d", w.Code)
	}
	decode(t, w, &conflict)
	if conflict.Message != "A vote from your network has already been recorded for this poll." {
		t.Errorf("network duplicate message: %q", conflict.Message)
	}

	// Clearing the origin lock lets the fresh identity through.
	if err := f.voteLocks.Unlock(ctx, "203.0.113.50", pollID); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	w = f.do(t, "POST", "/api/v1/polls/"+shareCode+"/vote", "203.0.113.50",
		map[string]string{"optionId": redID, "fingerprint": "f2"})
	if w.Code != http.StatusOK {
		t.Fatalf("vote after unlock: status %d, body %s", w.Code, w.Body.String())
	}
	decode(t, w, &vr)
	if vr.Tallies[redID] != 2 || vr.TotalVotes != 2 {
		t.Fatalf("tallies after second vote: %+v", vr)
	}

	// hasVoted reflects the durable record.
	w = f.do(t, "GET", "/api/v1/polls/"+shareCode+"?fingerprint=f1", "203.0.113.50", nil)
	decode(t, w, &detail)
	if !detail.HasVoted {
		t.Error("hasVoted should be true for f1")
	}
}

func TestVoteStatusCodes(t *testing.T) {
	f := newFixture(t, 1000)
	ctx := context.Background()

	_, shareCode := f.createPoll(t, "Q?", []string{"A", "B"})

	w := f.do(t, "POST", "/api/v1/polls/missing99/vote", "203.0.113.50",
		map[string]string{"optionId": "x", "fingerprint": "f1"})
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown poll: status %d, want 404", w.Code)
	}

	w = f.do(t, "POST", "/api/v1/polls/"+shareCode+"/vote", "203.0.113.50",
		map[string]string{"optionId": "foreign-option", "fingerprint": "f1"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("foreign option: status %d, want 400", w.Code)
	}

	w = f.do(t, "POST", "/api/v1/polls/"+shareCode+"/vote", "203.0.113.50",
		map[string]string{"fingerprint": "f1"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing option id: status %d, want 400", w.Code)
	}

	if err := f.pollSvc.SetActive(ctx, shareCode, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	detail, err := f.pollSvc.GetPoll(ctx, shareCode, "")
	if err != nil {
		t.Fatalf("GetPoll: %v", err)
	}
	w = f.do(t, "POST", "/api/v1/polls/"+shareCode+"/vote", "203.0.113.50",
		map[string]string{"optionId": detail.Options[0].ID, "fingerprint": "f1"})
	if w.Code != http.StatusForbidden {
		t.Errorf("inactive poll: status %d, want 403", w.Code)
	}

	w = f.do(t, "GET", "/api/v1/polls/missing99", "203.0.113.50", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get unknown poll: status %d, want 404", w.Code)
	}
}

func TestGlobalRateLimit(t *testing.T) {
	f := newFixture(t, 3)

	for i := 0; i < 3; i++ {
		w := f.do(t, "GET", "/api/v1/polls/whatever1", "203.0.113.50", nil)
		if w.Code == http.StatusTooManyRequests {
			t.Fatalf("request %d limited early", i+1)
		}
	}

	w := f.do(t, "GET", "/api/v1/polls/whatever1", "203.0.113.50", nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
	var resp struct {
		RetryAfterMs int64 `json:"retryAfterMs"`
	}
	decode(t, w, &resp)
	if resp.RetryAfterMs <= 0 {
		t.Errorf("retryAfterMs = %d, want > 0", resp.RetryAfterMs)
	}

	// Another origin is counted independently.
	w = f.do(t, "GET", "/api/v1/polls/whatever1", "198.51.100.7", nil)
	if w.Code == http.StatusTooManyRequests {
		t.Error("other origin should not be limited")
	}

	// The unversioned health endpoint sits outside the limit.
	w = f.do(t, "GET", "/health", "203.0.113.50", nil)
	if w.Code != http.StatusOK {
		t.Errorf("health: status %d", w.Code)
	}
}

func TestAdminEndpoints(t *testing.T) {
	f := newFixture(t, 1000)

	_, shareCode := f.createPoll(t, "Q?", []string{"A", "B"})

	// No token.
	w := f.do(t, "POST", "/api/v1/polls/"+shareCode+"/deactivate", "203.0.113.50", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status %d, want 401", w.Code)
	}

	// Bad credentials.
	w = f.do(t, "POST", "/api/v1/auth/login", "203.0.113.50",
		map[string]string{"username": "admin", "password": "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: status %d, want 401", w.Code)
	}

	w = f.do(t, "POST", "/api/v1/auth/login", "203.0.113.50",
		map[string]string{"username": "admin", "password": "hunter2"})
	if w.Code != http.StatusOK {
		t.Fatalf("login: status %d", w.Code)
	}
	var login model.LoginResponse
	decode(t, w, &login)

	w = f.doAuth(t, "POST", "/api/v1/polls/"+shareCode+"/deactivate", "203.0.113.50", login.Token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("deactivate: status %d, body %s", w.Code, w.Body.String())
	}
	var detail model.PollDetail
	w = f.do(t, "GET", "/api/v1/polls/"+shareCode, "203.0.113.50", nil)
	decode(t, w, &detail)
	if detail.Poll.IsActive {
		t.Error("poll still active after deactivate")
	}

	w = f.doAuth(t, "POST", "/api/v1/polls/"+shareCode+"/reactivate", "203.0.113.50", login.Token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("reactivate: status %d", w.Code)
	}

	w = f.doAuth(t, "DELETE", "/api/v1/polls/"+shareCode, "203.0.113.50", login.Token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete: status %d", w.Code)
	}
	w = f.do(t, "GET", "/api/v1/polls/"+shareCode, "203.0.113.50", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("deleted poll: status %d, want 404", w.Code)
	}
}
