package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

func TestAuthMiddleware(t *testing.T) {
	t.Parallel()

	cfg := AuthConfig{BearerToken: "secret-token", BasicUser: "admin", BasicPass: "pass123"}

	tests := []struct {
		name  string
		setup func(*http.Request)
		want  int
	}{
		{"valid bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer secret-token") }, http.StatusOK},
		{"invalid bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer wrong") }, http.StatusUnauthorized},
		{"valid basic", func(r *http.Request) { r.SetBasicAuth("admin", "pass123") }, http.StatusOK},
		{"invalid basic", func(r *http.Request) { r.SetBasicAuth("admin", "nope") }, http.StatusUnauthorized},
		{"missing header", func(*http.Request) {}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			handler := authMiddleware(cfg, nil, nil)(okHandler())
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			tt.setup(req)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestAuthMiddleware_SuccessNotLimited(t *testing.T) {
	t.Parallel()

	limiter := newSlidingWindow(2, time.Minute)
	handler := authMiddleware(AuthConfig{BearerToken: "t"}, limiter, nil)(okHandler())

	for i := range 10 {
		req := httptest.NewRequest(http.MethodGet, "/status", nil)
		req.Header.Set("Authorization", "Bearer t")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, rr.Code)
		}
	}
}

func TestAuthMiddleware_FailuresLimited(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter := newSlidingWindow(2, time.Minute)
	limiter.now = func() time.Time { return now }
	handler := authMiddleware(AuthConfig{BearerToken: "t"}, limiter, nil)(okHandler())

	send := func(token string) int {
		req := httptest.NewRequest(http.MethodGet, "/status", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}

	codes := []int{send("wrong"), send("t"), send("wrong"), send("wrong"), send("t")}
	want := []int{
		http.StatusUnauthorized,
		http.StatusOK,
		http.StatusUnauthorized,
		http.StatusTooManyRequests,
		http.StatusTooManyRequests,
	}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("codes = %v, want %v", codes, want)
		}
	}

	now = now.Add(61 * time.Second)
	if got := send("t"); got != http.StatusOK {
		t.Errorf("after window: status = %d, want 200", got)
	}
}

func TestActorOf(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := actorOf(req); got != "admin" {
		t.Errorf("default actor = %q", got)
	}
	req.SetBasicAuth("park", "x")
	if got := actorOf(req); got != "park" {
		t.Errorf("basic actor = %q", got)
	}
	req.Header.Set("X-Actor", "  lee  ")
	if got := actorOf(req); got != "lee" {
		t.Errorf("header actor = %q", got)
	}
}

func TestSlidingWindow_Evicts(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	w := newSlidingWindow(1, time.Minute)
	w.now = func() time.Time { return now }

	if w.Full() {
		t.Fatal("empty window reported full")
	}
	w.Add()
	if !w.Full() {
		t.Fatal("window with limit events should be full")
	}
	now = now.Add(61 * time.Second)
	if w.Full() {
		t.Fatal("window should be empty after it elapses")
	}
}
