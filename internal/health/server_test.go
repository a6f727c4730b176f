package health

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decode(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

func ready(s *Server) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestServer_handleHealth(t *testing.T) {
	s := New(0, WithLogger(testLogger()))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if resp := decode(t, w); resp.Status != "healthy" {
		t.Errorf("Status = %q, want healthy", resp.Status)
	}
}

func TestServer_handleReady(t *testing.T) {
	ok := func(context.Context) error { return nil }
	refused := func(context.Context) error { return errors.New("connection refused") }
	degraded := func(context.Context) (bool, string) { return true, "last reconciliation cycle failed" }
	fine := func(context.Context) (bool, string) { return false, "" }

	tests := []struct {
		name         string
		checkers     map[string]HealthChecker
		degraded     map[string]DegradedChecker
		wantCode     int
		wantStatus   string
		wantDegraded int
	}{
		{
			name:       "no checkers",
			wantCode:   http.StatusOK,
			wantStatus: StatusReady,
		},
		{
			name:       "all healthy",
			checkers:   map[string]HealthChecker{"provider:cloudflare": ok},
			degraded:   map[string]DegradedChecker{"reconciler": fine},
			wantCode:   http.StatusOK,
			wantStatus: StatusReady,
		},
		{
			name:         "healthy but last cycle failed",
			checkers:     map[string]HealthChecker{"provider:cloudflare": ok},
			degraded:     map[string]DegradedChecker{"reconciler": degraded},
			wantCode:     http.StatusOK,
			wantStatus:   StatusDegraded,
			wantDegraded: 1,
		},
		{
			name:         "provider unreachable",
			checkers:     map[string]HealthChecker{"provider:cloudflare": refused},
			degraded:     map[string]DegradedChecker{"reconciler": degraded},
			wantCode:     http.StatusServiceUnavailable,
			wantStatus:   StatusNotReady,
			wantDegraded: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(0, WithLogger(testLogger()))
			for name, c := range tt.checkers {
				s.RegisterChecker(name, c)
			}
			for name, c := range tt.degraded {
				s.RegisterDegradedChecker(name, c)
			}

			w := ready(s)
			if w.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", w.Code, tt.wantCode)
			}
			resp := decode(t, w)
			if resp.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", resp.Status, tt.wantStatus)
			}
			if len(resp.Components) != len(tt.checkers) {
				t.Errorf("len(Components) = %d, want %d", len(resp.Components), len(tt.checkers))
			}
			if len(resp.Degraded) != tt.wantDegraded {
				t.Errorf("len(Degraded) = %d, want %d", len(resp.Degraded), tt.wantDegraded)
			}
		})
	}
}

func TestServer_handleReady_ComponentsSorted(t *testing.T) {
	s := New(0, WithLogger(testLogger()))
	s.RegisterChecker("b", func(context.Context) error { return nil })
	s.RegisterChecker("a", func(context.Context) error { return errors.New("down") })

	resp := decode(t, ready(s))
	if len(resp.Components) != 2 {
		t.Fatalf("len(Components) = %d, want 2", len(resp.Components))
	}
	if resp.Components[0].Name != "a" || resp.Components[1].Name != "b" {
		t.Errorf("components = %v, want a then b", resp.Components)
	}
	if resp.Components[0].Error != "down" {
		t.Errorf("Error = %q, want down", resp.Components[0].Error)
	}
}

func TestServer_handleReady_Timeout(t *testing.T) {
	s := New(0, WithLogger(testLogger()), WithTimeout(50*time.Millisecond))
	s.RegisterChecker("provider:slow", func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
			return nil
		}
	})

	w := ready(s)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status code = %d, want 503", w.Code)
	}
	if resp := decode(t, w); resp.Status != StatusNotReady {
		t.Errorf("Status = %q, want %q", resp.Status, StatusNotReady)
	}
}

func TestServer_Metrics(t *testing.T) {
	s := New(0, WithLogger(testLogger()))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status code = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "go_goroutines") {
		t.Error("metrics output missing default Go collector")
	}
}

func TestServer_Serve(t *testing.T) {
	s := New(0, WithLogger(testLogger()))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status code = %d, want 200", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after cancellation")
	}
}

func TestServer_RunListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	s := New(0, WithLogger(testLogger()))
	s.addr = ln.Addr().String()

	if err := s.Run(context.Background()); err == nil {
		t.Error("Run() on a bound address should fail")
	}
}

func TestServer_RegisterChecker(t *testing.T) {
	s := New(0, WithLogger(testLogger()))
	s.RegisterChecker("test", func(context.Context) error { return nil })

	if _, ok := s.checkers["test"]; !ok {
		t.Error("expected checker 'test' to be registered")
	}
}
