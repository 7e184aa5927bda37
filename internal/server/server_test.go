package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/keithriordan/foyer/internal/models"
	"github.com/keithriordan/foyer/internal/shared"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"golang.org/x/oauth2"
)

type stubUsers map[int64]*models.User

func (s stubUsers) Get(id int64) (*models.User, error) {
	if u, ok := s[id]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("%w: user %d", shared.ErrNotFound, id)
}

func newSessions(t *testing.T) *Sessions {
	t.Helper()
	users := stubUsers{1: {ID: 1, Username: "keith", Email: "keith@example.com"}}
	s, err := NewSessions("test-secret", false, users, shared.NewLogger(io.Discard))
	if err != nil {
		t.Fatalf("NewSessions failed: %v", err)
	}
	return s
}

// cookiesFrom keeps the last Set-Cookie per name, the way a browser would.
func cookiesFrom(rec *httptest.ResponseRecorder) []*http.Cookie {
	var out []*http.Cookie
	index := map[string]int{}
	for _, c := range rec.Result().Cookies() {
		if i, ok := index[c.Name]; ok {
			out[i] = c
			continue
		}
		index[c.Name] = len(out)
		out = append(out, c)
	}
	return out
}

func TestBasicRouter(t *testing.T) {
	t.Run("Method patterns", func(t *testing.T) {
		r := NewBasicRouter()
		r.HandleFunc("GET", "/lists/{id}", func(w http.ResponseWriter, req *http.Request) {
			fmt.Fprint(w, "list "+req.PathValue("id"))
		})

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/lists/42", nil))
		if rec.Body.String() != "list 42" {
			t.Errorf("expected 'list 42', got %q", rec.Body.String())
		}

		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/lists/42", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})

	t.Run("Middleware order", func(t *testing.T) {
		var calls []string
		mark := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					calls = append(calls, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		r := NewBasicRouter()
		r.Use(mark("first"), mark("second"))
		r.HandleFunc("", "/", func(w http.ResponseWriter, req *http.Request) { calls = append(calls, "handler") })
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		if strings.Join(calls, ",") != "first,second,handler" {
			t.Errorf("unexpected call order %v", calls)
		}
	})

	t.Run("Custom handler routes", func(t *testing.T) {
		h := NewOAuthHandler(&oauth2.Config{}, "state", "/cb")
		if routes := h.Routes(); len(routes) != 1 || routes[0] != "GET /cb" {
			t.Errorf("unexpected routes %v", routes)
		}
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("Request logger", func(t *testing.T) {
		var buf bytes.Buffer
		r := NewBasicRouter()
		r.Use(RequestLogger(shared.NewLogger(&buf)))
		r.HandleFunc("GET", "/missing", func(w http.ResponseWriter, req *http.Request) {
			http.NotFound(w, req)
		})

		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))
		out := buf.String()
		if !strings.Contains(out, "/missing") || !strings.Contains(out, "404") {
			t.Errorf("expected path and status in log, got %q", out)
		}
	})

	t.Run("Recoverer", func(t *testing.T) {
		fallback := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, "custom 500")
		})

		r := NewBasicRouter()
		r.Use(Recoverer(shared.NewLogger(io.Discard), fallback))
		r.HandleFunc("GET", "/boom", func(w http.ResponseWriter, req *http.Request) { panic("boom") })

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
		if rec.Code != http.StatusInternalServerError || rec.Body.String() != "custom 500" {
			t.Errorf("expected fallback 500, got %d %q", rec.Code, rec.Body.String())
		}
	})

	t.Run("Security headers", func(t *testing.T) {
		h := SecurityHeaders("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if rec.Header().Get("Content-Security-Policy") != DefaultCSP {
			t.Errorf("expected default CSP, got %q", rec.Header().Get("Content-Security-Policy"))
		}
		if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Error("expected nosniff header")
		}
	})

	t.Run("HTTP metrics", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		m := NewHTTPMetrics(reg)

		r := NewBasicRouter()
		r.Use(m.Middleware())
		r.HandleFunc("GET", "/lists/{id}", func(w http.ResponseWriter, req *http.Request) {})

		for _, id := range []string{"1", "2", "3"} {
			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/lists/"+id, nil))
		}

		got := testutil.ToFloat64(m.Requests.WithLabelValues("GET /lists/{id}", "GET", "200"))
		if got != 3 {
			t.Errorf("expected 3 requests under the route pattern, got %v", got)
		}
	})

	t.Run("Client limiter", func(t *testing.T) {
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		limiter := NewClientLimiter(1, 2)
		limiter.now = func() time.Time { return now }

		h := limiter.Middleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		codes := make([]int, 0, 4)
		for i := 0; i < 3; i++ {
			req := httptest.NewRequest(http.MethodPost, "/contact", nil)
			req.RemoteAddr = "10.0.0.1:5555"
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			codes = append(codes, rec.Code)
		}

		other := httptest.NewRequest(http.MethodPost, "/contact", nil)
		other.RemoteAddr = "10.0.0.2:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, other)
		codes = append(codes, rec.Code)

		want := []int{200, 200, 429, 200}
		for i := range want {
			if codes[i] != want[i] {
				t.Fatalf("expected %v, got %v", want, codes)
			}
		}

		now = now.Add(time.Second)
		if !limiter.Allow("10.0.0.1") {
			t.Error("expected a token after one second")
		}
	})
}

func TestSessions(t *testing.T) {
	t.Run("Missing secret", func(t *testing.T) {
		if _, err := NewSessions(" ", false, stubUsers{}, nil); !errors.Is(err, shared.ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("Login cookie", func(t *testing.T) {
		tests := []struct {
			name     string
			remember bool
			maxAge   int
		}{
			{"browser session", false, 0},
			{"remember me", true, int(RememberFor.Seconds())},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				s := newSessions(t)
				rec := httptest.NewRecorder()
				if err := s.Login(rec, &models.User{ID: 1}, tt.remember); err != nil {
					t.Fatalf("Login failed: %v", err)
				}

				cookies := cookiesFrom(rec)
				if len(cookies) != 1 || cookies[0].Name != AuthCookieName {
					t.Fatalf("expected auth cookie, got %v", cookies)
				}
				if cookies[0].MaxAge != tt.maxAge {
					t.Errorf("expected MaxAge %d, got %d", tt.maxAge, cookies[0].MaxAge)
				}
				if !cookies[0].HttpOnly {
					t.Error("expected HttpOnly cookie")
				}

				id, err := s.UserID(cookies[0].Value)
				if err != nil || id != 1 {
					t.Errorf("expected user 1, got %d (%v)", id, err)
				}
			})
		}
	})

	t.Run("Authenticate", func(t *testing.T) {
		s := newSessions(t)
		rec := httptest.NewRecorder()
		s.Login(rec, &models.User{ID: 1}, false)
		cookie := cookiesFrom(rec)[0]

		var seen *models.User
		h := s.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if u, ok := CurrentUser(r.Context()); ok {
				seen = &u
			}
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(cookie)
		h.ServeHTTP(httptest.NewRecorder(), req)
		if seen == nil || seen.Email != "keith@example.com" {
			t.Fatalf("expected keith on the context, got %+v", seen)
		}

		seen = nil
		req = httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: AuthCookieName, Value: cookie.Value + "x"})
		out := httptest.NewRecorder()
		h.ServeHTTP(out, req)
		if seen != nil {
			t.Error("tampered token must not authenticate")
		}
		if cleared := cookiesFrom(out); len(cleared) != 1 || cleared[0].MaxAge >= 0 {
			t.Errorf("expected the bad cookie to be cleared, got %v", cleared)
		}
	})

	t.Run("Expired token", func(t *testing.T) {
		s := newSessions(t)
		rec := httptest.NewRecorder()
		s.Login(rec, &models.User{ID: 1}, false)
		token := cookiesFrom(rec)[0].Value

		s.now = func() time.Time { return time.Now().Add(SessionFor + time.Minute) }
		if _, err := s.UserID(token); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("Unknown user", func(t *testing.T) {
		s := newSessions(t)
		rec := httptest.NewRecorder()
		s.Login(rec, &models.User{ID: 99}, false)

		called := false
		h := s.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, called = CurrentUser(r.Context())
		}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(cookiesFrom(rec)[0])
		h.ServeHTTP(httptest.NewRecorder(), req)
		if called {
			t.Error("deleted user must not authenticate")
		}
	})

	t.Run("Flashes", func(t *testing.T) {
		s := newSessions(t)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/lists/create", nil)
		s.AddFlash(rec, req, FlashSuccess, "List created successfully.")
		s.AddFlash(rec, req, FlashDanger, "You don't have access to this list.")

		next := httptest.NewRequest(http.MethodGet, "/lists", nil)
		for _, c := range cookiesFrom(rec) {
			next.AddCookie(c)
		}
		out := httptest.NewRecorder()
		flashes := s.Flashes(out, next)

		if len(flashes) != 2 {
			t.Fatalf("expected 2 flashes, got %v", flashes)
		}
		if flashes[0] != (Flash{FlashSuccess, "List created successfully."}) {
			t.Errorf("unexpected first flash %+v", flashes[0])
		}
		if flashes[1].Category != FlashDanger {
			t.Errorf("expected danger flash, got %+v", flashes[1])
		}

		again := httptest.NewRequest(http.MethodGet, "/lists", nil)
		for _, c := range cookiesFrom(out) {
			again.AddCookie(c)
		}
		if left := s.Flashes(httptest.NewRecorder(), again); len(left) != 0 {
			t.Errorf("flashes should be shown once, got %v", left)
		}
	})

	t.Run("Put and Pop", func(t *testing.T) {
		s := newSessions(t)
		rec := httptest.NewRecorder()
		if err := s.Put(rec, httptest.NewRequest(http.MethodGet, "/", nil), "oauth_state", "abc"); err != nil {
			t.Fatalf("Put failed: %v", err)
		}

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		for _, c := range cookiesFrom(rec) {
			req.AddCookie(c)
		}
		got, err := s.Pop(httptest.NewRecorder(), req, "oauth_state")
		if err != nil || got != "abc" {
			t.Errorf("expected abc, got %q (%v)", got, err)
		}
		if _, err := s.Pop(httptest.NewRecorder(), req, "oauth_state"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound after pop, got %v", err)
		}
	})
}

func TestRequireUser(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { fmt.Fprint(w, "ok") })

	t.Run("Redirects to login", func(t *testing.T) {
		rec := httptest.NewRecorder()
		RequireUser(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/lists/3?x=1", nil))

		if rec.Code != http.StatusFound {
			t.Fatalf("expected 302, got %d", rec.Code)
		}
		if loc := rec.Header().Get("Location"); loc != "/login?next=%2Flists%2F3%3Fx%3D1" {
			t.Errorf("unexpected redirect %q", loc)
		}
	})

	t.Run("JSON 401", func(t *testing.T) {
		rec := httptest.NewRecorder()
		RequireUserJSON(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/lists/item/1/toggle", nil))
		if rec.Code != http.StatusUnauthorized || !strings.Contains(rec.Body.String(), `"success":false`) {
			t.Errorf("expected JSON 401, got %d %q", rec.Code, rec.Body.String())
		}
	})

	t.Run("Passes logged in users", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/lists", nil)
		req = req.WithContext(WithUser(req.Context(), models.User{ID: 1}))
		rec := httptest.NewRecorder()
		RequireUser(ok).ServeHTTP(rec, req)
		if rec.Body.String() != "ok" {
			t.Errorf("expected handler to run, got %d", rec.Code)
		}
	})
}

func TestSafeNext(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "/"},
		{"/lists/3", "/lists/3"},
		{"https://evil.example", "/"},
		{"//evil.example", "/"},
		{"/\\evil.example", "/"},
		{"lists", "/"},
	}

	for _, tt := range tests {
		if got := SafeNext(tt.in); got != tt.want {
			t.Errorf("SafeNext(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestOAuthHandler(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"access","token_type":"Bearer","refresh_token":"refresh","expires_in":3600}`)
	}))
	defer tokenServer.Close()

	config := &oauth2.Config{
		ClientID:     "id",
		ClientSecret: "secret",
		Endpoint:     oauth2.Endpoint{TokenURL: tokenServer.URL},
	}

	t.Run("Exchanges code once", func(t *testing.T) {
		h := NewOAuthHandler(config, "state-1", "")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, DefaultCallbackPath+"?state=state-1&code=abc", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		select {
		case result := <-h.Result():
			if result.Error() != nil || result.Token.RefreshToken != "refresh" {
				t.Errorf("unexpected result %+v", result)
			}
		case <-time.After(time.Second):
			t.Fatal("no result")
		}

		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, DefaultCallbackPath+"?state=state-1&code=abc", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected replay to be rejected, got %d", rec.Code)
		}
	})

	t.Run("Rejects bad callbacks", func(t *testing.T) {
		tests := []struct {
			name, query string
		}{
			{"wrong state", "?state=other&code=abc"},
			{"denied", "?state=state-1&error=access_denied"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				h := NewOAuthHandler(config, "state-1", "")
				rec := httptest.NewRecorder()
				h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, DefaultCallbackPath+tt.query, nil))

				if rec.Code != http.StatusBadRequest {
					t.Errorf("expected 400, got %d", rec.Code)
				}
				result := <-h.Result()
				if !errors.Is(result.Error(), shared.ErrAuthorizationRequired) {
					t.Errorf("expected ErrAuthorizationRequired, got %v", result.Error())
				}
			})
		}
	})

	t.Run("Await gives up with context", func(t *testing.T) {
		cfg := *config
		cfg.RedirectURL = "http://127.0.0.1:0/oauth/oauth2callback"
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		var out bytes.Buffer
		_, err := AwaitAuthorization(ctx, &cfg, shared.NewLogger(io.Discard), &out)
		if !errors.Is(err, shared.ErrAuthorizationRequired) {
			t.Errorf("expected ErrAuthorizationRequired, got %v", err)
		}
	})

	t.Run("Await rejects bad redirect", func(t *testing.T) {
		cfg := *config
		cfg.RedirectURL = "not a url"
		if _, err := AwaitAuthorization(context.Background(), &cfg, shared.NewLogger(io.Discard), io.Discard); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}
