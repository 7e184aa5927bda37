package server

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/sessions"
	"github.com/keithriordan/foyer/internal/models"
	"github.com/keithriordan/foyer/internal/shared"
)

const (
	// AuthCookieName holds the signed identity token.
	AuthCookieName = "auth_token"
	sessionName    = "foyer_session"
	tokenIssuer    = "foyer"

	// RememberFor is the lifetime of a "remember me" login.
	RememberFor = 30 * 24 * time.Hour
	// SessionFor bounds a browser-session login.
	SessionFor = 12 * time.Hour
)

// Flash categories understood by the templates.
const (
	FlashSuccess = "success"
	FlashInfo    = "info"
	FlashWarning = "warning"
	FlashDanger  = "danger"
)

var flashCategories = []string{FlashSuccess, FlashInfo, FlashWarning, FlashDanger}

// Flash is a one-time message shown on the next rendered page.
type Flash struct {
	Category string
	Message  string
}

// UserLookup loads the user named by an identity token.
type UserLookup interface {
	Get(id int64) (*models.User, error)
}

type userKey struct{}

// Sessions issues identity cookies and keeps per-browser state such as flashes.
//
// Identity is an HS256 JWT carrying the user id; everything else lives in a signed and encrypted gorilla cookie.
type Sessions struct {
	secret []byte
	secure bool
	store  *sessions.CookieStore
	users  UserLookup
	logger *log.Logger
	now    func() time.Time
}

// NewSessions derives the token and cookie keys from secret.
func NewSessions(secret string, secure bool, users UserLookup, logger *log.Logger) (*Sessions, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("%w: server secret_key", shared.ErrMissingConfig)
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	hashKey := sha256.Sum256([]byte("session-hash:" + secret))
	blockKey := sha256.Sum256([]byte("session-block:" + secret))
	store := sessions.NewCookieStore(hashKey[:], blockKey[:])
	store.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}

	return &Sessions{
		secret: []byte(secret),
		secure: secure,
		store:  store,
		users:  users,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Login sets the identity cookie for user. With remember set the cookie persists for [RememberFor].
func (s *Sessions) Login(w http.ResponseWriter, user *models.User, remember bool) error {
	ttl := SessionFor
	if remember {
		ttl = RememberFor
	}

	token, err := s.issue(user.ID, ttl)
	if err != nil {
		return err
	}

	cookie := &http.Cookie{
		Name:     AuthCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if remember {
		cookie.MaxAge = int(RememberFor.Seconds())
	}
	http.SetCookie(w, cookie)
	return nil
}

// Logout clears the identity cookie.
func (s *Sessions) Logout(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Sessions) issue(userID int64, ttl time.Duration) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign identity token: %w", err)
	}
	return signed, nil
}

// UserID validates token and returns the user id it carries.
func (s *Sessions) UserID(token string) (int64, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", shared.ErrNotAuthenticated, err)
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad subject %q", shared.ErrNotAuthenticated, claims.Subject)
	}
	return id, nil
}

// Authenticate attaches the logged-in user to the request context. It never rejects a request.
func (s *Sessions) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(AuthCookieName)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		id, err := s.UserID(cookie.Value)
		if err != nil {
			s.logger.Debug("discarding identity cookie", "err", err)
			s.Logout(w)
			next.ServeHTTP(w, r)
			return
		}

		user, err := s.users.Get(id)
		if err != nil {
			if !errors.Is(err, shared.ErrNotFound) {
				s.logger.Error("failed to load session user", "user", id, "err", err)
			}
			s.Logout(w)
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), *user)))
	})
}

// WithUser returns a copy of ctx carrying user.
func WithUser(ctx context.Context, user models.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// CurrentUser returns the user attached by [Sessions.Authenticate].
func CurrentUser(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(userKey{}).(models.User)
	return user, ok
}

// RequireUser redirects anonymous requests to the login page, remembering where they were going.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r.Context()); !ok {
			target := "/login?next=" + url.QueryEscape(r.URL.RequestURI())
			http.Redirect(w, r, target, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireUserJSON answers anonymous requests with a 401 JSON body.
func RequireUserJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r.Context()); !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "Authentication required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SafeNext returns next when it is a local path, and "/" otherwise.
func SafeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") ||
		strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}

func (s *Sessions) session(r *http.Request) *sessions.Session {
	// A cookie signed with an old key yields a fresh session plus an error.
	sess, err := s.store.Get(r, sessionName)
	if err != nil {
		s.logger.Debug("resetting session cookie", "err", err)
	}
	return sess
}

// AddFlash queues message under category for the next page render.
func (s *Sessions) AddFlash(w http.ResponseWriter, r *http.Request, category, message string) {
	sess := s.session(r)
	sess.AddFlash(message, category)
	if err := sess.Save(r, w); err != nil {
		s.logger.Error("failed to save flash", "err", err)
	}
}

// Flashes drains every queued message.
func (s *Sessions) Flashes(w http.ResponseWriter, r *http.Request) []Flash {
	sess := s.session(r)

	var out []Flash
	for _, category := range flashCategories {
		for _, v := range sess.Flashes(category) {
			if msg, ok := v.(string); ok {
				out = append(out, Flash{Category: category, Message: msg})
			}
		}
	}

	if len(out) > 0 {
		if err := sess.Save(r, w); err != nil {
			s.logger.Error("failed to clear flashes", "err", err)
		}
	}
	return out
}

// Put stores a string value in the session cookie.
func (s *Sessions) Put(w http.ResponseWriter, r *http.Request, key, value string) error {
	sess := s.session(r)
	sess.Values[key] = value
	return sess.Save(r, w)
}

// Pop removes and returns a value stored by [Sessions.Put].
func (s *Sessions) Pop(w http.ResponseWriter, r *http.Request, key string) (string, error) {
	sess := s.session(r)
	value, ok := sess.Values[key].(string)
	if !ok {
		return "", fmt.Errorf("%w: session value %s", shared.ErrNotFound, key)
	}
	delete(sess.Values, key)
	return value, sess.Save(r, w)
}
