package web

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/keithriordan/foyer/internal/jobs"
	"github.com/keithriordan/foyer/internal/lists"
	"github.com/keithriordan/foyer/internal/models"
	"github.com/keithriordan/foyer/internal/services"
	"github.com/keithriordan/foyer/internal/shared"
	"github.com/keithriordan/foyer/internal/tasks"
	th "github.com/keithriordan/foyer/internal/testing"
	"golang.org/x/oauth2"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

const (
	keithEmail = "keith@example.com"
	anaEmail   = "ana@example.com"
	password   = "hunter22"
)

type testSite struct {
	app    *App
	srv    *httptest.Server
	keith  *models.User
	ana    *models.User
	mailer *th.MockMailer
	store  *th.RecordingBlobStore
}

func testConfig() *shared.Config {
	config := shared.DefaultConfig()
	config.Server.SecretKey = "test-secret"
	config.Database.Path = ":memory:"
	config.Storage.WishlistBucket = "wishes"
	config.Storage.JobWizardBucket = "jobwizard"
	return config
}

// newTestSite starts the app on an httptest server with two accounts. configure may adjust deps before New.
func newTestSite(t *testing.T, configure ...func(*Deps)) *testSite {
	t.Helper()

	db := setupTestDB(t)
	ts := &testSite{mailer: &th.MockMailer{}, store: &th.RecordingBlobStore{}}
	repos := NewRepositories(db)

	for _, u := range []struct{ name, email string }{{"keith", keithEmail}, {"ana", anaEmail}} {
		user := &models.User{Username: u.name, Email: u.email}
		if err := user.SetPassword(password); err != nil {
			t.Fatalf("SetPassword failed: %v", err)
		}
		if err := repos.Users.Create(user); err != nil {
			t.Fatalf("failed to create user: %v", err)
		}
		if u.email == keithEmail {
			ts.keith = user
		} else {
			ts.ana = user
		}
	}

	deps := Deps{
		DB:      db,
		Config:  testConfig(),
		Logger:  shared.NewLogger(io.Discard),
		Repos:   repos,
		Mailer:  ts.mailer,
		Storage: ts.store,
	}
	for _, fn := range configure {
		fn(&deps)
	}

	app, err := New(deps)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ts.app = app
	ts.srv = httptest.NewServer(app)
	t.Cleanup(ts.srv.Close)
	return ts
}

// client returns a browser-like client that keeps cookies and does not follow redirects.
func (ts *testSite) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (ts *testSite) loggedIn(t *testing.T, email string) *http.Client {
	t.Helper()
	c := ts.client(t)
	resp, _ := ts.post(t, c, "/login", url.Values{"email": {email}, "password": {password}})
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/" {
		t.Fatalf("login as %s failed: %d to %q", email, resp.StatusCode, resp.Header.Get("Location"))
	}
	return c
}

func read(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	return string(body)
}

func (ts *testSite) get(t *testing.T, c *http.Client, path string) (*http.Response, string) {
	t.Helper()
	resp, err := c.Get(ts.srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp, read(t, resp)
}

func (ts *testSite) post(t *testing.T, c *http.Client, path string, form url.Values) (*http.Response, string) {
	t.Helper()
	resp, err := c.PostForm(ts.srv.URL+path, form)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp, read(t, resp)
}

func (ts *testSite) postJSON(t *testing.T, c *http.Client, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	data, _ := json.Marshal(body)
	resp, err := c.Post(ts.srv.URL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(read(t, resp)), &out); err != nil {
		t.Fatalf("POST %s returned invalid JSON: %v", path, err)
	}
	return resp, out
}

// follow asserts resp redirects to target and returns the page found there.
func (ts *testSite) follow(t *testing.T, c *http.Client, resp *http.Response, target string) string {
	t.Helper()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Location"); got != target {
		t.Fatalf("expected redirect to %s, got %s", target, got)
	}
	_, body := ts.get(t, c, target)
	return body
}

func assertContains(t *testing.T, body, want string) {
	t.Helper()
	if !strings.Contains(body, template.HTMLEscapeString(want)) {
		t.Errorf("expected page to contain %q", want)
	}
}

// assertMarkup checks for raw markup, such as an attribute, that must not be escaped first.
func assertMarkup(t *testing.T, body, want string) {
	t.Helper()
	if !strings.Contains(body, want) {
		t.Errorf("expected markup %s", want)
	}
}

func assertStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Errorf("expected %d, got %d", want, resp.StatusCode)
	}
}

func TestNew(t *testing.T) {
	t.Run("Requires database and config", func(t *testing.T) {
		if _, err := New(Deps{}); !errors.Is(err, shared.ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("Requires secret key", func(t *testing.T) {
		config := testConfig()
		config.Server.SecretKey = ""
		_, err := New(Deps{DB: setupTestDB(t), Config: config, Logger: shared.NewLogger(io.Discard)})
		if !errors.Is(err, shared.ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("Every page template parses", func(t *testing.T) {
		ts := newTestSite(t)
		for _, name := range []string{
			"home", "resume", "contact", "login", "utilities", "media", "library", "playlist", "video",
			"jobs", "job_form", "job", "lists", "list", "wishlist", "gift_delete", "error",
		} {
			if _, ok := ts.app.templates[name]; !ok {
				t.Errorf("missing template %s", name)
			}
		}
	})
}

func TestPublicPages(t *testing.T) {
	ts := newTestSite(t)
	c := ts.client(t)

	tests := []struct {
		path string
		want string
	}{
		{"/", "Job Wizard"},
		{"/resume", "Software Engineer"},
		{"/contact", "Send"},
		{"/login", "Remember me"},
		{"/jobwizard", "No jobs tracked yet."},
		{"/jobwizard/add/", "Listing URL"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, body := ts.get(t, c, tt.path)
			assertStatus(t, resp, http.StatusOK)
			assertContains(t, body, tt.want)
			if resp.Header.Get("Content-Security-Policy") == "" {
				t.Error("expected a Content-Security-Policy header")
			}
		})
	}

	t.Run("Unknown path", func(t *testing.T) {
		resp, body := ts.get(t, c, "/nowhere")
		assertStatus(t, resp, http.StatusNotFound)
		assertContains(t, body, "Page not found")
	})

	t.Run("Wrong method reads as not found", func(t *testing.T) {
		resp, _ := ts.post(t, c, "/resume", nil)
		assertStatus(t, resp, http.StatusNotFound)
	})

	t.Run("Static assets", func(t *testing.T) {
		resp, body := ts.get(t, c, "/static/app.js")
		assertStatus(t, resp, http.StatusOK)
		if !strings.Contains(body, "reorder_items") {
			t.Error("expected the list script")
		}
	})

	t.Run("Health check", func(t *testing.T) {
		resp, body := ts.get(t, c, "/healthz")
		assertStatus(t, resp, http.StatusOK)
		if body != "ok" {
			t.Errorf("expected 'ok', got %q", body)
		}
	})

	t.Run("Metrics", func(t *testing.T) {
		resp, body := ts.get(t, c, "/metrics")
		assertStatus(t, resp, http.StatusOK)
		if !strings.Contains(body, `foyer_http_requests_total{method="GET",route="GET /resume",status="200"}`) {
			t.Errorf("expected request counter for /resume, got:\n%s", body)
		}
	})
}

func TestContact(t *testing.T) {
	valid := url.Values{
		"name":    {"Ana"},
		"email":   {anaEmail},
		"subject": {"Hello"},
		"message": {"Nice site."},
	}

	t.Run("Sends mail", func(t *testing.T) {
		ts := newTestSite(t)
		resp, body := ts.post(t, ts.client(t), "/contact", valid)
		assertStatus(t, resp, http.StatusOK)
		assertContains(t, body, "Thanks for your message!")

		if len(ts.mailer.Sent) != 1 {
			t.Fatalf("expected 1 message, got %d", len(ts.mailer.Sent))
		}
		msg := ts.mailer.Sent[0]
		if msg.Subject != "New message from Ana at ana@example.com" {
			t.Errorf("unexpected subject %q", msg.Subject)
		}
		if msg.To != "hello@keithriordan.com" || !strings.Contains(msg.HTML, "Nice site.") {
			t.Errorf("unexpected message %+v", msg)
		}
	})

	t.Run("Invalid form", func(t *testing.T) {
		ts := newTestSite(t)
		form := url.Values{"email": {"not-an-email"}, "message": {"hi"}}
		resp, body := ts.post(t, ts.client(t), "/contact", form)
		assertStatus(t, resp, http.StatusBadRequest)
		assertContains(t, body, "Please enter your name.")
		assertContains(t, body, "Please enter a valid email.")
		assertContains(t, body, "Please enter a subject.")
		if len(ts.mailer.Sent) != 0 {
			t.Error("expected no mail to be sent")
		}
	})

	t.Run("Mail failure", func(t *testing.T) {
		ts := newTestSite(t)
		ts.mailer.Err = errors.New("sendgrid down")
		resp, body := ts.post(t, ts.client(t), "/contact", valid)
		assertStatus(t, resp, http.StatusServiceUnavailable)
		assertContains(t, body, "Sorry, your message could not be sent. Please try again later.")
	})

	t.Run("No mailer configured", func(t *testing.T) {
		ts := newTestSite(t, func(d *Deps) { d.Mailer = nil })
		resp, _ := ts.post(t, ts.client(t), "/contact", valid)
		assertStatus(t, resp, http.StatusServiceUnavailable)
	})

	t.Run("Rate limited", func(t *testing.T) {
		ts := newTestSite(t, func(d *Deps) { d.Config.Server.ContactRatePerMinute = 1 })
		c := ts.client(t)

		resp, _ := ts.post(t, c, "/contact", valid)
		assertStatus(t, resp, http.StatusOK)

		resp, body := ts.post(t, c, "/contact", valid)
		assertStatus(t, resp, http.StatusTooManyRequests)
		assertContains(t, body, "Too many messages. Please try again later.")
		if len(ts.mailer.Sent) != 1 {
			t.Errorf("expected 1 message, got %d", len(ts.mailer.Sent))
		}
	})
}

func TestLogin(t *testing.T) {
	ts := newTestSite(t)

	t.Run("Bad password", func(t *testing.T) {
		c := ts.client(t)
		resp, _ := ts.post(t, c, "/login?next=/lists", url.Values{"email": {keithEmail}, "password": {"wrong"}})
		body := ts.follow(t, c, resp, "/login?next=%2Flists")
		assertContains(t, body, "Invalid username or password")
		assertMarkup(t, body, `action="/login?next=%2flists"`)
	})

	t.Run("Invalid form", func(t *testing.T) {
		resp, body := ts.post(t, ts.client(t), "/login", url.Values{"email": {"nobody"}})
		assertStatus(t, resp, http.StatusBadRequest)
		assertContains(t, body, "Please enter a valid email.")
		assertContains(t, body, requiredField)
	})

	t.Run("Next redirect", func(t *testing.T) {
		tests := []struct {
			next string
			want string
		}{
			{"/lists", "/lists"},
			{"https://evil.example.com", "/"},
			{"//evil.example.com", "/"},
			{"", "/"},
		}

		for _, tt := range tests {
			t.Run(tt.next, func(t *testing.T) {
				path := "/login"
				if tt.next != "" {
					path += "?next=" + url.QueryEscape(tt.next)
				}
				resp, _ := ts.post(t, ts.client(t), path, url.Values{"email": {keithEmail}, "password": {password}})
				if got := resp.Header.Get("Location"); got != tt.want {
					t.Errorf("expected redirect to %s, got %s", tt.want, got)
				}
			})
		}
	})

	t.Run("Session round trip", func(t *testing.T) {
		c := ts.loggedIn(t, keithEmail)

		_, body := ts.get(t, c, "/")
		assertContains(t, body, "Sign out (keith)")

		resp, _ := ts.get(t, c, "/login")
		if resp.StatusCode != http.StatusSeeOther {
			t.Errorf("expected logged-in user to be sent home, got %d", resp.StatusCode)
		}

		resp, _ = ts.get(t, c, "/logout")
		assertStatus(t, resp, http.StatusSeeOther)

		resp, _ = ts.get(t, c, "/lists")
		if resp.StatusCode != http.StatusFound {
			t.Errorf("expected login redirect after logout, got %d", resp.StatusCode)
		}
	})
}

func TestRequireLogin(t *testing.T) {
	ts := newTestSite(t)
	c := ts.client(t)

	for _, path := range []string{"/utilities", "/media", "/lib/", "/lists", "/wishlist/", "/lists/1"} {
		t.Run(path, func(t *testing.T) {
			resp, _ := ts.get(t, c, path)
			assertStatus(t, resp, http.StatusFound)
			if want := "/login?next=" + url.QueryEscape(path); resp.Header.Get("Location") != want {
				t.Errorf("expected redirect to %s, got %s", want, resp.Header.Get("Location"))
			}
		})
	}

	t.Run("JSON routes answer 401", func(t *testing.T) {
		resp, body := ts.postJSON(t, c, "/lists/1/toggle_item/1", nil)
		assertStatus(t, resp, http.StatusUnauthorized)
		if body["success"] != false || body["error"] != "Authentication required" {
			t.Errorf("unexpected body %v", body)
		}
	})
}

func TestJobWizard(t *testing.T) {
	t.Run("Screenshot failure still saves the job", func(t *testing.T) {
		shots := &th.MockScreenshot{Err: errors.New("apileap timeout")}
		ts := newTestSite(t, func(d *Deps) {
			d.Jobs = jobs.NewManager(d.DB, shots, d.Storage, "jobwizard", d.Logger)
		})
		c := ts.client(t)

		form := url.Values{"title": {"Engineer"}, "company_name": {"Acme"}, "listing_url": {"https://example.com/job/1"}}
		resp, _ := ts.post(t, c, "/jobwizard/add/", form)
		body := ts.follow(t, c, resp, "/jobwizard/1")
		assertContains(t, body, "Engineer")
		assertContains(t, body, "Acme")
		assertContains(t, body, "No screenshot available.")

		if len(shots.URLs) != 1 || shots.URLs[0] != "https://example.com/job/1" {
			t.Errorf("expected a capture of the listing, got %v", shots.URLs)
		}

		_, body = ts.get(t, c, "/jobwizard")
		assertMarkup(t, body, `href="/jobwizard/1"`)
	})

	t.Run("Shows stored screenshot", func(t *testing.T) {
		ts := newTestSite(t, func(d *Deps) {
			d.Jobs = jobs.NewManager(d.DB, &th.MockScreenshot{Image: []byte("jpeg")}, d.Storage, "jobwizard", d.Logger)
		})
		c := ts.client(t)

		form := url.Values{"title": {"Engineer"}, "company_name": {"Acme"}, "listing_url": {"https://example.com/job/1"}}
		resp, _ := ts.post(t, c, "/jobwizard/add/", form)
		body := ts.follow(t, c, resp, "/jobwizard/1")
		assertContains(t, body, "https://jobwizard.s3.amazonaws.com/")
	})

	t.Run("Invalid form", func(t *testing.T) {
		ts := newTestSite(t)
		resp, body := ts.post(t, ts.client(t), "/jobwizard/add/", url.Values{"listing_url": {"ftp://nope"}})
		assertStatus(t, resp, http.StatusBadRequest)
		assertContains(t, body, "What's the job title?")
		assertContains(t, body, "Need a company name")
		assertContains(t, body, "This url is no good")
	})

	t.Run("Unknown job", func(t *testing.T) {
		ts := newTestSite(t)
		for _, path := range []string{"/jobwizard/99", "/jobwizard/abc"} {
			resp, _ := ts.get(t, ts.client(t), path)
			assertStatus(t, resp, http.StatusNotFound)
		}
	})
}

// createList makes a list with one category and one item as owner and returns their ids.
func (ts *testSite) createList(t *testing.T, c *http.Client, owner *models.User) (listID, categoryID, itemID int64) {
	t.Helper()

	resp, _ := ts.post(t, c, "/lists/create", url.Values{"title": {"Groceries"}})
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", resp.StatusCode)
	}
	listID, err := strconv.ParseInt(strings.TrimPrefix(resp.Header.Get("Location"), "/lists/"), 10, 64)
	if err != nil {
		t.Fatalf("unexpected redirect %q", resp.Header.Get("Location"))
	}

	ts.post(t, c, listURL(listID), url.Values{"name": {"Produce"}})
	v, err := ts.app.Lists.View(*owner, listID)
	if err != nil || len(v.Categories) != 1 {
		t.Fatalf("expected one category, got %v", err)
	}
	categoryID = v.Categories[0].Category.ID

	ts.post(t, c, listURL(listID)+"/add_item", url.Values{
		"category_id": {strconv.FormatInt(categoryID, 10)},
		"name":        {"Apples"},
		"quantity":    {"6"},
	})
	v, _ = ts.app.Lists.View(*owner, listID)
	if len(v.Categories[0].Items) != 1 {
		t.Fatal("expected one item")
	}
	return listID, categoryID, v.Categories[0].Items[0].ID
}

func TestLists(t *testing.T) {
	t.Run("Create and view", func(t *testing.T) {
		ts := newTestSite(t)
		c := ts.loggedIn(t, keithEmail)
		listID, _, _ := ts.createList(t, c, ts.keith)

		_, body := ts.get(t, c, listURL(listID))
		assertContains(t, body, "Groceries")
		assertContains(t, body, "Produce")
		assertContains(t, body, "Apples")
		assertContains(t, body, "List created successfully.")

		_, body = ts.get(t, c, "/lists")
		assertContains(t, body, "Groceries")
	})

	t.Run("Create with empty title", func(t *testing.T) {
		ts := newTestSite(t)
		c := ts.loggedIn(t, keithEmail)
		resp, _ := ts.post(t, c, "/lists/create", url.Values{"title": {"  "}})
		body := ts.follow(t, c, resp, "/lists")
		assertContains(t, body, "Form validation failed: title: "+requiredField)
	})

	t.Run("Add item with bad category", func(t *testing.T) {
		ts := newTestSite(t)
		c := ts.loggedIn(t, keithEmail)
		listID, _, _ := ts.createList(t, c, ts.keith)

		for _, raw := range []string{"abc", "9999"} {
			resp, _ := ts.post(t, c, listURL(listID)+"/add_item", url.Values{"category_id": {raw}, "name": {"Pears"}})
			body := ts.follow(t, c, resp, listURL(listID))
			assertContains(t, body, "Invalid category ID: "+raw)
		}
	})

	t.Run("Share messages", func(t *testing.T) {
		ts := newTestSite(t)
		c := ts.loggedIn(t, keithEmail)
		listID, _, _ := ts.createList(t, c, ts.keith)
		share := listURL(listID) + "/share"

		tests := []struct {
			email string
			want  string
		}{
			{anaEmail, "List shared with ana@example.com successfully."},
			{anaEmail, "List is already shared with ana@example.com."},
			{"nobody@example.com", "No user found with email nobody@example.com."},
			{keithEmail, "You can't share a list with yourself."},
			{"", "Please provide an email address."},
		}

		for _, tt := range tests {
			resp, _ := ts.post(t, c, share, url.Values{"email": {tt.email}})
			body := ts.follow(t, c, resp, listURL(listID))
			assertContains(t, body, tt.want)
		}

		ana := ts.loggedIn(t, anaEmail)
		resp, body := ts.get(t, ana, listURL(listID))
		assertStatus(t, resp, http.StatusOK)
		assertContains(t, body, "Apples")

		resp, _ = ts.post(t, ana, share, url.Values{"email": {"someone@example.com"}})
		body = ts.follow(t, ana, resp, listURL(listID))
		assertContains(t, body, "You can only share lists you own.")

		_, body = ts.get(t, ana, "/lists")
		assertContains(t, body, "Groceries")
	})

	t.Run("Toggle item", func(t *testing.T) {
		ts := newTestSite(t)
		c := ts.loggedIn(t, keithEmail)
		listID, _, itemID := ts.createList(t, c, ts.keith)
		path := fmt.Sprintf("%s/toggle_item/%d", listURL(listID), itemID)

		for _, want := range []bool{true, false} {
			resp, body := ts.postJSON(t, c, path, nil)
			assertStatus(t, resp, http.StatusOK)
			if body["success"] != true || body["completed"] != want {
				t.Errorf("expected completed=%v, got %v", want, body)
			}
		}

		resp, body := ts.postJSON(t, c, listURL(listID)+"/toggle_item/9999", nil)
		assertStatus(t, resp, http.StatusNotFound)
		if body["error"] != "Not found" {
			t.Errorf("unexpected body %v", body)
		}
	})

	t.Run("Stranger is turned away", func(t *testing.T) {
		ts := newTestSite(t)
		c := ts.loggedIn(t, keithEmail)
		listID, categoryID, itemID := ts.createList(t, c, ts.keith)
		ana := ts.loggedIn(t, anaEmail)

		resp, _ := ts.get(t, ana, listURL(listID))
		body := ts.follow(t, ana, resp, "/lists")
		assertContains(t, body, noAccess)

		resp, js := ts.postJSON(t, ana, fmt.Sprintf("%s/toggle_item/%d", listURL(listID), itemID), nil)
		assertStatus(t, resp, http.StatusForbidden)
		if js["error"] != "Access denied" {
			t.Errorf("unexpected body %v", js)
		}

		resp, _ = ts.get(t, ana, listURL(listID)+"/debug")
		assertStatus(t, resp, http.StatusForbidden)

		resp, _ = ts.post(t, ana, listURL(listID)+"/add_item", url.Values{"category_id": {"abc"}, "name": {""}})
		body = ts.follow(t, ana, resp, "/lists")
		assertContains(t, body, noAccess)

		resp, _ = ts.post(t, ana, fmt.Sprintf("%s/categories/%d/delete", listURL(listID), categoryID), nil)
		ts.follow(t, ana, resp, "/lists")

		resp, _ = ts.post(t, ana, listURL(listID)+"/delete", nil)
		ts.follow(t, ana, resp, listURL(listID))
		_, body = ts.get(t, ana, "/lists")
		assertContains(t, body, "You can only delete lists you own.")

		if ok, _ := ts.app.Lists.CanAccess(*ts.keith, listID); !ok {
			t.Error("expected list to survive")
		}
	})

	t.Run("Reorder skips foreign entries", func(t *testing.T) {
		ts := newTestSite(t)
		c := ts.loggedIn(t, keithEmail)
		listID, categoryID, itemID := ts.createList(t, c, ts.keith)

		ana := ts.loggedIn(t, anaEmail)
		_, foreignCategory, foreignItem := ts.createList(t, ana, ts.ana)

		resp, body := ts.postJSON(t, c, listURL(listID)+"/reorder_items", map[string]any{
			"items": []map[string]any{
				{"id": itemID, "ordering": 4},
				{"id": foreignItem, "ordering": 9},
			},
		})
		assertStatus(t, resp, http.StatusOK)
		if body["success"] != true {
			t.Errorf("unexpected body %v", body)
		}

		resp, _ = ts.postJSON(t, c, listURL(listID)+"/reorder_categories", map[string]any{
			"categories": []map[string]any{
				{"id": categoryID, "ordering": 2},
				{"id": foreignCategory, "ordering": 7},
			},
		})
		assertStatus(t, resp, http.StatusOK)

		mine, _ := ts.app.Lists.View(*ts.keith, listID)
		if mine.Categories[0].Category.Ordering != 2 || mine.Categories[0].Items[0].Ordering != 4 {
			t.Errorf("expected own entries reordered, got category %d item %d",
				mine.Categories[0].Category.Ordering, mine.Categories[0].Items[0].Ordering)
		}

		theirs, _ := ts.app.Lists.View(*ts.ana, onlyList(t, ts, ts.ana))
		if theirs.Categories[0].Category.Ordering != 1 || theirs.Categories[0].Items[0].Ordering != 1 {
			t.Error("expected foreign entries untouched")
		}
	})

	t.Run("Reorder applies valid entries next to impossible ids", func(t *testing.T) {
		ts := newTestSite(t)
		c := ts.loggedIn(t, keithEmail)
		listID, categoryID, itemID := ts.createList(t, c, ts.keith)

		resp, err := c.Post(ts.srv.URL+listURL(listID)+"/reorder_items", "application/json", strings.NewReader("{"))
		if err != nil {
			t.Fatal(err)
		}
		read(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)

		resp, _ = ts.postJSON(t, c, listURL(listID)+"/reorder_items", map[string]any{
			"items": []map[string]any{
				{"id": itemID, "ordering": 7},
				{"id": 0, "ordering": 3},
				{"id": -5, "ordering": 2},
			},
		})
		assertStatus(t, resp, http.StatusOK)

		resp, _ = ts.postJSON(t, c, listURL(listID)+"/reorder_categories", map[string]any{
			"categories": []map[string]any{
				{"id": 0, "ordering": 8},
				{"id": categoryID, "ordering": 5},
			},
		})
		assertStatus(t, resp, http.StatusOK)

		view, err := ts.app.Lists.View(*ts.keith, listID)
		if err != nil {
			t.Fatalf("View failed: %v", err)
		}
		if got := view.Categories[0].Items[0].Ordering; got != 7 {
			t.Errorf("expected item ordering 7, got %d", got)
		}
		if got := view.Categories[0].Category.Ordering; got != 5 {
			t.Errorf("expected category ordering 5, got %d", got)
		}
	})

	t.Run("Add item to a missing list is not found", func(t *testing.T) {
		ts := newTestSite(t)
		c := ts.loggedIn(t, keithEmail)

		resp, _ := ts.post(t, c, listURL(99999)+"/add_item", url.Values{"category_id": {"1"}, "name": {"Pears"}})
		assertStatus(t, resp, http.StatusNotFound)
	})

	t.Run("Debug dump", func(t *testing.T) {
		ts := newTestSite(t)
		c := ts.loggedIn(t, keithEmail)
		listID, _, _ := ts.createList(t, c, ts.keith)

		resp, err := c.Get(ts.srv.URL + listURL(listID) + "/debug")
		if err != nil {
			t.Fatal(err)
		}
		var dump lists.Debug
		if err := json.Unmarshal([]byte(read(t, resp)), &dump); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if dump.ListTitle != "Groceries" || len(dump.Categories) != 1 || dump.Categories[0].Items[0].Name != "Apples" {
			t.Errorf("unexpected dump %+v", dump)
		}
	})

	t.Run("Deletes", func(t *testing.T) {
		ts := newTestSite(t)
		c := ts.loggedIn(t, keithEmail)
		listID, categoryID, itemID := ts.createList(t, c, ts.keith)

		resp, _ := ts.post(t, c, fmt.Sprintf("%s/items/%d/delete", listURL(listID), itemID), nil)
		assertContains(t, ts.follow(t, c, resp, listURL(listID)), "Item deleted.")

		resp, _ = ts.post(t, c, fmt.Sprintf("%s/categories/%d/delete", listURL(listID), categoryID), nil)
		assertContains(t, ts.follow(t, c, resp, listURL(listID)), "Category deleted.")

		resp, _ = ts.post(t, c, listURL(listID)+"/delete", nil)
		assertContains(t, ts.follow(t, c, resp, "/lists"), "List deleted.")

		if _, err := ts.app.Lists.View(*ts.keith, listID); err == nil {
			t.Error("expected list to be gone")
		}
	})
}

func onlyList(t *testing.T, ts *testSite, owner *models.User) int64 {
	t.Helper()
	overview, err := ts.app.Lists.Overview(*owner)
	if err != nil || len(overview.Owned) != 1 {
		t.Fatalf("expected one list for %s, got %v", owner.Username, err)
	}
	return overview.Owned[0].ID
}

func giftUpload(t *testing.T, fields map[string]string, filename string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	if filename != "" {
		part, err := mw.CreateFormFile("image", filename)
		if err != nil {
			t.Fatal(err)
		}
		part.Write([]byte("\x89PNG fake image"))
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func (ts *testSite) addGift(t *testing.T, c *http.Client, title, filename string) (*http.Response, string) {
	t.Helper()
	body, contentType := giftUpload(t, map[string]string{"title": title, "body": "Something nice"}, filename)
	resp, err := c.Post(ts.srv.URL+"/wishlist/", contentType, body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, read(t, resp)
}

func (ts *testSite) onlyGift(t *testing.T, owner *models.User) *models.Gift {
	t.Helper()
	gifts, err := ts.app.Repos.Gifts.List(map[string]any{"user_id": owner.ID})
	if err != nil || len(gifts) != 1 {
		t.Fatalf("expected one gift, got %d (%v)", len(gifts), err)
	}
	return gifts[0]
}

func TestWishlist(t *testing.T) {
	t.Run("Upload image", func(t *testing.T) {
		ts := newTestSite(t)
		c := ts.loggedIn(t, keithEmail)

		resp, _ := ts.addGift(t, c, "Bike", "bike.PNG")
		body := ts.follow(t, c, resp, "/wishlist/")
		assertContains(t, body, "Gift added to your wishlist.")
		assertContains(t, body, "Bike")

		if len(ts.store.Objects) != 1 {
			t.Fatalf("expected one upload, got %d", len(ts.store.Objects))
		}
		obj := ts.store.Objects[0]
		if obj.Bucket != "wishes" || obj.ContentType != "image/png" || !strings.HasSuffix(obj.Key, ".png") {
			t.Errorf("unexpected upload %+v", obj)
		}

		gift := ts.onlyGift(t, ts.keith)
		if gift.ImageURL != "https://wishes.s3.amazonaws.com/"+obj.Key {
			t.Errorf("unexpected image url %s", gift.ImageURL)
		}
	})

	t.Run("Upload failure keeps the gift", func(t *testing.T) {
		ts := newTestSite(t)
		ts.store.Err = errors.New("s3 down")
		c := ts.loggedIn(t, keithEmail)

		resp, _ := ts.addGift(t, c, "Bike", "bike.jpg")
		ts.follow(t, c, resp, "/wishlist/")
		if gift := ts.onlyGift(t, ts.keith); gift.ImageURL != "" {
			t.Errorf("expected no image url, got %s", gift.ImageURL)
		}
	})

	t.Run("Without image", func(t *testing.T) {
		ts := newTestSite(t)
		c := ts.loggedIn(t, keithEmail)
		resp, _ := ts.addGift(t, c, "Book", "")
		ts.follow(t, c, resp, "/wishlist/")
		ts.onlyGift(t, ts.keith)
		if len(ts.store.Objects) != 0 {
			t.Error("expected no upload")
		}
	})

	t.Run("Invalid form", func(t *testing.T) {
		ts := newTestSite(t)
		c := ts.loggedIn(t, keithEmail)

		resp, body := ts.addGift(t, c, "Bike", "bike.gif")
		assertStatus(t, resp, http.StatusBadRequest)
		assertContains(t, body, "Images must be jpg, jpeg or png.")

		resp, body = ts.addGift(t, c, "", "")
		assertStatus(t, resp, http.StatusBadRequest)
		assertContains(t, body, requiredField)
	})

	t.Run("Only owners see their gifts", func(t *testing.T) {
		ts := newTestSite(t)
		c := ts.loggedIn(t, keithEmail)
		ts.addGift(t, c, "Bike", "")

		_, body := ts.get(t, ts.loggedIn(t, anaEmail), "/wishlist/")
		assertContains(t, body, "Your wishlist is empty.")
	})

	t.Run("Delete with confirmation", func(t *testing.T) {
		ts := newTestSite(t)
		c := ts.loggedIn(t, keithEmail)
		ts.addGift(t, c, "Bike", "")
		gift := ts.onlyGift(t, ts.keith)
		path := fmt.Sprintf("/wishlist/%d/delete", gift.ID)

		resp, body := ts.get(t, c, path)
		assertStatus(t, resp, http.StatusOK)
		assertContains(t, body, "Delete Bike?")

		resp, _ = ts.post(t, c, path, url.Values{"confirm": {"no"}})
		assertContains(t, ts.follow(t, c, resp, "/wishlist/"), "Gift kept.")
		ts.onlyGift(t, ts.keith)

		resp, _ = ts.post(t, c, path, url.Values{"confirm": {"yes"}})
		assertContains(t, ts.follow(t, c, resp, "/wishlist/"), "Gift deleted.")
		if _, err := ts.app.Repos.Gifts.Get(gift.ID); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Stranger cannot delete", func(t *testing.T) {
		ts := newTestSite(t)
		ts.addGift(t, ts.loggedIn(t, keithEmail), "Bike", "")
		gift := ts.onlyGift(t, ts.keith)
		path := fmt.Sprintf("/wishlist/%d/delete", gift.ID)
		ana := ts.loggedIn(t, anaEmail)

		resp, _ := ts.get(t, ana, path)
		assertStatus(t, resp, http.StatusForbidden)

		resp, _ = ts.post(t, ana, path, url.Values{"confirm": {"yes"}})
		assertStatus(t, resp, http.StatusForbidden)
		ts.onlyGift(t, ts.keith)

		resp, _ = ts.get(t, ana, "/wishlist/9999/delete")
		assertStatus(t, resp, http.StatusNotFound)
	})
}

func ytPlaylist(id, title string) services.YouTubePlaylist {
	p := services.YouTubePlaylist{ID: id}
	p.Snippet.Title = title
	p.Snippet.PublishedAt = "2024-03-01T12:00:00Z"
	return p
}

func ytItem(id, videoID, title string) services.YouTubePlaylistItem {
	i := services.YouTubePlaylistItem{ID: id}
	i.Snippet.Title = title
	i.Snippet.PublishedAt = "2024-03-02T08:30:00Z"
	i.ContentDetails.VideoID = videoID
	i.Status.PrivacyStatus = "public"
	i.Status.UploadStatus = "processed"
	return i
}

func withSource(source services.VideoSource, err error) func(*Deps) {
	return func(d *Deps) {
		connector := tasks.ConnectorFunc(func(ctx context.Context, user models.User) (services.VideoSource, error) {
			return source, err
		})
		d.Sync = tasks.NewSyncEngine(d.DB, connector, "", d.Logger)
	}
}

func TestLibrary(t *testing.T) {
	source := &th.FakeVideoSource{
		Mine:  []services.YouTubePlaylist{ytPlaylist("PL1", "Talks")},
		Items: map[string][]services.YouTubePlaylistItem{"PL1": {ytItem("item-1", "vid1", "Gophers")}},
	}

	t.Run("Sync and browse", func(t *testing.T) {
		ts := newTestSite(t, withSource(source, nil))
		c := ts.loggedIn(t, keithEmail)

		resp, _ := ts.post(t, c, "/lib/sync_playlists", nil)
		body := ts.follow(t, c, resp, "/utilities")
		assertContains(t, body, "Sync complete: Synced 1 playlists (1 new, 0 updated) and 1 videos (1 new, 0 updated, 0 skipped)")

		_, body = ts.get(t, c, "/lib/")
		assertMarkup(t, body, `href="/lib/playlist/PL1"`)

		_, body = ts.get(t, c, "/lib/playlist/PL1")
		assertContains(t, body, "Gophers")

		_, body = ts.get(t, c, "/media")
		assertContains(t, body, "Talks")
		assertContains(t, body, "Gophers")

		_, body = ts.get(t, c, "/lib/videos/item-1")
		assertContains(t, body, "https://www.youtube.com/embed/vid1")
		assertContains(t, body, "Mark as watched")

		resp, _ = ts.post(t, c, "/lib/videos/item-1/watched", nil)
		body = ts.follow(t, c, resp, "/lib/videos/item-1")
		assertContains(t, body, "Marked as watched.")
		assertContains(t, body, "Mark as unwatched")

		for _, path := range []string{"/lib/playlist/missing", "/lib/videos/missing"} {
			resp, _ := ts.get(t, c, path)
			assertStatus(t, resp, http.StatusNotFound)
		}
	})

	t.Run("Authorization required", func(t *testing.T) {
		ts := newTestSite(t, withSource(nil, fmt.Errorf("%w: no youtube credentials", shared.ErrAuthorizationRequired)))
		c := ts.loggedIn(t, keithEmail)

		resp, _ := ts.post(t, c, "/lib/sync_playlists", nil)
		if resp.Header.Get("Location") != "/oauth/authorize" {
			t.Errorf("expected redirect to /oauth/authorize, got %s", resp.Header.Get("Location"))
		}
	})

	t.Run("Fetch failure", func(t *testing.T) {
		ts := newTestSite(t, withSource(&th.FakeVideoSource{Err: errors.New("quota exceeded")}, nil))
		c := ts.loggedIn(t, keithEmail)

		resp, _ := ts.post(t, c, "/lib/sync_playlists", nil)
		body := ts.follow(t, c, resp, "/utilities")
		assertContains(t, body, "Error: sync failed. Check the server logs for details.")
		if strings.Contains(body, "quota exceeded") {
			t.Error("expected the upstream error to stay out of the flash")
		}
	})

	t.Run("Not configured", func(t *testing.T) {
		ts := newTestSite(t)
		c := ts.loggedIn(t, keithEmail)

		resp, _ := ts.post(t, c, "/lib/sync_playlists", nil)
		assertContains(t, ts.follow(t, c, resp, "/utilities"), "YouTube sync is not configured.")
	})

	t.Run("Export subscriptions", func(t *testing.T) {
		sub := services.YouTubeSubscription{ID: "sub-1"}
		sub.Snippet.Title = "Go Channel"
		sub.Snippet.ResourceID.ChannelID = "UC123"
		path := filepath.Join(t.TempDir(), "subs.json")

		ts := newTestSite(t, withSource(&th.FakeVideoSource{Subs: []services.YouTubeSubscription{sub}}, nil), func(d *Deps) {
			d.Config.Library.SubscriptionsPath = path
		})
		c := ts.loggedIn(t, keithEmail)

		resp, _ := ts.post(t, c, "/lib/export_subscriptions", nil)
		body := ts.follow(t, c, resp, "/utilities")
		assertContains(t, body, "Successfully exported 1 subscriptions to subs.json")

		th.AssertFileExists(t, path)
		if data := th.MustReadFile(t, path); !strings.Contains(data, "UC123") {
			t.Errorf("expected channel id in export, got %s", data)
		}
	})
}

func TestOAuth(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"access","token_type":"Bearer","refresh_token":"refresh","expires_in":3600}`)
	}))
	defer tokenServer.Close()

	withOAuth := func(d *Deps) {
		d.OAuth = &oauth2.Config{
			ClientID:     "id",
			ClientSecret: "secret",
			RedirectURL:  "http://127.0.0.1/oauth/oauth2callback",
			Endpoint:     oauth2.Endpoint{AuthURL: tokenServer.URL + "/auth", TokenURL: tokenServer.URL + "/token"},
		}
	}

	authorize := func(t *testing.T, ts *testSite, c *http.Client) string {
		t.Helper()
		resp, _ := ts.get(t, c, "/oauth/authorize")
		assertStatus(t, resp, http.StatusFound)
		loc, err := url.Parse(resp.Header.Get("Location"))
		if err != nil || !strings.HasPrefix(loc.String(), tokenServer.URL+"/auth") {
			t.Fatalf("unexpected consent url %q", resp.Header.Get("Location"))
		}
		if loc.Query().Get("access_type") != "offline" {
			t.Error("expected offline access")
		}
		return loc.Query().Get("state")
	}

	t.Run("Stores the token", func(t *testing.T) {
		ts := newTestSite(t, withOAuth)
		c := ts.loggedIn(t, keithEmail)
		state := authorize(t, ts, c)

		resp, _ := ts.get(t, c, "/oauth/oauth2callback?code=abc&state="+url.QueryEscape(state))
		body := ts.follow(t, c, resp, "/utilities")
		assertContains(t, body, "YouTube account connected.")

		cred, err := ts.app.Repos.Credentials.Get(ts.keith.ID)
		if err != nil {
			t.Fatalf("credential not stored: %v", err)
		}
		if cred.AccessToken != "access" || cred.RefreshToken != "refresh" {
			t.Errorf("unexpected credential %+v", cred)
		}
	})

	t.Run("State is single use", func(t *testing.T) {
		ts := newTestSite(t, withOAuth)
		c := ts.loggedIn(t, keithEmail)
		state := authorize(t, ts, c)

		callback := "/oauth/oauth2callback?code=abc&state=" + url.QueryEscape(state)
		resp, _ := ts.get(t, c, callback)
		ts.follow(t, c, resp, "/utilities")

		resp, _ = ts.get(t, c, callback)
		body := ts.follow(t, c, resp, "/utilities")
		assertContains(t, body, "Authorization failed: the request could not be verified.")
	})

	t.Run("Rejects bad callbacks", func(t *testing.T) {
		tests := []struct {
			name  string
			query func(state string) string
			want  string
		}{
			{"wrong state", func(string) string { return "code=abc&state=forged" }, "the request could not be verified."},
			{"denied", func(s string) string { return "error=access_denied&state=" + url.QueryEscape(s) }, "Authorization failed: access_denied"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				ts := newTestSite(t, withOAuth)
				c := ts.loggedIn(t, keithEmail)
				state := authorize(t, ts, c)

				resp, _ := ts.get(t, c, "/oauth/oauth2callback?"+tt.query(state))
				assertContains(t, ts.follow(t, c, resp, "/utilities"), tt.want)
				if _, err := ts.app.Repos.Credentials.Get(ts.keith.ID); !errors.Is(err, shared.ErrNotFound) {
					t.Errorf("expected no credential, got %v", err)
				}
			})
		}
	})

	t.Run("Not configured", func(t *testing.T) {
		ts := newTestSite(t)
		c := ts.loggedIn(t, keithEmail)
		resp, _ := ts.get(t, c, "/oauth/authorize")
		assertContains(t, ts.follow(t, c, resp, "/utilities"), "Google OAuth is not configured.")
	})
}

func TestUtilities(t *testing.T) {
	ts := newTestSite(t)
	c := ts.loggedIn(t, keithEmail)

	_, body := ts.get(t, c, "/utilities")
	assertContains(t, body, "YouTube sync is not configured on this server.")
}
