package models

import (
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/keithriordan/foyer/internal/shared"
	"golang.org/x/crypto/bcrypt"
)

// Model defines the base interface for all persistent models.
type Model interface {
	Validate() error // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
// Implementations handle database interactions for specific model types keyed by K.
type Repository[T Model, K comparable] interface {
	Create(model T) error                      // Create inserts a new model into the database
	Get(id K) (T, error)                       // Get retrieves a model by its ID
	Update(model T) error                      // Update modifies an existing model in the database
	Delete(id K) error                         // Delete removes a model from the database by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

// User is a site account. Users own gifts and custom lists and can be granted access to other users' lists.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// SetPassword stores a bcrypt hash of password.
func (u *User) SetPassword(password string) error {
	if password == "" {
		return fmt.Errorf("%w: password is required", shared.ErrInvalidInput)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword reports whether password matches the stored hash.
func (u *User) CheckPassword(password string) bool {
	if u.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

func (u *User) Validate() error {
	if strings.TrimSpace(u.Username) == "" {
		return fmt.Errorf("%w: username is required", shared.ErrInvalidInput)
	}
	if len(u.Username) > 64 {
		return fmt.Errorf("%w: username must be at most 64 characters", shared.ErrInvalidInput)
	}
	if !ValidEmail(u.Email) {
		return fmt.Errorf("%w: invalid email %q", shared.ErrInvalidInput, u.Email)
	}
	return nil
}

// Gift is a wishlist entry owned by a user. ImageURL is empty when no image was stored.
type Gift struct {
	ID        int64
	Title     string
	Body      string
	ImageURL  string
	Timestamp time.Time
	UserID    int64
}

func (g *Gift) Validate() error {
	if strings.TrimSpace(g.Title) == "" {
		return fmt.Errorf("%w: title is required", shared.ErrInvalidInput)
	}
	if strings.TrimSpace(g.Body) == "" {
		return fmt.Errorf("%w: body is required", shared.ErrInvalidInput)
	}
	if g.UserID == 0 {
		return fmt.Errorf("%w: owner is required", shared.ErrInvalidInput)
	}
	return nil
}

// Job is a tracked job listing. ListingImage holds the object key of its screenshot, empty until one is stored.
type Job struct {
	ID           int64
	Title        string
	CompanyName  string
	ListingURL   string
	ListingImage string
	PostedDate   time.Time
}

func (j *Job) Validate() error {
	if strings.TrimSpace(j.Title) == "" {
		return fmt.Errorf("%w: job title is required", shared.ErrInvalidInput)
	}
	if strings.TrimSpace(j.CompanyName) == "" {
		return fmt.Errorf("%w: company name is required", shared.ErrInvalidInput)
	}
	if !ValidURL(j.ListingURL) {
		return fmt.Errorf("%w: invalid listing url %q", shared.ErrInvalidInput, j.ListingURL)
	}
	return nil
}

// Playlist mirrors a YouTube playlist. ID is the platform's playlist id.
type Playlist struct {
	ID           string
	Title        string
	Description  string
	PublishedAt  time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ThumbnailURL string
}

func (p *Playlist) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: playlist id is required", shared.ErrInvalidInput)
	}
	return nil
}

// Video mirrors one playlist item. ID is the platform's playlist item id and VideoURLID the underlying video id.
type Video struct {
	ID           string
	PlaylistID   string
	VideoURLID   string
	Title        string
	Description  string
	ThumbnailURL string
	EmbedURL     string
	Watched      bool
	PublishedAt  time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (v *Video) Validate() error {
	if v.ID == "" || v.PlaylistID == "" {
		return fmt.Errorf("%w: video and playlist ids are required", shared.ErrInvalidInput)
	}
	return nil
}

// EmbedURL returns the player URL for a YouTube video id.
func EmbedURL(videoID string) string {
	return "https://www.youtube.com/embed/" + videoID
}

// CustomList is a user-owned collection of categories and items that can be shared with other users.
type CustomList struct {
	ID        int64
	Title     string
	UserID    int64
	CreatedAt time.Time
}

func (l *CustomList) Validate() error {
	if strings.TrimSpace(l.Title) == "" {
		return fmt.Errorf("%w: list title is required", shared.ErrInvalidInput)
	}
	if len(l.Title) > 100 {
		return fmt.Errorf("%w: list title must be at most 100 characters", shared.ErrInvalidInput)
	}
	if l.UserID == 0 {
		return fmt.Errorf("%w: owner is required", shared.ErrInvalidInput)
	}
	return nil
}

// ListCategory groups items inside a list. Ordering is the sort key among siblings.
type ListCategory struct {
	ID           int64
	Name         string
	Ordering     int
	CustomListID int64
}

func (c *ListCategory) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: category name is required", shared.ErrInvalidInput)
	}
	if c.CustomListID == 0 {
		return fmt.Errorf("%w: list is required", shared.ErrInvalidInput)
	}
	return nil
}

// ListItem is an entry in a category. Quantity and Notes are nil when unset.
type ListItem struct {
	ID         int64
	Name       string
	Quantity   *string
	Notes      *string
	Completed  bool
	Ordering   int
	CategoryID int64
}

func (i *ListItem) Validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return fmt.Errorf("%w: item name is required", shared.ErrInvalidInput)
	}
	if i.CategoryID == 0 {
		return fmt.Errorf("%w: category is required", shared.ErrInvalidInput)
	}
	return nil
}

// YouTubeCredential is the stored OAuth token a user granted for reading their YouTube account.
type YouTubeCredential struct {
	UserID       int64
	AccessToken  string
	RefreshToken string
	TokenType    string
	Expiry       time.Time
	UpdatedAt    time.Time
}

func (c *YouTubeCredential) Validate() error {
	if c.UserID == 0 || c.AccessToken == "" {
		return fmt.Errorf("%w: user and access token are required", shared.ErrInvalidInput)
	}
	return nil
}

// ValidEmail reports whether s is a bare email address.
func ValidEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

// ValidURL reports whether s is an absolute http(s) URL with a host.
func ValidURL(s string) bool {
	u, err := url.ParseRequestURI(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// NullableString returns nil for blank input, otherwise a pointer to the trimmed value.
func NullableString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
