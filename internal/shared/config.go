package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Server      ServerConfig      `toml:"server"`
	Database    DatabaseConfig    `toml:"database"`
	Credentials CredentialsConfig `toml:"credentials"`
	Storage     StorageConfig     `toml:"storage"`
	Library     LibraryConfig     `toml:"library"`
	Site        SiteConfig        `toml:"site"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host                 string `toml:"host"`
	Port                 int    `toml:"port"`
	SecretKey            string `toml:"secret_key"`
	SecureCookies        bool   `toml:"secure_cookies"`
	ContactRatePerMinute int    `toml:"contact_rate_per_minute"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Google   GoogleConfig   `toml:"google"`
	SendGrid SendGridConfig `toml:"sendgrid"`
	ApiLeap  ApiLeapConfig  `toml:"apileap"`
}

// GoogleConfig contains OAuth2 client credentials for the YouTube Data API.
type GoogleConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
}

// SendGridConfig contains outbound mail settings for the contact form.
type SendGridConfig struct {
	APIKey string `toml:"api_key"`
	From   string `toml:"from"`
	To     string `toml:"to"`
}

// ApiLeapConfig contains screenshot API settings.
type ApiLeapConfig struct {
	AccessKey string `toml:"access_key"`
	BaseURL   string `toml:"base_url"`
}

// StorageConfig contains S3 bucket settings.
type StorageConfig struct {
	Region          string `toml:"region"`
	Endpoint        string `toml:"endpoint"`
	JobWizardBucket string `toml:"jobwizard_bucket"`
	WishlistBucket  string `toml:"wishlist_bucket"`
}

// LibraryConfig contains playlist library settings.
type LibraryConfig struct {
	PlaylistIDsPath   string  `toml:"playlist_ids_path"`
	SubscriptionsPath string  `toml:"subscriptions_path"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	APIBaseURL        string  `toml:"api_base_url"`
}

// SiteConfig points at optional on-disk replacements for the embedded portfolio and resume data.
type SiteConfig struct {
	ProjectsPath string `toml:"projects_path"`
	ResumePath   string `toml:"resume_path"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, err)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadEnvFile loads KEY=value pairs from a dotenv file into the process environment.
//
// A missing file is not an error. Variables already set are left alone.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// ApplyEnv overrides config values from environment variables looked up with getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}

	if v := getenv("DATABASE_URL"); v != "" {
		c.Database.Path = databasePath(v)
	}
	set(&c.Server.SecretKey, "SECRET_KEY")
	set(&c.Credentials.SendGrid.APIKey, "SENDGRID_API_KEY")
	set(&c.Credentials.ApiLeap.AccessKey, "APILEAP_ACCESS_KEY")
	set(&c.Storage.JobWizardBucket, "JOBWIZARD_S3_BUCKET")
	set(&c.Storage.WishlistBucket, "WISHLIST_S3_BUCKET")
	set(&c.Storage.Region, "AWS_REGION")
	set(&c.Credentials.Google.ClientID, "GOOGLE_CLIENT_ID")
	set(&c.Credentials.Google.ClientSecret, "GOOGLE_CLIENT_SECRET")
	set(&c.Credentials.Google.RedirectURI, "GOOGLE_REDIRECT_URI")

	if v := getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
}

// Validate reports settings the web server cannot run without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.SecretKey) == "" {
		return fmt.Errorf("%w: server.secret_key (or SECRET_KEY) must be set", ErrInvalidConfig)
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("%w: server.port must be positive", ErrInvalidConfig)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database.path must be set", ErrInvalidConfig)
	}
	return nil
}

// Addr returns the host:port listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// databasePath strips sqlite URL schemes so DATABASE_URL can be given as a URL or a plain path.
func databasePath(url string) string {
	for _, prefix := range []string{"sqlite3://", "sqlite://"} {
		if strings.HasPrefix(url, prefix) {
			return strings.TrimPrefix(url, prefix)
		}
	}
	return url
}
