// config.go: settings structure and loading for the voteapi server.
package conf

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// SQLiteSettings contains SQLite database settings.
type SQLiteSettings struct {
	Enabled bool   // true to use SQLite
	Path    string // path to the database file
}

// MySQLSettings contains MySQL database settings.
type MySQLSettings struct {
	Enabled  bool   // true to use MySQL
	Username string // MySQL username
	Password string // MySQL password
	Database string // MySQL database name
	Host     string // MySQL server host
	Port     string // MySQL server port
}

// DatabaseSettings selects and configures the backing store.
type DatabaseSettings struct {
	SQLite SQLiteSettings
	MySQL  MySQLSettings
}

// RedisSettings configures the connection used by the abuse-detection
// oracle. When disabled the server runs with abuse checks switched off.
type RedisSettings struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
}

// AbuseSettings tunes the suspicious-pattern thresholds.
type AbuseSettings struct {
	MaxFingerprintsPerIP int           // distinct fingerprints tolerated per IP inside FingerprintWindow
	MaxIPsPerFingerprint int           // distinct IPs tolerated per fingerprint inside IPWindow
	FingerprintWindow    time.Duration // sliding window for the per-IP fingerprint set
	IPWindow             time.Duration // sliding window for the per-fingerprint IP set
}

// SecuritySettings holds server-side secrets. IPPepper is mandatory: client
// IPs are never stored raw, only as peppered SHA-256 hashes.
type SecuritySettings struct {
	IPPepper          string   // pepper prepended to IPs before hashing, required
	AdminTokenPepper  string   // pepper for admin token hashing, falls back to IPPepper
	AdminTokensHashed []string // sha256(pepper+token) hex digests accepted on admin routes
}

// WebServerSettings configures the HTTP listener.
type WebServerSettings struct {
	Debug bool   // true to enable request debug logging
	Port  string // port to listen on
}

// VotingSettings tunes the rating engine.
type VotingSettings struct {
	EloKFactor       float64 // maximum rating swing per match
	EloInitialRating float64 // rating assigned before the first match
}

// LogSettings configures optional rotating file logging.
type LogSettings struct {
	Enabled    bool   // true to write logs to a file in addition to stdout
	Path       string // log file path
	MaxSize    int    // megabytes before rotation
	MaxBackups int    // rotated files to retain
	MaxAge     int    // days to retain rotated files
}

// Settings is the root configuration for the application.
type Settings struct {
	Debug bool // true to enable debug logging

	Database  DatabaseSettings
	Redis     RedisSettings
	Abuse     AbuseSettings
	Security  SecuritySettings
	WebServer WebServerSettings
	Voting    VotingSettings
	Log       LogSettings

	Telemetry struct {
		Enabled bool // true to expose Prometheus metrics at /metrics
	}

	Data struct {
		Dir string // directory holding category and item group definition files
	}
}

// Load reads the configuration file and environment and unmarshals it into
// a Settings struct.
func Load() (*Settings, error) {
	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, err
	}

	return settings, nil
}

// initViper initializes viper with defaults, the optional config file and
// environment variable bindings.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/voteapi")

	viper.SetEnvPrefix("voteapi")
	viper.AutomaticEnv()

	// Secrets always come from the environment, never from the config file.
	_ = viper.BindEnv("security.ippepper", "VOTE_IP_PEPPER")
	_ = viper.BindEnv("security.admintokenpepper", "ADMIN_TOKEN_PEPPER")
	_ = viper.BindEnv("security.admintokenshashed", "ADMIN_API_TOKENS_HASHED")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("fatal error reading config file: %w", err)
		}
		// Missing config file is fine, defaults plus environment apply.
	}

	return nil
}

// ValidateSettings checks that the settings are usable. A missing IP pepper
// is a hard configuration error: without it vote identities cannot be
// derived safely.
func ValidateSettings(settings *Settings) error {
	if settings.Security.IPPepper == "" {
		return errors.New("security.ippepper is required; set the VOTE_IP_PEPPER environment variable to a strong random string")
	}

	if !settings.Database.SQLite.Enabled && !settings.Database.MySQL.Enabled {
		return errors.New("no database configured: enable either database.sqlite or database.mysql")
	}

	return nil
}
