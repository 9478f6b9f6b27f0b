package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Tracking modes.
const (
	// TrackingMarker records processed notes by adding a tag to their header.
	TrackingMarker = "marker"
	// TrackingLedger records processed notes in SQLite and leaves files untouched.
	TrackingLedger = "ledger"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Notes    NotesConfig       `yaml:"notes"`
	Counts   CountsConfig      `yaml:"counts"`
	Report   ReportConfig      `yaml:"report"`
	Tracking TrackingConfig    `yaml:"tracking"`
	Watch    WatchConfig       `yaml:"watch"`
	Auth     AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Notes.Validate(); err != nil {
		return fmt.Errorf("notes: %w", err)
	}
	if err := c.Counts.Validate(); err != nil {
		return fmt.Errorf("counts: %w", err)
	}
	if err := c.Report.Validate(); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	if err := c.Tracking.Validate(); err != nil {
		return fmt.Errorf("tracking: %w", err)
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// NotesConfig describes where job notes live and how they are classified.
type NotesConfig struct {
	Path         string   `yaml:"path"`
	Extension    string   `yaml:"extension"`
	Recursive    bool     `yaml:"recursive"`
	Exclude      []string `yaml:"exclude"` // glob patterns relative to Path
	IndexNote    string   `yaml:"index_note"`
	IgnoreSkills []string `yaml:"ignore_skills"`
	IncludeTag   string   `yaml:"include_tag"`
	RejectTag    string   `yaml:"reject_tag"`
	ProcessedTag string   `yaml:"processed_tag"`
}

// Validate validates the notes configuration.
func (c *NotesConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Extension, validation.Required),
		validation.Field(&c.IncludeTag, validation.Required),
		validation.Field(&c.RejectTag, validation.Required),
		validation.Field(&c.ProcessedTag, validation.Required),
	); err != nil {
		return err
	}
	if c.ProcessedTag == c.IncludeTag || c.ProcessedTag == c.RejectTag {
		return fmt.Errorf("processed_tag %q must differ from include_tag and reject_tag", c.ProcessedTag)
	}
	return nil
}

// CountsConfig holds the location of the persisted skill totals.
type CountsConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the counts configuration.
func (c *CountsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// ReportConfig controls the rendered chart.
type ReportConfig struct {
	Path   string  `yaml:"path"`
	TopN   int     `yaml:"top_n"`
	Width  float64 `yaml:"width"`  // inches
	Height float64 `yaml:"height"` // inches
	Title  string  `yaml:"title"`  // may contain %d for the bar count
}

// Validate validates the report configuration.
func (c *ReportConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.TopN, validation.Required, validation.Min(1)),
		validation.Field(&c.Width, validation.Min(0.0)),
		validation.Field(&c.Height, validation.Min(0.0)),
	)
}

// TrackingConfig selects how processed notes are remembered.
type TrackingConfig struct {
	Mode       string `yaml:"mode"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Validate validates the tracking configuration.
func (c *TrackingConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = TrackingMarker
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(TrackingMarker, TrackingLedger)),
		validation.Field(&c.SQLitePath, validation.When(c.Mode == TrackingLedger, validation.Required)),
	)
}

// WatchConfig holds file watcher settings.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// AuthConfig holds authentication configuration for the HTTP API.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a Config that reproduces the original
// command-line tool: current directory, marker tracking, top 20 chart.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Notes: NotesConfig{
			Path:         "./",
			Extension:    ".md",
			IndexNote:    "Mapping job descriptions.md",
			IgnoreSkills: []string{"Mapping job descriptions", "Data Engineering"},
			IncludeTag:   "jobs",
			RejectTag:    "reject",
			ProcessedTag: "processed",
		},
		Counts: CountsConfig{
			Path: "skills_count.json",
		},
		Report: ReportConfig{
			Path:   "skills_frequency.png",
			TopN:   20,
			Width:  10,
			Height: 6,
			Title:  "Top %d Skills Frequency",
		},
		Tracking: TrackingConfig{
			Mode:       TrackingMarker,
			SQLitePath: "skilltally.db",
		},
		Watch: WatchConfig{
			Debounce: 500 * time.Millisecond,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
