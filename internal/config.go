package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/geocam/internal/maintenance"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Backends.
const (
	StorageFS    = "fs"
	StorageMinIO = "minio"

	KVSQLite = "sqlite"
	KVRedis  = "redis"

	LocationNone   = "none"
	LocationStatic = "static"
	LocationGPSD   = "gpsd"

	OutputBytes = "bytes"
	OutputPath  = "path"
)

// Config represents the application configuration.
type Config struct {
	App         ApplicationConfig `yaml:"app"`
	Storage     StorageConfig     `yaml:"storage"`
	KV          KVConfig          `yaml:"kv"`
	Auth        AuthConfig        `yaml:"auth"`
	Camera      CameraConfig      `yaml:"camera"`
	Location    LocationConfig    `yaml:"location"`
	Geocode     GeocodeConfig     `yaml:"geocode"`
	Markers     MarkersConfig     `yaml:"markers"`
	Inbox       InboxConfig       `yaml:"inbox"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	NATS        NATSConfig        `yaml:"nats"`
	SSE         SSEConfig         `yaml:"sse"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{
		&c.App, &c.Storage, &c.KV, &c.Auth, &c.Camera, &c.Location,
		&c.Geocode, &c.Markers, &c.Inbox, &c.Maintenance, &c.NATS, &c.SSE,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
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

// StorageConfig selects where image files live.
type StorageConfig struct {
	Backend  string      `yaml:"backend"`
	Path     string      `yaml:"path"`
	PhotoDir string      `yaml:"photo_dir"`
	MinIO    MinIOConfig `yaml:"minio"`

	// RehydrateLimit bounds concurrent image reads while loading the index.
	RehydrateLimit int `yaml:"rehydrate_limit"`
}

// MinIOConfig holds S3-compatible object store settings.
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Validate validates the storage configuration.
func (c *StorageConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(StorageFS, StorageMinIO)),
		validation.Field(&c.PhotoDir, validation.Required),
		validation.Field(&c.Path, validation.When(c.Backend == StorageFS, validation.Required)),
		validation.Field(&c.RehydrateLimit, validation.Required, validation.Min(1)),
	); err != nil {
		return err
	}
	if c.Backend != StorageMinIO {
		return nil
	}
	return validation.ValidateStruct(&c.MinIO,
		validation.Field(&c.MinIO.Endpoint, validation.Required),
		validation.Field(&c.MinIO.Bucket, validation.Required),
	)
}

// KVConfig selects the key-value store holding the photo index.
type KVConfig struct {
	Backend string       `yaml:"backend"`
	SQLite  SQLiteConfig `yaml:"sqlite"`
	Redis   RedisConfig  `yaml:"redis"`
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// Validate validates the key-value configuration.
func (c *KVConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(KVSQLite, KVRedis)),
	); err != nil {
		return err
	}
	if c.Backend == KVSQLite {
		return validation.ValidateStruct(&c.SQLite,
			validation.Field(&c.SQLite.Path, validation.Required),
		)
	}
	return validation.ValidateStruct(&c.Redis,
		validation.Field(&c.Redis.Addr, validation.Required),
		validation.Field(&c.Redis.DB, validation.Min(0)),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
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

// CameraConfig describes the capture commands.
//
// Command runs for a direct capture; PromptCommand runs when the caller asks
// for the system picker. Either may be empty, which makes that path fail
// with "camera unavailable".
type CameraConfig struct {
	Command           string `yaml:"command"`
	Output            string `yaml:"output"`
	PromptCommand     string `yaml:"prompt_command"`
	PromptOutput      string `yaml:"prompt_output"`
	RequirePermission bool   `yaml:"require_permission"`
}

// Validate validates the camera configuration.
func (c *CameraConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Output, validation.In(OutputBytes, OutputPath)),
		validation.Field(&c.PromptOutput, validation.In(OutputBytes, OutputPath)),
	)
}

// LocationConfig selects the position source.
type LocationConfig struct {
	Source       string        `yaml:"source"`
	Lat          float64       `yaml:"lat"`
	Lng          float64       `yaml:"lng"`
	GPSDAddr     string        `yaml:"gpsd_addr"`
	HighAccuracy bool          `yaml:"high_accuracy"`
	FixTimeout   time.Duration `yaml:"fix_timeout"`
}

// Validate validates the location configuration.
func (c *LocationConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Source, validation.Required, validation.In(LocationNone, LocationStatic, LocationGPSD)),
		validation.Field(&c.Lat, validation.Min(-90.0), validation.Max(90.0)),
		validation.Field(&c.Lng, validation.Min(-180.0), validation.Max(180.0)),
		validation.Field(&c.GPSDAddr, validation.When(c.Source == LocationGPSD, validation.Required)),
		validation.Field(&c.FixTimeout, validation.Min(time.Duration(0))),
	)
}

// GeocodeConfig configures reverse geocoding.
type GeocodeConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Endpoint  string        `yaml:"endpoint"`
	UserAgent string        `yaml:"user_agent"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Validate validates the geocode configuration.
func (c *GeocodeConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Endpoint, validation.When(c.Enabled, validation.Required)),
		validation.Field(&c.UserAgent, validation.When(c.Enabled, validation.Required)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// MarkersConfig tunes the map marker layout.
type MarkersConfig struct {
	Epsilon    float64 `yaml:"epsilon"`
	BaseRadius float64 `yaml:"base_radius"`
}

// Validate validates the markers configuration.
func (c *MarkersConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Epsilon, validation.Min(0.0)),
		validation.Field(&c.BaseRadius, validation.Min(0.0)),
	)
}

// InboxConfig configures the import folder watcher.
type InboxConfig struct {
	Enabled bool          `yaml:"enabled"`
	Path    string        `yaml:"path"`
	Settle  time.Duration `yaml:"settle"`
}

// Validate validates the inbox configuration.
func (c *InboxConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.When(c.Enabled, validation.Required)),
		validation.Field(&c.Settle, validation.Min(time.Duration(0))),
	)
}

// MaintenanceConfig configures the orphan file sweep.
type MaintenanceConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Schedule string        `yaml:"schedule"`
	Grace    time.Duration `yaml:"grace"`
}

// Validate validates the maintenance configuration.
func (c *MaintenanceConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Schedule, validation.When(c.Enabled, validation.Required)),
		validation.Field(&c.Grace, validation.Min(time.Duration(0))),
	); err != nil {
		return err
	}
	if c.Enabled {
		return maintenance.ValidateSchedule(c.Schedule)
	}
	return nil
}

// NATSConfig configures event forwarding to NATS.
type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Prefix  string `yaml:"prefix"`
}

// Validate validates the NATS configuration.
func (c *NATSConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.URL, validation.When(c.Enabled, validation.Required)),
	)
}

// SSEConfig configures the event stream.
type SSEConfig struct {
	MapThrottle time.Duration `yaml:"map_throttle"`
}

// Validate validates the SSE configuration.
func (c *SSEConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MapThrottle, validation.Min(time.Duration(0))),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Storage: StorageConfig{
			Backend:        StorageFS,
			Path:           "./data",
			PhotoDir:       "photos",
			RehydrateLimit: 4,
		},
		KV: KVConfig{
			Backend: KVSQLite,
			SQLite:  SQLiteConfig{Path: "./geocam.db"},
			Redis:   RedisConfig{Addr: "localhost:6379", Prefix: "geocam:"},
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Camera: CameraConfig{
			Output:       OutputBytes,
			PromptOutput: OutputPath,
		},
		Location: LocationConfig{
			Source:     LocationNone,
			GPSDAddr:   "localhost:2947",
			FixTimeout: 5 * time.Second,
		},
		Geocode: GeocodeConfig{
			Enabled:   true,
			Endpoint:  "https://nominatim.openstreetmap.org/reverse",
			UserAgent: "geocam/1.0 (+https://github.com/starford/geocam)",
			Timeout:   10 * time.Second,
		},
		Markers: MarkersConfig{
			Epsilon:    1e-5,
			BaseRadius: 0.00012,
		},
		Inbox: InboxConfig{
			Path:   "./inbox",
			Settle: 500 * time.Millisecond,
		},
		Maintenance: MaintenanceConfig{
			Enabled:  true,
			Schedule: maintenance.DefaultSchedule,
			Grace:    maintenance.DefaultGrace,
		},
		NATS: NATSConfig{
			URL:    "nats://localhost:4222",
			Prefix: "geocam",
		},
		SSE: SSEConfig{
			MapThrottle: 2 * time.Second,
		},
	}
}
