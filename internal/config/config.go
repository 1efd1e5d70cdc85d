package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/alohomora/internal/api"
	"github.com/yungbote/alohomora/internal/data/db"
	"github.com/yungbote/alohomora/internal/observability"
	"github.com/yungbote/alohomora/internal/platform/envutil"
	"github.com/yungbote/alohomora/internal/platform/logger"
)

const (
	RoleAuthority = "authority"
	RoleReplica   = "replica"
	RoleApp       = "app"
)

const (
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendLocal = "local"
)

type Config struct {
	LogMode string    `yaml:"log_mode"`
	DB      db.Config `yaml:"db"`

	Authority AuthorityConfig          `yaml:"authority"`
	Replica   ReplicaConfig            `yaml:"replica"`
	App       AppConfig                `yaml:"app"`
	Otel      observability.OtelConfig `yaml:"otel"`

	CORSOrigins []string `yaml:"cors_origins"`
}

type AuthorityConfig struct {
	Addr string `yaml:"addr"`
	// AdminKey is either the plain key or its bcrypt hash. Replicas gate
	// register_system with the same value.
	AdminKey         string        `yaml:"admin_key"`
	TokenTTL         time.Duration `yaml:"token_ttl"`
	InquiryFreshness time.Duration `yaml:"inquiry_freshness"`
	SyncMode         string        `yaml:"sync_mode"`
	SyncLimit        int           `yaml:"sync_limit"`
	SyncOverlap      time.Duration `yaml:"sync_overlap"`
	NotifyWorkers    int           `yaml:"notify_workers"`
	NotifyQueueSize  int           `yaml:"notify_queue_size"`
	NotifyFanout     int           `yaml:"notify_fanout"`
	NotifyTimeout    time.Duration `yaml:"notify_timeout"`
}

type ReplicaConfig struct {
	Addr             string        `yaml:"addr"`
	ReplicaID        string        `yaml:"replica_id"`
	GroupID          string        `yaml:"group_id"`
	AuthorityURL     string        `yaml:"authority_url"`
	AuthorityTimeout time.Duration `yaml:"authority_timeout"`
	// AuthorityKey is the plain admin key presented to the authority on sync.
	// Empty means the authority admin_key, which then must not be a hash.
	AuthorityKey    string        `yaml:"authority_key"`
	SyncInterval    time.Duration `yaml:"sync_interval"`
	SyncMaxPages    int           `yaml:"sync_max_pages"`
	CheckpointStore string        `yaml:"checkpoint_store"`
	CheckpointDir   string        `yaml:"checkpoint_dir"`
	LockBackend     string        `yaml:"lock_backend"`
	LockTTL         time.Duration `yaml:"lock_ttl"`
	RedisURL        string        `yaml:"redis_url"`
}

type AppConfig struct {
	Addr             string        `yaml:"addr"`
	SystemID         string        `yaml:"system_id"`
	ReplicaURL       string        `yaml:"replica_url"`
	ReplicaTimeout   time.Duration `yaml:"replica_timeout"`
	AuthorityURL     string        `yaml:"authority_url"`
	AuthorityTimeout time.Duration `yaml:"authority_timeout"`
	SessionTTL       time.Duration `yaml:"session_ttl"`
	PurgeInterval    time.Duration `yaml:"purge_interval"`
}

// Defaults returns the configuration used when neither a file nor the
// environment says otherwise.
func Defaults() Config {
	return Config{
		LogMode: "development",
		DB:      db.Config{Driver: db.DriverSQLite, DSN: "alohomora.db"},
		Authority: AuthorityConfig{
			Addr:             ":8000",
			TokenTTL:         time.Hour,
			InquiryFreshness: 5 * time.Minute,
			SyncMode:         api.SyncModeCursor,
			SyncLimit:        100,
			SyncOverlap:      2 * time.Second,
			NotifyWorkers:    2,
			NotifyQueueSize:  256,
			NotifyFanout:     8,
			NotifyTimeout:    5 * time.Second,
		},
		Replica: ReplicaConfig{
			Addr:             ":9456",
			AuthorityURL:     "http://localhost:8000",
			AuthorityTimeout: 10 * time.Second,
			SyncInterval:     30 * time.Second,
			SyncMaxPages:     10,
			CheckpointStore:  BackendFile,
			CheckpointDir:    ".",
			LockBackend:      BackendLocal,
			LockTTL:          5 * time.Minute,
		},
		App: AppConfig{
			Addr:             ":5001",
			AuthorityURL:     "http://localhost:8000",
			AuthorityTimeout: 5 * time.Second,
			ReplicaTimeout:   2 * time.Second,
			SessionTTL:       time.Hour,
			PurgeInterval:    10 * time.Minute,
		},
		Otel: observability.OtelConfig{
			ServiceName: "alohomora",
			Environment: "development",
			SampleRatio: 1,
		},
	}
}

// Load builds the process configuration: defaults, then the YAML file named by
// ALOHOMORA_CONFIG (when set), then environment overrides.
func Load(log *logger.Logger) (Config, error) {
	return LoadFrom(envutil.String("ALOHOMORA_CONFIG", ""), log)
}

// LoadFrom is Load with an explicit file path. An empty path skips the file.
func LoadFrom(path string, log *logger.Logger) (Config, error) {
	cfg := Defaults()
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
		if log != nil {
			log.Info("Loaded config file", "path", path)
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.LogMode = envutil.String("LOG_MODE", cfg.LogMode)
	cfg.DB.Driver = envutil.String("DB_DRIVER", cfg.DB.Driver)
	cfg.DB.DSN = envutil.String("DB_DSN", cfg.DB.DSN)
	if origins := envutil.String("CORS_ORIGINS", ""); origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}

	a := &cfg.Authority
	a.Addr = envutil.String("AUTHORITY_ADDR", a.Addr)
	a.AdminKey = envutil.String("ADMIN_KEY", a.AdminKey)
	a.TokenTTL = envutil.Duration("TOKEN_TTL", a.TokenTTL)
	a.InquiryFreshness = envutil.Duration("INQUIRY_FRESHNESS", a.InquiryFreshness)
	a.SyncMode = strings.ToLower(envutil.String("SYNC_MODE", a.SyncMode))
	a.SyncLimit = envutil.Int("SYNC_LIMIT", a.SyncLimit)
	a.SyncOverlap = envutil.Duration("SYNC_OVERLAP", a.SyncOverlap)
	a.NotifyWorkers = envutil.Int("NOTIFY_WORKERS", a.NotifyWorkers)
	a.NotifyQueueSize = envutil.Int("NOTIFY_QUEUE_SIZE", a.NotifyQueueSize)
	a.NotifyFanout = envutil.Int("NOTIFY_FANOUT", a.NotifyFanout)
	a.NotifyTimeout = envutil.Duration("NOTIFY_TIMEOUT", a.NotifyTimeout)

	r := &cfg.Replica
	r.Addr = envutil.String("REPLICA_ADDR", r.Addr)
	r.ReplicaID = envutil.String("REPLICA_ID", r.ReplicaID)
	r.GroupID = envutil.String("REPLICA_GROUP_ID", r.GroupID)
	r.AuthorityURL = envutil.String("AUTHORITY_URL", r.AuthorityURL)
	r.AuthorityTimeout = envutil.Duration("AUTHORITY_TIMEOUT", r.AuthorityTimeout)
	r.AuthorityKey = envutil.String("REPLICA_AUTHORITY_KEY", r.AuthorityKey)
	r.SyncInterval = envutil.Duration("SYNC_INTERVAL", r.SyncInterval)
	r.SyncMaxPages = envutil.Int("SYNC_MAX_PAGES", r.SyncMaxPages)
	r.CheckpointStore = strings.ToLower(envutil.String("CHECKPOINT_STORE", r.CheckpointStore))
	r.CheckpointDir = envutil.String("CHECKPOINT_DIR", r.CheckpointDir)
	r.LockBackend = strings.ToLower(envutil.String("SYNC_LOCK_BACKEND", r.LockBackend))
	r.LockTTL = envutil.Duration("SYNC_LOCK_TTL", r.LockTTL)
	r.RedisURL = envutil.String("REDIS_URL", r.RedisURL)

	p := &cfg.App
	p.Addr = envutil.String("APP_ADDR", p.Addr)
	p.SystemID = envutil.String("APP_SYSTEM_ID", p.SystemID)
	p.ReplicaURL = envutil.String("APP_REPLICA_URL", p.ReplicaURL)
	p.ReplicaTimeout = envutil.Duration("APP_REPLICA_TIMEOUT", p.ReplicaTimeout)
	p.AuthorityURL = envutil.String("APP_AUTHORITY_URL", p.AuthorityURL)
	p.AuthorityTimeout = envutil.Duration("APP_AUTHORITY_TIMEOUT", p.AuthorityTimeout)
	p.SessionTTL = envutil.Duration("SESSION_TTL", p.SessionTTL)
	p.PurgeInterval = envutil.Duration("SESSION_PURGE_INTERVAL", p.PurgeInterval)

	o := &cfg.Otel
	o.Enabled = envutil.Bool("OTEL_ENABLED", o.Enabled)
	o.ServiceName = envutil.String("OTEL_SERVICE_NAME", o.ServiceName)
	o.Environment = envutil.String("OTEL_ENVIRONMENT", o.Environment)
	o.Version = envutil.String("OTEL_SERVICE_VERSION", o.Version)
	o.Endpoint = envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", o.Endpoint)
	o.Insecure = envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", o.Insecure)
	if raw := envutil.String("OTEL_EXPORTER_OTLP_HEADERS", ""); raw != "" {
		o.Headers = observability.ParseHeaders(raw)
	}
	if ratio := envutil.Float("OTEL_SAMPLER_RATIO", -1); ratio >= 0 {
		o.SampleRatio = ratio
	}
}

// Validate checks the fields the given role cannot start without.
func (c Config) Validate(role string) error {
	switch role {
	case RoleAuthority:
		if strings.TrimSpace(c.Authority.AdminKey) == "" {
			return fmt.Errorf("ADMIN_KEY is required for the authority")
		}
		if m := c.Authority.SyncMode; m != api.SyncModeCursor && m != api.SyncModeSnapshot {
			return fmt.Errorf("unknown sync mode %q", m)
		}
	case RoleReplica:
		r := c.Replica
		if strings.TrimSpace(c.Authority.AdminKey) == "" {
			return fmt.Errorf("ADMIN_KEY is required for the replica")
		}
		if r.ReplicaID == "" || r.GroupID == "" {
			return fmt.Errorf("REPLICA_ID and REPLICA_GROUP_ID are required")
		}
		if r.AuthorityURL == "" {
			return fmt.Errorf("AUTHORITY_URL is required")
		}
		if r.SyncInterval <= 0 {
			return fmt.Errorf("sync interval must be positive")
		}
		switch r.CheckpointStore {
		case BackendFile:
		case BackendRedis:
			if r.RedisURL == "" {
				return fmt.Errorf("REDIS_URL is required for the redis checkpoint store")
			}
		default:
			return fmt.Errorf("unknown checkpoint store %q", r.CheckpointStore)
		}
		switch r.LockBackend {
		case BackendLocal:
		case BackendRedis:
			if r.RedisURL == "" {
				return fmt.Errorf("REDIS_URL is required for the redis sync lock")
			}
		default:
			return fmt.Errorf("unknown lock backend %q", r.LockBackend)
		}
	case RoleApp:
		if c.App.SystemID == "" {
			return fmt.Errorf("APP_SYSTEM_ID is required")
		}
		if c.App.AuthorityURL == "" && c.App.ReplicaURL == "" {
			return fmt.Errorf("at least one of APP_AUTHORITY_URL or APP_REPLICA_URL is required")
		}
	default:
		return fmt.Errorf("unknown role %q", role)
	}
	return nil
}

// SyncKey is the key the replica presents on /replica_sync.
func (r ReplicaConfig) SyncKey(adminKey string) string {
	if k := strings.TrimSpace(r.AuthorityKey); k != "" {
		return k
	}
	return strings.TrimSpace(adminKey)
}

// UsesRedis reports whether the replica needs a Redis connection.
func (r ReplicaConfig) UsesRedis() bool {
	return r.CheckpointStore == BackendRedis || r.LockBackend == BackendRedis
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
