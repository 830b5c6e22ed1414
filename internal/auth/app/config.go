package app

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/aussiebroadwan/siteadmin/pkg/cryptox"
	"github.com/aussiebroadwan/siteadmin/pkg/jwtx"
)

// Database drivers accepted by ADMIN_DATABASE_DRIVER.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Issuer     string        // Issuer claim for session tokens (default: siteadmin)
	SessionTTL time.Duration // Session token lifetime (default: 30m)
	KeyFile    string        // Optional: PEM signing key; empty keeps keys in memory only

	DatabaseDriver string // sqlite, postgres or memory (default: sqlite)
	DatabaseFile   string // SQLite database file (default: ./siteadmin.db)
	DatabaseURL    string // Postgres DSN, required for the postgres driver

	PepperFile    string // File holding the password pepper (default: ./pepper)
	KDFVersion    int    // Version stamped on new digests (default: 1)
	KDFIterations int    // PBKDF2 iterations for new digests (default: 100000)
	RolesFile     string // YAML role hierarchy; empty uses the built-in set
	MFAIssuer     string // Issuer shown in authenticator apps (default: SiteAdmin)
	InvitationTTL time.Duration

	AuditWriteTimeout   time.Duration // Bound on each audit append (default: 2s)
	AuditRetention      time.Duration // Prune entries older than this; 0 keeps everything
	AuditMemoryCapacity int           // Ring size for the memory driver (default: 10000)
	AuditAMQPURL        string        // Optional: mirror audit entries to RabbitMQ
	AuditAMQPExchange   string        // default: siteadmin.audit
	AuditAMQPRoutingKey string        // default: audit.entry

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

func LoadConfig() Config {
	return Config{
		Issuer:     getEnvOrDefault("ADMIN_ISSUER", "siteadmin"),
		SessionTTL: getEnvDurationOrDefault("ADMIN_SESSION_TTL", jwtx.DefaultSessionTTL),
		KeyFile:    os.Getenv("ADMIN_SIGNING_KEY_FILE"),

		DatabaseDriver: getEnvOrDefault("ADMIN_DATABASE_DRIVER", DriverSQLite),
		DatabaseFile:   getEnvOrDefault("ADMIN_DATABASE_FILE", "siteadmin.db"),
		DatabaseURL:    os.Getenv("ADMIN_DATABASE_URL"),

		PepperFile:    getEnvOrDefault("ADMIN_PEPPER_FILE", "pepper"),
		KDFVersion:    getEnvIntOrDefault("ADMIN_KDF_VERSION", cryptox.KDFv1.Version),
		KDFIterations: getEnvIntOrDefault("ADMIN_KDF_ITERATIONS", cryptox.KDFv1.Iterations),
		RolesFile:     os.Getenv("ADMIN_ROLES_FILE"),
		MFAIssuer:     getEnvOrDefault("ADMIN_MFA_ISSUER", "SiteAdmin"),
		InvitationTTL: getEnvDurationOrDefault("ADMIN_INVITATION_TTL", 24*time.Hour),

		AuditWriteTimeout:   getEnvDurationOrDefault("AUDIT_WRITE_TIMEOUT", 2*time.Second),
		AuditRetention:      getEnvDurationOrDefault("AUDIT_RETENTION", 0),
		AuditMemoryCapacity: getEnvIntOrDefault("AUDIT_MEMORY_CAPACITY", 10_000),
		AuditAMQPURL:        os.Getenv("AUDIT_AMQP_URL"),
		AuditAMQPExchange:   getEnvOrDefault("AUDIT_AMQP_EXCHANGE", "siteadmin.audit"),
		AuditAMQPRoutingKey: getEnvOrDefault("AUDIT_AMQP_ROUTING_KEY", "audit.entry"),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}
}

// Validate rejects configurations the application cannot start with.
func (c Config) Validate() error {
	switch c.DatabaseDriver {
	case DriverSQLite, DriverMemory:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("ADMIN_DATABASE_URL is required for the %s driver", DriverPostgres)
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.DatabaseDriver)
	}
	if c.KDFIterations <= 0 || c.KDFVersion <= 0 {
		return fmt.Errorf("KDF version and iterations must be positive")
	}
	return nil
}

// KDF returns the parameters for newly hashed passwords.
func (c Config) KDF() cryptox.KDFParams {
	return cryptox.KDFParams{
		Version:    c.KDFVersion,
		Iterations: c.KDFIterations,
		KeyLength:  cryptox.KDFv1.KeyLength,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
