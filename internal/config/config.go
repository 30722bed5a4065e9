package config // package config loads application configuration from environment variables

import (
    "log"     // log is used to report configuration errors and halt execution
    "os"      // os provides access to environment variables
    "strconv" // strconv converts strings to other types

    "github.com/joho/godotenv"
)

// Config holds the runtime configuration every process needs.  Concern
// specific settings (redis, cache, rate limit, device gate, pagination)
// have their own loaders in this package.
type Config struct {
    Env            string // application environment (e.g. "dev", "production")
    Port           string // HTTP port to listen on
    LogLevel       string // slog level: debug, info, warn, error
    DBUser         string // database username
    DBPass         string // database password (optional)
    DBHost         string // database host address
    DBPort         string // database port number
    DBName         string // database name
    JWTSecret      string // secret used to sign JWTs
    AccessTTLMin   int    // access token time-to-live in minutes
    RefreshTTLDays int    // refresh token time-to-live in days
    BcryptCost     int    // bcrypt cost for password hashing
    AMQPURL        string // RabbitMQ URL for room.changed events (empty disables publishing)
    AutoMigrate    bool   // apply the embedded schema on startup
    AuditLogDir    string // directory for the room audit log written by the consumer
    BootstrapEmail string // first SUPER_ADMIN account, created when missing
    BootstrapPass  string // password for BootstrapEmail
}

// LoadDotEnv loads variables from a .env file in the working directory.
// A missing file is not an error; variables already set win.
func LoadDotEnv() {
    if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
        log.Printf("config: .env not loaded: %v", err)
    }
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
    return Config{
        Env:            must("APP_ENV"),
        Port:           must("APP_PORT"),
        LogLevel:       envStr("LOG_LEVEL", "info"),
        DBUser:         must("DB_USER"),
        DBPass:         os.Getenv("DB_PASS"), // empty allowed
        DBHost:         must("DB_HOST"),
        DBPort:         must("DB_PORT"),
        DBName:         must("DB_NAME"),
        JWTSecret:      must("JWT_SECRET"),
        AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
        RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
        BcryptCost:     mustInt("BCRYPT_COST"),
        AMQPURL:        amqpURL(),
        AutoMigrate:    envBool("AUTO_MIGRATE", false),
        AuditLogDir:    envStr("AUDIT_LOG_DIR", "logs"),
        BootstrapEmail: os.Getenv("BOOTSTRAP_ADMIN_EMAIL"),
        BootstrapPass:  os.Getenv("BOOTSTRAP_ADMIN_PASSWORD"),
    }
}

// IsProduction reports whether the app runs with APP_ENV=production.
func (c Config) IsProduction() bool { return c.Env == "production" }

// amqpURL prefers RABBITMQ_URL over AMQP_URL.
func amqpURL() string {
    if v := os.Getenv("RABBITMQ_URL"); v != "" {
        return v
    }
    return os.Getenv("AMQP_URL")
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
    s := must(key)
    n, err := strconv.Atoi(s)
    if err != nil {
        log.Fatalf("invalid int for %s: %q", key, s)
    }
    return n
}
