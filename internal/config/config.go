package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strings"
	"time"
)

// DBConfig holds the MySQL connection settings.  Every binary needs it,
// so it is loadable on its own.
type DBConfig struct {
	User string // database username
	Pass string // database password (optional)
	Host string // database host address
	Port string // database port number
	Name string // database name
}

// Config holds all runtime configuration of the HTTP server.  Each field
// corresponds to an environment variable.
type Config struct {
	Env            string        // application environment (e.g. "dev", "prod")
	Port           string        // HTTP port to listen on
	DB             DBConfig      // MySQL connection
	JWTSecret      string        // secret used to sign curator JWTs
	AccessTTLMin   int           // access token time-to-live in minutes
	RefreshTTLDays int           // refresh token time-to-live in days
	BcryptCost     int           // bcrypt cost for password hashing
	LogLevel       string        // logrus level name
	LogFormat      string        // "json" or "text"
	RabbitURL      string        // AMQP URL; empty disables hint events
	StaticDir      string        // directory served under /static; empty disables it
	CORSOrigins    []string      // allowed browser origins
	SweepInterval  time.Duration // catalog sweep period; 0 disables the worker
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:            envStr("APP_ENV", "dev"),
		Port:           must("APP_PORT"),
		DB:             LoadDB(),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   envInt("ACCESS_TOKEN_TTL_MIN", 15),
		RefreshTTLDays: envInt("REFRESH_TOKEN_TTL_DAYS", 14),
		BcryptCost:     envInt("BCRYPT_COST", 12),
		LogLevel:       envStr("LOG_LEVEL", "info"),
		LogFormat:      envStr("LOG_FORMAT", "json"),
		RabbitURL:      os.Getenv("RABBITMQ_URL"),
		StaticDir:      os.Getenv("STATIC_DIR"),
		CORSOrigins:    splitList(envStr("CORS_ORIGINS", "*")),
		SweepInterval:  envDur("SWEEP_INTERVAL", 24*time.Hour),
	}
}

// LoadDB reads the DB_* variables.  All but DB_PASS are required.
func LoadDB() DBConfig {
	return DBConfig{
		User: must("DB_USER"),
		Pass: os.Getenv("DB_PASS"), // empty allowed
		Host: must("DB_HOST"),
		Port: must("DB_PORT"),
		Name: must("DB_NAME"),
	}
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

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
