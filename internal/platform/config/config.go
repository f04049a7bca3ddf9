package config

import (
	"os"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr           string
	Environment    string
	LedgerLogPath  string
	IssuerKeysPath string
	MandateTTL     time.Duration
	AdminJWTKey    string

	DatabaseURL  string
	RedisURL     string
	KafkaBrokers string
	AuditTopic   string
}

// DefaultMandateTTL is the expiration horizon stamped on mandates unless
// MANDATE_TTL overrides it.
const DefaultMandateTTL = time.Hour

// FromEnv builds a Server config from environment variables so main stays
// lean.
func FromEnv() Server {
	addr := os.Getenv("AVAL_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	env := os.Getenv("AVAL_ENV")
	if env == "" {
		env = "dev"
	}
	logPath := os.Getenv("LEDGER_LOG_PATH")
	if logPath == "" {
		logPath = "ledger.log"
	}
	keysPath := os.Getenv("ISSUER_KEYS_PATH")
	if keysPath == "" {
		keysPath = "issuer-keys.json"
	}

	ttl := DefaultMandateTTL
	if s := os.Getenv("MANDATE_TTL"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 {
			ttl = d
		}
	}

	adminKey := os.Getenv("ADMIN_JWT_KEY")
	if adminKey == "" {
		// Dev default - must be overridden in production.
		adminKey = "dev-admin-key-change-in-production"
	}

	return Server{
		Addr:           addr,
		Environment:    env,
		LedgerLogPath:  logPath,
		IssuerKeysPath: keysPath,
		MandateTTL:     ttl,
		AdminJWTKey:    adminKey,
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		KafkaBrokers:   os.Getenv("KAFKA_BROKERS"),
		AuditTopic:     os.Getenv("AUDIT_TOPIC"),
	}
}
