package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Duration decodes human-readable YAML values like "30s", matching the
// LEDGER_TIMEOUT env format.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config holds every deployment-level setting the gateway needs. It is
// loaded once at startup and injected; nothing reads the environment after
// Load returns.
type Config struct {
	ListenAddr string `yaml:"listenAddr"`
	Env        string `yaml:"env"`
	LogLevel   string `yaml:"logLevel"`

	// Fabric network settings.
	CCPPath       string        `yaml:"ccpPath"`
	WalletPath    string        `yaml:"walletPath"`
	IdentityLabel string        `yaml:"identityLabel"`
	Channel       string        `yaml:"channel"`
	ContractID    string        `yaml:"contractId"`
	LedgerTimeout Duration `yaml:"ledgerTimeout"`

	// HTTP surface settings.
	RateLimitRPS   float64 `yaml:"rateLimitRps"`
	RateLimitBurst int     `yaml:"rateLimitBurst"`
	MaxBodyBytes   int64   `yaml:"maxBodyBytes"`
	JWTSecret      string  `yaml:"jwtSecret"`
	APIKey         string  `yaml:"apiKey"`

	AuditDBPath string `yaml:"auditDbPath"`
}

// Production reports whether the gateway runs with production error masking.
func (c Config) Production() bool {
	return c.Env == "production"
}

func defaults() Config {
	return Config{
		ListenAddr:     ":3000",
		Env:            "development",
		LogLevel:       "info",
		CCPPath:        "network/organizations/peerOrganizations/org1.medical.com/connection-org1.json",
		WalletPath:     "wallet",
		IdentityLabel:  "appUser",
		Channel:        "medical-channel",
		ContractID:     "medical-diagnosis-chaincode",
		LedgerTimeout:  Duration(30 * time.Second),
		RateLimitRPS:   100.0 / 60.0,
		RateLimitBurst: 20,
		MaxBodyBytes:   10 << 20,
		AuditDBPath:    "data/audit",
	}
}

// Load builds the process configuration: defaults, then an optional YAML
// file named by GATEWAY_CONFIG, then environment variables on top.
func Load() (Config, error) {
	godotenv.Load()

	cfg := defaults()
	if path := os.Getenv("GATEWAY_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	applyEnv(&cfg)

	if cfg.Env != "development" && cfg.Env != "production" && cfg.Env != "test" {
		return Config{}, fmt.Errorf("invalid environment %q", cfg.Env)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.ListenAddr, "LISTEN_ADDR")
	if port := os.Getenv("PORT"); port != "" {
		cfg.ListenAddr = ":" + port
	}
	setString(&cfg.Env, "GATEWAY_ENV")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.CCPPath, "FABRIC_CCP_PATH")
	setString(&cfg.WalletPath, "FABRIC_WALLET_PATH")
	setString(&cfg.IdentityLabel, "FABRIC_IDENTITY")
	setString(&cfg.Channel, "FABRIC_CHANNEL")
	setString(&cfg.ContractID, "FABRIC_CONTRACT")
	setString(&cfg.JWTSecret, "API_JWT_SECRET")
	setString(&cfg.APIKey, "API_KEY")
	setString(&cfg.AuditDBPath, "AUDIT_DB_PATH")

	if v := os.Getenv("LEDGER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.LedgerTimeout = Duration(d)
		}
	}
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitRPS = f
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitBurst = n
		}
	}
	if v := os.Getenv("MAX_BODY_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxBodyBytes = n
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
