package gateway

import (
	"fmt"
	"os"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DatabaseDriverSQLite   = "sqlite"
	DatabaseDriverPostgres = "postgres"

	IdentityProviderMemory = "memory"
	IdentityProviderAuth0  = "auth0"
)

// Config is the full gateway configuration.
type Config struct {
	Server           ServerConfig           `yaml:"server"`
	Database         DatabaseConfig         `yaml:"database"`
	Token            TokenOptions           `yaml:"token"`
	IdentityProvider IdentityProviderConfig `yaml:"identity_provider"`
	Security         SecurityConfig         `yaml:"security"`
	Log              LogConfig              `yaml:"log"`
}

type ServerConfig struct {
	Address         string        `yaml:"address"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// AllowAdminSetup mounts the bootstrap endpoint that registers ADMIN users.
	AllowAdminSetup bool `yaml:"allow_admin_setup"`
}

type DatabaseConfig struct {
	Driver      string        `yaml:"driver"`
	DSN         string        `yaml:"dsn"`
	PingTimeout time.Duration `yaml:"ping_timeout"`
	Debug       bool          `yaml:"debug"`
}

type TokenOptions struct {
	SigningKey      string   `yaml:"signing_key"`
	Issuer          string   `yaml:"issuer"`
	Audience        []string `yaml:"audience"`
	ExpirationHours int      `yaml:"expiration_hours"`
}

type IdentityProviderConfig struct {
	Kind           string        `yaml:"kind"`
	Domain         string        `yaml:"domain"`
	ClientID       string        `yaml:"client_id"`
	ClientSecret   string        `yaml:"client_secret"`
	Connection     string        `yaml:"connection"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type SecurityConfig struct {
	BcryptCost int `yaml:"bcrypt_cost"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

var _ TokenConfig = (*Config)(nil)

// DefaultConfig returns a configuration usable for local development.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig reads the YAML file at path, expanding ${VAR} references, after
// loading envPath (or ./.env when empty) into the environment if present.
// Secrets in the environment override the file.
func LoadConfig(path, envPath string) (*Config, error) {
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config yaml: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("GATEWAY_SIGNING_KEY"); v != "" {
		c.Token.SigningKey = v
	}
	if v := os.Getenv("GATEWAY_DATABASE_DSN"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("GATEWAY_AUTH0_CLIENT_SECRET"); v != "" {
		c.IdentityProvider.ClientSecret = v
	}
	if v := os.Getenv("GATEWAY_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}

	if c.Database.Driver == "" {
		c.Database.Driver = DatabaseDriverSQLite
	}
	if c.Database.DSN == "" && c.Database.Driver == DatabaseDriverSQLite {
		c.Database.DSN = "file:gateway.db?cache=shared"
	}
	if c.Database.PingTimeout == 0 {
		c.Database.PingTimeout = 5 * time.Second
	}

	if c.Token.Issuer == "" {
		c.Token.Issuer = "trade-gateway"
	}
	if c.Token.ExpirationHours == 0 {
		c.Token.ExpirationHours = 24
	}

	if c.IdentityProvider.Kind == "" {
		c.IdentityProvider.Kind = IdentityProviderMemory
	}
	if c.IdentityProvider.Connection == "" {
		c.IdentityProvider.Connection = "Username-Password-Authentication"
	}
	if c.IdentityProvider.RequestTimeout == 0 {
		c.IdentityProvider.RequestTimeout = 5 * time.Second
	}

	if c.Security.BcryptCost == 0 {
		c.Security.BcryptCost = passwordHashCost()
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks the configuration is complete and coherent.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(&c.Server,
		validation.Field(&c.Server.Address, validation.Required),
	); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	if err := validation.ValidateStruct(&c.Database,
		validation.Field(&c.Database.Driver, validation.Required, validation.In(DatabaseDriverSQLite, DatabaseDriverPostgres)),
		validation.Field(&c.Database.DSN, validation.Required),
	); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := validation.ValidateStruct(&c.Token,
		validation.Field(&c.Token.SigningKey, validation.Required, validation.Length(32, 0)),
		validation.Field(&c.Token.ExpirationHours, validation.Min(1)),
	); err != nil {
		return fmt.Errorf("token: %w", err)
	}

	idp := &c.IdentityProvider
	idpFields := []*validation.FieldRules{
		validation.Field(&idp.Kind, validation.Required, validation.In(IdentityProviderMemory, IdentityProviderAuth0)),
	}
	if idp.Kind == IdentityProviderAuth0 {
		idpFields = append(idpFields,
			validation.Field(&idp.Domain, validation.Required),
			validation.Field(&idp.ClientID, validation.Required),
			validation.Field(&idp.ClientSecret, validation.Required),
		)
	}
	if err := validation.ValidateStruct(idp, idpFields...); err != nil {
		return fmt.Errorf("identity_provider: %w", err)
	}

	if err := validation.ValidateStruct(&c.Security,
		validation.Field(&c.Security.BcryptCost, validation.Min(4), validation.Max(31)),
	); err != nil {
		return fmt.Errorf("security: %w", err)
	}

	return validation.ValidateStruct(&c.Log,
		validation.Field(&c.Log.Level, validation.In("debug", "info", "warn", "error")),
	)
}

// GetSigningKey implements TokenConfig.
func (c *Config) GetSigningKey() string {
	return c.Token.SigningKey
}

// GetTokenExpiration implements TokenConfig.
func (c *Config) GetTokenExpiration() int {
	return c.Token.ExpirationHours
}

// GetIssuer implements TokenConfig.
func (c *Config) GetIssuer() string {
	return c.Token.Issuer
}

// GetAudience implements TokenConfig.
func (c *Config) GetAudience() []string {
	out := make([]string, 0, len(c.Token.Audience))
	for _, a := range c.Token.Audience {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}
