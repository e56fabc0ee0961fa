package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/MrJamesThe3rd/billy/internal/database"
)

type Config struct {
	App struct {
		Name string `envconfig:"APP_NAME" default:"Billy"`
		Port int    `envconfig:"PORT" default:"8080"`
	}

	DB struct {
		Driver    string        `envconfig:"DB_DRIVER" default:"pgx"`
		Host      string        `envconfig:"DB_HOST" default:"localhost"`
		Port      int           `envconfig:"DB_PORT" default:"5432"`
		User      string        `envconfig:"DB_USER" default:"postgres"`
		Password  string        `envconfig:"DB_PASSWORD" default:""`
		Name      string        `envconfig:"DB_NAME" default:"billy"`
		Path      string        `envconfig:"DB_PATH" default:"billy.db"`
		TxTimeout time.Duration `envconfig:"DB_TX_TIMEOUT" default:"30s"`
	}

	Server struct {
		Timeout     time.Duration `envconfig:"SERVER_TIMEOUT" default:"30s"`
		CORSOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	}

	Auth struct {
		JWTSecret    string   `envconfig:"AUTH_JWT_SECRET"`
		MutatorRoles []string `envconfig:"AUTH_MUTATOR_ROLES" default:"admin,accountant"`
	}

	Audit struct {
		Buffer int `envconfig:"AUDIT_BUFFER" default:"256"`
	}

	// Operator is the identity the local tools act as.
	Operator struct {
		ID   string `envconfig:"OPERATOR_ID" default:"cli"`
		Role string `envconfig:"OPERATOR_ROLE" default:"accountant"`
	}
}

// Driver returns the configured database driver.
func (c *Config) Driver() (database.Driver, error) {
	return database.ParseDriver(c.DB.Driver)
}

// DSN builds the data source name for the configured driver.
func (c *Config) DSN() (string, error) {
	driver, err := c.Driver()
	if err != nil {
		return "", err
	}

	if driver == database.SQLite {
		return database.SQLiteDSN(c.DB.Path), nil
	}

	return database.PostgresDSN(c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name), nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if cfg.DB.TxTimeout <= 0 {
		return nil, fmt.Errorf("DB_TX_TIMEOUT must be positive, got %s", cfg.DB.TxTimeout)
	}

	return &cfg, nil
}
