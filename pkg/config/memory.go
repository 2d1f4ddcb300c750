package config

import (
	"fmt"
	"path/filepath"

	"github.com/batonlabs/baton/pkg/utils"
)

// Memory backends.
const (
	MemoryBackendInMemory = "memory"
	MemoryBackendSQL      = "sql"
)

// MemoryConfig configures conversation storage: the turn store backend,
// the rolling context cache, and the optional long-term vector recall.
type MemoryConfig struct {
	// Backend selects the turn store: "memory" (default) or "sql".
	Backend string `yaml:"backend,omitempty" json:"backend,omitempty" jsonschema:"title=Backend,description=Turn store backend,enum=memory,enum=sql,default=memory"`

	// CacheSize caps the rolling context cache entries.
	CacheSize int `yaml:"cache_size,omitempty" json:"cache_size,omitempty" jsonschema:"title=Cache Size,description=Context cache entry cap,minimum=1,default=100"`

	// Database configures the SQL turn store. Required when Backend is "sql".
	Database *DatabaseConfig `yaml:"database,omitempty" json:"database,omitempty" jsonschema:"title=Database,description=SQL turn store connection"`

	// LongTerm configures vector-based recall across conversations.
	LongTerm *LongTermConfig `yaml:"long_term,omitempty" json:"long_term,omitempty" jsonschema:"title=Long Term,description=Vector recall settings"`
}

// LongTermConfig configures the embedded vector store used to recall
// prior conversation turns by semantic similarity.
type LongTermConfig struct {
	// Enabled turns on long-term recall.
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// PersistPath stores vectors on disk. Empty keeps them in memory only.
	PersistPath string `yaml:"persist_path,omitempty" json:"persist_path,omitempty"`

	// Compress enables gzip compression for persisted vectors.
	Compress bool `yaml:"compress,omitempty" json:"compress,omitempty"`

	// Collection names the vector collection.
	Collection string `yaml:"collection,omitempty" json:"collection,omitempty" jsonschema:"default=baton-memory"`

	// TopK is how many recalled turns are injected into context.
	TopK int `yaml:"top_k,omitempty" json:"top_k,omitempty" jsonschema:"minimum=1,default=5"`
}

// DatabaseConfig holds configuration for SQL database connections.
// Supports PostgreSQL, MySQL, and SQLite.
type DatabaseConfig struct {
	// Driver specifies the database driver: "postgres", "mysql", or "sqlite".
	Driver string `yaml:"driver" json:"driver" jsonschema:"title=Driver,description=Database driver,enum=postgres,enum=mysql,enum=sqlite,enum=sqlite3,default=sqlite"`

	// Host is the database server hostname (not required for SQLite).
	Host string `yaml:"host,omitempty" json:"host,omitempty"`

	// Port is the database server port (not required for SQLite).
	Port int `yaml:"port,omitempty" json:"port,omitempty"`

	// Database is the database name (or file path for SQLite).
	Database string `yaml:"database" json:"database"`

	// Username for database authentication (not required for SQLite).
	Username string `yaml:"username,omitempty" json:"username,omitempty"`

	// Password for database authentication (not required for SQLite).
	Password string `yaml:"password,omitempty" json:"password,omitempty"`

	// SSLMode for PostgreSQL connections.
	SSLMode string `yaml:"ssl_mode,omitempty" json:"ssl_mode,omitempty"`

	// MaxConns is the maximum number of open connections.
	MaxConns int `yaml:"max_conns,omitempty" json:"max_conns,omitempty" jsonschema:"minimum=1,default=25"`

	// MaxIdle is the maximum number of idle connections.
	MaxIdle int `yaml:"max_idle,omitempty" json:"max_idle,omitempty" jsonschema:"minimum=1,default=5"`
}

// SetDefaults applies memory defaults.
func (c *MemoryConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = MemoryBackendInMemory
	}
	if c.CacheSize == 0 {
		c.CacheSize = 100
	}
	if c.Database != nil {
		c.Database.SetDefaults()
	}
	if c.LongTerm != nil {
		c.LongTerm.SetDefaults()
	}
}

// Validate checks the memory configuration.
func (c *MemoryConfig) Validate() error {
	if c.Backend != MemoryBackendInMemory && c.Backend != MemoryBackendSQL {
		return fmt.Errorf("invalid backend %q (valid: memory, sql)", c.Backend)
	}
	if c.CacheSize < 1 {
		return fmt.Errorf("cache_size must be positive, got %d", c.CacheSize)
	}
	if c.Backend == MemoryBackendSQL {
		if c.Database == nil {
			return fmt.Errorf("database is required when backend is sql")
		}
		if err := c.Database.Validate(); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	return nil
}

// IsSQL returns true if using SQL turn storage.
func (c *MemoryConfig) IsSQL() bool {
	return c != nil && c.Backend == MemoryBackendSQL
}

// SetDefaults applies long-term recall defaults.
func (c *LongTermConfig) SetDefaults() {
	if c.Collection == "" {
		c.Collection = "baton-memory"
	}
	if c.TopK == 0 {
		c.TopK = 5
	}
}

// SetDefaults applies default values to the database config.
func (c *DatabaseConfig) SetDefaults() {
	if c.Driver == "" {
		c.Driver = "sqlite"
	}
	if (c.Driver == "sqlite" || c.Driver == "sqlite3") && c.Database == "" {
		c.Database = filepath.Join(utils.StateDirName, "baton.db")
	}
	if c.MaxConns == 0 {
		c.MaxConns = 25
	}
	if c.MaxIdle == 0 {
		c.MaxIdle = 5
	}

	// Default ports per driver
	if c.Port == 0 {
		switch c.Driver {
		case "postgres":
			c.Port = 5432
		case "mysql":
			c.Port = 3306
		}
	}

	if c.Driver == "postgres" && c.SSLMode == "" {
		c.SSLMode = "disable"
	}
}

// Validate checks the database configuration.
func (c *DatabaseConfig) Validate() error {
	if c.Driver == "" {
		return fmt.Errorf("driver is required")
	}

	validDrivers := map[string]bool{
		"postgres": true,
		"mysql":    true,
		"sqlite":   true,
		"sqlite3":  true,
	}
	if !validDrivers[c.Driver] {
		return fmt.Errorf("invalid driver %q (valid: postgres, mysql, sqlite)", c.Driver)
	}

	if c.Database == "" {
		return fmt.Errorf("database is required")
	}

	if c.Driver != "sqlite" && c.Driver != "sqlite3" && c.Host == "" {
		return fmt.Errorf("host is required for %s", c.Driver)
	}

	if c.MaxConns < 0 {
		return fmt.Errorf("max_conns must be non-negative")
	}
	if c.MaxIdle < 0 {
		return fmt.Errorf("max_idle must be non-negative")
	}

	return nil
}

// DSN returns the data source name for the configured driver.
func (c *DatabaseConfig) DSN() string {
	switch c.Driver {
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%d dbname=%s", c.Host, c.Port, c.Database)
		if c.Username != "" {
			dsn += fmt.Sprintf(" user=%s", c.Username)
		}
		if c.Password != "" {
			dsn += fmt.Sprintf(" password=%s", c.Password)
		}
		if c.SSLMode != "" {
			dsn += fmt.Sprintf(" sslmode=%s", c.SSLMode)
		}
		return dsn
	case "mysql":
		// parseTime lets the driver scan TIMESTAMP columns into time.Time.
		if c.Username != "" {
			return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
				c.Username, c.Password, c.Host, c.Port, c.Database)
		}
		return fmt.Sprintf("tcp(%s:%d)/%s?parseTime=true", c.Host, c.Port, c.Database)
	case "sqlite", "sqlite3":
		return c.Database
	default:
		return ""
	}
}

// DriverName returns the driver name for sql.Open. "sqlite" maps to the
// go-sqlite3 driver registration name.
func (c *DatabaseConfig) DriverName() string {
	if c.Driver == "sqlite" {
		return "sqlite3"
	}
	return c.Driver
}

// Dialect returns the normalized SQL dialect name for query building.
func (c *DatabaseConfig) Dialect() string {
	if c.Driver == "sqlite3" {
		return "sqlite"
	}
	return c.Driver
}
