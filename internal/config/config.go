package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"mail-autosort-go/internal/models"
)

// DefaultCategories are the top-level category folders known a priori
var DefaultCategories = []string{
	"Financiën",
	"Werk en Carrière",
	"Persoonlijke Communicatie en Sociale Leven",
	"Gezondheid en Welzijn",
	"Online Activiteiten en E-commerce",
	"Reizen en Evenementen",
	"Informatie en Media",
	"Beveiliging en IT",
	"Klantensupport en Acties",
	"Overheid en Gemeenschap",
}

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Sorting    SortingConfig    `mapstructure:"sorting"`
	Accounts   []AccountConfig  `mapstructure:"accounts"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// DatabaseConfig holds durable storage configuration
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Path     string `mapstructure:"path"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// ClassifierConfig holds the generative-text endpoint configuration
type ClassifierConfig struct {
	Endpoint        string   `mapstructure:"endpoint"`
	Model           string   `mapstructure:"model"`
	APIKey          string   `mapstructure:"api_key"`
	UseKeyring      bool     `mapstructure:"use_keyring"`
	KeyringDir      string   `mapstructure:"keyring_dir"`
	Enabled         bool     `mapstructure:"enabled"`
	Labels          []string `mapstructure:"labels"`
	Temperature     float64  `mapstructure:"temperature"`
	TopK            int      `mapstructure:"top_k"`
	TopP            float64  `mapstructure:"top_p"`
	MaxOutputTokens int      `mapstructure:"max_output_tokens"`
}

// SortingConfig holds batch action configuration
type SortingConfig struct {
	Mode             string   `mapstructure:"mode"`
	Categories       []string `mapstructure:"categories"`
	HistoryCapacity  int      `mapstructure:"history_capacity"`
	RecordTagHistory bool     `mapstructure:"record_tag_history"`
}

// AccountConfig holds connection settings for one mail account
type AccountConfig struct {
	ID   string `mapstructure:"id"`
	Name string `mapstructure:"name"`
	Type string `mapstructure:"type"`

	IMAPHost     string `mapstructure:"imap_host"`
	IMAPPort     int    `mapstructure:"imap_port"`
	IMAPUser     string `mapstructure:"imap_user"`
	IMAPPassword string `mapstructure:"imap_password"`
	IMAPTLS      bool   `mapstructure:"imap_tls"`

	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RefreshToken string `mapstructure:"refresh_token"`
	UserEmail    string `mapstructure:"user_email"`
}

// SchedulerConfig holds auto-sort scheduler configuration
type SchedulerConfig struct {
	Enabled         bool     `mapstructure:"enabled"`
	IntervalMinutes int      `mapstructure:"interval_minutes"`
	Folder          string   `mapstructure:"folder"`
	AccountIDs      []string `mapstructure:"account_ids"`
}

const (
	AccountTypeIMAP  = "imap"
	AccountTypeGmail = "gmail"

	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// LoadConfig loads configuration from environment variables and config file
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	SetDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	viper.AutomaticEnv()
	bindEnvVars(viper.GetViper())

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// SetDefaults sets default configuration values
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "5m")

	v.SetDefault("log.level", "info")

	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.path", filepath.Join(".", "autosort.db"))
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)

	v.SetDefault("classifier.endpoint", "https://generativelanguage.googleapis.com/v1/models")
	v.SetDefault("classifier.model", "gemini-1.0-pro")
	v.SetDefault("classifier.enabled", true)
	v.SetDefault("classifier.temperature", 0.2)
	v.SetDefault("classifier.top_k", 1)
	v.SetDefault("classifier.top_p", 1.0)
	v.SetDefault("classifier.max_output_tokens", 10)

	v.SetDefault("sorting.mode", string(models.ModeTag))
	v.SetDefault("sorting.categories", DefaultCategories)
	v.SetDefault("sorting.history_capacity", 100)
	v.SetDefault("sorting.record_tag_history", false)

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.interval_minutes", 5)
	v.SetDefault("scheduler.folder", "INBOX")
}

// bindEnvVars binds environment variables to configuration keys
func bindEnvVars(v *viper.Viper) {
	// Server
	v.BindEnv("server.port", "SERVER_PORT")
	v.BindEnv("log.level", "LOG_LEVEL")

	// Database
	v.BindEnv("database.driver", "DB_DRIVER")
	v.BindEnv("database.path", "DB_PATH")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.dbname", "DB_NAME")

	// Classifier
	v.BindEnv("classifier.api_key", "GEMINI_API_KEY")
	v.BindEnv("classifier.model", "GEMINI_MODEL")
	v.BindEnv("classifier.enabled", "CLASSIFIER_ENABLED")

	// Sorting
	v.BindEnv("sorting.mode", "SORTING_MODE")

	// Scheduler
	v.BindEnv("scheduler.enabled", "SCHEDULER_ENABLED")
	v.BindEnv("scheduler.interval_minutes", "SCHEDULER_INTERVAL_MINUTES")
}

// GetDSN returns the MySQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.DBName)
}

// Account returns the account configuration with the given id
func (c *Config) Account(id string) (AccountConfig, bool) {
	for _, a := range c.Accounts {
		if a.ID == id {
			return a, true
		}
	}
	return AccountConfig{}, false
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database path is required for sqlite")
		}
	case DriverMySQL:
		if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
			return fmt.Errorf("database host, user, and dbname are required")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if !models.Mode(c.Sorting.Mode).Valid() {
		return fmt.Errorf("sorting mode must be %q or %q", models.ModeMove, models.ModeTag)
	}
	if c.Sorting.HistoryCapacity <= 0 {
		return fmt.Errorf("history capacity must be greater than 0")
	}

	seen := make(map[string]bool)
	for _, a := range c.Accounts {
		if a.ID == "" {
			return fmt.Errorf("account id is required")
		}
		if seen[a.ID] {
			return fmt.Errorf("duplicate account id %q", a.ID)
		}
		seen[a.ID] = true

		switch a.Type {
		case AccountTypeIMAP:
			if a.IMAPHost == "" || a.IMAPUser == "" || a.IMAPPassword == "" {
				return fmt.Errorf("IMAP host and credentials are required for account %q", a.ID)
			}
		case AccountTypeGmail:
			if a.ClientID == "" || a.ClientSecret == "" || a.RefreshToken == "" {
				return fmt.Errorf("Gmail OAuth2 credentials are required for account %q", a.ID)
			}
		default:
			return fmt.Errorf("unsupported account type %q for account %q", a.Type, a.ID)
		}
	}

	if c.Scheduler.Enabled && c.Scheduler.IntervalMinutes <= 0 {
		return fmt.Errorf("scheduler interval must be greater than 0")
	}

	return nil
}
