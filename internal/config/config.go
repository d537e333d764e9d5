package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var ErrMissingEnvironmentVariables = errors.New("missing required environment variables")

// Backend names accepted for storage.backend.
const (
	BackendAirtable = "airtable"
	BackendPostgres = "postgres"
	BackendSheet    = "sheet"
)

// Config holds application configuration loaded from files and environment variables.
type Config struct {
	Env              string   `mapstructure:"env"` // current application environment (local, dev, production etc)
	TelegramAPIToken string   `mapstructure:"-"`   // Telegram API token loaded from environment
	Course           Course   `mapstructure:"course"`
	Storage          Storage  `mapstructure:"storage"`
	Mistral          Mistral  `mapstructure:"mistral"`
	Airtable         Airtable `mapstructure:"airtable"`
	DB               DB       `mapstructure:"database"`
	Sheet            Sheet    `mapstructure:"sheet"`
}

// Course contains course pacing and progression parameters.
type Course struct {
	VideoWaitTime     time.Duration `mapstructure:"video_wait_time"`      // pause between presenting a lesson and asking its question
	MaxVideosPerLevel int           `mapstructure:"max_videos_per_level"` // lessons per level before a level-up
}

// Storage selects the record-store backend.
type Storage struct {
	Backend string `mapstructure:"backend"` // airtable, postgres or sheet
}

// Mistral contains assessment-oracle configuration.
type Mistral struct {
	APIKey          string `mapstructure:"-"` // loaded from environment
	BaseURL         string `mapstructure:"base_url"`
	PlacementModel  string `mapstructure:"placement_model"`
	AssessmentModel string `mapstructure:"assessment_model"`
}

// Airtable contains the Airtable base and table identifiers.
type Airtable struct {
	APIKey        string `mapstructure:"-"` // loaded from environment
	BaseID        string `mapstructure:"base_id"`
	UsersTable    string `mapstructure:"users_table"`
	VideosTable   string `mapstructure:"videos_table"`
	MessagesTable string `mapstructure:"messages_table"`
}

// DB contains database-related configuration parameters.
type DB struct {
	URL             string        `mapstructure:"-"`                 // connection string loaded from environment
	MaxConnections  int           `mapstructure:"max_connections"`   // maximum number of open connections in the pool
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"` // maximum lifetime of a single connection
}

// Sheet contains the spreadsheet backend configuration.
type Sheet struct {
	Path string `mapstructure:"path"` // path to the .xlsx workbook
}

// Load reads configuration from config files and environment variables.
func Load() (*Config, error) {
	// Initialize Viper instance and base config options.
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")

	// Set default values for configuration keys.
	v.SetDefault("env", "local")
	v.SetDefault("course.video_wait_time", "10s")
	v.SetDefault("course.max_videos_per_level", 2)
	v.SetDefault("storage.backend", BackendAirtable)
	v.SetDefault("mistral.base_url", "https://api.mistral.ai/v1")
	v.SetDefault("mistral.placement_model", "ministral-8b-2410")
	v.SetDefault("mistral.assessment_model", "mistral-small-latest")
	v.SetDefault("airtable.users_table", "Users")
	v.SetDefault("airtable.videos_table", "Videos")
	v.SetDefault("airtable.messages_table", "Messages")
	v.SetDefault("database.max_connections", 20)
	v.SetDefault("database.max_conn_lifetime", "30s")
	v.SetDefault("sheet.path", "data/course.xlsx")

	// Configure environment variable handling and key mapping.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // map nested keys to ENV style names
	v.AutomaticEnv()

	// Bind explicit environment variables to configuration keys.
	_ = v.BindEnv("telegram_api_token", "TELEGRAM_API_TOKEN")
	_ = v.BindEnv("mistral_api_key", "MISTRAL_API_KEY")
	_ = v.BindEnv("airtable_api_key", "AIRTABLE_API_KEY")
	_ = v.BindEnv("database_url", "DATABASE_URL")
	_ = v.BindEnv("env", "APP_ENV")

	// Try to read configuration file if present.
	if err := v.ReadInConfig(); err != nil {
		var fileLookupErr viper.ConfigFileNotFoundError
		if !errors.As(err, &fileLookupErr) {
			return nil, fmt.Errorf("error loading config file: %w", err)
		}
	}

	// Unmarshal configuration into strongly typed struct.
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	// Load sensitive values from environment variables.
	cfg.TelegramAPIToken = v.GetString("telegram_api_token")
	if cfg.TelegramAPIToken == "" {
		return nil, ErrMissingEnvironmentVariables
	}

	cfg.Mistral.APIKey = v.GetString("mistral_api_key")
	if cfg.Mistral.APIKey == "" {
		return nil, ErrMissingEnvironmentVariables
	}

	cfg.Airtable.APIKey = v.GetString("airtable_api_key")
	cfg.DB.URL = v.GetString("database_url")

	switch cfg.Storage.Backend {
	case BackendAirtable:
		if cfg.Airtable.APIKey == "" || cfg.Airtable.BaseID == "" {
			return nil, ErrMissingEnvironmentVariables
		}
	case BackendPostgres:
		if cfg.DB.URL == "" {
			return nil, ErrMissingEnvironmentVariables
		}
	case BackendSheet:
		if cfg.Sheet.Path == "" {
			return nil, ErrMissingEnvironmentVariables
		}
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Storage.Backend)
	}

	return &cfg, nil
}
