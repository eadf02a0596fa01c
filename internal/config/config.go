// Package config provides configuration loading, validation, and defaults
// for the bot. Values come from defaults, then config.yaml, then BOT_*
// environment variables, and are validated before use.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config defines the application configuration for all components.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Spawn     SpawnConfig     `mapstructure:"spawn"`
	Source    SourceConfig    `mapstructure:"source"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Messages  MessagesConfig  `mapstructure:"messages"`
}

// LoggerConfig controls log level and output format.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// TelegramConfig holds transport credentials and the admin user.
type TelegramConfig struct {
	Token       string `mapstructure:"token"         validate:"required"`
	AdminUserID int64  `mapstructure:"admin_user_id" validate:"required,gt=0"`
}

// DatabaseConfig holds the SQLite database location.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// SpawnConfig controls the spawn counter.
type SpawnConfig struct {
	// Threshold is the number of qualifying group messages between spawns.
	Threshold int `mapstructure:"threshold" validate:"min=1,max=100000"`
}

// SourceConfig configures the external character source API.
type SourceConfig struct {
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	Timeout time.Duration `mapstructure:"timeout"  validate:"min=1s,max=2m"`
}

// TaskConfig configures one scheduled task.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// SchedulerConfig maps task names to their schedules.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks"`
}

// MessagesConfig holds user-visible message templates.
type MessagesConfig struct {
	Welcome       string `mapstructure:"welcome"`
	Help          string `mapstructure:"help"`
	GeneralError  string `mapstructure:"general_error"`
	NotAuthorized string `mapstructure:"not_authorized"`
	TooLate       string `mapstructure:"too_late"`
	NoSpawn       string `mapstructure:"no_spawn"`
	EmptyHarem    string `mapstructure:"empty_harem"`
	EmptyBoard    string `mapstructure:"empty_board"`
	NotRegistered string `mapstructure:"not_registered"`
	SpawnCaption  string `mapstructure:"spawn_caption"`
	GrabButton    string `mapstructure:"grab_button"`
}

// Load loads and validates the configuration. path points at a YAML config
// file; when empty, config.yaml in the working directory is tried.
func Load(path string) (*Config, error) {
	setDefaults()

	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("BOT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Config file is optional; env vars and defaults are enough to run.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults() {
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.json", false)

	// Registering the keys makes env-only values visible to Unmarshal.
	viper.SetDefault("telegram.token", "")
	viper.SetDefault("telegram.admin_user_id", 0)

	viper.SetDefault("database.path", "storage.db")

	viper.SetDefault("spawn.threshold", 100)

	viper.SetDefault("source.base_url", "https://api.waifu.im")
	viper.SetDefault("source.timeout", 10*time.Second)

	viper.SetDefault("scheduler.tasks", map[string]TaskConfig{
		"sql_maintenance": {Enabled: true, Schedule: "0 0 4 * * *"},
	})

	viper.SetDefault("messages.welcome",
		"Salaam! I'm the Grab Your Waifu bot. 😼\n\n"+
			"Commands:\n"+
			"/grab - claim the spawned waifu\n"+
			"/harem - view your collection\n"+
			"/search <name> - search the catalog\n"+
			"/trade @user <yours> for <theirs> - propose a trade\n"+
			"/gift @user <name> - gift a waifu\n"+
			"/status - your stats\n"+
			"/top - leaderboard")
	viper.SetDefault("messages.help",
		"FAQ:\n\n"+
			"1. A waifu spawns after enough chat messages. Press the GRAB button or use /grab to claim her.\n"+
			"2. Trade with /trade @username <your waifu> for <their waifu>.\n"+
			"3. Check your stats with /status.")
	viper.SetDefault("messages.general_error", "❌ Something went wrong. Please try again later.")
	viper.SetDefault("messages.not_authorized", "🚫 This command is admin-only.")
	viper.SetDefault("messages.too_late", "Too late! 🥺")
	viper.SetDefault("messages.no_spawn", "No waifu has spawned yet, or she was already claimed.")
	viper.SetDefault("messages.empty_harem", "Your harem is empty. Go grab some characters!")
	viper.SetDefault("messages.empty_board", "No data for this board yet.")
	viper.SetDefault("messages.not_registered", "You are not registered yet. Send /start first.")
	viper.SetDefault("messages.spawn_caption", "✨ A wild %s appeared! ✨\n\nPress GRAB to make her yours!")
	viper.SetDefault("messages.grab_button", "💖 GRAB 💖")
}
