package conf

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/astronomyk/CrowdSky/internal/pkg/database"
	"github.com/astronomyk/CrowdSky/internal/pkg/logger"
	"github.com/astronomyk/CrowdSky/internal/pkg/redis"
	"github.com/astronomyk/CrowdSky/internal/pkg/webdav"
)

type Config struct {
	Server   ServerConfig
	Database database.Config
	Redis    redis.Config
	Archive  ArchiveConfig
	Upload   UploadConfig
	Sweeper  SweeperConfig
	Log      logger.Config
	Auth     AuthConfig
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// ArchiveConfig selects and configures the remote store holding stacked
// outputs and thumbnails. Raw frames never go there; they stay on local
// disk until their job completes.
type ArchiveConfig struct {
	Backend string        `mapstructure:"backend"` // webdav, s3
	WebDAV  webdav.Config `mapstructure:"webdav"`
	S3      S3Config      `mapstructure:"s3"`
}

type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
}

type UploadConfig struct {
	// Dir is the local buffer root for raw frames.
	Dir string `mapstructure:"dir"`
	// MaxFileSize caps a single frame upload, in bytes.
	MaxFileSize int64 `mapstructure:"max_file_size"`
}

type SweeperConfig struct {
	// SessionExpiry is how long a session may sit in 'uploading' before
	// the sweeper treats it as abandoned.
	SessionExpiry time.Duration `mapstructure:"session_expiry"`
	// LeftoverGrace is how long after job completion leftover raw files
	// are tolerated before being force-released.
	LeftoverGrace time.Duration `mapstructure:"leftover_grace"`
	// Interval between background sweeps. Zero disables the background
	// loop; sweeps can still be triggered through the API.
	Interval time.Duration `mapstructure:"interval"`
}

type AuthConfig struct {
	JWTSecret    string `mapstructure:"jwt_secret"`
	JWTIssuer    string `mapstructure:"jwt_issuer"`
	WorkerAPIKey string `mapstructure:"worker_api_key"`
}

func LoadConfig(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	config := defaultConfig()
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return config, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: *database.DefaultConfig(),
		Archive: ArchiveConfig{
			Backend: "webdav",
		},
		Upload: UploadConfig{
			Dir:         "uploads",
			MaxFileSize: 50 * 1024 * 1024,
		},
		Sweeper: SweeperConfig{
			SessionExpiry: 24 * time.Hour,
			LeftoverGrace: time.Hour,
		},
		Log: *logger.DefaultConfig(),
	}
}
