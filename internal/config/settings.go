package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Settings contains the application config.
type Settings struct {
	Environment string `env:"ENVIRONMENT" envDefault:"local" yaml:"environment"`
	LogLevel    string `env:"LOG_LEVEL"   envDefault:"info"  yaml:"logLevel"`
	Port        int    `env:"PORT"        envDefault:"8080"  yaml:"port"`
	MonPort     int    `env:"MON_PORT"    envDefault:"8888"  yaml:"monPort"`

	// Fleet API settings
	APIBaseURL           string        `env:"API_BASE_URL,required"                     yaml:"apiBaseUrl"`
	RequestTimeout       time.Duration `env:"REQUEST_TIMEOUT"        envDefault:"15s"   yaml:"requestTimeout"`
	RetryMaxRetries      uint64        `env:"RETRY_MAX_RETRIES"      envDefault:"2"     yaml:"retryMaxRetries"`
	RetryInitialInterval time.Duration `env:"RETRY_INITIAL_INTERVAL" envDefault:"250ms" yaml:"retryInitialInterval"`

	// Presentation settings
	AvatarBaseURL string `env:"AVATAR_BASE_URL" envDefault:"https://ui-avatars.com/api/" yaml:"avatarBaseUrl"`
	Locale        string `env:"LOCALE"          envDefault:"pt-BR"                       yaml:"locale"`
}

// Load reads Settings from the process environment.
func Load() (Settings, error) {
	settings, err := env.ParseAs[Settings]()
	if err != nil {
		return Settings{}, fmt.Errorf("failed to parse settings: %w", err)
	}
	return settings, nil
}

// LoadFromMap reads Settings from the given key/value pairs instead of the process environment.
func LoadFromMap(environment map[string]string) (Settings, error) {
	settings, err := env.ParseAsWithOptions[Settings](env.Options{Environment: environment})
	if err != nil {
		return Settings{}, fmt.Errorf("failed to parse settings: %w", err)
	}
	return settings, nil
}
