package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is everything the process reads from the environment. A local .env
// file is honored in development; real deployments set the variables
// directly.
type Config struct {
	// GeminiAPIKey authenticates against the realtime model endpoint.
	GeminiAPIKey string `envconfig:"GEMINI_API_KEY" required:"true"`

	// LiveModel is the realtime model to converse with.
	LiveModel string `envconfig:"LIVE_MODEL" default:"models/gemini-2.0-flash-live-001"`

	// LiveVoice selects the prebuilt synthesis voice.
	LiveVoice string `envconfig:"LIVE_VOICE" default:"Puck"`

	// LiveHost overrides the model endpoint host. Leave empty for production;
	// set it to point at a proxy or a local stand-in.
	LiveHost string `envconfig:"LIVE_HOST" default:""`

	// HTTPPort is where the control API and UI socket listen.
	HTTPPort string `envconfig:"HTTP_PORT" default:"8080"`

	// DevicesFile optionally points at a YAML file describing the home's
	// devices. When empty the built-in default set is used.
	DevicesFile string `envconfig:"DEVICES_FILE" default:""`

	// LogLevel is a zap level string: debug, info, warn, error.
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	// Missing .env is the normal case outside development.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("vozcasa", &cfg); err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	return &cfg, nil
}
