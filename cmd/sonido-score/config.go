package main

import (
	"fmt"
	"strings"

	"github.com/RyanBlaney/sonido-score/internal/server"
	"github.com/RyanBlaney/sonido-score/transcription"
	"github.com/spf13/viper"
)

type appConfig struct {
	LogLevel      string               `mapstructure:"log_level"`
	Cache         string               `mapstructure:"cache"`
	Transcription transcription.Config `mapstructure:"transcription"`
	Server        server.Config        `mapstructure:"server"`
}

func defaultAppConfig() appConfig {
	return appConfig{
		LogLevel:      "info",
		Transcription: transcription.DefaultConfig(),
		Server:        server.DefaultConfig(),
	}
}

// envKeys can be set through SONIDO_<KEY> with dots as underscores
var envKeys = []string{
	"log_level",
	"cache",
	"transcription.detector",
	"transcription.key_source",
	"transcription.beats_per_measure",
	"transcription.dynamics.beats_per_measure",
	"transcription.max_measures",
	"transcription.neural.model.command",
	"transcription.neural.model.weights_path",
	"transcription.neural.model.timeout",
	"server.port",
	"server.max_upload_bytes",
}

// loadConfig layers flags, environment and the optional file over the defaults
func loadConfig(v *viper.Viper, path string) (appConfig, error) {
	v.SetEnvPrefix("SONIDO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return appConfig{}, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return appConfig{}, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	config := defaultAppConfig()
	if err := v.Unmarshal(&config); err != nil {
		return appConfig{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := config.Transcription.Validate(); err != nil {
		return appConfig{}, err
	}
	return config, nil
}
