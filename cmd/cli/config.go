package cli

import (
	"strings"

	"github.com/bubblelabai/bubblelab/internal/initialization"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// LoadConfig resolves configuration from an optional bubblelab.yaml plus
// environment variables. Environment always wins.
func LoadConfig() (initialization.Config, error) {
	v := viper.New()

	v.SetDefault("http_port", 8080)
	v.SetDefault("database_url", "")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	envMappings := map[string]string{
		"http_port":    "HTTP_PORT",
		"database_url": "DATABASE_URL",
	}
	for configKey, envVar := range envMappings {
		if err := v.BindEnv(configKey, envVar); err != nil {
			log.Warn().Err(err).Msgf("Failed to bind environment variable %s", envVar)
		}
	}

	v.SetConfigName("bubblelab")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return initialization.Config{}, err
		}
	}

	return initialization.Config{
		HTTPPort:    v.GetInt("http_port"),
		DatabaseURL: v.GetString("database_url"),
	}, nil
}
