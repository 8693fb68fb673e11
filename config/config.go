package config

import (
	"log"

	"github.com/spf13/viper"
)

type Config struct {
	Database struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
	} `mapstructure:"database"`
	Redis struct {
		Host     string `mapstructure:"host"`
		Port     string `mapstructure:"port"`
		Password string `mapstructure:"password"`
	} `mapstructure:"redis"`
	Server struct {
		Port string `mapstructure:"port"`
	} `mapstructure:"server"`
	JWT struct {
		SecretKey string `mapstructure:"secret_key"`
	} `mapstructure:"jwt"`
	Sync struct {
		// ServerBaseURL is the ledger server the client syncs against.
		ServerBaseURL string `mapstructure:"server_base_url"`
		// HealthIntervalSeconds is the period of the server liveness probe.
		HealthIntervalSeconds int `mapstructure:"health_interval_seconds"`
		// HTTPTimeoutSeconds bounds every network call made by the client.
		HTTPTimeoutSeconds int `mapstructure:"http_timeout_seconds"`
	} `mapstructure:"sync"`
	Cache struct {
		// EncryptionKey protects sensitive cache fields at rest.
		// Hex-encoded, 32 bytes once decoded. Provisioned out of band.
		EncryptionKey string `mapstructure:"encryption_key"`
	} `mapstructure:"cache"`
}

var AppConfig Config

func LoadConfig(path string) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yml")

	viper.SetDefault("sync.health_interval_seconds", 15)
	viper.SetDefault("sync.http_timeout_seconds", 10)

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("Error reading config file, %s", err)
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}
}
