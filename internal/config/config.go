package config

import (
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort  string
	LogLevel string

	ClientURL string

	RedisAddr     string
	RedisPassword string
}

func Load() Config {

	// Local development convenience; ignored when no .env exists.
	_ = godotenv.Load()

	cfg := Config{

		AppPort:  getenv("APP_PORT", "3000"),
		LogLevel: os.Getenv("LOG_LEVEL"),

		ClientURL: os.Getenv("CLIENT_URL"),

		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
	}

	return cfg

}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
