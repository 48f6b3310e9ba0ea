package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

type (
	// Container aggregates all process configuration. Values are read once
	// at startup and never mutated afterwards.
	Container struct {
		App  *App
		Auth *Auth
		DB   *DB
		HTTP *HTTP
	}

	App struct {
		Name string
		Env  string
	}

	// Auth configures token verification against the identity provider.
	Auth struct {
		Domain    string
		Audience  string
		Algorithm string
	}

	DB struct {
		DSN string
	}

	HTTP struct {
		Port           string
		AllowedOrigins string
	}
)

// New loads configuration from the environment, reading a .env file first
// outside production.
func New() (*Container, error) {
	if os.Getenv("APP_ENV") != "production" {
		// Missing .env is fine; plain env vars still apply.
		_ = godotenv.Load()
	}

	app := &App{
		Name: getenv("APP_NAME", "todopad-api"),
		Env:  os.Getenv("APP_ENV"),
	}

	authCfg := &Auth{
		Domain:    os.Getenv("AUTH0_DOMAIN"),
		Audience:  os.Getenv("AUTH0_AUDIENCE"),
		Algorithm: getenv("AUTH0_ALGORITHM", "RS256"),
	}
	if authCfg.Domain == "" {
		return nil, fmt.Errorf("AUTH0_DOMAIN is required")
	}
	if authCfg.Audience == "" {
		return nil, fmt.Errorf("AUTH0_AUDIENCE is required")
	}

	db := &DB{
		DSN: os.Getenv("TODOPAD_PG_DSN"),
	}
	if db.DSN == "" {
		return nil, fmt.Errorf("TODOPAD_PG_DSN is required")
	}

	httpCfg := &HTTP{
		Port:           getenv("HTTP_PORT", "8080"),
		AllowedOrigins: os.Getenv("ALLOWED_ORIGINS"),
	}

	return &Container{
		App:  app,
		Auth: authCfg,
		DB:   db,
		HTTP: httpCfg,
	}, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
