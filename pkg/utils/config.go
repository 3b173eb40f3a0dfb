package utils

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultJWTSecret = "dev-secret-change-me"
	defaultJWTIssuer = "glossync"
	defaultJWTTTL    = 24 * time.Hour
)

type AuthConfig struct {
	JWTSecret   string
	JWTIssuer   string
	JWTDuration time.Duration
}

func LoadAuthConfig() AuthConfig {
	cfg := AuthConfig{
		JWTSecret:   os.Getenv("GLOSSYNC_JWT_SECRET"),
		JWTIssuer:   os.Getenv("GLOSSYNC_JWT_ISSUER"),
		JWTDuration: defaultJWTTTL,
	}
	if cfg.JWTSecret == "" {
		log.Printf("[auth] GLOSSYNC_JWT_SECRET not set, using the development secret")
		cfg.JWTSecret = defaultJWTSecret
	}
	if cfg.JWTIssuer == "" {
		cfg.JWTIssuer = defaultJWTIssuer
	}

	if ttl := strings.TrimSpace(os.Getenv("GLOSSYNC_JWT_TTL_HOURS")); ttl != "" {
		hours, err := strconv.Atoi(ttl)
		if err != nil || hours <= 0 {
			log.Printf("[auth] ignoring GLOSSYNC_JWT_TTL_HOURS=%q", ttl)
		} else {
			cfg.JWTDuration = time.Duration(hours) * time.Hour
		}
	}
	return cfg
}
