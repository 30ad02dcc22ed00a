package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/timex"
	"github.com/joho/godotenv"
)

// parseEnv overlays values from environment variables. A .env file in the
// working directory is loaded first; variables already set in the process
// environment take precedence over it.
//
// Recognized variables:
//
//	HTTP_ADDR or PORT                         listen address / port
//	DATABASE_DSN                              store DSN
//	ACCESS_SECRET, ACCESS_EXPIRY              access token signing context
//	REFRESH_SECRET, REFRESH_EXPIRY            refresh token signing context
//	FRONTEND_URL                              base URL of reset links
//	SMTP_HOST, SMTP_PORT                      mail server
//	SMTP_USER or EMAIL_SERVICE_EMAIL_ADDRESS  mail account and sender address
//	SMTP_PASSWORD or EMAIL_SERVICE_PASSWORD   mail password
//	COOKIE_SECURE                             Secure attribute of the refresh cookie
//	LOG_FORMAT                                "json" or "text"
func parseEnv(config *Config) error {
	_ = godotenv.Load()

	if port := getEnv("PORT"); port != "" {
		config.EndpointAddrHTTP = ":" + port
	}
	setString(&config.EndpointAddrHTTP, getEnv("HTTP_ADDR"))
	setString(&config.DatabaseDSN, getEnv("DATABASE_DSN"))
	setString(&config.AccessTokenSecret, getEnv("ACCESS_SECRET"))
	setString(&config.RefreshTokenSecret, getEnv("REFRESH_SECRET"))
	setString(&config.FrontendURL, getEnv("FRONTEND_URL"))
	setString(&config.SMTPHost, getEnv("SMTP_HOST"))
	setString(&config.SMTPUser, getEnv("EMAIL_SERVICE_EMAIL_ADDRESS"))
	setString(&config.SMTPUser, getEnv("SMTP_USER"))
	setString(&config.SMTPPassword, getEnv("EMAIL_SERVICE_PASSWORD"))
	setString(&config.SMTPPassword, getEnv("SMTP_PASSWORD"))
	setString(&config.LogFormat, getEnv("LOG_FORMAT"))

	if v := getEnv("ACCESS_EXPIRY"); v != "" {
		d, err := timex.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("ACCESS_EXPIRY: %w", err)
		}
		config.AccessTokenExpiry = d
	}
	if v := getEnv("REFRESH_EXPIRY"); v != "" {
		d, err := timex.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("REFRESH_EXPIRY: %w", err)
		}
		config.RefreshTokenExpiry = d
	}
	if v := getEnv("SMTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SMTP_PORT: %w", err)
		}
		config.SMTPPort = port
	}
	if v := getEnv("COOKIE_SECURE"); v != "" {
		secure, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("COOKIE_SECURE: %w", err)
		}
		config.CookieSecure = secure
	}

	return nil
}

func getEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
