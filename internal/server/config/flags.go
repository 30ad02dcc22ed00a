package config

import (
	"flag"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
	"github.com/dmitrijs2005/gophauth/internal/timex"
)

// parseFlags overlays values from command-line flags.
//
//	-a string               HTTP listen address (e.g. ":3000")
//	-d string               store DSN
//	-access-secret string   access token HMAC secret
//	-access-expiry value    access token lifetime ("15m")
//	-refresh-secret string  refresh token HMAC secret
//	-refresh-expiry value   refresh token lifetime ("7d")
//	-f string               frontend base URL for reset links
//	-log-format string      "json" or "text"
//
// Arguments that belong to other flag sets (e.g. -c) are ignored.
func parseFlags(config *Config, args []string) error {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.AccessTokenSecret, "access-secret", config.AccessTokenSecret, "access token secret")
	fs.Var((*durationValue)(&config.AccessTokenExpiry), "access-expiry", "access token expiry")
	fs.StringVar(&config.RefreshTokenSecret, "refresh-secret", config.RefreshTokenSecret, "refresh token secret")
	fs.Var((*durationValue)(&config.RefreshTokenExpiry), "refresh-expiry", "refresh token expiry")
	fs.StringVar(&config.FrontendURL, "f", config.FrontendURL, "frontend base URL")
	fs.StringVar(&config.LogFormat, "log-format", config.LogFormat, "log format (json|text)")

	return flagx.ParseKnown(fs, args)
}

// durationValue is a flag.Value accepting timex durations.
type durationValue time.Duration

func (d *durationValue) String() string {
	return time.Duration(*d).String()
}

func (d *durationValue) Set(s string) error {
	v, err := timex.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = durationValue(v)
	return nil
}
