// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// WAFFLE's CoreConfig handles framework-level settings (ports, TLS, log
// level, CORS); AppConfig is everything specific to this application. The
// struct is passed to most lifecycle hooks, so any configuration needed
// during startup, request handling, or shutdown lives here.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Token configuration for the JSON API. The mobile clients hold a
	// bearer token; there are no cookie sessions.
	TokenKey    string        // HMAC signing key (must be strong in production)
	TokenIssuer string        // iss claim on issued tokens
	TokenTTL    time.Duration // token lifetime

	// Daily reset configuration
	ResetHour     int    // local hour (0-23) at which all students return to NOT_ARRIVED
	ResetTimeZone string // IANA zone the reset hour is interpreted in

	// Websocket configuration
	WSAllowedOrigins []string // origin patterns accepted for /live upgrades
}
