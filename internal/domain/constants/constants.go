// Package constants holds values shared by the API and realtime tiers.
package constants

const (
	// DefaultPageLimit is used when a list request carries no limit
	DefaultPageLimit = 20
	// MaxPageLimit caps the limit of a list request
	MaxPageLimit = 100

	// BridgeSecretHeader carries the shared secret of bridge requests
	BridgeSecretHeader = "X-Bridge-Secret"

	// TokenQueryParam is the handshake query parameter holding the access token
	TokenQueryParam = "token"
)

// Bridge providers
const (
	BridgeProviderHTTP     = "http"
	BridgeProviderGoogle   = "google"
	BridgeProviderRabbitMQ = "rabbitmq"
)

// Environments
const (
	EnvDevelop    = "develop"
	EnvLocal      = "local"
	EnvProduction = "production"
)
