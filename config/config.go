package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
	"github.com/slighter12/go-lib/database/postgres"
)

const (
	defaultPath               = "."
	defaultMaxRequestBodySize = "100KB"

	defaultRealtimePath         = "/ws"
	defaultHeartbeatInterval    = 30 * time.Second
	defaultWriteTimeout         = 10 * time.Second
	defaultReadLimit            = 4096
	defaultInboundRate          = 10.0
	defaultInboundBurst         = 20
	defaultUserCacheTTL         = time.Minute
	defaultBridgeTimeout        = 5 * time.Second
	defaultRabbitMQExchangeName = "beacon.notifications"
)

type Config struct {
	Env struct {
		Env         string `json:"env" yaml:"env"`
		ServiceName string `json:"serviceName" yaml:"serviceName"`
		Debug       bool   `json:"debug" yaml:"debug"`
		Log         Log    `json:"log" yaml:"log"`
	} `json:"env" yaml:"env"`

	HTTP HTTPConfig `json:"http" yaml:"http"`

	Postgres *postgres.DBConn `json:"postgres" yaml:"postgres" mapstructure:"postgres"`

	SecretKey struct {
		Access  string `json:"access" yaml:"access"`
		Refresh string `json:"refresh" yaml:"refresh"`
	} `json:"secretKey" yaml:"secretKey"`

	// Realtime configures the WebSocket notification server
	Realtime RealtimeConfig `json:"realtime" yaml:"realtime"`

	// Bridge configures how the API tier hands notifications to the realtime tier
	Bridge *BridgeConfig `json:"bridge" yaml:"bridge"`

	// Firebase configuration for the offline push fallback
	Firebase *FirebaseConfig `json:"firebase" yaml:"firebase"`
}

// HTTPConfig defines the listener of the request/response API
type HTTPConfig struct {
	Port               int    `json:"port" yaml:"port"`
	MaxRequestBodySize string `json:"maxRequestBodySize" yaml:"maxRequestBodySize"`

	// CORSOrigins lists the browser origins allowed to call the API; empty allows any
	CORSOrigins []string `json:"corsOrigins" yaml:"corsOrigins"`

	Timeouts struct {
		ReadTimeout       time.Duration `json:"readTimeout" yaml:"readTimeout"`
		ReadHeaderTimeout time.Duration `json:"readHeaderTimeout" yaml:"readHeaderTimeout"`
		WriteTimeout      time.Duration `json:"writeTimeout" yaml:"writeTimeout"`
		IdleTimeout       time.Duration `json:"idleTimeout" yaml:"idleTimeout"`
	} `json:"timeouts" yaml:"timeouts"`
}

type Log struct {
	Pretty bool   `json:"pretty" yaml:"pretty"`
	Level  string `json:"level" yaml:"level"`
}

// RealtimeConfig defines the WebSocket server and connection liveness settings
type RealtimeConfig struct {
	Port int    `json:"port" yaml:"port"`
	Path string `json:"path" yaml:"path"`

	// HeartbeatInterval is the period of the ping/reap cycle
	HeartbeatInterval time.Duration `json:"heartbeatInterval" yaml:"heartbeatInterval"`

	// WriteTimeout bounds a single frame write to a client
	WriteTimeout time.Duration `json:"writeTimeout" yaml:"writeTimeout"`

	// ReadLimit is the maximum size in bytes of an inbound frame
	ReadLimit int64 `json:"readLimit" yaml:"readLimit"`

	// InboundRate and InboundBurst throttle client control messages per connection
	InboundRate  float64 `json:"inboundRate" yaml:"inboundRate"`
	InboundBurst int     `json:"inboundBurst" yaml:"inboundBurst"`

	// AllowedOrigins restricts the Origin header of upgrade requests; empty allows any
	AllowedOrigins []string `json:"allowedOrigins" yaml:"allowedOrigins"`

	// UserCacheTTL is how long a resolved handshake user is cached
	UserCacheTTL time.Duration `json:"userCacheTTL" yaml:"userCacheTTL"`

	// OfflinePush sends an FCM push when a user has no open connection
	OfflinePush bool `json:"offlinePush" yaml:"offlinePush"`
}

// BridgeConfig defines the transport between the API and realtime tiers
type BridgeConfig struct {
	// Provider type: "http", "google" or "rabbitmq"; empty disables emitting
	Provider string `json:"provider" yaml:"provider"`

	// BaseURL of the realtime server (for http provider)
	BaseURL string `json:"baseUrl" yaml:"baseUrl"`

	// SharedSecret is sent as X-Bridge-Secret and required by the realtime server when set
	SharedSecret string `json:"sharedSecret" yaml:"sharedSecret"`

	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	Google   *GooglePubSubConfig `json:"google" yaml:"google"`
	RabbitMQ *RabbitMQConfig     `json:"rabbitmq" yaml:"rabbitmq"`
}

// GooglePubSubConfig defines the Pub/Sub topic used by the google provider.
// The realtime server then requires the OIDC token of the push subscription on /push.
type GooglePubSubConfig struct {
	ProjectID string `json:"projectId" yaml:"projectId"`
	TopicID   string `json:"topicId" yaml:"topicId"`
}

// RabbitMQConfig defines the broker used by the rabbitmq provider
type RabbitMQConfig struct {
	URL      string `json:"url" yaml:"url"`
	Exchange string `json:"exchange" yaml:"exchange"`
}

// FirebaseConfig defines Firebase configuration for push notifications
type FirebaseConfig struct {
	ProjectID       string `json:"projectId" yaml:"projectId"`
	CredentialsPath string `json:"credentialsPath" yaml:"credentialsPath"`
}

// LoadWithEnv loads .yaml files through koanf.
func LoadWithEnv[T any](currEnv string, configPath ...string) (*T, error) {
	cfg := new(T)
	koanfInstance := koanf.New(".")

	searchPaths := []string{defaultPath}
	if len(configPath) != 0 {
		pwd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "os.Getwd")
		}
		for _, path := range configPath {
			abs := filepath.Join(pwd, path)
			searchPaths = append(searchPaths, abs)
		}
	}

	var configFile string
	var found bool
	for _, path := range searchPaths {
		candidate := filepath.Join(path, currEnv+".yaml")
		if _, err := os.Stat(candidate); err == nil {
			configFile = candidate
			found = true

			break
		}
	}

	if !found {
		return nil, errors.Errorf("config file %s.yaml not found in any search path", currEnv)
	}

	if err := koanfInstance.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		return nil, errors.Wrapf(err, "read %s config failed", currEnv)
	}

	existingConfigMap := koanfInstance.Raw()

	if err := koanfInstance.Load(env.Provider(".", env.Opt{
		TransformFunc: func(k, v string) (string, any) {
			// REALTIME_HEARTBEATINTERVAL -> realtime.heartbeatInterval
			key := canonicalizeEnvKey(k, existingConfigMap)

			return key, v
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables failed")
	}

	if err := koanfInstance.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
			MatchName: func(mapKey, fieldName string) bool {
				return strings.EqualFold(mapKey, fieldName)
			},
		},
	}); err != nil {
		return nil, errors.Wrapf(err, "unmarshal %s config failed", currEnv)
	}

	return cfg, nil
}

func New() (*Config, error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	cfg, err := LoadWithEnv[Config]("config", "config", "../config", "../../config")
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	if cfg.Postgres != nil {
		// POSTGRES_REPLICAS_0_HOST, POSTGRES_REPLICAS_0_PORT, ...
		cfg.Postgres.Replicas = buildReplicasFromEnv()
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.HTTP.MaxRequestBodySize) == "" {
		cfg.HTTP.MaxRequestBodySize = defaultMaxRequestBodySize
	}

	rt := &cfg.Realtime
	if rt.Path == "" {
		rt.Path = defaultRealtimePath
	}
	if rt.HeartbeatInterval <= 0 {
		rt.HeartbeatInterval = defaultHeartbeatInterval
	}
	if rt.WriteTimeout <= 0 {
		rt.WriteTimeout = defaultWriteTimeout
	}
	if rt.ReadLimit <= 0 {
		rt.ReadLimit = defaultReadLimit
	}
	if rt.InboundRate <= 0 {
		rt.InboundRate = defaultInboundRate
	}
	if rt.InboundBurst <= 0 {
		rt.InboundBurst = defaultInboundBurst
	}
	if rt.UserCacheTTL <= 0 {
		rt.UserCacheTTL = defaultUserCacheTTL
	}

	if cfg.Bridge != nil {
		if cfg.Bridge.Timeout <= 0 {
			cfg.Bridge.Timeout = defaultBridgeTimeout
		}
		if cfg.Bridge.RabbitMQ != nil && cfg.Bridge.RabbitMQ.Exchange == "" {
			cfg.Bridge.RabbitMQ.Exchange = defaultRabbitMQExchangeName
		}
	}
}

func canonicalizeEnvKey(rawKey string, existing map[string]any) string {
	segments := strings.Split(strings.ToLower(rawKey), "_")
	canonical := make([]string, 0, len(segments))
	current := existing

	for _, segment := range segments {
		if segment == "" {
			continue
		}

		if matched, next, ok := findExistingSegment(current, segment); ok {
			canonical = append(canonical, matched)
			current = next
		} else {
			canonical = append(canonical, segment)
			current = nil
		}
	}

	return strings.Join(canonical, ".")
}

func findExistingSegment(current map[string]any, segment string) (matched string, next map[string]any, ok bool) {
	if len(current) == 0 {
		return "", nil, false
	}

	needle := normalizeToken(segment)
	for key, value := range current {
		if normalizeToken(key) != needle {
			continue
		}

		child, _ := value.(map[string]any)

		return key, child, true
	}

	return "", nil, false
}

func normalizeToken(s string) string {
	var normalized strings.Builder
	normalized.Grow(len(s))

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		normalized.WriteRune(unicode.ToLower(r))
	}

	return normalized.String()
}

// buildReplicasFromEnv builds the replicas slice from environment variables.
// Environment variable format: POSTGRES_REPLICAS_{index}_{field}
func buildReplicasFromEnv() []postgres.ConnectionConfig {
	var replicas []postgres.ConnectionConfig

	for i := 0; ; i++ {
		prefix := "POSTGRES_REPLICAS_" + strconv.Itoa(i) + "_"

		host := os.Getenv(prefix + "HOST")
		port := os.Getenv(prefix + "PORT")
		if host == "" || port == "" {
			break
		}

		replicas = append(replicas, postgres.ConnectionConfig{
			Host:     host,
			Port:     port,
			UserName: os.Getenv(prefix + "USERNAME"),
			Password: os.Getenv(prefix + "PASSWORD"),
		})
	}

	return replicas
}
