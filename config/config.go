package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ardanlabs/conf"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	DefaultConfigPath = "config/config.toml"
	ServiceName       = "spendgate"
	ConfigExtension   = ".toml"

	EnvironmentDev  = "dev"
	EnvironmentTest = "test"
	EnvironmentProd = "prod"

	DefaultServiceEndpoint = "http://localhost:8080"

	// MaxTokenTTL is the hard upper bound on access token lifetime. Requests
	// and configuration can shorten it but never raise it.
	MaxTokenTTL = 60 * time.Second
)

type SpendgateConfig struct {
	conf.Version
	Server   ServerConfig   `toml:"server"`
	Services ServicesConfig `toml:"services"`
}

// ServerConfig represents configurable properties for the HTTP server
type ServerConfig struct {
	Environment        string        `toml:"env" conf:"default:dev"`
	APIHost            string        `toml:"api_host" conf:"default:0.0.0.0:8080"`
	JaegerHost         string        `toml:"jaeger_host" conf:"http://jaeger:14268/api/traces"`
	JaegerEnabled      bool          `toml:"jaeger_enabled" conf:"default:false"`
	ReadTimeout        time.Duration `toml:"read_timeout" conf:"default:5s"`
	WriteTimeout       time.Duration `toml:"write_timeout" conf:"default:5s"`
	ShutdownTimeout    time.Duration `toml:"shutdown_timeout" conf:"default:5s"`
	LogLocation        string        `toml:"log_location"`
	LogLevel           string        `toml:"log_level" conf:"default:info"`
	EnableAllowAllCORS bool          `toml:"enable_allow_all_cors" conf:"default:false"`
}

// ServicesConfig represents configurable properties for the components of the service
type ServicesConfig struct {
	// at present, a single storage provider backs all services
	StorageProvider string `toml:"storage"`
	BoltFilePath    string `toml:"bolt_file_path"`
	RedisAddress    string `toml:"redis_address"`
	RedisPassword   string `toml:"redis_password"`

	ServiceEndpoint string `toml:"service_endpoint"`

	KeyStoreConfig  KeyStoreServiceConfig  `toml:"keystore,omitempty"`
	ChallengeConfig ChallengeServiceConfig `toml:"challenge,omitempty"`
	ExchangeConfig  ExchangeServiceConfig  `toml:"exchange,omitempty"`
	TokenConfig     TokenServiceConfig     `toml:"token,omitempty"`
	ExpenseConfig   ExpenseServiceConfig   `toml:"expense,omitempty"`
}

type KeyStoreServiceConfig struct {
	// Service key password. Used by a KDF whose key is used by a symmetric
	// cypher for signing key encryption. The password is salted before usage.
	ServiceKeyPassword string `toml:"password"`
}

type ChallengeServiceConfig struct {
	// NonceTTL bounds how long after challenge issuance a presentation may be
	// created.
	NonceTTL time.Duration `toml:"nonce_ttl"`
	// ReapInterval is how often expired challenge entries are purged.
	ReapInterval time.Duration `toml:"reap_interval"`
}

type ExchangeServiceConfig struct {
	// TrustedIssuers is the out-of-band registered set of issuer identifiers
	// whose credentials are accepted.
	TrustedIssuers []string `toml:"trusted_issuers"`
	// TrustListEndpoint optionally augments the static set from a remote
	// registry, fetched with a bounded timeout and fail-closed semantics.
	TrustListEndpoint string        `toml:"trust_list_endpoint"`
	TrustListTimeout  time.Duration `toml:"trust_list_timeout"`
}

type TokenServiceConfig struct {
	// TokenTTL is a deploy-time constant, never request-controllable, and
	// clamped to MaxTokenTTL.
	TokenTTL time.Duration `toml:"token_ttl"`
}

type ExpenseServiceConfig struct {
	// Audience is this resource server's own identity; tokens minted for any
	// other audience are rejected.
	Audience string `toml:"audience"`
	// JWKSEndpoint is where the authorization server's public key set is
	// fetched from. Empty means in-process key sharing.
	JWKSEndpoint    string        `toml:"jwks_endpoint"`
	RefreshInterval time.Duration `toml:"jwks_refresh_interval"`
}

// LoadConfig attempts to load a TOML config file from the given path, and coerce it into our object model.
// Before loading, defaults are applied on certain properties, which are overwritten if specified in the TOML file.
func LoadConfig(path string) (*SpendgateConfig, error) {
	loadDefaultConfig, err := checkValidConfigPath(path)
	if err != nil {
		return nil, errors.Wrap(err, "validating config path")
	}

	// load from .env file if present
	if err = godotenv.Load(); err != nil {
		logrus.Debug("no .env file found, skipping")
	}

	var config SpendgateConfig
	if err = conf.Parse(os.Args[1:], ServiceName, &config); err != nil {
		switch {
		case errors.Is(err, conf.ErrHelpWanted):
			usage, err := conf.Usage(ServiceName, &config)
			if err != nil {
				return nil, errors.Wrap(err, "parsing config")
			}
			fmt.Println(usage)
			return nil, nil
		case errors.Is(err, conf.ErrVersionWanted):
			version, err := conf.VersionString(ServiceName, &config)
			if err != nil {
				return nil, errors.Wrap(err, "generating config version")
			}
			fmt.Println(version)
			return nil, nil
		}
		return nil, errors.Wrap(err, "parsing config")
	}

	if loadDefaultConfig {
		config.Services = defaultServicesConfig()
	} else {
		if _, err = toml.DecodeFile(path, &config); err != nil {
			return nil, errors.Wrapf(err, "could not load config: %s", path)
		}
	}

	applyServiceDefaults(&config.Services)
	return &config, nil
}

func checkValidConfigPath(path string) (bool, error) {
	// no path, load default config
	defaultConfig := false
	if path == "" {
		logrus.Info("no config path provided, loading default config...")
		defaultConfig = true
	} else if filepath.Ext(path) != ConfigExtension {
		return false, fmt.Errorf("path<%s> did not match the expected TOML format", path)
	}
	return defaultConfig, nil
}

func defaultServicesConfig() ServicesConfig {
	return ServicesConfig{
		StorageProvider: "memory",
		ServiceEndpoint: DefaultServiceEndpoint,
		KeyStoreConfig: KeyStoreServiceConfig{
			ServiceKeyPassword: "default-password",
		},
	}
}

// applyServiceDefaults fills in unset values and enforces hard bounds.
func applyServiceDefaults(services *ServicesConfig) {
	if services.ServiceEndpoint == "" {
		services.ServiceEndpoint = DefaultServiceEndpoint
	}
	if services.ChallengeConfig.NonceTTL == 0 {
		services.ChallengeConfig.NonceTTL = 300 * time.Second
	}
	if services.ChallengeConfig.ReapInterval == 0 {
		services.ChallengeConfig.ReapInterval = 60 * time.Second
	}
	if services.ExchangeConfig.TrustListTimeout == 0 {
		services.ExchangeConfig.TrustListTimeout = 5 * time.Second
	}
	// the token TTL can be shortened by config but never raised past the cap
	if services.TokenConfig.TokenTTL == 0 || services.TokenConfig.TokenTTL > MaxTokenTTL {
		services.TokenConfig.TokenTTL = MaxTokenTTL
	}
	if services.ExpenseConfig.Audience == "" {
		services.ExpenseConfig.Audience = "spendgate:expenses"
	}
	if services.ExpenseConfig.RefreshInterval == 0 {
		services.ExpenseConfig.RefreshInterval = 15 * time.Minute
	}
}
