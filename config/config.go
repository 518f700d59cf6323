package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	raffledomain "github.com/Black-And-White-Club/frolf-raffle/app/modules/raffle/domain"
	vrfservice "github.com/Black-And-White-Club/frolf-raffle/app/modules/vrf/application"
	"github.com/Black-And-White-Club/frolf-raffle/internal/observability"
)

// Config struct to hold the configuration settings
type Config struct {
	Postgres      PostgresConfig      `yaml:"postgres"`
	NATS          NATSConfig          `yaml:"nats"`
	HTTP          HTTPConfig          `yaml:"http"`
	JWT           JWTConfig           `yaml:"jwt"`
	Raffle        RaffleConfig        `yaml:"raffle"`
	Keeper        KeeperConfig        `yaml:"keeper"`
	VRF           VRFConfig           `yaml:"vrf"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// PostgresConfig holds Postgres configuration.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// NATSConfig holds NATS configuration.
type NATSConfig struct {
	URL string `yaml:"url"`
}

// HTTPConfig holds the API listener configuration.
type HTTPConfig struct {
	Address        string   `yaml:"address"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	RateLimit      float64  `yaml:"rate_limit"`
	RateBurst      int      `yaml:"rate_burst"`
}

// JWTConfig holds JWT configuration.
type JWTConfig struct {
	Secret     string        `yaml:"secret"`
	Issuer     string        `yaml:"issuer"`
	DefaultTTL time.Duration `yaml:"default_ttl"`
}

// RaffleConfig holds the immutable raffle parameters. Amounts are base-10
// strings of base units.
type RaffleConfig struct {
	EntranceFee          string        `yaml:"entrance_fee"`
	Interval             time.Duration `yaml:"interval"`
	GasLane              string        `yaml:"gas_lane"`
	SubscriptionID       uint64        `yaml:"subscription_id"`
	CallbackGasLimit     uint32        `yaml:"callback_gas_limit"`
	RequestConfirmations uint16        `yaml:"request_confirmations"`
	NumWords             uint32        `yaml:"num_words"`
	Consumer             string        `yaml:"consumer"`
}

// KeeperConfig holds the periodic upkeep configuration.
type KeeperConfig struct {
	Enabled      bool          `yaml:"enabled"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// VRFConfig holds the local coordinator configuration. When disabled the
// raffle talks to an external oracle over the bus.
type VRFConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Owner        string        `yaml:"owner"`
	BaseFee      string        `yaml:"base_fee"`
	GasPriceLink string        `yaml:"gas_price_link"`
	FundAmount   string        `yaml:"fund_amount"`
	AutoFulfill  bool          `yaml:"auto_fulfill"`
	FulfillDelay time.Duration `yaml:"fulfill_delay"`
}

// ObservabilityConfig holds configuration for observability components
type ObservabilityConfig struct {
	Environment    string  `yaml:"environment"`
	LogLevel       string  `yaml:"log_level"`
	MetricsAddress string  `yaml:"metrics_address"`
	OTLPEndpoint   string  `yaml:"otlp_endpoint"`
	OTLPInsecure   bool    `yaml:"otlp_insecure"`
	SampleRate     float64 `yaml:"sample_rate"`
}

// Defaults mirror the local development network.
func Defaults() Config {
	return Config{
		HTTP: HTTPConfig{
			Address:   ":8080",
			RateLimit: 5,
			RateBurst: 20,
		},
		JWT: JWTConfig{
			Issuer:     "frolf-raffle",
			DefaultTTL: 24 * time.Hour,
		},
		Raffle: RaffleConfig{
			EntranceFee:          "10000000000000000",
			Interval:             30 * time.Second,
			GasLane:              "0xd89b2bf150e3b9e13446986e571fb9cab24b13cea0a43ea20a6049a85cc807cc",
			CallbackGasLimit:     500000,
			RequestConfirmations: 3,
			NumWords:             1,
			Consumer:             "raffle",
		},
		Keeper: KeeperConfig{
			Enabled:      true,
			PollInterval: 5 * time.Second,
		},
		VRF: VRFConfig{
			Enabled:      true,
			Owner:        "deployer",
			BaseFee:      "250000000000000000",
			GasPriceLink: "1000000000",
			FundAmount:   "1000000000000000000",
			AutoFulfill:  true,
			FulfillDelay: 3 * time.Second,
		},
		Observability: ObservabilityConfig{
			Environment: "development",
			LogLevel:    "info",
			SampleRate:  0.1,
		},
	}
}

// LoadConfig loads the configuration from a YAML file.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		// If the file is not found, try loading from environment variables
		return loadConfigFromEnv()
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadConfigFromEnv loads the configuration from environment variables.
func loadConfigFromEnv() (*Config, error) {
	cfg := Defaults()

	cfg.Postgres.DSN = os.Getenv("DATABASE_URL")
	if cfg.Postgres.DSN == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set")
	}

	cfg.NATS.URL = os.Getenv("NATS_URL")
	if cfg.NATS.URL == "" {
		return nil, fmt.Errorf("NATS_URL environment variable not set")
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overrides cfg with any environment variables that are set.
func applyEnv(cfg *Config) error {
	var errs []error

	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			*dst = v == "true"
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s value: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("DATABASE_URL", &cfg.Postgres.DSN)
	str("NATS_URL", &cfg.NATS.URL)

	str("HTTP_ADDRESS", &cfg.HTTP.Address)
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.HTTP.AllowedOrigins = strings.Split(v, ",")
	}

	str("JWT_SECRET", &cfg.JWT.Secret)
	str("JWT_ISSUER", &cfg.JWT.Issuer)
	duration("JWT_DEFAULT_TTL", &cfg.JWT.DefaultTTL)

	str("RAFFLE_ENTRANCE_FEE", &cfg.Raffle.EntranceFee)
	duration("RAFFLE_INTERVAL", &cfg.Raffle.Interval)
	str("RAFFLE_GAS_LANE", &cfg.Raffle.GasLane)
	str("RAFFLE_CONSUMER", &cfg.Raffle.Consumer)
	if v := os.Getenv("RAFFLE_SUBSCRIPTION_ID"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid RAFFLE_SUBSCRIPTION_ID value: %w", err))
		} else {
			cfg.Raffle.SubscriptionID = id
		}
	}

	boolean("KEEPER_ENABLED", &cfg.Keeper.Enabled)
	duration("KEEPER_POLL_INTERVAL", &cfg.Keeper.PollInterval)

	boolean("VRF_ENABLED", &cfg.VRF.Enabled)
	boolean("VRF_AUTO_FULFILL", &cfg.VRF.AutoFulfill)
	duration("VRF_FULFILL_DELAY", &cfg.VRF.FulfillDelay)
	str("VRF_FUND_AMOUNT", &cfg.VRF.FundAmount)

	str("ENV", &cfg.Observability.Environment)
	str("LOG_LEVEL", &cfg.Observability.LogLevel)
	str("METRICS_ADDRESS", &cfg.Observability.MetricsAddress)
	str("OTLP_ENDPOINT", &cfg.Observability.OTLPEndpoint)
	boolean("OTLP_INSECURE", &cfg.Observability.OTLPInsecure)
	if v := os.Getenv("SAMPLE_RATE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid SAMPLE_RATE value: %w", err))
		} else {
			cfg.Observability.SampleRate = f
		}
	}

	return errors.Join(errs...)
}

// Validate rejects settings the raffle cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if _, err := c.RaffleConfig(); err != nil {
		errs = append(errs, err)
	}
	if c.Raffle.Consumer == "" {
		errs = append(errs, errors.New("raffle.consumer must be set"))
	}
	if c.Keeper.Enabled && c.Keeper.PollInterval <= 0 {
		errs = append(errs, errors.New("keeper.poll_interval must be positive"))
	}
	if c.VRF.Enabled {
		if _, err := c.VRFConfig(); err != nil {
			errs = append(errs, err)
		}
		if _, err := parseAmount("vrf.fund_amount", c.VRF.FundAmount); err != nil {
			errs = append(errs, err)
		}
	}
	if c.HTTP.RateLimit <= 0 || c.HTTP.RateBurst <= 0 {
		errs = append(errs, errors.New("http rate limit and burst must be positive"))
	}
	if c.Observability.SampleRate < 0 || c.Observability.SampleRate > 1 {
		errs = append(errs, errors.New("observability.sample_rate must be within [0, 1]"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// RaffleConfig converts the raffle section into the domain configuration.
func (c *Config) RaffleConfig() (raffledomain.Config, error) {
	fee, err := parseAmount("raffle.entrance_fee", c.Raffle.EntranceFee)
	if err != nil {
		return raffledomain.Config{}, err
	}
	rc := raffledomain.Config{
		EntranceFee:          fee,
		Interval:             c.Raffle.Interval,
		GasLane:              c.Raffle.GasLane,
		SubscriptionID:       c.Raffle.SubscriptionID,
		CallbackGasLimit:     c.Raffle.CallbackGasLimit,
		RequestConfirmations: c.Raffle.RequestConfirmations,
		NumWords:             c.Raffle.NumWords,
	}
	if err := rc.Validate(); err != nil {
		return raffledomain.Config{}, fmt.Errorf("raffle: %w", err)
	}
	return rc, nil
}

// VRFConfig converts the vrf section into the coordinator pricing.
func (c *Config) VRFConfig() (vrfservice.Config, error) {
	baseFee, err := parseAmount("vrf.base_fee", c.VRF.BaseFee)
	if err != nil {
		return vrfservice.Config{}, err
	}
	gasPrice, err := parseAmount("vrf.gas_price_link", c.VRF.GasPriceLink)
	if err != nil {
		return vrfservice.Config{}, err
	}
	return vrfservice.Config{BaseFee: baseFee, GasPriceLink: gasPrice}, nil
}

// FundAmount is the initial balance of the provisioned subscription.
func (c *Config) FundAmount() *big.Int {
	v, err := parseAmount("vrf.fund_amount", c.VRF.FundAmount)
	if err != nil {
		return new(big.Int)
	}
	return v
}

func parseAmount(field, s string) (*big.Int, error) {
	v, err := raffledomain.ParseAmount(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return v, nil
}

func ToObsConfig(appCfg *Config, version string) observability.Config {
	return observability.Config{
		ServiceName:    "frolf-raffle",
		Environment:    appCfg.Observability.Environment,
		Version:        version,
		LogLevel:       appCfg.Observability.LogLevel,
		MetricsAddress: appCfg.Observability.MetricsAddress,
		OTLPEndpoint:   appCfg.Observability.OTLPEndpoint,
		OTLPInsecure:   appCfg.Observability.OTLPInsecure,
		SampleRate:     appCfg.Observability.SampleRate,
	}
}
