// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config - единственный объект конфигурации сервиса. Создаётся один раз при старте
// и передаётся в конструкторы компонентов; после загрузки только читается.
type Config struct {
	RPCURL       string `mapstructure:"rpc_url"`
	WebSocketURL string `mapstructure:"websocket_url"`
	PrivateKey   string `mapstructure:"private_key"`
	ProgramID    string `mapstructure:"program_id"`

	RelayEndpoints []string `mapstructure:"relay_endpoints"`
	TipLamports    uint64   `mapstructure:"tip_lamports"`

	OracleURL     string        `mapstructure:"oracle_url"`
	OracleTimeout time.Duration `mapstructure:"oracle_timeout"`

	PinataJWT     string `mapstructure:"pinata_jwt"`
	PinataURL     string `mapstructure:"pinata_url"`
	PinataGateway string `mapstructure:"pinata_gateway"`

	StorageDriver string `mapstructure:"storage_driver"`
	PostgresURL   string `mapstructure:"postgres_url"`

	HTTPAddr string `mapstructure:"http_addr"`

	SettleDelay          time.Duration `mapstructure:"settle_delay"`
	LiquiditySettleDelay time.Duration `mapstructure:"liquidity_settle_delay"`
	DefaultThreshold     float64       `mapstructure:"default_threshold"`
	MigrationSharePct    int64         `mapstructure:"migration_share_percent"`
	InitialQuote         uint64        `mapstructure:"initial_quote_liquidity"`
	ComputeUnitLimit     uint32        `mapstructure:"compute_unit_limit"`
	ComputeUnitPrice     uint64        `mapstructure:"compute_unit_price"`
	SendMaxRetries       uint          `mapstructure:"send_max_retries"`
	PriceWindow          int           `mapstructure:"price_window"`
	QueueSize            int           `mapstructure:"queue_size"`

	DebugLogging bool   `mapstructure:"debug_logging"`
	LogFile      string `mapstructure:"log_file"`
}

const (
	DefaultProgramID        = "6fDcuCmcBiJepAQkboGpVC4icLbeSMX88UMTwNDLGM5z"
	DefaultOracleURL        = "https://api.coingecko.com/api/v3/simple/price?ids=solana&vs_currencies=usd"
	DefaultPinataURL        = "https://api.pinata.cloud/pinning/pinJSONToIPFS"
	DefaultRelayEndpoint    = "https://ny.mainnet.block-engine.jito.wtf/api/v1/bundles"
	DefaultTipLamports      = 100_000
	DefaultThreshold        = 5000
	DefaultSharePercent     = 95
	DefaultInitialQuote     = 30_000_000_000
	DefaultComputeUnitLimit = 400_000
	DefaultComputeUnitPrice = 100_000
	DefaultSendMaxRetries   = 5
	DefaultPriceWindow      = 300
	DefaultQueueSize        = 64
	DefaultSettleDelay      = 3 * time.Second
	DefaultOracleTimeout    = 10 * time.Second
)

// LoadConfig читает .env (если есть), файл конфигурации (если путь задан)
// и переменные окружения с префиксом FAIRLAUNCH.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	v := viper.New()

	defaults := map[string]interface{}{
		"program_id":              DefaultProgramID,
		"relay_endpoints":         []string{DefaultRelayEndpoint},
		"tip_lamports":            DefaultTipLamports,
		"oracle_url":              DefaultOracleURL,
		"oracle_timeout":          DefaultOracleTimeout,
		"pinata_url":              DefaultPinataURL,
		"storage_driver":          "memory",
		"http_addr":               ":8080",
		"settle_delay":            DefaultSettleDelay,
		"liquidity_settle_delay":  DefaultSettleDelay,
		"default_threshold":       DefaultThreshold,
		"migration_share_percent": DefaultSharePercent,
		"initial_quote_liquidity": DefaultInitialQuote,
		"compute_unit_limit":      DefaultComputeUnitLimit,
		"compute_unit_price":      DefaultComputeUnitPrice,
		"send_max_retries":        DefaultSendMaxRetries,
		"price_window":            DefaultPriceWindow,
		"queue_size":              DefaultQueueSize,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	bindEnvironment(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	loadEnvironmentOverrides(&cfg)

	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	if cfg.RPCURL == "" {
		return errors.New("rpc_url is empty")
	}
	if err := validateURLWithCache(cfg.RPCURL, "http"); err != nil {
		return errors.New("invalid RPC URL protocol")
	}
	if cfg.WebSocketURL == "" {
		return errors.New("websocket_url is empty")
	}
	if err := validateURLWithCache(cfg.WebSocketURL, "ws"); err != nil {
		return errors.New("invalid WebSocket URL protocol")
	}
	if cfg.PrivateKey == "" {
		return errors.New("missing private_key in configuration")
	}
	if len(cfg.RelayEndpoints) == 0 {
		return errors.New("relay_endpoints is empty")
	}
	for _, endpoint := range cfg.RelayEndpoints {
		if err := validateURLWithCache(endpoint, "http"); err != nil {
			return errors.New("invalid relay endpoint protocol")
		}
	}
	switch cfg.StorageDriver {
	case "memory":
	case "postgres":
		if cfg.PostgresURL == "" {
			return errors.New("postgres_url is required for postgres storage")
		}
	default:
		return errors.New("unknown storage_driver")
	}
	return validateNumericParams(cfg)
}

func validateNumericParams(cfg *Config) error {
	if cfg.DefaultThreshold <= 0 {
		return errors.New("invalid default_threshold")
	}
	if cfg.MigrationSharePct <= 0 || cfg.MigrationSharePct > 100 {
		return errors.New("invalid migration_share_percent")
	}
	if cfg.SettleDelay < 0 || cfg.LiquiditySettleDelay < 0 {
		return errors.New("invalid settle delay")
	}
	if cfg.PriceWindow <= 0 {
		return errors.New("invalid price_window")
	}
	if cfg.QueueSize <= 0 {
		return errors.New("invalid queue_size")
	}
	if cfg.ComputeUnitLimit == 0 {
		return errors.New("invalid compute_unit_limit")
	}
	return nil
}

var urlCache sync.Map

func validateURLWithCache(rawURL string, protocol string) error {
	if _, ok := urlCache.Load(rawURL); ok {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	urlCache.Store(rawURL, parsed)
	return nil
}

func bindEnvironment(v *viper.Viper) {
	v.SetEnvPrefix("FAIRLAUNCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Ключи без значения по умолчанию viper не видит при Unmarshal без явной привязки.
	for _, key := range []string{
		"rpc_url", "websocket_url", "private_key", "pinata_jwt",
		"pinata_gateway", "postgres_url", "debug_logging", "log_file",
	} {
		_ = v.BindEnv(key)
	}
}

// loadEnvironmentOverrides поддерживает переменные без префикса, которые
// исторически лежат в .env платформы.
func loadEnvironmentOverrides(cfg *Config) {
	if key := os.Getenv("PRIVATE_KEY"); key != "" && cfg.PrivateKey == "" {
		cfg.PrivateKey = key
	}
	if jwt := os.Getenv("PINATA_SECRET_API_KEY"); jwt != "" && cfg.PinataJWT == "" {
		cfg.PinataJWT = jwt
	}
	if gw := os.Getenv("PINATA_GATEWAY_URL"); gw != "" && cfg.PinataGateway == "" {
		cfg.PinataGateway = gw
	}
	if rpc := os.Getenv("PUBLIC_SOLANA_RPC"); rpc != "" && cfg.RPCURL == "" {
		cfg.RPCURL = rpc
	}

	if relays := os.Getenv("FAIRLAUNCH_RELAY_ENDPOINTS"); relays != "" {
		var clean []string
		for _, r := range strings.Split(relays, ",") {
			if r = strings.TrimSpace(r); r != "" {
				clean = append(clean, r)
			}
		}
		if len(clean) > 0 {
			cfg.RelayEndpoints = clean
		}
	}
}
