package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config application configuration structure
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	NATS      NATSConfig      `yaml:"nats"`
	Network   NetworkConfig   `yaml:"network"`
	Contracts ContractsConfig `yaml:"contracts"`
	Polling   PollingConfig   `yaml:"polling"`
	Metadata  MetadataConfig  `yaml:"metadata"`
	PriceFeed PriceFeedConfig `yaml:"priceFeed"`
	Subgraph  SubgraphConfig  `yaml:"subgraph"`
	Trading   TradingConfig   `yaml:"trading"`
	Staking   StakingConfig   `yaml:"staking"`
	Auth      AuthConfig      `yaml:"auth"`
	CORS      CORSConfig      `yaml:"cors"`
	Admin     AdminConfig     `yaml:"admin"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig server configuration
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig Database configuration. An empty DSN disables persistence.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// NATSConfig NATS event publisher configuration. An empty URL disables publishing.
type NATSConfig struct {
	URL           string `yaml:"url"`
	Timeout       int    `yaml:"timeout"`
	ReconnectWait int    `yaml:"reconnectWait"`
	MaxReconnects int    `yaml:"maxReconnects"`
	SubjectPrefix string `yaml:"subjectPrefix"`
}

// NetworkConfig chain connection and signer configuration
type NetworkConfig struct {
	ChainID      int64    `yaml:"chainId"`
	Name         string   `yaml:"name"`
	NativeSymbol string   `yaml:"nativeSymbol"`
	RPCEndpoints []string `yaml:"rpcEndpoints"`
	// Operator key used for trades, token creation and staking (hex, with or without 0x)
	PrivateKey string `yaml:"privateKey"`
	// Gas price fallback in wei, used only when the node cannot suggest one
	GasPrice string `yaml:"gasPrice"`
	// Gas limit used when estimation fails
	GasLimit            uint64 `yaml:"gasLimit"`
	ConfirmationTimeout int    `yaml:"confirmationTimeout"` // seconds
}

// PollingConfig refresh cadences, all in milliseconds
type PollingConfig struct {
	TokenStateInterval int  `yaml:"tokenStateInterval"`
	PriceInterval      int  `yaml:"priceInterval"`
	BalanceInterval    int  `yaml:"balanceInterval"`
	QuoteInterval      int  `yaml:"quoteInterval"`
	MaxRetries         int  `yaml:"maxRetries"`
	BackoffBase        int  `yaml:"backoffBase"`
	BackoffMax         int  `yaml:"backoffMax"`
	PauseWhenOffline   bool `yaml:"pauseWhenOffline"`
}

// MetadataConfig off-chain metadata fetching
type MetadataConfig struct {
	Gateway    string `yaml:"gateway"`
	BatchSize  int    `yaml:"batchSize"`
	BatchDelay int    `yaml:"batchDelay"` // milliseconds
	Timeout    int    `yaml:"timeout"`    // seconds
}

// PriceFeedConfig native asset USD ticker
type PriceFeedConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	InstID  string `yaml:"instId"`
	Timeout int    `yaml:"timeout"` // seconds
}

// SubgraphConfig GraphQL history endpoint. An empty URL disables it.
type SubgraphConfig struct {
	URL     string `yaml:"url"`
	APIKey  string `yaml:"apiKey"`
	Timeout int    `yaml:"timeout"` // seconds
}

// TradingConfig trade dialog defaults
type TradingConfig struct {
	DefaultSlippage string   `yaml:"defaultSlippage"` // percent
	MaxSlippage     string   `yaml:"maxSlippage"`     // percent
	SlippagePresets []string `yaml:"slippagePresets"`
	BuyPresets      []string `yaml:"buyPresets"`
	SellPresets     []int    `yaml:"sellPresets"`
	DeadlineMinutes int      `yaml:"deadlineMinutes"`
	GasLimitBuffer  int64    `yaml:"gasLimitBuffer"` // percent
	GasPriceBuffer  int64    `yaml:"gasPriceBuffer"` // percent
	SupplyConstant  string   `yaml:"supplyConstant"`
}

// StakingConfig airdrop staking rules enforced before sending a deposit
type StakingConfig struct {
	MinStake string `yaml:"minStake"`
}

// AuthConfig operator authentication for write endpoints
type AuthConfig struct {
	JWTSecret            string `yaml:"jwtSecret"`
	TokenTTLHours        int    `yaml:"tokenTTLHours"`
	OperatorUsername     string `yaml:"operatorUsername"`
	OperatorPasswordHash string `yaml:"operatorPasswordHash"` // bcrypt
	TOTPSecret           string `yaml:"totpSecret"`
}

// CORSConfig CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowedOrigins"`
	AllowCredentials bool     `yaml:"allowCredentials"`
	MaxAge           int      `yaml:"maxAge"`
}

// AdminConfig access control for /metrics
type AdminConfig struct {
	AllowedIPs []string `yaml:"allowedIPs"`
}

// LoggingConfig logrus + rotating file output
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // text | json
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	Compress   bool   `yaml:"compress"`
}

var AppConfig *Config

// DefaultConfig returns the Plasma mainnet defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
		NATS: NATSConfig{
			Timeout:       10,
			ReconnectWait: 2,
			MaxReconnects: 10,
			SubjectPrefix: "launchpad",
		},
		Network: NetworkConfig{
			ChainID:             9745,
			Name:                "plasma",
			NativeSymbol:        "XPL",
			RPCEndpoints:        []string{"https://rpc.plasma.to"},
			GasLimit:            600000,
			ConfirmationTimeout: 120,
		},
		Contracts: DefaultContracts(),
		Polling: PollingConfig{
			TokenStateInterval: 3000,
			PriceInterval:      10000,
			BalanceInterval:    10000,
			QuoteInterval:      3000,
			MaxRetries:         3,
			BackoffBase:        1000,
			BackoffMax:         30000,
			PauseWhenOffline:   true,
		},
		Metadata: MetadataConfig{
			Gateway:    "https://ipfs.io/ipfs",
			BatchSize:  10,
			BatchDelay: 100,
			Timeout:    10,
		},
		PriceFeed: PriceFeedConfig{
			Enabled: true,
			URL:     "https://www.okx.com/api/v5/market/ticker",
			InstID:  "XPL-USDT",
			Timeout: 10,
		},
		Subgraph: SubgraphConfig{Timeout: 10},
		Trading: TradingConfig{
			DefaultSlippage: "1",
			MaxSlippage:     "50",
			SlippagePresets: []string{"1", "3", "5"},
			BuyPresets:      []string{"50", "100", "300", "500"},
			SellPresets:     []int{25, 50, 75, 100},
			DeadlineMinutes: 20,
			GasLimitBuffer:  20,
			GasPriceBuffer:  5,
			SupplyConstant:  "1300000000",
		},
		Staking: StakingConfig{MinStake: "2"},
		Auth: AuthConfig{
			TokenTTLHours:    24,
			OperatorUsername: "operator",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

// LoadConfig Load configuration file
func LoadConfig(configPath string) error {
	cfg, err := Load(configPath)
	if err != nil {
		return err
	}
	AppConfig = cfg
	return nil
}

// Load reads the yaml file on top of DefaultConfig, applies env overrides and validates.
// A missing default file is not an error; an explicitly named one is.
func Load(configPath string) (*Config, error) {
	explicit := configPath != ""
	if configPath == "" {
		configPath = "config.yaml"
		if _, err := os.Stat("config.local.yaml"); err == nil {
			configPath = "config.local.yaml"
			logrus.Infof("🔧 Using local configuration file: %s", configPath)
		}
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		logrus.Infof("✅ [%s] Loading configuration from %s", time.Now().Format("2006-01-02 15:04:05"), configPath)
	case os.IsNotExist(err) && !explicit:
		logrus.Warnf("⚠️ [Config] %s not found, using built-in defaults", configPath)
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	overrideFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values the pipeline cannot run without
func (c *Config) Validate() error {
	if len(c.Network.RPCEndpoints) == 0 {
		return fmt.Errorf("network.rpcEndpoints must not be empty")
	}
	if c.Network.ChainID <= 0 {
		return fmt.Errorf("network.chainId must be positive")
	}
	if err := c.Contracts.Validate(); err != nil {
		return err
	}
	if c.Polling.TokenStateInterval <= 0 || c.Polling.PriceInterval <= 0 ||
		c.Polling.BalanceInterval <= 0 || c.Polling.QuoteInterval <= 0 {
		return fmt.Errorf("polling intervals must be positive")
	}
	if c.Polling.MaxRetries < 0 {
		return fmt.Errorf("polling.maxRetries must not be negative")
	}
	if c.Metadata.BatchSize <= 0 {
		return fmt.Errorf("metadata.batchSize must be positive")
	}
	if c.Trading.DeadlineMinutes <= 0 {
		return fmt.Errorf("trading.deadlineMinutes must be positive")
	}
	return nil
}

// overrideFromEnv Override configuration from environment
func overrideFromEnv(config *Config) {
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		config.Database.DSN = dsn
	}

	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		config.NATS.URL = natsURL
	}
	if natsTimeout := os.Getenv("NATS_TIMEOUT"); natsTimeout != "" {
		if t, err := strconv.Atoi(natsTimeout); err == nil {
			config.NATS.Timeout = t
		}
	}

	if rpcEndpoints := os.Getenv("RPC_ENDPOINTS"); rpcEndpoints != "" {
		config.Network.RPCEndpoints = splitAndTrim(rpcEndpoints)
	}
	if chainID := os.Getenv("CHAIN_ID"); chainID != "" {
		if id, err := strconv.ParseInt(chainID, 10, 64); err == nil {
			config.Network.ChainID = id
		}
	}
	if privateKey := os.Getenv("PRIVATE_KEY"); privateKey != "" {
		config.Network.PrivateKey = privateKey
	}
	if gasPrice := os.Getenv("GAS_PRICE"); gasPrice != "" {
		config.Network.GasPrice = gasPrice
	}
	if gasLimit := os.Getenv("GAS_LIMIT"); gasLimit != "" {
		if limit, err := strconv.ParseUint(gasLimit, 10, 64); err == nil {
			config.Network.GasLimit = limit
		}
	}

	if v := os.Getenv("TOKEN_MANAGER_ADDRESS"); v != "" {
		config.Contracts.TokenManager = v
	}
	if v := os.Getenv("ROUTER_ADDRESS"); v != "" {
		config.Contracts.Router = v
	}
	if v := os.Getenv("WETH_ADDRESS"); v != "" {
		config.Contracts.WETH = v
	}
	if v := os.Getenv("STAKING_ADDRESS"); v != "" {
		config.Contracts.Staking = v
	}
	if v := os.Getenv("MULTICALL3_ADDRESS"); v != "" {
		config.Contracts.Multicall3 = v
	}

	if v := os.Getenv("POLL_PAUSE_WHEN_OFFLINE"); v != "" {
		config.Polling.PauseWhenOffline = v == "true"
	}
	if v := os.Getenv("IPFS_GATEWAY"); v != "" {
		config.Metadata.Gateway = v
	}
	if v := os.Getenv("SUBGRAPH_URL"); v != "" {
		config.Subgraph.URL = v
	}
	if v := os.Getenv("SUBGRAPH_API_KEY"); v != "" {
		config.Subgraph.APIKey = v
	}

	if v := os.Getenv("JWT_SECRET"); v != "" {
		config.Auth.JWTSecret = v
	}
	if v := os.Getenv("OPERATOR_PASSWORD_HASH"); v != "" {
		config.Auth.OperatorPasswordHash = v
	}
	if v := os.Getenv("OPERATOR_TOTP_SECRET"); v != "" {
		config.Auth.TOTPSecret = v
	}

	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		config.CORS.AllowedOrigins = splitAndTrim(corsOrigins)
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		config.Logging.File = v
	}
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Millis converts a millisecond config value to a duration
func Millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// Seconds converts a second config value to a duration
func Seconds(s int) time.Duration {
	return time.Duration(s) * time.Second
}
