package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"launchpad-backend/internal/clients"
	"launchpad-backend/internal/config"
	"launchpad-backend/internal/db"
	"launchpad-backend/internal/handlers"
	"launchpad-backend/internal/repository"
	"launchpad-backend/internal/router"
	"launchpad-backend/internal/services"
	"launchpad-backend/internal/utils"
)

// ServiceContainer owns every long-lived dependency of the server
type ServiceContainer struct {
	Config *config.Config

	// Infrastructure
	DB         *gorm.DB
	RPC        *ethclient.Client
	Multicall  *clients.MulticallClient
	NATSClient *clients.NATSClient
	Subgraph   *clients.SubgraphClient
	Publisher  services.EventPublisher

	// Repositories
	TradeRepo        repository.TradeRepository
	CreatedTokenRepo repository.CreatedTokenRepository

	// Token pipeline
	DirectoryService *services.TokenDirectoryService
	StateService     *services.TokenStateService
	MetadataService  *services.MetadataService
	PriceService     *services.PriceUpdateService
	TokenFeed        *services.TokenFeedService

	// Trading and writes
	TxService       *services.BlockchainTransactionService
	BalanceService  *services.BalanceService
	TradeService    *services.TradeService
	SessionManager  *services.TradeSessionManager
	CreationService *services.TokenCreationService
	StakingService  *services.StakingService

	// Push
	WebSocketPushService *services.WebSocketPushService

	TokenIssuer *handlers.TokenIssuer
}

// Global service container instance
var Container *ServiceContainer
var containerOnce sync.Once

// InitializeContainer builds the global container once
func InitializeContainer(ctx context.Context, cfg *config.Config) (*ServiceContainer, error) {
	var initErr error
	containerOnce.Do(func() {
		Container, initErr = NewServiceContainer(ctx, cfg)
	})
	return Container, initErr
}

// NewServiceContainer dials the chain and wires every service. Persistence, NATS and
// the subgraph are optional. An unreachable node leaves the pollers paused.
func NewServiceContainer(ctx context.Context, cfg *config.Config) (*ServiceContainer, error) {
	logrus.Info("🚀 Initializing Service Container...")

	c := &ServiceContainer{Config: cfg}

	if err := c.initInfrastructure(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize infrastructure: %w", err)
	}
	c.initRepositories()
	if err := c.initPipeline(); err != nil {
		return nil, fmt.Errorf("failed to initialize token pipeline: %w", err)
	}
	if err := c.initTrading(); err != nil {
		return nil, fmt.Errorf("failed to initialize trading services: %w", err)
	}
	c.initAuth()

	logrus.Info("✅ Service Container initialized successfully")
	return c, nil
}

func (c *ServiceContainer) initInfrastructure(ctx context.Context) error {
	cfg := c.Config

	gdb, err := db.InitDB(cfg.Database)
	if err != nil {
		return err
	}
	c.DB = gdb

	dialCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	conn, err := clients.DialRPC(dialCtx, cfg.Network.RPCEndpoints, cfg.Network.ChainID)
	if err != nil {
		return err
	}
	rpc := conn.Client
	c.RPC = rpc
	if conn.Verified {
		logrus.Infof("✅ [ServiceContainer] Chain %s (%d) via %s", cfg.Network.Name, cfg.Network.ChainID, conn.Endpoint)
	} else {
		logrus.Warnf("⚠️ [ServiceContainer] Chain %s unreachable via %s, views stay stale until it answers", cfg.Network.Name, conn.Endpoint)
	}

	addrs := cfg.Contracts.Addresses()
	c.Multicall = clients.NewMulticallClient(rpc, addrs.Multicall3)

	c.WebSocketPushService = services.NewWebSocketPushService(cfg.CORS.AllowedOrigins)
	publishers := []services.EventPublisher{c.WebSocketPushService}
	if cfg.NATS.URL != "" {
		nc, err := clients.NewNATSClient(cfg.NATS)
		if err != nil {
			logrus.Warnf("⚠️ [ServiceContainer] NATS unavailable, events go to websocket only: %v", err)
		} else {
			c.NATSClient = nc
			publishers = append(publishers, nc)
		}
	} else {
		logrus.Info("ℹ️ [ServiceContainer] NATS disabled (no url configured)")
	}
	c.Publisher = services.NewFanoutPublisher(publishers...)

	c.Subgraph = clients.NewSubgraphClient(cfg.Subgraph.URL, cfg.Subgraph.APIKey, config.Seconds(cfg.Subgraph.Timeout))
	return nil
}

func (c *ServiceContainer) initRepositories() {
	if c.DB != nil {
		c.TradeRepo = repository.NewTradeRepository(c.DB)
		c.CreatedTokenRepo = repository.NewCreatedTokenRepository(c.DB)
		return
	}
	c.TradeRepo = repository.NewMemoryTradeRepository()
	c.CreatedTokenRepo = repository.NewMemoryCreatedTokenRepository()
}

// taskOptions polling options shared by the periodic tasks
func (c *ServiceContainer) taskOptions(name string, intervalMs int) services.TaskOptions {
	p := c.Config.Polling
	opts := services.TaskOptions{
		Name:        name,
		Interval:    config.Millis(intervalMs),
		MaxRetries:  p.MaxRetries,
		BackoffBase: config.Millis(p.BackoffBase),
		BackoffMax:  config.Millis(p.BackoffMax),
	}
	if p.PauseWhenOffline {
		opts.Probe = func(ctx context.Context) error {
			_, err := c.RPC.ChainID(ctx)
			return err
		}
	}
	return opts
}

func (c *ServiceContainer) initPipeline() error {
	cfg := c.Config
	addrs := cfg.Contracts.Addresses()

	supply, err := decimal.NewFromString(cfg.Trading.SupplyConstant)
	if err != nil {
		return fmt.Errorf("invalid trading.supplyConstant %q: %w", cfg.Trading.SupplyConstant, err)
	}

	c.DirectoryService = services.NewTokenDirectoryService(c.Multicall, addrs.TokenManager)
	c.StateService = services.NewTokenStateService(c.Multicall, addrs.TokenManager)
	c.MetadataService = services.NewMetadataService(
		clients.NewMetadataClient(cfg.Metadata.Gateway, config.Seconds(cfg.Metadata.Timeout)),
		services.NewMetadataCache(),
		cfg.Metadata.BatchSize,
		config.Millis(cfg.Metadata.BatchDelay),
	)

	var source services.PriceSource
	if cfg.PriceFeed.Enabled {
		source = clients.NewPriceFeedClient(cfg.PriceFeed.URL, cfg.PriceFeed.InstID, config.Seconds(cfg.PriceFeed.Timeout))
	}
	// the ticker is off-chain, so it keeps polling while the RPC is down
	priceOpts := c.taskOptions("PriceFeed", cfg.Polling.PriceInterval)
	priceOpts.Probe = nil
	c.PriceService = services.NewPriceUpdateService(source, priceOpts)

	c.TokenFeed = services.NewTokenFeedService(
		c.DirectoryService,
		c.StateService,
		c.MetadataService,
		c.PriceService,
		supply,
		c.Publisher,
		c.taskOptions("TokenFeed", cfg.Polling.TokenStateInterval),
	)

	c.PriceService.RegisterListener(c.TokenFeed)
	c.PriceService.RegisterListener(c.WebSocketPushService)
	c.TokenFeed.OnUpdate(c.WebSocketPushService.BroadcastTokens)
	return nil
}

func (c *ServiceContainer) initTrading() error {
	cfg := c.Config
	addrs := cfg.Contracts.Addresses()

	var signer services.SigningStrategy
	if cfg.Network.PrivateKey != "" {
		s, err := services.NewPrivateKeySigner(cfg.Network.PrivateKey)
		if err != nil {
			return err
		}
		signer = s
		logrus.Infof("🔑 [ServiceContainer] Operator wallet %s", utils.ShortAddress(s.Address().Hex()))
	} else {
		logrus.Warn("⚠️ [ServiceContainer] No operator key configured, writes will fail with wallet not connected")
	}

	var fallbackGasPrice *big.Int
	if cfg.Network.GasPrice != "" {
		v, ok := new(big.Int).SetString(cfg.Network.GasPrice, 10)
		if !ok {
			return fmt.Errorf("invalid network.gasPrice %q", cfg.Network.GasPrice)
		}
		fallbackGasPrice = v
	}

	c.TxService = services.NewBlockchainTransactionService(c.RPC, signer, big.NewInt(cfg.Network.ChainID), services.TxOptions{
		GasLimitBuffer:   cfg.Trading.GasLimitBuffer,
		GasPriceBuffer:   cfg.Trading.GasPriceBuffer,
		FallbackGasLimit: cfg.Network.GasLimit,
		FallbackGasPrice: fallbackGasPrice,
		ConfirmTimeout:   config.Seconds(cfg.Network.ConfirmationTimeout),
	})

	c.BalanceService = services.NewBalanceService(c.Multicall, addrs.Multicall3, config.Millis(cfg.Polling.BalanceInterval))

	maxSlippage, err := decimal.NewFromString(cfg.Trading.MaxSlippage)
	if err != nil {
		return fmt.Errorf("invalid trading.maxSlippage %q: %w", cfg.Trading.MaxSlippage, err)
	}

	c.TradeService = services.NewTradeService(
		c.StateService,
		services.NewInternalCurveExecutor(c.Multicall, addrs.TokenManager),
		services.NewExternalSwapExecutor(c.Multicall, addrs.Router, addrs.TokenManager, addrs.WETH,
			time.Duration(cfg.Trading.DeadlineMinutes)*time.Minute),
		c.Multicall,
		c.TxService,
		c.BalanceService,
		c.TradeRepo,
		c.Publisher,
		maxSlippage,
	)

	c.SessionManager, err = services.NewTradeSessionManager(c.TradeService, c.BalanceService, services.Presets{
		Buy:             cfg.Trading.BuyPresets,
		Sell:            cfg.Trading.SellPresets,
		Slippage:        cfg.Trading.SlippagePresets,
		DefaultSlippage: cfg.Trading.DefaultSlippage,
		MaxSlippage:     cfg.Trading.MaxSlippage,
	}, config.Millis(cfg.Polling.QuoteInterval))
	if err != nil {
		return err
	}

	c.CreationService = services.NewTokenCreationService(
		c.Multicall, addrs.TokenManager, c.TxService, c.CreatedTokenRepo, c.Publisher, c.TokenFeed,
	)

	c.StakingService, err = services.NewStakingService(
		c.Multicall, addrs.Staking, c.TxService, c.BalanceService, c.Publisher, cfg.Staking.MinStake,
	)
	return err
}

func (c *ServiceContainer) initAuth() {
	secret := c.Config.Auth.JWTSecret
	if secret == "" {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			panic(fmt.Sprintf("crypto/rand failed: %v", err))
		}
		secret = hex.EncodeToString(buf)
		logrus.Warn("⚠️ [ServiceContainer] No JWT secret configured, using a random one; tokens will not survive a restart")
	}
	c.TokenIssuer = handlers.NewTokenIssuer(secret, time.Duration(c.Config.Auth.TokenTTLHours)*time.Hour)
}

// Handlers builds the HTTP handlers over the container's services
func (c *ServiceContainer) Handlers() router.Handlers {
	return router.Handlers{
		Health:    handlers.NewHealthHandler(c.TokenFeed.Task(), c.PriceService, c.WebSocketPushService.GetActiveConnections),
		Tokens:    handlers.NewTokenHandler(c.TokenFeed, c.BalanceService, c.Subgraph, c.TradeService, c.CreationService),
		Trade:     handlers.NewTradeHandler(c.TradeService, c.SessionManager),
		Staking:   handlers.NewStakingHandler(c.StakingService),
		Price:     handlers.NewPriceHandler(c.PriceService),
		Admin:     handlers.NewAdminAuthHandler(c.Config.Auth, c.TokenIssuer),
		WebSocket: handlers.NewWebSocketHandler(c.WebSocketPushService),
		Auth:      c.TokenIssuer,
	}
}

// Start launches the background pipelines
func (c *ServiceContainer) Start(ctx context.Context) {
	c.PriceService.Start(ctx)
	c.TokenFeed.Start(ctx)
	logrus.Info("✅ [ServiceContainer] Background pipelines started")
}

// Shutdown stops background work and releases connections
func (c *ServiceContainer) Shutdown() {
	logrus.Info("🛑 [ServiceContainer] Shutting down...")
	c.SessionManager.Shutdown()
	c.TokenFeed.Stop()
	c.PriceService.Stop()
	c.WebSocketPushService.Close()
	if c.NATSClient != nil {
		c.NATSClient.Close()
	}
	if c.RPC != nil {
		c.RPC.Close()
	}
	db.Close(c.DB)
	logrus.Info("✅ [ServiceContainer] Shutdown complete")
}
