package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ============================================
	// Multicall
	// ============================================
	MulticallBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchpad_multicall_batches_total",
			Help: "Total number of aggregate3 batches issued",
		},
		[]string{"mode", "result"},
	)

	MulticallSubcallFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "launchpad_multicall_subcall_failures_total",
		Help: "Sub-calls that returned success=false inside an otherwise successful batch",
	})

	MulticallBatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "launchpad_multicall_batch_size",
		Help:    "Number of sub-calls per aggregate3 batch",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	MulticallDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "launchpad_multicall_duration_seconds",
		Help:    "aggregate3 round trip duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// ============================================
	// Polling pipeline
	// ============================================
	PollCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchpad_poll_cycles_total",
			Help: "Poll cycles by task and outcome (applied, failed, stale, paused)",
		},
		[]string{"task", "result"},
	)

	PollRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchpad_poll_retries_total",
			Help: "Retries issued after a failed poll attempt",
		},
		[]string{"task"},
	)

	PollLastSuccess = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "launchpad_poll_last_success_timestamp_seconds",
			Help: "Unix time of the last applied poll result",
		},
		[]string{"task"},
	)

	TokensTracked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "launchpad_tokens_tracked",
		Help: "Tokens in the current snapshot",
	})

	// ============================================
	// Metadata
	// ============================================
	MetadataFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchpad_metadata_fetches_total",
			Help: "Off-chain metadata fetches by result (success, fallback)",
		},
		[]string{"result"},
	)

	MetadataCacheSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "launchpad_metadata_cache_size",
		Help: "Addresses marked resolved in the metadata cache",
	})

	// ============================================
	// Price feed
	// ============================================
	NativePriceUSD = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "launchpad_native_price_usd",
		Help: "Last native asset USD price from the ticker feed",
	})

	PriceFeedRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchpad_price_feed_requests_total",
			Help: "Ticker requests by result",
		},
		[]string{"result"},
	)

	// ============================================
	// Trades and transactions
	// ============================================
	TradesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchpad_trades_total",
			Help: "Trades by venue, direction and result",
		},
		[]string{"venue", "direction", "result"},
	)

	TradeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "launchpad_trade_duration_seconds",
			Help:    "Submit-to-settle duration in seconds",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"venue"},
	)

	TransactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchpad_transactions_total",
			Help: "Signed transactions by kind and result",
		},
		[]string{"kind", "result"},
	)

	GasEstimateFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "launchpad_gas_estimate_fallbacks_total",
		Help: "Transactions sent with the fallback gas limit after estimation failed",
	})

	// ============================================
	// NATS / WebSocket / HTTP
	// ============================================
	NATSConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "launchpad_nats_connection_status",
		Help: "NATS connection status (1=connected, 0=disconnected)",
	})

	NATSMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchpad_nats_messages_published_total",
			Help: "NATS publishes by subject and result",
		},
		[]string{"subject", "result"},
	)

	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "launchpad_websocket_connections",
		Help: "Open WebSocket connections",
	})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launchpad_http_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "launchpad_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)
