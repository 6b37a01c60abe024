package services

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"launchpad-backend/internal/clients"
)

// PriceSource fetches the native asset ticker
type PriceSource interface {
	FetchTicker(ctx context.Context) (*clients.NativePrice, error)
}

// PriceChangeListener interface for receiving price updates
type PriceChangeListener interface {
	OnPriceChange(price *clients.NativePrice)
}

// PriceUpdateService polls the native USD price and notifies listeners
type PriceUpdateService struct {
	task *PeriodicTask[*clients.NativePrice]
}

// NewPriceUpdateService creates a new price update service. A nil source
// yields a service that never has a price.
func NewPriceUpdateService(source PriceSource, opts TaskOptions) *PriceUpdateService {
	if source == nil {
		return &PriceUpdateService{}
	}
	if opts.Name == "" {
		opts.Name = "PriceFeed"
	}
	return &PriceUpdateService{
		task: NewPeriodicTask(opts, source.FetchTicker),
	}
}

// Start begins the price update loop
func (s *PriceUpdateService) Start(ctx context.Context) {
	if s.task == nil {
		logrus.Warn("⚠️ [PriceFeed] Price feed disabled, market cap will show placeholders")
		return
	}
	s.task.OnUpdate(func(p *clients.NativePrice) {
		logrus.Debugf("📈 [PriceFeed] %s = %s (24h: %s%%)", p.InstID, p.Price, p.Change24h)
	})
	s.task.Start(ctx)
}

// Stop stops the price update loop
func (s *PriceUpdateService) Stop() {
	if s.task != nil {
		s.task.Shutdown()
	}
}

// RegisterListener registers a listener for price changes
func (s *PriceUpdateService) RegisterListener(listener PriceChangeListener) {
	if s.task == nil {
		return
	}
	s.task.OnUpdate(func(p *clients.NativePrice) {
		defer func() {
			if r := recover(); r != nil {
				logrus.Errorf("⚠️ Price listener panic: %v", r)
			}
		}()
		listener.OnPriceChange(p)
	})
}

// Latest returns the last fetched ticker, nil when none yet
func (s *PriceUpdateService) Latest() *clients.NativePrice {
	if s.task == nil {
		return nil
	}
	p, ok := s.task.Snapshot()
	if !ok {
		return nil
	}
	return p
}

// USD is the native price for market cap, invalid when unknown
func (s *PriceUpdateService) USD() decimal.NullDecimal {
	p := s.Latest()
	if p == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(p.Price)
}

// RunOnce fetches synchronously
func (s *PriceUpdateService) RunOnce(ctx context.Context) error {
	if s.task == nil {
		return nil
	}
	return s.task.RunOnce(ctx)
}

// State of the underlying task, paused when disabled
func (s *PriceUpdateService) State() TaskState {
	if s.task == nil {
		return TaskPaused
	}
	return s.task.State()
}
