package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"launchpad-backend/internal/clients"
	"launchpad-backend/internal/metrics"
	"launchpad-backend/internal/models"
	"launchpad-backend/internal/utils"
)

// FeedTab list view selector
type FeedTab string

const (
	TabAll      FeedTab = "all"
	TabNewly    FeedTab = "newly"    // not graduated, newest first
	TabSoaring  FeedTab = "soaring"  // not graduated, highest progress first
	TabLaunched FeedTab = "launched" // launched, highest progress first
)

// ParseTab accepts the tab names and their numeric aliases 0, 1, 2
func ParseTab(s string) (FeedTab, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return TabAll, nil
	case "newly", "new", "0":
		return TabNewly, nil
	case "soaring", "1":
		return TabSoaring, nil
	case "launched", "2":
		return TabLaunched, nil
	default:
		return "", fmt.Errorf("unknown tab %q", s)
	}
}

// EventPublisher publishes domain events; nil-safe wrappers live in the container
type EventPublisher interface {
	Publish(subject string, payload interface{}) error
}

// NativePriceProvider supplies the native USD price used for market cap
type NativePriceProvider interface {
	USD() decimal.NullDecimal
}

// TokensRefreshedEvent published when the directory gains tokens
type TokensRefreshedEvent struct {
	Count     int       `json:"count"`
	NewTokens []string  `json:"newTokens"`
	At        time.Time `json:"at"`
}

// TokenFeedService owns the token snapshot: directory, state, metadata and
// derived values, refreshed as one polling cycle.
type TokenFeedService struct {
	directory *TokenDirectoryService
	state     *TokenStateService
	metadata  *MetadataService
	price     NativePriceProvider
	supply    decimal.Decimal
	publisher EventPublisher

	task   *PeriodicTask[[]TokenState]
	states atomic.Pointer[[]TokenState]
	views  atomic.Pointer[[]models.TokenView]
	known  map[common.Address]struct{}

	// serializes snapshot writers: poll cycles and price updates
	applyMu sync.Mutex

	mu        sync.Mutex
	listeners []func([]models.TokenView)
}

// NewTokenFeedService wires the pipeline; publisher may be nil
func NewTokenFeedService(
	directory *TokenDirectoryService,
	state *TokenStateService,
	metadata *MetadataService,
	price NativePriceProvider,
	supply decimal.Decimal,
	publisher EventPublisher,
	opts TaskOptions,
) *TokenFeedService {
	if opts.Name == "" {
		opts.Name = "TokenFeed"
	}
	s := &TokenFeedService{
		directory: directory,
		state:     state,
		metadata:  metadata,
		price:     price,
		supply:    supply,
		publisher: publisher,
		known:     make(map[common.Address]struct{}),
	}
	s.task = NewPeriodicTask(opts, s.fetch)
	s.task.OnUpdate(s.apply)
	return s
}

// Task exposes the polling handle
func (s *TokenFeedService) Task() *PeriodicTask[[]TokenState] {
	return s.task
}

func (s *TokenFeedService) Start(ctx context.Context) {
	s.task.Start(ctx)
}

func (s *TokenFeedService) Stop() {
	s.task.Shutdown()
}

// Refresh requests an immediate cycle
func (s *TokenFeedService) Refresh() {
	s.task.Refresh()
}

// RunOnce runs one cycle synchronously
func (s *TokenFeedService) RunOnce(ctx context.Context) error {
	return s.task.RunOnce(ctx)
}

// OnUpdate registers fn to receive every new view snapshot
func (s *TokenFeedService) OnUpdate(fn func([]models.TokenView)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *TokenFeedService) fetch(ctx context.Context) ([]TokenState, error) {
	addrs, err := s.directory.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	states, err := s.state.Aggregate(ctx, addrs)
	if err != nil {
		return nil, err
	}
	if err := s.metadata.Enrich(ctx, states); err != nil {
		return nil, fmt.Errorf("enrich metadata: %w", err)
	}
	return states, nil
}

func (s *TokenFeedService) apply(states []TokenState) {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()
	s.states.Store(&states)
	s.rebuild()
	s.announceNewTokens(states)
}

// OnPriceChange recomputes market caps with the new price
func (s *TokenFeedService) OnPriceChange(*clients.NativePrice) {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()
	s.rebuild()
}

func (s *TokenFeedService) rebuild() {
	statesPtr := s.states.Load()
	if statesPtr == nil {
		return
	}
	views := s.buildViews(*statesPtr)
	s.views.Store(&views)
	metrics.TokensTracked.Set(float64(len(views)))

	s.mu.Lock()
	listeners := append([]func([]models.TokenView){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(views)
	}
}

func (s *TokenFeedService) buildViews(states []TokenState) []models.TokenView {
	usd := decimal.NullDecimal{}
	if s.price != nil {
		usd = s.price.USD()
	}
	views := make([]models.TokenView, len(states))
	for i, st := range states {
		views[i] = s.view(st, usd)
		views[i].Index = i
	}
	return views
}

func (s *TokenFeedService) view(st TokenState, usd decimal.NullDecimal) models.TokenView {
	v := models.TokenView{
		Address:         st.Address.Hex(),
		URI:             st.URI,
		Symbol:          st.Symbol,
		Info:            st.Info,
		Progress:        st.Progress.Text,
		ProgressPercent: st.Progress.Percent,
		Launched:        st.Launched(),
		Metadata:        s.metadata.MetadataFor(st.Address),
		MarketCap:       utils.Placeholder,
	}
	if st.Info != nil {
		v.MarketCap = utils.CalculateMarketCap(st.Info.LastPrice, s.supply, usd)
	}
	return v
}

func (s *TokenFeedService) announceNewTokens(states []TokenState) {
	var fresh []string
	for _, st := range states {
		if _, ok := s.known[st.Address]; !ok {
			s.known[st.Address] = struct{}{}
			fresh = append(fresh, st.Address.Hex())
		}
	}
	if len(fresh) == 0 {
		return
	}

	logrus.Infof("🆕 [TokenFeed] %d new tokens (total %d)", len(fresh), len(states))
	if s.publisher == nil {
		return
	}
	event := TokensRefreshedEvent{Count: len(states), NewTokens: fresh, At: time.Now()}
	if err := s.publisher.Publish(clients.SubjectTokensRefreshed, event); err != nil {
		logrus.Warnf("⚠️ [TokenFeed] Failed to publish refresh event: %v", err)
	}
}

// Views returns the current snapshot in creation order, nil before the first cycle
func (s *TokenFeedService) Views() []models.TokenView {
	p := s.views.Load()
	if p == nil {
		return nil
	}
	return *p
}

// List returns the views for tab, filtered by a case-insensitive query on
// address, symbol and name
func (s *TokenFeedService) List(tab FeedTab, query string) []models.TokenView {
	return SortForTab(FilterViews(s.Views(), query), tab)
}

// Search is List over all tokens with a mandatory query
func (s *TokenFeedService) Search(query string) []models.TokenView {
	if strings.TrimSpace(query) == "" {
		return []models.TokenView{}
	}
	return s.List(TabAll, query)
}

// Lookup finds addr in the snapshot
func (s *TokenFeedService) Lookup(addr common.Address) (models.TokenView, bool) {
	hex := addr.Hex()
	for _, v := range s.Views() {
		if v.Address == hex {
			return v, true
		}
	}
	return models.TokenView{}, false
}

// Detail returns the snapshot view of addr, reading the chain directly when it
// is not in the snapshot yet
func (s *TokenFeedService) Detail(ctx context.Context, addr common.Address) (models.TokenView, error) {
	if v, ok := s.Lookup(addr); ok {
		return v, nil
	}

	st, err := s.state.Read(ctx, addr)
	if err != nil {
		return models.TokenView{}, err
	}
	if st.Info == nil {
		return models.TokenView{}, ErrTokenNotFound
	}
	if err := s.metadata.Enrich(ctx, []TokenState{*st}); err != nil {
		return models.TokenView{}, err
	}

	usd := decimal.NullDecimal{}
	if s.price != nil {
		usd = s.price.USD()
	}
	v := s.view(*st, usd)
	v.Index = -1
	return v, nil
}

// FilterViews keeps views whose address, symbol or name contains query
func FilterViews(views []models.TokenView, query string) []models.TokenView {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return views
	}
	out := make([]models.TokenView, 0, len(views))
	for _, v := range views {
		if strings.Contains(strings.ToLower(v.Address), q) ||
			strings.Contains(strings.ToLower(v.Symbol), q) ||
			strings.Contains(strings.ToLower(v.Metadata.Name), q) {
			out = append(out, v)
		}
	}
	return out
}

// SortForTab applies the tab filter and ordering; the input is left untouched
func SortForTab(views []models.TokenView, tab FeedTab) []models.TokenView {
	out := make([]models.TokenView, 0, len(views))
	switch tab {
	case TabNewly:
		for i := len(views) - 1; i >= 0; i-- {
			if views[i].ProgressPercent < 100 {
				out = append(out, views[i])
			}
		}
	case TabSoaring:
		for _, v := range views {
			if v.ProgressPercent < 100 {
				out = append(out, v)
			}
		}
		sort.SliceStable(out, func(i, j int) bool { return out[i].ProgressPercent > out[j].ProgressPercent })
	case TabLaunched:
		for _, v := range views {
			if v.Launched {
				out = append(out, v)
			}
		}
		sort.SliceStable(out, func(i, j int) bool { return out[i].ProgressPercent > out[j].ProgressPercent })
	default:
		out = append(out, views...)
	}
	return out
}
