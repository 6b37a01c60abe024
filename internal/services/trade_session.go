package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"launchpad-backend/internal/models"
	"launchpad-backend/internal/utils"
)

// SessionState trade dialog state
type SessionState string

const (
	SessionIdle       SessionState = "idle"
	SessionQuoting    SessionState = "quoting"
	SessionReady      SessionState = "ready"
	SessionSubmitting SessionState = "submitting"
	SessionConfirming SessionState = "confirming"
	SessionSettled    SessionState = "settled"
)

// Busy reports whether a trade is in flight
func (s SessionState) Busy() bool {
	return s == SessionSubmitting || s == SessionConfirming
}

// Notification outcome message shown to the trader
type Notification struct {
	Kind    string    `json:"kind"` // success | error
	Message string    `json:"message"`
	TxHash  string    `json:"txHash,omitempty"`
	At      time.Time `json:"at"`
}

// TradeSession one open trade dialog
type TradeSession struct {
	ID           string                `json:"id"`
	Token        common.Address        `json:"token"`
	Direction    models.TradeDirection `json:"direction"`
	Amount       string                `json:"amount"`
	SlippageBps  int64                 `json:"slippageBps"`
	State        SessionState          `json:"state"`
	Quote        *Quote                `json:"quote,omitempty"`
	QuoteError   string                `json:"quoteError,omitempty"`
	Notification *Notification         `json:"notification,omitempty"`
	LastTradeID  string                `json:"lastTradeId,omitempty"`
	CreatedAt    time.Time             `json:"createdAt"`
	UpdatedAt    time.Time             `json:"updatedAt"`
}

// SessionInput fields left nil are unchanged. Amount, BuyPreset and SellPreset are exclusive.
type SessionInput struct {
	Direction  *models.TradeDirection `json:"direction"`
	Amount     *string                `json:"amount"`
	BuyPreset  *string                `json:"buyPreset"`
	SellPreset *int                   `json:"sellPreset"` // percent of token balance
	Slippage   *string                `json:"slippage"`   // percent
}

// Presets offered by the trade dialog
type Presets struct {
	Buy             []string `json:"buy"`
	Sell            []int    `json:"sell"`
	Slippage        []string `json:"slippage"`
	DefaultSlippage string   `json:"defaultSlippage"`
	MaxSlippage     string   `json:"maxSlippage"`
}

type sessionEntry struct {
	mu       sync.Mutex
	session  TradeSession
	// version bumps on every input change; a quote issued for an older version is dropped
	version  uint64
	cancel   context.CancelFunc
	// lastSeen is the last caller access; the refresh loop closes the session once it is idleTTL old
	lastSeen time.Time
}

func (e *sessionEntry) touch() {
	e.lastSeen = time.Now()
}

// sessionIdleIntervals quote intervals without a caller access before a session expires
const sessionIdleIntervals = 20

// TradeSessionManager owns open sessions and refreshes their quotes on a timer
type TradeSessionManager struct {
	trades   *TradeService
	balances *BalanceService
	presets  Presets
	interval time.Duration
	idleTTL  time.Duration

	maxSlippage     decimal.Decimal
	defaultSlippage int64

	mu       sync.RWMutex
	sessions map[string]*sessionEntry
	baseCtx  context.Context
	stop     context.CancelFunc
}

func NewTradeSessionManager(trades *TradeService, balances *BalanceService, presets Presets, interval time.Duration) (*TradeSessionManager, error) {
	maxSlippage, err := decimal.NewFromString(presets.MaxSlippage)
	if err != nil {
		return nil, fmt.Errorf("invalid max slippage %q: %w", presets.MaxSlippage, err)
	}
	def, err := utils.SlippageToBps(presets.DefaultSlippage, maxSlippage)
	if err != nil {
		return nil, fmt.Errorf("invalid default slippage: %w", err)
	}
	if interval <= 0 {
		interval = 3 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &TradeSessionManager{
		trades:          trades,
		balances:        balances,
		presets:         presets,
		interval:        interval,
		idleTTL:         sessionIdleIntervals * interval,
		maxSlippage:     maxSlippage,
		defaultSlippage: def,
		sessions:        make(map[string]*sessionEntry),
		baseCtx:         ctx,
		stop:            cancel,
	}, nil
}

// Presets returns the configured presets
func (m *TradeSessionManager) Presets() Presets {
	return m.presets
}

// Open starts a session on token in the idle state
func (m *TradeSessionManager) Open(token common.Address, direction models.TradeDirection) (TradeSession, error) {
	if direction != models.TradeDirectionBuy && direction != models.TradeDirectionSell {
		return TradeSession{}, fmt.Errorf("%w: direction %q", ErrInvalidAmount, direction)
	}
	if token == (common.Address{}) {
		return TradeSession{}, ErrInvalidToken
	}

	now := time.Now()
	ctx, cancel := context.WithCancel(m.baseCtx)
	e := &sessionEntry{
		session: TradeSession{
			ID:          uuid.New().String(),
			Token:       token,
			Direction:   direction,
			SlippageBps: m.defaultSlippage,
			State:       SessionIdle,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		cancel:   cancel,
		lastSeen: now,
	}

	m.mu.Lock()
	m.sessions[e.session.ID] = e
	m.mu.Unlock()

	go m.refreshLoop(ctx, e)

	logrus.Infof("🪟 [TradeSession] Opened %s (%s %s)", e.session.ID, direction, token.Hex())
	return e.session, nil
}

func (m *TradeSessionManager) entry(id string) (*sessionEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return e, nil
}

// Get returns a copy of the session and keeps it alive
func (m *TradeSessionManager) Get(id string) (TradeSession, error) {
	e, err := m.entry(id)
	if err != nil {
		return TradeSession{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.touch()
	return e.session, nil
}

// Close stops the quote timer and forgets the session
func (m *TradeSessionManager) Close(id string) error {
	m.mu.Lock()
	e, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	e.cancel()
	return nil
}

// Shutdown closes every session
func (m *TradeSessionManager) Shutdown() {
	m.stop()
	m.mu.Lock()
	m.sessions = make(map[string]*sessionEntry)
	m.mu.Unlock()
}

// Count open sessions
func (m *TradeSessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// SetInput applies input and quotes the new amount right away
func (m *TradeSessionManager) SetInput(ctx context.Context, id string, in SessionInput) (TradeSession, error) {
	e, err := m.entry(id)
	if err != nil {
		return TradeSession{}, err
	}

	e.mu.Lock()
	e.touch()
	if e.session.State.Busy() {
		e.mu.Unlock()
		return TradeSession{}, ErrSessionBusy
	}
	next := e.session
	e.mu.Unlock()

	if in.Direction != nil {
		if *in.Direction != models.TradeDirectionBuy && *in.Direction != models.TradeDirectionSell {
			return TradeSession{}, fmt.Errorf("%w: direction %q", ErrInvalidAmount, *in.Direction)
		}
		next.Direction = *in.Direction
	}
	if in.Slippage != nil {
		bps, err := utils.SlippageToBps(*in.Slippage, m.maxSlippage)
		if err != nil {
			return TradeSession{}, fmt.Errorf("%w: %v", ErrInvalidSlippage, err)
		}
		next.SlippageBps = bps
	}

	switch {
	case in.Amount != nil:
		next.Amount = strings.TrimSpace(*in.Amount)
	case in.BuyPreset != nil:
		if next.Direction != models.TradeDirectionBuy || !slices.Contains(m.presets.Buy, *in.BuyPreset) {
			return TradeSession{}, fmt.Errorf("%w: buy preset %q", ErrInvalidAmount, *in.BuyPreset)
		}
		next.Amount = *in.BuyPreset
	case in.SellPreset != nil:
		if next.Direction != models.TradeDirectionSell {
			return TradeSession{}, fmt.Errorf("%w: sell preset on a buy", ErrInvalidAmount)
		}
		amount, err := m.sellPresetAmount(ctx, next.Token, *in.SellPreset)
		if err != nil {
			return TradeSession{}, err
		}
		next.Amount = amount
	}

	e.mu.Lock()
	if e.session.State.Busy() {
		e.mu.Unlock()
		return TradeSession{}, ErrSessionBusy
	}
	e.version++
	e.session.Direction = next.Direction
	e.session.SlippageBps = next.SlippageBps
	e.session.Amount = next.Amount
	e.session.Quote = nil
	e.session.QuoteError = ""
	e.session.State = SessionIdle
	e.session.UpdatedAt = time.Now()
	e.mu.Unlock()

	m.requote(ctx, e)
	return m.Get(id)
}

func (m *TradeSessionManager) sellPresetAmount(ctx context.Context, token common.Address, percent int) (string, error) {
	owner, err := m.trades.tx.From()
	if err != nil {
		return "", err
	}
	bal, err := m.balances.Get(ctx, token, owner)
	if err != nil {
		return "", err
	}
	if bal.TokenBalance.Sign() <= 0 {
		return "", fmt.Errorf("%w: no token balance", ErrInsufficientBalance)
	}
	amount, err := utils.SellPresetAmount(bal.TokenText, percent)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	return amount, nil
}

// quotable is false for an empty or zero amount
func quotable(amount string) bool {
	if amount == "" {
		return false
	}
	d, err := decimal.NewFromString(amount)
	return err == nil && d.IsPositive()
}

// requote quotes the current input. The result is dropped when the input changed meanwhile.
func (m *TradeSessionManager) requote(ctx context.Context, e *sessionEntry) {
	e.mu.Lock()
	if e.session.State.Busy() || !quotable(e.session.Amount) {
		e.mu.Unlock()
		return
	}
	version := e.version
	req := QuoteRequest{
		Token:       e.session.Token,
		Direction:   e.session.Direction,
		Amount:      e.session.Amount,
		SlippageBps: e.session.SlippageBps,
	}
	e.session.State = SessionQuoting
	e.mu.Unlock()

	quote, err := m.trades.Quote(ctx, req)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.version != version || e.session.State != SessionQuoting {
		return
	}
	e.session.UpdatedAt = time.Now()
	if err != nil {
		e.session.State = SessionIdle
		e.session.Quote = nil
		e.session.QuoteError = err.Error()
		logrus.Debugf("⚠️ [TradeSession] Quote for %s failed: %v", e.session.ID, err)
		return
	}
	e.session.State = SessionReady
	e.session.Quote = quote
	e.session.QuoteError = ""
}

func (m *TradeSessionManager) refreshLoop(ctx context.Context, e *sessionEntry) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if m.idle(e) {
				m.expire(e)
				return
			}
			m.requote(ctx, e)
		}
	}
}

// idle is true once nobody has read or changed the session for idleTTL. A trade in flight keeps it alive.
func (m *TradeSessionManager) idle(e *sessionEntry) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.session.State.Busy() && time.Since(e.lastSeen) > m.idleTTL
}

func (m *TradeSessionManager) expire(e *sessionEntry) {
	m.mu.Lock()
	if m.sessions[e.session.ID] == e {
		delete(m.sessions, e.session.ID)
	}
	m.mu.Unlock()
	e.cancel()
	logrus.Infof("⌛ [TradeSession] Session %s idle for %s, closed", e.session.ID, m.idleTTL)
}

// Submit executes the session's current input and blocks until the trade settles or fails.
// Success clears the amount and invalidates balances; failure returns to idle and keeps it.
func (m *TradeSessionManager) Submit(ctx context.Context, id string) (TradeSession, error) {
	e, req, err := m.beginSubmit(id)
	if err != nil {
		return TradeSession{}, err
	}
	m.runSubmit(ctx, e, req)
	return m.Get(id)
}

// SubmitAsync starts the trade in the background and returns the submitting session
func (m *TradeSessionManager) SubmitAsync(id string) (TradeSession, error) {
	e, req, err := m.beginSubmit(id)
	if err != nil {
		return TradeSession{}, err
	}
	go m.runSubmit(m.baseCtx, e, req)
	return m.Get(id)
}

func (m *TradeSessionManager) beginSubmit(id string) (*sessionEntry, ExecuteRequest, error) {
	e, err := m.entry(id)
	if err != nil {
		return nil, ExecuteRequest{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.touch()
	if e.session.State.Busy() {
		return nil, ExecuteRequest{}, ErrSessionBusy
	}
	e.version++
	e.session.State = SessionSubmitting
	e.session.Notification = nil
	e.session.UpdatedAt = time.Now()

	req := ExecuteRequest{
		QuoteRequest: QuoteRequest{
			Token:       e.session.Token,
			Direction:   e.session.Direction,
			Amount:      e.session.Amount,
			SlippageBps: e.session.SlippageBps,
		},
		SessionID: e.session.ID,
		OnSubmitted: func(hash common.Hash) {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.session.State = SessionConfirming
			e.session.UpdatedAt = time.Now()
		},
	}
	return e, req, nil
}

func (m *TradeSessionManager) runSubmit(ctx context.Context, e *sessionEntry, req ExecuteRequest) {
	record, err := m.trades.Execute(ctx, req)

	e.mu.Lock()
	defer e.mu.Unlock()
	now := time.Now()
	e.version++
	e.session.UpdatedAt = now
	if record != nil {
		e.session.LastTradeID = record.ID
	}

	if err != nil {
		n := &Notification{Kind: "error", Message: err.Error(), At: now}
		if record != nil {
			n.TxHash = record.TxHash
		}
		e.session.Notification = n
		e.session.State = SessionIdle
		return
	}

	e.session.Notification = &Notification{
		Kind:    "success",
		Message: fmt.Sprintf("%s of %s settled", record.Direction, e.session.Token.Hex()),
		TxHash:  record.TxHash,
		At:      now,
	}
	e.session.State = SessionSettled
	e.session.Amount = ""
	e.session.Quote = nil
}

// IsInputError reports whether err was rejected before anything was sent
func IsInputError(err error) bool {
	for _, target := range []error{
		ErrInvalidAmount, ErrInsufficientBalance, ErrWalletNotConnected, ErrInvalidSlippage,
		ErrBelowMinimumStake, ErrStakingNotActive, ErrNothingToWithdraw, ErrInvalidToken,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
