package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"launchpad-backend/internal/clients"
	"launchpad-backend/internal/metrics"
	"launchpad-backend/internal/models"
	"launchpad-backend/internal/utils"
)

// FallbackMetadata is shown for tokens without a usable metadata document
func FallbackMetadata(addr common.Address) models.TokenMetadata {
	return models.TokenMetadata{
		Name:   "Token " + utils.ShortAddress(addr.Hex()),
		Symbol: UnknownSymbol,
	}
}

// MetadataCache remembers which tokens have been resolved and what they resolved to.
// Entries are only added; Reset is the one way to clear it.
type MetadataCache struct {
	mu       sync.RWMutex
	resolved map[common.Address]models.TokenMetadata
}

func NewMetadataCache() *MetadataCache {
	return &MetadataCache{resolved: make(map[common.Address]models.TokenMetadata)}
}

// Get returns the stored metadata for addr
func (c *MetadataCache) Get(addr common.Address) (models.TokenMetadata, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	md, ok := c.resolved[addr]
	return md, ok
}

// Resolved reports whether addr has been fetched, successfully or not
func (c *MetadataCache) Resolved(addr common.Address) bool {
	_, ok := c.Get(addr)
	return ok
}

// Store marks addr resolved. The first stored value wins.
func (c *MetadataCache) Store(addr common.Address, md models.TokenMetadata) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.resolved[addr]; ok {
		return
	}
	c.resolved[addr] = md
	metrics.MetadataCacheSize.Set(float64(len(c.resolved)))
}

func (c *MetadataCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.resolved)
}

// Reset forgets everything
func (c *MetadataCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resolved = make(map[common.Address]models.TokenMetadata)
	metrics.MetadataCacheSize.Set(0)
}

// MetadataFetcher fetches one metadata document
type MetadataFetcher interface {
	Fetch(ctx context.Context, uri string) (*clients.MetadataDocument, error)
	NormalizeURI(uri string) string
}

// MetadataService fills the cache for tokens whose metadata is not known yet
type MetadataService struct {
	fetcher    MetadataFetcher
	cache      *MetadataCache
	batchSize  int
	batchDelay time.Duration
}

func NewMetadataService(fetcher MetadataFetcher, cache *MetadataCache, batchSize int, batchDelay time.Duration) *MetadataService {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &MetadataService{
		fetcher:    fetcher,
		cache:      cache,
		batchSize:  batchSize,
		batchDelay: batchDelay,
	}
}

// Cache returns the injected cache
func (s *MetadataService) Cache() *MetadataCache {
	return s.cache
}

// Enrich fetches metadata for every state with a URI that is not resolved yet.
// Each batch runs concurrently and is awaited in full before the next starts.
func (s *MetadataService) Enrich(ctx context.Context, states []TokenState) error {
	pending := make([]TokenState, 0)
	queued := make(map[common.Address]struct{})
	for _, st := range states {
		if st.URI == "" || s.cache.Resolved(st.Address) {
			continue
		}
		if _, ok := queued[st.Address]; ok {
			continue
		}
		queued[st.Address] = struct{}{}
		pending = append(pending, st)
	}
	if len(pending) == 0 {
		return nil
	}

	logrus.Debugf("🔍 [Metadata] Fetching metadata for %d tokens", len(pending))

	for start := 0; start < len(pending); start += s.batchSize {
		if start > 0 && s.batchDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.batchDelay):
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		end := start + s.batchSize
		if end > len(pending) {
			end = len(pending)
		}

		var wg sync.WaitGroup
		for _, st := range pending[start:end] {
			wg.Add(1)
			go func(st TokenState) {
				defer wg.Done()
				s.resolve(ctx, st)
			}(st)
		}
		wg.Wait()
	}
	return nil
}

func (s *MetadataService) resolve(ctx context.Context, st TokenState) {
	doc, err := s.fetcher.Fetch(ctx, st.URI)
	switch {
	case errors.Is(err, clients.ErrMetadataHostUnavailable), ctx.Err() != nil:
		// not attempted; retried on a later cycle
		metrics.MetadataFetchesTotal.WithLabelValues("skipped").Inc()
		return
	case err != nil:
		logrus.WithFields(logrus.Fields{
			"token": st.Address.Hex(),
			"uri":   st.URI,
			"error": err.Error(),
		}).Warn("⚠️ [Metadata] Failed to fetch metadata, using fallback")
		metrics.MetadataFetchesTotal.WithLabelValues("fallback").Inc()
		s.cache.Store(st.Address, FallbackMetadata(st.Address))
		return
	}

	metrics.MetadataFetchesTotal.WithLabelValues("success").Inc()
	s.cache.Store(st.Address, s.fromDocument(st.Address, doc))
}

func (s *MetadataService) fromDocument(addr common.Address, doc *clients.MetadataDocument) models.TokenMetadata {
	md := FallbackMetadata(addr)
	if doc.Name != "" {
		md.Name = doc.Name
	}
	if doc.Symbol != "" {
		md.Symbol = doc.Symbol
	}
	md.Description = doc.Description
	if doc.Image != "" {
		image := s.fetcher.NormalizeURI(doc.Image)
		md.Image = &image
	}
	md.Website = doc.Website
	md.X = doc.X
	md.Telegram = doc.Telegram
	return md
}

// MetadataFor returns the resolved metadata, or the fallback
func (s *MetadataService) MetadataFor(addr common.Address) models.TokenMetadata {
	if md, ok := s.cache.Get(addr); ok {
		return md
	}
	return FallbackMetadata(addr)
}
