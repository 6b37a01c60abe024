package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
)

// ErrMetadataHostUnavailable the breaker is open; the fetch was not attempted
var ErrMetadataHostUnavailable = errors.New("metadata host unavailable")

const maxMetadataBytes = 1 << 20

// MetadataDocument off-chain token description as published at the token URI
type MetadataDocument struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Website     string `json:"website"`
	X           string `json:"x"`
	Telegram    string `json:"telegram"`
}

// MetadataClient fetches metadata documents over HTTPS or through an IPFS gateway
type MetadataClient struct {
	httpClient *http.Client
	gateway    string
	breaker    *gobreaker.CircuitBreaker
}

// NewMetadataClient gateway is the HTTP prefix for content hashes, e.g. https://ipfs.io/ipfs
func NewMetadataClient(gateway string, timeout time.Duration) *MetadataClient {
	return &MetadataClient{
		httpClient: &http.Client{Timeout: timeout},
		gateway:    strings.TrimRight(gateway, "/"),
		breaker:    newBreaker("metadata-host"),
	}
}

// NormalizeURI rewrites bare content hashes and ipfs:// URIs to gateway URLs.
// Anything else is returned unchanged.
func (c *MetadataClient) NormalizeURI(uri string) string {
	uri = strings.TrimSpace(uri)
	switch {
	case strings.HasPrefix(uri, "Qm"), strings.HasPrefix(uri, "bafy"):
		return c.gateway + "/" + uri
	case strings.HasPrefix(uri, "ipfs://"):
		return c.gateway + "/" + strings.TrimPrefix(uri, "ipfs://")
	default:
		return uri
	}
}

type metadataResponse struct {
	status int
	body   []byte
}

// Fetch GETs the normalized uri and decodes the JSON document.
// Non-2xx responses and malformed JSON are errors.
func (c *MetadataClient) Fetch(ctx context.Context, uri string) (*MetadataDocument, error) {
	url := c.NormalizeURI(uri)
	if url == "" {
		return nil, errors.New("empty metadata uri")
	}

	// only transport errors count against the breaker
	res, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxMetadataBytes))
		if err != nil {
			return nil, err
		}
		return &metadataResponse{status: resp.StatusCode, body: body}, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrMetadataHostUnavailable
	}
	if err != nil {
		return nil, fmt.Errorf("fetch metadata %s: %w", url, err)
	}

	r := res.(*metadataResponse)
	if r.status < 200 || r.status > 299 {
		return nil, fmt.Errorf("fetch metadata %s: HTTP %d", url, r.status)
	}

	var doc MetadataDocument
	if err := json.Unmarshal(r.body, &doc); err != nil {
		return nil, fmt.Errorf("decode metadata %s: %w", url, err)
	}
	return &doc, nil
}
