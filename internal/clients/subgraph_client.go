package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrSubgraphDisabled no subgraph URL is configured
var ErrSubgraphDisabled = errors.New("subgraph not configured")

const getTokensQuery = `query GetTokens($first: Int = 100, $skip: Int = 0, $orderBy: String = "createdAt", $orderDirection: String = "desc") {
  tokens(first: $first, skip: $skip, orderBy: $orderBy, orderDirection: $orderDirection) {
    id name symbol creator createdAt uri mintTimes
  }
}`

const getTokenQuery = `query GetToken($id: String!) {
  token(id: $id) {
    id name symbol creator createdAt uri mintTimes
  }
}`

const getTransactionsQuery = `query GetTransactions($first: Int = 100, $skip: Int = 0) {
  transactions(first: $first, skip: $skip, orderBy: "timestamp", orderDirection: "desc") {
    id hash from to value timestamp blockNumber
  }
}`

// SubgraphToken indexed token entity
type SubgraphToken struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Symbol    string `json:"symbol"`
	Creator   string `json:"creator"`
	CreatedAt string `json:"createdAt"`
	URI       string `json:"uri"`
	MintTimes string `json:"mintTimes"`
}

// SubgraphTransaction indexed transaction entity
type SubgraphTransaction struct {
	ID          string `json:"id"`
	Hash        string `json:"hash"`
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"`
	Timestamp   string `json:"timestamp"`
	BlockNumber string `json:"blockNumber"`
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// SubgraphClient read-only GraphQL client for the launchpad subgraph
type SubgraphClient struct {
	httpClient *http.Client
	url        string
	apiKey     string
}

// NewSubgraphClient an empty url yields a client whose queries return ErrSubgraphDisabled
func NewSubgraphClient(url, apiKey string, timeout time.Duration) *SubgraphClient {
	return &SubgraphClient{
		httpClient: &http.Client{Timeout: timeout},
		url:        url,
		apiKey:     apiKey,
	}
}

// Enabled reports whether a subgraph URL is configured
func (c *SubgraphClient) Enabled() bool {
	return c != nil && c.url != ""
}

// GetTokens newest-first page of indexed tokens
func (c *SubgraphClient) GetTokens(ctx context.Context, first, skip int) ([]SubgraphToken, error) {
	var out struct {
		Tokens []SubgraphToken `json:"tokens"`
	}
	err := c.query(ctx, getTokensQuery, map[string]interface{}{"first": first, "skip": skip}, &out)
	return out.Tokens, err
}

// GetToken one token by address; nil when not indexed
func (c *SubgraphClient) GetToken(ctx context.Context, id string) (*SubgraphToken, error) {
	var out struct {
		Token *SubgraphToken `json:"token"`
	}
	err := c.query(ctx, getTokenQuery, map[string]interface{}{"id": strings.ToLower(id)}, &out)
	return out.Token, err
}

// GetTransactions newest-first page of indexed transactions
func (c *SubgraphClient) GetTransactions(ctx context.Context, first, skip int) ([]SubgraphTransaction, error) {
	var out struct {
		Transactions []SubgraphTransaction `json:"transactions"`
	}
	err := c.query(ctx, getTransactionsQuery, map[string]interface{}{"first": first, "skip": skip}, &out)
	return out.Transactions, err
}

func (c *SubgraphClient) query(ctx context.Context, query string, vars map[string]interface{}, out interface{}) error {
	if !c.Enabled() {
		return ErrSubgraphDisabled
	}

	body, err := json.Marshal(graphQLRequest{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("failed to marshal query: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("subgraph request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read subgraph response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("subgraph HTTP %d: %s", resp.StatusCode, string(raw))
	}

	var gql graphQLResponse
	if err := json.Unmarshal(raw, &gql); err != nil {
		return fmt.Errorf("failed to parse subgraph response: %w", err)
	}
	if len(gql.Errors) > 0 {
		return fmt.Errorf("subgraph error: %s", gql.Errors[0].Message)
	}
	return json.Unmarshal(gql.Data, out)
}
