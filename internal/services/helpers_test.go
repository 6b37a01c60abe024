package services

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"launchpad-backend/internal/chaintest"
	"launchpad-backend/internal/clients"
	"launchpad-backend/internal/contracts"
)

var (
	testManager = common.HexToAddress("0x68B1D87F95878fE05B998F19b66F4baba5De1aed")
	testRouter  = common.HexToAddress("0xfc9869eF6E04e8dcF09234Ad0bC48a6f78a493cC")
	testWETH    = common.HexToAddress("0x6100E367285b01F48D07953803A2d8dCA5D19873")
	testStaking = common.HexToAddress("0x959922bE3CAee4b8Cd9a407cc3ac1C251C2007B1")

	tokenA = common.HexToAddress("0xaAaAaAaaAaAaAaaAaAAAAAAAAaaaAaAaAaaAaaAa")
	tokenB = common.HexToAddress("0xbBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB")
	tokenC = common.HexToAddress("0xCcCCccccCCCCcCCCCCCcCcCccCcCCCcCcccccccC")
)

// testToken on-chain fixture for one token
type testToken struct {
	addr     common.Address
	uri      string
	symbol   string
	reserve1 int64
	target   int64
	price    *big.Int
	launched bool
	// badInfo makes tokensInfo revert
	badInfo bool
}

func newTestChain() (*chaintest.Chain, *clients.MulticallClient) {
	chain := chaintest.New()
	return chain, clients.NewMulticallClient(chain, chain.Multicall)
}

func unpackArgs(t testing.TB, method string, data []byte) []interface{} {
	args, err := contracts.TokenManagerABI.Methods[method].Inputs.Unpack(data[4:])
	require.NoError(t, err)
	return args
}

// installTokens registers allTokens, tokens(i), uri, tokensInfo and symbol handlers.
// A zero address in the directory marks a slot that reverts.
func installTokens(t testing.TB, chain *chaintest.Chain, directory []common.Address, tokens []testToken) {
	byAddr := make(map[common.Address]testToken)
	for _, tok := range tokens {
		byAddr[tok.addr] = tok
		if tok.symbol != "" {
			chain.Returns(tok.addr, contracts.ERC20ABI, "symbol", tok.symbol)
		}
	}

	chain.Returns(testManager, contracts.TokenManagerABI, "allTokens", big.NewInt(int64(len(directory))))
	chain.Handle(testManager, contracts.TokenManagerABI, "tokens", func(data []byte) ([]byte, error) {
		i := unpackArgs(t, "tokens", data)[0].(*big.Int).Int64()
		if i >= int64(len(directory)) || directory[i] == (common.Address{}) {
			return nil, errors.New("execution reverted")
		}
		return contracts.TokenManagerABI.Methods["tokens"].Outputs.Pack(directory[i])
	})
	chain.Handle(testManager, contracts.TokenManagerABI, "uri", func(data []byte) ([]byte, error) {
		tok := byAddr[unpackArgs(t, "uri", data)[0].(common.Address)]
		return contracts.TokenManagerABI.Methods["uri"].Outputs.Pack(tok.uri)
	})
	chain.Handle(testManager, contracts.TokenManagerABI, "tokensInfo", func(data []byte) ([]byte, error) {
		addr := unpackArgs(t, "tokensInfo", data)[0].(common.Address)
		tok, ok := byAddr[addr]
		if !ok || tok.badInfo {
			return nil, errors.New("execution reverted")
		}
		price := tok.price
		if price == nil {
			price = big.NewInt(0)
		}
		return contracts.TokenManagerABI.Methods["tokensInfo"].Outputs.Pack(
			addr, testWETH,
			big.NewInt(0), big.NewInt(tok.reserve1), big.NewInt(0), big.NewInt(0),
			big.NewInt(0), big.NewInt(1_000_000_000), price, big.NewInt(tok.target),
			common.HexToAddress("0x1234"), tok.launched,
		)
	})
}

// fakeFetcher serves metadata documents by URI
type fakeFetcher struct {
	mu    sync.Mutex
	docs  map[string]*clients.MetadataDocument
	errs  map[string]error
	calls map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		docs:  make(map[string]*clients.MetadataDocument),
		errs:  make(map[string]error),
		calls: make(map[string]int),
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, uri string) (*clients.MetadataDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[uri]++
	if err, ok := f.errs[uri]; ok {
		return nil, err
	}
	if doc, ok := f.docs[uri]; ok {
		return doc, nil
	}
	return nil, errors.New("HTTP 404")
}

func (f *fakeFetcher) NormalizeURI(uri string) string {
	return clients.NewMetadataClient("https://ipfs.io/ipfs", 0).NormalizeURI(uri)
}

func (f *fakeFetcher) Calls(uri string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[uri]
}

func (f *fakeFetcher) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// recordingPublisher captures published events
type recordingPublisher struct {
	mu     sync.Mutex
	events map[string][]interface{}
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{events: make(map[string][]interface{})}
}

func (p *recordingPublisher) Publish(subject string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events[subject] = append(p.events[subject], payload)
	return nil
}

func (p *recordingPublisher) Count(subject string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events[subject])
}
