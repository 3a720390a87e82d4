package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmrkt/marketd/internal/core/market"
)

type rpcEnv struct {
	t        *testing.T
	registry *market.MemoryRegistry
	funds    *market.MemoryFunds
	mkt      *market.Marketplace
	server   *Server
	http     *httptest.Server
}

func newRpcEnv(t *testing.T) *rpcEnv {
	t.Helper()

	env := &rpcEnv{
		t:        t,
		registry: market.NewMemoryRegistry(),
		funds:    market.NewMemoryFunds(),
	}

	cache, err := NewQueryCache(64)
	require.NoError(t, err)
	fanout := NewFanout(cache)

	env.mkt = market.NewMarketplace(market.Options{
		Registry:     env.registry,
		Funds:        env.funds,
		Owner:        "admin",
		FeeBps:       250,
		FeeRecipient: "vault",
		Publisher:    fanout,
	})
	env.server = NewServer(ServerOptions{Market: env.mkt, Cache: cache})
	env.http = httptest.NewServer(env.server.Handler())
	t.Cleanup(env.http.Close)
	return env
}

func (e *rpcEnv) mint(ref market.AssetRef, acct market.AccountID) {
	require.NoError(e.t, e.registry.Mint(ref, acct))
	require.NoError(e.t, e.registry.Approve(acct, market.EscrowAccount, ref))
}

// call posts a JSON-RPC request and returns the result object.
func (e *rpcEnv) call(method string, params interface{}) map[string]interface{} {
	e.t.Helper()

	body := map[string]interface{}{"method": method}
	if params != nil {
		body["params"] = []interface{}{params}
	}
	payload, err := json.Marshal(body)
	require.NoError(e.t, err)

	resp, err := http.Post(e.http.URL, "application/json", bytes.NewReader(payload))
	require.NoError(e.t, err)
	defer resp.Body.Close()
	require.Equal(e.t, http.StatusOK, resp.StatusCode)

	var envelope struct {
		Result map[string]interface{} `json:"result"`
	}
	require.NoError(e.t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.NotNil(e.t, envelope.Result)
	return envelope.Result
}

func (e *rpcEnv) callOK(method string, params interface{}) map[string]interface{} {
	e.t.Helper()
	result := e.call(method, params)
	require.Equal(e.t, "success", result["status"], "result: %v", result)
	return result
}

func (e *rpcEnv) callErr(method string, params interface{}) map[string]interface{} {
	e.t.Helper()
	result := e.call(method, params)
	require.Equal(e.t, "error", result["status"], "result: %v", result)
	return result
}

func TestListingLifecycleOverRPC(t *testing.T) {
	env := newRpcEnv(t)
	ref := market.AssetRef{Collection: "punks", TokenID: "1"}
	env.mint(ref, "alice")
	require.NoError(t, env.funds.Credit("bob", 100_000_000))

	env.callOK("listing_create", map[string]interface{}{
		"collection": "punks", "token_id": "1",
		"seller": "alice", "price": "100.000000",
	})

	listing := env.callOK("listing", map[string]interface{}{
		"collection": "punks", "token_id": "1",
	})
	assert.Equal(t, "alice", listing["seller"])
	assert.Equal(t, "100.000000", listing["price"])
	assert.Equal(t, true, listing["active"])

	env.callOK("listing_update", map[string]interface{}{
		"collection": "punks", "token_id": "1",
		"seller": "alice", "price": "90.000000",
	})

	// The cache entry was invalidated by the update event.
	listing = env.callOK("listing", map[string]interface{}{
		"collection": "punks", "token_id": "1",
	})
	assert.Equal(t, "90.000000", listing["price"])

	env.callOK("listing_buy", map[string]interface{}{
		"collection": "punks", "token_id": "1", "buyer": "bob",
	})

	ownerNow, ok := env.registry.OwnerOf(ref)
	require.True(t, ok)
	assert.Equal(t, market.AccountID("bob"), ownerNow)
}

func TestEngineErrorMapping(t *testing.T) {
	env := newRpcEnv(t)

	result := env.callErr("listing_buy", map[string]interface{}{
		"collection": "punks", "token_id": "404", "buyer": "bob",
	})
	assert.Equal(t, "listingInactive", result["error"])
	assert.Equal(t, float64(market.ListingInactive), result["error_code"])
}

func TestTransportErrors(t *testing.T) {
	env := newRpcEnv(t)

	result := env.callErr("no_such_method", nil)
	assert.Equal(t, "unknownCmd", result["error"])

	result = env.callErr("listing_create", map[string]interface{}{
		"collection": "punks", "token_id": "1",
		"seller": "alice", "price": "not-a-number",
	})
	assert.Equal(t, "invalidParams", result["error"])

	result = env.callErr("listing", map[string]interface{}{"collection": "punks"})
	assert.Equal(t, "invalidParams", result["error"])

	resp, err := http.Post(env.http.URL, "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	defer resp.Body.Close()
	var envelope struct {
		Result map[string]interface{} `json:"result"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.Equal(t, "jsonInvalid", envelope.Result["error"])
}

func TestMissingMethodField(t *testing.T) {
	env := newRpcEnv(t)
	result := env.callErr("", nil)
	assert.Equal(t, "missingCommand", result["error"])
}

func TestAdminMethodsOverRPC(t *testing.T) {
	env := newRpcEnv(t)

	env.callOK("fee_set", map[string]interface{}{"caller": "admin", "bps": 300})

	info := env.callOK("fee_info", nil)
	assert.Equal(t, float64(300), info["fee_bps"])
	assert.Equal(t, "vault", info["fee_recipient"])

	// Non-owner callers are rejected by the engine.
	result := env.callErr("fee_set", map[string]interface{}{"caller": "mallory", "bps": 100})
	assert.Equal(t, "notAuthorized", result["error"])

	env.callOK("royalty_set", map[string]interface{}{
		"caller": "admin", "collection": "punks", "recipient": "creator", "bps": 500,
	})
	royalty := env.callOK("royalty_info", map[string]interface{}{"collection": "punks"})
	assert.Equal(t, "creator", royalty["recipient"])
	assert.Equal(t, float64(500), royalty["bps"])

	env.callOK("collection_allow", map[string]interface{}{
		"caller": "admin", "collection": "punks", "allowed": true,
	})
	allowed := env.callOK("collection_allowed", map[string]interface{}{"collection": "punks"})
	assert.Equal(t, true, allowed["allowed"])

	env.callOK("ownership_transfer", map[string]interface{}{
		"caller": "admin", "new_owner": "admin2",
	})
	info = env.callOK("fee_info", nil)
	assert.Equal(t, "admin2", info["owner"])
}

func TestConcurrentCachedQueries(t *testing.T) {
	env := newRpcEnv(t)

	// Prime the cache, then hit the cached entry from many goroutines at
	// once. The response envelope must never write into the map the cache
	// holds, so concurrent hits stay read-only.
	env.callOK("fee_info", nil)

	payload := []byte(`{"method":"fee_info"}`)
	errc := make(chan error, 16)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				resp, err := http.Post(env.http.URL, "application/json", bytes.NewReader(payload))
				if err != nil {
					errc <- err
					return
				}
				resp.Body.Close()
			}
		}()
	}
	wg.Wait()
	close(errc)
	for err := range errc {
		require.NoError(t, err)
	}

	cached, ok := env.server.cache.Get("fee_info")
	require.True(t, ok)
	view, ok := cached.(map[string]interface{})
	require.True(t, ok)
	_, polluted := view["status"]
	assert.False(t, polluted)
}

func TestFeeInfoCacheInvalidation(t *testing.T) {
	env := newRpcEnv(t)

	info := env.callOK("fee_info", nil)
	assert.Equal(t, float64(250), info["fee_bps"])

	env.callOK("fee_set", map[string]interface{}{"caller": "admin", "bps": 100})

	info = env.callOK("fee_info", nil)
	assert.Equal(t, float64(100), info["fee_bps"])
}

func TestAuctionOverRPC(t *testing.T) {
	env := newRpcEnv(t)
	ref := market.AssetRef{Collection: "punks", TokenID: "7"}
	env.mint(ref, "alice")
	require.NoError(t, env.funds.Credit("bob", 100_000_000))

	start := time.Now().Add(50 * time.Millisecond).UTC()
	end := start.Add(100 * time.Millisecond)

	env.callOK("auction_create", map[string]interface{}{
		"collection": "punks", "token_id": "7",
		"seller":        "alice",
		"reserve_price": "10.000000",
		"start_time":    start.Format(time.RFC3339Nano),
		"end_time":      end.Format(time.RFC3339Nano),
	})

	// Bidding before the start is rejected.
	result := env.callErr("auction_bid", map[string]interface{}{
		"collection": "punks", "token_id": "7", "bidder": "bob", "amount": "20.000000",
	})
	assert.Equal(t, "auctionNotStarted", result["error"])

	time.Sleep(60 * time.Millisecond)
	env.callOK("auction_bid", map[string]interface{}{
		"collection": "punks", "token_id": "7", "bidder": "bob", "amount": "20.000000",
	})

	auction := env.callOK("auction", map[string]interface{}{
		"collection": "punks", "token_id": "7",
	})
	assert.Equal(t, "bob", auction["highest_bidder"])
	assert.Equal(t, "20.000000", auction["highest_bid"])

	time.Sleep(120 * time.Millisecond)
	settled := env.callOK("auction_settle", map[string]interface{}{
		"collection": "punks", "token_id": "7", "caller": "anyone",
	})
	assert.Equal(t, "settledSold", settled["outcome"])
	assert.Equal(t, "bob", settled["winner"])

	ownerNow, ok := env.registry.OwnerOf(ref)
	require.True(t, ok)
	assert.Equal(t, market.AccountID("bob"), ownerNow)
}

func TestHistoryDisabled(t *testing.T) {
	env := newRpcEnv(t)
	result := env.callErr("sales", nil)
	assert.Equal(t, "notSupported", result["error"])
}

func TestServerInfoOverGET(t *testing.T) {
	env := newRpcEnv(t)

	resp, err := http.Get(fmt.Sprintf("%s?command=server_info", env.http.URL))
	require.NoError(t, err)
	defer resp.Body.Close()

	var envelope struct {
		Result map[string]interface{} `json:"result"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.Equal(t, "success", envelope.Result["status"])
	assert.NotNil(t, envelope.Result["methods"])
}
