package rpc

import (
	"encoding/json"
	"time"

	"github.com/openmrkt/marketd/internal/core/currency"
	"github.com/openmrkt/marketd/internal/core/market"
)

// assetParams is the common asset addressing block in request payloads.
type assetParams struct {
	Collection string `json:"collection"`
	TokenID    string `json:"token_id"`
}

func (p assetParams) ref() (market.AssetRef, *RpcError) {
	ref := market.AssetRef{Collection: p.Collection, TokenID: p.TokenID}
	if !ref.Valid() {
		return market.AssetRef{}, RpcErrorInvalidParams("collection and token_id are required")
	}
	return ref, nil
}

func decodeParams(params json.RawMessage, v interface{}) *RpcError {
	if len(params) == 0 {
		return RpcErrorInvalidParams("missing parameters")
	}
	if err := json.Unmarshal(params, v); err != nil {
		return RpcErrorInvalidParams("malformed parameters: " + err.Error())
	}
	return nil
}

func parseAmount(s, field string) (currency.Amount, *RpcError) {
	a, err := currency.Parse(s)
	if err != nil {
		return 0, RpcErrorInvalidParams(field + ": " + err.Error())
	}
	return a, nil
}

// appliedResult is the response body for a successful write.
func appliedResult(ref market.AssetRef) map[string]interface{} {
	return map[string]interface{}{
		"applied": true,
		"asset":   ref.Key(),
	}
}

func (s *Server) registerMarketMethods() {
	s.registry.MustRegister(&method{name: "listing_create", mutating: true, fn: s.listingCreate})
	s.registry.MustRegister(&method{name: "listing_update", mutating: true, fn: s.listingUpdate})
	s.registry.MustRegister(&method{name: "listing_cancel", mutating: true, fn: s.listingCancel})
	s.registry.MustRegister(&method{name: "listing_buy", mutating: true, fn: s.listingBuy})
	s.registry.MustRegister(&method{name: "auction_create", mutating: true, fn: s.auctionCreate})
	s.registry.MustRegister(&method{name: "auction_bid", mutating: true, fn: s.auctionBid})
	s.registry.MustRegister(&method{name: "auction_settle", mutating: true, fn: s.auctionSettle})
}

func (s *Server) listingCreate(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	var p struct {
		assetParams
		Seller string `json:"seller"`
		Price  string `json:"price"`
	}
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	ref, rpcErr := p.ref()
	if rpcErr != nil {
		return nil, rpcErr
	}
	price, rpcErr := parseAmount(p.Price, "price")
	if rpcErr != nil {
		return nil, rpcErr
	}

	if res := s.mkt.CreateListing(market.AccountID(p.Seller), ref, price); !res.IsSuccess() {
		return nil, errorFromResult(res)
	}
	return appliedResult(ref), nil
}

func (s *Server) listingUpdate(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	var p struct {
		assetParams
		Seller string `json:"seller"`
		Price  string `json:"price"`
	}
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	ref, rpcErr := p.ref()
	if rpcErr != nil {
		return nil, rpcErr
	}
	price, rpcErr := parseAmount(p.Price, "price")
	if rpcErr != nil {
		return nil, rpcErr
	}

	if res := s.mkt.UpdateListingPrice(market.AccountID(p.Seller), ref, price); !res.IsSuccess() {
		return nil, errorFromResult(res)
	}
	return appliedResult(ref), nil
}

func (s *Server) listingCancel(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	var p struct {
		assetParams
		Seller string `json:"seller"`
	}
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	ref, rpcErr := p.ref()
	if rpcErr != nil {
		return nil, rpcErr
	}

	if res := s.mkt.CancelListing(market.AccountID(p.Seller), ref); !res.IsSuccess() {
		return nil, errorFromResult(res)
	}
	return appliedResult(ref), nil
}

func (s *Server) listingBuy(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	var p struct {
		assetParams
		Buyer string `json:"buyer"`
	}
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	ref, rpcErr := p.ref()
	if rpcErr != nil {
		return nil, rpcErr
	}

	if res := s.mkt.BuyListing(market.AccountID(p.Buyer), ref); !res.IsSuccess() {
		return nil, errorFromResult(res)
	}
	return appliedResult(ref), nil
}

func (s *Server) auctionCreate(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	var p struct {
		assetParams
		Seller       string    `json:"seller"`
		ReservePrice string    `json:"reserve_price"`
		StartTime    time.Time `json:"start_time"`
		EndTime      time.Time `json:"end_time"`
	}
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	ref, rpcErr := p.ref()
	if rpcErr != nil {
		return nil, rpcErr
	}
	reserve, rpcErr := parseAmount(p.ReservePrice, "reserve_price")
	if rpcErr != nil {
		return nil, rpcErr
	}

	if res := s.mkt.CreateAuction(market.AccountID(p.Seller), ref, reserve, p.StartTime, p.EndTime); !res.IsSuccess() {
		return nil, errorFromResult(res)
	}
	return appliedResult(ref), nil
}

func (s *Server) auctionBid(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	var p struct {
		assetParams
		Bidder string `json:"bidder"`
		Amount string `json:"amount"`
	}
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	ref, rpcErr := p.ref()
	if rpcErr != nil {
		return nil, rpcErr
	}
	amount, rpcErr := parseAmount(p.Amount, "amount")
	if rpcErr != nil {
		return nil, rpcErr
	}

	if res := s.mkt.PlaceBid(market.AccountID(p.Bidder), ref, amount); !res.IsSuccess() {
		return nil, errorFromResult(res)
	}
	return appliedResult(ref), nil
}

// auctionSettle is permissionless: any caller may close an ended auction.
func (s *Server) auctionSettle(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	var p struct {
		assetParams
		Caller string `json:"caller"`
	}
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	ref, rpcErr := p.ref()
	if rpcErr != nil {
		return nil, rpcErr
	}

	if res := s.mkt.SettleAuction(market.AccountID(p.Caller), ref); !res.IsSuccess() {
		return nil, errorFromResult(res)
	}

	result := appliedResult(ref)
	if a, ok := s.mkt.GetAuction(ref); ok {
		result["outcome"] = a.State.String()
		if !a.HighestBidder.IsZero() {
			result["winner"] = string(a.HighestBidder)
			result["amount"] = a.HighestBid.String()
		}
	}
	return result, nil
}
