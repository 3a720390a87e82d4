package rpc

import (
	"encoding/json"
	"time"

	"github.com/openmrkt/marketd/internal/core/market"
)

func (s *Server) registerQueryMethods() {
	s.registry.MustRegister(&method{name: "listing", fn: s.listingQuery})
	s.registry.MustRegister(&method{name: "auction", fn: s.auctionQuery})
	s.registry.MustRegister(&method{name: "fee_info", fn: s.feeInfo})
	s.registry.MustRegister(&method{name: "royalty_info", fn: s.royaltyInfo})
	s.registry.MustRegister(&method{name: "collection_allowed", fn: s.collectionAllowed})
	s.registry.MustRegister(&method{name: "escrow_balance", fn: s.escrowBalance})
	s.registry.MustRegister(&method{name: "server_info", fn: s.serverInfo})
}

func listingView(l market.Listing) map[string]interface{} {
	return map[string]interface{}{
		"seller": string(l.Seller),
		"asset":  l.Asset,
		"price":  l.Price.String(),
		"active": l.Active,
	}
}

func auctionView(a market.Auction) map[string]interface{} {
	view := map[string]interface{}{
		"seller":        string(a.Seller),
		"asset":         a.Asset,
		"reserve_price": a.ReservePrice.String(),
		"start_time":    a.StartTime,
		"end_time":      a.EndTime,
		"highest_bid":   a.HighestBid.String(),
		"state":         a.State.String(),
	}
	if !a.HighestBidder.IsZero() {
		view["highest_bidder"] = string(a.HighestBidder)
	}
	return view
}

func (s *Server) listingQuery(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	var p assetParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	ref, rpcErr := p.ref()
	if rpcErr != nil {
		return nil, rpcErr
	}

	cacheKey := "listing/" + ref.Key()
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached, nil
	}

	l, ok := s.mkt.GetListing(ref)
	if !ok {
		return nil, RpcErrorNotFound("no listing for asset " + ref.Key())
	}
	view := listingView(l)
	s.cache.Put(cacheKey, view)
	return view, nil
}

func (s *Server) auctionQuery(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	var p assetParams
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	ref, rpcErr := p.ref()
	if rpcErr != nil {
		return nil, rpcErr
	}

	cacheKey := "auction/" + ref.Key()
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached, nil
	}

	a, ok := s.mkt.GetAuction(ref)
	if !ok {
		return nil, RpcErrorNotFound("no auction for asset " + ref.Key())
	}
	view := auctionView(a)
	s.cache.Put(cacheKey, view)
	return view, nil
}

func (s *Server) feeInfo(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	if cached, ok := s.cache.Get("fee_info"); ok {
		return cached, nil
	}

	bps, recipient := s.mkt.FeeInfo()
	view := map[string]interface{}{
		"fee_bps":       bps,
		"fee_recipient": string(recipient),
		"owner":         string(s.mkt.Owner()),
	}
	s.cache.Put("fee_info", view)
	return view, nil
}

func (s *Server) royaltyInfo(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	var p struct {
		Collection string `json:"collection"`
	}
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if p.Collection == "" {
		return nil, RpcErrorInvalidParams("collection is required")
	}

	rc := s.mkt.RoyaltyInfo(p.Collection)
	return map[string]interface{}{
		"collection": p.Collection,
		"recipient":  string(rc.Recipient),
		"bps":        rc.Bps,
	}, nil
}

func (s *Server) collectionAllowed(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	var p struct {
		Collection string `json:"collection"`
	}
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if p.Collection == "" {
		return nil, RpcErrorInvalidParams("collection is required")
	}
	return map[string]interface{}{
		"collection": p.Collection,
		"allowed":    s.mkt.CollectionAllowed(p.Collection),
	}, nil
}

func (s *Server) escrowBalance(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	return map[string]interface{}{
		"balance": s.mkt.EscrowBalance().String(),
	}, nil
}

func (s *Server) serverInfo(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	return map[string]interface{}{
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
		"methods":        len(s.registry.Methods()),
		"time":           time.Now().UTC(),
	}, nil
}
