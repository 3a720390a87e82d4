package rpc

import (
	"encoding/json"

	"github.com/openmrkt/marketd/internal/core/market"
)

// Admin methods carry the caller account; the engine enforces that it matches
// the configuration owner.
func (s *Server) registerAdminMethods() {
	s.registry.MustRegister(&method{name: "fee_set", mutating: true, fn: s.feeSet})
	s.registry.MustRegister(&method{name: "fee_recipient_set", mutating: true, fn: s.feeRecipientSet})
	s.registry.MustRegister(&method{name: "royalty_set", mutating: true, fn: s.royaltySet})
	s.registry.MustRegister(&method{name: "collection_allow", mutating: true, fn: s.collectionAllow})
	s.registry.MustRegister(&method{name: "ownership_transfer", mutating: true, fn: s.ownershipTransfer})
}

func (s *Server) feeSet(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	var p struct {
		Caller string `json:"caller"`
		Bps    uint32 `json:"bps"`
	}
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if res := s.mkt.SetProtocolFee(market.AccountID(p.Caller), p.Bps); !res.IsSuccess() {
		return nil, errorFromResult(res)
	}
	return map[string]interface{}{"applied": true, "bps": p.Bps}, nil
}

func (s *Server) feeRecipientSet(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	var p struct {
		Caller    string `json:"caller"`
		Recipient string `json:"recipient"`
	}
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if res := s.mkt.SetFeeRecipient(market.AccountID(p.Caller), market.AccountID(p.Recipient)); !res.IsSuccess() {
		return nil, errorFromResult(res)
	}
	return map[string]interface{}{"applied": true, "recipient": p.Recipient}, nil
}

func (s *Server) royaltySet(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	var p struct {
		Caller     string `json:"caller"`
		Collection string `json:"collection"`
		Recipient  string `json:"recipient"`
		Bps        uint32 `json:"bps"`
	}
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if p.Collection == "" {
		return nil, RpcErrorInvalidParams("collection is required")
	}

	rc := market.RoyaltyConfig{Recipient: market.AccountID(p.Recipient), Bps: p.Bps}
	if res := s.mkt.SetRoyalty(market.AccountID(p.Caller), p.Collection, rc); !res.IsSuccess() {
		return nil, errorFromResult(res)
	}
	return map[string]interface{}{"applied": true, "collection": p.Collection}, nil
}

func (s *Server) collectionAllow(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	var p struct {
		Caller     string `json:"caller"`
		Collection string `json:"collection"`
		Allowed    bool   `json:"allowed"`
	}
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if p.Collection == "" {
		return nil, RpcErrorInvalidParams("collection is required")
	}
	if res := s.mkt.SetCollectionAllowed(market.AccountID(p.Caller), p.Collection, p.Allowed); !res.IsSuccess() {
		return nil, errorFromResult(res)
	}
	return map[string]interface{}{"applied": true, "collection": p.Collection, "allowed": p.Allowed}, nil
}

func (s *Server) ownershipTransfer(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	var p struct {
		Caller   string `json:"caller"`
		NewOwner string `json:"new_owner"`
	}
	if rpcErr := decodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if res := s.mkt.TransferOwnership(market.AccountID(p.Caller), market.AccountID(p.NewOwner)); !res.IsSuccess() {
		return nil, errorFromResult(res)
	}
	return map[string]interface{}{"applied": true, "owner": p.NewOwner}, nil
}
