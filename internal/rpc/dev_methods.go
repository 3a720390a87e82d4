package rpc

import (
	"encoding/json"

	"github.com/openmrkt/marketd/internal/core/market"
)

// Standalone-mode methods. They operate directly on the in-memory asset
// registry and funds ledger, so a single node can be exercised without an
// external chain. Registered only when the server is built with both.
func (s *Server) registerDevMethods(registry *market.MemoryRegistry, funds *market.MemoryFunds) {
	s.registry.MustRegister(&method{name: "dev_mint", mutating: true,
		fn: func(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
			var p struct {
				assetParams
				Owner string `json:"owner"`
			}
			if rpcErr := decodeParams(params, &p); rpcErr != nil {
				return nil, rpcErr
			}
			ref, rpcErr := p.ref()
			if rpcErr != nil {
				return nil, rpcErr
			}
			if p.Owner == "" {
				return nil, RpcErrorInvalidParams("owner is required")
			}
			if err := registry.Mint(ref, market.AccountID(p.Owner)); err != nil {
				return nil, RpcErrorInvalidParams(err.Error())
			}
			// Pre-approve the engine so the owner can list immediately.
			if err := registry.Approve(market.AccountID(p.Owner), market.EscrowAccount, ref); err != nil {
				return nil, RpcErrorInternal(err.Error())
			}
			return appliedResult(ref), nil
		}})

	s.registry.MustRegister(&method{name: "dev_fund", mutating: true,
		fn: func(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
			var p struct {
				Account string `json:"account"`
				Amount  string `json:"amount"`
			}
			if rpcErr := decodeParams(params, &p); rpcErr != nil {
				return nil, rpcErr
			}
			if p.Account == "" {
				return nil, RpcErrorInvalidParams("account is required")
			}
			amount, rpcErr := parseAmount(p.Amount, "amount")
			if rpcErr != nil {
				return nil, rpcErr
			}
			if err := funds.Credit(market.AccountID(p.Account), amount); err != nil {
				return nil, RpcErrorInvalidParams(err.Error())
			}
			return map[string]interface{}{
				"applied": true,
				"balance": funds.Balance(market.AccountID(p.Account)).String(),
			}, nil
		}})

	s.registry.MustRegister(&method{name: "dev_balance",
		fn: func(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
			var p struct {
				Account string `json:"account"`
			}
			if rpcErr := decodeParams(params, &p); rpcErr != nil {
				return nil, rpcErr
			}
			if p.Account == "" {
				return nil, RpcErrorInvalidParams("account is required")
			}
			return map[string]interface{}{
				"account": p.Account,
				"balance": funds.Balance(market.AccountID(p.Account)).String(),
			}, nil
		}})
}
