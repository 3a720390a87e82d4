package rpc

import (
	"encoding/json"

	"github.com/openmrkt/marketd/internal/core/market"
	"github.com/openmrkt/marketd/internal/storage/saledb"
)

// History methods read the relational sale database. They are registered even
// when the database is disabled so clients get a clear notSupported error
// instead of unknownCmd.
func (s *Server) registerHistoryMethods() {
	s.registry.MustRegister(&method{name: "sales", fn: s.salesQuery})
	s.registry.MustRegister(&method{name: "events", fn: s.eventsQuery})
}

func saleView(rec saledb.SaleRecord) map[string]interface{} {
	return map[string]interface{}{
		"kind":        string(rec.Kind),
		"collection":  rec.Collection,
		"token_id":    rec.TokenID,
		"seller":      string(rec.Seller),
		"buyer":       string(rec.Buyer),
		"gross":       rec.Gross.String(),
		"fee":         rec.Fee.String(),
		"royalty":     rec.Royalty.String(),
		"seller_net":  rec.SellerNet.String(),
		"occurred_at": rec.OccurredAt,
	}
}

func (s *Server) salesQuery(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	if s.sales == nil {
		return nil, RpcErrorNotSupported("sale history is disabled")
	}

	var p struct {
		Collection string `json:"collection"`
		TokenID    string `json:"token_id"`
		Seller     string `json:"seller"`
		Limit      int    `json:"limit"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, RpcErrorInvalidParams("malformed parameters: " + err.Error())
		}
	}
	if p.Limit <= 0 || p.Limit > 500 {
		p.Limit = 100
	}

	records, err := s.sales.Sales(ctx.Context, saledb.SaleQuery{
		Collection: p.Collection,
		TokenID:    p.TokenID,
		Seller:     market.AccountID(p.Seller),
		Limit:      p.Limit,
	})
	if err != nil {
		return nil, RpcErrorInternal(err.Error())
	}

	views := make([]map[string]interface{}, 0, len(records))
	for _, rec := range records {
		views = append(views, saleView(rec))
	}
	return map[string]interface{}{
		"sales": views,
		"count": len(views),
	}, nil
}

func (s *Server) eventsQuery(ctx *RpcContext, params json.RawMessage) (interface{}, *RpcError) {
	if s.sales == nil {
		return nil, RpcErrorNotSupported("event history is disabled")
	}

	var p struct {
		Limit int `json:"limit"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, RpcErrorInvalidParams("malformed parameters: " + err.Error())
		}
	}
	if p.Limit <= 0 || p.Limit > 500 {
		p.Limit = 100
	}

	records, err := s.sales.Events(ctx.Context, p.Limit)
	if err != nil {
		return nil, RpcErrorInternal(err.Error())
	}

	type eventView struct {
		Type       string          `json:"type"`
		Payload    json.RawMessage `json:"payload"`
		OccurredAt interface{}     `json:"occurred_at"`
	}
	views := make([]eventView, 0, len(records))
	for _, rec := range records {
		views = append(views, eventView{Type: rec.Type, Payload: rec.Payload, OccurredAt: rec.OccurredAt})
	}
	return map[string]interface{}{
		"events": views,
		"count":  len(views),
	}, nil
}
