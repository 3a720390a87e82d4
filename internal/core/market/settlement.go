package market

import (
	"github.com/openmrkt/marketd/internal/core/currency"
)

// Split is the three-way division of a gross sale amount.
type Split struct {
	ProtocolFee currency.Amount
	Royalty     currency.Amount
	SellerNet   currency.Amount
}

// ComputeSplit divides gross by the fee and royalty rates using floor
// division. Truncation always favors the seller: the protocol and royalty
// shares round down and the remainder accrues to SellerNet, so
// ProtocolFee + Royalty + SellerNet == gross exactly.
func ComputeSplit(gross currency.Amount, feeBps, royaltyBps uint32) Split {
	fee := gross.SplitBps(feeBps)
	royalty := gross.SplitBps(royaltyBps)
	// AdminConfig rejects combined rates above 100%; cap the royalty anyway
	// so the shares can never exceed the gross.
	if remaining := gross - fee; royalty > remaining {
		royalty = remaining
	}
	return Split{
		ProtocolFee: fee,
		Royalty:     royalty,
		SellerNet:   gross - fee - royalty,
	}
}

// Payout names the parties of one settlement.
type Payout struct {
	Payer            AccountID
	Seller           AccountID
	FeeRecipient     AccountID
	RoyaltyRecipient AccountID
}

// SettlementEngine executes atomic multi-party payouts against the funds
// ledger. Rates are read from AdminConfig at settlement time, never cached on
// the listing or auction, so a rate change applies to every future settlement
// immediately.
type SettlementEngine struct {
	funds FundsLedger
}

func NewSettlementEngine(funds FundsLedger) *SettlementEngine {
	return &SettlementEngine{funds: funds}
}

// Settle pulls gross from the payer into escrow and pays out the three
// shares. If any step fails, every completed step is compensated and the
// whole settlement reports TransferRejected: a partially paid sale is never
// observable. fromEscrow indicates the gross amount is already held by the
// escrow account (auction settlement) and must not be pulled again.
func (s *SettlementEngine) Settle(gross currency.Amount, split Split, p Payout, fromEscrow bool) Result {
	if !fromEscrow {
		if err := s.funds.Transfer(p.Payer, EscrowAccount, gross); err != nil {
			return TransferRejected
		}
	}

	// Payouts in fixed order: fee, royalty, seller. Compensation unwinds in
	// reverse so escrow is made whole before the payer is refunded.
	paid := make([]struct {
		to  AccountID
		amt currency.Amount
	}, 0, 3)

	abort := func() Result {
		for i := len(paid) - 1; i >= 0; i-- {
			// Compensation bypasses recipient hooks and cannot fail; the
			// funds are known to exist because we just moved them.
			_ = s.funds.Compensate(paid[i].to, EscrowAccount, paid[i].amt)
		}
		if !fromEscrow {
			_ = s.funds.Compensate(EscrowAccount, p.Payer, gross)
		}
		return TransferRejected
	}

	if split.ProtocolFee.IsPositive() {
		if err := s.funds.Transfer(EscrowAccount, p.FeeRecipient, split.ProtocolFee); err != nil {
			return abort()
		}
		paid = append(paid, struct {
			to  AccountID
			amt currency.Amount
		}{p.FeeRecipient, split.ProtocolFee})
	}

	if split.Royalty.IsPositive() && !p.RoyaltyRecipient.IsZero() {
		if err := s.funds.Transfer(EscrowAccount, p.RoyaltyRecipient, split.Royalty); err != nil {
			return abort()
		}
		paid = append(paid, struct {
			to  AccountID
			amt currency.Amount
		}{p.RoyaltyRecipient, split.Royalty})
	}

	// Royalty configured with no recipient folds into the seller share so no
	// value is destroyed.
	sellerShare := split.SellerNet
	if split.Royalty.IsPositive() && p.RoyaltyRecipient.IsZero() {
		sellerShare += split.Royalty
	}

	if sellerShare.IsPositive() {
		if err := s.funds.Transfer(EscrowAccount, p.Seller, sellerShare); err != nil {
			return abort()
		}
	}

	return Success
}

// Unwind reverses a settlement that Settle already completed: the payouts are
// compensated back into escrow and, unless the gross was escrowed to begin
// with, returned to the payer. Used when a step after the payouts fails and
// the sale must not stand.
func (s *SettlementEngine) Unwind(gross currency.Amount, split Split, p Payout, fromEscrow bool) {
	if split.ProtocolFee.IsPositive() {
		_ = s.funds.Compensate(p.FeeRecipient, EscrowAccount, split.ProtocolFee)
	}

	sellerShare := split.SellerNet
	if split.Royalty.IsPositive() {
		if p.RoyaltyRecipient.IsZero() {
			sellerShare += split.Royalty
		} else {
			_ = s.funds.Compensate(p.RoyaltyRecipient, EscrowAccount, split.Royalty)
		}
	}
	if sellerShare.IsPositive() {
		_ = s.funds.Compensate(p.Seller, EscrowAccount, sellerShare)
	}

	if !fromEscrow {
		_ = s.funds.Compensate(EscrowAccount, p.Payer, gross)
	}
}
