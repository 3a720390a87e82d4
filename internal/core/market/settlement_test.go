package market_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmrkt/marketd/internal/core/currency"
	"github.com/openmrkt/marketd/internal/core/market"
)

func TestComputeSplit(t *testing.T) {
	tests := []struct {
		name       string
		gross      string
		feeBps     uint32
		royaltyBps uint32
		fee        string
		royalty    string
		net        string
	}{
		{"standard", "100.000000", 250, 500, "2.500000", "5.000000", "92.500000"},
		{"no royalty", "100.000000", 250, 0, "2.500000", "0.000000", "97.500000"},
		{"no fee", "100.000000", 0, 500, "0.000000", "5.000000", "95.000000"},
		{"all fee", "100.000000", 10000, 0, "100.000000", "0.000000", "0.000000"},
		// 0.000001 at 250bps truncates to zero; the dust stays with the seller.
		{"dust", "0.000001", 250, 500, "0.000000", "0.000000", "0.000001"},
		// 33.333333 * 250 / 10000 = 0.833333325 -> floor 0.833333
		{"truncation", "33.333333", 250, 500, "0.833333", "1.666666", "30.833334"},
		// Combined rates above 100% cap the royalty at what the fee left.
		{"combined over 100%", "100.000000", 6000, 6000, "60.000000", "40.000000", "0.000000"},
		{"fee takes everything", "100.000000", 10000, 500, "100.000000", "0.000000", "0.000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gross := amt(t, tt.gross)
			split := market.ComputeSplit(gross, tt.feeBps, tt.royaltyBps)

			assert.Equal(t, amt(t, tt.fee), split.ProtocolFee)
			assert.Equal(t, amt(t, tt.royalty), split.Royalty)
			assert.Equal(t, amt(t, tt.net), split.SellerNet)

			// Conservation: no value created or destroyed.
			require.Equal(t, gross, split.ProtocolFee+split.Royalty+split.SellerNet)
		})
	}
}

func TestComputeSplitConservation(t *testing.T) {
	// Sweep awkward amounts and rates; the three shares must always sum to
	// the gross exactly.
	amounts := []uint64{1, 3, 7, 999_999, 1_000_001, 123_456_789, 999_999_999_999}
	rates := []uint32{0, 1, 99, 250, 333, 500, 2500, 9999, 10000}

	for _, a := range amounts {
		for _, fee := range rates {
			for _, roy := range rates {
				gross := currency.Amount(a)
				split := market.ComputeSplit(gross, fee, roy)
				require.Equal(t, gross, split.ProtocolFee+split.Royalty+split.SellerNet,
					"gross=%d fee=%d royalty=%d", a, fee, roy)
			}
		}
	}
}

func TestSettleRoyaltyWithoutRecipientFoldsIntoSeller(t *testing.T) {
	env := newTestEnv(t)
	ref := asset("s1")
	env.mint(ref, alice)
	env.fund(bob, "100.000000")

	// Royalty rate configured with no recipient: the share folds into the
	// seller payout instead of being destroyed.
	require.Equal(t, market.Success,
		env.mkt.SetRoyalty(owner, ref.Collection, market.RoyaltyConfig{Bps: 500}))

	require.Equal(t, market.Success, env.mkt.CreateListing(alice, ref, amt(t, "100.000000")))
	require.Equal(t, market.Success, env.mkt.BuyListing(bob, ref))

	require.Equal(t, amt(t, "2.500000"), env.funds.Balance(vault))
	require.Equal(t, amt(t, "97.500000"), env.funds.Balance(alice))
	require.True(t, env.mkt.EscrowBalance().IsZero())
}

func TestSettleRollbackRestoresEveryBalance(t *testing.T) {
	env := newTestEnv(t)
	ref := asset("s2")
	env.mint(ref, alice)
	env.fund(bob, "100.000000")

	require.Equal(t, market.Success,
		env.mkt.SetRoyalty(owner, ref.Collection, market.RoyaltyConfig{Recipient: creator, Bps: 500}))
	require.Equal(t, market.Success, env.mkt.CreateListing(alice, ref, amt(t, "100.000000")))

	// The seller rejects funds, so the failure happens on the last payout:
	// fee and royalty were already paid and must be compensated back.
	env.funds.SetReceiveHook(alice, func(from, to market.AccountID, a currency.Amount) error {
		return assert.AnError
	})

	require.Equal(t, market.TransferRejected, env.mkt.BuyListing(bob, ref))

	require.Equal(t, amt(t, "100.000000"), env.funds.Balance(bob))
	require.True(t, env.funds.Balance(vault).IsZero())
	require.True(t, env.funds.Balance(creator).IsZero())
	require.True(t, env.funds.Balance(alice).IsZero())
	require.True(t, env.mkt.EscrowBalance().IsZero())
}
