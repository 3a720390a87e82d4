package market

import "fmt"

// Result is the typed outcome of a marketplace operation. Zero means the call
// was applied; anything else means the call aborted with no state mutation.
type Result int

const (
	// Success: the call was applied in full.
	Success Result = 0

	// Validation failures: the request itself is malformed.
	InvalidPrice     Result = -100
	InvalidTimeRange Result = -101

	// Authorization failures.
	NotSeller     Result = -200
	NotAuthorized Result = -201

	// State-machine failures: the target entry is missing, consumed or closed.
	AssetBusy         Result = 100
	ListingInactive   Result = 101
	AuctionNotActive  Result = 102
	AuctionNotStarted Result = 103
	AuctionEnded      Result = 104
	BidTooLow         Result = 105

	// Transfer failures: the underlying asset or currency movement failed.
	TransferRejected Result = 200
	CustodyViolation Result = 201

	// ReentrancyDetected: a payout hook called back into the engine.
	ReentrancyDetected Result = 300

	// InternalError: invariant breakage that should never happen.
	InternalError Result = 999
)

var resultNames = map[Result]string{
	Success:            "success",
	InvalidPrice:       "invalidPrice",
	InvalidTimeRange:   "invalidTimeRange",
	NotSeller:          "notSeller",
	NotAuthorized:      "notAuthorized",
	AssetBusy:          "assetBusy",
	ListingInactive:    "listingInactive",
	AuctionNotActive:   "auctionNotActive",
	AuctionNotStarted:  "auctionNotStarted",
	AuctionEnded:       "auctionEnded",
	BidTooLow:          "bidTooLow",
	TransferRejected:   "transferRejected",
	CustodyViolation:   "custodyViolation",
	ReentrancyDetected: "reentrancyDetected",
	InternalError:      "internalError",
}

var resultMessages = map[Result]string{
	Success:            "The operation was applied.",
	InvalidPrice:       "Price or amount is zero or out of range.",
	InvalidTimeRange:   "Auction start must precede end and must not be in the past.",
	NotSeller:          "Caller is not the seller of this entry.",
	NotAuthorized:      "Caller lacks the required identity.",
	AssetBusy:          "A competing active sale channel exists for this asset.",
	ListingInactive:    "The listing is consumed, cancelled or does not exist.",
	AuctionNotActive:   "The auction is settled or does not exist.",
	AuctionNotStarted:  "The auction window has not opened yet.",
	AuctionEnded:       "The auction window has closed.",
	BidTooLow:          "Bid is below reserve or not strictly above the current highest bid.",
	TransferRejected:   "The underlying asset or currency transfer was rejected.",
	CustodyViolation:   "The engine does not hold the asset it was asked to release.",
	ReentrancyDetected: "A reentrant call into the engine was rejected.",
	InternalError:      "Internal engine error.",
}

// IsSuccess reports whether the operation was applied.
func (r Result) IsSuccess() bool {
	return r == Success
}

// String returns the short code name, e.g. "bidTooLow".
func (r Result) String() string {
	if name, ok := resultNames[r]; ok {
		return name
	}
	return fmt.Sprintf("unknownResult(%d)", int(r))
}

// Message returns the human-readable description of the result.
func (r Result) Message() string {
	if msg, ok := resultMessages[r]; ok {
		return msg
	}
	return "Unknown result."
}

// Err converts a failure result to an error. Success yields nil.
func (r Result) Err() error {
	if r.IsSuccess() {
		return nil
	}
	return &ResultError{Code: r}
}

// ResultError wraps a failure Result as a Go error for callers outside the
// engine (RPC layer, persistence).
type ResultError struct {
	Code Result
}

func (e *ResultError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code.String(), e.Code.Message())
}
