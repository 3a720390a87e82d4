package market

import (
	"sync"

	"github.com/openmrkt/marketd/internal/core/currency"
)

// FundsLedger tracks settlement-currency balances. The engine moves value
// between caller accounts and its own escrow account through this interface;
// it never creates or destroys value.
//
// Transfer may invoke a recipient-side hook and is therefore allowed to fail;
// credit used for rollback compensation bypasses hooks and cannot fail.
type FundsLedger interface {
	// Balance returns the current balance of an account. Unknown accounts
	// have a zero balance.
	Balance(acct AccountID) currency.Amount

	// Transfer moves amt from one account to another. It fails if the source
	// balance is insufficient or the recipient rejects the funds.
	Transfer(from, to AccountID, amt currency.Amount) error

	// Compensate moves amt back without invoking recipient hooks. Used only
	// to unwind partially executed settlements; the source balance is
	// guaranteed by the caller.
	Compensate(from, to AccountID, amt currency.Amount) error
}

// ReceiveHook is invoked before funds are credited to an account. Returning an
// error rejects the transfer. Tests use this to model malicious or
// always-rejecting payout recipients.
type ReceiveHook func(from, to AccountID, amt currency.Amount) error

// MemoryFunds is the in-process FundsLedger. Balances live in a map guarded by
// a mutex; per-account receive hooks model recipients that reject funds.
type MemoryFunds struct {
	mu       sync.RWMutex
	balances map[AccountID]currency.Amount
	hooks    map[AccountID]ReceiveHook
}

// NewMemoryFunds creates an empty in-memory funds ledger.
func NewMemoryFunds() *MemoryFunds {
	return &MemoryFunds{
		balances: make(map[AccountID]currency.Amount),
		hooks:    make(map[AccountID]ReceiveHook),
	}
}

// Credit mints amt into an account. Used by deposits and test funding; the
// engine itself never calls it.
func (f *MemoryFunds) Credit(acct AccountID, amt currency.Amount) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	next, err := f.balances[acct].Add(amt)
	if err != nil {
		return err
	}
	f.balances[acct] = next
	return nil
}

// SetReceiveHook installs a hook on an account. A nil hook removes it.
func (f *MemoryFunds) SetReceiveHook(acct AccountID, hook ReceiveHook) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if hook == nil {
		delete(f.hooks, acct)
		return
	}
	f.hooks[acct] = hook
}

func (f *MemoryFunds) Balance(acct AccountID) currency.Amount {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.balances[acct]
}

func (f *MemoryFunds) Transfer(from, to AccountID, amt currency.Amount) error {
	f.mu.Lock()
	hook := f.hooks[to]
	f.mu.Unlock()

	// The hook runs outside the ledger lock: it may call back into the
	// engine, which must observe the reentrancy guard, not a deadlock.
	if hook != nil {
		if err := hook(from, to, amt); err != nil {
			return err
		}
	}

	return f.move(from, to, amt)
}

func (f *MemoryFunds) Compensate(from, to AccountID, amt currency.Amount) error {
	return f.move(from, to, amt)
}

func (f *MemoryFunds) move(from, to AccountID, amt currency.Amount) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	src, err := f.balances[from].Sub(amt)
	if err != nil {
		return err
	}
	dst, err := f.balances[to].Add(amt)
	if err != nil {
		return err
	}
	f.balances[from] = src
	f.balances[to] = dst
	return nil
}
