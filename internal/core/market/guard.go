package market

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

// callGuard rejects reentrant calls into the facade. The guard is scoped to
// the whole facade, not to one asset: a payout hook that calls back into any
// state-changing operation is rejected, even for an unrelated asset. Distinct
// callers on other goroutines are unaffected, so cross-asset operations still
// run concurrently.
type callGuard struct {
	active sync.Map // goroutine id -> struct{}
}

// enter registers the calling goroutine. It returns false when the goroutine
// already has a marketplace call in flight, which is exactly the reentrancy
// case: hooks run synchronously on the caller's goroutine.
func (g *callGuard) enter() bool {
	gid := goroutineID()
	if _, loaded := g.active.LoadOrStore(gid, struct{}{}); loaded {
		return false
	}
	return true
}

func (g *callGuard) exit() {
	g.active.Delete(goroutineID())
}

// goroutineID parses the current goroutine's id from its stack header
// ("goroutine N [running]:"). runtime.Stack is the only stable way to get it.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return 0
	}
	id, err := strconv.ParseUint(string(fields[1]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// assetLocks serializes state-changing operations per asset reference. Every
// multi-step operation (bid with refund, purchase with split and release,
// settlement) runs as one critical section for its asset; operations on
// different assets do not contend.
type assetLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newAssetLocks() *assetLocks {
	return &assetLocks{locks: make(map[string]*sync.Mutex)}
}

// lock acquires the mutex for one asset key and returns its unlock func.
func (l *assetLocks) lock(key string) func() {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
