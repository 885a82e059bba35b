package shared

import "sync"

// TxnLocker serializes lifecycle operations per transaction. Two
// concurrent actions on the same transaction (say a bill submission
// racing a district close) must not interleave between read, compute
// and write; actions on different transactions may run freely.
type TxnLocker struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewTxnLocker constructs an empty locker.
func NewTxnLocker() *TxnLocker {
	return &TxnLocker{locks: make(map[int64]*sync.Mutex)}
}

// Lock acquires the mutex for txnID, creating it on first use. The
// returned function releases it.
func (l *TxnLocker) Lock(txnID int64) func() {
	l.mu.Lock()
	m, ok := l.locks[txnID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[txnID] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}
