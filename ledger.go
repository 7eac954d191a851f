package main

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var (
	ErrInsufficientFunds = errors.New("insufficient stars")
	ErrUnknownAccount    = errors.New("unknown account")
)

// Account is a persistent star balance with lifetime counters
type Account struct {
	Key     string `json:"key"`
	Name    string `json:"name"`
	Balance int    `json:"balance"`
	Kills   int    `json:"kills"`
	Deaths  int    `json:"deaths"`
	Wins    int    `json:"wins"`
}

// Ledger persists account balances and counters
type Ledger interface {
	GetOrCreate(key, name string) (Account, error)
	Balance(key string) (int, error)
	AddBalance(key string, delta int) (int, error)
	ChargeEntry(key string, fee int) (int, error)
	Refund(key string, fee int) (int, error)
	RecordKill(key string) error
	RecordDeath(key string) error
	RecordWin(key string) error
	Top(n int) ([]Account, error)
}

// MemLedger is an in-process Ledger
type MemLedger struct {
	mu           sync.Mutex
	accounts     map[string]*Account
	startBalance int
}

// NewMemLedger creates an empty ledger
func NewMemLedger(startBalance int) *MemLedger {
	return &MemLedger{accounts: make(map[string]*Account), startBalance: startBalance}
}

func (m *MemLedger) get(key string) (*Account, error) {
	a, ok := m.accounts[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, key)
	}
	return a, nil
}

func (m *MemLedger) GetOrCreate(key, name string) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[key]
	if !ok {
		a = &Account{Key: key, Name: name, Balance: m.startBalance}
		m.accounts[key] = a
	}
	return *a, nil
}

func (m *MemLedger) Balance(key string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, err := m.get(key)
	if err != nil {
		return 0, err
	}
	return a.Balance, nil
}

func (m *MemLedger) AddBalance(key string, delta int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, err := m.get(key)
	if err != nil {
		return 0, err
	}
	a.Balance = max(0, a.Balance+delta)
	return a.Balance, nil
}

func (m *MemLedger) ChargeEntry(key string, fee int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, err := m.get(key)
	if err != nil {
		return 0, err
	}
	if a.Balance < fee {
		return a.Balance, ErrInsufficientFunds
	}
	a.Balance -= fee
	return a.Balance, nil
}

func (m *MemLedger) Refund(key string, fee int) (int, error) {
	return m.AddBalance(key, fee)
}

func (m *MemLedger) bump(key string, f func(a *Account)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, err := m.get(key)
	if err != nil {
		return err
	}
	f(a)
	return nil
}

func (m *MemLedger) RecordKill(key string) error {
	return m.bump(key, func(a *Account) { a.Kills++ })
}

func (m *MemLedger) RecordDeath(key string) error {
	return m.bump(key, func(a *Account) { a.Deaths++ })
}

func (m *MemLedger) RecordWin(key string) error {
	return m.bump(key, func(a *Account) { a.Wins++ })
}

func (m *MemLedger) Top(n int) ([]Account, error) {
	m.mu.Lock()
	list := make([]Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		list = append(list, *a)
	}
	m.mu.Unlock()
	sort.Slice(list, func(i, j int) bool {
		if list[i].Balance != list[j].Balance {
			return list[i].Balance > list[j].Balance
		}
		if list[i].Kills != list[j].Kills {
			return list[i].Kills > list[j].Kills
		}
		return list[i].Key < list[j].Key
	})
	if n >= 0 && len(list) > n {
		list = list[:n]
	}
	return list, nil
}

// ledgerOpKind names a queued ledger write
type ledgerOpKind uint8

const (
	opKill ledgerOpKind = iota
	opDeath
	opWin
	opCredit
)

// LedgerOp is one queued write. Done, if set, runs on the writer goroutine
// with the resulting balance for credits.
type LedgerOp struct {
	Kind   ledgerOpKind
	Key    string
	Amount int
	Done   func(balance int, err error)
}

const (
	ledgerQueueSize  = 1024
	ledgerBatchSize  = 50
	ledgerFlushEvery = 250 * time.Millisecond
)

// LedgerWriter applies ledger writes on a background goroutine so the
// room loop never waits on storage
type LedgerWriter struct {
	ledger  Ledger
	ops     chan LedgerOp
	stop    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
	dropped int64
	mu      sync.Mutex
}

// NewLedgerWriter creates and starts the writer
func NewLedgerWriter(l Ledger) *LedgerWriter {
	lw := &LedgerWriter{
		ledger: l,
		ops:    make(chan LedgerOp, ledgerQueueSize),
		stop:   make(chan struct{}),
	}
	lw.wg.Add(1)
	go lw.run()
	return lw
}

// Submit enqueues op without blocking. A full queue drops the op.
func (lw *LedgerWriter) Submit(op LedgerOp) bool {
	select {
	case <-lw.stop:
		return false
	default:
	}
	select {
	case lw.ops <- op:
		return true
	default:
		lw.mu.Lock()
		lw.dropped++
		lw.mu.Unlock()
		Log.Warnw("ledger queue full, dropping write", "key", op.Key, "kind", op.Kind)
		return false
	}
}

// Dropped returns the number of writes lost to a full queue
func (lw *LedgerWriter) Dropped() int64 {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.dropped
}

// Stop flushes queued writes and stops the writer
func (lw *LedgerWriter) Stop() {
	lw.once.Do(func() {
		close(lw.stop)
		lw.wg.Wait()
	})
}

func (lw *LedgerWriter) run() {
	defer lw.wg.Done()

	batch := make([]LedgerOp, 0, ledgerBatchSize)
	ticker := time.NewTicker(ledgerFlushEvery)
	defer ticker.Stop()

	for {
		select {
		case op := <-lw.ops:
			batch = append(batch, op)
			if len(batch) >= ledgerBatchSize {
				lw.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				lw.flush(batch)
				batch = batch[:0]
			}
		case <-lw.stop:
			for {
				select {
				case op := <-lw.ops:
					batch = append(batch, op)
				default:
					lw.flush(batch)
					return
				}
			}
		}
	}
}

func (lw *LedgerWriter) flush(batch []LedgerOp) {
	for _, op := range batch {
		var (
			bal int
			err error
		)
		switch op.Kind {
		case opKill:
			err = lw.ledger.RecordKill(op.Key)
		case opDeath:
			err = lw.ledger.RecordDeath(op.Key)
		case opWin:
			err = lw.ledger.RecordWin(op.Key)
		case opCredit:
			bal, err = lw.ledger.AddBalance(op.Key, op.Amount)
		}
		if err != nil {
			Log.Errorw("ledger write failed", "key", op.Key, "kind", op.Kind, "err", err)
		}
		if op.Done != nil {
			op.Done(bal, err)
		}
	}
}
