// Package account owns the single balance ledger. Reads for sizing and
// close-time writes go through one mutex, and every mutation is persisted
// so the balance survives restarts.
package account

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

type balanceFile struct {
	Balance float64 `json:"balance"`
}

// Ledger is the single-owner account balance.
type Ledger struct {
	mu      sync.Mutex
	path    string
	balance float64
}

// Open loads the persisted balance, resetting to initial when the file is
// missing or unreadable.
func Open(path string, initial float64) (*Ledger, error) {
	l := &Ledger{path: path, balance: initial}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var parsed balanceFile
		if jsonErr := json.Unmarshal(data, &parsed); jsonErr != nil {
			logs.Errorf("balance file unreadable, resetting to %.2f, err: %+v", initial, jsonErr)
		} else {
			l.balance = parsed.Balance
			return l, nil
		}
	case os.IsNotExist(err):
	default:
		return nil, errors.Wrap(err, "read balance file")
	}

	if err := l.persistLocked(); err != nil {
		return nil, err
	}
	return l, nil
}

// Balance returns the current balance.
func (l *Ledger) Balance() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance
}

// Apply adds a signed profit-or-loss delta and persists the result. It is
// the only write path; trade-close attribution calls it when P/L is
// known.
func (l *Ledger) Apply(delta float64) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.balance += delta
	if err := l.persistLocked(); err != nil {
		return l.balance, err
	}
	return l.balance, nil
}

func (l *Ledger) persistLocked() error {
	data, err := json.Marshal(balanceFile{Balance: l.balance})
	if err != nil {
		return errors.Wrap(err, "marshal balance")
	}
	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "create balance dir")
		}
	}
	if err := os.WriteFile(l.path, data, 0o644); err != nil {
		return errors.Wrap(err, "write balance file")
	}
	return nil
}
