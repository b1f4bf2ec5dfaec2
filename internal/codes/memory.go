package codes

import (
	"context"
	"sync"
)

type memoryLedger struct {
	mu    sync.Mutex
	codes map[string]struct{}
}

// NewMemory returns a process-local ledger.
func NewMemory() *memoryLedger {
	return &memoryLedger{
		codes: make(map[string]struct{}),
	}
}

func (l *memoryLedger) Reserve(ctx context.Context, code string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.codes[code]; ok {
		return false, nil
	}
	l.codes[code] = struct{}{}
	return true, nil
}
