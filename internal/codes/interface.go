package codes

//go:generate mockgen -package=mocks -destination=mocks/mock_ledger.go sketch-judge/internal/codes Ledger

import "context"

// Ledger remembers every room code ever handed out so a code is never reused.
type Ledger interface {
	// Reserve claims code. It reports false when the code was claimed before.
	Reserve(ctx context.Context, code string) (bool, error)
}
