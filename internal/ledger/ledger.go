package ledger

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"solana-launch-sniper/internal/models"
)

// ErrUnknownMint is returned by MarkOutcome when no pending entry exists,
// either because the mint was never admitted or because its entry expired.
var ErrUnknownMint = errors.New("mint not in ledger")

// Result reports what TryAdmit found.
type Result struct {
	// Admitted is true when this caller won the claim for the mint.
	Admitted bool
	// State is the recorded decision when Admitted is false.
	State models.DecisionState
}

// Ledger records at most one decision per mint. TryAdmit is an atomic
// test-and-set: across any number of concurrent callers exactly one wins a
// given mint while its entry lives.
type Ledger interface {
	TryAdmit(ctx context.Context, mint string) (Result, error)
	MarkOutcome(ctx context.Context, mint string, state models.DecisionState) error
	Lookup(ctx context.Context, mint string) (models.DecisionState, error)
}

var mintRe = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)

// ValidateMint rejects strings that cannot be a base58 Solana address before
// they reach a store key.
func ValidateMint(mint string) error {
	if !mintRe.MatchString(mint) {
		return fmt.Errorf("invalid mint address %q", mint)
	}
	return nil
}

// DefaultTTL bounds how long a mint stays claimed. A launch not decided and
// settled within this window is stale and may be reconsidered.
const DefaultTTL = 10 * time.Minute
