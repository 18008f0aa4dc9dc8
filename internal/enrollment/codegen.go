package enrollment

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	dErrors "trialgate/pkg/domain-errors"
)

// maxCodeAttempts bounds the collision-retry loop. The code space is wide
// enough that hitting the bound in practice means the existence check itself
// is broken, so giving up and surfacing an error beats spinning.
const maxCodeAttempts = 10

// ExistsFunc reports whether a participant code is already taken.
type ExistsFunc func(ctx context.Context, code string) (bool, error)

// CodeGenerator produces participant codes of the form "P" followed by nine
// digits: the last six digits of the enrollment timestamp in milliseconds,
// then three random digits. The timestamp component spreads codes over time;
// the random suffix separates enrollments landing in the same millisecond.
type CodeGenerator struct {
	suffix func() int
}

// NewCodeGenerator returns a CodeGenerator backed by the default random source.
func NewCodeGenerator() *CodeGenerator {
	return &CodeGenerator{suffix: func() int { return rand.IntN(1000) }}
}

// Generate builds one candidate code for the given instant.
func (g *CodeGenerator) Generate(now time.Time) string {
	return fmt.Sprintf("P%06d%03d", now.UnixMilli()%1_000_000, g.suffix())
}

// GenerateUnique returns a code that the exists check does not know yet,
// retrying on collision up to maxCodeAttempts times. The store's unique
// constraint remains the authoritative guarantee; this loop only keeps the
// happy path free of insert conflicts.
func (g *CodeGenerator) GenerateUnique(ctx context.Context, now time.Time, exists ExistsFunc) (string, error) {
	for range maxCodeAttempts {
		code := g.Generate(now)
		taken, err := exists(ctx, code)
		if err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to check participant code")
		}
		if !taken {
			return code, nil
		}
	}
	return "", dErrors.New(dErrors.CodeCodeExhausted, "could not generate a unique participant code")
}
