/**
 * @description
 * Generates the public identifiers of the ledger: 10-digit account numbers,
 * public user IDs and transaction IDs. Candidates are random; uniqueness is
 * owned by the store's unique constraints and the generator only retries when
 * an insert reports a collision.
 *
 * @dependencies
 * - crypto/rand, math/big: uniform random draws.
 */

package identifier

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log"
	"math/big"
	"strings"
	"time"
)

// Kind names an identifier namespace.
type Kind string

const (
	KindAccountNumber Kind = "account_number"
	KindUserID        Kind = "user_id"
	KindTransactionID Kind = "transaction_id"
)

// DefaultMaxAttempts bounds how many candidates Reserve tries before giving up.
const DefaultMaxAttempts = 20

const (
	alphanumeric     = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	accountNumberMax = 10_000_000_000
)

var (
	ErrCollision           = errors.New("identifier already in use")
	ErrGenerationExhausted = errors.New("identifier generation exhausted")
)

// CollisionError reports that the store rejected a candidate because the
// value already exists for Kind.
type CollisionError struct {
	Kind  Kind
	Value string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("%s %q already in use", e.Kind, e.Value)
}

func (e *CollisionError) Is(target error) bool {
	return target == ErrCollision
}

// Checker is an optional read-side pre-check. It narrows the window for
// collisions but never replaces the store constraint.
type Checker interface {
	IdentifierExists(ctx context.Context, kind Kind, value string) (bool, error)
}

// Generator is stateless apart from its sources; it is safe for concurrent use.
type Generator struct {
	checker     Checker
	maxAttempts int
	now         func() time.Time
	random      io.Reader
}

// Option configures a Generator.
type Option func(*Generator)

func WithChecker(checker Checker) Option {
	return func(g *Generator) { g.checker = checker }
}

func WithMaxAttempts(attempts int) Option {
	return func(g *Generator) {
		if attempts > 0 {
			g.maxAttempts = attempts
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

func WithRandom(r io.Reader) Option {
	return func(g *Generator) {
		if r != nil {
			g.random = r
		}
	}
}

func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		maxAttempts: DefaultMaxAttempts,
		now:         time.Now,
		random:      rand.Reader,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// AccountNumber draws uniformly from [0, 9999999999] and zero-pads to 10 digits.
func (g *Generator) AccountNumber() (string, error) {
	n, err := rand.Int(g.random, big.NewInt(accountNumberMax))
	if err != nil {
		return "", fmt.Errorf("draw account number: %w", err)
	}
	return fmt.Sprintf("%010d", n.Int64()), nil
}

// UserID returns USR-<YYYYMMDD>-<4 uppercase alphanumerics>.
func (g *Generator) UserID() (string, error) {
	suffix, err := g.randomString(4)
	if err != nil {
		return "", err
	}
	return "USR-" + g.now().UTC().Format("20060102") + "-" + suffix, nil
}

// TransactionID returns TXN<YYYYMMDD><8 uppercase alphanumerics>.
func (g *Generator) TransactionID() (string, error) {
	suffix, err := g.randomString(8)
	if err != nil {
		return "", err
	}
	return "TXN" + g.now().UTC().Format("20060102") + suffix, nil
}

// Next draws one candidate for kind.
func (g *Generator) Next(kind Kind) (string, error) {
	switch kind {
	case KindAccountNumber:
		return g.AccountNumber()
	case KindUserID:
		return g.UserID()
	case KindTransactionID:
		return g.TransactionID()
	default:
		return "", fmt.Errorf("unknown identifier kind %q", kind)
	}
}

// Reserve draws candidates for kind and hands each to insert until one is
// accepted. A collision on kind triggers a fresh draw; any other error,
// including a collision on a different kind, is returned unchanged so an
// enclosing Reserve can handle it.
func (g *Generator) Reserve(ctx context.Context, kind Kind, insert func(ctx context.Context, value string) error) (string, error) {
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		candidate, err := g.Next(kind)
		if err != nil {
			return "", err
		}

		if g.checker != nil {
			exists, err := g.checker.IdentifierExists(ctx, kind, candidate)
			if err != nil {
				return "", fmt.Errorf("check %s uniqueness: %w", kind, err)
			}
			if exists {
				continue
			}
		}

		err = insert(ctx, candidate)
		if err == nil {
			return candidate, nil
		}
		if !collidesOn(err, kind) {
			return "", err
		}
	}

	log.Printf("level=error component=identifier msg=\"generation exhausted\" kind=%s attempts=%d", kind, g.maxAttempts)
	return "", fmt.Errorf("%w: %s after %d attempts", ErrGenerationExhausted, kind, g.maxAttempts)
}

func collidesOn(err error, kind Kind) bool {
	var collision *CollisionError
	if errors.As(err, &collision) {
		return collision.Kind == kind
	}
	return errors.Is(err, ErrCollision)
}

func (g *Generator) randomString(length int) (string, error) {
	var b strings.Builder
	b.Grow(length)
	max := big.NewInt(int64(len(alphanumeric)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(g.random, max)
		if err != nil {
			return "", fmt.Errorf("draw identifier character: %w", err)
		}
		b.WriteByte(alphanumeric[n.Int64()])
	}
	return b.String(), nil
}
