package graduation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"

	"curve-launchpad/internal/domain"
	"curve-launchpad/internal/observability"
	"curve-launchpad/internal/storage"
)

// Outcome is the result of one graduation check on a token.
type Outcome string

const (
	// OutcomeNotReady means the market cap is below the threshold.
	OutcomeNotReady Outcome = "not_ready"

	// OutcomeAlreadyHandled means the token already graduated.
	OutcomeAlreadyHandled Outcome = "already_handled"

	// OutcomeLockLost means another checker won the migration lock.
	OutcomeLockLost Outcome = "lock_lost"

	// OutcomeHandoffPending means the lock is held but the pool handoff
	// failed; the token stays migrating and a later check resumes it.
	OutcomeHandoffPending Outcome = "handoff_pending"

	// OutcomeGraduated means the token completed migration.
	OutcomeGraduated Outcome = "graduated"
)

// ErrUnknownMint is returned when a check targets a missing token.
var ErrUnknownMint = errors.New("unknown mint")

// CheckResult is one token's graduation check: the outcome plus the
// valuation it was decided on. PoolReference and MigrationTimestamp are set
// once the token has a pool, whether from this check or an earlier one.
type CheckResult struct {
	MintID             string
	Outcome            Outcome
	MarketCapUSD       decimal.Decimal
	ProgressPct        decimal.Decimal
	Ready              bool
	PoolReference      string
	MigrationTimestamp int64
}

// GraduatedCount counts results that completed a migration.
func GraduatedCount(results []*CheckResult) int {
	n := 0
	for _, res := range results {
		if res.Outcome == OutcomeGraduated {
			n++
		}
	}
	return n
}

// Notifier receives best-effort migration events. Failures are logged and
// never affect the migration itself.
type Notifier interface {
	TokenGraduated(token *domain.Token, poolReference string)
}

// Coordinator runs the one-way active → migrating → graduated transition.
type Coordinator struct {
	tokens    storage.TokenStore
	evaluator *Evaluator
	handoff   PoolHandoff
	notifier  Notifier // optional
	logger    *log.Logger
	nowMs     func() int64
}

// CoordinatorConfig configures a Coordinator.
type CoordinatorConfig struct {
	Tokens    storage.TokenStore
	Evaluator *Evaluator
	Handoff   PoolHandoff
	Notifier  Notifier
	Logger    *log.Logger
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(cfg CoordinatorConfig) (*Coordinator, error) {
	if cfg.Tokens == nil || cfg.Evaluator == nil || cfg.Handoff == nil {
		return nil, fmt.Errorf("coordinator: tokens, evaluator, and handoff are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Coordinator{
		tokens:    cfg.Tokens,
		evaluator: cfg.Evaluator,
		handoff:   cfg.Handoff,
		notifier:  cfg.Notifier,
		logger:    logger,
		nowMs:     func() int64 { return time.Now().UnixMilli() },
	}, nil
}

// EvaluateAndMigrate checks one token and, if it clears the threshold,
// migrates it. Safe to call concurrently for the same mint: exactly one
// caller wins the lock, the rest observe OutcomeLockLost.
//
// A token found already migrating skips evaluation and resumes at the
// handoff, so a crash between lock and finalize is recoverable.
func (c *Coordinator) EvaluateAndMigrate(ctx context.Context, mintID string) (*CheckResult, error) {
	token, err := c.tokens.GetByMint(ctx, mintID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUnknownMint
		}
		return nil, fmt.Errorf("read token: %w", err)
	}

	res, err := c.check(ctx, token)
	if err == nil {
		observability.RecordGraduationCheck(string(res.Outcome))
	}
	return res, err
}

func (c *Coordinator) check(ctx context.Context, token *domain.Token) (*CheckResult, error) {
	res := &CheckResult{MintID: token.MintID}

	switch token.Status {
	case domain.StatusGraduated:
		res.Outcome = OutcomeAlreadyHandled
		res.Ready = true
		res.ProgressPct = decimal.NewFromInt(100)
		res.MarketCapUSD = GraduationThresholdUSD
		if token.PoolReference != nil {
			res.PoolReference = *token.PoolReference
		}
		if token.MigrationTimestamp != nil {
			res.MigrationTimestamp = *token.MigrationTimestamp
		}
		return res, nil

	case domain.StatusMigrating:
		// Lock already held from an interrupted run; resume. The reserves
		// were frozen at lock time, so valuing them is still meaningful,
		// but a feed outage must not block the resume.
		res.Ready = true
		if ev, err := c.evaluator.Evaluate(ctx, token); err == nil {
			res.MarketCapUSD = ev.MarketCapUSD
			res.ProgressPct = ev.ProgressPct
		}
		return c.finalize(ctx, token, res)
	}

	ev, err := c.evaluator.Evaluate(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", token.MintID, err)
	}
	res.MarketCapUSD = ev.MarketCapUSD
	res.ProgressPct = ev.ProgressPct
	res.Ready = ev.Ready
	if !ev.Ready {
		res.Outcome = OutcomeNotReady
		return res, nil
	}

	lock, err := c.tokens.LockForMigration(ctx, token.MintID)
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", token.MintID, err)
	}
	if lock.Lost() {
		res.Outcome = OutcomeLockLost
		return res, nil
	}

	c.logger.Printf("token %s crossed threshold (cap %s USD), migrating", token.MintID, ev.MarketCapUSD.StringFixed(2))
	return c.finalize(ctx, lock.Token, res)
}

// finalize runs the pool handoff and records the graduation. The caller
// holds the migration lock (status is migrating, trading is disabled).
func (c *Coordinator) finalize(ctx context.Context, token *domain.Token, res *CheckResult) (*CheckResult, error) {
	var poolRef string

	operation := func() error {
		ref, err := c.handoff.CreatePool(ctx, token)
		if err != nil {
			return err
		}
		poolRef = ref
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		observability.RecordHandoffFailure()
		c.logger.Printf("pool handoff failed for %s, will retry on next check: %v", token.MintID, err)
		res.Outcome = OutcomeHandoffPending
		return res, nil
	}

	migratedAt := c.nowMs()
	if err := c.tokens.FinalizeGraduation(ctx, token.MintID, poolRef, migratedAt); err != nil {
		// A concurrent resume may have finalized first.
		if errors.Is(err, storage.ErrConflict) {
			res.Outcome = OutcomeAlreadyHandled
			return res, nil
		}
		return nil, fmt.Errorf("finalize %s: %w", token.MintID, err)
	}

	observability.RecordGraduationCompleted()
	c.logger.Printf("token %s graduated to pool %s", token.MintID, poolRef)

	res.Outcome = OutcomeGraduated
	res.PoolReference = poolRef
	res.MigrationTimestamp = migratedAt
	if c.notifier != nil {
		c.notify(token, poolRef)
	}
	return res, nil
}

// notify delivers the graduation event, swallowing panics from misbehaving
// receivers. The graduation is already durable at this point.
func (c *Coordinator) notify(token *domain.Token, poolRef string) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Printf("graduation notifier panicked for %s: %v", token.MintID, r)
		}
	}()
	c.notifier.TokenGraduated(token, poolRef)
}

// CheckAll sweeps every ungraduated token. Individual failures are logged
// and do not stop the sweep. Returns one result per successfully checked
// token.
func (c *Coordinator) CheckAll(ctx context.Context) ([]*CheckResult, error) {
	tokens, err := c.tokens.ListUngraduated(ctx)
	if err != nil {
		return nil, fmt.Errorf("list ungraduated: %w", err)
	}

	results := make([]*CheckResult, 0, len(tokens))
	for _, token := range tokens {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}

		res, err := c.check(ctx, token)
		if err != nil {
			c.logger.Printf("graduation check failed for %s: %v", token.MintID, err)
			continue
		}
		observability.RecordGraduationCheck(string(res.Outcome))
		results = append(results, res)
	}

	return results, nil
}
