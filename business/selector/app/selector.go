package app

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/0xvey/dexmaker/business/selector/domain"
	"github.com/0xvey/dexmaker/internal/apperror"
	"github.com/0xvey/dexmaker/internal/logger"
)

const (
	tracerName = "selector"
	meterName  = "selector"
)

// selectorMetrics holds OTEL metric instruments.
type selectorMetrics struct {
	evaluations   metric.Int64Counter
	rotations     metric.Int64Counter
	fetchFailures metric.Int64Counter
	activePairs   metric.Int64UpDownCounter
}

// Selector maintains the active trading set. Full evaluations replace
// the set with the top-scoring pairs outright; between evaluations,
// MaybeRotate swaps in a single stronger candidate behind a hysteresis
// margin so near-equal scores don't thrash the set.
type Selector struct {
	universe  []string // configured candidates, order breaks score ties
	maxActive int
	margin    decimal.Decimal // rotation hysteresis, e.g. 0.20
	strategy  domain.ScoringStrategy
	source    MetricsSource

	mu     sync.RWMutex
	active []string
	perf   map[string]*domain.PairPerformance

	// Serializes evaluation and rotation; the two never overlap.
	evalMu sync.Mutex

	logger  logger.LoggerInterface
	tracer  trace.Tracer
	metrics *selectorMetrics
}

// NewSelector creates a pair selector over the configured universe.
func NewSelector(universe []string, maxActive int, margin decimal.Decimal, strategy domain.ScoringStrategy, source MetricsSource, log logger.LoggerInterface) (*Selector, error) {
	if maxActive <= 0 {
		return nil, fmt.Errorf("selector: maxActive must be positive, got %d", maxActive)
	}
	if len(universe) == 0 {
		return nil, fmt.Errorf("selector: empty pair universe")
	}

	s := &Selector{
		universe:  universe,
		maxActive: maxActive,
		margin:    margin,
		strategy:  strategy,
		source:    source,
		perf:      make(map[string]*domain.PairPerformance),
		logger:    log,
		tracer:    otel.Tracer(tracerName),
	}

	for _, pair := range universe {
		s.perf[pair] = domain.NewPairPerformance(pair)
	}

	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return s, nil
}

func (s *Selector) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &selectorMetrics{}

	s.metrics.evaluations, err = meter.Int64Counter(
		"selector_evaluations_total",
		metric.WithDescription("Pair set evaluations run"),
	)
	if err != nil {
		return err
	}

	s.metrics.rotations, err = meter.Int64Counter(
		"selector_rotations_total",
		metric.WithDescription("Pairs rotated out of the active set"),
	)
	if err != nil {
		return err
	}

	s.metrics.fetchFailures, err = meter.Int64Counter(
		"selector_metric_fetch_failures_total",
		metric.WithDescription("Pair metric fetches that failed"),
	)
	if err != nil {
		return err
	}

	s.metrics.activePairs, err = meter.Int64UpDownCounter(
		"selector_active_pairs",
		metric.WithDescription("Pairs currently in the active set"),
	)
	if err != nil {
		return err
	}

	return nil
}

// GetActivePairs returns a copy of the current active set.
func (s *Selector) GetActivePairs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.active))
	copy(out, s.active)
	return out
}

// RecordTradeOutcome folds a trade result into the pair's performance
// record. Unknown pairs are ignored.
func (s *Selector) RecordTradeOutcome(pair string, success bool, spreadBps, volume, pnl decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if perf, ok := s.perf[pair]; ok {
		perf.RecordOutcome(success, spreadBps, volume, pnl)
	}
}

// Performance returns a snapshot copy of a pair's performance record.
func (s *Selector) Performance(pair string) (domain.PairPerformance, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	perf, ok := s.perf[pair]
	if !ok {
		return domain.PairPerformance{}, false
	}
	return *perf, true
}

// EvaluateAndSelect scores every candidate and replaces the active set
// with the top-scoring pairs, no hysteresis. Only one evaluation or
// rotation may run at a time: a second caller gets
// CodeEvaluationInFlight instead of blocking.
func (s *Selector) EvaluateAndSelect(ctx context.Context) ([]domain.PairScore, error) {
	if !s.evalMu.TryLock() {
		return nil, apperror.New(apperror.CodeEvaluationInFlight,
			apperror.WithContext("previous evaluation still running"))
	}
	defer s.evalMu.Unlock()

	ctx, span := s.tracer.Start(ctx, "selector.evaluate")
	defer span.End()

	s.metrics.evaluations.Add(ctx, 1)

	scores := s.scoreUniverse(ctx)

	s.mu.Lock()
	before := len(s.active)
	dropped := s.takeTopN(scores)
	after := len(s.active)
	activeNow := make([]string, len(s.active))
	copy(activeNow, s.active)
	s.mu.Unlock()

	s.metrics.activePairs.Add(ctx, int64(after-before))

	span.SetAttributes(
		attribute.StringSlice("active", activeNow),
		attribute.Int("dropped", dropped),
	)

	s.logger.Info(ctx, "pair set evaluated",
		"active", activeNow,
		"dropped", dropped,
		"strategy", s.strategy.Name())

	return scores, nil
}

// MaybeRotate swaps the single lowest-scoring active pair for the single
// highest-scoring inactive pair, but only when the challenger clears the
// incumbent's score by the hysteresis margin. No-op when the universe
// fits within the active-set capacity. Returns whether a swap happened.
// Shares the single-flight guard with EvaluateAndSelect.
func (s *Selector) MaybeRotate(ctx context.Context) (bool, error) {
	if !s.evalMu.TryLock() {
		return false, apperror.New(apperror.CodeEvaluationInFlight,
			apperror.WithContext("evaluation or rotation still running"))
	}
	defer s.evalMu.Unlock()

	if len(s.universe) <= s.maxActive {
		return false, nil
	}

	ctx, span := s.tracer.Start(ctx, "selector.rotate")
	defer span.End()

	scores := s.scoreUniverse(ctx)

	byPair := make(map[string]decimal.Decimal, len(scores))
	for _, sc := range scores {
		byPair[sc.Pair] = sc.Score
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.active) == 0 {
		return false, nil
	}

	activeSet := make(map[string]bool, len(s.active))
	for _, p := range s.active {
		activeSet[p] = true
	}

	weakestIdx := -1
	weakestScore := decimal.Zero
	for i, incumbent := range s.active {
		if sc := byPair[incumbent]; weakestIdx == -1 || sc.LessThan(weakestScore) {
			weakestIdx = i
			weakestScore = sc
		}
	}

	// scores are sorted descending, so the first inactive pair is the
	// strongest challenger.
	var challenger *domain.PairScore
	for i := range scores {
		if !activeSet[scores[i].Pair] {
			challenger = &scores[i]
			break
		}
	}
	if challenger == nil {
		return false, nil
	}

	hurdle := weakestScore.Mul(decimal.New(1, 0).Add(s.margin))
	if !challenger.Score.GreaterThan(hurdle) {
		return false, nil
	}

	evicted := s.active[weakestIdx]
	s.active[weakestIdx] = challenger.Pair

	s.metrics.rotations.Add(ctx, 1)
	span.SetAttributes(
		attribute.String("in", challenger.Pair),
		attribute.String("out", evicted),
	)
	s.logger.Info(ctx, "pair rotated",
		"in", challenger.Pair,
		"out", evicted,
		"challenger_score", challenger.Score,
		"incumbent_score", weakestScore)

	return true, nil
}

// scoreUniverse fetches metrics and scores every configured pair.
// Fetch failures degrade to a zero snapshot instead of aborting.
func (s *Selector) scoreUniverse(ctx context.Context) []domain.PairScore {
	scores := make([]domain.PairScore, 0, len(s.universe))

	for _, pair := range s.universe {
		m, err := s.source.FetchMetrics(ctx, pair)
		if err != nil {
			s.metrics.fetchFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("pair", pair)))
			s.logger.Warn(ctx, "pair metrics unavailable, scoring as zero", "pair", pair, "error", err)
			m = domain.PairMetrics{Pair: pair}
		}

		s.mu.RLock()
		perf := s.perf[pair]
		s.mu.RUnlock()

		scores = append(scores, domain.PairScore{
			Pair:  pair,
			Score: s.strategy.Score(m, perf),
		})
	}

	// Stable sort keeps configuration order for equal scores.
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Score.GreaterThan(scores[j].Score)
	})

	return scores
}

// takeTopN replaces s.active with the best-ranked pairs. Caller holds
// s.mu. Returns the number of incumbents that fell out of the set.
func (s *Selector) takeTopN(scores []domain.PairScore) int {
	prev := make(map[string]bool, len(s.active))
	for _, p := range s.active {
		prev[p] = true
	}

	next := make([]string, 0, s.maxActive)
	for _, sc := range scores {
		if len(next) == s.maxActive {
			break
		}
		next = append(next, sc.Pair)
	}
	s.active = next

	dropped := 0
	for p := range prev {
		stillIn := false
		for _, q := range next {
			if q == p {
				stillIn = true
				break
			}
		}
		if !stillIn {
			dropped++
		}
	}
	return dropped
}
