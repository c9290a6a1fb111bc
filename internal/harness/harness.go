// Package harness drives resilience experiments: it generates a topology and
// message workload, runs every message under the adaptive and baseline hop
// policies, injects node failures at configurable rates, and aggregates the
// comparison into a Report.
package harness

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/signalsfoundry/mesh-simulator/core"
	"github.com/signalsfoundry/mesh-simulator/internal/logging"
	"github.com/signalsfoundry/mesh-simulator/internal/observability"
	"github.com/signalsfoundry/mesh-simulator/kb"
	"github.com/signalsfoundry/mesh-simulator/model"
)

// ErrConfiguration marks problems with the scenario inputs. A scenario that
// fails with it is aborted; no shared state is affected.
var ErrConfiguration = errors.New("scenario configuration error")

// RNG stream numbers derived from the scenario seed. Each failure rate uses
// streamFailures+index so rates are reproducible independently.
const (
	streamTopology uint64 = 1
	streamMessages uint64 = 2
	streamFailures uint64 = 100
)

// Scenario holds the per-run knobs of an experiment.
type Scenario struct {
	FailureRates    []float64
	MessagesPerRate int
	Density         int
	// DeriveDensity replaces Density with the topology's average neighbour
	// count within the harness radio range.
	DeriveDensity bool
	Seed          uint64
}

// MetricsRecorder receives delivery and scenario measurements.
// *observability.HarnessCollector satisfies it.
type MetricsRecorder interface {
	ObserveDelivery(policy string, success bool, hops int)
	SetRateSuccess(policy string, failureRate, ratio float64)
	ObserveScenario(d time.Duration, nodes int)
}

// Harness runs scenarios. It is safe for concurrent use; each call works on
// its own failure views.
type Harness struct {
	log        logging.Logger
	metrics    MetricsRecorder
	workers    int
	radioRange float64
}

// Option customises Harness construction.
type Option func(*Harness)

// WithLogger attaches a structured logger.
func WithLogger(l logging.Logger) Option {
	return func(h *Harness) {
		if l != nil {
			h.log = l
		}
	}
}

// WithMetricsRecorder attaches a metrics sink.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(h *Harness) {
		h.metrics = m
	}
}

// WithWorkers bounds how many deliveries run concurrently. n <= 0 uses
// GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(h *Harness) {
		if n > 0 {
			h.workers = n
		}
	}
}

// WithRadioRange restricts next hops to nodes within r of the current node.
func WithRadioRange(r float64) Option {
	return func(h *Harness) {
		h.radioRange = r
	}
}

// New constructs a Harness.
func New(opts ...Option) *Harness {
	h := &Harness{
		log:     logging.Noop(),
		workers: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Result bundles the per-message table and the aggregate report of a run.
type Result struct {
	Records []DeliveryRecord
	Report  Report
}

// Attempt is one message run under one policy.
type Attempt struct {
	Budget  model.HopBudget
	Outcome model.DeliveryOutcome
}

func seededRand(seed, stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, stream))
}

// Run generates the topology and workload, measures delivery on the intact
// topology, sweeps battery levels, and evaluates resilience at every
// failure rate.
func (h *Harness) Run(ctx context.Context, sc Scenario, topoGen TopologyGenerator, msgGen MessageGenerator) (*Result, error) {
	start := time.Now()
	ctx, log := logging.WithRunLogger(ctx, h.log)
	ctx, span := observability.StartSpan(ctx, "harness.Run", attribute.Int64("seed", int64(sc.Seed)))
	defer span.End()

	scoped := *h
	scoped.log = log
	result, err := scoped.run(ctx, sc, topoGen, msgGen)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error(ctx, "scenario aborted", logging.Err(err))
		return nil, err
	}

	if h.metrics != nil {
		h.metrics.ObserveScenario(time.Since(start), result.Report.TotalNodes)
	}
	log.Info(ctx, "scenario complete",
		logging.Int("nodes", result.Report.TotalNodes),
		logging.Int("messages", result.Report.TotalMessages),
		logging.Float64("adaptive_success_rate", result.Report.MessageDelivery.AdaptiveSuccessRate),
		logging.Float64("baseline_success_rate", result.Report.MessageDelivery.BaselineSuccessRate),
	)
	return result, nil
}

func (h *Harness) run(ctx context.Context, sc Scenario, topoGen TopologyGenerator, msgGen MessageGenerator) (*Result, error) {
	if topoGen == nil || msgGen == nil {
		return nil, fmt.Errorf("%w: topology and message generators are required", ErrConfiguration)
	}
	if sc.MessagesPerRate < 0 {
		return nil, fmt.Errorf("%w: negative messages per rate", ErrConfiguration)
	}

	topo, err := topoGen.Generate(seededRand(sc.Seed, streamTopology))
	if err != nil {
		return nil, fmt.Errorf("%w: generate topology: %w", ErrConfiguration, err)
	}
	msgs, err := msgGen.Generate(seededRand(sc.Seed, streamMessages), topo)
	if err != nil {
		return nil, fmt.Errorf("%w: generate messages: %w", ErrConfiguration, err)
	}

	density := sc.Density
	if sc.DeriveDensity {
		density = int(math.Round(topo.AverageDegree(h.radioRange)))
	}
	if density < 0 {
		return nil, fmt.Errorf("%w: negative network density %d", ErrConfiguration, density)
	}
	sc.Density = density

	h.log.Info(ctx, "scenario started",
		logging.Int("nodes", topo.Len()),
		logging.Int("messages", len(msgs)),
		logging.Int("density", density),
		logging.Int("workers", h.workers),
	)

	records, err := h.compareDelivery(ctx, topo.View(), msgs, density)
	if err != nil {
		return nil, err
	}

	battery, err := BatterySweep(density, model.PriorityMedium)
	if err != nil {
		return nil, fmt.Errorf("%w: battery sweep: %w", ErrConfiguration, err)
	}

	batch := msgs
	if sc.MessagesPerRate < len(batch) {
		batch = batch[:sc.MessagesPerRate]
	}
	rates, err := h.RunScenario(ctx, topo, batch, sc)
	if err != nil {
		return nil, err
	}

	return &Result{
		Records: records,
		Report:  buildReport(topo.Len(), density, records, battery, rates),
	}, nil
}

func (h *Harness) compareDelivery(ctx context.Context, view kb.View, msgs []model.Message, density int) ([]DeliveryRecord, error) {
	adaptive, err := h.EvaluatePolicy(ctx, view, msgs, core.AdaptivePolicy{}, density)
	if err != nil {
		return nil, err
	}
	baseline, err := h.EvaluatePolicy(ctx, view, msgs, core.BaselinePolicy{}, density)
	if err != nil {
		return nil, err
	}

	records := make([]DeliveryRecord, len(msgs))
	for i, m := range msgs {
		origin, _ := view.Node(m.Origin)
		aHops, _ := adaptive[i].Budget.Limit()
		bHops, _ := baseline[i].Budget.Limit()
		records[i] = DeliveryRecord{
			MessageID:          m.ID,
			Origin:             m.Origin,
			Target:             m.Target,
			Priority:           m.Priority,
			OriginBatteryLevel: origin.BatteryLevel,
			OriginIsCharging:   origin.IsCharging,
			NetworkDensity:     density,
			AdaptiveMaxHops:    aHops,
			BaselineMaxHops:    bHops,
			AdaptiveSuccess:    adaptive[i].Outcome.Success,
			BaselineSuccess:    baseline[i].Outcome.Success,
			AdaptiveHopsUsed:   adaptive[i].Outcome.HopsUsed,
			BaselineHopsUsed:   baseline[i].Outcome.HopsUsed,
			AdaptivePathLength: len(adaptive[i].Outcome.Path),
			BaselinePathLength: len(baseline[i].Outcome.Path),
		}
	}
	return records, nil
}

// RunScenario evaluates msgs under both policies at every failure rate in
// sc. For rate f, round(n*f) nodes are chosen with an RNG derived from
// sc.Seed and the rate's index, and marked inactive for that batch only.
func (h *Harness) RunScenario(ctx context.Context, topo *kb.Topology, msgs []model.Message, sc Scenario) ([]RateResult, error) {
	if topo == nil || topo.Len() == 0 {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, kb.ErrEmptyTopology)
	}

	results := make([]RateResult, 0, len(sc.FailureRates))
	for i, f := range sc.FailureRates {
		if math.IsNaN(f) || f < 0 || f > 1 {
			return nil, fmt.Errorf("%w: failure rate %v outside [0,1]", ErrConfiguration, f)
		}
		failed := SelectFailures(topo, f, seededRand(sc.Seed, streamFailures+uint64(i)))

		var res RateResult
		err := withFailures(topo, failed, func(view kb.View) error {
			var err error
			res, err = h.evaluateRate(ctx, view, msgs, f, sc.Density)
			return err
		})
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (h *Harness) evaluateRate(ctx context.Context, view kb.View, msgs []model.Message, f float64, density int) (RateResult, error) {
	ctx, span := observability.StartSpan(ctx, "harness.Rate",
		attribute.Float64("failure_rate", f),
		attribute.Int("failed_nodes", view.Failed()),
	)
	defer span.End()

	adaptive, err := h.EvaluatePolicy(ctx, view, msgs, core.AdaptivePolicy{}, density)
	if err != nil {
		span.RecordError(err)
		return RateResult{}, err
	}
	baseline, err := h.EvaluatePolicy(ctx, view, msgs, core.BaselinePolicy{}, density)
	if err != nil {
		span.RecordError(err)
		return RateResult{}, err
	}

	a := Rate(countSuccesses(adaptive), len(msgs))
	b := Rate(countSuccesses(baseline), len(msgs))
	if h.metrics != nil {
		h.metrics.SetRateSuccess(core.AdaptivePolicy{}.Name(), f, a)
		h.metrics.SetRateSuccess(core.BaselinePolicy{}.Name(), f, b)
	}
	h.log.Info(ctx, "failure rate evaluated",
		logging.String("failure_rate", strconv.FormatFloat(f, 'f', -1, 64)),
		logging.Int("failed_nodes", view.Failed()),
		logging.Float64("adaptive_success_rate", a),
		logging.Float64("baseline_success_rate", b),
	)

	return RateResult{
		FailureRate:         f,
		FailedNodes:         view.Failed(),
		Messages:            len(msgs),
		AdaptiveSuccessRate: a,
		BaselineSuccessRate: b,
		Improvement:         a - b,
	}, nil
}

// SelectFailures picks round(n*f) distinct node IDs using rng.
func SelectFailures(topo *kb.Topology, f float64, rng *rand.Rand) []string {
	n := topo.Len()
	k := int(math.Round(float64(n) * f))
	k = max(0, min(n, k))
	ids := topo.IDs()
	perm := rng.Perm(n)
	out := make([]string, k)
	for i := range k {
		out[i] = ids[perm[i]]
	}
	return out
}

// withFailures runs fn against a view of topo with ids inactive. The view is
// private to fn, so nothing outlives the batch even if fn fails or panics.
func withFailures(topo *kb.Topology, ids []string, fn func(kb.View) error) (err error) {
	view, err := topo.WithFailures(ids)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failure batch panicked: %v", r)
		}
	}()
	return fn(view)
}

// EvaluatePolicy runs every message through the router with budgets from
// policy. Deliveries are spread over the harness workers; results come back
// in message order regardless of scheduling. The first configuration error
// by message order is returned.
func (h *Harness) EvaluatePolicy(ctx context.Context, view kb.View, msgs []model.Message, policy core.HopPolicy, density int) ([]Attempt, error) {
	ctx, span := observability.StartSpan(ctx, "harness.Batch",
		attribute.String("policy", policy.Name()),
		attribute.Int("messages", len(msgs)),
	)
	defer span.End()

	attempts := make([]Attempt, len(msgs))
	errs := make([]error, len(msgs))

	workers := max(1, min(h.workers, len(msgs)))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				attempts[i], errs[i] = h.attempt(ctx, view, msgs[i], policy, density)
			}
		}()
	}

dispatch:
	for i := range msgs {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for i, err := range errs {
		if err != nil {
			err = fmt.Errorf("%w: message %q: %w", ErrConfiguration, msgs[i].ID, err)
			span.RecordError(err)
			return nil, err
		}
	}
	return attempts, nil
}

func (h *Harness) attempt(ctx context.Context, view kb.View, msg model.Message, policy core.HopPolicy, density int) (a Attempt, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("delivery panicked: %v", r)
		}
	}()

	origin, ok := view.Node(msg.Origin)
	if !ok {
		return Attempt{}, fmt.Errorf("origin %w: %q", kb.ErrNodeNotFound, msg.Origin)
	}
	budget, err := policy.MaxHops(origin, density, msg.Priority)
	if err != nil {
		return Attempt{}, err
	}
	out, err := core.SimulateDelivery(msg, view, budget, core.WithRadioRange(h.radioRange))
	if err != nil {
		return Attempt{}, err
	}

	if h.metrics != nil {
		h.metrics.ObserveDelivery(policy.Name(), out.Success, out.HopsUsed)
	}
	h.log.Debug(ctx, "delivery simulated",
		logging.String("message_id", msg.ID),
		logging.String("policy", policy.Name()),
		logging.String("budget", budget.String()),
		logging.Bool("success", out.Success),
		logging.Int("hops", out.HopsUsed),
	)
	return Attempt{Budget: budget, Outcome: out}, nil
}

func countSuccesses(attempts []Attempt) int {
	n := 0
	for _, a := range attempts {
		if a.Outcome.Success {
			n++
		}
	}
	return n
}
