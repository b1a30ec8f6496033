// Package nutrition turns a free-text food list into nutrition totals by
// looking up each item with an external service.
package nutrition

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/mrcode/directdose/internal/dosing"
	"github.com/mrcode/directdose/internal/models"
)

// DefaultItemTimeout bounds a single item lookup
const DefaultItemTimeout = 10 * time.Second

// Lookup resolves one ingredient line to nutrition facts
type Lookup interface {
	Lookup(ctx context.Context, ingredient string) (*models.NutritionFacts, error)
}

// LookupFunc adapts a function to Lookup
type LookupFunc func(ctx context.Context, ingredient string) (*models.NutritionFacts, error)

// Lookup calls f
func (f LookupFunc) Lookup(ctx context.Context, ingredient string) (*models.NutritionFacts, error) {
	return f(ctx, ingredient)
}

// Outcome labels a single item lookup for observers
type Outcome string

const (
	OutcomeResolved Outcome = "resolved"
	OutcomeCached   Outcome = "cached"
	OutcomeEmpty    Outcome = "empty"
	OutcomeFailed   Outcome = "failed"
)

// Observer is notified after every item lookup
type Observer func(outcome Outcome, elapsed time.Duration)

// Aggregator sums nutrition facts over a food list
type Aggregator struct {
	lookup      Lookup
	itemTimeout time.Duration
	concurrency int
	cache       Cache
	cacheTTL    time.Duration
	observer    Observer
}

// Option configures an Aggregator
type Option func(*Aggregator)

// WithItemTimeout sets the per-item lookup timeout
func WithItemTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.itemTimeout = d
		}
	}
}

// WithConcurrency sets how many lookups may run at once. 1 keeps the
// lookups sequential.
func WithConcurrency(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// WithCache stores resolved facts in cache for ttl
func WithCache(cache Cache, ttl time.Duration) Option {
	return func(a *Aggregator) {
		a.cache = cache
		a.cacheTTL = ttl
	}
}

// WithObserver registers a lookup observer (metrics)
func WithObserver(o Observer) Option {
	return func(a *Aggregator) {
		a.observer = o
	}
}

// NewAggregator creates an aggregator over lookup
func NewAggregator(lookup Lookup, opts ...Option) *Aggregator {
	a := &Aggregator{
		lookup:      lookup,
		itemTimeout: DefaultItemTimeout,
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ParseFoodList splits a comma-separated food list, trimming whitespace and
// dropping empty entries.
func ParseFoodList(query string) []string {
	parts := strings.Split(query, ",")
	items := make([]string, 0, len(parts))
	for _, p := range parts {
		if item := strings.TrimSpace(p); item != "" {
			items = append(items, item)
		}
	}
	return items
}

type itemResult struct {
	facts     *models.NutritionFacts
	fromCache bool
	reason    string
}

// Aggregate resolves every item of query and sums the results. Items that
// fail, time out or report no calories are skipped and listed in
// Summary.Skipped; PartialNotice reports them. An error is returned when the
// list is empty, when nothing resolved, or when ctx ends (partial results are
// then discarded).
func (a *Aggregator) Aggregate(ctx context.Context, query string) (*models.NutritionSummary, error) {
	items := ParseFoodList(query)
	if len(items) == 0 {
		return nil, &dosing.ValidationError{Field: "foodInput", Reason: "no valid food items found"}
	}

	results := make([]itemResult, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = a.resolve(gctx, item)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	summary := &models.NutritionSummary{
		FoodLabel: strings.Join(items, ", "),
		Breakdown: make([]models.NutritionItem, 0, len(items)),
	}
	var netCarbs, calories, protein, fat, fiber float64
	for i, r := range results {
		if r.facts == nil {
			summary.Skipped = append(summary.Skipped, models.SkippedItem{Food: items[i], Reason: r.reason})
			continue
		}

		carbs := r.facts.Quantity(models.NutrientCarbs)
		itemFiber := r.facts.Quantity(models.NutrientFiber)
		itemNet := max(0, carbs-itemFiber)
		itemProtein := r.facts.Quantity(models.NutrientProtein)
		itemFat := r.facts.Quantity(models.NutrientFat)

		netCarbs += itemNet
		calories += r.facts.Calories
		protein += itemProtein
		fat += itemFat
		fiber += itemFiber

		summary.Breakdown = append(summary.Breakdown, models.NutritionItem{
			Food:         items[i],
			CarbsGrams:   dosing.Round1(itemNet),
			Calories:     dosing.RoundInt(r.facts.Calories),
			ProteinGrams: dosing.Round1(itemProtein),
			FatGrams:     dosing.Round1(itemFat),
			FiberGrams:   dosing.Round1(itemFiber),
			TotalCarbs:   dosing.Round1(carbs),
			FromCache:    r.fromCache,
		})
	}

	if len(summary.Breakdown) == 0 {
		return nil, ErrNoNutritionData
	}

	summary.NetCarbs = dosing.Round1(netCarbs)
	summary.Calories = dosing.RoundInt(calories)
	summary.Protein = dosing.Round1(protein)
	summary.Fat = dosing.Round1(fat)
	summary.Fiber = dosing.Round1(fiber)

	return summary, nil
}

// resolve looks up one item, consulting the cache first. It never fails;
// an unusable item comes back with a skip reason.
func (a *Aggregator) resolve(ctx context.Context, item string) itemResult {
	start := time.Now()

	if a.cache != nil {
		facts, ok, err := a.cache.Get(ctx, item)
		if err != nil {
			log.Warn().Err(err).Str("food", item).Msg("Nutrition cache read failed")
		} else if ok && facts.HasData() {
			a.observe(OutcomeCached, start)
			return itemResult{facts: facts, fromCache: true}
		}
	}

	itemCtx, cancel := context.WithTimeout(ctx, a.itemTimeout)
	defer cancel()

	facts, err := a.lookup.Lookup(itemCtx, item)
	if err != nil {
		reason := "lookup failed"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "lookup timed out"
		}
		log.Warn().Err(err).Str("food", item).Msg("Skipping food item")
		a.observe(OutcomeFailed, start)
		return itemResult{reason: reason}
	}
	if !facts.HasData() {
		log.Info().Str("food", item).Msg("No nutrition data found for food item")
		a.observe(OutcomeEmpty, start)
		return itemResult{reason: "no nutrition data"}
	}

	if a.cache != nil {
		if err := a.cache.Set(ctx, item, facts, a.cacheTTL); err != nil {
			log.Warn().Err(err).Str("food", item).Msg("Nutrition cache write failed")
		}
	}

	a.observe(OutcomeResolved, start)
	return itemResult{facts: facts}
}

func (a *Aggregator) observe(outcome Outcome, start time.Time) {
	if a.observer != nil {
		a.observer(outcome, time.Since(start))
	}
}
