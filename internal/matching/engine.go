package matching

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"fridgechef/internal/catalog"
	"fridgechef/internal/ledger"
	"fridgechef/internal/models"
	"fridgechef/internal/units"
)

// ErrInvalidServings is returned for a non-positive servings multiplier,
// before any ledger access.
var ErrInvalidServings = errors.New("servings multiplier must be positive")

// Scoring weights. Coverage dominates; saving near-expiry stock is worth
// more than shaving cost or time. Not user-tunable.
const (
	weightCoverage  = 0.55
	weightWasteRisk = 0.20
	weightCost      = 0.15
	weightTime      = 0.10

	// normTimeCapMinutes bounds the time penalty so a day-long braise
	// does not dominate the score.
	normTimeCapMinutes = 180.0
)

// Pricer annotates a match with its economy snapshot. The calculator
// implements this; the engine stays ignorant of price resolution.
type Pricer interface {
	Price(ctx context.Context, match *models.MatchResult, snap *models.InventorySnapshot) (*models.EconomySnapshot, error)
}

// SortKey selects the ranking dimension for batch matches.
type SortKey string

const (
	SortByScore    SortKey = "score"
	SortByCoverage SortKey = "coverage"
	SortByTime     SortKey = "time"
)

// Filters are the hard filters and ordering applied by MatchAll.
type Filters struct {
	ServingsMultiplier float64
	MinCoverage        *float64
	MaxMissingCost     *float64
	MaxTimeMinutes     *float64
	Countries          []string
	Sort               SortKey
	Descending         bool
	Limit              int
}

// Engine computes per-recipe coverage against an inventory snapshot.
type Engine struct {
	catalog   catalog.Adapter
	converter *units.Converter
	pricer    Pricer
}

// NewEngine creates a matching engine.
func NewEngine(cat catalog.Adapter, converter *units.Converter, pricer Pricer) *Engine {
	return &Engine{catalog: cat, converter: converter, pricer: pricer}
}

// Match scores one recipe against the snapshot. The FEFO allocations
// embedded in each used line are the same plan the transactor commits, so
// quote and charge cannot drift apart by calculation.
func (e *Engine) Match(ctx context.Context, snap *models.InventorySnapshot, recipe *models.Recipe, servingsMultiplier float64) (*models.MatchResult, error) {
	if servingsMultiplier <= 0 {
		return nil, ErrInvalidServings
	}

	reqs, err := recipe.GetRequirements()
	if err != nil {
		e.catalog.MarkMalformed(recipe.RecipeID, "unparsable requirements")
		return nil, &catalog.MalformedRecipeError{RecipeID: recipe.RecipeID, Reason: "unparsable requirements"}
	}

	requiredLines := 0
	for _, req := range reqs {
		if req.Required() {
			requiredLines++
		}
	}
	if requiredLines == 0 {
		e.catalog.MarkMalformed(recipe.RecipeID, "no required ingredient lines")
		return nil, &catalog.MalformedRecipeError{RecipeID: recipe.RecipeID, Reason: "no required ingredient lines"}
	}

	result := &models.MatchResult{
		RecipeID:    recipe.RecipeID,
		RecipeName:  recipe.Name,
		Country:     recipe.Country,
		TimeMinutes: recipe.TimeMinutes(),
		CanCookNow:  true,
	}

	var requiredTotal, usedTotal float64
	for _, req := range reqs {
		line, err := e.matchLine(ctx, snap, req, servingsMultiplier)
		if err != nil {
			return nil, err
		}

		if req.Required() {
			requiredTotal += line.required
			usedTotal += line.usedQuantity
			if line.missingQuantity > 0 {
				result.CanCookNow = false
			}
		}
		if line.used != nil {
			result.Used = append(result.Used, *line.used)
		}
		if line.missing != nil {
			result.Missing = append(result.Missing, *line.missing)
			if !line.missing.Optional {
				result.MissingCount++
			}
		}
	}

	if requiredTotal > 0 {
		result.Coverage = usedTotal / requiredTotal
	}
	return result, nil
}

// matchedLine is the per-requirement intermediate before aggregation.
type matchedLine struct {
	required        float64
	usedQuantity    float64
	missingQuantity float64
	used            *models.UsedLine
	missing         *models.MissingLine
}

func (e *Engine) matchLine(ctx context.Context, snap *models.InventorySnapshot, req models.RecipeRequirement, servingsMultiplier float64) (*matchedLine, error) {
	// Unresolved ingredient name: the whole line is missing and no price
	// can be resolved for it. The coverage denominator sums canonical
	// quantities, so the declared unit is scaled within its own family
	// (a cup counts as its milliliters, not as 1).
	if req.IngredientID == "" {
		qty := req.Quantity * servingsMultiplier
		scaled := e.converter.CanonicalScale(qty, req.Unit)
		return &matchedLine{
			required:        scaled,
			missingQuantity: scaled,
			missing: &models.MissingLine{
				Name:        req.Name,
				Quantity:    qty,
				Unit:        req.Unit,
				Optional:    req.Optional,
				PriceSource: models.PriceSourceUnavailable,
			},
		}, nil
	}

	ref, err := e.catalog.GetIngredient(ctx, req.IngredientID)
	if err != nil {
		if errors.Is(err, catalog.ErrIngredientNotFound) {
			qty := req.Quantity * servingsMultiplier
			scaled := e.converter.CanonicalScale(qty, req.Unit)
			return &matchedLine{
				required:        scaled,
				missingQuantity: scaled,
				missing: &models.MissingLine{
					IngredientID: req.IngredientID,
					Name:         req.Name,
					Quantity:     qty,
					Unit:         req.Unit,
					Optional:     req.Optional,
					PriceSource:  models.PriceSourceUnavailable,
				},
			}, nil
		}
		return nil, err
	}

	required, err := e.converter.ToCanonical(req.Quantity*servingsMultiplier, req.Unit, ref)
	if err != nil {
		// Unit trouble is fatal for this line only: treated as missing
		// with no resolvable price.
		if errors.Is(err, units.ErrIncompatibleUnitKind) || errors.Is(err, units.ErrUnknownUnit) {
			log.Printf("matching: line %s unconvertible: %v", req.IngredientID, err)
			qty := req.Quantity * servingsMultiplier
			scaled := e.converter.CanonicalScale(qty, req.Unit)
			return &matchedLine{
				required:        scaled,
				missingQuantity: scaled,
				missing: &models.MissingLine{
					IngredientID: req.IngredientID,
					Name:         req.Name,
					Quantity:     qty,
					Unit:         req.Unit,
					Optional:     req.Optional,
					PriceSource:  models.PriceSourceUnavailable,
				},
			}, nil
		}
		return nil, err
	}

	available := snap.Available(ref.IngredientID)
	used := required
	if available < used {
		used = available
	}
	missing := required - used

	line := &matchedLine{required: required, usedQuantity: used, missingQuantity: missing}

	if used > 0 {
		plan := ledger.PlanAllocation(snap.Lots[ref.IngredientID], used)
		var value float64
		for _, alloc := range plan {
			value += alloc.Value(ref.Kind.BlockSize())
		}
		line.used = &models.UsedLine{
			IngredientID: ref.IngredientID,
			Name:         ref.Name,
			Quantity:     used,
			Unit:         ref.Kind.CanonicalUnit(),
			Optional:     req.Optional,
			Allocations:  plan,
			Value:        value,
		}
	}
	if missing > 0 {
		line.missing = &models.MissingLine{
			IngredientID: ref.IngredientID,
			Name:         ref.Name,
			Quantity:     missing,
			Unit:         ref.Kind.CanonicalUnit(),
			Optional:     req.Optional,
		}
	}
	return line, nil
}

// MatchAll matches every listed recipe, annotates economies, applies the
// hard filters, scores, and sorts deterministically. Malformed recipes are
// skipped (and excluded from future calls), they never fail the batch.
func (e *Engine) MatchAll(ctx context.Context, snap *models.InventorySnapshot, recipes []models.Recipe, filters Filters) ([]models.MatchResult, error) {
	if filters.ServingsMultiplier <= 0 {
		filters.ServingsMultiplier = 1
	}

	countryAllowed := make(map[string]bool, len(filters.Countries))
	for _, c := range filters.Countries {
		countryAllowed[c] = true
	}

	var results []models.MatchResult
	for i := range recipes {
		recipe := &recipes[i]
		match, err := e.Match(ctx, snap, recipe, filters.ServingsMultiplier)
		if err != nil {
			if errors.Is(err, catalog.ErrMalformedRecipe) {
				continue
			}
			return nil, fmt.Errorf("match recipe %s: %w", recipe.RecipeID, err)
		}

		economy, err := e.pricer.Price(ctx, match, snap)
		if err != nil {
			return nil, fmt.Errorf("price recipe %s: %w", recipe.RecipeID, err)
		}
		match.Economy = economy

		// Hard filters, before scoring.
		if filters.MinCoverage != nil && match.Coverage < *filters.MinCoverage {
			continue
		}
		if filters.MaxMissingCost != nil && economy.CostToComplete > *filters.MaxMissingCost {
			continue
		}
		if filters.MaxTimeMinutes != nil && match.TimeMinutes > *filters.MaxTimeMinutes {
			continue
		}
		if len(countryAllowed) > 0 && !countryAllowed[match.Country] {
			continue
		}

		results = append(results, *match)
	}

	scoreAll(results)
	sortResults(results, filters.Sort, filters.Descending)

	if filters.Limit > 0 && len(results) > filters.Limit {
		results = results[:filters.Limit]
	}
	return results, nil
}

// scoreAll computes the weighted score for each result. Waste risk and cost
// are normalized against the candidate set's maximum, time against a fixed
// cap, so scores are comparable within one batch and reproducible for
// identical inputs.
func scoreAll(results []models.MatchResult) {
	var maxWaste, maxCost float64
	for i := range results {
		if eco := results[i].Economy; eco != nil {
			if eco.WasteRiskSaved > maxWaste {
				maxWaste = eco.WasteRiskSaved
			}
			if eco.CostToComplete > maxCost {
				maxCost = eco.CostToComplete
			}
		}
	}

	for i := range results {
		r := &results[i]
		var normWaste, normCost float64
		if eco := r.Economy; eco != nil {
			if maxWaste > 0 {
				normWaste = eco.WasteRiskSaved / maxWaste
			}
			if maxCost > 0 {
				normCost = eco.CostToComplete / maxCost
			}
		}
		normTime := r.TimeMinutes / normTimeCapMinutes
		if normTime > 1 {
			normTime = 1
		}

		r.Score = weightCoverage*r.Coverage +
			weightWasteRisk*normWaste -
			weightCost*normCost -
			weightTime*normTime
	}
}

// sortResults orders by the requested key with the fixed tie-break
// (coverage desc, missing count asc, recipe id asc).
func sortResults(results []models.MatchResult, key SortKey, descending bool) {
	primary := func(r *models.MatchResult) float64 {
		switch key {
		case SortByCoverage:
			return r.Coverage
		case SortByTime:
			return r.TimeMinutes
		default:
			return r.Score
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := &results[i], &results[j]
		pa, pb := primary(a), primary(b)
		if pa != pb {
			if descending {
				return pa > pb
			}
			return pa < pb
		}
		if a.Coverage != b.Coverage {
			return a.Coverage > b.Coverage
		}
		if a.MissingCount != b.MissingCount {
			return a.MissingCount < b.MissingCount
		}
		return a.RecipeID < b.RecipeID
	})
}
