package pricing

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"fridgechef/internal/models"
	"fridgechef/internal/pricing/providers"
)

// Estimate is an advisory unit price for one ingredient, per 1000 canonical
// units (mass/volume) or per item (count).
type Estimate struct {
	Price    float64
	Currency string
}

// Estimator supplies best-effort unit prices for ingredients the ledger and
// catalog know nothing about. Never authoritative: results are tagged as
// fallback estimates and a miss degrades to "unavailable", it never blocks
// or fails a match.
type Estimator interface {
	EstimateUnitPrice(ctx context.Context, ref *models.IngredientRef) (Estimate, bool)
}

// LLMEstimator asks a language model for a typical retail price. Calls are
// bounded by a short timeout; any error or unparsable answer reports
// unavailable.
type LLMEstimator struct {
	backend  providers.Completer
	timeout  time.Duration
	currency string
}

// NewLLMEstimator creates an estimator over the given backend.
func NewLLMEstimator(backend providers.Completer, timeout time.Duration, currency string) *LLMEstimator {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &LLMEstimator{backend: backend, timeout: timeout, currency: currency}
}

var numberPattern = regexp.MustCompile(`\d+(?:[.,]\d+)?`)

// EstimateUnitPrice queries the model for a single number.
func (e *LLMEstimator) EstimateUnitPrice(ctx context.Context, ref *models.IngredientRef) (Estimate, bool) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	prompt := fmt.Sprintf(
		"Estimate the typical retail price in %s for %s of %s. Respond with a single number and nothing else.",
		e.currency, blockDescription(ref.Kind), ref.Name,
	)

	answer, err := e.backend.Complete(ctx, prompt)
	if err != nil {
		log.Printf("pricing: estimate for %s unavailable: %v", ref.IngredientID, err)
		return Estimate{}, false
	}

	match := numberPattern.FindString(answer)
	if match == "" {
		log.Printf("pricing: unparsable estimate for %s: %q", ref.IngredientID, answer)
		return Estimate{}, false
	}
	price, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", "."), 64)
	if err != nil || price <= 0 {
		return Estimate{}, false
	}

	return Estimate{Price: price, Currency: e.currency}, true
}

func blockDescription(kind models.UnitKind) string {
	switch kind {
	case models.KindMass:
		return "1 kilogram"
	case models.KindVolume:
		return "1 liter"
	default:
		return "1 piece"
	}
}

// Disabled is the no-op estimator used when no model is configured.
type Disabled struct{}

// EstimateUnitPrice always reports unavailable.
func (Disabled) EstimateUnitPrice(ctx context.Context, ref *models.IngredientRef) (Estimate, bool) {
	return Estimate{}, false
}
