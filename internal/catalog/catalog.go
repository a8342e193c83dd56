package catalog

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/jinzhu/gorm"

	"fridgechef/internal/models"
)

var (
	// ErrRecipeNotFound is returned when the catalog has no such recipe.
	ErrRecipeNotFound = errors.New("recipe not found")
	// ErrIngredientNotFound is returned when an ingredient id is unknown.
	ErrIngredientNotFound = errors.New("ingredient not found")
	// ErrMalformedRecipe marks recipes that cannot be matched or cooked:
	// unparsable requirements or no required lines at all.
	ErrMalformedRecipe = errors.New("malformed recipe")
)

// MalformedRecipeError carries the reason a recipe was rejected. Matches
// ErrMalformedRecipe under errors.Is.
type MalformedRecipeError struct {
	RecipeID string
	Reason   string
}

func (e *MalformedRecipeError) Error() string {
	return fmt.Sprintf("malformed recipe %s: %s", e.RecipeID, e.Reason)
}

func (e *MalformedRecipeError) Is(target error) bool {
	return target == ErrMalformedRecipe
}

// Adapter is the read-only recipe and ingredient source consumed by the
// matching engine and the transactor.
type Adapter interface {
	GetRecipe(ctx context.Context, id string) (*models.Recipe, error)
	ListRecipes(ctx context.Context) ([]models.Recipe, error)
	GetIngredient(ctx context.Context, id string) (*models.IngredientRef, error)
	// MarkMalformed excludes a recipe from future matching until the
	// catalog is corrected upstream.
	MarkMalformed(id, reason string)
}

// Store is the database-backed catalog adapter. The catalog's own CRUD and
// editorial workflow live elsewhere; this subsystem never writes recipes.
type Store struct {
	db        *gorm.DB
	malformed sync.Map // recipeID -> reason
}

// NewStore creates a catalog adapter over the given database.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// GetRecipe loads one recipe with its requirement lines deserialized.
func (s *Store) GetRecipe(ctx context.Context, id string) (*models.Recipe, error) {
	if reason, ok := s.malformed.Load(id); ok {
		return nil, &MalformedRecipeError{RecipeID: id, Reason: reason.(string)}
	}

	var recipe models.Recipe
	err := s.db.Where("recipe_id = ?", id).First(&recipe).Error
	if err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return nil, fmt.Errorf("%w: %s", ErrRecipeNotFound, id)
		}
		return nil, fmt.Errorf("load recipe %s: %w", id, err)
	}

	if _, err := recipe.GetRequirements(); err != nil {
		s.MarkMalformed(id, "unparsable requirements")
		return nil, &MalformedRecipeError{RecipeID: id, Reason: "unparsable requirements"}
	}
	return &recipe, nil
}

// ListRecipes returns all recipes not currently excluded as malformed.
func (s *Store) ListRecipes(ctx context.Context) ([]models.Recipe, error) {
	var recipes []models.Recipe
	if err := s.db.Find(&recipes).Error; err != nil {
		return nil, fmt.Errorf("list recipes: %w", err)
	}

	out := make([]models.Recipe, 0, len(recipes))
	for i := range recipes {
		if _, excluded := s.malformed.Load(recipes[i].RecipeID); excluded {
			continue
		}
		if _, err := recipes[i].GetRequirements(); err != nil {
			s.MarkMalformed(recipes[i].RecipeID, "unparsable requirements")
			continue
		}
		out = append(out, recipes[i])
	}
	return out, nil
}

// GetIngredient loads one ingredient reference.
func (s *Store) GetIngredient(ctx context.Context, id string) (*models.IngredientRef, error) {
	var ref models.IngredientRef
	err := s.db.Where("id = ?", id).First(&ref).Error
	if err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return nil, fmt.Errorf("%w: %s", ErrIngredientNotFound, id)
		}
		return nil, fmt.Errorf("load ingredient %s: %w", id, err)
	}
	return &ref, nil
}

// MarkMalformed excludes a recipe from future matching. Logged once here;
// the exclusion lasts until the process restarts with corrected data.
func (s *Store) MarkMalformed(id, reason string) {
	if _, loaded := s.malformed.LoadOrStore(id, reason); !loaded {
		log.Printf("catalog: excluding malformed recipe %s: %s", id, reason)
	}
}
