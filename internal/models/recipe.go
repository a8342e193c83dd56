package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/jinzhu/gorm"
)

// StringSlice represents a slice of strings that can be stored in the database
type StringSlice []string

// Value converts the slice to a JSON string for storage
func (s StringSlice) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "[]", nil
	}
	return json.Marshal(s)
}

// Scan converts the database value back to a slice
func (s *StringSlice) Scan(value interface{}) error {
	if value == nil {
		*s = StringSlice{}
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return errors.New("unsupported type for StringSlice")
	}
}

// Recipe represents a recipe definition read from the catalog
type Recipe struct {
	gorm.Model
	RecipeID         string `gorm:"column:recipe_id;unique_index"`
	Name             string
	Description      string
	Category         string
	Country          string
	PrepTime         time.Duration
	CookTime         time.Duration
	EstimatedTime    time.Duration
	Servings         int
	RequirementsJSON string      `gorm:"type:text"`
	Tags             StringSlice `gorm:"type:text"`
	Notes            string
	// Transient field (ignored by GORM)
	Requirements []RecipeRequirement `gorm:"-"`
}

// TableName sets the table name for Recipe
func (Recipe) TableName() string {
	return "recipes"
}

// TimeMinutes returns the recipe's total estimated time in minutes.
func (r *Recipe) TimeMinutes() float64 {
	total := r.EstimatedTime
	if total == 0 {
		total = r.PrepTime + r.CookTime
	}
	return total.Minutes()
}

// GetRequirements returns the deserialized requirement lines
func (r *Recipe) GetRequirements() ([]RecipeRequirement, error) {
	if len(r.Requirements) > 0 {
		return r.Requirements, nil
	}
	var reqs []RecipeRequirement
	if r.RequirementsJSON == "" {
		return reqs, nil
	}
	if err := json.Unmarshal([]byte(r.RequirementsJSON), &reqs); err != nil {
		return nil, err
	}
	r.Requirements = reqs
	return reqs, nil
}

// SetRequirements serializes the requirement lines for storage
func (r *Recipe) SetRequirements(reqs []RecipeRequirement) error {
	data, err := json.Marshal(reqs)
	if err != nil {
		return err
	}
	r.RequirementsJSON = string(data)
	r.Requirements = reqs
	return nil
}

// RecipeRequirement represents one ingredient line of a recipe.
// IngredientID is empty when the catalog could not map the free-form
// name to a known ingredient.
type RecipeRequirement struct {
	IngredientID string  `json:"ingredient_id"`
	Name         string  `json:"name"`
	Quantity     float64 `json:"quantity"`
	Unit         string  `json:"unit"`
	Optional     bool    `json:"optional"`
}

// Required reports whether the line blocks cookability when short.
func (q *RecipeRequirement) Required() bool {
	return !q.Optional
}
