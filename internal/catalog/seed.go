package catalog

import (
	"log"
	"time"

	"github.com/jinzhu/gorm"

	"fridgechef/internal/models"
)

// Seed ensures a usable ingredient and recipe catalog exists so the service
// answers match queries out of the box. Existing rows are left untouched.
func Seed(db *gorm.DB) {
	var ingredientCount int64
	db.Model(&models.IngredientRef{}).Count(&ingredientCount)
	if ingredientCount == 0 {
		seedIngredients(db)
	}

	var recipeCount int64
	db.Model(&models.Recipe{}).Count(&recipeCount)
	if recipeCount == 0 {
		seedRecipes(db)
	}
}

func seedIngredients(db *gorm.DB) {
	defaults := []models.IngredientRef{
		{IngredientID: "egg", Name: "Egg", Kind: models.KindCount, Category: models.CategoryProtein, ReferencePrice: 0.35, ReferenceCurrency: "EUR"},
		{IngredientID: "flour", Name: "Wheat Flour", Kind: models.KindMass, Category: models.CategoryDryGoods, ReferencePrice: 1.20, ReferenceCurrency: "EUR"},
		{IngredientID: "milk", Name: "Whole Milk", Kind: models.KindVolume, Category: models.CategoryDairy, DensityGramsPerML: 1.03, ReferencePrice: 1.10, ReferenceCurrency: "EUR"},
		{IngredientID: "butter", Name: "Butter", Kind: models.KindMass, Category: models.CategoryDairy, ReferencePrice: 8.50, ReferenceCurrency: "EUR"},
		{IngredientID: "sugar", Name: "Sugar", Kind: models.KindMass, Category: models.CategoryDryGoods, ReferencePrice: 1.00, ReferenceCurrency: "EUR"},
		{IngredientID: "tomato", Name: "Tomato", Kind: models.KindMass, Category: models.CategoryProduce, ReferencePrice: 2.80, ReferenceCurrency: "EUR"},
		{IngredientID: "pasta", Name: "Dried Pasta", Kind: models.KindMass, Category: models.CategoryDryGoods, ReferencePrice: 1.60, ReferenceCurrency: "EUR"},
		{IngredientID: "olive-oil", Name: "Olive Oil", Kind: models.KindVolume, Category: models.CategoryCondiments, DensityGramsPerML: 0.92, ReferencePrice: 7.00, ReferenceCurrency: "EUR"},
		{IngredientID: "salt", Name: "Salt", Kind: models.KindMass, Category: models.CategorySpices, ReferencePrice: 0.60, ReferenceCurrency: "EUR"},
		{IngredientID: "chicken", Name: "Chicken Breast", Kind: models.KindMass, Category: models.CategoryProtein, ReferencePrice: 9.00, ReferenceCurrency: "EUR"},
	}
	for _, ref := range defaults {
		if err := db.Create(&ref).Error; err != nil {
			log.Printf("catalog: failed to seed ingredient %s: %v", ref.IngredientID, err)
		}
	}
}

func seedRecipes(db *gorm.DB) {
	omelette := models.Recipe{
		RecipeID:      "omelette-1",
		Name:          "Plain Omelette",
		Description:   "A quick three-egg omelette",
		Category:      "breakfast",
		Country:       "FR",
		PrepTime:      5 * time.Minute,
		CookTime:      5 * time.Minute,
		EstimatedTime: 10 * time.Minute,
		Servings:      1,
		Tags:          models.StringSlice{"egg", "quick", "easy"},
	}
	if err := omelette.SetRequirements([]models.RecipeRequirement{
		{IngredientID: "egg", Name: "Egg", Quantity: 3, Unit: "pc"},
		{IngredientID: "butter", Name: "Butter", Quantity: 10, Unit: "g"},
		{IngredientID: "salt", Name: "Salt", Quantity: 2, Unit: "g", Optional: true},
	}); err != nil {
		log.Printf("catalog: failed to serialize omelette requirements: %v", err)
		return
	}

	pancakes := models.Recipe{
		RecipeID:      "pancakes-1",
		Name:          "Pancakes",
		Description:   "Classic stovetop pancakes",
		Category:      "breakfast",
		Country:       "US",
		PrepTime:      10 * time.Minute,
		CookTime:      15 * time.Minute,
		EstimatedTime: 25 * time.Minute,
		Servings:      4,
		Tags:          models.StringSlice{"breakfast", "sweet"},
	}
	if err := pancakes.SetRequirements([]models.RecipeRequirement{
		{IngredientID: "flour", Name: "Wheat Flour", Quantity: 250, Unit: "g"},
		{IngredientID: "egg", Name: "Egg", Quantity: 2, Unit: "pc"},
		{IngredientID: "milk", Name: "Whole Milk", Quantity: 300, Unit: "ml"},
		{IngredientID: "sugar", Name: "Sugar", Quantity: 30, Unit: "g", Optional: true},
		{IngredientID: "butter", Name: "Butter", Quantity: 25, Unit: "g"},
	}); err != nil {
		log.Printf("catalog: failed to serialize pancake requirements: %v", err)
		return
	}

	pasta := models.Recipe{
		RecipeID:      "pasta-pomodoro-1",
		Name:          "Pasta al Pomodoro",
		Description:   "Pasta with a simple tomato sauce",
		Category:      "main",
		Country:       "IT",
		PrepTime:      10 * time.Minute,
		CookTime:      20 * time.Minute,
		EstimatedTime: 30 * time.Minute,
		Servings:      2,
		Tags:          models.StringSlice{"pasta", "vegetarian"},
	}
	if err := pasta.SetRequirements([]models.RecipeRequirement{
		{IngredientID: "pasta", Name: "Dried Pasta", Quantity: 200, Unit: "g"},
		{IngredientID: "tomato", Name: "Tomato", Quantity: 400, Unit: "g"},
		{IngredientID: "olive-oil", Name: "Olive Oil", Quantity: 2, Unit: "tbsp"},
		{IngredientID: "salt", Name: "Salt", Quantity: 5, Unit: "g", Optional: true},
	}); err != nil {
		log.Printf("catalog: failed to serialize pasta requirements: %v", err)
		return
	}

	for _, recipe := range []models.Recipe{omelette, pancakes, pasta} {
		if err := db.Create(&recipe).Error; err != nil {
			log.Printf("catalog: failed to seed recipe %s: %v", recipe.RecipeID, err)
		}
	}
}
