package store

import (
	"time"

	"allergen-engine/internal/core/allergen"
	"allergen-engine/internal/core/mapping"
	"allergen-engine/internal/pkg/common"
)

// ProductModel is a catalog row.
type ProductModel struct {
	ID           uint   `gorm:"primaryKey"`
	Name         string `gorm:"uniqueIndex;not null"`
	SKU          string
	Category     string
	Supplier     string
	PackSize     string
	Unit         string  `gorm:"not null"`
	PricePerUnit float64 `gorm:"not null;default:0"`
	CostPerOz    *float64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (ProductModel) TableName() string { return "products" }

// RecipeModel is a stored recipe.
type RecipeModel struct {
	ID           string `gorm:"primaryKey;size:36"`
	Name         string `gorm:"uniqueIndex;not null"`
	Description  string
	Servings     int
	Category     string
	PrepTime     int
	CookTime     int
	Instructions string
	Ingredients  []RecipeIngredientModel `gorm:"foreignKey:RecipeID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (RecipeModel) TableName() string { return "recipes" }

// RecipeIngredientModel is one line of a recipe. Position keeps input order.
type RecipeIngredientModel struct {
	ID          uint   `gorm:"primaryKey"`
	RecipeID    string `gorm:"index;size:36;not null"`
	Position    int
	ProductName string
	RawName     string
	Quantity    float64
	Unit        string
	UOM         string
}

func (RecipeIngredientModel) TableName() string { return "recipe_ingredients" }

// AllergenRecordModel holds the last saved report of a recipe.
type AllergenRecordModel struct {
	RecipeID         string                              `gorm:"primaryKey;size:36"`
	Allergens        []string                            `gorm:"serializer:json"`
	AllergenDetails  map[string]*allergen.CombinedRecord `gorm:"serializer:json"`
	DetectionMethods []allergen.Source                   `gorm:"serializer:json"`
	TotalDetected    int
	FDATop9Count     int
	LastUpdated      time.Time
}

func (AllergenRecordModel) TableName() string { return "recipe_allergens" }

func productFromModel(m ProductModel) mapping.Product {
	return mapping.Product{
		Name:         m.Name,
		SKU:          m.SKU,
		Category:     m.Category,
		Supplier:     m.Supplier,
		PackSize:     m.PackSize,
		Unit:         m.Unit,
		PricePerUnit: m.PricePerUnit,
		CostPerOzSet: m.CostPerOz,
	}
}

func productToModel(p mapping.Product) ProductModel {
	return ProductModel{
		Name:         p.Name,
		SKU:          p.SKU,
		Category:     p.Category,
		Supplier:     p.Supplier,
		PackSize:     p.PackSize,
		Unit:         p.Unit,
		PricePerUnit: p.PricePerUnit,
		CostPerOz:    p.CostPerOzSet,
	}
}

func recipeFromModel(m RecipeModel) *common.Recipe {
	r := &common.Recipe{
		RecipeID:     m.ID,
		Name:         m.Name,
		Description:  m.Description,
		Servings:     m.Servings,
		Category:     m.Category,
		PrepTime:     m.PrepTime,
		CookTime:     m.CookTime,
		Instructions: m.Instructions,
		Ingredients:  make([]common.Ingredient, 0, len(m.Ingredients)),
	}
	for _, ing := range m.Ingredients {
		r.Ingredients = append(r.Ingredients, common.Ingredient{
			ProductName: ing.ProductName,
			RawName:     ing.RawName,
			Quantity:    ing.Quantity,
			Unit:        ing.Unit,
			UOM:         ing.UOM,
		})
	}
	return r
}

func recipeToModel(r *common.Recipe) RecipeModel {
	m := RecipeModel{
		ID:           r.RecipeID,
		Name:         r.Name,
		Description:  r.Description,
		Servings:     r.Servings,
		Category:     r.Category,
		PrepTime:     r.PrepTime,
		CookTime:     r.CookTime,
		Instructions: r.Instructions,
	}
	for i, ing := range r.Ingredients {
		m.Ingredients = append(m.Ingredients, RecipeIngredientModel{
			RecipeID:    r.RecipeID,
			Position:    i,
			ProductName: ing.ProductName,
			RawName:     ing.RawName,
			Quantity:    ing.Quantity,
			Unit:        ing.Unit,
			UOM:         ing.UOM,
		})
	}
	return m
}
