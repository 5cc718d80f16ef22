// Package store persists the product catalog, recipes and saved allergen
// reports with gorm on sqlite or postgres.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"allergen-engine/internal/core/allergen"
	"allergen-engine/internal/core/mapping"
	"allergen-engine/internal/core/units"
	"allergen-engine/internal/pkg/common"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store is the engine's persistence layer.
type Store struct {
	db    *gorm.DB
	locks keyedMutex
}

var _ allergen.RecipeStore = (*Store)(nil)

// Open connects with driver and dsn and migrates the schema. An empty sqlite
// dsn opens an in-memory database.
func Open(driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite, "":
		if dsn == "" {
			dsn = ":memory:"
		}
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: newGormLogger(200 * time.Millisecond)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if driver != DriverPostgres {
		// one writer keeps sqlite from returning SQLITE_BUSY under the batch fan-out
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}
	return New(db)
}

// New wraps an open connection and migrates the schema.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(
		&ProductModel{},
		&RecipeModel{},
		&RecipeIngredientModel{},
		&AllergenRecordModel{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Store{db: db}, nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ListProducts returns the catalog ordered by name.
func (s *Store) ListProducts(ctx context.Context) ([]mapping.Product, error) {
	var rows []ProductModel
	if err := s.db.WithContext(ctx).Order("name").Find(&rows).Error; err != nil {
		return nil, common.Wrap(common.ErrStorage, err)
	}
	products := make([]mapping.Product, 0, len(rows))
	for _, r := range rows {
		products = append(products, productFromModel(r))
	}
	return products, nil
}

// UpsertProduct inserts p or replaces the product with the same name. The
// unit goes through the supplier table first.
func (s *Store) UpsertProduct(ctx context.Context, p mapping.Product) error {
	p.Name = strings.TrimSpace(p.Name)
	if strings.TrimSpace(p.Unit) != "" {
		p.Unit = units.NormalizeSupplierUnit(p.Unit)
	}
	if err := p.Validate(); err != nil {
		return err
	}

	row := productToModel(p)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"sku", "category", "supplier", "pack_size", "unit", "price_per_unit", "cost_per_oz", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return common.Wrap(common.ErrStorage, err)
	}
	return nil
}

// SeedProducts upserts every product and returns how many were written.
func (s *Store) SeedProducts(ctx context.Context, products []mapping.Product) (int, error) {
	n := 0
	for _, p := range products {
		if err := s.UpsertProduct(ctx, p); err != nil {
			return n, fmt.Errorf("product %q: %w", p.Name, err)
		}
		n++
	}
	return n, nil
}

// LoadCatalogFile reads a JSON array of products.
func LoadCatalogFile(path string) ([]mapping.Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, common.Wrap(common.ErrInvalidReferenceData, err)
	}
	var products []mapping.Product
	if err := common.ParseJSONBytes(data, &products); err != nil {
		return nil, common.Wrap(common.ErrInvalidReferenceData, err)
	}
	return products, nil
}

// CreateRecipe stores r and assigns it an ID when it has none. Names are unique.
func (s *Store) CreateRecipe(ctx context.Context, r *common.Recipe) error {
	r.Name = strings.TrimSpace(r.Name)
	if err := common.ValidateStruct(r); err != nil {
		return err
	}
	if r.RecipeID == "" {
		r.RecipeID = common.GenerateUUID()
	} else if _, err := uuid.Parse(r.RecipeID); err != nil {
		return common.NewValidationError("recipe_id must be a UUID")
	}

	unlock := s.locks.lock(r.Name)
	defer unlock()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&RecipeModel{}).Where("name = ?", r.Name).Count(&count).Error; err != nil {
			return common.Wrap(common.ErrStorage, err)
		}
		if count > 0 {
			return common.ErrRecipeExists
		}
		row := recipeToModel(r)
		if err := tx.Create(&row).Error; err != nil {
			return common.Wrap(common.ErrStorage, err)
		}
		common.LogInfo("recipe created", zap.String("recipe", r.Name), zap.String("recipe_id", r.RecipeID))
		return nil
	})
}

// LoadRecipe returns the recipe named name with its ingredients in order.
func (s *Store) LoadRecipe(ctx context.Context, name string) (*common.Recipe, error) {
	row, err := s.findRecipe(ctx, "name = ?", strings.TrimSpace(name))
	if err != nil {
		return nil, err
	}
	return recipeFromModel(*row), nil
}

// GetRecipeByID returns the recipe with the given ID.
func (s *Store) GetRecipeByID(ctx context.Context, id string) (*common.Recipe, error) {
	row, err := s.findRecipe(ctx, "id = ?", id)
	if err != nil {
		return nil, err
	}
	return recipeFromModel(*row), nil
}

func (s *Store) findRecipe(ctx context.Context, query string, arg interface{}) (*RecipeModel, error) {
	var row RecipeModel
	err := s.db.WithContext(ctx).
		Preload("Ingredients", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where(query, arg).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.ErrRecipeNotFound
	}
	if err != nil {
		return nil, common.Wrap(common.ErrStorage, err)
	}
	return &row, nil
}

// ListRecipeNames returns every recipe name in alphabetical order.
func (s *Store) ListRecipeNames(ctx context.Context) ([]string, error) {
	var names []string
	if err := s.db.WithContext(ctx).Model(&RecipeModel{}).Order("name").Pluck("name", &names).Error; err != nil {
		return nil, common.Wrap(common.ErrStorage, err)
	}
	return names, nil
}

// Save replaces the stored allergen report of the named recipe.
func (s *Store) Save(ctx context.Context, recipeName string, report *allergen.Report) error {
	recipeName = strings.TrimSpace(recipeName)
	unlock := s.locks.lock(recipeName)
	defer unlock()

	var recipe RecipeModel
	err := s.db.WithContext(ctx).Select("id").Where("name = ?", recipeName).First(&recipe).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return common.ErrRecipeNotFound
	}
	if err != nil {
		return common.Wrap(common.ErrStorage, err)
	}

	rec := AllergenRecordModel{
		RecipeID:         recipe.ID,
		Allergens:        report.Allergens,
		AllergenDetails:  report.AllergenDetails,
		DetectionMethods: report.DetectionMethods,
		TotalDetected:    report.TotalDetected,
		FDATop9Count:     report.FDATop9Count,
		LastUpdated:      time.Now().UTC(),
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "recipe_id"}},
		UpdateAll: true,
	}).Create(&rec).Error
	if err != nil {
		return common.Wrap(common.ErrStorage, err)
	}

	common.LogDebug("allergen report saved",
		zap.String("recipe", recipeName),
		zap.Int("allergens", report.TotalDetected),
	)
	return nil
}

// Get returns the saved allergen report of the named recipe.
func (s *Store) Get(ctx context.Context, recipeName string) (*allergen.SavedAllergens, error) {
	recipeName = strings.TrimSpace(recipeName)
	var rec AllergenRecordModel
	err := s.db.WithContext(ctx).
		Joins("JOIN recipes ON recipes.id = recipe_allergens.recipe_id").
		Where("recipes.name = ?", recipeName).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.ErrRecipeNotFound
	}
	if err != nil {
		return nil, common.Wrap(common.ErrStorage, err)
	}

	return &allergen.SavedAllergens{
		Allergens:       nonNil(rec.Allergens),
		AllergenDetails: rec.AllergenDetails,
		AllergenMetadata: allergen.SavedMetadata{
			DetectionMethods: rec.DetectionMethods,
			LastUpdated:      rec.LastUpdated,
			TotalDetected:    rec.TotalDetected,
			FDATop9Count:     rec.FDATop9Count,
		},
		RecipeName: recipeName,
	}, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// keyedMutex serializes work per key. An entry lives only while someone
// holds or waits for it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &refMutex{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
