package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/crustohq/crusto-backend/pkg/db/models"
)

type ingredientRepository struct {
	db *gorm.DB
}

// NewIngredientRepository builds an ingredient repository bound to the provided DB.
func NewIngredientRepository(db *gorm.DB) IngredientRepository {
	return &ingredientRepository{db: db}
}

func (r *ingredientRepository) WithTx(tx *gorm.DB) IngredientRepository {
	if tx == nil {
		return r
	}
	return &ingredientRepository{db: tx}
}

func (r *ingredientRepository) Create(ctx context.Context, ingredient *models.Ingredient) (*models.Ingredient, error) {
	if err := r.db.WithContext(ctx).Create(ingredient).Error; err != nil {
		return nil, err
	}
	return ingredient, nil
}

func (r *ingredientRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Ingredient, error) {
	var ingredient models.Ingredient
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&ingredient).Error
	if err != nil {
		return nil, err
	}
	return &ingredient, nil
}

func (r *ingredientRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Ingredient, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var ingredients []models.Ingredient
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&ingredients).Error
	if err != nil {
		return nil, err
	}
	return ingredients, nil
}

func (r *ingredientRepository) List(ctx context.Context, includeDeleted bool) ([]models.Ingredient, error) {
	query := r.db.WithContext(ctx).Order("name ASC")
	if !includeDeleted {
		query = query.Where("is_deleted = ?", false)
	}
	var ingredients []models.Ingredient
	if err := query.Find(&ingredients).Error; err != nil {
		return nil, err
	}
	return ingredients, nil
}

func (r *ingredientRepository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	result := r.db.WithContext(ctx).
		Model(&models.Ingredient{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetStock writes the stock level, floored at zero, and keeps the derived
// availability flag in lockstep.
func (r *ingredientRepository) SetStock(ctx context.Context, id uuid.UUID, stock int) error {
	if stock < 0 {
		stock = 0
	}
	return r.Update(ctx, id, map[string]any{
		"stock":        stock,
		"is_available": stock > 0,
	})
}

func (r *ingredientRepository) SetDeleted(ctx context.Context, id uuid.UUID, deleted bool) error {
	return r.Update(ctx, id, map[string]any{"is_deleted": deleted})
}

func (r *ingredientRepository) ListLowStock(ctx context.Context, threshold int) ([]models.Ingredient, error) {
	var ingredients []models.Ingredient
	err := r.db.WithContext(ctx).
		Where("stock <= ? AND is_deleted = ?", threshold, false).
		Order("stock ASC").
		Find(&ingredients).Error
	if err != nil {
		return nil, err
	}
	return ingredients, nil
}
