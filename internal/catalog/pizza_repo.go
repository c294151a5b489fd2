package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/crustohq/crusto-backend/pkg/db/models"
)

type pizzaRepository struct {
	db *gorm.DB
}

// NewPizzaRepository builds a pizza repository bound to the provided DB.
func NewPizzaRepository(db *gorm.DB) PizzaRepository {
	return &pizzaRepository{db: db}
}

func (r *pizzaRepository) WithTx(tx *gorm.DB) PizzaRepository {
	if tx == nil {
		return r
	}
	return &pizzaRepository{db: tx}
}

func (r *pizzaRepository) Create(ctx context.Context, pizza *models.Pizza) (*models.Pizza, error) {
	if err := r.db.WithContext(ctx).Create(pizza).Error; err != nil {
		return nil, err
	}
	return pizza, nil
}

func (r *pizzaRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Pizza, error) {
	var pizza models.Pizza
	err := r.db.WithContext(ctx).
		Preload("Toppings").
		Where("id = ?", id).
		First(&pizza).Error
	if err != nil {
		return nil, err
	}
	return &pizza, nil
}

func (r *pizzaRepository) List(ctx context.Context) ([]models.Pizza, error) {
	var pizzas []models.Pizza
	err := r.db.WithContext(ctx).
		Preload("Toppings").
		Where("is_listed = ?", true).
		Order("created_at ASC").
		Find(&pizzas).Error
	if err != nil {
		return nil, err
	}
	return pizzas, nil
}

func (r *pizzaRepository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	result := r.db.WithContext(ctx).
		Model(&models.Pizza{}).
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

func (r *pizzaRepository) ReplaceToppings(ctx context.Context, pizzaID uuid.UUID, toppings []models.PizzaTopping) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("pizza_id = ?", pizzaID).Delete(&models.PizzaTopping{}).Error; err != nil {
		return err
	}
	if len(toppings) == 0 {
		return nil
	}
	for i := range toppings {
		toppings[i].PizzaID = pizzaID
	}
	return db.Create(&toppings).Error
}

// Delete removes the pizza permanently along with its topping links and any
// cart lines that reference it.
func (r *pizzaRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("pizza_id = ?", id).Delete(&models.CartItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("pizza_id = ?", id).Delete(&models.PizzaTopping{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&models.Pizza{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// FindReferencing returns every pizza whose base, sauce or toppings use the
// ingredient. This is the fan-out set an invalidation job refreshes.
func (r *pizzaRepository) FindReferencing(ctx context.Context, ingredientID uuid.UUID) ([]models.Pizza, error) {
	db := r.db.WithContext(ctx)
	toppingMatch := db.Session(&gorm.Session{NewDB: true}).
		Model(&models.PizzaTopping{}).
		Select("pizza_id").
		Where("ingredient_id = ?", ingredientID)

	var pizzas []models.Pizza
	err := db.
		Preload("Toppings").
		Where("base_id = ? OR sauce_id = ? OR id IN (?)", ingredientID, ingredientID, toppingMatch).
		Order("created_at ASC").
		Find(&pizzas).Error
	if err != nil {
		return nil, err
	}
	return pizzas, nil
}

func (r *pizzaRepository) CountReferencing(ctx context.Context, ingredientID uuid.UUID) (int64, error) {
	db := r.db.WithContext(ctx)
	toppingMatch := db.Session(&gorm.Session{NewDB: true}).
		Model(&models.PizzaTopping{}).
		Select("pizza_id").
		Where("ingredient_id = ?", ingredientID)

	var count int64
	err := db.
		Model(&models.Pizza{}).
		Where("base_id = ? OR sauce_id = ? OR id IN (?)", ingredientID, ingredientID, toppingMatch).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
