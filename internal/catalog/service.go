package catalog

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/crustohq/crusto-backend/internal/derived"
	"github.com/crustohq/crusto-backend/pkg/db/models"
	"github.com/crustohq/crusto-backend/pkg/enums"
	pkgerrors "github.com/crustohq/crusto-backend/pkg/errors"
	"github.com/crustohq/crusto-backend/pkg/logger"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// invalidationQueues is the enqueue surface of the invalidation engine the
// catalog writes through. The Tx variants join the caller's transaction so
// the authoritative write and its invalidation are committed together.
type invalidationQueues interface {
	EnqueuePriceTx(ctx context.Context, tx *gorm.DB, ingredientID uuid.UUID) error
	EnqueueAvailabilityTx(ctx context.Context, tx *gorm.DB, ingredientID uuid.UUID) error
}

// Service exposes catalog writes and derived-value reads.
type Service interface {
	CreateIngredient(ctx context.Context, input CreateIngredientInput) (*models.Ingredient, error)
	UpdateIngredient(ctx context.Context, id uuid.UUID, input UpdateIngredientInput) (*models.Ingredient, error)
	DeleteIngredient(ctx context.Context, id uuid.UUID) error
	RestoreIngredient(ctx context.Context, id uuid.UUID) error
	GetIngredient(ctx context.Context, id uuid.UUID) (*models.Ingredient, error)
	ListIngredients(ctx context.Context, includeDeleted bool) ([]models.Ingredient, error)

	CreatePizza(ctx context.Context, input CreatePizzaInput) (*models.Pizza, error)
	UpdatePizza(ctx context.Context, id uuid.UUID, input UpdatePizzaInput) (*models.Pizza, error)
	DeletePizza(ctx context.Context, id uuid.UUID) error
	GetPizza(ctx context.Context, id uuid.UUID) (*derived.PizzaView, error)
	ListPizzas(ctx context.Context) ([]derived.PizzaView, error)
}

type service struct {
	ingredients IngredientRepository
	pizzas      PizzaRepository
	queues      invalidationQueues
	cache       derived.Cache
	embedder    derived.Embedder
	tx          txRunner
	logg        *logger.Logger
}

// NewService builds the catalog service with the required dependencies.
func NewService(
	ingredients IngredientRepository,
	pizzas PizzaRepository,
	queues invalidationQueues,
	cache derived.Cache,
	embedder derived.Embedder,
	tx txRunner,
	logg *logger.Logger,
) (Service, error) {
	if ingredients == nil {
		return nil, fmt.Errorf("ingredient repository required")
	}
	if pizzas == nil {
		return nil, fmt.Errorf("pizza repository required")
	}
	if queues == nil {
		return nil, fmt.Errorf("invalidation queues required")
	}
	if cache == nil {
		return nil, fmt.Errorf("derived cache required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		ingredients: ingredients,
		pizzas:      pizzas,
		queues:      queues,
		cache:       cache,
		embedder:    embedder,
		tx:          tx,
		logg:        logg,
	}, nil
}

func (s *service) CreateIngredient(ctx context.Context, input CreateIngredientInput) (*models.Ingredient, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	category, err := enums.ParseIngredientCategory(input.Category)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid ingredient category")
	}
	if input.Price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
	}

	ingredient := &models.Ingredient{
		Name:     input.Name,
		Category: category,
		Price:    input.Price.Round(2),
		Stock:    input.Stock,
	}
	return s.ingredients.Create(ctx, ingredient)
}

// UpdateIngredient applies the changed fields and enqueues the matching
// invalidations in the same transaction: a price change feeds the price
// queue, a stock change feeds the availability queue.
func (s *service) UpdateIngredient(ctx context.Context, id uuid.UUID, input UpdateIngredientInput) (*models.Ingredient, error) {
	existing, err := s.ingredients.FindByID(ctx, id)
	if err != nil {
		return nil, asNotFound(err, "ingredient not found")
	}

	updates := map[string]any{}
	priceChanged := false
	stockChanged := false

	if input.Name != nil && *input.Name != existing.Name {
		updates["name"] = *input.Name
	}
	if input.Price != nil && !input.Price.Equal(existing.Price) {
		if input.Price.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
		}
		updates["price"] = input.Price.Round(2)
		priceChanged = true
	}
	if input.Stock != nil {
		stock := *input.Stock
		if stock < 0 {
			stock = 0
		}
		if stock != existing.Stock {
			updates["stock"] = stock
			updates["is_available"] = stock > 0
			stockChanged = true
		}
	}

	if len(updates) == 0 {
		return existing, nil
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.ingredients.WithTx(tx).Update(ctx, id, updates); err != nil {
			return err
		}
		if priceChanged {
			if err := s.queues.EnqueuePriceTx(ctx, tx, id); err != nil {
				return fmt.Errorf("enqueue price invalidation: %w", err)
			}
		}
		if stockChanged {
			if err := s.queues.EnqueueAvailabilityTx(ctx, tx, id); err != nil {
				return fmt.Errorf("enqueue availability invalidation: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.ingredients.FindByID(ctx, id)
}

func (s *service) DeleteIngredient(ctx context.Context, id uuid.UUID) error {
	return s.setIngredientDeleted(ctx, id, true)
}

func (s *service) RestoreIngredient(ctx context.Context, id uuid.UUID) error {
	return s.setIngredientDeleted(ctx, id, false)
}

func (s *service) setIngredientDeleted(ctx context.Context, id uuid.UUID, deleted bool) error {
	existing, err := s.ingredients.FindByID(ctx, id)
	if err != nil {
		return asNotFound(err, "ingredient not found")
	}
	if existing.IsDeleted == deleted {
		return nil
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.ingredients.WithTx(tx).SetDeleted(ctx, id, deleted); err != nil {
			return err
		}
		if err := s.queues.EnqueueAvailabilityTx(ctx, tx, id); err != nil {
			return fmt.Errorf("enqueue availability invalidation: %w", err)
		}
		return nil
	})
}

func (s *service) GetIngredient(ctx context.Context, id uuid.UUID) (*models.Ingredient, error) {
	ingredient, err := s.ingredients.FindByID(ctx, id)
	if err != nil {
		return nil, asNotFound(err, "ingredient not found")
	}
	return ingredient, nil
}

func (s *service) ListIngredients(ctx context.Context, includeDeleted bool) ([]models.Ingredient, error) {
	return s.ingredients.List(ctx, includeDeleted)
}

// CreatePizza persists the pizza and eagerly warms both derived values so the
// first read never pays the compute cost.
func (s *service) CreatePizza(ctx context.Context, input CreatePizzaInput) (*models.Pizza, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	resolved, err := s.resolveIngredients(ctx, input.ingredientIDs())
	if err != nil {
		return nil, err
	}

	pizza := &models.Pizza{
		Name:        input.Name,
		Description: input.Description,
		Category:    input.Category,
		Badge:       input.Badge,
		IsListed:    true,
		CreatedBy:   input.CreatedBy,
		BaseID:      input.BaseID,
		SauceID:     input.SauceID,
	}
	for i, toppingID := range input.ToppingIDs {
		pizza.Toppings = append(pizza.Toppings, models.PizzaTopping{
			IngredientID: toppingID,
			Role:         resolved[toppingID].Category,
			Position:     i,
		})
	}

	created, err := s.pizzas.Create(ctx, pizza)
	if err != nil {
		return nil, err
	}
	s.warmCache(ctx, created.ID)
	return created, nil
}

func (s *service) UpdatePizza(ctx context.Context, id uuid.UUID, input UpdatePizzaInput) (*models.Pizza, error) {
	if _, err := s.pizzas.FindByID(ctx, id); err != nil {
		return nil, asNotFound(err, "pizza not found")
	}

	updates := map[string]any{}
	if input.Name != nil {
		updates["name"] = *input.Name
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.Category != nil {
		updates["category"] = *input.Category
	}
	if input.Badge != nil {
		updates["badge"] = *input.Badge
	}
	if input.IsListed != nil {
		updates["is_listed"] = *input.IsListed
	}
	if input.BaseID != nil {
		updates["base_id"] = *input.BaseID
	}
	if input.SauceID != nil {
		updates["sauce_id"] = *input.SauceID
	}

	referenced := []uuid.UUID{}
	if input.BaseID != nil {
		referenced = append(referenced, *input.BaseID)
	}
	if input.SauceID != nil {
		referenced = append(referenced, *input.SauceID)
	}
	if input.ToppingIDs != nil {
		referenced = append(referenced, *input.ToppingIDs...)
	}
	resolved, err := s.resolveIngredients(ctx, referenced)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.pizzas.WithTx(tx)
		if len(updates) > 0 {
			if err := repo.Update(ctx, id, updates); err != nil {
				return err
			}
		}
		if input.ToppingIDs != nil {
			toppings := make([]models.PizzaTopping, 0, len(*input.ToppingIDs))
			for i, toppingID := range *input.ToppingIDs {
				toppings = append(toppings, models.PizzaTopping{
					IngredientID: toppingID,
					Role:         resolved[toppingID].Category,
					Position:     i,
				})
			}
			if err := repo.ReplaceToppings(ctx, id, toppings); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.warmCache(ctx, id)
	return s.pizzas.FindByID(ctx, id)
}

func (s *service) DeletePizza(ctx context.Context, id uuid.UUID) error {
	if err := s.pizzas.Delete(ctx, id); err != nil {
		return asNotFound(err, "pizza not found")
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		// The rows are gone; a stale cache entry is harmless and unreachable.
		s.logg.Warn(s.logg.WithPizzaID(ctx, id.String()), "dropping cached values for deleted pizza failed")
	}
	return nil
}

func (s *service) GetPizza(ctx context.Context, id uuid.UUID) (*derived.PizzaView, error) {
	pizza, err := s.pizzas.FindByID(ctx, id)
	if err != nil {
		return nil, asNotFound(err, "pizza not found")
	}
	views, err := s.embedder.EmbedPizzas(ctx, []models.Pizza{*pizza})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *service) ListPizzas(ctx context.Context) ([]derived.PizzaView, error) {
	pizzas, err := s.pizzas.List(ctx)
	if err != nil {
		return nil, err
	}
	return s.embedder.EmbedPizzas(ctx, pizzas)
}

// warmCache refreshes both derived values after a catalog write. Failures are
// logged only; the next read recomputes on miss.
func (s *service) warmCache(ctx context.Context, pizzaID uuid.UUID) {
	ctx = s.logg.WithPizzaID(ctx, pizzaID.String())
	if _, err := s.cache.RefreshPrice(ctx, pizzaID); err != nil {
		s.logg.Error(ctx, "warming price cache failed", err)
	}
	if _, err := s.cache.RefreshAvailability(ctx, pizzaID); err != nil {
		s.logg.Error(ctx, "warming availability cache failed", err)
	}
}

// resolveIngredients loads every referenced ingredient so callers can read
// its category. An unresolved reference is a validation error.
func (s *service) resolveIngredients(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Ingredient, error) {
	resolved := map[uuid.UUID]models.Ingredient{}
	if len(ids) == 0 {
		return resolved, nil
	}
	unique := map[uuid.UUID]bool{}
	for _, id := range ids {
		unique[id] = true
	}
	deduped := make([]uuid.UUID, 0, len(unique))
	for id := range unique {
		deduped = append(deduped, id)
	}

	found, err := s.ingredients.FindByIDs(ctx, deduped)
	if err != nil {
		return nil, err
	}
	if len(found) != len(deduped) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown ingredient reference")
	}
	for _, ingredient := range found {
		resolved[ingredient.ID] = ingredient
	}
	return resolved, nil
}

func validateInput(input any) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}
	if errs, ok := err.(validator.ValidationErrors); ok {
		details := map[string]string{}
		for _, fieldErr := range errs {
			details[fieldErr.Field()] = validationMessage(fieldErr)
		}
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	}
	return "is invalid"
}

func asNotFound(err error, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, message)
	}
	return err
}
