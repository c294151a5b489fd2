package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/crustohq/crusto-backend/internal/settlement"
	"github.com/crustohq/crusto-backend/pkg/enums"
	pkgerrors "github.com/crustohq/crusto-backend/pkg/errors"
	"github.com/crustohq/crusto-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockSettler interface {
	SettleOrderStockTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*settlement.Result, error)
}

// Service defines order-level operations beyond repository reads.
type Service interface {
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error
	// MarkDelivered moves the order to delivered and settles ingredient
	// stock in the same transaction. A settlement failure rolls the
	// status change back.
	MarkDelivered(ctx context.Context, orderID uuid.UUID) (*settlement.Result, error)
}

type service struct {
	repo       Repository
	tx         txRunner
	settlement stockSettler
	logger     *logger.Logger
}

// NewService builds an order service with the required dependencies.
func NewService(repo Repository, tx txRunner, settler stockSettler, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if settler == nil {
		return nil, fmt.Errorf("stock settler required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, tx: tx, settlement: settler, logger: logg}, nil
}

// allowedTransitions maps each status to the statuses it may move to.
// Delivered and cancelled are terminal.
var allowedTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:        {enums.OrderStatusConfirmed, enums.OrderStatusCancelled},
	enums.OrderStatusConfirmed:      {enums.OrderStatusPreparing, enums.OrderStatusCancelled},
	enums.OrderStatusPreparing:      {enums.OrderStatusOutForDelivery},
	enums.OrderStatusOutForDelivery: {enums.OrderStatusDelivered},
}

func canTransition(from, to enums.OrderStatus) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

func (s *service) UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	if status == enums.OrderStatusDelivered {
		// Delivery owns a stock settlement; route it through MarkDelivered.
		_, err := s.MarkDelivered(ctx, orderID)
		return err
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return asNotFound(err, "load order")
		}
		if order.Status == status {
			return nil
		}
		if !canTransition(order.Status, status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order cannot move from %s to %s", order.Status, status))
		}
		if err := repo.UpdateStatus(ctx, orderID, status); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		return nil
	})
}

func (s *service) MarkDelivered(ctx context.Context, orderID uuid.UUID) (*settlement.Result, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var result *settlement.Result
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return asNotFound(err, "load order")
		}
		if order.Status == enums.OrderStatusDelivered {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already delivered")
		}
		if !canTransition(order.Status, enums.OrderStatusDelivered) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order cannot be delivered from %s", order.Status))
		}
		if err := repo.UpdateStatus(ctx, orderID, enums.OrderStatusDelivered); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}

		result, err = s.settlement.SettleOrderStockTx(ctx, tx, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logger.WithField(ctx, "order_id", orderID.String())
	s.logger.Info(ctx, "order delivered and stock settled")
	return result, nil
}

func asNotFound(err error, action string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}
