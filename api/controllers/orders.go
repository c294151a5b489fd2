package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"gorm.io/gorm"

	"github.com/crustohq/crusto-backend/api/responses"
	"github.com/crustohq/crusto-backend/api/validators"
	"github.com/crustohq/crusto-backend/internal/orders"
	"github.com/crustohq/crusto-backend/pkg/db/models"
	"github.com/crustohq/crusto-backend/pkg/enums"
	pkgerrors "github.com/crustohq/crusto-backend/pkg/errors"
	"github.com/crustohq/crusto-backend/pkg/logger"
	"github.com/crustohq/crusto-backend/pkg/pagination"
)

type updateOrderStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type orderPage struct {
	Orders     []models.Order `json:"orders"`
	NextCursor string         `json:"nextCursor,omitempty"`
}

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "limit must be a non-negative integer").
			WithDetails(map[string]any{"field": "limit"})
	}
	return limit, nil
}

func GetOrder(repo orders.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		orderID, err := pathUUID(r, "orderID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				err = pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func ListUserOrders(repo orders.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID, err := pathUUID(r, "userID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		limit, err := parseLimit(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		cursor, err := pagination.ParseCursor(r.URL.Query().Get("cursor"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid cursor"))
			return
		}
		listed, next, err := repo.ListByUser(ctx, userID, limit, cursor)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, orderPage{Orders: listed, NextCursor: next})
	}
}

func UpdateOrderStatus(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		orderID, err := pathUUID(r, "orderID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var req updateOrderStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		status, err := enums.ParseOrderStatus(req.Status)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, err.Error()))
			return
		}
		if err := svc.UpdateStatus(ctx, orderID, status); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": string(status)})
	}
}

// MarkOrderDelivered drives the delivery transition and returns the stock
// settlement summary.
func MarkOrderDelivered(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		orderID, err := pathUUID(r, "orderID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		result, err := svc.MarkDelivered(ctx, orderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
