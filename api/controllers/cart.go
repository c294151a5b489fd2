package controllers

import (
	"net/http"

	"github.com/crustohq/crusto-backend/api/responses"
	"github.com/crustohq/crusto-backend/api/validators"
	"github.com/crustohq/crusto-backend/internal/cart"
	"github.com/crustohq/crusto-backend/pkg/logger"
)

type addCartItemRequest struct {
	PizzaID  string `json:"pizzaId" validate:"required"`
	Size     string `json:"size" validate:"required,oneof=small medium large"`
	Quantity int    `json:"quantity" validate:"required,min=1"`
}

type updateCartItemRequest struct {
	Quantity *int `json:"quantity" validate:"required,min=0"`
}

func GetCart(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID, err := pathUUID(r, "userID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		view, err := svc.GetCart(ctx, userID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func AddCartItem(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID, err := pathUUID(r, "userID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var req addCartItemRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		pizzaID, err := parseUUID(req.PizzaID, "pizzaId")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		view, err := svc.AddItem(ctx, cart.AddItemInput{
			UserID:   userID,
			PizzaID:  pizzaID,
			Size:     req.Size,
			Quantity: req.Quantity,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

func UpdateCartItem(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID, err := pathUUID(r, "userID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		itemID, err := pathUUID(r, "itemID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var req updateCartItemRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		view, err := svc.UpdateItemQuantity(ctx, userID, itemID, *req.Quantity)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func RemoveCartItem(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID, err := pathUUID(r, "userID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		itemID, err := pathUUID(r, "itemID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		view, err := svc.RemoveItem(ctx, userID, itemID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func ClearCart(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID, err := pathUUID(r, "userID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if err := svc.ClearCart(ctx, userID); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "cleared"})
	}
}
