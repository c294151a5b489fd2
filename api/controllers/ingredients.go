package controllers

import (
	"net/http"

	"github.com/crustohq/crusto-backend/api/responses"
	"github.com/crustohq/crusto-backend/api/validators"
	"github.com/crustohq/crusto-backend/internal/catalog"
	"github.com/crustohq/crusto-backend/pkg/logger"
)

func ListIngredients(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		includeDeleted, err := validators.ParseQueryBool(r, "includeDeleted", false)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		ingredients, err := svc.ListIngredients(ctx, includeDeleted)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, ingredients)
	}
}

func CreateIngredient(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var input catalog.CreateIngredientInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		ingredient, err := svc.CreateIngredient(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, ingredient)
	}
}

func GetIngredient(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := pathUUID(r, "ingredientID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		ingredient, err := svc.GetIngredient(ctx, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, ingredient)
	}
}

func UpdateIngredient(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := pathUUID(r, "ingredientID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var input catalog.UpdateIngredientInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		ingredient, err := svc.UpdateIngredient(ctx, id, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, ingredient)
	}
}

func DeleteIngredient(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := pathUUID(r, "ingredientID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if err := svc.DeleteIngredient(ctx, id); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

func RestoreIngredient(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := pathUUID(r, "ingredientID")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if err := svc.RestoreIngredient(ctx, id); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "restored"})
	}
}
