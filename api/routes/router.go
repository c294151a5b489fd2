package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/crustohq/crusto-backend/api/controllers"
	"github.com/crustohq/crusto-backend/api/middleware"
	cartsvc "github.com/crustohq/crusto-backend/internal/cart"
	"github.com/crustohq/crusto-backend/internal/catalog"
	"github.com/crustohq/crusto-backend/internal/ops"
	"github.com/crustohq/crusto-backend/internal/orders"
	"github.com/crustohq/crusto-backend/pkg/config"
	"github.com/crustohq/crusto-backend/pkg/db"
	"github.com/crustohq/crusto-backend/pkg/logger"
	"github.com/crustohq/crusto-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	catalogService catalog.Service,
	cartService cartsvc.Service,
	ordersRepo orders.Repository,
	ordersService orders.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Mount("/", ops.NewRouter(cfg, logg, dbP, redisP))

	r.Route("/api/v1/ingredients", func(r chi.Router) {
		r.Get("/", controllers.ListIngredients(catalogService, logg))
		r.Post("/", controllers.CreateIngredient(catalogService, logg))
		r.Get("/{ingredientID}", controllers.GetIngredient(catalogService, logg))
		r.Patch("/{ingredientID}", controllers.UpdateIngredient(catalogService, logg))
		r.Delete("/{ingredientID}", controllers.DeleteIngredient(catalogService, logg))
		r.Post("/{ingredientID}/restore", controllers.RestoreIngredient(catalogService, logg))
	})

	r.Route("/api/v1/pizzas", func(r chi.Router) {
		r.Get("/", controllers.ListPizzas(catalogService, logg))
		r.Post("/", controllers.CreatePizza(catalogService, logg))
		r.Get("/{pizzaID}", controllers.GetPizza(catalogService, logg))
		r.Patch("/{pizzaID}", controllers.UpdatePizza(catalogService, logg))
		r.Delete("/{pizzaID}", controllers.DeletePizza(catalogService, logg))
	})

	r.Route("/api/v1/users/{userID}", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.GetCart(cartService, logg))
			r.Post("/items", controllers.AddCartItem(cartService, logg))
			r.Patch("/items/{itemID}", controllers.UpdateCartItem(cartService, logg))
			r.Delete("/items/{itemID}", controllers.RemoveCartItem(cartService, logg))
			r.Delete("/", controllers.ClearCart(cartService, logg))
		})
		r.Get("/orders", controllers.ListUserOrders(ordersRepo, logg))
	})

	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Get("/{orderID}", controllers.GetOrder(ordersRepo, logg))
		r.Post("/{orderID}/status", controllers.UpdateOrderStatus(ordersService, logg))
		r.Post("/{orderID}/delivered", controllers.MarkOrderDelivered(ordersService, logg))
	})

	return r
}
