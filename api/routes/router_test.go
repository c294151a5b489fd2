package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	cartsvc "github.com/crustohq/crusto-backend/internal/cart"
	"github.com/crustohq/crusto-backend/internal/catalog"
	"github.com/crustohq/crusto-backend/internal/derived"
	"github.com/crustohq/crusto-backend/internal/invalidation"
	"github.com/crustohq/crusto-backend/internal/orders"
	"github.com/crustohq/crusto-backend/internal/settlement"
	"github.com/crustohq/crusto-backend/pkg/config"
	"github.com/crustohq/crusto-backend/pkg/db"
	"github.com/crustohq/crusto-backend/pkg/db/models"
	"github.com/crustohq/crusto-backend/pkg/logger"
)

type okPinger struct{}

func (okPinger) Ping(ctx context.Context) error { return nil }

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	dsn := "file:routes_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = conn.AutoMigrate(
		&models.Ingredient{},
		&models.Pizza{},
		&models.PizzaTopping{},
		&models.Cart{},
		&models.CartItem{},
		&models.Order{},
		&models.OrderLineItem{},
		&models.InvalidationJob{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	cfg := &config.Config{}
	cfg.App.Env = "test"

	ingredients := catalog.NewIngredientRepository(conn)
	pizzas := catalog.NewPizzaRepository(conn)
	source := catalog.NewSource(ingredients, pizzas)
	cache, err := derived.NewCache(newFakeStore(), source, logg)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	embedder, err := derived.NewEmbedder(cache, source, logg)
	if err != nil {
		t.Fatalf("new embedder: %v", err)
	}
	queues, err := invalidation.NewQueues(invalidation.NewJobRepository(conn), logg)
	if err != nil {
		t.Fatalf("new queues: %v", err)
	}
	catalogService, err := catalog.NewService(ingredients, pizzas, queues, cache, embedder, db.FromGorm(conn), logg)
	if err != nil {
		t.Fatalf("new catalog service: %v", err)
	}
	cartService, err := cartsvc.NewService(cartsvc.NewRepository(conn), pizzas, embedder, logg)
	if err != nil {
		t.Fatalf("new cart service: %v", err)
	}
	settler, err := settlement.NewService(db.FromGorm(conn), queues, logg)
	if err != nil {
		t.Fatalf("new settlement service: %v", err)
	}
	ordersRepo := orders.NewRepository(conn)
	ordersService, err := orders.NewService(ordersRepo, db.FromGorm(conn), settler, logg)
	if err != nil {
		t.Fatalf("new orders service: %v", err)
	}

	return NewRouter(cfg, logg, okPinger{}, okPinger{}, catalogService, cartService, ordersRepo, ordersService)
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpointsMounted(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)
	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rec := doJSON(t, router, http.MethodGet, path, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestIngredientAndPizzaFlow(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)

	createIngredient := func(name, category, price string, stock int) string {
		rec := doJSON(t, router, http.MethodPost, "/api/v1/ingredients", map[string]any{
			"name":     name,
			"category": category,
			"price":    price,
			"stock":    stock,
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("create ingredient %s: %d %s", name, rec.Code, rec.Body.String())
		}
		var envelope struct {
			Data struct {
				ID string `json:"id"`
			} `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return envelope.Data.ID
	}

	doughID := createIngredient("dough", "base", "2.50", 10)
	tomatoID := createIngredient("tomato", "sauce", "1.25", 10)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/pizzas", map[string]any{
		"name":    "margherita",
		"baseId":  doughID,
		"sauceId": tomatoID,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create pizza: %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, router, http.MethodGet, "/api/v1/pizzas", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list pizzas: %d", rec.Code)
	}
	var listed struct {
		Data []struct {
			Name        string `json:"name"`
			Price       string `json:"price"`
			IsAvailable bool   `json:"isAvailable"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed.Data) != 1 {
		t.Fatalf("expected 1 pizza, got %d", len(listed.Data))
	}
	if listed.Data[0].Price != "3.75" || !listed.Data[0].IsAvailable {
		t.Fatalf("unexpected derived values: %+v", listed.Data[0])
	}

	// Unknown ingredient reference is a 400.
	rec = doJSON(t, router, http.MethodPost, "/api/v1/pizzas", map[string]any{
		"name":    "ghost",
		"baseId":  uuid.NewString(),
		"sauceId": tomatoID,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown ingredient, got %d", rec.Code)
	}
}

func TestCartFlow(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)
	userID := uuid.NewString()

	ingredient := func(name, category string) string {
		rec := doJSON(t, router, http.MethodPost, "/api/v1/ingredients", map[string]any{
			"name": name, "category": category, "price": "2.00", "stock": 5,
		})
		var envelope struct {
			Data struct {
				ID string `json:"id"`
			} `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return envelope.Data.ID
	}
	doughID := ingredient("dough", "base")
	tomatoID := ingredient("tomato", "sauce")

	rec := doJSON(t, router, http.MethodPost, "/api/v1/pizzas", map[string]any{
		"name": "plain", "baseId": doughID, "sauceId": tomatoID,
	})
	var pizzaEnvelope struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &pizzaEnvelope); err != nil {
		t.Fatalf("decode pizza: %v", err)
	}

	rec = doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/v1/users/%s/cart/items", userID), map[string]any{
		"pizzaId":  pizzaEnvelope.Data.ID,
		"size":     "large",
		"quantity": 2,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add cart item: %d %s", rec.Code, rec.Body.String())
	}
	var cartEnvelope struct {
		Data struct {
			Items []struct {
				ID         string `json:"id"`
				TotalPrice string `json:"totalPrice"`
			} `json:"items"`
			CartTotalPrice string `json:"cartTotalPrice"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &cartEnvelope); err != nil {
		t.Fatalf("decode cart: %v", err)
	}
	// 4.00 x 2 large multiplier x 2 quantity.
	if cartEnvelope.Data.CartTotalPrice != "16.00" {
		t.Fatalf("expected cart total 16.00, got %s", cartEnvelope.Data.CartTotalPrice)
	}

	rec = doJSON(t, router, http.MethodDelete, fmt.Sprintf("/api/v1/users/%s/cart", userID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("clear cart: %d", rec.Code)
	}
}

type fakeStore struct {
	data map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string)}
}

func (s *fakeStore) Get(ctx context.Context, key string) (string, error) {
	v, ok := s.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (s *fakeStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	s.data[key] = value.(string)
	return nil
}

func (s *fakeStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

func (s *fakeStore) PriceKey(pizzaID string) string        { return "crusto:price:" + pizzaID }
func (s *fakeStore) AvailabilityKey(pizzaID string) string { return "crusto:isAvailable:" + pizzaID }
