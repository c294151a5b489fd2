package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/crustohq/crusto-backend/pkg/logger"
)

func TestPubSubNotifierPublishesAlertPayload(t *testing.T) {
	pub := &fakePublisher{}
	notifier, err := newPubSubNotifier(pub, testLogger())
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}

	alert := LowStockAlert{
		IngredientID:   uuid.New(),
		Name:           "mozzarella",
		Stock:          3,
		AffectedPizzas: 7,
	}
	if err := notifier.NotifyLowStock(context.Background(), alert); err != nil {
		t.Fatalf("notify: %v", err)
	}

	if len(pub.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(pub.messages))
	}
	msg := pub.messages[0]
	if msg.Attributes["alert_type"] != "low_stock" {
		t.Fatalf("unexpected alert_type %q", msg.Attributes["alert_type"])
	}
	if msg.Attributes["ingredient_id"] != alert.IngredientID.String() {
		t.Fatalf("unexpected ingredient_id %q", msg.Attributes["ingredient_id"])
	}

	var decoded LowStockAlert
	if err := json.Unmarshal(msg.Data, &decoded); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if decoded != alert {
		t.Fatalf("payload mismatch: %+v", decoded)
	}
}

func TestPubSubNotifierSurfacesPublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("topic gone")}
	notifier, err := newPubSubNotifier(pub, testLogger())
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}

	err = notifier.NotifyLowStock(context.Background(), LowStockAlert{IngredientID: uuid.New()})
	if err == nil {
		t.Fatal("expected publish error to surface")
	}
}

func TestLogNotifierNeverFails(t *testing.T) {
	notifier, err := NewLogNotifier(testLogger())
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}
	if err := notifier.NotifyLowStock(context.Background(), LowStockAlert{IngredientID: uuid.New()}); err != nil {
		t.Fatalf("log notifier returned error: %v", err)
	}
}

type fakePublisher struct {
	messages []*gcppubsub.Message
	err      error
}

func (f *fakePublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	f.messages = append(f.messages, msg)
	return fakeResult{err: f.err}
}

type fakeResult struct {
	err error
}

func (r fakeResult) Get(ctx context.Context) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return "server-id", nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}
