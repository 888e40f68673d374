package events

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/edumfa/edumfa-go/internal/common"
	"github.com/edumfa/edumfa-go/internal/models"
)

const CounterHandlerIdentifier = "Counter"

const (
	ActionIncreaseCounter = "increase_counter"
	ActionDecreaseCounter = "decrease_counter"
	ActionResetCounter    = "reset_counter"
)

// CounterStore keeps named counters.
type CounterStore interface {
	IncreaseCounter(ctx context.Context, name string) (int64, error)
	DecreaseCounter(ctx context.Context, name string, allowNegative bool) (int64, error)
	ResetCounter(ctx context.Context, name string) error
}

// CounterHandler increases, decreases and resets counters in the database.
type CounterHandler struct {
	store CounterStore
}

func NewCounterHandler(store CounterStore) *CounterHandler {
	return &CounterHandler{store: store}
}

func (h *CounterHandler) Identifier() string {
	return CounterHandlerIdentifier
}

func (h *CounterHandler) Description() string {
	return "This event handler increases arbitrary counters in the database."
}

func (h *CounterHandler) AllowedPositions() []string {
	return []string{PositionPost, PositionPre}
}

func (h *CounterHandler) Actions() map[string]map[string]ActionOption {
	counterName := ActionOption{Type: "str", Description: "The identifier/key of the counter."}
	return map[string]map[string]ActionOption{
		ActionIncreaseCounter: {"counter_name": counterName},
		ActionDecreaseCounter: {
			"counter_name":          counterName,
			"allow_negative_values": {Type: "bool", Description: "Don't stop counter if it reaches zero."},
		},
		ActionResetCounter: {"counter_name": counterName},
	}
}

func (h *CounterHandler) Do(ctx context.Context, action string, definition models.EventDefinition) (bool, error) {
	options := models.BasicConfig(definition.Options)
	counterName := options.GetStringWithDefault("counter_name", "")
	if len(counterName) == 0 {
		return false, fmt.Errorf("%w: counter_name", models.ErrMissingParameter)
	}

	switch action {
	case ActionIncreaseCounter:
		if _, err := h.store.IncreaseCounter(ctx, counterName); err != nil {
			return false, err
		}
		logrus.WithField("counter", counterName).Debug("Increased the counter")
	case ActionDecreaseCounter:
		allowNegative := common.IsTrue(options["allow_negative_values"])
		if _, err := h.store.DecreaseCounter(ctx, counterName, allowNegative); err != nil {
			return false, err
		}
		logrus.WithField("counter", counterName).Debug("Decreased the counter")
	case ActionResetCounter:
		if err := h.store.ResetCounter(ctx, counterName); err != nil {
			return false, err
		}
		logrus.WithField("counter", counterName).Debug("Reset the counter to 0")
	default:
		return false, fmt.Errorf("%w: unknown action %q", models.ErrInvalidParameter, action)
	}
	return true, nil
}
