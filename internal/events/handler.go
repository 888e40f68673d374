package events

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/edumfa/edumfa-go/internal/models"
)

const (
	PositionPre  = "pre"
	PositionPost = "post"
)

// ActionOption describes one option of a handler action.
type ActionOption struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// Handler runs the actions of event definitions.
type Handler interface {
	Identifier() string
	Description() string
	AllowedPositions() []string
	Actions() map[string]map[string]ActionOption
	Do(ctx context.Context, action string, definition models.EventDefinition) (bool, error)
}

// Dispatcher runs the event definitions matching an event.
type Dispatcher struct {
	handlers map[string]Handler
}

func NewDispatcher(handlers ...Handler) *Dispatcher {
	d := &Dispatcher{handlers: make(map[string]Handler, len(handlers))}
	for _, handler := range handlers {
		d.handlers[handler.Identifier()] = handler
	}
	return d
}

func (d *Dispatcher) Handler(identifier string) (Handler, bool) {
	handler, ok := d.handlers[identifier]
	return handler, ok
}

func (d *Dispatcher) Identifiers() []string {
	out := make([]string, 0, len(d.handlers))
	for identifier := range d.handlers {
		out = append(out, identifier)
	}
	sort.Strings(out)
	return out
}

// Validate checks that the definition names a known handler, action and
// position.
func (d *Dispatcher) Validate(definition models.EventDefinition) error {
	handler, ok := d.handlers[definition.HandlerModule]
	if !ok {
		return fmt.Errorf("%w: unknown handler module %q", models.ErrInvalidParameter, definition.HandlerModule)
	}
	if _, ok := handler.Actions()[definition.Action]; !ok {
		return fmt.Errorf("%w: handler %s has no action %q", models.ErrInvalidParameter, handler.Identifier(), definition.Action)
	}
	position := definition.Position
	if len(position) == 0 {
		position = PositionPost
	}
	if !slices.Contains(handler.AllowedPositions(), position) {
		return fmt.Errorf("%w: position %q is not allowed for handler %s", models.ErrInvalidParameter, position, handler.Identifier())
	}
	return nil
}

// Trigger runs the active definitions of event at position in their order.
// It returns the names of the definitions that ran.
func (d *Dispatcher) Trigger(ctx context.Context, event, position string, definitions []models.EventDefinition) ([]string, error) {
	matching := make([]models.EventDefinition, 0, len(definitions))
	for _, definition := range definitions {
		definitionPosition := definition.Position
		if len(definitionPosition) == 0 {
			definitionPosition = PositionPost
		}
		if definition.IsActive() && definitionPosition == position && slices.Contains(definition.Event, event) {
			matching = append(matching, definition)
		}
	}
	sort.SliceStable(matching, func(i, j int) bool { return matching[i].Ordering < matching[j].Ordering })

	var ran []string
	for _, definition := range matching {
		handler, ok := d.handlers[definition.HandlerModule]
		if !ok {
			logrus.WithField("handler", definition.HandlerModule).Warn("Unknown event handler")
			continue
		}
		if _, err := handler.Do(ctx, definition.Action, definition); err != nil {
			return ran, fmt.Errorf("event handler %s failed: %w", definition.Name, err)
		}
		ran = append(ran, definition.Name)
	}
	return ran, nil
}
