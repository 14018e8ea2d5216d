package payment

import (
	"encoding/json"
	"fmt"
)

type EventKind string

const (
	EventPaymentCaptured EventKind = "payment.captured"
	EventPaymentFailed   EventKind = "payment.failed"
	EventUnknown         EventKind = "unknown"
)

// Event is the validated envelope extracted from a provider webhook. Only the
// two event kinds the handler acts on carry identifiers; everything else is
// reported as EventUnknown so the caller can acknowledge and ignore it.
type Event struct {
	Kind      EventKind
	OrderID   string // provider order id
	PaymentID string // provider payment id
}

type eventEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
				Status  string `json:"status"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// ParseEvent decodes the raw webhook body into a tagged Event. Malformed
// bodies and recognized events missing their order id fail closed with an
// error instead of yielding a half-populated event.
func ParseEvent(raw []byte) (Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Event{}, fmt.Errorf("decode webhook envelope: %w", err)
	}

	switch env.Event {
	case string(EventPaymentCaptured), string(EventPaymentFailed):
		ent := env.Payload.Payment.Entity
		if ent.OrderID == "" {
			return Event{}, fmt.Errorf("event %q carries no order id", env.Event)
		}
		return Event{
			Kind:      EventKind(env.Event),
			OrderID:   ent.OrderID,
			PaymentID: ent.ID,
		}, nil
	default:
		return Event{Kind: EventUnknown}, nil
	}
}
