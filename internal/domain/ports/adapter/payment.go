package adapter

import "context"

// PaymentGateway creates remote orders with the external payment provider.
// Implementations must not persist anything; checkout persists the Order row
// only after the remote call succeeds.
type PaymentGateway interface {
	Name() string
	// KeyID is the provider's public key identifier handed to the payment
	// widget on the client.
	KeyID() string
	// CreateOrder registers an order with the provider and returns the
	// provider-issued order id.
	CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string, notes map[string]string) (string, error)
}
