package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"examprep-marketplace/internal/domain"
	"examprep-marketplace/internal/domain/model"
	"examprep-marketplace/internal/domain/ports/adapter"
	"examprep-marketplace/internal/domain/ports/repository"
	"examprep-marketplace/internal/infra/metrics"
)

// Compile-time check
var _ CheckoutUseCase = (*checkoutUC)(nil)

// Identity describes the authenticated caller initiating a checkout. Name and
// Email are display metadata passed through to the payment widget.
type Identity struct {
	UserID string
	Name   string
	Email  string
}

// CheckoutResult is the outcome of a checkout initiation. Free is true when
// access was granted synchronously; otherwise Order carries the handle the
// client needs to complete payment out-of-band.
type CheckoutResult struct {
	Free  bool
	Order *model.Order
	Batch *model.Batch
}

type CheckoutUseCase interface {
	// Initiate validates the caller and batch, rejects re-purchase of an
	// already-owned batch, grants free batches immediately, and creates an
	// Order for paid ones. The price always comes from the catalog record.
	Initiate(ctx context.Context, caller Identity, batchID string) (*CheckoutResult, error)
}

type checkoutUC struct {
	batches repository.BatchRepository
	orders  repository.OrderRepository
	grants  repository.AccessGrantRepository
	gateway adapter.PaymentGateway
	tm      repository.TransactionManager
	log     *zerolog.Logger
	now     func() time.Time
}

func NewCheckoutUseCase(
	batches repository.BatchRepository,
	orders repository.OrderRepository,
	grants repository.AccessGrantRepository,
	gateway adapter.PaymentGateway,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *checkoutUC {
	l := logger.With().Str("component", "CheckoutUC").Logger()
	return &checkoutUC{
		batches: batches,
		orders:  orders,
		grants:  grants,
		gateway: gateway,
		tm:      tm,
		log:     &l,
		now:     time.Now,
	}
}

func (u *checkoutUC) Initiate(ctx context.Context, caller Identity, batchID string) (*CheckoutResult, error) {
	if caller.UserID == "" {
		return nil, domain.ErrNotAuthenticated
	}
	if batchID == "" {
		return nil, domain.ErrInvalidArgument
	}

	batch, err := u.findBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}

	now := u.now()

	// Idempotent re-click protection: an active, unexpired grant blocks a
	// second purchase outright. No extension path.
	if _, err := u.grants.FindActive(ctx, nil, caller.UserID, batch.ID, now); err == nil {
		return nil, domain.ErrAlreadyOwned
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	if batch.Free() {
		return u.grantFree(ctx, caller, batch, now)
	}
	return u.createOrder(ctx, caller, batch, now)
}

// findBatch resolves the URL parameter, which carries either the batch id or
// its public slug. Only well-formed UUIDs hit the id lookup; the id column is
// typed UUID and a slug would error there rather than miss.
func (u *checkoutUC) findBatch(ctx context.Context, ref string) (*model.Batch, error) {
	var (
		batch *model.Batch
		err   error
	)
	if _, uuidErr := uuid.Parse(ref); uuidErr == nil {
		batch, err = u.batches.FindByID(ctx, nil, ref)
	} else {
		batch, err = u.batches.FindBySlug(ctx, nil, ref)
	}
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrBatchNotFound
		}
		return nil, err
	}
	return batch, nil
}

// grantFree is the only path that creates a grant without touching the order
// ledger. The unique index on active grants turns a lost race with a
// concurrent checkout into ErrAlreadyOwned.
func (u *checkoutUC) grantFree(ctx context.Context, caller Identity, batch *model.Batch, now time.Time) (*CheckoutResult, error) {
	grant, err := model.NewAccessGrant(uuid.NewString(), caller.UserID, batch, nil, now)
	if err != nil {
		return nil, err
	}

	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		return u.grants.Create(ctx, tx, grant)
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return nil, domain.ErrAlreadyOwned
		}
		return nil, err
	}

	metrics.IncCheckout("free_granted")
	metrics.IncGrant("checkout")
	u.log.Info().Str("user_id", caller.UserID).Str("batch_id", batch.ID).Str("grant_id", grant.ID).Msg("free batch granted")
	return &CheckoutResult{Free: true, Batch: batch}, nil
}

// createOrder registers the order with the provider first and persists the
// ledger row only afterwards, so a failed provider call leaves no orphaned
// created row.
func (u *checkoutUC) createOrder(ctx context.Context, caller Identity, batch *model.Batch, now time.Time) (*CheckoutResult, error) {
	amount := model.AmountMinor(batch.Price)
	receipt := "rcpt_" + ulid.Make().String()

	providerOrderID, err := u.gateway.CreateOrder(ctx, amount, "INR", receipt, map[string]string{
		"user_id":  caller.UserID,
		"batch_id": batch.ID,
	})
	if err != nil {
		metrics.IncCheckout("provider_error")
		u.log.Error().Err(err).Str("batch_id", batch.ID).Msg("provider order creation failed")
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}

	order := &model.Order{
		ID:              uuid.NewString(),
		UserID:          caller.UserID,
		BatchID:         batch.ID,
		Amount:          amount,
		Currency:        "INR",
		Provider:        u.gateway.Name(),
		ProviderOrderID: providerOrderID,
		Receipt:         receipt,
		Status:          model.OrderStatusCreated,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := u.orders.Save(ctx, nil, order); err != nil {
		return nil, err
	}

	metrics.IncCheckout("order_created")
	u.log.Info().Str("user_id", caller.UserID).Str("batch_id", batch.ID).Str("provider_order_id", providerOrderID).Int64("amount", amount).Msg("order created")
	return &CheckoutResult{Free: false, Order: order, Batch: batch}, nil
}
