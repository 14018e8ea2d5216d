package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"examprep-marketplace/internal/domain"
	"examprep-marketplace/internal/domain/model"
	"examprep-marketplace/internal/domain/ports/repository"
	"examprep-marketplace/internal/infra/metrics"
	"examprep-marketplace/internal/infra/payment"
)

// Compile-time check
var _ ConfirmationUseCase = (*confirmationUC)(nil)

// ConfirmationOutcome distinguishes what a webhook delivery actually did.
// The transport layer acknowledges every one of them; the distinction exists
// for logs and metrics so "nothing to do" and "something broke" never share
// a code path.
type ConfirmationOutcome string

const (
	OutcomeGranted      ConfirmationOutcome = "granted"       // order paid, grant created
	OutcomeOrderFailed  ConfirmationOutcome = "order_failed"  // failure event applied
	OutcomeDuplicate    ConfirmationOutcome = "duplicate"     // idempotency gate hit, state already correct
	OutcomeIgnored      ConfirmationOutcome = "ignored"       // unknown event kind
	OutcomeRejected     ConfirmationOutcome = "rejected"      // signature mismatch, payload untouched
	OutcomeOrderMissing ConfirmationOutcome = "order_missing" // no ledger row for the provider order id
	OutcomeError        ConfirmationOutcome = "error"         // processing failed, logged for investigation
)

type ConfirmationResult struct {
	Outcome ConfirmationOutcome
	Err     error
}

type ConfirmationUseCase interface {
	// HandleEvent processes one provider webhook delivery. It never returns
	// a transport error: the provider interprets non-2xx as "please retry",
	// so every outcome, including internal failures, must be acknowledged.
	HandleEvent(ctx context.Context, rawBody []byte, signature string) ConfirmationResult
}

type confirmationUC struct {
	orders        repository.OrderRepository
	grants        repository.AccessGrantRepository
	batches       repository.BatchRepository
	tm            repository.TransactionManager
	webhookSecret string
	log           *zerolog.Logger
	now           func() time.Time
}

func NewConfirmationUseCase(
	orders repository.OrderRepository,
	grants repository.AccessGrantRepository,
	batches repository.BatchRepository,
	tm repository.TransactionManager,
	webhookSecret string,
	logger *zerolog.Logger,
) *confirmationUC {
	l := logger.With().Str("component", "ConfirmationUC").Logger()
	return &confirmationUC{
		orders:        orders,
		grants:        grants,
		batches:       batches,
		tm:            tm,
		webhookSecret: webhookSecret,
		log:           &l,
		now:           time.Now,
	}
}

func (u *confirmationUC) HandleEvent(ctx context.Context, rawBody []byte, signature string) (res ConfirmationResult) {
	defer func() {
		if r := recover(); r != nil {
			res = ConfirmationResult{Outcome: OutcomeError, Err: fmt.Errorf("panic during confirmation: %v", r)}
		}
		metrics.IncWebhookEvent(string(res.Outcome))
		if res.Err != nil {
			u.log.Error().Err(res.Err).Str("outcome", string(res.Outcome)).Msg("webhook processing failed")
		} else {
			u.log.Info().Str("outcome", string(res.Outcome)).Msg("webhook processed")
		}
	}()

	// Verification runs on the raw, unparsed body.
	if !payment.VerifyWebhookSignature(u.webhookSecret, rawBody, signature) {
		return ConfirmationResult{Outcome: OutcomeRejected, Err: domain.ErrInvalidSignature}
	}

	ev, err := payment.ParseEvent(rawBody)
	if err != nil {
		// Malformed but correctly signed payload: fail closed, ack anyway.
		return ConfirmationResult{Outcome: OutcomeError, Err: err}
	}

	switch ev.Kind {
	case payment.EventPaymentCaptured:
		return u.applyCapture(ctx, ev)
	case payment.EventPaymentFailed:
		return u.applyFailure(ctx, ev)
	default:
		return ConfirmationResult{Outcome: OutcomeIgnored}
	}
}

// applyCapture runs both idempotency gates inside one transaction: the
// created->paid CAS on the order, then the active-grant uniqueness check.
// Either gate closing means a prior delivery already did the work.
func (u *confirmationUC) applyCapture(ctx context.Context, ev payment.Event) ConfirmationResult {
	var out ConfirmationResult
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		order, err := u.orders.FindByProviderOrderID(ctx, tx, ev.OrderID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrOrderNotFound) {
				out = ConfirmationResult{Outcome: OutcomeOrderMissing}
				return nil
			}
			return err
		}

		transitioned, err := u.orders.MarkPaidIfCreated(ctx, tx, order.ID, ev.PaymentID)
		if err != nil {
			return err
		}
		if !transitioned {
			// Order already paid (or failed): redelivery of a handled event.
			out = ConfirmationResult{Outcome: OutcomeDuplicate}
			return nil
		}

		now := u.now()
		if _, err := u.grants.FindActive(ctx, tx, order.UserID, order.BatchID, now); err == nil {
			// A differently-shaped duplicate already produced the grant.
			out = ConfirmationResult{Outcome: OutcomeDuplicate}
			return nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		batch, err := u.batches.FindByID(ctx, tx, order.BatchID)
		if err != nil {
			return err
		}
		orderID := order.ID
		grant, err := model.NewAccessGrant(uuid.NewString(), order.UserID, batch, &orderID, now)
		if err != nil {
			return err
		}
		if err := u.grants.Create(ctx, tx, grant); err != nil {
			if errors.Is(err, domain.ErrAlreadyExists) {
				out = ConfirmationResult{Outcome: OutcomeDuplicate}
				return nil
			}
			return err
		}

		metrics.IncGrant("confirmation")
		metrics.AddRevenue(order.Currency, order.Amount)
		u.log.Info().Str("order_id", order.ID).Str("grant_id", grant.ID).Str("user_id", order.UserID).Str("batch_id", order.BatchID).Msg("payment captured, access granted")
		out = ConfirmationResult{Outcome: OutcomeGranted}
		return nil
	})
	if err != nil {
		return ConfirmationResult{Outcome: OutcomeError, Err: err}
	}
	return out
}

func (u *confirmationUC) applyFailure(ctx context.Context, ev payment.Event) ConfirmationResult {
	var out ConfirmationResult
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		order, err := u.orders.FindByProviderOrderID(ctx, tx, ev.OrderID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrOrderNotFound) {
				out = ConfirmationResult{Outcome: OutcomeOrderMissing}
				return nil
			}
			return err
		}

		transitioned, err := u.orders.MarkFailedIfCreated(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		if !transitioned {
			// Already paid or already failed; a late failure event must not
			// clobber a confirmed capture.
			out = ConfirmationResult{Outcome: OutcomeDuplicate}
			return nil
		}

		u.log.Info().Str("order_id", order.ID).Msg("payment failed, order marked")
		out = ConfirmationResult{Outcome: OutcomeOrderFailed}
		return nil
	})
	if err != nil {
		return ConfirmationResult{Outcome: OutcomeError, Err: err}
	}
	return out
}
