//go:build !integration

package usecase

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4"

	"examprep-marketplace/internal/domain"
	"examprep-marketplace/internal/domain/model"
	"examprep-marketplace/internal/domain/ports/repository"
)

const testWebhookSecret = "whsec_test"

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func capturedBody(orderID, paymentID string) []byte {
	return []byte(fmt.Sprintf(
		`{"event":"payment.captured","payload":{"payment":{"entity":{"id":%q,"order_id":%q,"status":"captured"}}}}`,
		paymentID, orderID,
	))
}

func failedBody(orderID, paymentID string) []byte {
	return []byte(fmt.Sprintf(
		`{"event":"payment.failed","payload":{"payment":{"entity":{"id":%q,"order_id":%q,"status":"failed"}}}}`,
		paymentID, orderID,
	))
}

type confirmationFixture struct {
	uc      *confirmationUC
	batches *memBatchRepo
	orders  *memOrderRepo
	grants  *memGrantRepo
	order   *model.Order
}

func newConfirmationFixture(t *testing.T) *confirmationFixture {
	t.Helper()
	f := &confirmationFixture{
		batches: newMemBatchRepo(),
		orders:  newMemOrderRepo(),
		grants:  newMemGrantRepo(),
	}
	f.uc = NewConfirmationUseCase(f.orders, f.grants, f.batches, &mockTxManager{}, testWebhookSecret, newTestLogger())
	f.uc.now = func() time.Time { return testNow }

	b := paidBatch()
	f.batches.add(b)
	f.order = &model.Order{
		ID:              "order-local-1",
		UserID:          "user-1",
		BatchID:         b.ID,
		Amount:          49900,
		Currency:        "INR",
		Provider:        "razorpay",
		ProviderOrderID: "order_rzp_abc",
		Receipt:         "rcpt_01",
		Status:          model.OrderStatusCreated,
		CreatedAt:       testNow.Add(-time.Minute),
		UpdatedAt:       testNow.Add(-time.Minute),
	}
	if err := f.orders.Save(context.Background(), nil, f.order); err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return f
}

func (f *confirmationFixture) deliver(body []byte) ConfirmationResult {
	return f.uc.HandleEvent(context.Background(), body, signBody(testWebhookSecret, body))
}

func TestHandleEvent_CaptureGrantsAccess(t *testing.T) {
	f := newConfirmationFixture(t)

	res := f.deliver(capturedBody(f.order.ProviderOrderID, "pay_123"))
	if res.Outcome != OutcomeGranted {
		t.Fatalf("outcome = %s, want granted (err: %v)", res.Outcome, res.Err)
	}

	o := f.orders.get(f.order.ID)
	if o.Status != model.OrderStatusPaid {
		t.Fatalf("order status = %s, want paid", o.Status)
	}
	if o.ProviderPaymentID != "pay_123" {
		t.Fatalf("provider payment id = %q, want pay_123", o.ProviderPaymentID)
	}

	g, err := f.grants.FindActive(context.Background(), nil, "user-1", f.order.BatchID, testNow)
	if err != nil {
		t.Fatalf("expected an active grant: %v", err)
	}
	if g.OrderID == nil || *g.OrderID != f.order.ID {
		t.Fatal("grant must reference the paid order")
	}
}

func TestHandleEvent_ReplayIsIdempotent(t *testing.T) {
	f := newConfirmationFixture(t)
	body := capturedBody(f.order.ProviderOrderID, "pay_123")

	if res := f.deliver(body); res.Outcome != OutcomeGranted {
		t.Fatalf("first delivery outcome = %s, want granted", res.Outcome)
	}
	for i := 0; i < 5; i++ {
		if res := f.deliver(body); res.Outcome != OutcomeDuplicate {
			t.Fatalf("redelivery %d outcome = %s, want duplicate", i, res.Outcome)
		}
	}
	if f.grants.count() != 1 {
		t.Fatalf("grants = %d, want exactly 1", f.grants.count())
	}
}

func TestHandleEvent_ConcurrentDeliveriesGrantOnce(t *testing.T) {
	f := newConfirmationFixture(t)
	body := capturedBody(f.order.ProviderOrderID, "pay_123")
	sig := signBody(testWebhookSecret, body)

	const workers = 8
	results := make([]ConfirmationResult, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = f.uc.HandleEvent(context.Background(), body, sig)
		}(i)
	}
	wg.Wait()

	granted := 0
	for _, res := range results {
		switch res.Outcome {
		case OutcomeGranted:
			granted++
		case OutcomeDuplicate:
		default:
			t.Fatalf("unexpected outcome %s (err: %v)", res.Outcome, res.Err)
		}
	}
	if granted != 1 {
		t.Fatalf("granted outcomes = %d, want exactly 1", granted)
	}
	if f.grants.count() != 1 {
		t.Fatalf("grants = %d, want exactly 1", f.grants.count())
	}
}

func TestHandleEvent_InvalidSignatureRejected(t *testing.T) {
	f := newConfirmationFixture(t)
	body := capturedBody(f.order.ProviderOrderID, "pay_123")

	res := f.uc.HandleEvent(context.Background(), body, signBody("wrong-secret", body))
	if res.Outcome != OutcomeRejected {
		t.Fatalf("outcome = %s, want rejected", res.Outcome)
	}
	if !errors.Is(res.Err, domain.ErrInvalidSignature) {
		t.Fatalf("err = %v, want ErrInvalidSignature", res.Err)
	}
	if f.orders.get(f.order.ID).Status != model.OrderStatusCreated {
		t.Fatal("rejected delivery must not touch the order")
	}
	if f.grants.count() != 0 {
		t.Fatal("rejected delivery must not create a grant")
	}
}

func TestHandleEvent_UnknownEventIgnored(t *testing.T) {
	f := newConfirmationFixture(t)
	body := []byte(`{"event":"refund.processed","payload":{}}`)

	res := f.deliver(body)
	if res.Outcome != OutcomeIgnored {
		t.Fatalf("outcome = %s, want ignored", res.Outcome)
	}
}

func TestHandleEvent_MalformedPayload(t *testing.T) {
	f := newConfirmationFixture(t)

	res := f.deliver([]byte(`{"event":"payment.captured"`))
	if res.Outcome != OutcomeError || res.Err == nil {
		t.Fatalf("outcome = %s err = %v, want error outcome", res.Outcome, res.Err)
	}
}

func TestHandleEvent_CaptureWithoutOrderID(t *testing.T) {
	f := newConfirmationFixture(t)
	body := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_123","status":"captured"}}}}`)

	res := f.deliver(body)
	if res.Outcome != OutcomeError || res.Err == nil {
		t.Fatalf("outcome = %s err = %v, want error outcome", res.Outcome, res.Err)
	}
	if f.grants.count() != 0 {
		t.Fatal("half-populated event must not grant access")
	}
}

func TestHandleEvent_OrderMissing(t *testing.T) {
	f := newConfirmationFixture(t)

	res := f.deliver(capturedBody("order_rzp_unknown", "pay_123"))
	if res.Outcome != OutcomeOrderMissing {
		t.Fatalf("outcome = %s, want order_missing", res.Outcome)
	}
	if f.grants.count() != 0 {
		t.Fatal("unmatched event must not grant access")
	}
}

func TestHandleEvent_GrantConflictKeepsTransactionHealthy(t *testing.T) {
	f := newConfirmationFixture(t)
	// A concurrent transaction inserted the grant after our FindActive check;
	// the store reports the conflict as ErrAlreadyExists without failing.
	f.grants.CreateFunc = func(ctx context.Context, tx repository.Tx, g *model.AccessGrant) error {
		return domain.ErrAlreadyExists
	}

	var txErr error
	tm := &mockTxManager{WithTxFunc: func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
		txErr = fn(ctx, nil)
		return txErr
	}}
	f.uc.tm = tm

	res := f.deliver(capturedBody(f.order.ProviderOrderID, "pay_123"))
	if res.Outcome != OutcomeDuplicate {
		t.Fatalf("outcome = %s, want duplicate (err: %v)", res.Outcome, res.Err)
	}
	// The callback must return nil on a grant conflict so the transaction
	// commits and the created->paid transition survives.
	if txErr != nil {
		t.Fatalf("transaction callback returned %v, want nil", txErr)
	}
	if f.orders.get(f.order.ID).Status != model.OrderStatusPaid {
		t.Fatal("paid transition must not be lost to a grant conflict")
	}
}

func TestHandleEvent_FailureMarksOrder(t *testing.T) {
	f := newConfirmationFixture(t)

	res := f.deliver(failedBody(f.order.ProviderOrderID, "pay_123"))
	if res.Outcome != OutcomeOrderFailed {
		t.Fatalf("outcome = %s, want order_failed", res.Outcome)
	}
	if f.orders.get(f.order.ID).Status != model.OrderStatusFailed {
		t.Fatal("order must be marked failed")
	}
	if f.grants.count() != 0 {
		t.Fatal("failed payment must not grant access")
	}
}

func TestHandleEvent_LateFailureDoesNotClobberPaid(t *testing.T) {
	f := newConfirmationFixture(t)

	if res := f.deliver(capturedBody(f.order.ProviderOrderID, "pay_123")); res.Outcome != OutcomeGranted {
		t.Fatalf("capture outcome = %s, want granted", res.Outcome)
	}
	res := f.deliver(failedBody(f.order.ProviderOrderID, "pay_123"))
	if res.Outcome != OutcomeDuplicate {
		t.Fatalf("late failure outcome = %s, want duplicate", res.Outcome)
	}
	if f.orders.get(f.order.ID).Status != model.OrderStatusPaid {
		t.Fatal("paid order must not regress to failed")
	}
}
