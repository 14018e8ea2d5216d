package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"examprep-marketplace/internal/domain"
	"examprep-marketplace/internal/infra/logging"
	"examprep-marketplace/internal/infra/payment"
)

// webhook bodies are small event envelopes; anything bigger is hostile.
const maxWebhookBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{"success": false, "error": msg})
}

// orderHandle is the awaiting-payment payload the client feeds to the
// payment widget. Amount is in minor units; id is the provider's order id.
type orderHandle struct {
	ID         string `json:"id"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	KeyID      string `json:"key_id"`
	BatchTitle string `json:"batch_title"`
	UserName   string `json:"user_name"`
	UserEmail  string `json:"user_email"`
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	ident, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if !s.allowCheckout(r, ident.UserID) {
		writeError(w, http.StatusTooManyRequests, "too many checkout attempts")
		return
	}

	batchID := chi.URLParam(r, "batchID")
	res, err := s.checkoutUC.Initiate(r.Context(), ident, batchID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotAuthenticated):
			writeError(w, http.StatusUnauthorized, "authentication required")
		case errors.Is(err, domain.ErrBatchNotFound), errors.Is(err, domain.ErrInvalidArgument):
			writeError(w, http.StatusNotFound, "batch not found")
		case errors.Is(err, domain.ErrAlreadyOwned):
			writeError(w, http.StatusConflict, "you already own this batch")
		case errors.Is(err, domain.ErrProviderUnavailable):
			writeError(w, http.StatusBadGateway, "payment provider unavailable, please retry")
		default:
			logging.With(r.Context(), s.log).Error().Err(err).Str("batch_id", batchID).Msg("checkout failed")
			writeError(w, http.StatusInternalServerError, "checkout failed")
		}
		return
	}

	if res.Free {
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "free": true})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"free":    false,
		"order": orderHandle{
			ID:         res.Order.ProviderOrderID,
			Amount:     res.Order.Amount,
			Currency:   res.Order.Currency,
			KeyID:      s.keyID,
			BatchTitle: res.Batch.Title,
			UserName:   ident.Name,
			UserEmail:  ident.Email,
		},
	})
}

// handleWebhook is the provider-facing confirmation endpoint. It always
// acknowledges: the provider treats non-2xx as an invitation to retry, and a
// retry storm helps nobody once state is already correct. Outcomes are
// distinguished in logs and metrics instead.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	s.confirmationUC.HandleEvent(r.Context(), body, r.Header.Get("X-Razorpay-Signature"))
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type callbackRequest struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Signature string `json:"signature"`
}

// handleCallback verifies the signature the payment widget hands back to the
// client. UI feedback only: access is granted exclusively by the webhook (or
// the free-checkout path), because the client can close the page before ever
// calling this.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	var req callbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OrderID == "" || req.PaymentID == "" || req.Signature == "" {
		writeError(w, http.StatusBadRequest, "order_id, payment_id and signature are required")
		return
	}

	verified := payment.VerifyCheckoutSignature(s.keySecret, req.OrderID, req.PaymentID, req.Signature)
	if !verified {
		logging.With(r.Context(), s.log).Warn().Str("order_id", req.OrderID).Msg("client callback signature mismatch")
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "verified": verified})
}

func (s *Server) handleAccess(w http.ResponseWriter, r *http.Request) {
	ident, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	batchID := chi.URLParam(r, "batchID")
	has, err := s.accessUC.HasActiveAccess(r.Context(), ident.UserID, batchID)
	if err != nil {
		logging.With(r.Context(), s.log).Error().Err(err).Str("batch_id", batchID).Msg("access check failed")
		writeError(w, http.StatusInternalServerError, "access check failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"has_access": has})
}

type purchaseItem struct {
	BatchID   string    `json:"batch_id"`
	OrderID   *string   `json:"order_id,omitempty"`
	ValidFrom time.Time `json:"valid_from"`
	ValidTill time.Time `json:"valid_till"`
	Status    string    `json:"status"`
}

// handlePurchases lists the caller's purchase history, expired grants
// included, so the client can distinguish "never bought" from "lapsed".
func (s *Server) handlePurchases(w http.ResponseWriter, r *http.Request) {
	ident, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	grants, err := s.accessUC.ListPurchases(r.Context(), ident.UserID)
	if err != nil {
		logging.With(r.Context(), s.log).Error().Err(err).Msg("purchase listing failed")
		writeError(w, http.StatusInternalServerError, "purchase listing failed")
		return
	}

	items := make([]purchaseItem, 0, len(grants))
	for _, g := range grants {
		items = append(items, purchaseItem{
			BatchID:   g.BatchID,
			OrderID:   g.OrderID,
			ValidFrom: g.ValidFrom,
			ValidTill: g.ValidTill,
			Status:    string(g.Status),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"purchases": items})
}
