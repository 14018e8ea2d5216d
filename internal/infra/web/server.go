package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"examprep-marketplace/internal/infra/logging"
	red "examprep-marketplace/internal/infra/redis"
	"examprep-marketplace/internal/usecase"
)

type Server struct {
	checkoutUC     usecase.CheckoutUseCase
	confirmationUC usecase.ConfirmationUseCase
	accessUC       usecase.AccessUseCase
	sessions       *SessionManager
	limiter        *red.RateLimiter
	checkoutLimit  int
	keyID          string
	keySecret      string
	log            *zerolog.Logger
}

func NewServer(
	checkoutUC usecase.CheckoutUseCase,
	confirmationUC usecase.ConfirmationUseCase,
	accessUC usecase.AccessUseCase,
	sessions *SessionManager,
	limiter *red.RateLimiter,
	checkoutLimit int,
	keyID, keySecret string,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "web").Logger()
	return &Server{
		checkoutUC:     checkoutUC,
		confirmationUC: confirmationUC,
		accessUC:       accessUC,
		sessions:       sessions,
		limiter:        limiter,
		checkoutLimit:  checkoutLimit,
		keyID:          keyID,
		keySecret:      keySecret,
		log:            &l,
	}
}

// Handler builds the route tree. The webhook route is deliberately outside
// the session middleware: the provider authenticates with its signature, not
// a bearer token.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/payment/webhook", s.handleWebhook)

		r.Group(func(r chi.Router) {
			r.Use(s.sessions.Middleware)
			r.Post("/checkout/{batchID}", s.handleCheckout)
			r.Post("/payment/callback", s.handleCallback)
			r.Get("/access/{batchID}", s.handleAccess)
			r.Get("/purchases", s.handlePurchases)
		})
	})

	return r
}

// requestID tags every request context so log lines from one request can be
// correlated across the middleware, handler, and usecase layers.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), uuid.NewString())))
	})
}

func (s *Server) allowCheckout(r *http.Request, userID string) bool {
	if s.limiter == nil {
		return true
	}
	ok, err := s.limiter.Allow(r.Context(), red.CheckoutKey(userID), s.checkoutLimit, time.Minute)
	if err != nil {
		// Redis outage must not block purchases.
		s.log.Warn().Err(err).Msg("rate limiter unavailable")
		return true
	}
	return ok
}
