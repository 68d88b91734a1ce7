package web

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"telegram-lesson-market/internal/domain/ports/repository"
	"telegram-lesson-market/internal/infra/metrics"
	"telegram-lesson-market/internal/usecase"
)

type Server struct {
	payUC      usecase.PaymentUseCase
	promoUC    usecase.PromoUseCase
	withdrawUC usecase.WithdrawUseCase
	statsUC    usecase.StatsUseCase
	audit      repository.AuditLogRepository
	auth       *AuthManager
	password   string
	log        *zerolog.Logger
}

func NewServer(
	payUC usecase.PaymentUseCase,
	promoUC usecase.PromoUseCase,
	withdrawUC usecase.WithdrawUseCase,
	statsUC usecase.StatsUseCase,
	audit repository.AuditLogRepository,
	auth *AuthManager,
	password string,
	logger *zerolog.Logger,
) *Server {
	webLog := logger.With().Str("component", "AdminAPI").Logger()
	return &Server{
		payUC:      payUC,
		promoUC:    promoUC,
		withdrawUC: withdrawUC,
		statsUC:    statsUC,
		audit:      audit,
		auth:       auth,
		password:   password,
		log:        &webLog,
	}
}

// Router builds the admin API surface. Everything under /api/v1 except login
// sits behind the session middleware.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/login", s.loginHandler)

		r.Group(func(r chi.Router) {
			r.Use(s.sessionMiddleware)

			r.Post("/logout", s.logoutHandler)
			r.Get("/stats", s.statsHandler)
			r.Get("/balance", s.balanceHandler)
			r.Get("/audit", s.auditHandler)

			r.Route("/payments", func(r chi.Router) {
				r.Post("/", s.paymentCreateHandler)
				r.Get("/{paymentID}", s.paymentGetHandler)
			})

			r.Route("/promos", func(r chi.Router) {
				r.Get("/", s.promoListHandler)
				r.Post("/", s.promoCreateHandler)
				r.Post("/batch", s.promoBatchHandler)
				r.Get("/{code}/stats", s.promoStatsHandler)
				r.Delete("/{code}", s.promoDeactivateHandler)
			})

			r.Route("/withdrawals", func(r chi.Router) {
				r.Get("/", s.withdrawListHandler)
				r.Post("/", s.withdrawCreateHandler)
				r.Post("/{id}/approve", s.withdrawApproveHandler)
				r.Post("/{id}/reject", s.withdrawRejectHandler)
				r.Post("/{id}/complete", s.withdrawCompleteHandler)
			})
		})
	})

	return r
}

// sessionMiddleware gates the admin surface behind a valid session token.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.auth.ParseFromRequest(r); err != nil {
			metrics.IncAdminRequest(r.URL.Path, "unauthorized")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		metrics.IncAdminRequest(r.URL.Path, "authorized")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if s.password == "" || subtle.ConstantTimeCompare([]byte(req.Password), []byte(s.password)) != 1 {
		metrics.IncAdminRequest("/api/v1/login", "unauthorized")
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	token, err := s.auth.Mint(w)
	if err != nil {
		s.log.Error().Err(err).Msg("mint session token")
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) logoutHandler(w http.ResponseWriter, _ *http.Request) {
	s.auth.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
