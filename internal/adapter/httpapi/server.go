package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Alexandre-Busarello/precojusto-backend/internal/cache"
	"github.com/Alexandre-Busarello/precojusto-backend/internal/domain"
	"github.com/Alexandre-Busarello/precojusto-backend/internal/usecase/drawdown"
	"github.com/Alexandre-Busarello/precojusto-backend/internal/usecase/ledger"
	"github.com/Alexandre-Busarello/precojusto-backend/internal/usecase/rebalance"
	"github.com/Alexandre-Busarello/precojusto-backend/internal/usecase/valuation"
)

// reportTTL bounds how long a cached report can outlive market moves; any
// ledger write invalidates earlier.
const reportTTL = 5 * time.Minute

// Server exposes the engine over HTTP. Reports are cached per portfolio and
// invalidated on every confirmed ledger write; the engine itself stays
// cache-agnostic.
type Server struct {
	Ledger        *ledger.Service
	Valuation     *valuation.Engine
	Drawdown      *drawdown.Analyzer
	Planner       *rebalance.Planner
	PortfolioRepo domain.PortfolioRepository
	LedgerRepo    domain.LedgerRepository
	Oracle        domain.PriceOracle
	Cache         *cache.Cache

	log zerolog.Logger
}

// NewServer creates a new HTTP server instance
func NewServer(
	ledgerService *ledger.Service,
	valuationEngine *valuation.Engine,
	drawdownAnalyzer *drawdown.Analyzer,
	planner *rebalance.Planner,
	portfolioRepo domain.PortfolioRepository,
	ledgerRepo domain.LedgerRepository,
	oracle domain.PriceOracle,
	reportCache *cache.Cache,
	log zerolog.Logger,
) *Server {
	return &Server{
		Ledger:        ledgerService,
		Valuation:     valuationEngine,
		Drawdown:      drawdownAnalyzer,
		Planner:       planner,
		PortfolioRepo: portfolioRepo,
		LedgerRepo:    ledgerRepo,
		Oracle:        oracle,
		Cache:         reportCache,
		log:           log.With().Str("component", "httpapi").Logger(),
	}
}

// Router builds the chi router with auth and CORS middleware.
func (s *Server) Router(apiToken string, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))
	r.Use(authMiddleware(apiToken))

	r.Route("/api/portfolios/{id}", func(r chi.Router) {
		r.Post("/config", s.saveConfig)
		r.Get("/config", s.getConfig)
		r.Post("/transactions", s.submitTransactions)
		r.Get("/evolution", s.getEvolution)
		r.Get("/performance", s.getPerformance)
		r.Get("/drawdowns", s.getDrawdowns)
		r.Post("/rebalance", s.planRebalance)
	})

	return r
}

// authMiddleware validates the bearer token from the Authorization header.
// If the token is missing or invalid it responds 401; if valid, it calls
// the next handler untouched.
func authMiddleware(validToken string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}
			if header != "Bearer "+validToken {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func portfolioID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "id"))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeDomainError maps domain errors to HTTP statuses.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInsufficientCash):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrInvalidAllocation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrRebalancingContradiction):
		s.log.Error().Err(err).Msg("Rebalancing contradiction")
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		s.log.Error().Err(err).Msg("Request failed")
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
