package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ceylonhomes/valuation-api/internal/model"
	"github.com/ceylonhomes/valuation-api/internal/security"
	"github.com/ceylonhomes/valuation-api/internal/store"
	"github.com/ceylonhomes/valuation-api/internal/valuation"
	"github.com/ceylonhomes/valuation-api/pkg/llm"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the valuation HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		client := newLLMClient()
		nearby := newNearbyService()
		orch, err := newOrchestrator(client, nearby)
		if err != nil {
			return err
		}

		api := &apiServer{
			st:             st,
			orch:           orch,
			nearby:         nearby,
			llm:            client,
			allowedDomains: cfg.Security.AllowedDomains,
			corsOrigins:    cfg.Server.CORSOrigins,
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: api.router(),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// apiServer holds the request-handling dependencies.
type apiServer struct {
	st             store.Store
	orch           *valuation.Orchestrator
	nearby         *valuation.NearbyService
	llm            llm.Client
	allowedDomains []string
	corsOrigins    []string
}

func (a *apiServer) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: a.corsOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", a.handleHealth)
	r.Get("/llm/health", a.handleLLMHealth)
	r.Route("/property", func(r chi.Router) {
		r.Post("/query", a.handleQuery)
		r.Get("/history", a.handleHistory)
		r.Get("/details/{id}", a.handleDetails)
		r.Delete("/history/{id}", a.handleDelete)
		r.Post("/feedback", a.handleFeedback)
		r.Get("/amenities", a.handleAmenities)
	})
	return r
}

func (a *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *apiServer) handleLLMHealth(w http.ResponseWriter, r *http.Request) {
	status := "disabled"
	if a.llm != nil {
		status = "configured"
	}
	writeJSON(w, http.StatusOK, map[string]string{"llm": status})
}

type queryRequest struct {
	UserID    string         `json:"user_id"`
	Email     string         `json:"email,omitempty"`
	QueryText string         `json:"query_text,omitempty"`
	Features  model.Features `json:"features"`
}

func (a *apiServer) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if errs := security.ValidateFeatures(req.Features); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": errs})
		return
	}

	ctx := r.Context()
	userID := req.UserID
	if userID == "" {
		userID = "anonymous"
	}
	email := req.Email
	if email == "" {
		email = userID + "@local"
	}

	if _, err := a.st.EnsureUser(ctx, userID, email, model.PlanFree); err != nil {
		zap.L().Error("query: ensure user", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "user lookup failed")
		return
	}
	if err := a.st.IncrementUsage(ctx, userID); err != nil {
		if errors.Is(err, store.ErrQuotaExceeded) {
			writeError(w, http.StatusPaymentRequired, "analysis quota exceeded for plan")
			return
		}
		zap.L().Error("query: increment usage", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "quota check failed")
		return
	}

	queryText := req.QueryText
	if queryText == "" {
		queryText = fmt.Sprintf("%s property in %s", req.Features.PropertyType, req.Features.City)
	}
	q, err := a.st.SaveQuery(ctx, userID, queryText, req.Features)
	if err != nil {
		zap.L().Error("query: save query", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not persist query")
		return
	}

	result := a.orch.Run(ctx, req.Features, queryText)
	a.scrubProvenance(&result)

	if _, err := a.st.SaveResponse(ctx, q.ID, result); err != nil {
		zap.L().Error("query: save response", zap.Error(err))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"query_id": q.ID,
		"result":   filterResult(result),
	})
}

// scrubProvenance blanks links outside the allowed domains before the
// result is exposed or persisted back to the caller.
func (a *apiServer) scrubProvenance(result *model.AnalysisResult) {
	for i, p := range result.Provenance {
		if !security.SafeURL(p.Link, a.allowedDomains) {
			result.Provenance[i].Link = ""
		}
	}
}

// filterResult round-trips the result through JSON so the security
// filter can sanitize every string leaf.
func filterResult(result model.AnalysisResult) map[string]any {
	raw, err := json.Marshal(result)
	if err != nil {
		zap.L().Error("filter: marshal result", zap.Error(err))
		return map[string]any{"error": "response could not be rendered"}
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		zap.L().Error("filter: unmarshal result", zap.Error(err))
		return map[string]any{"error": "response could not be rendered"}
	}
	return security.FilterPayload(payload)
}

func (a *apiServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	items, err := a.st.ListHistory(r.Context(), userID, limit, offset)
	if err != nil {
		zap.L().Error("history: list", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load history")
		return
	}
	if items == nil {
		items = []model.HistoryItem{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *apiServer) handleDetails(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	q, err := a.st.GetQuery(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "query not found")
			return
		}
		zap.L().Error("details: get query", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load query")
		return
	}

	payload := map[string]any{"query": q}
	resp, err := a.st.GetResponse(r.Context(), id)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		zap.L().Error("details: get response", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load response")
		return
	}
	if resp != nil {
		payload["result"] = filterResult(resp.Result)
	}
	writeJSON(w, http.StatusOK, payload)
}

func (a *apiServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	if err := a.st.DeleteQuery(r.Context(), id, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "query not found")
			return
		}
		zap.L().Error("delete: query", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not delete query")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type feedbackRequest struct {
	UserID     string `json:"user_id"`
	QueryID    string `json:"query_id"`
	IsPositive *bool  `json:"is_positive"`
}

// handleFeedback records a thumbs up or down on the analysis for a
// query. Feedback is keyed on the underlying response and user, so a
// repeat submission replaces the earlier rating.
func (a *apiServer) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.QueryID == "" || req.IsPositive == nil {
		writeError(w, http.StatusBadRequest, "query_id and is_positive are required")
		return
	}
	userID := req.UserID
	if userID == "" {
		userID = "anonymous"
	}

	resp, err := a.st.GetResponse(r.Context(), req.QueryID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "response not found")
			return
		}
		zap.L().Error("feedback: get response", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load response")
		return
	}

	fb, err := a.st.SaveFeedback(r.Context(), resp.ID, userID, *req.IsPositive)
	if err != nil {
		zap.L().Error("feedback: save", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not save feedback")
		return
	}
	writeJSON(w, http.StatusOK, fb)
}

func (a *apiServer) handleAmenities(w http.ResponseWriter, r *http.Request) {
	if a.nearby == nil {
		writeError(w, http.StatusServiceUnavailable, "amenity lookup is not configured")
		return
	}

	lat, latErr := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, lonErr := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if latErr != nil || lonErr != nil {
		writeError(w, http.StatusBadRequest, "lat and lon are required")
		return
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		writeError(w, http.StatusBadRequest, "lat or lon out of range")
		return
	}

	radiusKm, _ := strconv.ParseFloat(r.URL.Query().Get("radius_km"), 64)

	nearby := a.nearby.Nearby(r.Context(), lat, lon)
	summary := valuation.Summarize(nearby, radiusKm)
	writeJSON(w, http.StatusOK, map[string]any{
		"amenities": nearby,
		"summary":   summary,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
