package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"amy-weather/internal/models"
	"amy-weather/internal/repository"
	"amy-weather/internal/services"
	"amy-weather/pkg/logging"
	"amy-weather/pkg/metrics"
)

// AMYHandler handles the AMY API endpoints
type AMYHandler struct {
	queryService *services.QueryService
	logger       *logging.StructuredLogger
	metrics      *metrics.Collector
}

// NewAMYHandler creates a new AMY handler
func NewAMYHandler(
	queryService *services.QueryService,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *AMYHandler {
	return &AMYHandler{
		queryService: queryService,
		logger:       logger,
		metrics:      metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// PaginatedResponse represents a paginated API response
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"total_pages"`
}

// pagination parses page and limit, defaulting to page 1 of 100
func pagination(r *http.Request) (page, limit int) {
	page, limit = 1, 100

	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= 1000 {
		limit = l
	}
	return page, limit
}

// queryYear parses the optional year parameter
func queryYear(r *http.Request) (*int, bool) {
	raw := r.URL.Query().Get("year")
	if raw == "" {
		return nil, true
	}
	year, err := strconv.Atoi(raw)
	if err != nil || year < 1900 || year > 9999 {
		return nil, false
	}
	return &year, true
}

func (h *AMYHandler) observe(endpoint string, start time.Time) {
	h.metrics.APIRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

// GetStations handles GET /api/stations
func (h *AMYHandler) GetStations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.observe("/api/stations", time.Now())

	page, limit := pagination(r)

	stations, err := h.queryService.GetStations(ctx, limit, (page-1)*limit)
	if err != nil {
		h.logger.Error(ctx, "[API_GET_STATIONS_ERROR] Failed to get stations", logging.Fields{
			"page":  page,
			"limit": limit,
		}, err)
		h.metrics.RecordAPIError("internal_error", "/api/stations")
		h.sendError(w, r, "failed to retrieve stations", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest("/api/stations", "GET", "200")
	h.sendJSON(w, PaginatedResponse{
		Data:  stations,
		Total: len(stations),
		Page:  page,
		Limit: limit,
	}, http.StatusOK)
}

// GetStation handles GET /api/stations/{id}
func (h *AMYHandler) GetStation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.observe("/api/stations/{id}", time.Now())

	id := mux.Vars(r)["id"]
	station, err := h.queryService.GetStation(ctx, id)
	if err != nil {
		var nf *repository.NotFoundError
		if errors.As(err, &nf) {
			h.sendError(w, r, nf.Error(), http.StatusNotFound)
			return
		}
		h.logger.Error(ctx, "[API_GET_STATION_ERROR] Failed to get station", logging.Fields{
			"station_id": id,
		}, err)
		h.metrics.RecordAPIError("internal_error", "/api/stations/{id}")
		h.sendError(w, r, "failed to retrieve station", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest("/api/stations/{id}", "GET", "200")
	h.sendJSON(w, station, http.StatusOK)
}

// GetVerdicts handles GET /api/verdicts
func (h *AMYHandler) GetVerdicts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.observe("/api/verdicts", time.Now())

	page, limit := pagination(r)
	filter := repository.VerdictFilter{
		Limit:  limit,
		Offset: (page - 1) * limit,
	}

	if stationID := r.URL.Query().Get("station_id"); stationID != "" {
		filter.StationID = &stationID
	}

	year, ok := queryYear(r)
	if !ok {
		h.sendError(w, r, "invalid year, expected a four-digit integer", http.StatusBadRequest)
		return
	}
	filter.Year = year

	if raw := r.URL.Query().Get("classification"); raw != "" {
		c := models.Classification(raw)
		switch c {
		case models.Usable, models.ExcludedTotal, models.ExcludedConsecutive:
			filter.Classification = &c
		default:
			h.sendError(w, r, "invalid classification, expected USABLE, EXCLUDED_TOTAL or EXCLUDED_CONSECUTIVE", http.StatusBadRequest)
			return
		}
	}

	verdicts, total, err := h.queryService.GetVerdicts(ctx, filter)
	if err != nil {
		h.logger.Error(ctx, "[API_GET_VERDICTS_ERROR] Failed to get verdicts", logging.Fields{
			"filter": filter,
		}, err)
		h.metrics.RecordAPIError("internal_error", "/api/verdicts")
		h.sendError(w, r, "failed to retrieve verdicts", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest("/api/verdicts", "GET", "200")
	h.sendJSON(w, PaginatedResponse{
		Data:       verdicts,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}, http.StatusOK)
}

// outcomeFilter builds a filter from the outcome query parameters
func outcomeFilter(r *http.Request) (repository.OutcomeFilter, string) {
	var filter repository.OutcomeFilter
	q := r.URL.Query()

	if runID := q.Get("run_id"); runID != "" {
		filter.RunID = &runID
	}
	if stationID := q.Get("station_id"); stationID != "" {
		filter.StationID = &stationID
	}
	year, ok := queryYear(r)
	if !ok {
		return filter, "invalid year, expected a four-digit integer"
	}
	filter.Year = year

	if raw := q.Get("status"); raw != "" {
		status := models.TaskStatus(raw)
		if !status.Terminal() {
			return filter, "invalid status, expected EXCLUDED, UNFILLABLE, DONE or FAILED"
		}
		filter.Status = &status
	}
	return filter, ""
}

// GetOutcomes handles GET /api/outcomes
func (h *AMYHandler) GetOutcomes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.observe("/api/outcomes", time.Now())

	filter, problem := outcomeFilter(r)
	if problem != "" {
		h.sendError(w, r, problem, http.StatusBadRequest)
		return
	}
	page, limit := pagination(r)
	filter.Limit = limit
	filter.Offset = (page - 1) * limit

	outcomes, total, err := h.queryService.GetOutcomes(ctx, filter)
	if err != nil {
		h.logger.Error(ctx, "[API_GET_OUTCOMES_ERROR] Failed to get outcomes", logging.Fields{
			"filter": filter,
		}, err)
		h.metrics.RecordAPIError("internal_error", "/api/outcomes")
		h.sendError(w, r, "failed to retrieve outcomes", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest("/api/outcomes", "GET", "200")
	h.sendJSON(w, PaginatedResponse{
		Data:       outcomes,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}, http.StatusOK)
}

// GetOutcomeSummary handles GET /api/outcomes/summary
func (h *AMYHandler) GetOutcomeSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.observe("/api/outcomes/summary", time.Now())

	filter, problem := outcomeFilter(r)
	if problem != "" {
		h.sendError(w, r, problem, http.StatusBadRequest)
		return
	}

	summary, err := h.queryService.SummarizeOutcomes(ctx, filter)
	if err != nil {
		h.logger.Error(ctx, "[API_OUTCOME_SUMMARY_ERROR] Failed to summarize outcomes", logging.Fields{
			"filter": filter,
		}, err)
		h.metrics.RecordAPIError("internal_error", "/api/outcomes/summary")
		h.sendError(w, r, "failed to summarize outcomes", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordAPIRequest("/api/outcomes/summary", "GET", "200")
	h.sendJSON(w, summary, http.StatusOK)
}

// HealthCheck handles GET /health
func (h *AMYHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := h.queryService.HealthCheck(ctx); err != nil {
		h.logger.Warn(ctx, "[HEALTH_CHECK_FAILED] Database unreachable", logging.Fields{
			"error": err.Error(),
		})
		status["status"] = "unhealthy"
		h.sendJSON(w, status, http.StatusServiceUnavailable)
		return
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{})
	h.sendJSON(w, status, http.StatusOK)
}

// sendJSON sends a JSON response
func (h *AMYHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response
func (h *AMYHandler) sendError(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	h.metrics.RecordAPIRequest(r.URL.Path, r.Method, strconv.Itoa(statusCode))

	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}

	h.sendJSON(w, response, statusCode)
}

// RegisterRoutes registers all AMY API routes
func (h *AMYHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/stations", h.GetStations).Methods("GET")
	router.HandleFunc("/api/stations/{id}", h.GetStation).Methods("GET")
	router.HandleFunc("/api/verdicts", h.GetVerdicts).Methods("GET")
	router.HandleFunc("/api/outcomes", h.GetOutcomes).Methods("GET")
	router.HandleFunc("/api/outcomes/summary", h.GetOutcomeSummary).Methods("GET")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
}
