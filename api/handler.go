package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/zugfix/invoice-canon-service/internal/auth"
	"github.com/zugfix/invoice-canon-service/internal/db"
	"github.com/zugfix/invoice-canon-service/internal/models"
	"github.com/zugfix/invoice-canon-service/internal/pipeline"
	"github.com/zugfix/invoice-canon-service/internal/storage"
)

const (
	MaxUploadSize = 10 * 1024 * 1024 // 10MB
	Version       = "1.0.0"
)

// Handler handles HTTP requests for invoice canonicalization
type Handler struct {
	config   *models.Config
	pipeline *pipeline.Pipeline
	log      *zap.Logger
}

// NewHandler creates a new API handler
func NewHandler(config *models.Config, p *pipeline.Pipeline, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		config:   config,
		pipeline: p,
		log:      log,
	}
}

// SetupRoutes configures the HTTP routes
func (h *Handler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()

	// Main endpoints
	router.HandleFunc("/api/canonicalize", h.Canonicalize).Methods("POST")

	// Persisted runs (require authentication)
	protected := router.PathPrefix("/api").Subrouter()
	protected.Use(auth.JWTMiddleware)
	protected.HandleFunc("/runs", h.GetRuns).Methods("GET")
	protected.HandleFunc("/run/{id}", h.GetRun).Methods("GET")
	protected.HandleFunc("/run/{id}", h.DeleteRun).Methods("DELETE")
	protected.HandleFunc("/run/{id}/document", h.GetRunDocument).Methods("GET")

	// Authentication
	router.HandleFunc("/api/login", auth.LoginHandler).Methods("POST")

	// Health check
	router.HandleFunc("/health", h.Health).Methods("GET")

	return router
}

// HealthResponse represents the health check response structure
type HealthResponse struct {
	Status    string        `json:"status"`
	Version   string        `json:"version"`
	Timestamp string        `json:"timestamp"`
	Uptime    string        `json:"uptime"`
	Memory    MemoryStats   `json:"memory"`
	Database  ServiceStatus `json:"database"`
	Storage   ServiceStatus `json:"storage"`
	AI        ServiceStatus `json:"ai"`
}

// MemoryStats represents memory usage statistics
type MemoryStats struct {
	Allocated string `json:"allocated"`
	Total     string `json:"total"`
	System    string `json:"system"`
}

// ServiceStatus represents the status of a service dependency
type ServiceStatus struct {
	Available bool   `json:"available"`
	Error     string `json:"error,omitempty"`
}

var startTime = time.Now()

// Health endpoint - enhanced for monitoring
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := HealthResponse{
		Status:    "healthy",
		Version:   Version,
		Timestamp: time.Now().Format(time.RFC3339),
		Uptime:    time.Since(startTime).String(),
		Memory: MemoryStats{
			Allocated: fmt.Sprintf("%.2f MB", float64(m.Alloc)/1024/1024),
			Total:     fmt.Sprintf("%.2f MB", float64(m.TotalAlloc)/1024/1024),
			System:    fmt.Sprintf("%.2f MB", float64(m.Sys)/1024/1024),
		},
		Database: h.checkDatabase(r),
		Storage:  h.checkStorage(),
		AI: ServiceStatus{
			Available: h.config.AI.DefaultProvider != "" && h.config.AI.DefaultProvider != "none",
		},
	}

	json.NewEncoder(w).Encode(response)
}

func (h *Handler) checkDatabase(r *http.Request) ServiceStatus {
	if db.Pool == nil {
		return ServiceStatus{Available: false, Error: "not configured"}
	}
	if err := db.Pool.Ping(r.Context()); err != nil {
		return ServiceStatus{Available: false, Error: err.Error()}
	}
	return ServiceStatus{Available: true}
}

func (h *Handler) checkStorage() ServiceStatus {
	if storage.Client == nil {
		return ServiceStatus{Available: false, Error: "not configured"}
	}
	return ServiceStatus{Available: true}
}

// CanonicalizeResponse wraps a pipeline result with run persistence state.
type CanonicalizeResponse struct {
	*pipeline.Result
	Persisted bool   `json:"persisted"`
	SourceKey string `json:"source_key,omitempty"`
}

// Canonicalize runs the rule engine over one OCR analysis document.
// POST /api/canonicalize as multipart/form-data with an "analysis" file
// field (the OCR result JSON, required), an optional "document" file field
// (the source PDF, archived to object storage) and an optional enrich=true
// form value to run LLM enrichment first. A raw JSON body is accepted as a
// shorthand for the analysis-only case, with enrich=true as a query
// parameter.
func (h *Handler) Canonicalize(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)

	var analysis, document []byte
	var documentType string
	enrich := r.URL.Query().Get("enrich") == "true"

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
			h.sendError(w, http.StatusBadRequest, "upload too large or invalid form data")
			return
		}

		// Accept both "analysis" and "file" field names.
		file, _, err := r.FormFile("analysis")
		if err != nil {
			file, _, err = r.FormFile("file")
		}
		if err != nil {
			h.sendError(w, http.StatusBadRequest, "no analysis provided (use 'analysis' or 'file' field)")
			return
		}
		analysis, err = io.ReadAll(file)
		file.Close()
		if err != nil {
			h.sendError(w, http.StatusInternalServerError, "failed to read analysis")
			return
		}

		if doc, header, err := r.FormFile("document"); err == nil {
			document, err = io.ReadAll(doc)
			doc.Close()
			if err != nil {
				h.sendError(w, http.StatusInternalServerError, "failed to read source document")
				return
			}
			documentType = header.Header.Get("Content-Type")
		}
		if v := r.FormValue("enrich"); v != "" {
			enrich = v == "true"
		}
	} else {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			h.sendError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		analysis = body
	}

	result, err := h.pipeline.Run(r.Context(), analysis, enrich)
	if err != nil {
		h.log.Error("canonicalization run failed", zap.Error(err))
		h.sendError(w, http.StatusInternalServerError, "canonicalization failed")
		return
	}

	response := CanonicalizeResponse{Result: result}

	// Archive the uploaded source document when object storage is available,
	// falling back to the analysis JSON itself.
	if storage.Client != nil {
		var key string
		var err error
		if len(document) > 0 {
			key, err = storage.UploadDocument(r.Context(), result.RunID, documentType, document)
		} else {
			key, err = storage.UploadAnalysis(r.Context(), result.RunID, analysis)
		}
		if err != nil {
			h.log.Warn("failed to archive source document", zap.Error(err))
		} else {
			response.SourceKey = key
		}
	}

	// Persist the run when a database is available.
	if db.Pool != nil {
		if err := h.saveRun(r, result, response.SourceKey); err != nil {
			h.log.Warn("failed to persist run", zap.String("run_id", result.RunID), zap.Error(err))
		} else {
			response.Persisted = true
		}
	}

	json.NewEncoder(w).Encode(response)
}

func (h *Handler) saveRun(r *http.Request, result *pipeline.Result, sourceKey string) error {
	id, err := uuid.Parse(result.RunID)
	if err != nil {
		return fmt.Errorf("invalid run id: %w", err)
	}
	canonical, err := json.Marshal(result.Invoice)
	if err != nil {
		return fmt.Errorf("failed to marshal canonical invoice: %w", err)
	}
	corrections, err := json.Marshal(result.Corrections)
	if err != nil {
		return fmt.Errorf("failed to marshal corrections: %w", err)
	}
	en16931, err := json.Marshal(result.EN16931)
	if err != nil {
		return fmt.Errorf("failed to marshal en16931 projection: %w", err)
	}

	return db.SaveRun(r.Context(), &db.Run{
		ID:           id,
		SourceKey:    sourceKey,
		Canonical:    canonical,
		Corrections:  corrections,
		EN16931:      en16931,
		PatchCount:   result.PatchCount,
		EnrichedWith: result.EnrichedWith,
	})
}

// GetRuns lists recent canonicalization runs.
// GET /api/runs?limit=50
func (h *Handler) GetRuns(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if db.Pool == nil {
		h.sendError(w, http.StatusServiceUnavailable, "run persistence not configured")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	runs, err := db.GetRuns(r.Context(), limit)
	if err != nil {
		h.log.Error("failed to list runs", zap.Error(err))
		h.sendError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []db.Run{}
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// GetRun loads one run with its canonical invoice and reports.
// GET /api/run/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if db.Pool == nil {
		h.sendError(w, http.StatusServiceUnavailable, "run persistence not configured")
		return
	}

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid run id")
		return
	}

	run, err := db.GetRun(r.Context(), id)
	if err != nil {
		h.sendError(w, http.StatusNotFound, "run not found")
		return
	}

	json.NewEncoder(w).Encode(run)
}

// DeleteRun removes a persisted run and its archived source document.
// DELETE /api/run/{id}
func (h *Handler) DeleteRun(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if db.Pool == nil {
		h.sendError(w, http.StatusServiceUnavailable, "run persistence not configured")
		return
	}

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid run id")
		return
	}

	// Archived document removal is best-effort.
	if storage.Client != nil {
		if run, err := db.GetRun(r.Context(), id); err == nil && run.SourceKey != "" {
			if err := storage.DeleteObject(r.Context(), run.SourceKey); err != nil {
				h.log.Warn("failed to delete archived document",
					zap.String("source_key", run.SourceKey), zap.Error(err))
			}
		}
	}

	if err := db.DeleteRun(r.Context(), id); err != nil {
		h.log.Error("failed to delete run", zap.Error(err))
		h.sendError(w, http.StatusInternalServerError, "failed to delete run")
		return
	}

	json.NewEncoder(w).Encode(map[string]string{"status": "deleted"})
}

// GetRunDocument returns a presigned URL for the archived source document,
// or the document bytes themselves with ?inline=true.
// GET /api/run/{id}/document
func (h *Handler) GetRunDocument(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if db.Pool == nil || storage.Client == nil {
		h.sendError(w, http.StatusServiceUnavailable, "document storage not configured")
		return
	}

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid run id")
		return
	}

	run, err := db.GetRun(r.Context(), id)
	if err != nil {
		h.sendError(w, http.StatusNotFound, "run not found")
		return
	}
	if run.SourceKey == "" {
		h.sendError(w, http.StatusNotFound, "run has no archived source document")
		return
	}

	if r.URL.Query().Get("inline") == "true" {
		data, err := storage.GetObject(r.Context(), run.SourceKey)
		if err != nil {
			h.log.Error("failed to fetch archived document", zap.Error(err))
			h.sendError(w, http.StatusInternalServerError, "failed to fetch document")
			return
		}
		w.Header().Set("Content-Type", http.DetectContentType(data))
		w.Write(data)
		return
	}

	url, err := storage.GetPresignedURL(r.Context(), run.SourceKey)
	if err != nil {
		h.log.Error("failed to presign document URL", zap.Error(err))
		h.sendError(w, http.StatusInternalServerError, "failed to generate document URL")
		return
	}

	json.NewEncoder(w).Encode(map[string]string{"url": url})
}

// sendError sends an error response
func (h *Handler) sendError(w http.ResponseWriter, statusCode int, message string) {
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
