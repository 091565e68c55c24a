package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/EmanAguilera/FiamBond-sub000/internal/service"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fiambond_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fiambond_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})
)

const (
	userHeader    = "X-User-ID"
	maxUploadSize = 10 << 20
)

type Handler struct {
	service    *service.LoanService
	validator  *validator.Validate
	translator ut.Translator
	timeout    time.Duration
	now        func() time.Time
}

func NewHandler(svc *service.LoanService, timeout time.Duration) *Handler {
	h := &Handler{
		service:   svc,
		validator: validator.New(),
		timeout:   timeout,
		now:       time.Now,
	}
	eng := en.New()
	uni := ut.New(eng, eng)
	h.translator, _ = uni.GetTranslator("en")
	if err := en_translations.RegisterDefaultTranslations(h.validator, h.translator); err != nil {
		log.Fatalf("Registering validation translations: %v", err)
	}
	return h
}

// Routes registers the loan API on r.
func (h *Handler) Routes(r *mux.Router) {
	r.Use(h.instrument, h.withTimeout)

	r.HandleFunc("/loans", h.CreateLoanHandler).Methods(http.MethodPost)
	r.HandleFunc("/loans/{id}", h.GetLoanHandler).Methods(http.MethodGet)
	r.HandleFunc("/loans/{id}/confirm-receipt", h.ConfirmReceiptHandler).Methods(http.MethodPost)
	r.HandleFunc("/loans/{id}/repayments", h.SubmitRepaymentHandler).Methods(http.MethodPost)
	r.HandleFunc("/loans/{id}/repayments/confirm", h.ConfirmRepaymentHandler).Methods(http.MethodPost)
	r.HandleFunc("/loans/{id}/repayments/decline", h.DeclineRepaymentHandler).Methods(http.MethodPost)
	r.HandleFunc("/loans/{id}/repayments/record", h.RecordRepaymentHandler).Methods(http.MethodPost)
	r.HandleFunc("/users/{id}/loans", h.ListLoansHandler).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}/transactions", h.ListTransactionsHandler).Methods(http.MethodGet)
}

func (h *Handler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// instrument records request counts and latency per route template.
func (h *Handler) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tpl
			}
		}
		timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues(r.Method, endpoint))
		defer timer.ObserveDuration()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		httpRequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(rec.status)).Inc()
	})
}

func (h *Handler) withTimeout(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.timeout <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// actor returns the authenticated user id set by the identity layer.
func actor(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.Header.Get(userHeader))
	if id == "" {
		respondWithError(w, http.StatusUnauthorized, "Missing "+userHeader+" header")
		return "", false
	}
	return id, true
}

// decodeRequest reads a JSON body, or a multipart form whose "payload" field
// holds the JSON and whose fileField part holds an optional document. The
// document is returned as a proof ready for upload. Responds and returns false
// on failure.
func (h *Handler) decodeRequest(w http.ResponseWriter, r *http.Request, dst any, fileField string) (service.Proof, bool) {
	var proof service.Proof
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				respondWithError(w, http.StatusRequestEntityTooLarge, "Request body too large")
				return proof, false
			}
			respondWithError(w, http.StatusBadRequest, "Invalid multipart form")
			return proof, false
		}
		if err := json.Unmarshal([]byte(r.FormValue("payload")), dst); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid request payload")
			return proof, false
		}
		file, header, err := r.FormFile(fileField)
		switch {
		case errors.Is(err, http.ErrMissingFile):
		case err != nil:
			respondWithError(w, http.StatusBadRequest, "Invalid "+fileField+" file")
			return proof, false
		default:
			defer file.Close()
			data, err := io.ReadAll(file)
			if err != nil {
				respondWithError(w, http.StatusBadRequest, "Stream read error")
				return proof, false
			}
			proof.Filename = header.Filename
			proof.Body = bytes.NewReader(data)
		}
	} else {
		if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid request payload")
			return proof, false
		}
	}

	if err := h.validator.Struct(dst); err != nil {
		var errs validator.ValidationErrors
		if errors.As(err, &errs) {
			respondWithValidationError(w, errs.Translate(h.translator))
			return proof, false
		}
		respondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return proof, false
	}
	return proof, true
}

// respondWithServiceError maps an engine error kind to its HTTP status.
func respondWithServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		respondWithError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrUnauthorized):
		respondWithError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrStateConflict):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrLoanNotFound):
		respondWithError(w, http.StatusNotFound, "Loan not found")
	case errors.Is(err, service.ErrUploadFailed):
		respondWithError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, service.ErrStoreUnavailable):
		respondWithError(w, http.StatusServiceUnavailable, "Store unavailable, outcome unknown")
	default:
		log.Printf("Unhandled error: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

func respondWithValidationError(w http.ResponseWriter, fields validator.ValidationErrorsTranslations) {
	respondWithJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"error":  "Validation failed",
		"fields": fields,
	})
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}
