package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/Brownie44l1/classifier-api/internal/apperr"
	"github.com/Brownie44l1/classifier-api/internal/config"
	"github.com/Brownie44l1/classifier-api/internal/httpx"
	"github.com/Brownie44l1/classifier-api/internal/metrics"
	"github.com/Brownie44l1/classifier-api/internal/model"
	"github.com/Brownie44l1/classifier-api/internal/preprocess"
	"gorgonia.org/tensor"
)

const (
	// FormField is the multipart field the image is uploaded under.
	FormField = "file"

	RoutePredict       = "predict"
	RoutePredictTensor = "predict_tensor"

	defaultMaxUploadBytes = 10 << 20
)

// Options is everything a Handler needs, built once at startup.
type Options struct {
	Classifier     model.Classifier
	Labels         *model.Labels
	Preprocessor   *preprocess.Preprocessor
	Latency        *metrics.LatencyTracker
	Confidence     config.ConfidenceFormat
	MaxUploadBytes int64
	Message        string
}

type Handler struct {
	classifier     model.Classifier
	labels         *model.Labels
	preprocessor   *preprocess.Preprocessor
	latency        *metrics.LatencyTracker
	confidence     config.ConfidenceFormat
	maxUploadBytes int64
	message        string
}

type PredictionResponse struct {
	Prediction string `json:"prediction"`
	Confidence any    `json:"confidence,omitempty"`
}

type HealthResponse struct {
	Status     string                     `json:"status"`
	Classes    []string                   `json:"classes"`
	InputShape []int                      `json:"input_shape"`
	Inference  map[string]metrics.Latency `json:"inference"`
}

func NewHandler(opts Options) *Handler {
	h := &Handler{
		classifier:     opts.Classifier,
		labels:         opts.Labels,
		preprocessor:   opts.Preprocessor,
		latency:        opts.Latency,
		confidence:     opts.Confidence,
		maxUploadBytes: opts.MaxUploadBytes,
		message:        opts.Message,
	}
	if h.latency == nil {
		h.latency = metrics.NewLatencyTracker(0.2)
	}
	if h.confidence == "" {
		h.confidence = config.ConfidenceFloat
	}
	if h.maxUploadBytes <= 0 {
		h.maxUploadBytes = defaultMaxUploadBytes
	}
	return h
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.Root)
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("POST /predict", h.Predict)
	mux.HandleFunc("POST /predict/tensor", h.PredictTensor)
}

// Routes returns the registered endpoints wrapped with request ids and panic recovery.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	h.Register(mux)
	return httpx.RequestID(httpx.Recover(mux))
}

func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": h.message})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, HealthResponse{
		Status:     "healthy",
		Classes:    h.labels.Classes(),
		InputShape: []int(h.preprocessor.Shape()),
		Inference:  h.latency.Snapshot(),
	})
}

// Predict classifies an image uploaded as multipart field "file".
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	id := httpx.RequestIDFrom(r.Context())

	data, filename, err := h.readUpload(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	log.Printf("[%s] Received file: %s, size: %d bytes", id, filename, len(data))

	input, err := h.preprocessor.Process(data)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.predict(w, r, RoutePredict, input)
}

// PredictTensor classifies an already preprocessed NHWC image sent as JSON.
func (h *Handler) PredictTensor(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeError(w, r, apperr.Wrap(apperr.Validation, "failed to read request body", err))
		return
	}

	var req model.PredictionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.writeError(w, r, apperr.Wrap(apperr.Validation, "invalid JSON", err))
		return
	}

	input, err := h.preprocessor.FromValues(req.Image)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.predict(w, r, RoutePredictTensor, input)
}

func (h *Handler) predict(w http.ResponseWriter, r *http.Request, route string, input *tensor.Dense) {
	start := time.Now()
	result, err := h.classify(r.Context(), input)
	elapsed := time.Since(start)
	if err != nil {
		h.latency.ObserveError(route, elapsed)
		h.writeError(w, r, err)
		return
	}
	h.latency.ObserveOK(route, elapsed)

	log.Printf("[%s] Prediction: %s (%.4f) in %v", httpx.RequestIDFrom(r.Context()), result.Label, result.Confidence, elapsed)

	httpx.WriteJSON(w, http.StatusOK, PredictionResponse{
		Prediction: result.Label,
		Confidence: h.formatConfidence(result.Confidence),
	})
}

func (h *Handler) classify(ctx context.Context, input *tensor.Dense) (*model.Prediction, error) {
	probs, err := h.classifier.Predict(ctx, input)
	if err != nil {
		return nil, apperr.Wrap(apperr.Inference, "prediction failed", err)
	}
	return model.Decode(probs, h.labels)
}

func (h *Handler) formatConfidence(c float32) any {
	switch h.confidence {
	case config.ConfidenceNone:
		return nil
	case config.ConfidencePercent:
		return fmt.Sprintf("%.2f%%", float64(c)*100)
	default:
		return c
	}
}

func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return nil, "", apperr.New(apperr.Validation, fmt.Sprintf("file too large (max %d bytes)", h.maxUploadBytes))
		case errors.Is(err, http.ErrNotMultipart):
			return nil, "", apperr.New(apperr.Validation, "request must be multipart/form-data")
		default:
			return nil, "", apperr.Wrap(apperr.Validation, "failed to parse form", err)
		}
	}

	file, header, err := r.FormFile(FormField)
	if err != nil {
		// A part with an empty filename is parsed as a plain form value.
		if _, ok := r.MultipartForm.Value[FormField]; ok {
			return nil, "", apperr.New(apperr.Validation, "No selected file")
		}
		return nil, "", apperr.New(apperr.Validation, "No file part in the request")
	}
	defer file.Close()

	if header.Filename == "" {
		return nil, "", apperr.New(apperr.Validation, "No selected file")
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", apperr.Wrap(apperr.Inference, "failed to read file", err)
	}
	return data, header.Filename, nil
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.Status(err)
	log.Printf("[%s] %s %s: %s error (%d): %v",
		httpx.RequestIDFrom(r.Context()), r.Method, r.URL.Path, apperr.KindOf(err), status, err)
	httpx.WriteJSON(w, status, map[string]string{"error": err.Error()})
}
