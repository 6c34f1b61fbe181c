package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/raaihank/pet-gateway/internal/anonymizer"
	"github.com/raaihank/pet-gateway/internal/privacy"
	"github.com/raaihank/pet-gateway/internal/websocket"
)

const (
	// OptimumFoundHeader tells the caller whether values were generalized
	OptimumFoundHeader = "X-Optimum-Found"
	// IgnoredSchemesHeader lists unrecognized schemes that were skipped
	IgnoredSchemesHeader = "X-Ignored-Schemes"
	// DirectIdentifiersHeader lists attribute:entity pairs that look like
	// direct identifiers
	DirectIdentifiersHeader = "X-Direct-Identifiers"
)

// ExceptionResponse is the error body of every failed request
type ExceptionResponse struct {
	Exception string `json:"exception"`
	Message   string `json:"message"`
	Reason    string `json:"reason,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newVersionResponse(Version))
}

// handleAttributes anonymizes a flat-attribute request
func (s *Server) handleAttributes(w http.ResponseWriter, r *http.Request) {
	var req anonymizer.AttributeRequest
	if !s.decode(w, r, &req) {
		return
	}

	job := websocket.JobEvent{
		Shape:      "attributes",
		Rows:       len(req.Data),
		Attributes: []string{anonymizer.FlatAttributeName},
		Schemes:    petSchemes(req.Pets),
	}

	objects := anonymizer.FlatObjects(req.Data)
	var identifiers string
	result, ok := s.execute(w, r, job, func(ctx context.Context) (*anonymizer.Result, error) {
		if err := anonymizer.ValidateAttributeRequest(&req); err != nil {
			return nil, err
		}
		var err error
		if identifiers, err = s.screenIdentifiers(r, objects); err != nil {
			return nil, err
		}
		return s.anonymizer.AnonymizeAttributes(ctx, &req)
	})
	if !ok {
		return
	}

	s.recordContext(getRequestID(r.Context()), objects)
	setIdentifiers(w, identifiers)
	writeResult(w, result, result.Attributes())
}

// handleObjects anonymizes a composite-object request
func (s *Server) handleObjects(w http.ResponseWriter, r *http.Request) {
	var req anonymizer.ObjectRequest
	if !s.decode(w, r, &req) {
		return
	}

	job := websocket.JobEvent{
		Shape:   "objects",
		Rows:    len(req.Data),
		Schemes: petSchemes(req.Pets),
	}
	if schema, err := anonymizer.InferSchema(req.Data); err == nil {
		job.Attributes = schema.Names()
	}

	var identifiers string
	result, ok := s.execute(w, r, job, func(ctx context.Context) (*anonymizer.Result, error) {
		if err := anonymizer.ValidateObjectRequest(&req); err != nil {
			return nil, err
		}
		var err error
		if identifiers, err = s.screenIdentifiers(r, req.Data); err != nil {
			return nil, err
		}
		return s.anonymizer.AnonymizeObjects(ctx, &req)
	})
	if !ok {
		return
	}

	s.recordContext(getRequestID(r.Context()), req.Data)
	setIdentifiers(w, identifiers)
	writeResult(w, result, result.Rows)
}

// decode reads a size-limited JSON body; malformed bodies are validation errors
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if s.config.Server.MaxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.config.Server.MaxBodyBytes)
	}

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		status := http.StatusBadRequest
		message := fmt.Sprintf("malformed request body: %v", err)
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)
		}
		s.logger.WithRequestID(getRequestID(r.Context())).Info("Rejected request body", zap.Error(err))
		writeJSON(w, status, ExceptionResponse{Exception: string(anonymizer.KindValidation), Message: message})
		return false
	}
	return true
}

// execute runs one anonymization under the request timeout, emitting job
// events and metrics. It writes the error response itself and reports
// whether the caller should write a result.
func (s *Server) execute(w http.ResponseWriter, r *http.Request, job websocket.JobEvent, run func(context.Context) (*anonymizer.Result, error)) (*anonymizer.Result, bool) {
	requestID := getRequestID(r.Context())
	log := s.logger.WithRequestID(requestID)

	ctx := r.Context()
	if s.config.Server.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Server.RequestTimeout)
		defer cancel()
	}

	s.broadcast(websocket.EventTypeJobStarted, requestID, job)

	start := time.Now()
	result, err := run(ctx)
	job.DurationMS = float64(time.Since(start).Microseconds()) / 1000

	if s.metrics != nil {
		s.metrics.ObserveJob(job.Shape, result, err)
	}

	if err != nil {
		status, body := errorResponse(err)
		if status >= http.StatusInternalServerError {
			log.Error("Anonymization failed", zap.String("shape", job.Shape), zap.Error(err))
		} else {
			log.Info("Request rejected", zap.String("shape", job.Shape), zap.Error(err))
		}

		job.ErrorKind = body.Exception
		job.Error = body.Message
		s.broadcast(websocket.EventTypeJobFailed, requestID, job)

		writeJSON(w, status, body)
		return nil, false
	}

	job.OptimumFound = result.OptimumFound
	job.Schemes = result.Schemes
	job.Ignored = result.Ignored
	s.broadcast(websocket.EventTypeJobCompleted, requestID, job)

	return result, true
}

// screenIdentifiers reports values that look like direct identifiers. In
// reject mode the findings fail the request; otherwise their summary is
// returned for the response header of a successful request.
func (s *Server) screenIdentifiers(r *http.Request, objects []anonymizer.ObjectData) (string, error) {
	if s.screen == nil {
		return "", nil
	}
	findings := s.screen.Scan(objects)
	if len(findings) == 0 {
		return "", nil
	}

	if s.metrics != nil {
		for _, f := range findings {
			s.metrics.Identifiers.WithLabelValues(f.EntityType).Add(float64(f.Count))
		}
	}

	summary := privacy.Summary(findings)
	s.logger.WithRequestID(getRequestID(r.Context())).Warn("Request contains direct identifiers",
		zap.String("findings", summary),
		zap.Bool("rejected", s.screen.Rejects()))

	if s.screen.Rejects() {
		return "", privacy.Error(findings)
	}
	return summary, nil
}

func setIdentifiers(w http.ResponseWriter, summary string) {
	if summary != "" {
		w.Header().Set(DirectIdentifiersHeader, summary)
	}
}

// recordContext stores the request's objects for later k-map jobs. It runs
// after the response and never affects it.
func (s *Server) recordContext(requestID string, objects []anonymizer.ObjectData) {
	if s.recorder == nil || !s.config.Context.RecordRequests {
		return
	}

	s.background.Add(1)
	go func() {
		defer s.background.Done()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		log := s.logger.WithRequestID(requestID)
		res, err := s.recorder.Record(ctx, objects)
		if err != nil {
			log.Warn("Failed to record request context", zap.Error(err))
			return
		}
		if s.metrics != nil {
			s.metrics.ContextRecorded.Add(float64(res.Inserted))
		}
		log.Debug("Request context recorded",
			zap.Int64("inserted", res.Inserted),
			zap.Int64("duplicates", res.Duplicates))
	}()
}

func (s *Server) broadcast(eventType websocket.EventType, requestID string, job websocket.JobEvent) {
	if s.hub != nil {
		s.hub.BroadcastJob(eventType, requestID, job)
	}
}

// errorResponse maps a pipeline error to its HTTP status and body
func errorResponse(err error) (int, ExceptionResponse) {
	var e *anonymizer.Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError, ExceptionResponse{Exception: "internal", Message: err.Error()}
	}

	body := ExceptionResponse{Exception: string(e.Kind), Message: e.Message, Reason: string(e.Reason)}
	switch e.Kind {
	case anonymizer.KindEngine:
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout, body
		}
		return http.StatusBadGateway, body
	default:
		return http.StatusBadRequest, body
	}
}

func writeResult(w http.ResponseWriter, result *anonymizer.Result, body interface{}) {
	w.Header().Set(OptimumFoundHeader, strconv.FormatBool(result.OptimumFound))
	if len(result.Ignored) > 0 {
		w.Header().Set(IgnoredSchemesHeader, strings.Join(result.Ignored, ","))
	}
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func petSchemes(pets []anonymizer.Pet) []string {
	schemes := make([]string, 0, len(pets))
	for _, p := range pets {
		schemes = append(schemes, p.Scheme)
	}
	return schemes
}
