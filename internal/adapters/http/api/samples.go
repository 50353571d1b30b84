package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	service "github.com/okian/stride/internal/app"
	"github.com/okian/stride/internal/domain/motion"
)

const maxSamplesBody = 4 << 20

// SampleDependencies defines the input operations fed by devices.
type SampleDependencies interface {
	SubmitSamples(ctx context.Context, batchID string, readings []motion.Reading) (service.SubmitResult, error)
	RecordStep(ctx context.Context) (bool, error)
	SensorUnavailable(ctx context.Context) (bool, error)
}

// samplesRequest is the body of POST /samples.
type samplesRequest struct {
	BatchID string           `json:"batch_id"`
	Samples []motion.Reading `json:"samples"`
}

func (req samplesRequest) validate() error {
	if len(req.Samples) == 0 {
		return errors.New("missing samples")
	}
	for i, s := range req.Samples {
		if s.At.IsZero() {
			return fmt.Errorf("sample %d: missing ts", i)
		}
	}
	return nil
}

type appliedResponse struct {
	Applied bool `json:"applied"`
}

// SamplesHandler handles motion input requests.
type SamplesHandler struct {
	deps SampleDependencies
}

// NewSamplesHandler creates a new samples handler.
func NewSamplesHandler(deps SampleDependencies) *SamplesHandler {
	return &SamplesHandler{deps: deps}
}

// HandlePostSamples handles POST /samples requests.
func (h *SamplesHandler) HandlePostSamples(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_samples"
	var req samplesRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSamplesBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	res, err := h.deps.SubmitSamples(r.Context(), req.BatchID, req.Samples)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	if res.Duplicate {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", Accepted: res.Accepted})
}

// HandlePostStep handles POST /steps requests.
func (h *SamplesHandler) HandlePostStep(w http.ResponseWriter, r *http.Request) {
	ok, err := h.deps.RecordStep(r.Context())
	if err != nil {
		writeServiceError(w, "api.post_step", err)
		return
	}
	writeJSON(w, http.StatusOK, appliedResponse{Applied: ok})
}

// HandleSensorUnavailable handles POST /sensor/unavailable requests.
func (h *SamplesHandler) HandleSensorUnavailable(w http.ResponseWriter, r *http.Request) {
	ok, err := h.deps.SensorUnavailable(r.Context())
	if err != nil {
		writeServiceError(w, "api.sensor_unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, appliedResponse{Applied: ok})
}
