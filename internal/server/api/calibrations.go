package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/mudra/internal/calibration"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/tracking"
)

// Calibrator receives the openness range of the active calibration.
type Calibrator interface {
	ApplyCalibration(cal tracking.Calibration) error
}

// CalibrationConfig configures a CalibrationHandler.
type CalibrationConfig struct {
	Store   *store.Store
	Trainer *calibration.Trainer
	// Target is updated whenever the active calibration changes.
	Target Calibrator
	// Fallback is applied when the active calibration is deleted.
	Fallback tracking.Calibration
	Logger   *zap.Logger
}

// CalibrationHandler handles /api/calibrations.
type CalibrationHandler struct {
	store    *store.Store
	trainer  *calibration.Trainer
	target   Calibrator
	fallback tracking.Calibration
	log      *zap.Logger
}

// NewCalibrationHandler creates a new CalibrationHandler.
func NewCalibrationHandler(cfg CalibrationConfig) *CalibrationHandler {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	trainer := cfg.Trainer
	if trainer == nil {
		trainer = calibration.NewTrainer(tracking.DefaultMinScale)
	}
	fallback := cfg.Fallback
	if fallback == (tracking.Calibration{}) {
		fallback = tracking.DefaultCalibration()
	}
	return &CalibrationHandler{
		store:    cfg.Store,
		trainer:  trainer,
		target:   cfg.Target,
		fallback: fallback,
		log:      log.Named("api.calibrations"),
	}
}

type calibrationResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	ClosedRatio float64 `json:"closed_ratio"`
	OpenRatio   float64 `json:"open_ratio"`
	Samples     int     `json:"samples"`
	Active      bool    `json:"active"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

type listCalibrationsResponse struct {
	Calibrations []calibrationResponse `json:"calibrations"`
}

// createCalibrationRequest carries either recorded samples of both poses,
// which are trained into a range, or an explicit range.
type createCalibrationRequest struct {
	Name          string            `json:"name"`
	ClosedRatio   *float64          `json:"closed_ratio"`
	OpenRatio     *float64          `json:"open_ratio"`
	ClosedSamples []json.RawMessage `json:"closed_samples"`
	OpenSamples   []json.RawMessage `json:"open_samples"`
}

type updateCalibrationRequest struct {
	Name        *string  `json:"name"`
	ClosedRatio *float64 `json:"closed_ratio"`
	OpenRatio   *float64 `json:"open_ratio"`
}

type samplesResponse struct {
	Closed []json.RawMessage `json:"closed"`
	Open   []json.RawMessage `json:"open"`
}

func toCalibrationResponse(c *store.Calibration) calibrationResponse {
	return calibrationResponse{
		ID:          c.ID,
		Name:        c.Name,
		ClosedRatio: c.ClosedRatio,
		OpenRatio:   c.OpenRatio,
		Samples:     c.Samples,
		Active:      c.Active,
		CreatedAt:   c.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   c.UpdatedAt.Format(time.RFC3339),
	}
}

func toTracking(c *store.Calibration) tracking.Calibration {
	return tracking.Calibration{ClosedRatio: c.ClosedRatio, OpenRatio: c.OpenRatio}
}

// ServeHTTP routes calibration requests:
//
//	GET    /api/calibrations
//	POST   /api/calibrations
//	GET    /api/calibrations/{id}
//	PUT    /api/calibrations/{id}
//	DELETE /api/calibrations/{id}
//	POST   /api/calibrations/{id}/activate
//	GET    /api/calibrations/{id}/samples
func (h *CalibrationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "storage is not configured")
		return
	}

	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/calibrations"), "/")
	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w)
		case http.MethodPost:
			h.create(w, r)
		default:
			methodNotAllowed(w)
		}
		return
	}

	parts := strings.Split(path, "/")
	id := parts[0]
	switch {
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			h.get(w, id)
		case http.MethodPut:
			h.update(w, r, id)
		case http.MethodDelete:
			h.delete(w, id)
		default:
			methodNotAllowed(w)
		}
	case len(parts) == 2 && parts[1] == "activate":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		h.activate(w, id)
	case len(parts) == 2 && parts[1] == "samples":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		h.samples(w, id)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (h *CalibrationHandler) list(w http.ResponseWriter) {
	cals, err := h.store.Calibrations().List()
	if err != nil {
		h.log.Error("list calibrations", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list calibrations")
		return
	}

	resp := listCalibrationsResponse{Calibrations: make([]calibrationResponse, 0, len(cals))}
	for _, c := range cals {
		resp.Calibrations = append(resp.Calibrations, toCalibrationResponse(c))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *CalibrationHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createCalibrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	var cal tracking.Calibration
	trained := len(req.ClosedSamples) > 0 || len(req.OpenSamples) > 0
	switch {
	case trained:
		var err error
		cal, err = h.trainer.TrainSamples(req.ClosedSamples, req.OpenSamples)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
	case req.ClosedRatio != nil && req.OpenRatio != nil:
		cal = tracking.Calibration{ClosedRatio: *req.ClosedRatio, OpenRatio: *req.OpenRatio}
		if err := cal.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	default:
		writeError(w, http.StatusBadRequest, "closed and open samples or ratios are required")
		return
	}

	rec := &store.Calibration{
		Name:        name,
		ClosedRatio: cal.ClosedRatio,
		OpenRatio:   cal.OpenRatio,
		Samples:     len(req.ClosedSamples) + len(req.OpenSamples),
	}
	if err := h.store.Calibrations().Create(rec); err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeError(w, http.StatusConflict, "calibration name already exists")
			return
		}
		h.log.Error("create calibration", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create calibration")
		return
	}

	if trained {
		if err := h.storeSamples(rec.ID, req.ClosedSamples, req.OpenSamples); err != nil {
			h.log.Error("store calibration samples", zap.String("id", rec.ID), zap.Error(err))
			if err := h.store.Calibrations().Delete(rec.ID); err != nil {
				h.log.Warn("remove partial calibration", zap.String("id", rec.ID), zap.Error(err))
			}
			writeError(w, http.StatusInternalServerError, "failed to store samples")
			return
		}
	}

	h.log.Info("calibration created",
		zap.String("id", rec.ID),
		zap.String("name", rec.Name),
		zap.Float64("closed_ratio", rec.ClosedRatio),
		zap.Float64("open_ratio", rec.OpenRatio),
	)
	writeJSON(w, http.StatusCreated, toCalibrationResponse(rec))
}

func (h *CalibrationHandler) storeSamples(id string, closed, open []json.RawMessage) error {
	if err := h.store.Samples().Replace(id, store.PoseClosed, closed); err != nil {
		return err
	}
	return h.store.Samples().Replace(id, store.PoseOpen, open)
}

func (h *CalibrationHandler) get(w http.ResponseWriter, id string) {
	c, ok := h.lookup(w, id)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toCalibrationResponse(c))
}

// lookup fetches id, writing the error response when it fails.
func (h *CalibrationHandler) lookup(w http.ResponseWriter, id string) (*store.Calibration, bool) {
	c, err := h.store.Calibrations().GetByID(id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "calibration not found")
		return nil, false
	}
	if err != nil {
		h.log.Error("get calibration", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get calibration")
		return nil, false
	}
	return c, true
}

func (h *CalibrationHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	c, ok := h.lookup(w, id)
	if !ok {
		return
	}

	var req updateCalibrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			writeError(w, http.StatusBadRequest, "name cannot be empty")
			return
		}
		c.Name = name
	}
	if req.ClosedRatio != nil {
		c.ClosedRatio = *req.ClosedRatio
	}
	if req.OpenRatio != nil {
		c.OpenRatio = *req.OpenRatio
	}
	if err := toTracking(c).Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Calibrations().Update(c); err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			writeError(w, http.StatusConflict, "calibration name already exists")
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "calibration not found")
		default:
			h.log.Error("update calibration", zap.String("id", id), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to update calibration")
		}
		return
	}

	if c.Active {
		h.apply(toTracking(c))
	}
	writeJSON(w, http.StatusOK, toCalibrationResponse(c))
}

func (h *CalibrationHandler) delete(w http.ResponseWriter, id string) {
	c, ok := h.lookup(w, id)
	if !ok {
		return
	}

	if err := h.store.Calibrations().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "calibration not found")
			return
		}
		h.log.Error("delete calibration", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to delete calibration")
		return
	}

	if c.Active {
		h.apply(h.fallback)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CalibrationHandler) activate(w http.ResponseWriter, id string) {
	c, ok := h.lookup(w, id)
	if !ok {
		return
	}

	if err := h.store.Calibrations().Activate(id); err != nil {
		h.log.Error("activate calibration", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to activate calibration")
		return
	}
	c.Active = true
	h.apply(toTracking(c))

	h.log.Info("calibration activated", zap.String("id", id), zap.String("name", c.Name))
	writeJSON(w, http.StatusOK, toCalibrationResponse(c))
}

func (h *CalibrationHandler) samples(w http.ResponseWriter, id string) {
	if _, ok := h.lookup(w, id); !ok {
		return
	}

	closed, err := h.store.Samples().List(id, store.PoseClosed)
	if err != nil {
		h.log.Error("list samples", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list samples")
		return
	}
	open, err := h.store.Samples().List(id, store.PoseOpen)
	if err != nil {
		h.log.Error("list samples", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list samples")
		return
	}

	resp := samplesResponse{Closed: closed, Open: open}
	if resp.Closed == nil {
		resp.Closed = []json.RawMessage{}
	}
	if resp.Open == nil {
		resp.Open = []json.RawMessage{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *CalibrationHandler) apply(cal tracking.Calibration) {
	if h.target == nil {
		return
	}
	if err := h.target.ApplyCalibration(cal); err != nil {
		h.log.Warn("apply calibration", zap.Error(err))
	}
}
