package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/ayusman/mudra/internal/store"
)

// Controls are the runtime toggles exposed through /api/settings.
type Controls interface {
	ShowCamera() bool
	SetShowCamera(show bool)
	IsEnabled() bool
	SetEnabled(enabled bool)
}

// SettingsHandler handles /api/settings. Changes are applied to the running
// pipeline and, when a store is configured, persisted.
type SettingsHandler struct {
	store    *store.Store
	controls Controls
	log      *zap.Logger
}

// NewSettingsHandler creates a new SettingsHandler. s may be nil.
func NewSettingsHandler(s *store.Store, controls Controls, log *zap.Logger) *SettingsHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &SettingsHandler{store: s, controls: controls, log: log.Named("api.settings")}
}

type settingsResponse struct {
	ShowCamera      bool `json:"show_camera"`
	TrackingEnabled bool `json:"tracking_enabled"`
}

type updateSettingsRequest struct {
	ShowCamera      *bool `json:"show_camera"`
	TrackingEnabled *bool `json:"tracking_enabled"`
}

func (h *SettingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.controls == nil {
		writeError(w, http.StatusServiceUnavailable, "tracking is not running")
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.current())
	case http.MethodPut:
		h.update(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (h *SettingsHandler) current() settingsResponse {
	return settingsResponse{
		ShowCamera:      h.controls.ShowCamera(),
		TrackingEnabled: h.controls.IsEnabled(),
	}
}

func (h *SettingsHandler) update(w http.ResponseWriter, r *http.Request) {
	var req updateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if req.ShowCamera != nil {
		if !h.persist(w, store.SettingShowCamera, *req.ShowCamera) {
			return
		}
		h.controls.SetShowCamera(*req.ShowCamera)
	}
	if req.TrackingEnabled != nil {
		if !h.persist(w, store.SettingEnabled, *req.TrackingEnabled) {
			return
		}
		h.controls.SetEnabled(*req.TrackingEnabled)
	}

	writeJSON(w, http.StatusOK, h.current())
}

func (h *SettingsHandler) persist(w http.ResponseWriter, key string, value bool) bool {
	if h.store == nil {
		return true
	}
	if err := h.store.Settings().SetBool(key, value); err != nil {
		h.log.Error("save setting", zap.String("key", key), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to save settings")
		return false
	}
	return true
}
