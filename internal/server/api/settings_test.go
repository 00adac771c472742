package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/ayusman/mudra/internal/store"
)

type fakeControls struct {
	showCamera bool
	enabled    bool
}

func (f *fakeControls) ShowCamera() bool { return f.showCamera }
func (f *fakeControls) SetShowCamera(show bool) { f.showCamera = show }
func (f *fakeControls) IsEnabled() bool { return f.enabled }
func (f *fakeControls) SetEnabled(enabled bool) { f.enabled = enabled }

func decodeSettings(t *testing.T, body []byte) settingsResponse {
	t.Helper()
	var resp settingsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

func TestSettingsHandler_Get(t *testing.T) {
	controls := &fakeControls{showCamera: true, enabled: true}
	h := NewSettingsHandler(nil, controls, nil)

	rec := do(h, http.MethodGet, "/api/settings", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	got := decodeSettings(t, rec.Body.Bytes())
	if !got.ShowCamera || !got.TrackingEnabled {
		t.Errorf("unexpected settings %+v", got)
	}
}

func TestSettingsHandler_Put(t *testing.T) {
	s := newTestStore(t)
	controls := &fakeControls{showCamera: true, enabled: true}
	h := NewSettingsHandler(s, controls, nil)

	rec := do(h, http.MethodPut, "/api/settings", `{"show_camera": false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	got := decodeSettings(t, rec.Body.Bytes())
	if got.ShowCamera {
		t.Error("show_camera should be off in the response")
	}
	if !got.TrackingEnabled {
		t.Error("omitted fields must keep their value")
	}
	if controls.showCamera {
		t.Error("show_camera should be applied to the pipeline")
	}

	stored, err := s.Settings().GetBool(store.SettingShowCamera, true)
	if err != nil {
		t.Fatalf("GetBool() error = %v", err)
	}
	if stored {
		t.Error("show_camera should be persisted")
	}

	do(h, http.MethodPut, "/api/settings", `{"tracking_enabled": false}`)
	if controls.enabled {
		t.Error("tracking_enabled should be applied to the pipeline")
	}
	enabled, _ := s.Settings().GetBool(store.SettingEnabled, true)
	if enabled {
		t.Error("tracking_enabled should be persisted")
	}
}

func TestSettingsHandler_Errors(t *testing.T) {
	tests := []struct {
		name       string
		handler    *SettingsHandler
		method     string
		body       string
		wantStatus int
	}{
		{
			name:       "invalid json",
			handler:    NewSettingsHandler(nil, &fakeControls{}, nil),
			method:     http.MethodPut,
			body:       `{"show_camera": "yes"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "method not allowed",
			handler:    NewSettingsHandler(nil, &fakeControls{}, nil),
			method:     http.MethodDelete,
			wantStatus: http.StatusMethodNotAllowed,
		},
		{
			name:       "no pipeline",
			handler:    NewSettingsHandler(nil, nil, nil),
			method:     http.MethodGet,
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(tt.handler, tt.method, "/api/settings", tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}
