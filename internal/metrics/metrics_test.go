package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/tracking"
)

var _ tracking.Listener = (*Recorder)(nil)

func TestRecorder_Listener(t *testing.T) {
	r := NewRecorder(nil)

	r.HandUpdated(tracking.Snapshot{Detected: true, TargetOpenness: 0.7})
	assert.Equal(t, 1.0, testutil.ToFloat64(r.frames))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.detected))
	assert.Equal(t, 0.7, testutil.ToFloat64(r.targetOpenness))

	r.HandLost()
	r.HandLost()
	assert.Equal(t, 3.0, testutil.ToFloat64(r.frames))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.lost))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.detected))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.targetOpenness))

	r.DetectError()
	assert.Equal(t, 1.0, testutil.ToFloat64(r.detectErrors))
}

func TestRecorder_SubscribedToTracker(t *testing.T) {
	tr, err := tracking.New(tracking.DefaultConfig(), nil)
	require.NoError(t, err)

	r := NewRecorder(tr.Openness)
	tr.Subscribe(r)

	tr.Process(detector.Result{Hands: []detector.HandLandmarks{detector.OpenPalmLandmarks()}})
	tr.Process(detector.Result{})
	tr.Update()

	assert.Equal(t, 2.0, testutil.ToFloat64(r.frames))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.lost))

	n, err := testutil.GatherAndCount(r.Registry(), "mudra_openness_smoothed")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRecorder_Handler(t *testing.T) {
	r := NewRecorder(func() float64 { return 0.25 })
	r.ObserveDetect(15 * time.Millisecond)
	r.HandLost()

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	out := string(body)
	assert.Contains(t, out, "mudra_frames_total 1")
	assert.Contains(t, out, "mudra_hand_lost_total 1")
	assert.Contains(t, out, "mudra_openness_smoothed 0.25")
	assert.Contains(t, out, "mudra_detect_duration_seconds_count 1")
}
