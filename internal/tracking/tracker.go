// Package tracking turns per-frame hand landmarks into two smoothed,
// distance-independent control signals: an openness scalar and a 3-D
// orientation.
//
// A Tracker has two independent writers. The capture pipeline calls Process
// once per detector frame, and every consumer calls Update (or Tick) from its
// own render loop. The two may interleave arbitrarily; a tick always smooths
// toward whatever target is current at that moment, so skipped frames never
// need to be replayed.
package tracking

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/num/quat"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/spatial"
)

// Platform is a coarse performance hint consumers may use to scale their
// own rendering work.
type Platform string

const (
	PlatformDesktop Platform = "desktop"
	PlatformMobile  Platform = "mobile"
)

// PlatformFor maps the mobile capability flag to a Platform.
func PlatformFor(mobile bool) Platform {
	if mobile {
		return PlatformMobile
	}
	return PlatformDesktop
}

// Snapshot is a consistent copy of the tracker's published state.
type Snapshot struct {
	Detected             bool
	Handedness           detector.Handedness
	Openness             float64
	TargetOpenness       float64
	Orientation          quat.Number
	TargetOrientation    quat.Number
	HasTargetOrientation bool
	Landmarks            *detector.HandLandmarks
	Platform             Platform
	ShowCamera           bool
	Frames               uint64
}

// Listener receives tracker events. HandUpdated is delivered once per frame
// in which a hand was found, HandLost once per frame without one.
type Listener interface {
	HandUpdated(Snapshot)
	HandLost()
}

// Previewer renders the debug preview for every processed frame. src is the
// camera frame and may be nil; hand is nil when no hand was found.
type Previewer interface {
	Render(src *gocv.Mat, hand *detector.HandLandmarks, showCamera bool)
}

type subscription struct {
	id       uint64
	listener Listener
}

// Tracker holds the tracking state for one hand. The zero value is not
// usable; create one with New.
type Tracker struct {
	log *zap.Logger

	mu  sync.RWMutex
	cfg Config

	detected          bool
	landmarks         *detector.HandLandmarks
	handedness        detector.Handedness
	targetOpenness    float64
	openness          float64
	targetOrientation quat.Number
	hasTarget         bool
	orientation       quat.Number
	frames            uint64

	platform   Platform
	showCamera bool
	previewer  Previewer

	onUpdate  func(Snapshot)
	onLost    func()
	listeners []subscription
	nextID    uint64
}

// New creates a Tracker with state bound to zero openness and the identity
// orientation.
func New(cfg Config, log *zap.Logger) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracker{
		log:               log.Named("tracking"),
		cfg:               cfg,
		handedness:        detector.HandednessUnknown,
		targetOrientation: spatial.Identity,
		orientation:       spatial.Identity,
		platform:          PlatformDesktop,
		showCamera:        true,
	}, nil
}

// Process ingests one detector result. Only the first hand is used.
//
// With a hand present the landmarks and handedness are replaced, new targets
// are extracted and the "updated" callback fires with the current snapshot.
// Without one the landmarks are cleared, the openness target drops to 0 and
// the "lost" callback fires; handedness keeps its last known value. "Lost"
// fires for every frame without a hand, not only on the transition.
func (t *Tracker) Process(res detector.Result) {
	hand := res.Primary()

	t.mu.Lock()
	wasDetected := t.detected
	t.frames++

	if hand == nil {
		t.detected = false
		t.landmarks = nil
		t.targetOpenness = 0
		t.hasTarget = false
	} else {
		h := *hand
		t.detected = true
		t.landmarks = &h
		if h.Handedness.Valid() {
			t.handedness = h.Handedness
		}
		t.targetOpenness = Openness(&h, t.cfg.Calibration, t.cfg.MinScale)
		t.targetOrientation, t.hasTarget = Orientation(&h)
	}

	snap := t.snapshotLocked()
	previewer := t.previewer
	onUpdate, onLost := t.onUpdate, t.onLost
	listeners := append([]subscription(nil), t.listeners...)
	t.mu.Unlock()

	if wasDetected != snap.Detected {
		t.log.Debug("detection changed",
			zap.Bool("detected", snap.Detected),
			zap.String("handedness", string(snap.Handedness)))
	}

	// Callbacks run without the lock so they may read accessors.
	if previewer != nil {
		previewer.Render(res.Image, snap.Landmarks, snap.ShowCamera)
	}

	if hand == nil {
		if onLost != nil {
			onLost()
		}
		for _, s := range listeners {
			s.listener.HandLost()
		}
		return
	}

	if onUpdate != nil {
		onUpdate(snap)
	}
	for _, s := range listeners {
		s.listener.HandUpdated(snap)
	}
}

// Update advances the temporal filter by one tick at the reference rate.
// It is Tick(0).
func (t *Tracker) Update() {
	t.Tick(0)
}

// Tick advances the temporal filter. Openness moves toward its target by
// the smoothing factor; orientation slerps toward its target by the faster
// rotation factor, but only while a hand is detected and has a target
// orientation, otherwise it holds. dt <= 0 applies the factors as tuned;
// a positive dt rescales them for that elapsed time.
func (t *Tracker) Tick(dt time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	alpha := smoothingFactor(t.cfg.Smoothing, dt, t.cfg.ReferenceFrame)
	beta := smoothingFactor(t.cfg.rotationSmoothing(), dt, t.cfg.ReferenceFrame)

	t.openness = approach(t.openness, t.targetOpenness, alpha)
	if t.detected && t.hasTarget {
		t.orientation = spatial.Slerp(t.orientation, t.targetOrientation, beta)
	}
}

// OnUpdate registers the single "hand updated" callback, replacing any
// previous one. nil clears it.
func (t *Tracker) OnUpdate(fn func(Snapshot)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onUpdate = fn
}

// OnLost registers the single "hand lost" callback, replacing any previous
// one. nil clears it.
func (t *Tracker) OnLost(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onLost = fn
}

// Subscribe adds l to the ordered listener list. Listeners are notified after
// the single-slot callbacks, in subscription order. The returned function
// removes l and is safe to call more than once.
func (t *Tracker) Subscribe(l Listener) (cancel func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextID++
	id := t.nextID
	t.listeners = append(t.listeners, subscription{id: id, listener: l})

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		for i, s := range t.listeners {
			if s.id == id {
				t.listeners = append(t.listeners[:i:i], t.listeners[i+1:]...)
				return
			}
		}
	}
}

// SetPreviewer attaches the debug preview renderer. nil detaches it.
func (t *Tracker) SetPreviewer(p Previewer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.previewer = p
}

// SetShowCamera selects whether the camera image or a blank placeholder is
// drawn behind the preview skeleton.
func (t *Tracker) SetShowCamera(show bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.showCamera = show
}

// SetPlatform sets the performance hint published to consumers.
func (t *Tracker) SetPlatform(p Platform) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.platform = p
}

// SetCalibration replaces the openness range. It takes effect from the next
// processed frame.
func (t *Tracker) SetCalibration(cal Calibration) error {
	if err := cal.Validate(); err != nil {
		return err
	}
	t.mu.Lock()
	t.cfg.Calibration = cal
	t.mu.Unlock()

	t.log.Info("calibration applied",
		zap.Float64("closed_ratio", cal.ClosedRatio),
		zap.Float64("open_ratio", cal.OpenRatio))
	return nil
}

// Calibration returns the openness range in use.
func (t *Tracker) Calibration() Calibration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cfg.Calibration
}

// Reset returns openness, orientation and detection state to their initial
// values and drops every callback and listener. Handedness stays sticky and
// the preview, platform and calibration settings are kept.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.detected = false
	t.landmarks = nil
	t.targetOpenness = 0
	t.openness = 0
	t.targetOrientation = spatial.Identity
	t.hasTarget = false
	t.orientation = spatial.Identity
	t.onUpdate = nil
	t.onLost = nil
	t.listeners = nil

	t.log.Info("tracker reset")
}

// Openness returns the smoothed openness in [0,1].
func (t *Tracker) Openness() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.openness
}

// TargetOpenness returns the latest unfiltered openness, 0 without a hand.
func (t *Tracker) TargetOpenness() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.targetOpenness
}

// Orientation returns the smoothed orientation as a unit quaternion.
func (t *Tracker) Orientation() quat.Number {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.orientation
}

// TargetOrientation returns the latest unfiltered orientation. ok is false
// when no hand is detected or its geometry was degenerate.
func (t *Tracker) TargetOrientation() (q quat.Number, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.hasTarget {
		return spatial.Identity, false
	}
	return t.targetOrientation, true
}

// Detected reports whether the most recent frame contained a hand.
func (t *Tracker) Detected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.detected
}

// Landmarks returns a copy of the most recent landmark set, or nil.
func (t *Tracker) Landmarks() *detector.HandLandmarks {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return copyLandmarks(t.landmarks)
}

// Handedness returns the last reported handedness.
func (t *Tracker) Handedness() detector.Handedness {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.handedness
}

// Platform returns the performance hint.
func (t *Tracker) Platform() Platform {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.platform
}

// ShowCamera reports whether the preview composites the camera image.
func (t *Tracker) ShowCamera() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.showCamera
}

// Snapshot returns every published value read under one lock.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() Snapshot {
	target := t.targetOrientation
	if !t.hasTarget {
		target = spatial.Identity
	}
	return Snapshot{
		Detected:             t.detected,
		Handedness:           t.handedness,
		Openness:             t.openness,
		TargetOpenness:       t.targetOpenness,
		Orientation:          t.orientation,
		TargetOrientation:    target,
		HasTargetOrientation: t.hasTarget,
		Landmarks:            copyLandmarks(t.landmarks),
		Platform:             t.platform,
		ShowCamera:           t.showCamera,
		Frames:               t.frames,
	}
}

func copyLandmarks(h *detector.HandLandmarks) *detector.HandLandmarks {
	if h == nil {
		return nil
	}
	c := *h
	return &c
}
