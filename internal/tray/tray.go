// Package tray provides the system tray menu for mudra.
package tray

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/getlantern/systray"

	"github.com/ayusman/mudra/internal/tracking"
)

// StatusInterval is how often Watch refreshes the status line.
const StatusInterval = 250 * time.Millisecond

// Tray represents the system tray application.
type Tray struct {
	onToggle       func(enabled bool)
	onCameraToggle func(show bool)
	onSettings     func()
	onQuit         func()
	enabled        bool
	showCamera     bool
	status         string
	mu             sync.RWMutex

	// Menu items stored for later updates
	menuToggle *systray.MenuItem
	menuCamera *systray.MenuItem
	menuStatus *systray.MenuItem
}

// New creates a Tray reflecting the given toggle states.
func New(enabled, showCamera bool) *Tray {
	return &Tray{
		enabled:    enabled,
		showCamera: showCamera,
		status:     StatusText(tracking.Snapshot{}),
	}
}

// OnToggle sets the callback function to be called when tracking is toggled.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnCameraToggle sets the callback for the camera backdrop toggle.
func (t *Tray) OnCameraToggle(fn func(show bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onCameraToggle = fn
}

// OnSettings sets the callback function to be called when the settings menu item is clicked.
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray, making Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Mudra")
	systray.SetTooltip("Mudra hand tracking")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Toggle hand tracking")
	t.menuCamera = systray.AddMenuItemCheckbox("Camera backdrop", "Show the camera frame behind the preview skeleton", t.showCamera)
	systray.AddSeparator()

	t.menuStatus = systray.AddMenuItem(t.status, "Tracked hand")
	t.menuStatus.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuSettings := systray.AddMenuItem("Open Settings...", "Open settings in browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Mudra")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-t.menuCamera.ClickedCh:
				t.handleCameraToggle()
			case <-menuSettings.ClickedCh:
				t.handleSettings()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Tracking"
	}
	return "○ Paused"
}

// handleToggle handles the toggle menu item click.
func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled

	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}

	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

// handleCameraToggle handles the camera backdrop checkbox click.
func (t *Tray) handleCameraToggle() {
	t.mu.Lock()
	t.showCamera = !t.showCamera
	show := t.showCamera

	if t.menuCamera != nil {
		if show {
			t.menuCamera.Check()
		} else {
			t.menuCamera.Uncheck()
		}
	}

	callback := t.onCameraToggle
	t.mu.Unlock()

	if callback != nil {
		callback(show)
	}
}

// handleSettings handles the settings menu item click.
func (t *Tray) handleSettings() {
	t.mu.RLock()
	callback := t.onSettings
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// StatusText formats the status line: the hand and its smoothed openness
// while one is tracked, "No hand" otherwise.
func StatusText(s tracking.Snapshot) string {
	if !s.Detected {
		return "No hand"
	}
	hand := string(s.Handedness)
	if hand == "" {
		hand = "Hand"
	}
	return fmt.Sprintf("%s · %.2f", hand, s.Openness)
}

// SetStatus updates the status line.
func (t *Tray) SetStatus(s tracking.Snapshot) {
	text := StatusText(s)

	t.mu.Lock()
	defer t.mu.Unlock()
	if text == t.status {
		return
	}
	t.status = text
	if t.menuStatus != nil {
		t.menuStatus.SetTitle(text)
	}
}

// Status returns the current status line.
func (t *Tray) Status() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Watch refreshes the status line from snapshot every interval until ctx
// is done. It only reads state; smoothing is advanced by other consumers.
func (t *Tray) Watch(ctx context.Context, snapshot func() tracking.Snapshot, interval time.Duration) {
	if interval <= 0 {
		interval = StatusInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.SetStatus(snapshot())
		}
	}
}

// IsEnabled returns the current tracking toggle state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

// ShowCamera returns the current camera backdrop toggle state.
func (t *Tray) ShowCamera() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.showCamera
}
