package app

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/detector"
)

// runPipeline reads frames at the camera rate until stopCh closes:
// read, detect, hand the result to the tracker. A frame whose detection
// fails is dropped; the tracker keeps its previous state rather than being
// fed a guess.
func (a *App) runPipeline(stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	fps := a.camera.FPS()
	if fps <= 0 {
		fps = 1
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			a.step()
		}
	}
}

func (a *App) step() {
	a.procMu.Lock()
	defer a.procMu.Unlock()

	if !a.IsEnabled() {
		return
	}

	frame, err := a.camera.ReadFrame()
	if err != nil {
		a.log.Warn("error reading frame", zap.Error(err))
		return
	}
	defer frame.Close()

	if err := a.ProcessFrame(frame); err != nil {
		a.log.Warn("frame dropped", zap.Error(err))
	}
}

// ProcessFrame runs detection on one frame and feeds the tracker. The caller
// keeps ownership of frame.
func (a *App) ProcessFrame(frame *gocv.Mat) error {
	start := time.Now()
	hands, err := a.detector.Detect(frame)
	a.metrics.ObserveDetect(time.Since(start))
	if err != nil {
		a.metrics.DetectError()
		return fmt.Errorf("detect hands: %w", err)
	}

	a.tracker.Process(detector.Result{Hands: hands, Image: frame})
	return nil
}
