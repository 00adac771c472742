package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/logger"
	"github.com/ayusman/mudra/internal/server"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/tray"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file (default ./"+config.DefaultFile+" if present)")
	noTray := flag.Bool("no-tray", false, "run without the system tray")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mudra: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mudra: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, log, *noTray); err != nil {
		log.Error("mudra stopped", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger, noTray bool) error {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	st, err := store.New(cfg.DatabasePath(), log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	a, err := app.New(app.Config{
		Camera:   cfg.Camera,
		Detector: cfg.Detector,
		Tracking: cfg.Tracking,
		Preview:  cfg.Preview,
		Platform: cfg.Platform(),
		Store:    st,
		Logger:   log,
	})
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Restore(); err != nil {
		return err
	}
	if err := a.Start(); err != nil {
		return err
	}

	staticDir := cfg.Server.StaticDir
	if staticDir == "" {
		staticDir = findWebDir(cfg.DataDir)
	}
	if staticDir != "" {
		log.Info("serving static files", zap.String("dir", staticDir))
	}

	srv := server.New(server.Config{
		StaticDir: staticDir,
		App:       a,
		Store:     st,
		Tracking:  cfg.Tracking,
		TickRate:  cfg.Server.TickRate,
		Logger:    log,
	})
	defer srv.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Run(ctx, cfg.Server.Addr)
		stop()
	}()

	if noTray {
		<-ctx.Done()
	} else {
		runTray(ctx, stop, a, st, settingsURL(cfg.Server.Addr), log)
		stop()
	}

	return <-serveErr
}

// runTray blocks in the tray loop until Quit is chosen or ctx ends.
func runTray(ctx context.Context, stop context.CancelFunc, a *app.App, st *store.Store, url string, log *zap.Logger) {
	t := tray.New(a.IsEnabled(), a.ShowCamera())

	t.OnToggle(func(enabled bool) {
		a.SetEnabled(enabled)
		if err := st.Settings().SetBool(store.SettingEnabled, enabled); err != nil {
			log.Warn("save setting", zap.String("key", store.SettingEnabled), zap.Error(err))
		}
	})
	t.OnCameraToggle(func(show bool) {
		a.SetShowCamera(show)
		if err := st.Settings().SetBool(store.SettingShowCamera, show); err != nil {
			log.Warn("save setting", zap.String("key", store.SettingShowCamera), zap.Error(err))
		}
	})
	t.OnSettings(func() {
		if err := openBrowser(url); err != nil {
			log.Warn("open settings", zap.String("url", url), zap.Error(err))
		}
	})
	t.OnQuit(stop)

	go t.Watch(ctx, a.Tracker().Snapshot, tray.StatusInterval)
	go func() {
		<-ctx.Done()
		t.Quit()
	}()

	t.Run()
}

func settingsURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and <dataDir>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	for _, p := range []string{"web", "../web", "../../web", filepath.Join(dataDir, "web")} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}
