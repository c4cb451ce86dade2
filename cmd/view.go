package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/szellmann/warpvr/engine"
	"github.com/szellmann/warpvr/renderer"
	"github.com/szellmann/warpvr/scene"
	"github.com/szellmann/warpvr/session"
	"github.com/szellmann/warpvr/transport"
	"github.com/urfave/cli"
)

// Connect to a server and run a headless display loop. The last received
// frame stays on display if the session ends; the loop runs until it is
// interrupted or the configured duration elapses.
func View(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	if err = setupLogging(ctx, cfg); err != nil {
		return err
	}
	if err = applyDefaults(ctx, cfg.View.flagValues()); err != nil {
		return err
	}

	w, h := ctx.Int("width"), ctx.Int("height")
	if w <= 0 || h <= 0 {
		return renderer.ErrInvalidSize
	}
	fps := ctx.Int("fps")
	if fps <= 0 {
		return fmt.Errorf("invalid frame rate %d", fps)
	}

	cam := scene.NewCamera(w, h)
	cam.ViewAll(engine.DefaultBounds)
	state := session.NewSharedState(cam)

	opts := renderer.DefaultOptions(uint32(w), uint32(h))
	opts.PointSize = uint32(ctx.Int("point-size"))
	viewer := renderer.NewViewer(state, renderer.NewSplatter(opts))

	limit, err := payloadLimit(ctx.Int("max-payload"))
	if err != nil {
		return err
	}

	mgr := transport.NewManager(transport.WithPayloadLimit(limit))
	mgr.Run()

	client := session.NewClient(state)
	client.Connect(mgr, net.JoinHostPort(ctx.String("host"), strconv.Itoa(ctx.Int("port"))))

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if d := ctx.Duration("duration"); d > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, d)
		defer cancel()
	}

	orbit := float32(ctx.Float64("orbit"))
	out := ctx.String("out")
	snapshotEvery := ctx.Int("snapshot-every")

	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	sessionDone := client.Done()
	for tick := 1; ; tick++ {
		select {
		case <-runCtx.Done():
			logger.Notice("shutting down")
			mgr.Stop()
			mgr.Wait()

			displaySessionStats("client", client.Stats())
			displayViewerStats(viewer.Stats())
			return writeFinalSnapshot(viewer, out)
		case <-sessionDone:
			if err := client.Err(); err != nil {
				logger.Errorf("session ended: %v", err)
			}
			sessionDone = nil
		case <-ticker.C:
		}

		if orbit != 0 {
			viewer.OnPointerDrag(renderer.LeftButton, renderer.NoModifier, orbit, 0)
		}

		img, err := viewer.OnDisplayTick()
		if err != nil {
			return err
		}

		if out != "" && snapshotEvery > 0 && tick%snapshotEvery == 0 {
			if err = renderer.SavePNG(snapshotPath(out, tick), img); err != nil {
				return err
			}
		}
	}
}

func writeFinalSnapshot(viewer *renderer.Viewer, out string) error {
	if out == "" {
		return nil
	}

	img, err := viewer.LastImage()
	if errors.Is(err, renderer.ErrNoImage) {
		logger.Warningf("no frame to write to %s", out)
		return nil
	}
	if err = renderer.SavePNG(out, img); err != nil {
		return err
	}
	logger.Noticef("wrote last frame to %s", out)
	return nil
}

// Build the path for a periodic snapshot by appending the tick number to
// the base name of out.
func snapshotPath(out string, tick int) string {
	ext := filepath.Ext(out)
	return fmt.Sprintf("%s-%06d%s", strings.TrimSuffix(out, ext), tick, ext)
}
