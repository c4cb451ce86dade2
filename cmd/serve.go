package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/szellmann/warpvr/engine"
	"github.com/szellmann/warpvr/session"
	"github.com/szellmann/warpvr/transport"
	"github.com/urfave/cli"
)

// Render frames for a single remote viewer.
func Serve(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	if err = setupLogging(ctx, cfg); err != nil {
		return err
	}
	if err = applyDefaults(ctx, cfg.Serve.flagValues()); err != nil {
		return err
	}

	eng, err := setupEngine(ctx)
	if err != nil {
		return err
	}

	limit, err := payloadLimit(ctx.Int("max-payload"))
	if err != nil {
		return err
	}

	mgr := transport.NewManager(transport.WithPayloadLimit(limit))
	mgr.Run()
	defer func() {
		mgr.Stop()
		mgr.Wait()
	}()

	server := session.NewServer(eng)
	addr := net.JoinHostPort(ctx.String("host"), strconv.Itoa(ctx.Int("port")))
	if _, err = server.Serve(mgr, addr); err != nil {
		return err
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-server.Done():
	case <-sigCtx.Done():
		logger.Notice("interrupted; shutting down")
		server.Close()
	}

	displaySessionStats("server", server.Stats())

	if err = server.Err(); errors.Is(err, transport.ErrClosed) || errors.Is(err, transport.ErrStopped) {
		return nil
	}
	return err
}

// Load or generate the volume and create a ray marcher for it.
func setupEngine(ctx *cli.Context) (engine.RenderEngine, error) {
	dims, err := parseDims(ctx.String("dims"))
	if err != nil {
		return nil, err
	}

	var vol *engine.Volume
	start := time.Now()
	if path := ctx.String("volume"); path != "" {
		logger.Noticef("loading %dx%dx%d volume from %s", dims[0], dims[1], dims[2], path)
		vol, err = engine.LoadRaw(context.Background(), path, dims, engine.DefaultBounds)
	} else {
		logger.Noticef("generating %dx%dx%d procedural volume", dims[0], dims[1], dims[2])
		vol, err = engine.ProceduralVolume(dims, engine.DefaultBounds)
	}
	if err != nil {
		return nil, err
	}
	logger.Infof("volume ready in %s", time.Since(start))

	cutoff := ctx.Int("tf-cutoff")
	if cutoff < 0 || cutoff > 255 {
		return nil, fmt.Errorf("transfer function cutoff %d out of range 0-255", cutoff)
	}
	tf := engine.RampTransferFunction(uint8(cutoff), float32(ctx.Float64("tf-alpha")))

	var scheduler engine.BlockScheduler
	switch name := ctx.String("scheduler"); name {
	case "naive":
		scheduler = engine.NaiveScheduler()
	case "perfect":
		scheduler = engine.PerfectScheduler()
	default:
		return nil, fmt.Errorf("unknown block scheduler %q", name)
	}

	return engine.NewRaymarcher(
		vol,
		engine.WithWorkers(ctx.Int("workers")),
		engine.WithScheduler(scheduler),
		engine.WithStepSize(float32(ctx.Float64("step-size"))),
		engine.WithOpacityThreshold(float32(ctx.Float64("threshold"))),
		engine.WithTransferFunction(tf),
	), nil
}
