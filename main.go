package main

import (
	"os"

	"github.com/szellmann/warpvr/cmd"
	"github.com/urfave/cli"
)

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	app := cli.NewApp()
	app.Name = "warpvr"
	app.Usage = "steer a remote volume renderer and display its point samples"
	app.Version = "0.0.1"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
		cli.StringFlag{
			Name:   "config, c",
			Usage:  "load flag defaults from a TOML file",
			EnvVar: "WARPVR_CONFIG",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "serve",
			Usage: "render frames for a remote viewer",
			Description: `
Load a raw 8-bit volume (or generate a procedural one), wait for a single
viewer to connect and answer each camera it sends with a point cloud and the
matching colors produced by a CPU ray marcher.

The --volume flag accepts a local path or an http(s) URL.`,
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:   "host",
					Value:  "",
					Usage:  "interface to listen on",
					EnvVar: "WARPVR_SERVE_HOST",
				},
				cli.IntFlag{
					Name:   "port, p",
					Value:  31050,
					Usage:  "port to listen on",
					EnvVar: "WARPVR_SERVE_PORT",
				},
				cli.StringFlag{
					Name:   "volume",
					Usage:  "raw volume file or URL; a procedural volume is generated if empty",
					EnvVar: "WARPVR_VOLUME",
				},
				cli.StringFlag{
					Name:   "dims",
					Value:  "256x256x128",
					Usage:  "volume dimensions in WxHxD format",
					EnvVar: "WARPVR_VOLUME_DIMS",
				},
				cli.IntFlag{
					Name:   "workers",
					Value:  0,
					Usage:  "number of render workers; 0 uses one per CPU",
					EnvVar: "WARPVR_WORKERS",
				},
				cli.StringFlag{
					Name:   "scheduler",
					Value:  "perfect",
					Usage:  "block scheduler (naive or perfect)",
					EnvVar: "WARPVR_SCHEDULER",
				},
				cli.Float64Flag{
					Name:   "step-size",
					Value:  0.5,
					Usage:  "ray marching step as a fraction of the voxel size",
					EnvVar: "WARPVR_STEP_SIZE",
				},
				cli.Float64Flag{
					Name:   "threshold",
					Value:  0.5,
					Usage:  "accumulated opacity at which the point sample of a ray is emitted",
					EnvVar: "WARPVR_THRESHOLD",
				},
				cli.IntFlag{
					Name:   "tf-cutoff",
					Value:  24,
					Usage:  "voxel values below this are fully transparent",
					EnvVar: "WARPVR_TF_CUTOFF",
				},
				cli.Float64Flag{
					Name:   "tf-alpha",
					Value:  0.2,
					Usage:  "opacity per step of the densest voxel value",
					EnvVar: "WARPVR_TF_ALPHA",
				},
				cli.IntFlag{
					Name:   "max-payload",
					Value:  256,
					Usage:  "largest accepted message payload in MiB",
					EnvVar: "WARPVR_SERVE_MAX_PAYLOAD",
				},
			},
			Action: cmd.Serve,
		},
		{
			Name:  "view",
			Usage: "connect to a server and display the received frames",
			Description: `
Run a headless viewer: request frames for the local camera, splat the received
points on every display tick and optionally write PNG snapshots. The --orbit
flag simulates a left button drag of the given number of pixels per tick.`,
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:   "host",
					Value:  "localhost",
					Usage:  "server host",
					EnvVar: "WARPVR_VIEW_HOST",
				},
				cli.IntFlag{
					Name:   "port, p",
					Value:  31050,
					Usage:  "server port",
					EnvVar: "WARPVR_VIEW_PORT",
				},
				cli.IntFlag{
					Name:   "width",
					Value:  512,
					Usage:  "frame width",
					EnvVar: "WARPVR_WIDTH",
				},
				cli.IntFlag{
					Name:   "height",
					Value:  512,
					Usage:  "frame height",
					EnvVar: "WARPVR_HEIGHT",
				},
				cli.IntFlag{
					Name:   "fps",
					Value:  30,
					Usage:  "display ticks per second",
					EnvVar: "WARPVR_FPS",
				},
				cli.DurationFlag{
					Name:   "duration",
					Usage:  "exit after this long; 0 runs until interrupted",
					EnvVar: "WARPVR_DURATION",
				},
				cli.Float64Flag{
					Name:   "orbit",
					Usage:  "horizontal orbit drag in pixels per tick",
					EnvVar: "WARPVR_ORBIT",
				},
				cli.IntFlag{
					Name:   "point-size",
					Value:  1,
					Usage:  "edge length in pixels of each splatted point",
					EnvVar: "WARPVR_POINT_SIZE",
				},
				cli.StringFlag{
					Name:   "out, o",
					Usage:  "write the last displayed image to this PNG file on exit",
					EnvVar: "WARPVR_OUT",
				},
				cli.IntFlag{
					Name:   "snapshot-every",
					Usage:  "also write a numbered snapshot next to --out every N ticks",
					EnvVar: "WARPVR_SNAPSHOT_EVERY",
				},
				cli.IntFlag{
					Name:   "max-payload",
					Value:  256,
					Usage:  "largest accepted message payload in MiB",
					EnvVar: "WARPVR_VIEW_MAX_PAYLOAD",
				},
			},
			Action: cmd.View,
		},
	}

	if err := app.Run(os.Args); err != nil {
		cmd.Fatal(err)
	}
}
