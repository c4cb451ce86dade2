package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli"
)

var (
	ErrInvalidDims       = errors.New("invalid volume dimensions")
	ErrInvalidPayloadCap = errors.New("invalid payload limit")
)

// Largest --max-payload value in MiB that fits the 32-bit length field.
const maxPayloadMiB = 4095

// Config holds defaults loaded from a TOML file. Values only apply to flags
// that were not set on the command line or through the environment.
type Config struct {
	LogLevel string      `toml:"log_level"`
	Serve    ServeConfig `toml:"serve"`
	View     ViewConfig  `toml:"view"`
}

type ServeConfig struct {
	Host       string  `toml:"host"`
	Port       int     `toml:"port"`
	Volume     string  `toml:"volume"`
	Dims       string  `toml:"dims"`
	Workers    int     `toml:"workers"`
	Scheduler  string  `toml:"scheduler"`
	StepSize   float64 `toml:"step_size"`
	Threshold  float64 `toml:"threshold"`
	TFCutoff   int     `toml:"tf_cutoff"`
	TFAlpha    float64 `toml:"tf_alpha"`
	MaxPayload int     `toml:"max_payload"`
}

type ViewConfig struct {
	Host          string  `toml:"host"`
	Port          int     `toml:"port"`
	Width         int     `toml:"width"`
	Height        int     `toml:"height"`
	FPS           int     `toml:"fps"`
	Duration      string  `toml:"duration"`
	Orbit         float64 `toml:"orbit"`
	PointSize     int     `toml:"point_size"`
	Out           string  `toml:"out"`
	SnapshotEvery int     `toml:"snapshot_every"`
	MaxPayload    int     `toml:"max_payload"`
}

// Load the config file referenced by the global --config flag. An empty
// config is returned if the flag is not set.
func loadConfig(ctx *cli.Context) (*Config, error) {
	cfg := &Config{}

	path := ctx.GlobalString("config")
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open config file: %w", err)
	}
	defer f.Close()

	if err = toml.NewDecoder(f).DisallowUnknownFields().Decode(cfg); err != nil {
		return nil, fmt.Errorf("could not parse config file %s: %w", path, err)
	}
	return cfg, nil
}

func (c ServeConfig) flagValues() map[string]string {
	values := map[string]string{}
	setString(values, "host", c.Host)
	setInt(values, "port", c.Port)
	setString(values, "volume", c.Volume)
	setString(values, "dims", c.Dims)
	setInt(values, "workers", c.Workers)
	setString(values, "scheduler", c.Scheduler)
	setFloat(values, "step-size", c.StepSize)
	setFloat(values, "threshold", c.Threshold)
	setInt(values, "tf-cutoff", c.TFCutoff)
	setFloat(values, "tf-alpha", c.TFAlpha)
	setInt(values, "max-payload", c.MaxPayload)
	return values
}

func (c ViewConfig) flagValues() map[string]string {
	values := map[string]string{}
	setString(values, "host", c.Host)
	setInt(values, "port", c.Port)
	setInt(values, "width", c.Width)
	setInt(values, "height", c.Height)
	setInt(values, "fps", c.FPS)
	setString(values, "duration", c.Duration)
	setFloat(values, "orbit", c.Orbit)
	setInt(values, "point-size", c.PointSize)
	setString(values, "out", c.Out)
	setInt(values, "snapshot-every", c.SnapshotEvery)
	setInt(values, "max-payload", c.MaxPayload)
	return values
}

// Copy config values into the command flags the user did not set.
func applyDefaults(ctx *cli.Context, values map[string]string) error {
	for name, value := range values {
		if ctx.IsSet(name) {
			continue
		}
		if err := ctx.Set(name, value); err != nil {
			return fmt.Errorf("invalid config value %q for %s: %w", value, name, err)
		}
	}
	return nil
}

func setString(values map[string]string, name, value string) {
	if value != "" {
		values[name] = value
	}
}

func setInt(values map[string]string, name string, value int) {
	if value != 0 {
		values[name] = strconv.Itoa(value)
	}
}

func setFloat(values map[string]string, name string, value float64) {
	if value != 0 {
		values[name] = strconv.FormatFloat(value, 'g', -1, 64)
	}
}

// Parse volume dimensions in WxHxD format.
func parseDims(value string) ([3]int, error) {
	var dims [3]int

	parts := strings.Split(strings.ToLower(value), "x")
	if len(parts) != 3 {
		return dims, fmt.Errorf("%w: %q; expected WxHxD", ErrInvalidDims, value)
	}
	for idx, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || v <= 0 {
			return dims, fmt.Errorf("%w: %q; expected WxHxD", ErrInvalidDims, value)
		}
		dims[idx] = v
	}
	return dims, nil
}

// Convert the --max-payload flag (MiB) to a transport payload limit in bytes.
func payloadLimit(mib int) (uint32, error) {
	if mib <= 0 || mib > maxPayloadMiB {
		return 0, fmt.Errorf("%w: %d MiB; expected 1-%d", ErrInvalidPayloadCap, mib, maxPayloadMiB)
	}
	return uint32(mib) << 20, nil
}
