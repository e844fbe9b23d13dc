// calibright reads or changes the brightness of every matched display and
// exits.
//
// Usage:
//
//	calibright [--device regex] [--config file] (--get | --set N | --inc N | --dec N)
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/nerrad567/calibright/internal/configstore"
	"github.com/nerrad567/calibright/internal/device"
	"github.com/nerrad567/calibright/internal/engine"
	"github.com/nerrad567/calibright/internal/infrastructure/config"
	"github.com/nerrad567/calibright/internal/infrastructure/logging"
	"github.com/nerrad567/calibright/internal/link"
)

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// errUsage marks command-line mistakes.
var errUsage = errors.New("usage")

// action is the single operation requested on the command line.
type action int

const (
	actionGet action = iota
	actionSet
	actionInc
	actionDec
)

// options holds parsed command-line flags.
type options struct {
	device     string
	configFile string
	simulate   int
	noHardware bool
	action     action
	value      float64
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	level := os.Getenv("CALIBRIGHT_LOG_LEVEL")
	if level == "" {
		level = "warn"
	}
	log := logging.NewWithWriter(stderr, config.LoggingConfig{Level: level, Format: "text"}, "cli")

	if err := execute(ctx, opts, stdout, log); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	return exitOK
}

// parseArgs parses flags. Exactly one of --get, --set, --inc and --dec is
// required.
func parseArgs(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("calibright", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&opts.device, "device", ".", "regular expression for the displays to match")
	fs.StringVar(&opts.configFile, "config", config.DefaultDisplayConfigFile(), "display calibration file (TOML or YAML)")
	fs.IntVar(&opts.simulate, "simulate", 0, "add N simulated monitors")
	fs.BoolVar(&opts.noHardware, "no-hardware", false, "skip DDC/CI and backlight discovery")
	get := fs.Bool("get", false, "print the current brightness, as a percentage")
	set := fs.Float64("set", 0, "set brightness to `percent`")
	inc := fs.Float64("inc", 0, "increase brightness by `percent`")
	dec := fs.Float64("dec", 0, "decrease brightness by `percent`")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() > 0 {
		return opts, fmt.Errorf("%w: unexpected argument %q", errUsage, fs.Arg(0))
	}

	var chosen []string
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "get":
			if *get {
				chosen = append(chosen, f.Name)
				opts.action = actionGet
			}
		case "set":
			chosen = append(chosen, f.Name)
			opts.action, opts.value = actionSet, *set
		case "inc":
			chosen = append(chosen, f.Name)
			opts.action, opts.value = actionInc, *inc
		case "dec":
			chosen = append(chosen, f.Name)
			opts.action, opts.value = actionDec, *dec
		}
	})
	if len(chosen) != 1 {
		return opts, fmt.Errorf("%w: exactly one of --get, --set, --inc or --dec is required", errUsage)
	}
	if math.IsNaN(opts.value) || math.IsInf(opts.value, 0) {
		return opts, fmt.Errorf("%w: --%s must be a finite number", errUsage, chosen[0])
	}
	if opts.simulate < 0 {
		return opts, fmt.Errorf("%w: --simulate must not be negative", errUsage)
	}
	return opts, nil
}

// execute discovers displays, applies the action and prints the result.
func execute(ctx context.Context, opts options, stdout io.Writer, log *logging.Logger) error {
	filter, err := regexp.Compile(opts.device)
	if err != nil {
		return fmt.Errorf("invalid --device regex: %w", err)
	}

	file, err := configstore.LoadFile(opts.configFile)
	if err != nil {
		return fmt.Errorf("loading %s: %w", opts.configFile, err)
	}
	store := configstore.NewStore()
	if _, err := store.ReplaceFile(file); err != nil {
		return fmt.Errorf("loading %s: %w", opts.configFile, err)
	}

	var discoverers []device.Discoverer
	var bus *device.LogindBus
	if !opts.noHardware {
		bus = device.NewLogindBus("", true)
		bus.SetLogger(log)
		discoverers = append(discoverers,
			&device.DDCDiscoverer{ProbeParams: func(id device.ID) link.Params {
				return link.ParamsFrom(store.EffectiveFor(id).Config)
			}},
			&device.BacklightDiscoverer{Bus: bus},
		)
	}
	if opts.simulate > 0 {
		discoverers = append(discoverers, &device.StaticDiscoverer{
			Label:   "simulated",
			Devices: device.NewSimulatedMonitors(opts.simulate),
		})
	}

	registry := device.NewRegistry(filter, discoverers...)
	registry.SetLogger(log)
	eng := engine.New(store, registry, engine.Options{})
	eng.SetLogger(log)
	defer func() {
		eng.Close()
		if bus != nil {
			_ = bus.Close() //nolint:errcheck // process exiting
		}
	}()

	if err := eng.Rediscover(ctx); err != nil {
		log.Debug("discovery incomplete", "error", err)
	}
	ids := eng.ListDisplays()
	if len(ids) == 0 {
		return engine.ErrNoDisplays
	}

	switch opts.action {
	case actionGet:
		v, err := eng.GetAverage(ctx, ids)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%.0f\n", math.Round(v))
		return nil
	case actionSet:
		return eng.SetAll(ctx, ids, opts.value)
	case actionInc:
		_, err := eng.Adjust(ctx, ids, opts.value)
		return err
	case actionDec:
		_, err := eng.Adjust(ctx, ids, -opts.value)
		return err
	}
	return nil
}
