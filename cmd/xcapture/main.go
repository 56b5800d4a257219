// Command xcapture continuously samples Linux thread activity at a fixed
// frequency, correlates sampled syscalls and block I/O with their later
// completions, and writes the result as hourly-rotating CSV.
//
// Copyright (c) 2024 Javad Rajabzadeh Inc. All rights reserved.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/xcapture/xcapture/pkg/consumer"
	"github.com/xcapture/xcapture/pkg/etsa"
	"github.com/xcapture/xcapture/pkg/iorq"
	"github.com/xcapture/xcapture/pkg/kernel"
	"github.com/xcapture/xcapture/pkg/ktime"
	"github.com/xcapture/xcapture/pkg/report"
	"github.com/xcapture/xcapture/pkg/sampler"
	"github.com/xcapture/xcapture/pkg/stackhash"
	"github.com/xcapture/xcapture/pkg/types"
)

// exit codes
const (
	exitClean            = 0
	exitAttachOrLoad     = 1
	exitInvalidFlagCombo = 2
)

type opts struct {
	frequencyHz   float64
	ticks         int
	all           bool
	pid           int32
	daemonPort    uint16
	kstack        bool
	ustack        bool
	track         []string
	outputDir     string
	narrow        bool
	wide          bool
	columns       []string
	bpfObjectPath string
}

func main() {
	var o opts

	root := &cobra.Command{
		Use:   "xcapture",
		Short: "Continuous Linux thread-activity sampler and event correlator",
		Long: `xcapture walks the kernel task table at a fixed frequency, filters
threads worth recording, and correlates sampled syscalls and block I/O
requests with their later completions. Output is wide CSV suitable for
offline SQL analysis.

* GitHub: https://github.com/xcapture/xcapture`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), o)
		},
		SilenceUsage: true,
	}

	flags := root.Flags()
	flags.Float64VarP(&o.frequencyHz, "frequency", "F", 1.0, "sampling frequency in Hz")
	flags.IntVarP(&o.ticks, "ticks", "i", 0, "exit after N ticks (0 = run until signaled)")
	flags.BoolVarP(&o.all, "all", "a", false, "disable the interest filter (emit all tasks)")
	flags.Int32VarP(&o.pid, "pid", "p", 0, "restrict to a single process (tgid), 0 = no restriction")
	flags.Uint16VarP(&o.daemonPort, "daemon-port", "d", 10000, "daemon-port threshold for the read-family filter")
	flags.BoolVarP(&o.kstack, "kstack", "k", false, "capture kernel stack traces")
	flags.BoolVarP(&o.ustack, "ustack", "u", false, "capture userspace stack traces")
	flags.StringArrayVarP(&o.track, "track", "t", nil, "enable completion tracking: syscall, iorq (repeatable)")
	flags.StringVarP(&o.outputDir, "output-dir", "o", "", "write CSV into this directory instead of stdout")
	flags.BoolVarP(&o.narrow, "narrow", "n", false, "use the narrow column set")
	flags.BoolVarP(&o.wide, "wide", "w", false, "use the wide column set (default)")
	flags.StringArrayVarP(&o.columns, "columns", "g", nil, "use exactly these sample columns (repeatable)")
	flags.StringVar(&o.bpfObjectPath, "bpf-object", "/usr/lib/xcapture/xcapture.bpf.o", "path to the compiled BPF object")

	if err := root.Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeErr carries a specific process exit code alongside an error.
type exitCodeErr struct {
	code int
	err  error
}

func (e *exitCodeErr) Error() string { return e.err.Error() }
func (e *exitCodeErr) Unwrap() error { return e.err }

func exitCodeFor(err error) int {
	var ec *exitCodeErr
	if errors.As(err, &ec) {
		return ec.code
	}
	return exitAttachOrLoad
}

func run(ctx context.Context, o opts) error {
	columns, err := resolveColumns(o)
	if err != nil {
		return &exitCodeErr{code: exitInvalidFlagCombo, err: err}
	}
	if o.frequencyHz <= 0 {
		return &exitCodeErr{code: exitInvalidFlagCombo, err: fmt.Errorf("frequency must be > 0")}
	}

	trackSyscall, trackIORQ, err := resolveTrack(o.track)
	if err != nil {
		return &exitCodeErr{code: exitInvalidFlagCombo, err: err}
	}

	attachment, err := kernel.Attach(kernel.Options{
		ObjectPath:   o.bpfObjectPath,
		TrackSyscall: trackSyscall,
		TrackIORQ:    trackIORQ,
	})
	if err != nil {
		return &exitCodeErr{code: exitAttachOrLoad, err: fmt.Errorf("attach: %w", err)}
	}
	defer attachment.Close()

	taskSource, err := attachment.AttachTaskIterator()
	if err != nil {
		return &exitCodeErr{code: exitAttachOrLoad, err: fmt.Errorf("attach: %w", err)}
	}

	kDepth, uDepth := 0, 0
	if o.kstack {
		kDepth = stackhash.MaxDepth
	}
	if o.ustack {
		uDepth = stackhash.MaxDepth
	}

	smpConfig := sampler.Config{
		ShowAll:             o.all,
		DaemonPortThreshold: o.daemonPort,
		OnlyTGID:            types.TGID(o.pid),
		SelfTID:             types.TID(os.Getpid()),
		KStackDepth:         kDepth,
		UStackDepth:         uDepth,
	}
	smp := sampler.New(taskSource, etsa.NewStore(), iorq.NewStore(), smpConfig, ktime.Now)

	c, err := consumer.New(smp, attachment.Completions(), consumer.Config{
		Frequency: time.Duration(float64(time.Second) / o.frequencyHz),
		Ticks:     o.ticks,
		OutputDir: o.outputDir,
		Columns:   columns,
	})
	if err != nil {
		return &exitCodeErr{code: exitAttachOrLoad, err: err}
	}

	slog.Info("xcapture starting", "frequency_hz", o.frequencyHz, "output_dir", o.outputDir)
	if err := c.Run(ctx); err != nil {
		return &exitCodeErr{code: exitAttachOrLoad, err: err}
	}
	slog.Info("xcapture exiting")
	return nil
}

func resolveColumns(o opts) (report.ColumnMode, error) {
	set := 0
	if o.narrow {
		set++
	}
	if o.wide {
		set++
	}
	if len(o.columns) > 0 {
		set++
	}
	if set > 1 {
		return report.ColumnMode{}, fmt.Errorf("-n, -w, and -g are mutually exclusive")
	}
	switch {
	case o.narrow:
		return report.Narrow(), nil
	case len(o.columns) > 0:
		return report.Custom(o.columns)
	default:
		return report.Wide(), nil
	}
}

func resolveTrack(track []string) (trackSyscall, trackIORQ bool, err error) {
	for _, t := range track {
		switch t {
		case "syscall":
			trackSyscall = true
		case "iorq":
			trackIORQ = true
		default:
			return false, false, fmt.Errorf("unknown -t/--track value %q (want syscall or iorq)", t)
		}
	}
	return trackSyscall, trackIORQ, nil
}
