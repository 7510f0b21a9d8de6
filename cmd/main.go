package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"gioui.org/app"
	"github.com/edaniels/golog"

	"hvcalibrate"
	"hvcalibrate/config"
	"hvcalibrate/device"
	"hvcalibrate/device/sim"
	"hvcalibrate/reference"
	"hvcalibrate/reference/agilent"
	"hvcalibrate/reference/dialog"
	"hvcalibrate/report"
	"hvcalibrate/types"
)

// outputs 报告输出路径
type outputs struct {
	json, readings, fitted, plot, html, serve string
}

func main() {
	cfgPath := flag.String("config", "", "YAML config file overriding the built-in defaults")
	envPath := flag.String("env", ".env", "dotenv file with "+config.EnvOscopeAddress+" / "+config.EnvSettle)
	refKind := flag.String("ref", "agilent", "reference voltmeter: agilent, manual (terminal), dialog (window) or sim")
	address := flag.String("address", "", "VISA resource address of the oscilloscope (default: first instrument found)")
	freqStr := flag.String("freqs", "", "comma-separated sweep frequencies in Hz, e.g. 100,1000,10000")
	dryRun := flag.Bool("dry-run", false, "sweep and fit without writing the calibration back")
	verbose := flag.Bool("v", false, "debug logging")
	var out outputs
	flag.StringVar(&out.json, "json", "", "write the run record as JSON")
	flag.StringVar(&out.readings, "readings-csv", "", "write the readings table as CSV")
	flag.StringVar(&out.fitted, "fitted-csv", "", "write the fitted parameters as CSV")
	flag.StringVar(&out.plot, "plot", "", "save the attenuation plot (.svg, .png or .pdf)")
	flag.StringVar(&out.html, "html", "", "write the interactive chart page")
	flag.StringVar(&out.serve, "serve", "", "serve the chart page on this address after the run, e.g. :8080")
	flag.Parse()

	logger := golog.NewLogger("hvcalibrate")
	if *verbose {
		logger = golog.NewDevelopmentLogger("hvcalibrate")
	}

	cfg, err := config.Load(*cfgPath, *envPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(2)
	}
	if *address != "" {
		cfg.Oscope.Address = *address
	}
	cfg.DryRun = cfg.DryRun || *dryRun
	freqs, err := parseFrequencies(*freqStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		flag.Usage()
		os.Exit(2)
	}

	// 控制板驱动由外部提供，这里使用模拟控制板
	board := sim.New(sim.DefaultConfig())

	run := func() int {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		ref, closeRef, err := openReference(*refKind, cfg, board)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		defer closeRef()
		return calibrate(ctx, board, ref, cfg, freqs, out, logger)
	}

	if *refKind != "dialog" {
		os.Exit(run())
	}
	// gioui 窗口事件必须在主 goroutine 处理
	go func() { os.Exit(run()) }()
	app.Main()
}

func parseFrequencies(s string) ([]float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var freqs []float64
	for _, part := range strings.Split(s, ",") {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("parsing frequency %q: %w", part, err)
		}
		freqs = append(freqs, f)
	}
	return freqs, nil
}

func openReference(kind string, cfg config.Config, board *sim.Board) (reference.Reader, func(), error) {
	switch kind {
	case "agilent":
		scope, err := agilent.Open(cfg.Oscope.Address, cfg.Oscope.Settle)
		if err != nil {
			return nil, nil, err
		}
		return scope, func() { scope.Close() }, nil
	case "manual":
		return reference.NewManual(reference.NewTerminal(os.Stdin, os.Stderr)), func() {}, nil
	case "dialog":
		return reference.NewManual(dialog.New("HV reference reading")), func() {}, nil
	case "sim":
		return &sim.Scope{Board: board, Noise: 0.001}, func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown reference %q", kind)
}

func calibrate(ctx context.Context, board device.Board, ref reference.Reader, cfg config.Config, freqs []float64, out outputs, logger golog.Logger) int {
	c := hvcalibrate.New(board, ref, cfg, logger)
	c.OnCondition = func(done, total int, r types.ConditionResult) {
		fmt.Fprintf(os.Stderr, "[%d/%d] %s: index %d, board %.4g V, reference %.4g V\n",
			done, total, r.Condition(), r.ActuationIndex, r.BoardVoltage, r.ReferenceVoltage)
	}
	res, err := c.Run(ctx, freqs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "calibration failed: %v\n", err)
		return 1
	}

	fmt.Printf("run %s\n", res.RunID)
	for _, p := range res.Fitted {
		fmt.Printf("  %s: R %.6g -> %.6g ohm, C %.6g -> %.6g F\n", p.Resistor,
			p.OriginalResistance, p.FittedResistance, p.OriginalCapacitance, p.FittedCapacitance)
	}
	if !res.Applied {
		fmt.Println("calibration not written")
	}

	rec := res.Record()
	if err := writeReports(rec, cfg.Fit.R1, out); err != nil {
		fmt.Fprintf(os.Stderr, "error writing report: %v\n", err)
		return 1
	}
	if out.serve != "" {
		charts := &report.Charts{Record: *rec, R1: cfg.Fit.R1}
		fmt.Fprintf(os.Stderr, "serving charts on %s\n", out.serve)
		if err := http.ListenAndServe(out.serve, http.HandlerFunc(charts.Handler)); err != nil {
			fmt.Fprintf(os.Stderr, "error serving charts: %v\n", err)
			return 1
		}
	}
	if res.FitErr != nil {
		fmt.Fprintf(os.Stderr, "fit failed: %v\n", res.FitErr)
		return 1
	}
	return 0
}

func writeReports(rec *report.Record, r1 float64, out outputs) error {
	files := []struct {
		path   string
		render func(*os.File) error
	}{
		{out.json, func(f *os.File) error { return rec.Render(f) }},
		{out.readings, func(f *os.File) error { return rec.ReadingsCSV(f) }},
		{out.fitted, func(f *os.File) error { return rec.FittedCSV(f) }},
		{out.html, func(f *os.File) error { return (&report.Charts{Record: *rec, R1: r1}).Render(f) }},
	}
	for _, file := range files {
		if file.path == "" {
			continue
		}
		f, err := os.Create(file.path)
		if err != nil {
			return err
		}
		err = file.render(f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("%s: %w", file.path, err)
		}
	}
	if out.plot != "" {
		return report.SaveAttenuation(out.plot, rec, r1)
	}
	return nil
}
