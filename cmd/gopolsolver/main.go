package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kacperjurak/gopolcore"
	"github.com/kacperjurak/gopolcore/pkg/config"
	"github.com/kacperjurak/gopolcore/pkg/logger"
	"github.com/kacperjurak/gopolcore/pkg/server"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML configuration file")
		file       = flag.String("f", "", "Waveform CSV file")
		skipRows   = flag.Int("skip", -1, "CSV header rows to skip (-1 = use config value)")
		interval   = flag.Float64("dt", 0, "Sample interval in seconds for CSVs without a time column")
		resistance = flag.Float64("r", 0, "Reference resistance in ohms")
		area       = flag.Float64("area", 0, "Cell electrode area in m^2")
		thickness  = flag.Float64("thickness", 0, "Cell thickness in m")
		period     = flag.Float64("period", 0, "Field period in seconds")
		amplitude  = flag.Float64("amp", 0, "Field amplitude in volts (enables viscosity output)")
		serverMode = flag.Bool("server", false, "Start the HTTP analysis server")
		demoMode   = flag.Bool("demo", false, "Analyze a synthetic demo capture")
		refine     = flag.Bool("refine", false, "Enable Gaussian peak refinement")
		quiet      = flag.Bool("q", false, "Quiet mode")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *file != "" {
		cfg.File = *file
	}
	if *skipRows >= 0 {
		cfg.SkipRows = *skipRows
	}
	if *interval > 0 {
		cfg.SampleInterval = *interval
	}
	if *resistance > 0 {
		cfg.Cell.ReferenceResistance = *resistance
	}
	if *area > 0 {
		cfg.Cell.Area = *area
	}
	if *thickness > 0 {
		cfg.Cell.Thickness = *thickness
	}
	if *period > 0 {
		cfg.Cell.FieldPeriod = *period
	}
	if *amplitude > 0 {
		cfg.Cell.FieldAmplitude = *amplitude
	}
	if *refine {
		cfg.Analysis.RefinePeaks = true
	}
	if *quiet {
		cfg.Quiet = true
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	switch {
	case *serverMode:
		runServer(cfg, *configPath, log)
	case *demoMode:
		runDemo(cfg, log)
	case cfg.File != "":
		runFile(cfg, log)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

// runFile analyzes a single CSV capture and prints the results.
func runFile(cfg *config.Config, log *logger.Logger) {
	samples, err := loadCSV(cfg.File, cfg.SkipRows, cfg.SampleInterval)
	if err != nil {
		log.Fatal("loading waveform failed", logger.String("file", cfg.File), logger.Error(err))
	}

	dt := cfg.SampleInterval
	if n := len(samples); n > 1 {
		dt = (samples[n-1].Time - samples[0].Time) / float64(n-1)
	}

	buf, err := gopolcore.NewWaveformBuffer(samples, cfg.Metadata(dt))
	if err != nil {
		log.Fatal("invalid waveform", logger.Error(err))
	}

	log.Info("waveform loaded",
		logger.String("file", cfg.File),
		logger.Int("samples", buf.Len()),
		logger.Float64("sample_interval", dt))

	analyze(buf, cfg, log)
}

// runDemo analyzes a synthetic five-cycle capture.
func runDemo(cfg *config.Config, log *logger.Logger) {
	meta := cfg.Metadata(cfg.SampleInterval)
	samples := int(5 * meta.FieldPeriod / meta.SampleInterval)

	buf, err := gopolcore.SynthWaveform(gopolcore.SynthParams{
		Meta:           meta,
		Samples:        samples,
		PeakCurrent:    1e-5,
		PulseWidth:     meta.FieldPeriod / 50,
		BaselineOffset: 5e-7,
		BaselineSlope:  1e-4,
		NoiseLevel:     2e-7,
		Seed:           time.Now().UnixNano(),
	})
	if err != nil {
		log.Fatal("building demo waveform failed", logger.Error(err))
	}

	log.Info("demo capture generated", logger.Int("samples", buf.Len()))
	analyze(buf, cfg, log)
}

func analyze(buf *gopolcore.WaveformBuffer, cfg *config.Config, log *logger.Logger) {
	pipe := gopolcore.NewAnalysisPipeline(cfg.Analysis)
	cycles := buf.SplitCycles()

	if len(cycles) == 1 {
		res, err := pipe.Analyze(buf)
		if err != nil {
			log.Fatal("analysis failed", logger.Error(err))
		}
		printResult(res)
		return
	}

	agg := pipe.AnalyzeAll(cycles)
	for _, cerr := range agg.Errors {
		log.Warn("cycle failed", logger.Int("cycle", cerr.Cycle), logger.Error(cerr.Err))
	}
	for _, rej := range agg.Rejected {
		log.Warn("cycle rejected",
			logger.Int("cycle", rej.Cycle),
			logger.String("reason", rej.Reason),
			logger.Float64("spontaneous_polarization", rej.Result.SpontaneousPolarization))
	}
	printAggregate(agg)
}

func printResult(res gopolcore.MeasurementResult) {
	fmt.Printf("Spontaneous polarization: %.6e C/m^2\n", res.SpontaneousPolarization)
	fmt.Printf("Switching time:           %.6e s\n", res.SwitchingTime)
	if res.SwitchingTime4060 > 0 {
		fmt.Printf("Switching time (40-60%%):  %.6e s\n", res.SwitchingTime4060)
	}
	fmt.Printf("Peak current density:     %.6e A/m^2\n", res.PeakCurrentDensity)
	if res.RotationalViscosity > 0 {
		fmt.Printf("Rotational viscosity:     %.6e Pa*s\n", res.RotationalViscosity)
	}
	if res.SingleTransition {
		fmt.Println("Note: single transition only, lower confidence")
	}
	for _, p := range res.Peaks {
		flag := ""
		if p.Peak.UnexpectedTiming {
			flag = " [off schedule]"
		}
		fmt.Printf("  peak t=%.6e s, amplitude=%.4e A, charge=%.4e C%s\n",
			p.Peak.PeakTime, p.Peak.PeakAmplitude, p.Charge, flag)
	}
}

func printAggregate(agg gopolcore.AggregateResult) {
	fmt.Printf("Cycles analyzed:          %d (rejected %d, failed %d)\n",
		agg.Count, len(agg.Rejected), len(agg.Errors))
	fmt.Printf("Spontaneous polarization: %.6e +/- %.2e C/m^2\n",
		agg.MeanPolarization, agg.StdDevPolarization)
	fmt.Printf("Switching time:           %.6e +/- %.2e s\n",
		agg.MeanSwitchingTime, agg.StdDevSwitchingTime)
}

// runServer starts the HTTP analysis service and blocks until interrupted.
func runServer(cfg *config.Config, configPath string, log *logger.Logger) {
	srvCfg, err := config.LoadServer(configPath)
	if err != nil {
		log.Fatal("loading server config failed", logger.Error(err))
	}
	srvCfg.EnableProfiling = srvCfg.EnableProfiling || cfg.EnableProfiling

	srv := server.New(server.Options{
		Config:       cfg,
		ServerConfig: srvCfg,
		Logger:       log,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatal("server failed", logger.Error(err))
	case sig := <-sigCh:
		log.Info("signal received", logger.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", logger.Error(err))
	}
}
