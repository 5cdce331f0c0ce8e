package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"drivercam/alert"
	"drivercam/capture"
	"drivercam/config"
	"drivercam/detection"
	"drivercam/overlay"
	"drivercam/pipeline"
	"drivercam/report"
	"drivercam/statusfeed"
)

var (
	cameraIndex     = flag.Int("camera", 0, "Camera device index (ignored when -input is set)")
	inputPath       = flag.String("input", "", "Video file or stream URL instead of a camera\n\t\tExample: -input drive.mp4")
	configPath      = flag.String("config", "", "JSON tuning file (ear_threshold, alarm_frames, face_lost_policy, model_path, ...)")
	modelPath       = flag.String("model", "", "Face mesh model (ONNX); overrides config and "+config.EnvModel)
	cascadePath     = flag.String("cascade", "", "Haar cascade for the face region; overrides config and "+config.EnvCascade)
	earThreshold    = flag.Float64("ear-threshold", alert.DefaultEARThreshold, "Eye aspect ratio below which the eyes count as closed")
	alarmFrames     = flag.Int("alarm-frames", alert.DefaultAlarmFrames, "Consecutive closed frames that raise the drowsiness alarm")
	faceLost        = flag.String("face-lost", "closed", "How frames without a face count: closed, hold or reset")
	forceCPU        = flag.Bool("cpu", false, "Skip GPU detection and run the landmark model on the CPU")
	headless        = flag.Bool("headless", false, "No display window; log progress to the console instead")
	debugMode       = flag.Bool("debug", false, "Write a session log file under -debug-dir")
	debugDir        = flag.String("debug-dir", "/tmp/drivercam", "Directory for session log files")
	terminalOverlay = flag.Bool("terminal-overlay", false, "Show debug terminal overlay (real-time messages) under the status lines")
	statusAddr      = flag.String("status-addr", "", "Serve the live status websocket on this address, e.g. :8090 (ws://host:8090/ws)")
	reportPlot      = flag.String("report-plot", "", "Write EAR and latency charts for the run to this PNG path")
	traceLimit      = flag.Int("trace-limit", config.DefaultTraceLimit, "Frames kept for -report-plot")
	logEvery        = flag.Int64("log-every", 30, "Headless mode: print a status line every N frames")
)

var globalDebugLogger *DebugLogger

// debugMsg is the global convenience function for unified debug logging
func debugMsg(component, message string, sessionID ...string) {
	if globalDebugLogger != nil {
		globalDebugLogger.debugMsg(component, message, sessionID...)
	} else {
		// Fallback if logger not initialized
		fmt.Printf("[%s][%s] %s\n", time.Now().Format("15:04:05.000"), component, message)
	}
}

func main() {
	flag.Usage = usage
	flag.Parse()
	os.Exit(run())
}

func run() int {
	tuning, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 2
	}
	overrides, err := flagOverrides(setFlags())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 2
	}
	tuning.Merge(overrides)

	sessionID := uuid.NewString()
	globalDebugLogger = NewDebugLogger(*debugMode, *debugDir, sessionID)
	defer globalDebugLogger.Close()

	pipeline.SetDebugFunction(debugMsg)
	detection.SetDebugFunction(debugMsg)
	capture.SetDebugFunction(debugMsg)
	overlay.SetDebugFunction(debugMsg)
	statusfeed.SetDebugFunction(debugMsg)

	debugMsg("SYSTEM", fmt.Sprintf("Session %s starting", sessionID))
	if p := globalDebugLogger.SessionLogPath(); p != "" {
		debugMsg("SYSTEM", fmt.Sprintf("Session log: %s", p))
	}
	acfg := tuning.AlertConfig()
	debugMsg("CONFIG", fmt.Sprintf("EAR threshold %.3f, alarm after %d frames, no face counts as %s",
		acfg.EARThreshold, acfg.AlarmFrames, acfg.FaceLost))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Frame source
	capCfg := capture.DefaultConfig()
	capCfg.Device = *cameraIndex
	capCfg.Path = *inputPath
	src, err := capture.Open(capCfg)
	if err != nil {
		debugMsg("ERROR", err.Error())
		return 1
	}
	defer src.Close()

	// Landmark model
	providers := detection.NewProviderManager()
	if tuning.GetForceCPU() {
		providers.ForceCPU()
	}
	if err := providers.Initialize(tuning.GetModelPath(), tuning.GetCascadePath()); err != nil {
		debugMsg("ERROR", fmt.Sprintf("Landmark model unavailable: %v", err))
		return 1
	}
	defer providers.Close()
	info := providers.GetProviderInfo()
	debugMsg("PROVIDER", fmt.Sprintf("Using %s provider (%s on %s, ~%d FPS, init %v)",
		info.Type, info.Backend, info.Device, info.EstimatedFPS, info.InitTime))
	landmarker := detection.NewLandmarker(providers.GetProvider())

	mon, err := pipeline.NewMonitor(tuning.MonitorConfig(), pipeline.WithSessionID(sessionID))
	if err != nil {
		debugMsg("ERROR", fmt.Sprintf("Invalid monitor configuration: %v", err))
		return 2
	}

	sink := &frameSink{
		renderer:  overlay.NewRenderer(overlay.DefaultLayout()),
		faces:     landmarker,
		logger:    globalDebugLogger,
		terminal:  *terminalOverlay,
		sessionID: mon.SessionID(),
		logEvery:  *logEvery,
	}
	if !*headless {
		sink.window = gocv.NewWindow("DMS")
	}
	defer sink.Close()

	if *statusAddr != "" {
		hub, shutdown, err := startStatusFeed(*statusAddr)
		if err != nil {
			debugMsg("ERROR", fmt.Sprintf("Status feed: %v", err))
			return 1
		}
		defer shutdown()
		sink.feed = hub
	}
	debugMsg("SYSTEM", fmt.Sprintf("Running with %s", sink))

	summary, runErr := pipeline.Run[gocv.Mat](ctx, src, landmarker, sink, mon)

	fmt.Println()
	for _, line := range summary.Lines() {
		fmt.Println(line)
	}
	if sink.feed != nil {
		sink.feed.PublishSummary(summary)
		if n := sink.feed.Dropped(); n > 0 {
			debugMsg("STATUSFEED", fmt.Sprintf("%d status messages dropped for slow clients", n))
		}
	}

	if *reportPlot != "" {
		paths, err := report.WritePlots(*reportPlot, mon.Trace(), mon.Config().Alert.EARThreshold)
		if err != nil {
			debugMsg("ERROR", fmt.Sprintf("Report plot: %v", err))
		} else {
			debugMsg("REPORT", fmt.Sprintf("Wrote %v", paths))
		}
	}

	switch {
	case runErr == nil, errors.Is(runErr, context.Canceled):
		return 0
	default:
		debugMsg("ERROR", fmt.Sprintf("Monitoring stopped: %v", runErr))
		return 1
	}
}

// startStatusFeed serves the websocket hub in the background
func startStatusFeed(addr string) (*statusfeed.Hub, func(), error) {
	hub := statusfeed.NewHub()
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	srv := &http.Server{
		Handler:     hub.Handler(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
	go func() {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			debugMsg("ERROR", fmt.Sprintf("Status feed server: %v", err))
		}
	}()
	debugMsg("STATUSFEED", fmt.Sprintf("WebSocket: ws://%s/ws", lis.Addr()))

	shutdown := func() {
		hub.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			debugMsg("ERROR", fmt.Sprintf("Status feed shutdown: %v", err))
		}
	}
	return hub, shutdown, nil
}

// setFlags returns the names of the flags given on the command line
func setFlags() map[string]bool {
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

// flagOverrides turns explicitly set flags into the highest-priority config layer
func flagOverrides(set map[string]bool) (*config.TuningConfig, error) {
	cfg := config.EmptyTuningConfig()
	if set["ear-threshold"] {
		cfg.EARThreshold = earThreshold
	}
	if set["alarm-frames"] {
		cfg.AlarmFrames = alarmFrames
	}
	if set["face-lost"] {
		cfg.FaceLostPolicy = faceLost
	}
	if set["model"] {
		cfg.ModelPath = modelPath
	}
	if set["cascade"] {
		cfg.CascadePath = cascadePath
	}
	if set["cpu"] {
		cfg.ForceCPU = forceCPU
	}
	if set["trace-limit"] {
		cfg.TraceLimit = traceLimit
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintln(out, "drivercam - driver drowsiness monitor")
	fmt.Fprintln(out, "\nUSAGE EXAMPLES:")
	fmt.Fprintln(out, "  Webcam with display window:")
	fmt.Fprintln(out, "    ./drivercam -camera 0")
	fmt.Fprintln(out, "  Recorded drive, no window, charts at the end:")
	fmt.Fprintln(out, "    ./drivercam -input drive.mp4 -headless -report-plot /tmp/drive.png")
	fmt.Fprintln(out, "  Stricter alarm and a live dashboard feed:")
	fmt.Fprintln(out, "    ./drivercam -alarm-frames 10 -status-addr :8090")
	fmt.Fprintln(out, "\nConfiguration precedence: defaults < -config file < environment (.env) < flags")
	fmt.Fprintln(out, "\nFLAGS:")
	flag.PrintDefaults()
}
