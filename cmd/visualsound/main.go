package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/guidoenr/visualsound/internal/app"
	"github.com/guidoenr/visualsound/internal/audio"
	"github.com/guidoenr/visualsound/internal/params"
	"github.com/guidoenr/visualsound/internal/render"
	"github.com/guidoenr/visualsound/internal/settings"
	"github.com/guidoenr/visualsound/internal/web"
)

func main() {
	var (
		configPath = flag.String("config", "visualsound.yaml", "Settings file (created on first save)")
		input      = flag.String("input", "", "Audio input: pa:<name>, file:<path.wav>, synth[:hz] or null")
		output     = flag.String("output", "", "Audio output: pa:<name>, oto or null")
		driver     = flag.String("display", "", "Display links, comma separated (file|terminal|sdl|web|null)")
		device     = flag.String("device", "", "Device node or capture file for the file link")
		fps        = flag.Int("fps", 0, "Maximum frames per second")
		webAddr    = flag.String("web", "", "Web control address, e.g. :8080 (empty uses the settings file)")
		scene      = flag.String("scene", "", fmt.Sprintf("Initial scene (%v)", render.Names()))
		analysis   = flag.String("analysis", "", fmt.Sprintf("Analysis preset (%v)", params.PresetNames()))
		profile    = flag.String("profile", "", "Append per-frame timings to this CSV file")
		listDevs   = flag.Bool("list-audio-devices", false, "List available audio devices and exit")
		debug      = flag.Bool("debug", false, "Enable verbose logging")
		logJSON    = flag.Bool("log-json", false, "Log as JSON")
	)

	flag.Parse()

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	if *debug {
		logger.SetLevel(logrus.DebugLevel)
	}
	if *logJSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if err := audio.Initialize(); err != nil {
		logger.WithError(err).Warn("portaudio unavailable, only file, synth, oto and null devices work")
	} else {
		defer audio.Terminate()
	}

	set, err := settings.Load(*configPath)
	if err != nil {
		logger.WithError(err).Fatal("load settings")
	}
	if *listDevs {
		listDevices(logger, audio.Format{SampleRate: set.Audio.SampleRate, Channels: set.Audio.Channels})
		return
	}
	if *input != "" {
		set.Audio.Input = *input
	}
	if *output != "" {
		set.Audio.Output = *output
	}
	if *driver != "" {
		set.Video.Driver = *driver
	}
	if *device != "" {
		set.Video.Device = *device
	}
	if *fps > 0 {
		set.Video.MaxFPS = *fps
	}
	if *webAddr != "" {
		set.Web.Addr = *webAddr
	}
	if *analysis != "" {
		set.Visualizer.Analysis = *analysis
	}
	if *scene != "" {
		i, err := render.Index(*scene)
		if err != nil {
			logger.WithError(err).Fatal("invalid scene")
		}
		set.Visualizer.Default = i
	}
	if slices.Contains(set.Video.Drivers(), "terminal") && !term.IsTerminal(int(os.Stdout.Fd())) {
		logger.Warn("terminal display selected but stdout is not a terminal")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var srv *web.Server
	if set.Web.Addr != "" {
		srv = web.NewServer(web.Config{Addr: set.Web.Addr, Log: logger})
		if err := srv.Start(); err != nil {
			logger.WithError(err).Fatal("start web server")
		}
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Warn("web server shutdown")
			}
		}()
	}

	a, err := app.New(app.Config{
		Settings:     *set,
		SettingsPath: *configPath,
		Web:          srv,
		ProfilePath:  *profile,
		Log:          logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create app")
	}
	defer func() {
		if err := a.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "cleanup error: %v\n", err)
		}
	}()

	if err := a.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "\nExiting...")
			return
		}
		_ = a.Close()
		logger.WithError(err).Fatal("runtime error")
	}
}

func listDevices(logger *logrus.Logger, format audio.Format) {
	devices, err := audio.ListDevices()
	if err != nil {
		logger.WithError(err).Fatal("list devices")
	}
	section := func(title string, input bool) {
		fmt.Printf("\n=== %s ===\n\n", title)
		for _, dev := range devices {
			if (input && !dev.CanCapture()) || (!input && !dev.CanPlay()) {
				continue
			}
			markers := ""
			if (input && dev.DefaultInput) || (!input && dev.DefaultOutput) {
				markers += " (default)"
			}
			if !dev.Supports(format, input) {
				markers += fmt.Sprintf(" (fewer than %d channels)", format.Channels)
			}
			fmt.Printf("- %s [%s]%s\n    id:%q inputs:%d outputs:%d sample:%d Hz latency:%s\n",
				dev.Name, dev.HostAPI, markers, dev.ID(), dev.Inputs, dev.Outputs, dev.SampleRate, dev.Latency)
		}
	}
	section("Audio Inputs", true)
	section("Audio Outputs", false)
	if dev, err := audio.AutoDetectDevice(); err == nil && dev != nil {
		fmt.Printf("\nAuto-detected input: %s (%.0f Hz, %d channels, latency %s)\n",
			dev.Name, dev.DefaultSampleRate, dev.MaxInputChannels, audio.DeviceLatency(dev))
	}
}
