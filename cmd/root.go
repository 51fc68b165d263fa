package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MLAB-project/pysdr/cmd/config"
	"github.com/MLAB-project/pysdr/cmd/devices"
	"github.com/MLAB-project/pysdr/cmd/replay"
	"github.com/MLAB-project/pysdr/cmd/version"
	"github.com/MLAB-project/pysdr/cmd/waterfall"
	"github.com/MLAB-project/pysdr/internal/buildinfo"
	"github.com/MLAB-project/pysdr/internal/conf"
	"github.com/MLAB-project/pysdr/internal/logger"
	"github.com/MLAB-project/pysdr/internal/telemetry"
)

// flagKeys maps global flags to their configuration keys
var flagKeys = map[string]string{
	"input":      "input.kind",
	"path":       "input.path",
	"samplerate": "input.samplerate",
	"device":     "input.device",
	"bins":       "spectral.bins",
	"overlap":    "spectral.overlap",
	"maglo":      "display.maglo",
	"maghi":      "display.maghi",
	"web":        "webserver.enabled",
	"listen":     "webserver.listen",
}

// RootCommand creates and returns the root command
func RootCommand(build *buildinfo.Context) *cobra.Command {
	settings := &conf.Settings{}

	rootCmd := &cobra.Command{
		Use:           "pysdr",
		Short:         "Scrolling SDR waterfall with event detection",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var configFile string
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to the configuration file")
	if err := setupFlags(rootCmd); err != nil {
		panic(err)
	}

	waterfallCmd := waterfall.Command(settings)
	replayCmd := replay.Command(settings)
	devicesCmd := devices.Command()
	configCmd := config.Command(settings)
	versionCmd := version.Command(build)

	rootCmd.AddCommand(waterfallCmd, replayCmd, devicesCmd, configCmd, versionCmd)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// Device listing and version reporting run without a configuration
		if cmd.Name() == versionCmd.Name() || cmd.Name() == devicesCmd.Name() {
			return nil
		}
		if configFile != "" {
			viper.SetConfigFile(configFile)
		}
		return initialize(cmd, settings, build)
	}
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		telemetry.Flush()
		_ = logger.Global().Flush()
	}

	return rootCmd
}

// initialize loads the configuration and sets up logging and telemetry before a
// subcommand runs
func initialize(cmd *cobra.Command, settings *conf.Settings, build *buildinfo.Context) error {
	loaded, err := conf.Load()
	if err != nil {
		return err
	}
	*settings = *loaded

	// The terminal UI owns the screen; log to the file only
	if cmd.Annotations[waterfall.AnnotationConsole] == "off" {
		console := logger.ConsoleOutput{}
		if settings.Logging.Console != nil {
			console = *settings.Logging.Console
		}
		console.Enabled = false
		settings.Logging.Console = &console
	}

	cl, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(cl)

	if err := telemetry.InitSentry(settings, build); err != nil {
		logger.Global().Module("main").Warn("sentry initialization failed", logger.Error(err))
	}

	logger.Global().Module("main").Info("starting",
		logger.String("command", cmd.Name()),
		logger.String("version", build.Version()),
		logger.String("input", settings.Input.Kind))
	return nil
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command) error {
	flags := rootCmd.PersistentFlags()
	flags.String("input", viper.GetString("input.kind"), "Sample input: raw, wav, soundcard, rtlsdr or synthetic")
	flags.StringP("path", "i", viper.GetString("input.path"), "Raw or WAV input file, \"-\" reads stdin")
	flags.IntP("samplerate", "r", viper.GetInt("input.samplerate"), "Sample rate in Hz; required for raw input")
	flags.String("device", viper.GetString("input.device"), "Capture device name for soundcard input")
	flags.Int("bins", viper.GetInt("spectral.bins"), "FFT length")
	flags.Float64("overlap", viper.GetFloat64("spectral.overlap"), "Fraction of each window shared with the next")
	flags.Float64("maglo", viper.GetFloat64("display.maglo"), "Magnitude mapped to the bottom of the colour scale, dB")
	flags.Float64("maghi", viper.GetFloat64("display.maghi"), "Magnitude mapped to the top of the colour scale, dB")
	flags.Bool("web", viper.GetBool("webserver.enabled"), "Serve the HTTP status API")
	flags.String("listen", viper.GetString("webserver.listen"), "Listen address of the HTTP status API")

	for name, key := range flagKeys {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", name, err)
		}
	}
	return nil
}
