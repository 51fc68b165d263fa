package waterfall

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MLAB-project/pysdr/internal/analysis"
	"github.com/MLAB-project/pysdr/internal/conf"
	"github.com/MLAB-project/pysdr/internal/tui"
)

// AnnotationConsole marks commands that own the terminal and must not log to it
const AnnotationConsole = "pysdr/console"

// Command creates the live waterfall command
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:         "waterfall",
		Short:       "Show the live waterfall in the terminal",
		Long:        "Read samples from the configured input and display a scrolling waterfall with detector markers and plots.",
		Annotations: map[string]string{AnnotationConsole: "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var opts []tea.ProgramOption
			if settings.ReadsStdin() || settings.SysExReadsStdin() {
				// samples or frames arrive on stdin; read keys from the terminal
				opts = append(opts, tea.WithInputTTY())
			}
			return analysis.Live(ctx, settings, tui.Render(settings.Display.FPS, opts...))
		},
	}

	if err := setupFlags(cmd); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the waterfall command
func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().Int("fps", viper.GetInt("display.fps"), "Redraw rate of the terminal display")
	cmd.Flags().Float64("height", viper.GetFloat64("display.heightseconds"), "Seconds of history kept on the canvas")

	if err := viper.BindPFlag("display.fps", cmd.Flags().Lookup("fps")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	if err := viper.BindPFlag("display.heightseconds", cmd.Flags().Lookup("height")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}
