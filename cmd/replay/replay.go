package replay

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MLAB-project/pysdr/internal/analysis"
	"github.com/MLAB-project/pysdr/internal/conf"
)

// Command creates the headless replay command
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay [input]",
		Short: "Process an input to its end without a display",
		Long:  "Run the detectors over a recording, print the finalized events and write the waterfall snapshot.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				settings.Input.Path = args[0]
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			res, err := analysis.Replay(ctx, settings)
			if res != nil {
				printResult(cmd.OutOrStdout(), res)
			}
			return err
		},
	}

	if err := setupFlags(cmd); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the replay command
func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().StringP("snapshot", "o", viper.GetString("display.snapshot"), "PNG file for the final canvas, empty to skip")

	if err := viper.BindPFlag("display.snapshot", cmd.Flags().Lookup("snapshot")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)

func printResult(w io.Writer, res *analysis.ReplayResult) {
	fmt.Fprintf(w, "%s: %d rows, %d dropped, %d events\n", res.Source, res.Rows, res.Dropped, len(res.Events))
	if len(res.Events) > 0 {
		rows := make([][]string, 0, len(res.Events))
		for _, ev := range res.Events {
			begin, end := res.Clock.Span(ev)
			rows = append(rows, []string{
				ev.Identity,
				begin.Format(time.RFC3339Nano),
				strconv.FormatFloat(end.Sub(begin).Seconds(), 'f', 2, 64),
				fmt.Sprintf("%.1f .. %.1f", res.Bin2Freq(ev.BinLo), res.Bin2Freq(ev.BinHi)),
				ev.Description,
			})
		}
		t := table.New().
			Border(lipgloss.NormalBorder()).
			StyleFunc(func(row, _ int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}
				return lipgloss.NewStyle().Padding(0, 1)
			}).
			Headers("identity", "begin", "seconds", "frequency Hz", "description").
			Rows(rows...)
		fmt.Fprintln(w, t.Render())
	}
	if res.Snapshot != "" {
		fmt.Fprintf(w, "waterfall written to %s\n", res.Snapshot)
	}
}
