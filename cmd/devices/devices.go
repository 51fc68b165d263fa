package devices

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MLAB-project/pysdr/internal/cpuspec"
	"github.com/MLAB-project/pysdr/internal/errors"
	"github.com/MLAB-project/pysdr/internal/source"
)

// Command creates a command listing the capture devices
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List soundcard and RTL-SDR capture devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			spec := cpuspec.GetCPUSpec()
			fmt.Fprintf(w, "CPU: %s, %d logical cores, features %s\n\n",
				spec.BrandName, spec.LogicalCores, strings.Join(spec.Features, " "))

			cards, err := source.ListCaptureDevices()
			if err != nil {
				return err
			}
			printDevices(w, "Soundcard capture devices", cards)

			dongles, err := source.ListRTLSDRDevices()
			switch {
			case errors.Is(err, source.ErrUnsupported):
				fmt.Fprintln(w, "RTL-SDR support not built in (rebuild with -tags rtlsdr)")
			case err != nil:
				return err
			default:
				printDevices(w, "RTL-SDR devices", dongles)
			}
			return nil
		},
	}
}

func printDevices(w io.Writer, title string, devices []source.DeviceInfo) {
	fmt.Fprintf(w, "%s:\n", title)
	if len(devices) == 0 {
		fmt.Fprintln(w, "  none found")
	}
	for _, d := range devices {
		if d.ID != "" {
			fmt.Fprintf(w, "  %d: %s (%s)\n", d.Index, d.Name, d.ID)
		} else {
			fmt.Fprintf(w, "  %d: %s\n", d.Index, d.Name)
		}
	}
	fmt.Fprintln(w)
}
