package version

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MLAB-project/pysdr/internal/buildinfo"
	"github.com/MLAB-project/pysdr/internal/cpuspec"
)

// Command creates a command printing build and host details
func Command(build *buildinfo.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of pysdr",
		Run: func(cmd *cobra.Command, args []string) {
			spec := cpuspec.GetCPUSpec()
			fmt.Fprintln(cmd.OutOrStdout(), build.String())
			fmt.Fprintf(cmd.OutOrStdout(), "cpu: %s (%s), %d/%d cores, %s\n",
				spec.BrandName, spec.Vendor, spec.PhysicalCores, spec.LogicalCores, strings.Join(spec.Features, " "))
		},
	}
}
