// Command teac is the Tea compiler. Its only subcommand, build, runs the
// full compilation pipeline on one .tea source file.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "teac",
		Short:         "teac compiles Tea source files to native executables",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(buildCmd())

	if err := root.Execute(); err != nil {
		if err.Error() != "" {
			os.Stderr.WriteString("teac: " + err.Error() + "\n")
		}
		os.Exit(1)
	}
}
