package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"tea/internal/driver"
)

// emitFlag is a pflag.Value restricting --emit to the modes the driver
// understands, rejecting anything else at flag-parse time.
type emitFlag struct {
	mode driver.Emit
}

var _ pflag.Value = (*emitFlag)(nil)

func (e *emitFlag) String() string {
	switch e.mode {
	case driver.EmitIR:
		return "ir"
	case driver.EmitObject:
		return "obj"
	default:
		return ""
	}
}

func (e *emitFlag) Set(s string) error {
	switch s {
	case "ir":
		e.mode = driver.EmitIR
	case "obj":
		e.mode = driver.EmitObject
	default:
		return fmt.Errorf("unknown emit mode %q (want ir or obj)", s)
	}
	return nil
}

func (e *emitFlag) Type() string { return "ir|obj" }

// buildCmd is `teac build <file>`: compile one Tea module to an
// executable at bin/<module>, or stop early per --emit.
func buildCmd() *cobra.Command {
	var (
		out     string
		emit    emitFlag
		verbose bool
	)
	cmd := &cobra.Command{
		Use:   "build <file>",
		Short: "Compile a Tea source file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return driver.Run(driver.Options{
				Src:     args[0],
				Out:     out,
				Emit:    emit.mode,
				Verbose: verbose,
			})
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output path (default bin/<module>)")
	cmd.Flags().Var(&emit, "emit", "stop early: print ir to stdout or write an obj file")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "report pipeline stages and timings")
	return cmd
}
