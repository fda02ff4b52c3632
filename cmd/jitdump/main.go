// Copyright 2025 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Trace compiler driver.
//   jitdump --func sum_to front/testdata/sum.go
// records the loops of the named function, allocates registers for
// each recorded trace, and prints the annotated listing along with
// the exit stub address each guard would branch to.

package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/s48/tracejit/front"
	"github.com/s48/tracejit/jit"
)

type optionsT struct {
	funcName string
	target   string
	logLevel string
}

func main() {
	opts := optionsT{}
	cmd := &cobra.Command{
		Use:   "jitdump [flags] file.go",
		Short: "Record, allocate and dump the traces of one function",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], &opts)
		},
		SilenceUsage: true,
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.funcName, "func", "", "function whose loops get traced")
	flags.StringVar(&opts.target, "target", "amd64", "target machine (amd64 or arm)")
	flags.StringVar(&opts.logLevel, "log-level", "warning", "log level")
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(fileName string, opts *optionsT) error {
	if opts.funcName == "" {
		return errors.New("--func is required")
	}
	level, err := logrus.ParseLevel(opts.logLevel)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	target, err := jit.ParseTarget(opts.target)
	if err != nil {
		return err
	}
	params, err := jit.ParamsFromEnv()
	if err != nil {
		return err
	}
	traces, err := front.RecordFile(fileName, nil, opts.funcName, params)
	if err != nil {
		return err
	}
	if len(traces) == 0 {
		return errors.Errorf("no loops of %q could be recorded", opts.funcName)
	}
	area := jit.MakeMCodeArea(params)
	defer area.Close()
	// A real system would emit the exit handler first; one reserved
	// byte gives the stubs an address to jump to.
	_, handler, err := area.Reserve(1)
	if err != nil {
		return err
	}
	stubs := jit.MakeExitStubs(target, area, handler)
	for _, trace := range traces {
		alloc, err := jit.AllocateTrace(trace, target)
		if err != nil {
			logrus.WithError(err).WithField("trace", trace.Name).Warn("allocation failed")
			continue
		}
		jit.DumpAllocation(os.Stdout, alloc)
		for _, exit := range alloc.Exits {
			if err := stubs.EnsureGroup(exit.ExitNo); err != nil {
				return err
			}
			fmt.Printf("     exit %d stub %#x\n", exit.ExitNo, stubs.Addr(exit.ExitNo))
		}
		fmt.Printf("\n")
	}
	return nil
}
