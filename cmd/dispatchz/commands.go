package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newPluginsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "plugins",
		Short: "Load plugins and list their status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open()
			if err != nil {
				return err
			}
			defer s.Close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tVERSION\tSTATUS")
			for _, info := range s.infos {
				version := "-"
				if info.Manifest != nil && info.Manifest.Version != "" {
					version = info.Manifest.Version
				}
				status := "loaded"
				if !info.Loaded() {
					status = "failed: " + info.Err.Error()
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", info.Name, version, status)
			}
			return w.Flush()
		},
	}
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run <hook> [args...]",
		Short: "Run a hook and print how many callbacks acted",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open()
			if err != nil {
				return err
			}
			defer s.Close()

			count, err := s.engine.Run(args[0], parseArgs(args[1:])...)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), count)
			return nil
		},
	}
}

func newFilterCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "filter <hook> <value> [args...]",
		Short: "Filter a value through a hook and print the result",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open()
			if err != nil {
				return err
			}
			defer s.Close()

			value, err := s.engine.Filter(args[0], parseArg(args[1]), parseArgs(args[2:])...)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "dispatchz version %s\n", version)
			fmt.Fprintf(out, "  commit: %s\n", commit)
			fmt.Fprintf(out, "  built:  %s\n", date)
		},
	}
}

// parseArg turns numeric-looking arguments into int or float64, matching
// what Lua plugins see for numbers. Everything else stays a string.
func parseArg(s string) any {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	// ParseFloat also takes "nan" and "inf"; those stay words.
	if strings.ContainsAny(s, "0123456789") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return s
}

func parseArgs(ss []string) []any {
	if len(ss) == 0 {
		return nil
	}
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = parseArg(s)
	}
	return out
}
