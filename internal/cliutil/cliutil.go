// Package cliutil gives the cmd/ tools a uniform exit-code and error
// convention: usage errors exit 2, runtime errors exit 1, success exits 0,
// and every failure prints a single "error: <message>" line to stderr.
package cliutil

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// UsageError marks an error as a usage mistake (bad flags, bad arg count)
// rather than a runtime failure, so Run can map it to exit code 2.
type UsageError struct{ Err error }

func (e *UsageError) Error() string { return e.Err.Error() }
func (e *UsageError) Unwrap() error { return e.Err }

// Usagef builds a UsageError from a formatted message.
func Usagef(format string, args ...any) error {
	return &UsageError{Err: fmt.Errorf(format, args...)}
}

// Run executes cmd. On failure it prints the error to stderr and exits the
// process with the appropriate code; on success it returns normally.
// Flag parsing errors are treated as usage errors.
func Run(cmd *cobra.Command) {
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &UsageError{Err: err}
	})

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)

		var usageErr *UsageError
		if errors.As(err, &usageErr) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
