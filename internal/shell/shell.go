// Package shell runs host commands on behalf of the task commands.
//
// Execution is delegated to magefile/mage's sh helpers so that child output
// streams straight to the terminal and the child's exit status survives as
// part of the returned error (see ExitStatus).
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/magefile/mage/sh"
	"github.com/rs/zerolog/log"
)

// Runner executes host commands.
type Runner interface {
	// Run executes cmd, streaming its stdout/stderr to the terminal.
	Run(ctx context.Context, cmd string, args ...string) error
	// Output executes cmd and returns its trimmed stdout.
	Output(ctx context.Context, cmd string, args ...string) (string, error)
}

// Host runs commands on the local machine.
type Host struct {
	// DryRun prints commands passed to Run instead of executing them.
	// Output always executes since callers depend on its result.
	DryRun bool
	// Stderr receives dry-run lines. Defaults to os.Stderr.
	Stderr io.Writer
}

// NewHost returns a Runner for the local machine.
func NewHost(dryRun bool) *Host {
	return &Host{DryRun: dryRun, Stderr: os.Stderr}
}

// Run executes cmd with args and returns an error carrying the exit status
// when the command fails.
func (h *Host) Run(ctx context.Context, cmd string, args ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	line := Join(cmd, args...)
	if h.DryRun {
		w := h.Stderr
		if w == nil {
			w = os.Stderr
		}
		fmt.Fprintln(w, "+ "+line)
		return nil
	}
	log.Debug().Str("cmd", line).Msg("run")
	return sh.RunV(cmd, args...)
}

// Output executes cmd with args and returns its stdout.
func (h *Host) Output(ctx context.Context, cmd string, args ...string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	log.Debug().Str("cmd", Join(cmd, args...)).Msg("capture")
	return sh.Output(cmd, args...)
}

// ExitStatus returns the exit status carried by err: 0 for nil, the child's
// status for failed commands, 1 for anything else.
func ExitStatus(err error) int {
	var es interface{ ExitStatus() int }
	if errors.As(err, &es) {
		return es.ExitStatus()
	}
	return sh.ExitStatus(err)
}

// Join renders a command line for display.
func Join(cmd string, args ...string) string {
	return strings.TrimSpace(cmd + " " + strings.Join(args, " "))
}
