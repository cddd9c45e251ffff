package vdd

import (
	"context"
	"log"
	"os/exec"
	"time"
)

// CommandRunner runs one virtual-display-manager invocation for action
// ("enable", "disable", or "toggle"). SubprocessService retries through
// it with exponential backoff, mirroring execute_vdd_command.
type CommandRunner interface {
	Run(ctx context.Context, action string) error
}

// ScriptRunner shells out to the original's virtual-driver-manager.ps1
// helper, grounded on the teacher's own exec.Command use in
// helpers.go's openFileOrDir/doRestart.
type ScriptRunner struct {
	Interpreter string // "powershell.exe" in the original
	ScriptPath  string
	ExtraArgs   []string
}

// Run invokes the script as "<interpreter> <extraArgs...> <scriptPath>
// <action> --silent true", the original's exact argument order.
func (r *ScriptRunner) Run(ctx context.Context, action string) error {
	args := make([]string, 0, len(r.ExtraArgs)+4)
	args = append(args, r.ExtraArgs...)
	args = append(args, r.ScriptPath, action, "--silent", "true")
	cmd := exec.CommandContext(ctx, r.Interpreter, args...)
	return cmd.Run()
}

const (
	maxRetryCount     = 3
	initialRetryDelay = 100 * time.Millisecond
	maxRetryDelay     = 2 * time.Second
)

// SubprocessService drives a CommandRunner through the enable/disable/
// toggle verbs and an optional PipeClient for reload (SPEC_FULL.md
// §L.5).
type SubprocessService struct {
	Runner CommandRunner
	Pipe   PipeClient // optional; Reload fails without one
}

func (s *SubprocessService) Enable(ctx context.Context) error  { return s.runWithBackoff(ctx, "enable") }
func (s *SubprocessService) Disable(ctx context.Context) error { return s.runWithBackoff(ctx, "disable") }
func (s *SubprocessService) Toggle(ctx context.Context) error  { return s.runWithBackoff(ctx, "toggle") }

// Reload implements reload_driver: a single RELOAD_DRIVER pipe command,
// no retry (the original retries only the subprocess verbs).
func (s *SubprocessService) Reload(ctx context.Context) error {
	if s.Pipe == nil {
		return errNoPipe
	}
	_, err := s.Pipe.RequestResponse(ctx, "RELOAD_DRIVER")
	return err
}

// runWithBackoff implements calculate_exponential_backoff's retry loop:
// up to maxRetryCount attempts, delay doubling from initialRetryDelay up
// to maxRetryDelay between attempts.
func (s *SubprocessService) runWithBackoff(ctx context.Context, action string) error {
	delay := initialRetryDelay
	var lastErr error
	for attempt := 0; attempt < maxRetryCount; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= 2
			if delay > maxRetryDelay {
				delay = maxRetryDelay
			}
		}
		if err := s.Runner.Run(ctx, action); err == nil {
			return nil
		} else {
			lastErr = err
			log.Printf("vdd: %s command failed (attempt %d/%d): %v", action, attempt+1, maxRetryCount, err)
		}
	}
	return lastErr
}

var errNoPipe = vddError("vdd: no pipe client configured for reload")

type vddError string

func (e vddError) Error() string { return string(e) }
