// Package daemonctl orchestrates the daemon process from the CLI:
// launching a detached background process, waiting for its socket to
// come up, and stopping it by PID.
package daemonctl

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"presswatch/internal/ipc"
)

// ErrNotRunning indicates the daemon socket is unreachable.
var ErrNotRunning = errors.New("daemon not running")

// LaunchOptions carries flags forwarded to the spawned daemon process.
type LaunchOptions struct {
	ConfigPath string
}

// StartResult reports what EnsureStarted had to do.
type StartResult struct {
	Launched       bool
	AlreadyRunning bool
	PID            int
}

// StopResult reports the process that was asked to stop.
type StopResult struct {
	PID int
}

// Launch spawns a detached daemon process running `<executable> daemon`.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return errors.New("launch daemon: executable path is empty")
	}

	args := []string{"daemon"}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}

	proc := exec.Command(executablePath, args...)
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// WaitForClient polls the socket until a client connects or the
// timeout elapses.
func WaitForClient(socketPath string, timeout time.Duration) (*ipc.Client, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		client, err := ipc.Dial(socketPath)
		if err == nil {
			return client, nil
		}
		lastErr = err
		time.Sleep(200 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = errors.New("timeout waiting for daemon")
	}
	return nil, fmt.Errorf("daemon failed to start: %w", lastErr)
}

// EnsureStarted connects to a running daemon or launches one and waits
// for it to come up.
func EnsureStarted(socketPath, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	client, err := ipc.Dial(socketPath)
	if err == nil {
		defer client.Close()
		status, statusErr := client.Status()
		if statusErr != nil {
			return StartResult{}, statusErr
		}
		return StartResult{AlreadyRunning: true, PID: status.PID}, nil
	}
	if !isUnavailable(err) {
		return StartResult{}, err
	}

	if launchErr := Launch(executablePath, opts); launchErr != nil {
		return StartResult{}, launchErr
	}
	client, err = WaitForClient(socketPath, waitTimeout)
	if err != nil {
		return StartResult{}, err
	}
	defer client.Close()
	status, statusErr := client.Status()
	if statusErr != nil {
		return StartResult{Launched: true}, nil
	}
	return StartResult{Launched: true, PID: status.PID}, nil
}

// Stop asks a running daemon to exit by sending SIGTERM to its PID and
// waits up to gracePeriod for the socket to disappear.
func Stop(socketPath string, gracePeriod time.Duration) (StopResult, error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if isUnavailable(err) {
			return StopResult{}, ErrNotRunning
		}
		return StopResult{}, err
	}
	status, statusErr := client.Status()
	_ = client.Close()
	if statusErr != nil {
		return StopResult{}, fmt.Errorf("query daemon status: %w", statusErr)
	}
	if status.PID <= 0 {
		return StopResult{}, errors.New("daemon did not report a pid")
	}
	if status.PID == os.Getpid() {
		return StopResult{}, fmt.Errorf("refusing to stop current process (pid %d)", status.PID)
	}

	if err := syscall.Kill(status.PID, syscall.SIGTERM); err != nil {
		return StopResult{}, fmt.Errorf("signal daemon process %d: %w", status.PID, err)
	}
	if err := WaitForShutdown(socketPath, gracePeriod); err != nil {
		return StopResult{PID: status.PID}, err
	}
	return StopResult{PID: status.PID}, nil
}

// WaitForShutdown waits for the daemon socket to stop answering.
func WaitForShutdown(socketPath string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		client, err := ipc.Dial(socketPath)
		if err != nil {
			if isUnavailable(err) {
				return nil
			}
			time.Sleep(200 * time.Millisecond)
			continue
		}
		_ = client.Close()
		time.Sleep(200 * time.Millisecond)
	}
	return errors.New("daemon did not stop in time")
}

func isUnavailable(err error) bool {
	return os.IsNotExist(err) ||
		errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, syscall.ENOENT) ||
		errors.Is(err, syscall.ECONNREFUSED)
}
