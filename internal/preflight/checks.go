// Package preflight verifies the environment before the daemon starts
// taking work, so misconfiguration surfaces as one readable report
// instead of a mid-job failure.
package preflight

import (
	"fmt"
	"net"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"presswatch/internal/config"
)

// Result is the outcome of one check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Run executes every startup check against the configuration.
func Run(cfg *config.Config) []Result {
	return []Result{
		checkLogDir(cfg),
		checkCatalog(cfg),
		checkAPIBind(cfg),
	}
}

// FirstFailure converts failed results into a single error, or nil
// when everything passed.
func FirstFailure(results []Result) error {
	var failures []string
	for _, result := range results {
		if !result.Passed {
			failures = append(failures, fmt.Sprintf("%s: %s", result.Name, result.Detail))
		}
	}
	if len(failures) == 0 {
		return nil
	}
	return fmt.Errorf("preflight failed: %s", strings.Join(failures, "; "))
}

func checkLogDir(cfg *config.Config) Result {
	result := Result{Name: "log directory"}
	if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
		result.Detail = err.Error()
		return result
	}
	if err := unix.Access(cfg.Paths.LogDir, unix.W_OK); err != nil {
		result.Detail = fmt.Sprintf("%s is not writable: %v", cfg.Paths.LogDir, err)
		return result
	}
	result.Passed = true
	result.Detail = cfg.Paths.LogDir
	return result
}

func checkCatalog(cfg *config.Config) Result {
	result := Result{Name: "paper catalog"}
	info, err := os.Stat(cfg.Paths.CatalogPath)
	if err != nil {
		result.Detail = fmt.Sprintf("%s: %v", cfg.Paths.CatalogPath, err)
		return result
	}
	if info.IsDir() {
		result.Detail = fmt.Sprintf("%s is a directory", cfg.Paths.CatalogPath)
		return result
	}
	if err := unix.Access(cfg.Paths.CatalogPath, unix.R_OK); err != nil {
		result.Detail = fmt.Sprintf("%s is not readable: %v", cfg.Paths.CatalogPath, err)
		return result
	}
	result.Passed = true
	result.Detail = cfg.Paths.CatalogPath
	return result
}

func checkAPIBind(cfg *config.Config) Result {
	result := Result{Name: "api bind address"}
	host, port, err := net.SplitHostPort(cfg.Paths.APIBind)
	if err != nil {
		result.Detail = fmt.Sprintf("%s: %v", cfg.Paths.APIBind, err)
		return result
	}
	if port == "" {
		result.Detail = fmt.Sprintf("%s: missing port", cfg.Paths.APIBind)
		return result
	}
	result.Passed = true
	result.Detail = net.JoinHostPort(host, port)
	return result
}
