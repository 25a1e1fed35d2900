// pkg/version/version.go
// Package version provides version metadata for the application.
package version

import (
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
)

// These variables are typically injected at build time using -ldflags
var (
	// Version holds the current version of vprint.
	Version = "dev"
	// Commit holds the current version commit of vprint.
	Commit = "none"
	// BuildDate holds the build date of vprint.
	BuildDate = "unknown"
	// StartDate holds the process start time.
	StartDate = time.Now()
)

// Struct returns version information in a structured format.
type Struct struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"buildDate"`
}

// Info returns a formatted version string.
func Info() string {
	return fmt.Sprintf("VPrint %s (commit: %s, date: %s)", Version, Commit, BuildDate)
}

// Get returns version information as a Struct.
func Get() Struct {
	return Struct{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
	}
}

// Firmware returns the value advertised as printer-firmware-string-version.
// Development builds report 0.0.0-dev.
func Firmware() string {
	v, err := semver.NewVersion(Version)
	if err != nil {
		return "0.0.0-dev"
	}
	return v.String()
}

// IsRelease reports whether Version is a semantic version without a
// prerelease suffix.
func IsRelease() bool {
	v, err := semver.NewVersion(Version)
	return err == nil && v.Prerelease() == ""
}

// Newer reports whether candidate is a newer release than the running
// version. Prereleases are ignored unless the running build is one.
func Newer(candidate string) (bool, error) {
	next, err := semver.NewVersion(strings.TrimSpace(candidate))
	if err != nil {
		return false, fmt.Errorf("parse candidate version: %w", err)
	}
	current, err := semver.NewVersion(Version)
	if err != nil {
		// dev builds are older than anything
		return true, nil
	}
	if current.Prerelease() == "" && next.Prerelease() != "" {
		return false, nil
	}
	return next.GreaterThan(current), nil
}

// Uptime returns how long the process has been running.
func Uptime() time.Duration {
	return time.Since(StartDate)
}
