// SPDX-License-Identifier: MIT
//
// Package build exposes build metadata embedded at link time, for example:
//
//	go build -ldflags "-X chladni/pkg/build.buildVersion=0.2.0 \
//	  -X chladni/pkg/build.buildCommit=$(git rev-parse --short HEAD) \
//	  -X chladni/pkg/build.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// Development builds carry no ldflags; Initialize reports what is missing
// and the defaults below stay in place.
package build

import (
	"errors"
	"fmt"
)

// Info is the metadata shown by the CLI (--version, help header).
type Info struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// String formats Info the way the version banner prints it.
func (i Info) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", i.Name, i.Version, i.Commit, i.Time)
}

// Populated by -ldflags.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
)

var info = &Info{
	Name:        "chladni",
	Description: "Live audio rendered as the nodal lines of a vibrating circular plate",
	Time:        "unknown",
	Commit:      "unknown",
	Version:     "dev",
}

// Initialize copies the ldflags variables into Info. Every flag that was
// set is applied; the returned error joins one entry per missing flag so
// callers can decide whether a development build is acceptable.
func Initialize() error {
	var errs []error
	apply := func(dst *string, val, flag string) {
		if val == "" {
			errs = append(errs, fmt.Errorf("%s is required", flag))
			return
		}
		*dst = val
	}

	apply(&info.Name, buildName, "BuildName")
	apply(&info.Time, buildTime, "BuildTime")
	apply(&info.Commit, buildCommit, "BuildCommit")
	apply(&info.Version, buildVersion, "BuildVersion")

	return errors.Join(errs...)
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *Info {
	return info
}
