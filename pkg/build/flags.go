// SPDX-License-Identifier: MIT
//
// Package build holds metadata embedded into the listener binary at compile
// time with linker flags:
//
//	go build -ldflags "-X listener/pkg/build.buildName=listener \
//	    -X listener/pkg/build.buildVersion=0.3.0 ..."
//
// Development builds run without the flags; Initialize reports what is
// missing and the "unknown" defaults stay in place.
package build

import (
	"errors"
	"fmt"
)

type ldFlags struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// Package-level variables for build information. These are populated by -ldflags
// during compilation. Default values of "unknown" are used during development.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = defaultFlags()
)

func defaultFlags() *ldFlags {
	return &ldFlags{
		Name:        "listener",
		Description: "Real-time musical descriptors (bands, onsets, tempo, phrase) over OSC, WebSocket and UDP",
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "unknown",
	}
}

// Initialize validates and copies build information from ldflags variables
// into the buildFlags struct. Present values are always copied; the returned
// error joins one entry per missing flag.
func Initialize() error {
	var errs []error
	if buildName == "" {
		errs = append(errs, fmt.Errorf("BuildName is required"))
	} else {
		buildFlags.Name = buildName
	}
	if buildTime == "" {
		errs = append(errs, fmt.Errorf("BuildTime is required"))
	} else {
		buildFlags.Time = buildTime
	}
	if buildCommit == "" {
		errs = append(errs, fmt.Errorf("BuildCommit is required"))
	} else {
		buildFlags.Commit = buildCommit
	}
	if buildVersion == "" {
		errs = append(errs, fmt.Errorf("BuildVersion is required"))
	} else {
		buildFlags.Version = buildVersion
	}
	return errors.Join(errs...)
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *ldFlags {
	return buildFlags
}

// String renders the build for version output and the WebSocket hello.
func (f *ldFlags) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", f.Name, f.Version, f.Commit, f.Time)
}
