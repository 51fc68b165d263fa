// Package buildinfo holds build-time metadata injected with -ldflags
package buildinfo

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// UnknownValue is reported for metadata that was not injected at build time
const UnknownValue = "unknown"

// Context contains build-time metadata that is not user-configurable.
// It is created once at startup and should not be part of the configuration system.
type Context struct {
	version   string
	buildDate string
	commit    string
}

// NewContext creates a build context. An empty commit is filled from the module's VCS
// stamp when the binary carries one.
func NewContext(version, buildDate, commit string) *Context {
	if commit == "" {
		commit = vcsRevision()
	}
	return &Context{version: version, buildDate: buildDate, commit: commit}
}

func vcsRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			if len(s.Value) > 12 {
				return s.Value[:12]
			}
			return s.Value
		}
	}
	return ""
}

func orUnknown(v string) string {
	if v == "" {
		return UnknownValue
	}
	return v
}

// Version returns the release tag
func (c *Context) Version() string {
	if c == nil {
		return UnknownValue
	}
	return orUnknown(c.version)
}

// BuildDate returns the time the binary was built
func (c *Context) BuildDate() string {
	if c == nil {
		return UnknownValue
	}
	return orUnknown(c.buildDate)
}

// Commit returns the short VCS revision
func (c *Context) Commit() string {
	if c == nil {
		return UnknownValue
	}
	return orUnknown(c.commit)
}

// String formats the context for the version command and startup log
func (c *Context) String() string {
	return fmt.Sprintf("pysdr %s (%s, built %s) %s %s/%s",
		c.Version(), c.Commit(), c.BuildDate(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
