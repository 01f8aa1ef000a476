package catalog

import (
	"fmt"
	"strings"
)

// LoadError is fatal: a process must not serve traffic with a catalog that
// failed to load.
type LoadError struct {
	Source   string
	Problems []string
}

func (e *LoadError) Error() string {
	src := e.Source
	if src == "" {
		src = "<inline>"
	}
	return fmt.Sprintf("failed to load error catalog %s: %s", src, strings.Join(e.Problems, "; "))
}

// UnknownIDError reports a lookup miss. It is never fatal; callers degrade to
// the GENERAL-000 definition.
type UnknownIDError struct {
	ID string
}

func (e *UnknownIDError) Error() string {
	return fmt.Sprintf("unknown error id %q", e.ID)
}
