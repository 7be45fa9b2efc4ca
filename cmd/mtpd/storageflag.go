package main

import (
	"fmt"
	"strings"
)

// storageSpec is one -storage flag occurrence: name=path, optionally
// suffixed :ro to mark the volume AccessCapability read-only-no-deletion.
// Mirrors original_source/src/main.cpp's four hardcoded storage
// registrations (one ReadWrite removable volume, three ReadOnlyNoDeletion
// fixed ones), made configurable instead of compiled in.
type storageSpec struct {
	name     string
	path     string
	readOnly bool
}

// storageSpecs accumulates every -storage flag occurrence, implementing
// flag.Value the way the teacher's own flags are all scalar but this
// repeatable one needs a slice behind it.
type storageSpecs []storageSpec

func (s *storageSpecs) String() string {
	if s == nil {
		return ""
	}
	parts := make([]string, len(*s))
	for i, spec := range *s {
		parts[i] = spec.name + "=" + spec.path
	}
	return strings.Join(parts, ",")
}

func (s *storageSpecs) Set(value string) error {
	nameAndPath := strings.SplitN(value, "=", 2)
	if len(nameAndPath) != 2 || nameAndPath[0] == "" || nameAndPath[1] == "" {
		return fmt.Errorf("storage spec %q must be name=path[:ro]", value)
	}

	path := nameAndPath[1]
	readOnly := false
	if rest := strings.TrimSuffix(path, ":ro"); rest != path {
		path = rest
		readOnly = true
	}

	*s = append(*s, storageSpec{name: nameAndPath[0], path: path, readOnly: readOnly})
	return nil
}
