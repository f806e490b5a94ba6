// Package pathsearch turns a program name into a verified absolute path.
//
// Resolution happens once at startup. An absolute name is checked in place; a
// bare name is looked up in the search path, first match wins.
package pathsearch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// EnvKey is the environment variable holding the search path.
const EnvKey = "PATH"

var (
	ErrPathVariableMissing = errors.New("PATH environment variable is not set")
	ErrProgramMissing      = errors.New("external program does not exist")
	ErrProgramNotInPath    = errors.New("could not find external program in system path")
)

// ResolveError carries the name that failed to resolve.
type ResolveError struct {
	Name string
	Err  error
}

func (e *ResolveError) Error() string {
	switch {
	case errors.Is(e.Err, ErrProgramMissing):
		return fmt.Sprintf("external program `%s' does not exist", e.Name)
	case errors.Is(e.Err, ErrProgramNotInPath):
		return fmt.Sprintf("could not find external program `%s' in system path", e.Name)
	default:
		return fmt.Sprintf("resolve `%s': %v", e.Name, e.Err)
	}
}

func (e *ResolveError) Unwrap() error { return e.Err }

// SearchPath is an ordered list of directories.
type SearchPath []string

// ParseSearchPath splits a PATH-style value. A trailing segment without a
// closing separator is still a directory; empty segments mean ".".
func ParseSearchPath(value string) SearchPath {
	if value == "" {
		return nil
	}
	dirs := filepath.SplitList(value)
	out := make(SearchPath, 0, len(dirs))
	for _, d := range dirs {
		if d == "" {
			d = "."
		}
		out = append(out, d)
	}
	return out
}

// LookupSearchPath reads the search path from the environment.
func LookupSearchPath() (SearchPath, error) {
	v, ok := os.LookupEnv(EnvKey)
	if !ok {
		return nil, ErrPathVariableMissing
	}
	return ParseSearchPath(v), nil
}

// Resolve returns the absolute path of name.
//
// Names starting with "/" are returned unchanged when executable. Anything else
// is joined onto each directory of sp in order and the first executable
// candidate is returned.
func Resolve(name string, sp SearchPath) (string, error) {
	if name == "" {
		return "", &ResolveError{Name: name, Err: ErrProgramNotInPath}
	}
	if strings.HasPrefix(name, "/") {
		if !IsExecutable(name) {
			return "", &ResolveError{Name: name, Err: ErrProgramMissing}
		}
		return name, nil
	}

	for _, dir := range sp {
		candidate := filepath.Join(dir, name)
		if !IsExecutable(candidate) {
			continue
		}
		if !filepath.IsAbs(candidate) {
			abs, err := filepath.Abs(candidate)
			if err != nil {
				continue
			}
			candidate = abs
		}
		return candidate, nil
	}
	return "", &ResolveError{Name: name, Err: ErrProgramNotInPath}
}

// IsExecutable applies the execute-permission check to path. Directories are
// rejected even though they carry the search bit.
func IsExecutable(path string) bool {
	if err := unix.Access(path, unix.X_OK); err != nil {
		return false
	}
	fi, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !fi.IsDir()
}
