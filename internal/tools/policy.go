package tools

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	dagerrors "github.com/stevehiehn/deskagent/internal/errors"
)

// Features toggles whole tool families.
type Features struct {
	Screenshot       bool
	FileAccess       bool
	CommandExecution bool
	MouseControl     bool
	KeyboardControl  bool
}

// Policy restricts what the built-in tools may touch.
type Policy struct {
	// AllowedPaths limits file tools to these directory trees. Empty means
	// unrestricted.
	AllowedPaths      []string
	BlockedCommands   []string
	MaxCommandTimeout time.Duration
	Features          Features
}

// DefaultBlockedCommands are rejected by execute_command unless overridden.
var DefaultBlockedCommands = []string{"rm -rf", "format", "del /f", "mkfs"}

func DefaultPolicy() Policy {
	return Policy{
		BlockedCommands:   append([]string(nil), DefaultBlockedCommands...),
		MaxCommandTimeout: 30 * time.Second,
		Features: Features{
			Screenshot:       true,
			FileAccess:       true,
			CommandExecution: true,
			MouseControl:     true,
			KeyboardControl:  true,
		},
	}
}

// CheckPath returns ErrPathNotAllowed unless path lies inside one of the
// allowed directories after resolving symlinks.
func (p Policy) CheckPath(path string) error {
	if len(p.AllowedPaths) == 0 {
		return nil
	}
	resolved := resolvePath(path)
	for _, allowed := range p.AllowedPaths {
		rel, err := filepath.Rel(resolvePath(allowed), resolved)
		if err != nil {
			continue
		}
		if rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", dagerrors.ErrPathNotAllowed, path)
}

// CheckCommand returns ErrCommandBlocked when command contains a blocked
// pattern, compared case-insensitively.
func (p Policy) CheckCommand(command string) error {
	lower := strings.ToLower(command)
	for _, blocked := range p.BlockedCommands {
		if blocked != "" && strings.Contains(lower, strings.ToLower(blocked)) {
			return fmt.Errorf("%w: %s", dagerrors.ErrCommandBlocked, command)
		}
	}
	return nil
}

// resolvePath makes path absolute and resolves symlinks in the longest
// existing prefix, so paths that do not exist yet can still be checked.
func resolvePath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	dir, rest := abs, ""
	for {
		if real, err := filepath.EvalSymlinks(dir); err == nil {
			return filepath.Join(real, rest)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs
		}
		rest = filepath.Join(filepath.Base(dir), rest)
		dir = parent
	}
}
