package core

import (
	"fmt"
	"path/filepath"
	"strings"
)

// AllowList is the ordered set of base names that belong to group 1.
type AllowList struct {
	names []string
	set   map[string]struct{}
}

// NewAllowList builds an allow list, dropping blanks and duplicates while
// keeping first-seen order.
func NewAllowList(names ...string) AllowList {
	al := AllowList{set: make(map[string]struct{}, len(names))}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := al.set[n]; ok {
			continue
		}
		al.set[n] = struct{}{}
		al.names = append(al.names, n)
	}
	return al
}

// ParseAllowList reads a newline delimited list. Lines starting with # are
// comments.
func ParseAllowList(text string) AllowList {
	var names []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	return NewAllowList(names...)
}

// Contains reports whether name is in the list.
func (al AllowList) Contains(name string) bool {
	_, ok := al.set[name]
	return ok
}

// Names returns the names in insertion order.
func (al AllowList) Names() []string {
	return append([]string(nil), al.names...)
}

func (al AllowList) Len() int { return len(al.names) }

// Classify returns Group1 iff the base name of fileName is in allow.
func Classify(fileName string, allow AllowList) Group {
	if allow.Contains(baseName(fileName)) {
		return Group1
	}
	return Group2
}

// baseName strips any directory part, accepting both separators.
func baseName(p string) string {
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		return p[i+1:]
	}
	return p
}

// RelativeEntryName strips dataRoot from absolutePath and returns the rest
// with forward slashes. Relative arguments are resolved against the working
// directory first.
func RelativeEntryName(absolutePath, dataRoot string) (string, error) {
	p, err := filepath.Abs(absolutePath)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", absolutePath, err)
	}
	root, err := filepath.Abs(dataRoot)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", dataRoot, err)
	}
	rest, ok := strings.CutPrefix(p, root)
	if !ok {
		return "", fmt.Errorf("%s not under %s: %w", absolutePath, dataRoot, ErrPathNotUnderRoot)
	}
	if root != string(filepath.Separator) && rest != "" && rest[0] != filepath.Separator {
		// "/data/win32x" is not under "/data/win32"
		return "", fmt.Errorf("%s not under %s: %w", absolutePath, dataRoot, ErrPathNotUnderRoot)
	}
	rest = strings.TrimLeft(rest, string(filepath.Separator))
	if rest == "" {
		return "", fmt.Errorf("%s is the data root itself: %w", absolutePath, ErrPathNotUnderRoot)
	}
	return filepath.ToSlash(rest), nil
}

// Scope selects which asset trees a scan visits.
type Scope int

const (
	ScopeAll Scope = iota
	ScopePSO
	ScopeNGS
)

func (s Scope) String() string {
	switch s {
	case ScopePSO:
		return "pso"
	case ScopeNGS:
		return "ngs"
	}
	return "all"
}

// ParseScope accepts "all", "pso" and "ngs" in any case.
func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return ScopeAll, nil
	case "pso", "pso_only":
		return ScopePSO, nil
	case "ngs", "ngs_only":
		return ScopeNGS, nil
	}
	return ScopeAll, fmt.Errorf("unknown scope %q", s)
}

var scopeDirs = map[Scope][2]string{
	ScopePSO: {"win32", "win32_na"},
	ScopeNGS: {"win32reboot", "win32reboot_na"},
}

// IsTargetPath reports whether a scan should visit path under scope. Paths
// mentioning "license" and names with an extension never match.
func IsTargetPath(path string, scope Scope) bool {
	lower := strings.ToLower(path)
	if strings.Contains(lower, "license") {
		return false
	}
	segs := strings.FieldsFunc(lower, func(r rune) bool { return r == '/' || r == '\\' })
	if len(segs) == 0 || strings.Contains(segs[len(segs)-1], ".") {
		return false
	}
	if scope == ScopeAll {
		return true
	}
	dirs, ok := scopeDirs[scope]
	if !ok {
		return false
	}
	for _, seg := range segs[:len(segs)-1] {
		if seg == dirs[0] || seg == dirs[1] {
			return true
		}
	}
	return false
}
