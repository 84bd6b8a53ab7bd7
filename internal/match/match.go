// Package match implements shell-glob name matching against pattern sets.
//
// Patterns support `*`, `?`, bracket classes and `{a,b}` alternation. Names
// are single path components (file or directory basenames), so `**` has no
// recursive meaning here and behaves like `*`.
package match

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Matcher matches names against glob patterns. The zero value is
// case-sensitive on every platform.
type Matcher struct {
	// IgnoreCase folds both name and pattern to lower case before matching.
	IgnoreCase bool
}

// Matches reports whether name matches any pattern in patterns.
// Invalid patterns never match.
func (m Matcher) Matches(name string, patterns []string) bool {
	if m.IgnoreCase {
		name = strings.ToLower(name)
	}
	for _, pat := range patterns {
		if m.IgnoreCase {
			pat = strings.ToLower(pat)
		}
		if ok, err := doublestar.Match(pat, name); err == nil && ok {
			return true
		}
	}
	return false
}

// Matches reports whether name matches any pattern using case-sensitive
// matching.
func Matches(name string, patterns []string) bool {
	return Matcher{}.Matches(name, patterns)
}

// Validate returns an error naming the first malformed pattern.
func Validate(patterns []string) error {
	for _, pat := range patterns {
		if !doublestar.ValidatePattern(pat) {
			return fmt.Errorf("invalid glob pattern %q", pat)
		}
	}
	return nil
}
