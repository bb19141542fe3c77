// Package retire filters retired source packages out of build sets.
// Retired packages are ones the archive dropped or that were folded into
// another source; they must never be scheduled, and depending on one is a
// planning error worth surfacing.
package retire

import "sort"

// Checker answers retirement questions for a fixed list.
type Checker struct {
	retired map[string]bool
}

// NewChecker builds a Checker from the configured retirement list.
func NewChecker(retired []string) *Checker {
	set := make(map[string]bool, len(retired))
	for _, name := range retired {
		set[name] = true
	}
	return &Checker{retired: set}
}

// IsRetired reports whether a source package is retired.
func (c *Checker) IsRetired(source string) bool {
	return c.retired[source]
}

// Filter splits a requested set into buildable packages and the retired
// names that were dropped. Both slices come back sorted.
func (c *Checker) Filter(requested []string) (kept, dropped []string) {
	for _, name := range requested {
		if c.retired[name] {
			dropped = append(dropped, name)
		} else {
			kept = append(kept, name)
		}
	}
	sort.Strings(kept)
	sort.Strings(dropped)
	return kept, dropped
}
