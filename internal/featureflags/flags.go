// Package featureflags reads opt-in behavior toggles from the environment.
// Flags are set as FLAG_<NAME>=1/true/yes/on, case-insensitive.
//
// The server currently reads one flag: published_only hides unpublished and
// future-dated products from catalog listings instead of serving the full
// catalog.
package featureflags

import (
	"os"
	"strings"
)

var truthy = map[string]bool{
	"1":    true,
	"true": true,
	"yes":  true,
	"on":   true,
}

// Enabled reports whether the named flag is switched on
func Enabled(name string) bool {
	return truthy[strings.ToLower(os.Getenv("FLAG_"+strings.ToUpper(name)))]
}
