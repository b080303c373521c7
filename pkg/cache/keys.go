package cache

import (
	"fmt"
	"strings"
)

// Key joins parts with ':' into one cache key, e.g. Key("forecast", "sku-1", 30).
func Key(parts ...interface{}) string {
	var b strings.Builder
	for i, p := range parts {
		if i > 0 {
			b.WriteByte(':')
		}
		fmt.Fprint(&b, p)
	}
	return b.String()
}

// PrefixPattern returns a glob matching every key that starts with prefix.
// Glob metacharacters inside prefix are escaped so they match literally.
func PrefixPattern(prefix string) string {
	var b strings.Builder
	for _, r := range prefix {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('*')
	return b.String()
}
