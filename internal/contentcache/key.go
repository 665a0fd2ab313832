package contentcache

import (
	"encoding/base64"
	"strings"
)

// keyDelimiter joins the two normalized identifiers.
const keyDelimiter = "::"

// NormalizeKey lowercases s, trims it, and collapses whitespace runs to one space.
func NormalizeKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// DeriveKey builds the store key for the pair (a, b). Inputs differing only in
// case or whitespace map to the same key.
func (c *Cache[P]) DeriveKey(a, b string) string {
	return deriveKey(c.cfg.Prefix, a, b)
}

func deriveKey(prefix, a, b string) string {
	joined := NormalizeKey(a) + keyDelimiter + NormalizeKey(b)
	return prefix + base64.StdEncoding.EncodeToString([]byte(escapeComponent(joined)))
}

const upperhex = "0123456789ABCDEF"

// escapeComponent percent-encodes s the way browsers encode a URI component:
// ASCII letters, digits and -_.!~*'() pass through, every other UTF-8 byte is
// written as %XX.
func escapeComponent(s string) string {
	n := 0
	for i := 0; i < len(s); i++ {
		if !unreserved(s[i]) {
			n++
		}
	}
	if n == 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 2*n)
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if unreserved(ch) {
			b.WriteByte(ch)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[ch>>4])
		b.WriteByte(upperhex[ch&15])
	}
	return b.String()
}

func unreserved(ch byte) bool {
	switch {
	case 'a' <= ch && ch <= 'z', 'A' <= ch && ch <= 'Z', '0' <= ch && ch <= '9':
		return true
	}
	switch ch {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}
