package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ContainsString reports whether val is present in slice.
func ContainsString(slice []string, val string) bool {
	for _, s := range slice {
		if s == val {
			return true
		}
	}
	return false
}

// RemoveString returns slice without any occurrence of val.
func RemoveString(slice []string, val string) []string {
	out := make([]string, 0, len(slice))
	for _, s := range slice {
		if s != val {
			out = append(out, s)
		}
	}
	return out
}

// ParseMinuteTable parses "key=minutes,key2=minutes" into a duration table.
// Malformed pairs are reported as an error naming the offending pair.
func ParseMinuteTable(raw string) (map[string]time.Duration, error) {
	table := make(map[string]time.Duration)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid ttl pair %q", pair)
		}
		mins, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || mins <= 0 {
			return nil, fmt.Errorf("invalid ttl minutes in %q", pair)
		}
		table[k] = time.Duration(mins) * time.Minute
	}
	return table, nil
}
