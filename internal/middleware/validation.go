package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxRequestBodySize caps request bodies; the API only accepts small JSON payloads.
const MaxRequestBodySize = 64 * 1024

// MaxQueryValueLength bounds track, artist and cache key parameters.
const MaxQueryValueLength = 256

// ErrEmptyValue is returned when a required value is blank after sanitizing.
var ErrEmptyValue = errors.New("value cannot be empty")

// LimitRequestBody wraps bodies of mutating requests in http.MaxBytesReader.
func LimitRequestBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
		}
		next.ServeHTTP(w, r)
	})
}

// SanitizeString trims whitespace, strips control characters and invalid
// UTF-8, and truncates to maxLength runes.
func SanitizeString(input string, maxLength int) string {
	input = strings.ToValidUTF8(input, "")
	input = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, input)
	input = strings.TrimSpace(input)
	if maxLength > 0 && utf8.RuneCountInString(input) > maxLength {
		input = strings.TrimSpace(string([]rune(input)[:maxLength]))
	}
	return input
}

// RequiredParam returns the sanitized query parameter or an error naming it.
func RequiredParam(r *http.Request, name string) (string, error) {
	v := SanitizeString(r.URL.Query().Get(name), MaxQueryValueLength)
	if v == "" {
		return "", fmt.Errorf("%s: %w", name, ErrEmptyValue)
	}
	return v, nil
}

// ValidateCacheKey rejects keys that could not have been written by the
// caches: blank, oversized or containing whitespace or path separators.
func ValidateCacheKey(key string) error {
	if key == "" {
		return ErrEmptyValue
	}
	if len(key) > MaxQueryValueLength {
		return fmt.Errorf("cache key too long (max %d characters)", MaxQueryValueLength)
	}
	for _, c := range key {
		if unicode.IsSpace(c) || unicode.IsControl(c) || c == '/' {
			return fmt.Errorf("cache key contains invalid characters")
		}
	}
	return nil
}
