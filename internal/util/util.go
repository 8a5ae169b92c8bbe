// Package util provides content hashing for HTTP validators.
package util

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

func ContentHash(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

// ETag returns a strong entity tag for content.
func ETag(content []byte) string {
	return `"` + ContentHash(content)[:32] + `"`
}

// MatchesETag reports whether an If-None-Match header value names etag.
func MatchesETag(ifNoneMatch, etag string) bool {
	for _, candidate := range strings.Split(ifNoneMatch, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || candidate == etag || candidate == "W/"+etag {
			return true
		}
	}
	return false
}
