// Package utils holds small helpers shared by the CLI, the cache and the
// summarizer client.
package utils

// MaskKey hides all but the first 8 and last 4 characters of a credential.
// Keys shorter than 16 characters are fully masked.
func MaskKey(key string) string {
	switch {
	case key == "":
		return "(empty)"
	case len(key) < 16:
		return "****"
	}
	return key[:8] + "..." + key[len(key)-4:]
}

// MaskKeyShort keeps 4 characters on each side, for per-request log lines.
func MaskKeyShort(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
