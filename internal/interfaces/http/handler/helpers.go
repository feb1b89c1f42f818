package handler

import "strconv"

// formatSeconds renders a Retry-After header value
func formatSeconds(seconds int64) string {
	return strconv.FormatInt(seconds, 10)
}
