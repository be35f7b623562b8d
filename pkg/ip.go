package pkg

import (
	"net/http"
	"strings"
)

// UnknownClientKey is shared by every client whose proxy sets none of the forwarding headers.
const UnknownClientKey = "unknown"

// client address headers, in priority order
var clientAddrHeaders = []string{
	"X-Forwarded-For",
	"X-Real-Ip",
	"CF-Connecting-IP",
}

// ReadClientKey returns the identifier used to bucket per-client counters: the first
// X-Forwarded-For entry, then X-Real-Ip, then CF-Connecting-IP.
func ReadClientKey(r *http.Request) string {
	for _, header := range clientAddrHeaders {
		value := r.Header.Get(header)
		if value == "" {
			continue
		}
		// X-Forwarded-For: client, proxy1, proxy2
		first, _, _ := strings.Cut(value, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	return UnknownClientKey
}
