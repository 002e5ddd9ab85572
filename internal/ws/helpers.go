package ws

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"
)

func newConnID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}

// tokenFromRequest accepts "Authorization: Bearer <t>", a bare "token" header,
// or a "token" query parameter, in that order.
func tokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if token := r.Header.Get("token"); token != "" {
		return token
	}
	return r.URL.Query().Get("token")
}
