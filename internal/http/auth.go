package http

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// authorized checks the shared secret when one is configured. The key may
// arrive as an api_key query parameter, an Authorization bearer token, or
// an api_key field in a JSON body (bodyKey, already parsed by the caller).
func (s *Server) authorized(r *http.Request, bodyKey string) bool {
	if s.apiKey == "" {
		return true
	}
	for _, candidate := range []string{
		r.URL.Query().Get("api_key"),
		bearerToken(r),
		bodyKey,
	} {
		if candidate != "" && subtle.ConstantTimeCompare([]byte(candidate), []byte(s.apiKey)) == 1 {
			return true
		}
	}
	return false
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
