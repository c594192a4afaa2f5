package broker

import "net/url"

// sensitiveParams are query parameters that must never reach logs or error
// messages.
var sensitiveParams = map[string]bool{
	"api_key":      true,
	"api_sig":      true,
	"token":        true,
	"access_token": true,
	"key":          true,
	"secret":       true,
	"signature":    true,
	"session_key":  true,
}

// Redact replaces credential query parameters in rawURL with "***".
// A URL that fails to parse is returned unchanged.
func Redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	changed := false
	for k := range q {
		if sensitiveParams[k] {
			q.Set(k, "***")
			changed = true
		}
	}
	if !changed {
		return rawURL
	}
	u.RawQuery = q.Encode()
	return u.String()
}
