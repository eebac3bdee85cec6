package format

import (
	"net/url"
	"strings"
)

// DerefString safely dereferences a *string and returns a default value if nil.
func DerefString(s *string, defaultVal string) string {
	if s != nil {
		return *s
	}
	return defaultVal
}

// HTTPLink returns the trimmed link when it is an absolute http(s) URL, and ""
// otherwise. Telegram rejects URL buttons with anything else.
func HTTPLink(s *string) string {
	v := strings.TrimSpace(DerefString(s, ""))
	u, err := url.Parse(v)
	if err != nil || u.Host == "" {
		return ""
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return v
	}
	return ""
}
