package logger

import (
	"log/slog"
	"net/url"
	"strings"
)

// Attribute names whose values are never logged.
var sensitiveKeyPatterns = []string{
	"password",
	"passwd",
	"secret",
	"token",
	"credential",
	"authorization",
	"bearer",
	"cookie",
	"api_key",
	"apikey",
	"private_key",
	"signature",
}

const redactedValue = "***REDACTED***"

// redactSensitive is installed as the handler ReplaceAttr hook.
func redactSensitive(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		s := a.Value.String()
		if s == "" {
			return a
		}
		if IsSensitiveKey(a.Key) {
			return slog.String(a.Key, redactedValue)
		}
		if red := RedactString(s); red != s {
			return slog.String(a.Key, red)
		}
	case slog.KindAny:
		if u, ok := a.Value.Any().(*url.URL); ok && u != nil {
			return slog.String(a.Key, RedactURL(u))
		}
	case slog.KindGroup:
		attrs := a.Value.Group()
		out := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			out[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}
	return a
}

// RedactString masks credentials embedded in s when it is an absolute
// URL. Other strings are returned unchanged.
func RedactString(s string) string {
	if !strings.Contains(s, "://") {
		return s
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" {
		return s
	}
	if u.User == nil && u.RawQuery == "" {
		return s
	}
	return RedactURL(u)
}

// RedactURL renders u with its userinfo password and any sensitive query
// parameters masked. The user name is kept so operators can tell accounts
// apart.
func RedactURL(u *url.URL) string {
	if u.User == nil && u.RawQuery == "" {
		return u.String()
	}
	c := *u
	if c.User != nil {
		if _, ok := c.User.Password(); ok {
			c.User = url.UserPassword(c.User.Username(), "***")
		}
	}
	if c.RawQuery != "" {
		q := c.Query()
		changed := false
		for name, vals := range q {
			if !IsSensitiveKey(name) && !IsSensitiveParam(name) {
				continue
			}
			for i := range vals {
				vals[i] = "REDACTED"
			}
			changed = true
		}
		if changed {
			c.RawQuery = q.Encode()
		}
	}
	return c.String()
}

// IsSensitiveKey reports whether an attribute name suggests secret content.
func IsSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	for _, p := range sensitiveKeyPatterns {
		if strings.Contains(k, p) {
			return true
		}
	}
	return false
}

// IsSensitiveParam reports whether a URL query parameter commonly carries a
// credential. Short names like "key" and "sig" are only treated as secret in
// query strings, where they are conventionally used for signing.
func IsSensitiveParam(name string) bool {
	switch strings.ToLower(name) {
	case "key", "sig", "auth", "access_token", "x-amz-signature", "x-amz-credential", "x-amz-security-token":
		return true
	}
	return false
}
