package logger

import (
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// RedactEmail keeps the first two characters of the local part and the
// whole host: "john.doe@example.com" becomes "jo***@example.com". Local
// parts of two characters or fewer are masked entirely.
func RedactEmail(email string) string {
	local, host, ok := strings.Cut(email, "@")
	if !ok || strings.Contains(host, "@") {
		return "***@***"
	}
	if len(local) > 2 {
		return local[:2] + "***@" + host
	}
	return "***@" + host
}

// redactValue masks whole values under address-like keys (email,
// recipient, to) and any address embedded in other values.
func redactValue(key, val string) string {
	key = strings.ToLower(key)
	if strings.Contains(key, "email") || strings.Contains(key, "recipient") || key == "to" {
		return RedactEmail(val)
	}
	return emailPattern.ReplaceAllStringFunc(val, RedactEmail)
}
