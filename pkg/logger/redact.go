package logger

import "strings"

const redacted = "[redacted]"

var sensitiveKeyParts = []string{"password", "secret", "token", "authorization", "credential"}

func redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, part := range sensitiveKeyParts {
		if strings.Contains(lower, part) {
			return redacted
		}
	}
	return value
}
