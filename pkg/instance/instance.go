// Package instance names the running process for logs and lock owners.
package instance

import "os"

// ID returns LENSPORTAL_INSTANCE_ID, then the platform's DYNO, then the
// hostname, then "local".
func ID() string {
	for _, key := range []string{"LENSPORTAL_INSTANCE_ID", "DYNO"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
