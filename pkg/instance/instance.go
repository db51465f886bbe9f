package instance

import (
	"os"
	"strings"
)

const fallbackID = "local"

// GetID names this process for logs and lock ownership. The first non-empty of
// DYNO, WORKER_ID and HOSTNAME wins.
func GetID() string {
	for _, key := range []string{"DYNO", "WORKER_ID", "HOSTNAME"} {
		if id := strings.TrimSpace(os.Getenv(key)); id != "" {
			return id
		}
	}
	return fallbackID
}
