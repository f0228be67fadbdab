package instance

import (
	"os"

	"github.com/angelmondragon/bistro-backend/pkg/env"
)

const fallbackID = "local"

// GetID names the running replica for logs and lock ownership. BISTRO_INSTANCE_ID
// wins, then the platform dyno name, then the host name.
func GetID() string {
	if id := env.Get("BISTRO_INSTANCE_ID", ""); id != "" {
		return id
	}
	if id := env.Get("DYNO", ""); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fallbackID
}
