package globals

import (
	"os"
)

var JwtSecret = []byte(envOr("JWT_SECRET", "tripweave_dev_secret"))

// Context keys
type ContextKey string

const UserIDKey ContextKey = "userId"
const UsernameKey ContextKey = "username"

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
