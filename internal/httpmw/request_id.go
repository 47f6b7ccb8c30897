// Package httpmw holds the small set of Gin middleware used by the
// diagnostics HTTP surface (see internal/adminapi). The core TCP engine
// never imports this package.
package httpmw

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const RequestIDKey = "request_id"

// RequestID tags every admin request with a correlation id: a
// well-formed inbound X-Request-ID is kept so ids survive a proxy
// hop, anything else is replaced with a fresh UUID. The id is echoed
// on the response and stashed in the context for the request logger.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader("X-Request-ID"))
		if !validRequestID(id) {
			id = uuid.NewString()
		}

		c.Header("X-Request-ID", id)
		c.Set(RequestIDKey, id)

		c.Next()
	}
}

// validRequestID accepts 1..64 bytes of [A-Za-z0-9._-], enough for
// UUIDs and the common tracing-id formats while keeping arbitrary
// client bytes out of response headers and logs.
func validRequestID(id string) bool {
	if len(id) == 0 || len(id) > 64 {
		return false
	}
	for i := 0; i < len(id); i++ {
		switch b := id[i]; {
		case b >= 'a' && b <= 'z':
		case b >= 'A' && b <= 'Z':
		case b >= '0' && b <= '9':
		case b == '-' || b == '_' || b == '.':
		default:
			return false
		}
	}
	return true
}

// GetRequestID retrieves the request id stashed by RequestID.
func GetRequestID(c *gin.Context) string {
	id, _ := c.Get(RequestIDKey)
	s, _ := id.(string)
	return s
}
