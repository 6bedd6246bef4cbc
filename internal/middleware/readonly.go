package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/isagip/barangay-dashboard-api/internal/service"
	appErrors "github.com/isagip/barangay-dashboard-api/pkg/errors"
	"github.com/isagip/barangay-dashboard-api/pkg/response"
)

// Availability reports whether the record store accepts writes.
type Availability interface {
	Available() bool
}

// ReadOnlyHeader flags responses served while the store is unreachable.
const ReadOnlyHeader = "X-Read-Only"

// ReadOnly rejects mutating requests while the backend is unreachable. Reads
// pass through so cached pages keep rendering behind the offline banner.
func ReadOnly(monitor Availability) gin.HandlerFunc {
	return func(c *gin.Context) {
		if monitor == nil || monitor.Available() {
			c.Next()
			return
		}
		c.Header(ReadOnlyHeader, "true")
		if safeMethod(c.Request.Method) {
			c.Next()
			return
		}
		response.Abort(c, appErrors.ErrBackendUnavailable, OfflineMeta())
	}
}

// OfflineMeta is the envelope meta attached while in read-only mode.
func OfflineMeta() map[string]interface{} {
	return map[string]interface{}{"readOnly": true, "banner": service.OfflineBanner}
}

func safeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}
