package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/alohomora/internal/platform/ctxutil"
)

// Client apps, replicas and the authority pass these on every hop; the
// outbound alohomora client copies them from the request context.
const (
	HeaderTraceID   = "X-Trace-Id"
	HeaderRequestID = "X-Request-Id"
	HeaderRole      = "X-Alohomora-Role"

	maxInboundIDLen = 128
)

// TraceContext adopts the caller's trace and request ids, mints any that are
// missing or unusable, and echoes both along with the serving role.
func TraceContext(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		td := &ctxutil.TraceData{
			TraceID:   inboundID(c.GetHeader(HeaderTraceID)),
			RequestID: inboundID(c.GetHeader(HeaderRequestID)),
		}
		if td.TraceID == "" {
			if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
				td.TraceID = sc.TraceID().String()
			}
		}
		if td.TraceID == "" {
			td.TraceID = uuid.NewString()
		}
		if td.RequestID == "" {
			td.RequestID = uuid.NewString()
		}

		c.Request = c.Request.WithContext(ctxutil.WithTraceData(c.Request.Context(), td))
		c.Set("trace_id", td.TraceID)
		c.Set("request_id", td.RequestID)
		h := c.Writer.Header()
		h.Set(HeaderTraceID, td.TraceID)
		h.Set(HeaderRequestID, td.RequestID)
		if role != "" {
			h.Set(HeaderRole, role)
		}
		c.Next()
	}
}

// inboundID keeps an id of at most maxInboundIDLen letters, digits and
// "-_.:" characters. Anything else reads as missing.
func inboundID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || len(id) > maxInboundIDLen {
		return ""
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.', r == ':':
		default:
			return ""
		}
	}
	return id
}
