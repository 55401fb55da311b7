package plugins

import (
	"net/http"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/weavegraph/weave"
)

// RequestHeader is the header carrying (or receiving) a request's
// correlation ID, propagated to every subgraph this request's plan fetches
// from.
const RequestHeader = "X-Weave-Request-Id"

func init() {
	weave.RegisterPlugin(&RequestIdentifierPlugin{})
}

// RequestIdentifierPlugin stamps every request with a correlation ID: it
// keeps a caller-supplied one if present (rewritten in canonical form when it
// parses as a UUID), mints a fresh UUIDv4 when the header is absent or blank,
// logs it on the request's instrumentation event, and forwards it
// to every subgraph the resulting plan fetches from.
type RequestIdentifierPlugin struct {
	weave.BasePlugin
}

func (p *RequestIdentifierPlugin) ID() string {
	return "request-id"
}

func (p *RequestIdentifierPlugin) middleware(h http.Handler) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestHeader)

		ctx := r.Context()
		switch {
		case strings.TrimSpace(requestID) == "":
			requestID = uuid.Must(uuid.NewV4()).String()
		default:
			if id, err := uuid.FromString(requestID); err == nil {
				requestID = id.String()
			}
		}

		weave.AddField(ctx, "request.id", requestID)
		ctx = weave.AddOutgoingRequestsHeaderToContext(ctx, RequestHeader, requestID)
		h.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (p *RequestIdentifierPlugin) ApplyMiddlewarePublicMux(h http.Handler) http.Handler {
	return p.middleware(h)
}

func (p *RequestIdentifierPlugin) ApplyMiddlewarePrivateMux(h http.Handler) http.Handler {
	return p.middleware(h)
}
