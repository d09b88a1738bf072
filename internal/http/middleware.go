package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"casework/pkg/domain"
	"casework/pkg/requestcontext"
)

// Identity headers set by the fronting gateway after authentication. The
// service trusts them; it runs behind the gateway, never at the edge.
const (
	headerUserID    = "X-User-Id"
	headerUserName  = "X-User-Name"
	headerRegionID  = "X-User-Region"
	headerUserRoles = "X-User-Roles"
	headerRequestID = "X-Request-Id"
)

// requestContext lifts gateway identity headers and the correlation id into
// the request context so services see one actor shape regardless of
// transport.
func requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		actor := requestcontext.ActorInfo{Name: r.Header.Get(headerUserName)}
		if id, err := domain.ParseUserID(r.Header.Get(headerUserID)); err == nil {
			actor.ID = id
		}
		if regionID, err := uuid.Parse(r.Header.Get(headerRegionID)); err == nil {
			actor.RegionID = domain.RegionID(regionID)
		}
		if raw := r.Header.Get(headerUserRoles); raw != "" {
			for _, role := range strings.Split(raw, ",") {
				if role = strings.TrimSpace(role); role != "" {
					actor.Roles = append(actor.Roles, role)
				}
			}
		}
		ctx = requestcontext.WithActor(ctx, actor)

		requestID := r.Header.Get(headerRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx = requestcontext.WithRequestID(ctx, requestID)
		w.Header().Set(headerRequestID, requestID)

		// One instant per request; every lifecycle timestamp reads this.
		ctx = requestcontext.WithTime(ctx, time.Now().UTC())

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
