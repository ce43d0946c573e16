package remotestore

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/events"
)

const HeaderCorrelationID = "X-Correlation-Id"

// CorrelationID echoes the caller's correlation id, or a fresh one, and
// attaches it to the request context so published events carry it.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cid := r.Header.Get(HeaderCorrelationID)
		if cid == "" {
			cid = uuid.NewString()
		}
		w.Header().Set(HeaderCorrelationID, cid)
		next.ServeHTTP(w, r.WithContext(events.WithCorrelationID(r.Context(), cid)))
	})
}
