package httpmiddleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/lewisedginton/conversation_store/pkg/logger"
)

// CorrelationID makes sure every request carries a UUID correlation id in its
// header and context, and echoes it on the response. A valid incoming id is
// kept so that one id can follow a call across services; anything else is
// replaced.
func CorrelationID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(logger.CorrelationIDHeader)
			if _, err := uuid.Parse(id); err != nil {
				id = uuid.NewString()
				r.Header.Set(logger.CorrelationIDHeader, id)
			}
			w.Header().Set(logger.CorrelationIDHeader, id)

			r = r.WithContext(logger.WithCorrelationIDContext(r.Context(), id))
			next.ServeHTTP(w, r)
		})
	}
}
