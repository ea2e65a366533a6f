package orders

import (
	"net/http"
	"time"

	"github.com/courierhq/dispatchd/core/dispatch/logging"
)

// NewOutcomesHandler returns an HTTP handler exposing dispatch outcomes via
// GET /api/orders/outcomes. Requests must include an Authorization header
// with "Bearer <token>" when token is non-empty.
func NewOutcomesHandler(store logging.LogStore, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token != "" {
			auth := r.Header.Get("Authorization")
			if auth != "Bearer "+token {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		q := logging.LogQuery{}
		if s := r.URL.Query().Get("start"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				q.Start = t
			}
		}
		if s := r.URL.Query().Get("end"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				q.End = t
			}
		}
		q.ClientID = r.URL.Query().Get("client_id")
		q.Outcome = logging.Outcome(r.URL.Query().Get("outcome"))
		records, err := store.Query(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, records)
	})
}
