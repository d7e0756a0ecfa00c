package httpserver

import "net/http"

// Routes groups handlers.
type Routes struct {
	ParkingStart   http.HandlerFunc
	ParkingFinish  http.HandlerFunc
	ActiveList     http.HandlerFunc
	SessionHistory http.HandlerFunc
	Snapshot       http.HandlerFunc
	AuditList      http.HandlerFunc
	SnapshotWS     http.HandlerFunc
	Health         http.HandlerFunc
}

// NewRouter registers endpoints.
func NewRouter(routes Routes) http.Handler {
	mux := http.NewServeMux()
	if routes.ParkingStart != nil {
		mux.Handle("/parking/start", method(http.MethodPost, routes.ParkingStart))
	}
	if routes.ParkingFinish != nil {
		mux.Handle("/parking/finish", method(http.MethodPost, routes.ParkingFinish))
	}
	if routes.ActiveList != nil {
		mux.Handle("/parking/active", method(http.MethodGet, routes.ActiveList))
	}
	if routes.SessionHistory != nil {
		mux.Handle("/parking/sessions", method(http.MethodGet, routes.SessionHistory))
	}
	if routes.Snapshot != nil {
		mux.Handle("/parking/snapshot", method(http.MethodGet, routes.Snapshot))
	}
	if routes.AuditList != nil {
		mux.Handle("/parking/audit", method(http.MethodGet, routes.AuditList))
	}
	if routes.SnapshotWS != nil {
		mux.Handle("/parking/ws", method(http.MethodGet, routes.SnapshotWS))
	}
	if routes.Health != nil {
		mux.Handle("/health", method(http.MethodGet, routes.Health))
	}
	return mux
}

func method(expected string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != expected {
			w.Header().Set("Allow", expected)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handler(w, r)
	}
}
