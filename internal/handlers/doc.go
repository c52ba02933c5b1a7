// Package handlers exposes thumbnail sessions over HTTP.
//
// Routes:
//   - POST   /api/sessions                   start or attach to a session
//   - GET    /api/sessions/{id}              session state and progress
//   - GET    /api/sessions/{id}/thumbnail?t= JPEG shown at t seconds
//   - DELETE /api/sessions/{id}              cancel and forget a session
//   - GET    /healthz, /livez, /version
//   - GET    /metrics                        Prometheus, when enabled
package handlers
