// Package http exposes ferry downloads over HTTP.
//
// # Routes
//
//	GET|POST /download/{idOrName}      serve a download (POST carries download_password)
//	GET      /api/downloads            list downloads, admin only
//	GET      /api/downloads/{id}/events recent download events, admin only
//	GET      /metrics                  Prometheus metrics, when configured
//
// A download request runs through the pipeline: look the download up, check
// the access gate, resolve the stored locator, then hand the job to the
// delivery dispatcher. Full (non-range) deliveries are tracked afterwards.
//
// # Errors
//
// Errors are reported as an HTML page when the Accept header contains
// text/html and as JSON otherwise:
//
//	{"error": "not_found", "message": "Download not found"}
//
// A password protected download answers browsers with a form that posts
// download_password back to the same URL. Once a delivery strategy has
// written the status line, failures are only logged.
//
// # Authentication
//
// AuthMiddleware resolves "Authorization: Bearer <token>" through an
// Authenticator and stores the user on the request context. Anonymous
// requests are allowed on download routes; the API requires the admin role.
//
//	handler := http.NewHandler(&http.HandlerConfig{Authenticator: auth}, service, http.Pipeline{
//	    Gate:       gate,
//	    Resolver:   resolver,
//	    Dispatcher: dispatcher,
//	    Tracker:    tracker,
//	})
//	srv := &net.Server{Handler: handler.Router()}
package http
