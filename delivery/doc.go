// Package delivery sends the bytes of a download to the client.
//
// Three strategies exist:
//
//   - Stream ("force"): reads the local file and copies the requested range
//     in fixed-size chunks, flushing after each one.
//   - Accelerated ("xsendfile"): hands the transfer to the fronting web
//     server through X-Sendfile, X-Lighttpd-Sendfile or X-Accel-Redirect.
//   - Redirect ("redirect"): answers 302 with the public URL.
//
// Each strategy returns an Outcome. Retry passes control to the next
// strategy of the chain, Ok and Fatal end it. A Dispatcher runs the chain
// selected by the configured Method:
//
//	force     → Stream, Redirect
//	xsendfile → Accelerated, Stream, Redirect
//	redirect  → Redirect
//
// Headers are written by the Composer before the first body byte. Once a
// strategy has committed a status, the Outcome is marked Committed and the
// caller must not write an error page.
package delivery
