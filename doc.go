// Package ferry provides the domain of a file delivery server: downloadable
// resources, access gating, locator resolution, byte-range parsing and
// download tracking.
//
// A download is a logical resource pointing at bytes that live either on the
// local filesystem or behind a remote URL. Serving it follows a fixed path:
//
//	Gate → Resolver → ParseRange → delivery strategy → Tracker
//
// # Key Components
//
//   - Download: the resource descriptor (locator, password, access rules)
//   - DownloadRepo / OptionStore: persistence collaborators (PostgreSQL, SQLite)
//   - Gate: existence, password and conditional-logic checks
//   - RuleRegistry: typed predicates keyed by rule type (user_role, user_id, ip_address)
//   - Resolver: maps a locator string to a local path or a remote URL
//   - ParseRange: single-range HTTP Range header parsing
//   - Tracker: download counters and append-only events
//   - Service: create, register, list, scan and delete downloads
//
// The delivery package implements the strategies (force stream, accelerated
// transfer, redirect) and the http package exposes them over chi.
//
// # Example Usage
//
//	gate := ferry.NewGate(ferry.DefaultRuleRegistry(logger), logger)
//	resolver := ferry.NewResolver(ferry.ResolverConfig{UploadDir: "/srv/uploads"})
//
//	d, err := service.Get(ctx, "report.pdf")
//	if err != nil {
//	    return err
//	}
//	if err := gate.Check(ctx, &d, req); err != nil {
//	    return err
//	}
//	loc, err := resolver.Resolve(ctx, d.FileURL, req)
package ferry
