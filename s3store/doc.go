// Package s3store connects ferry downloads to S3-compatible object storage.
//
// Downloads whose locator has the form s3://bucket/key are served through
// short-lived presigned GET URLs. Register the presigner as a resolve hook:
//
//	resolver := ferry.NewResolver(cfg, ferry.WithHook(presigner.Resolve))
//
// Syncer copies local downloads from the upload directory into a bucket
// under <prefix>/<host>/<relative path>, setting Content-Type and an
// attachment Content-Disposition on every object.
package s3store
