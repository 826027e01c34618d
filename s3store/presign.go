package s3store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ferrydl/ferry"
)

const scheme = "s3://"

// PresignAPI is the part of *s3.PresignClient the presigner uses.
type PresignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Presigner turns s3:// locators into presigned GET URLs.
type Presigner struct {
	client PresignAPI
	ttl    time.Duration
}

func NewPresigner(client PresignAPI, ttl time.Duration) *Presigner {
	if ttl <= 0 {
		ttl = DefaultPresignTTL
	}
	return &Presigner{client: client, ttl: ttl}
}

// Resolve is a ferry.ResolveHook. Locators without the s3 scheme pass
// through unchanged.
func (p *Presigner) Resolve(ctx context.Context, raw string, loc ferry.Locator) (ferry.Locator, error) {
	if !IsLocation(raw) {
		return loc, nil
	}

	bucket, key, err := ParseLocation(raw)
	if err != nil {
		return ferry.Locator{}, err
	}

	req, err := p.client.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(p.ttl))
	if err != nil {
		return ferry.Locator{}, fmt.Errorf("presign %s: %w", raw, err)
	}

	return ferry.Locator{IsRemote: true, Path: req.URL}, nil
}

// IsLocation reports whether raw uses the s3 scheme.
func IsLocation(raw string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(raw)), scheme)
}

// ParseLocation splits s3://bucket/key into its parts.
func ParseLocation(raw string) (bucket, key string, err error) {
	raw = strings.TrimSpace(raw)
	if !IsLocation(raw) {
		return "", "", fmt.Errorf("parse location %q: %w: not an s3 location", raw, ferry.ErrInvalidInput)
	}

	bucket, key, _ = strings.Cut(raw[len(scheme):], "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("parse location %q: %w: bucket and key are required", raw, ferry.ErrInvalidInput)
	}

	return bucket, key, nil
}

// Location formats bucket and key as an s3:// locator.
func Location(bucket, key string) string {
	return scheme + bucket + "/" + strings.TrimPrefix(key, "/")
}
