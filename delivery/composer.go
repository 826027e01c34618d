package delivery

import (
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ferrydl/ferry"
)

const defaultContentType = "application/octet-stream"

// Headers describes the file a response carries.
type Headers struct {
	FileName string
	// ContentType overrides the type derived from the file extension.
	ContentType string
	// Size is the file size in bytes; 0 when unknown.
	Size  uint64
	Range ferry.Range
	// OmitLength leaves Content-Length to the fronting server.
	OmitLength bool
}

// Compose writes the download headers to h and returns the status code to
// send. Nothing is written to the body.
func Compose(h http.Header, p Headers) int {
	h.Del("Content-Encoding")
	h.Del("Last-Modified")
	h.Del("ETag")
	h.Set("Cache-Control", "no-cache, must-revalidate, max-age=0")
	h.Set("Expires", "Wed, 11 Jan 1984 05:00:00 GMT")
	h.Set("Pragma", "no-cache")

	h.Set("X-Robots-Tag", "noindex, nofollow")

	contentType := p.ContentType
	if contentType == "" {
		contentType = ContentTypeByName(p.FileName)
	}
	h.Set("Content-Type", contentType)
	h.Set("Content-Description", "File Transfer")
	h.Set("Content-Disposition", `attachment; filename="`+ferry.SanitizeFileName(p.FileName)+`";`)
	h.Set("Content-Transfer-Encoding", "binary")

	if p.Range.IsRequest && p.Size > 0 {
		if !p.Range.IsValid {
			h.Set("Content-Range", "bytes 0-"+strconv.FormatUint(p.Size-1, 10)+"/"+strconv.FormatUint(p.Size, 10))
			h.Del("Content-Length")
			return http.StatusRequestedRangeNotSatisfiable
		}

		h.Set("Accept-Ranges", "bytes")
		h.Set("Content-Range", "bytes "+strconv.FormatUint(p.Range.Start, 10)+"-"+
			strconv.FormatUint(p.Range.End(), 10)+"/"+strconv.FormatUint(p.Size, 10))
		h.Set("Content-Length", strconv.FormatUint(p.Range.Length, 10))
		return http.StatusPartialContent
	}

	if !p.OmitLength {
		h.Set("Content-Length", strconv.FormatUint(p.Size, 10))
	}

	return http.StatusOK
}

// ResetHeaders removes the download headers set by Compose so that an error
// response can be written instead.
func ResetHeaders(h http.Header) {
	for _, k := range []string{
		"X-Robots-Tag", "Content-Type", "Content-Description", "Content-Disposition",
		"Content-Transfer-Encoding", "Accept-Ranges", "Content-Range", "Content-Length",
	} {
		h.Del(k)
	}
}

// ContentTypeByName returns the MIME type registered for the extension of
// name, or application/octet-stream.
func ContentTypeByName(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return defaultContentType
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return defaultContentType
}
