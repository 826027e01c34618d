package ferry

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// DownloadRepo defines the interface for download persistence.
// Implementations must handle concurrent access safely; the counter update in
// RecordDownload must be a single atomic increment, never a read-modify-write.
//
// All methods accept a context for cancellation and timeout control.
type DownloadRepo interface {
	// Get retrieves a download by its numeric ID.
	// Returns ErrNotFound if no such download exists.
	Get(ctx context.Context, id int64) (Download, error)

	// GetByName retrieves a download by its unique name.
	// Returns ErrNotFound if no such download exists.
	GetByName(ctx context.Context, name string) (Download, error)

	// Upsert creates or updates a download keyed by name.
	//
	// Returns:
	//   - Download: The stored download with ID and timestamps
	//   - bool: true if a new entry was created, false if an existing one was updated
	//   - error: Any database or validation error
	Upsert(ctx context.Context, d Download) (Download, bool, error)

	// Delete removes a download and all of its tracking events.
	// Returns ErrNotFound if no such download exists.
	Delete(ctx context.Context, id int64) error

	// List retrieves a page of downloads ordered by ID.
	List(ctx context.Context, q ListQuery) (ListResult, error)

	// RecordDownload adds one to the counter of e.DownloadID and appends e in
	// a single transaction. It returns the event with ID and timestamp set.
	// Returns ErrNotFound if no such download exists.
	RecordDownload(ctx context.Context, e Event) (Event, error)

	// ListEvents returns the most recent events for a download, newest first.
	ListEvents(ctx context.Context, downloadID int64, limit int) ([]Event, error)

	// PruneEvents deletes events created before the given time and returns
	// the number of rows removed.
	PruneEvents(ctx context.Context, before time.Time) (int64, error)
}

// OptionStore persists small key/value flags shared by every request, such
// as the accelerated transfer availability marker. Last writer wins.
type OptionStore interface {
	// GetOption returns ErrNotFound if the key was never set.
	GetOption(ctx context.Context, key string) (string, error)
	SetOption(ctx context.Context, key, value string) error
}

// FileStorage defines the interface for the upload directory that imported
// downloads are written to.
type FileStorage interface {
	// Write atomically stores content at the storage-relative path,
	// creating parent directories as needed.
	Write(ctx context.Context, path string, content io.Reader) (SaveResult, error)

	// Delete removes a file. Returns ErrNotFound if it does not exist.
	Delete(ctx context.Context, path string) error

	// List walks the storage tree and returns every file.
	List(ctx context.Context) ([]FileEntry, error)

	// Dir returns the absolute directory backing the storage.
	Dir() string
}

// EncodeCursor encodes the last seen ID to an opaque pagination cursor.
func EncodeCursor(id int64) string {
	return base64.URLEncoding.EncodeToString([]byte("id|" + strconv.FormatInt(id, 10)))
}

// DecodeCursor decodes a pagination cursor. An empty cursor decodes to 0.
func DecodeCursor(cursor string) (int64, error) {
	if cursor == "" {
		return 0, nil
	}

	decoded, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return 0, fmt.Errorf("decode cursor: invalid encoding: %w", err)
	}

	prefix, value, ok := strings.Cut(string(decoded), "|")
	if !ok || prefix != "id" {
		return 0, fmt.Errorf("decode cursor: invalid format")
	}

	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("decode cursor: invalid id: %q", value)
	}

	return id, nil
}

// EscapeLikePattern escapes special LIKE characters (%, _, \) to prevent SQL injection.
func EscapeLikePattern(pattern string) string {
	pattern = strings.ReplaceAll(pattern, `\`, `\\`)
	pattern = strings.ReplaceAll(pattern, `%`, `\%`)
	pattern = strings.ReplaceAll(pattern, `_`, `\_`)
	return pattern
}
