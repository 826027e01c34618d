package ferry

import (
	"strconv"
	"strings"
)

// Range is the parsed form of a single-range HTTP Range header.
//
// When IsValid is set, Start+Length-1 is the last byte to send and lies
// strictly inside the file. When no range was requested and the size is
// known, Length is the whole file.
type Range struct {
	Start     uint64
	Length    uint64
	IsRequest bool
	IsValid   bool
}

// End returns the offset of the last byte covered by the range.
func (r Range) End() uint64 {
	if r.Length == 0 {
		return r.Start
	}
	return r.Start + r.Length - 1
}

// ParseRange parses the Range header against a file of the given size.
//
// A size of 0 means the size is unknown and the request is never treated as
// a range request. Multi-range headers are always invalid. Malformed numbers
// fall back to 0 for the start and to the full size for the end instead of
// failing; the end is then clamped to size-1.
func ParseRange(header string, size uint64) Range {
	rng := Range{}

	if size == 0 {
		return rng
	}

	last := size - 1
	rng.Length = size

	if header == "" {
		return rng
	}

	rng.IsRequest = true

	_, spec, _ := strings.Cut(header, "=")
	spec = strings.TrimSpace(spec)

	if strings.Contains(spec, ",") {
		return rng
	}

	var start, end uint64
	if strings.HasPrefix(spec, "-") {
		// last N bytes
		suffix := parseOffset(spec[1:], 0)
		if suffix >= size {
			start = 0
		} else {
			start = size - suffix
		}
		end = last
	} else {
		first, second, _ := strings.Cut(spec, "-")
		start = parseOffset(first, 0)
		end = parseOffset(second, size)
	}

	if end > last {
		end = last
	}

	if start > end || start > last || end >= size {
		return rng
	}

	rng.Start = start
	rng.Length = end - start + 1
	rng.IsValid = true

	return rng
}

func parseOffset(s string, fallback uint64) uint64 {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return fallback
	}
	return n
}
