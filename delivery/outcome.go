package delivery

import (
	"github.com/ferrydl/ferry"
)

// Kind is the control-flow result of a strategy attempt.
type Kind int

const (
	// Ok means the response is complete.
	Ok Kind = iota
	// Retry means nothing was written and the next strategy should run.
	Retry
	// Fatal ends the chain with Err.
	Fatal
)

func (k Kind) String() string {
	switch k {
	case Ok:
		return "ok"
	case Retry:
		return "retry"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Outcome describes how a strategy attempt ended.
type Outcome struct {
	Kind     Kind
	Strategy string
	// Reason is a short human readable cause for Retry outcomes.
	Reason string
	Err    error
	// Committed is set once a status line has been written.
	Committed bool
	// Partial is set when the client asked for a byte range.
	Partial bool
	Bytes   int64
}

func ok(partial bool, n int64) Outcome {
	return Outcome{Kind: Ok, Partial: partial, Bytes: n}
}

func retry(reason string) Outcome {
	return Outcome{Kind: Retry, Reason: reason}
}

func fatal(err error) Outcome {
	return Outcome{Kind: Fatal, Err: err}
}

// Job is everything a strategy needs to serve one request.
type Job struct {
	Download ferry.Download
	Locator  ferry.Locator
	Request  ferry.RequestContext
}
