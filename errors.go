package glide

import "fmt"

// ErrorKind is the error taxonomy from §7.
type ErrorKind int

const (
	// KindConnection: socket not usable; the request was not guaranteed to
	// have been observed by the server.
	KindConnection ErrorKind = iota
	// KindTimeout: the per-request deadline elapsed.
	KindTimeout
	// KindExecAbort: a transaction was aborted by the server (CROSSSLOT).
	// A WATCH conflict surfaces as a nil EXEC result, not this kind.
	KindExecAbort
	// KindRequest: the server returned an error (WRONGTYPE, NOAUTH, ...);
	// the message is passed through unchanged.
	KindRequest
	// KindClosing: the client is closed or closing. Terminal.
	KindClosing
	// KindConfiguration: bad options at construction.
	KindConfiguration
)

func (k ErrorKind) String() string {
	switch k {
	case KindConnection:
		return "Connection"
	case KindTimeout:
		return "Timeout"
	case KindExecAbort:
		return "ExecAbort"
	case KindRequest:
		return "Request"
	case KindClosing:
		return "Closing"
	case KindConfiguration:
		return "Configuration"
	default:
		return "Unknown"
	}
}

// RequestError wraps an error reply the server returned for a request.
// It is the glide-side analogue of the teacher's Error type.
type RequestError struct {
	Kind ErrorKind
	Msg  string
}

func (e RequestError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// ClientError is produced by the client itself: connection failures,
// timeouts, or local misuse. It is the glide-side analogue of the
// teacher's ClientError type, extended with the same Kind enum so callers
// can use one switch for both error types.
type ClientError struct {
	Kind ErrorKind
	Msg  string
	// Err, if set, is the underlying cause (a net.Error, context error,
	// etc.), reachable via errors.Unwrap.
	Err error
}

func (e ClientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e ClientError) Unwrap() error { return e.Err }

// Temporary reports whether a request might succeed on a future attempt.
// The retry policy (C3) consults this for connection-level recovery
// decisions; it never implies automatic request-level retry, which is
// restricted to explicit MOVED/ASK per §4.3.
func (e ClientError) Temporary() bool {
	switch e.Kind {
	case KindConnection, KindTimeout:
		return true
	default:
		return false
	}
}

func newClientError(kind ErrorKind, msg string, cause error) ClientError {
	return ClientError{Kind: kind, Msg: msg, Err: cause}
}

// ErrMaxRedirections is returned when a single request has been
// redirected more than maxRedirections times (§4.5).
var ErrMaxRedirections = RequestError{Kind: KindRequest, Msg: "too many cluster redirections"}
