// Package resp implements a RESP2/RESP3 frame reader and writer.
//
// It plays the role the teacher's msgpack encoder/decoder pair played for
// Tarantool's wire format: it knows how to frame and deframe one reply at a
// time off a buffered connection, and it stops there. It does not know
// about GET, SET, or any other server command — those are built by the
// (out of scope) command-builder layer on top of WriteCommand/ReadValue.
package resp

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// Kind tags the RESP type of a decoded Value.
type Kind byte

const (
	KindSimpleString Kind = '+'
	KindError        Kind = '-'
	KindInteger      Kind = ':'
	KindBulkString   Kind = '$'
	KindArray        Kind = '*'
	// RESP3-only kinds. A RESP2 connection never produces these; ReadValue
	// decodes them whenever they appear, whatever protocol was negotiated.
	KindNull    Kind = '_'
	KindDouble  Kind = ','
	KindBoolean Kind = '#'
	KindBigNum  Kind = '('
	KindBulkErr Kind = '!'
	KindVerbStr Kind = '='
	KindMap     Kind = '%'
	KindSet     Kind = '~'
	KindPush    Kind = '>'
)

// Value is an opaque, lazily-materialized RESP reply. The core never
// decodes further than this: byte-accurate length framing plus enough
// structure to detect errors and MOVED/ASK redirections is all the
// dispatcher, router and retry policy need. Full native-Go decoding is
// deferred to the (out of scope) command-result layer, per the
// "deferred response materialization" design note.
type Value struct {
	Kind Kind
	// Raw holds the scalar payload for simple/bulk/error/integer/double
	// kinds, not including the type byte or trailing CRLF.
	Raw []byte
	// Elems holds recursively decoded children for Array/Map/Set/Push.
	Elems []Value
	// IsNilBulk is set for a RESP2 "$-1\r\n" / RESP3 "_\r\n" null reply.
	IsNilBulk bool
}

// ErrKind classifies a server error reply by its leading word, the only
// part of the error text the core inspects.
type ErrKind int

const (
	ErrNone ErrKind = iota
	ErrMoved
	ErrAsk
	ErrTryAgain
	ErrClusterDown
	ErrCrossSlot
	ErrExecAbort
	ErrNoAuth
	ErrOther
)

// AsError reports whether the Value is a RESP error reply and classifies
// it. Ok is false for any non-error Value.
func (v Value) AsError() (kind ErrKind, addr string, slot int, ok bool) {
	if v.Kind != KindError && v.Kind != KindBulkErr {
		return ErrNone, "", 0, false
	}
	msg := string(v.Raw)
	word, rest := splitWord(msg)
	switch word {
	case "MOVED":
		s, a := parseRedirect(rest)
		return ErrMoved, a, s, true
	case "ASK":
		s, a := parseRedirect(rest)
		return ErrAsk, a, s, true
	case "TRYAGAIN":
		return ErrTryAgain, "", 0, true
	case "CLUSTERDOWN":
		return ErrClusterDown, "", 0, true
	case "CROSSSLOT":
		return ErrCrossSlot, "", 0, true
	case "EXECABORT":
		return ErrExecAbort, "", 0, true
	case "NOAUTH", "WRONGPASS":
		return ErrNoAuth, "", 0, true
	default:
		return ErrOther, "", 0, true
	}
}

func splitWord(s string) (word, rest string) {
	for i := 0; i < len(s); i++ {
		if s[i] == ' ' {
			return s[:i], s[i+1:]
		}
	}
	return s, ""
}

// parseRedirect parses the "<slot> <host>:<port>" tail of a MOVED/ASK
// error.
func parseRedirect(rest string) (slot int, addr string) {
	word, tail := splitWord(rest)
	n, err := strconv.Atoi(word)
	if err != nil {
		return 0, ""
	}
	return n, tail
}

// Result materializes a Value into a plain Go value: nil, int64, float64,
// bool, string, []byte, []interface{}, or map[string]interface{}. It is a
// convenience used by tests, Client.Do and CLUSTER SLOTS parsing; production command builders
// are expected to decode Raw/Elems themselves for their specific shape.
func (v Value) Result() (interface{}, error) {
	switch v.Kind {
	case KindNull:
		return nil, nil
	case KindSimpleString:
		return string(v.Raw), nil
	case KindInteger:
		n, err := strconv.ParseInt(string(v.Raw), 10, 64)
		return n, err
	case KindDouble:
		f, err := strconv.ParseFloat(string(v.Raw), 64)
		return f, err
	case KindBoolean:
		return len(v.Raw) > 0 && v.Raw[0] == 't', nil
	case KindBulkString, KindVerbStr, KindBigNum:
		if v.IsNilBulk {
			return nil, nil
		}
		return append([]byte(nil), v.Raw...), nil
	case KindError, KindBulkErr:
		return nil, errors.New(string(v.Raw))
	case KindArray, KindSet, KindPush:
		if v.Elems == nil {
			return nil, nil
		}
		out := make([]interface{}, len(v.Elems))
		for i, e := range v.Elems {
			r, err := e.Result()
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	case KindMap:
		out := make(map[string]interface{}, len(v.Elems)/2)
		for i := 0; i+1 < len(v.Elems); i += 2 {
			k, err := v.Elems[i].Result()
			if err != nil {
				return nil, err
			}
			ks, ok := k.(string)
			if !ok {
				if b, ok := k.([]byte); ok {
					ks = string(b)
				}
			}
			val, err := v.Elems[i+1].Result()
			if err != nil {
				return nil, err
			}
			out[ks] = val
		}
		return out, nil
	default:
		return nil, fmt.Errorf("resp: unknown value kind %q", byte(v.Kind))
	}
}

// Decimal parses a bulk-string or simple-string reply as an exact decimal,
// used for INCRBYFLOAT/HINCRBYFLOAT replies where float64 would lose
// precision.
func (v Value) Decimal() (decimal.Decimal, error) {
	switch v.Kind {
	case KindBulkString, KindSimpleString, KindVerbStr, KindBigNum:
		if v.IsNilBulk {
			return decimal.Decimal{}, errors.New("resp: nil reply has no decimal value")
		}
		return decimal.NewFromString(string(v.Raw))
	case KindDouble:
		return decimal.NewFromString(string(v.Raw))
	default:
		return decimal.Decimal{}, fmt.Errorf("resp: value kind %q is not decimal-shaped", byte(v.Kind))
	}
}

// bufioReader is a buffered-reader interface satisfied by *bufio.Reader;
// ReadValue itself takes a concrete *bufio.Reader.
type bufioReader interface {
	ReadByte() (byte, error)
	ReadSlice(delim byte) ([]byte, error)
	Discard(n int) (int, error)
	Peek(n int) ([]byte, error)
}

var _ bufioReader = (*bufio.Reader)(nil)
