package resp

import (
	"bufio"
	"fmt"
	"strconv"

	"github.com/gomodule/redigo/redis"
)

// WriteCommand frames a server command as a RESP bulk-string array, the
// only request shape the wire protocol uses regardless of RESP2/RESP3.
// Argument flattening (ints, []byte, string, nested redis.Args) is
// delegated to redigo's redis.Args helper so command builders can build
// their argument list the same way redigo-based code in the wild does,
// rather than hand-rolling per-type stringification here.
func WriteCommand(w *bufio.Writer, name string, args ...interface{}) error {
	flat := redis.Args{}.Add(name).AddFlat(args)
	return writeArray(w, flat)
}

func writeArray(w *bufio.Writer, args []interface{}) error {
	if err := writeHeader(w, '*', len(args)); err != nil {
		return err
	}
	for _, a := range args {
		b, err := toBulk(a)
		if err != nil {
			return err
		}
		if err := writeBulk(w, b); err != nil {
			return err
		}
	}
	return nil
}

func writeHeader(w *bufio.Writer, prefix byte, n int) error {
	if err := w.WriteByte(prefix); err != nil {
		return err
	}
	if _, err := w.WriteString(strconv.Itoa(n)); err != nil {
		return err
	}
	_, err := w.WriteString("\r\n")
	return err
}

func writeBulk(w *bufio.Writer, b []byte) error {
	if err := writeHeader(w, '$', len(b)); err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return err
	}
	_, err := w.WriteString("\r\n")
	return err
}

// toBulk stringifies one flattened argument the way redigo's own (private)
// conn.writeArg does for the scalar kinds command builders pass through.
func toBulk(a interface{}) ([]byte, error) {
	switch v := a.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	case int:
		return strconv.AppendInt(nil, int64(v), 10), nil
	case int64:
		return strconv.AppendInt(nil, v, 10), nil
	case uint32:
		return strconv.AppendUint(nil, uint64(v), 10), nil
	case uint64:
		return strconv.AppendUint(nil, v, 10), nil
	case float64:
		return strconv.AppendFloat(nil, v, 'g', -1, 64), nil
	case bool:
		if v {
			return []byte("1"), nil
		}
		return []byte("0"), nil
	case nil:
		return nil, fmt.Errorf("resp: nil command argument")
	default:
		return []byte(fmt.Sprint(v)), nil
	}
}
