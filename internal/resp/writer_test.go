package resp

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteCommandFraming(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	require.NoError(t, WriteCommand(w, "SET", "foo", "bar"))
	require.NoError(t, w.Flush())

	require.Equal(t, "*3\r\n$3\r\nSET\r\n$3\r\nfoo\r\n$3\r\nbar\r\n", buf.String())
}

func TestWriteCommandIntArg(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	require.NoError(t, WriteCommand(w, "INCRBY", "counter", 5))
	require.NoError(t, w.Flush())

	require.Equal(t, "*3\r\n$6\r\nINCRBY\r\n$7\r\ncounter\r\n$1\r\n5\r\n", buf.String())
}

func TestWriteCommandNoArgs(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	require.NoError(t, WriteCommand(w, "PING"))
	require.NoError(t, w.Flush())

	require.Equal(t, "*1\r\n$4\r\nPING\r\n", buf.String())
}
