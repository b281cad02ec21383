package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, s *miniredis.Miniredis, args ...string) (string, error) {
	t.Helper()

	var out, errOut bytes.Buffer
	root := NewRootCommand(&errOut)
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--addr", s.Addr()}, args...))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func lines(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func TestPutGetLenClear(t *testing.T) {
	s := miniredis.RunT(t)

	_, err := run(t, s, "put", "jobs", "hello", `{"id":1}`, "42")
	require.NoError(t, err)

	raw, err := s.List("hotqueue:jobs")
	require.NoError(t, err)
	require.Equal(t, []string{`"hello"`, `{"id":1}`, `42`}, raw)

	out, err := run(t, s, "len", "jobs")
	require.NoError(t, err)
	require.Equal(t, "3\n", out)

	out, err = run(t, s, "get", "jobs")
	require.NoError(t, err)
	require.Equal(t, "\"hello\"\n", out)

	out, err = run(t, s, "get", "jobs", "--block", "--timeout", "1s")
	require.NoError(t, err)
	require.Equal(t, "{\"id\":1}\n", out)

	_, err = run(t, s, "clear", "jobs")
	require.NoError(t, err)
	require.False(t, s.Exists("hotqueue:jobs"))

	out, err = run(t, s, "get", "jobs")
	require.NoError(t, err)
	require.Empty(t, out, "empty queue prints nothing")
}

func TestPrefixFlag(t *testing.T) {
	s := miniredis.RunT(t)

	_, err := run(t, s, "--prefix", "app", "put", "jobs", "x")
	require.NoError(t, err)
	require.True(t, s.Exists("app:jobs"))
	require.False(t, s.Exists("hotqueue:jobs"))
}

func TestConsumeNoBlock(t *testing.T) {
	s := miniredis.RunT(t)

	_, err := run(t, s, "put", "jobs", "a", "b", "c")
	require.NoError(t, err)

	out, err := run(t, s, "consume", "jobs", "--no-block")
	require.NoError(t, err)
	require.Equal(t, []string{`"a"`, `"b"`, `"c"`}, lines(out))
}

func TestConsumeTimeout(t *testing.T) {
	s := miniredis.RunT(t)

	_, err := run(t, s, "put", "jobs", "1", "2", "3", "4")
	require.NoError(t, err)

	start := time.Now()
	out, err := run(t, s, "consume", "jobs", "--timeout", "1s", "--workers", "2")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"1", "2", "3", "4"}, lines(out))
	require.GreaterOrEqual(t, time.Since(start), 900*time.Millisecond)
}

func TestConsumeWithMetrics(t *testing.T) {
	s := miniredis.RunT(t)

	_, err := run(t, s, "put", "jobs", "a")
	require.NoError(t, err)

	out, err := run(t, s, "consume", "jobs", "--no-block", "--metrics-addr", "127.0.0.1:0")
	require.NoError(t, err)
	require.Equal(t, []string{`"a"`}, lines(out))
}

func TestArgsValidation(t *testing.T) {
	s := miniredis.RunT(t)

	_, err := run(t, s, "put", "jobs")
	require.Error(t, err)

	_, err = run(t, s, "get", " ")
	require.Error(t, err)
}

func TestParseMessage(t *testing.T) {
	require.Equal(t, "plain text", parseMessage("plain text"))
	require.Equal(t, float64(7), parseMessage("7"))
	require.Equal(t, map[string]any{"a": true}, parseMessage(`{"a":true}`))
}
