package logging

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"trace": TRACE,
		"DEBUG": DEBUG,
		"":      INFO,
		"warn":  WARN,
		"Error": ERROR,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestWriterLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger("test", &buf, WARN)

	l.Info("не должно попасть")
	l.Warn("предупреждение %d", 1)
	l.Error("ошибка")

	out := buf.String()
	assert.NotContains(t, out, "не должно попасть")
	assert.Contains(t, out, "[WARN] [test] предупреждение 1")
	assert.Contains(t, out, "[ERROR] [test] ошибка")
}

func TestNewLoggerWritesFile(t *testing.T) {
	dir := t.TempDir()
	SetLogDir(dir)
	defer SetLogDir("")

	l, err := NewLogger("filetest")
	require.NoError(t, err)
	l.SetLevels(ERROR, DEBUG)
	l.Debug("в файл")
	l.Trace("мимо")
	require.NoError(t, l.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "filetest_"))

	data, err := os.ReadFile(dir + "/" + entries[0].Name())
	require.NoError(t, err)
	assert.Contains(t, string(data), "в файл")
	assert.NotContains(t, string(data), "мимо")
}

func TestManagerReusesLoggers(t *testing.T) {
	lm := GetLoggerManager()
	a := lm.MustGetLogger("manager-test")
	b := lm.MustGetLogger("manager-test")
	assert.Same(t, a, b)
	assert.Contains(t, lm.ListComponents(), "manager-test")

	require.NoError(t, lm.SetLogLevel("manager-test", DEBUG, DEBUG))
	assert.Error(t, lm.SetLogLevel("missing", DEBUG, DEBUG))
}

func TestHexDumpLimits(t *testing.T) {
	assert.Equal(t, "No data", HexDump(nil))
	dump := HexDump(make([]byte, 1024))
	// 256 байт = 16 строк hex.Dump
	assert.Equal(t, 16, strings.Count(dump, "\n"))
}
