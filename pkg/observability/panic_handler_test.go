package observability

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPanicError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	assert.NoError(t, PanicError(logger, "billing customer", nil))
	assert.Zero(t, buf.Len())

	err := func() (err error) {
		defer func() { err = PanicError(logger, "billing customer", recover()) }()
		panic("provider exploded")
	}()
	require.Error(t, err)
	assert.Equal(t, "panic: provider exploded", err.Error())

	entries := decodeEntries(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "PANIC recovered", entries[0]["msg"])
	assert.Equal(t, "billing customer", entries[0]["context"])
	assert.Contains(t, entries[0]["stack"], "panic_handler_test.go")
}

func TestRecoverPanicWithCallback(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)
	called := false

	func() {
		defer RecoverPanicWithCallback(logger, "scheduled run", func() { called = true })
		panic("boom")
	}()

	assert.True(t, called)
	entries := decodeEntries(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "PANIC recovered", entries[0]["msg"])
	assert.Equal(t, "scheduled run", entries[0]["context"])
}
