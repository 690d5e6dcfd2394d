package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type recorder struct {
	calls [][]any
}

func (r *recorder) record(level, message string, keyvals ...any) {
	r.calls = append(r.calls, append([]any{level, message}, keyvals...))
}

func (r *recorder) Log(m string, kv ...any)   { r.record("log", m, kv...) }
func (r *recorder) Debug(m string, kv ...any) { r.record("debug", m, kv...) }
func (r *recorder) Info(m string, kv ...any)  { r.record("info", m, kv...) }
func (r *recorder) Warn(m string, kv ...any)  { r.record("warn", m, kv...) }
func (r *recorder) Error(m string, kv ...any) { r.record("error", m, kv...) }
func (r *recorder) Fatal(m string, kv ...any) { r.record("fatal", m, kv...) }

func TestFanOutKeepsKeyvals(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	Init(a, b)
	t.Cleanup(func() { Init() })

	Log("plain", "k", 1)
	Info("[Test] hello", "graph", "g_1")

	for _, r := range []*recorder{a, b} {
		assert.Equal(t, [][]any{
			{"log", "plain", "k", 1},
			{"info", "[Test] hello", "graph", "g_1"},
		}, r.calls)
	}
}
