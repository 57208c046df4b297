package log

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

type recordingLogger struct {
	entries []string
}

func (l *recordingLogger) Info(_ map[string]any, msg string)  { l.entries = append(l.entries, "INFO:"+msg) }
func (l *recordingLogger) Error(_ map[string]any, msg string) { l.entries = append(l.entries, "ERROR:"+msg) }
func (l *recordingLogger) Debug(_ map[string]any, msg string) { l.entries = append(l.entries, "DEBUG:"+msg) }
func (l *recordingLogger) Warn(_ map[string]any, msg string)  { l.entries = append(l.entries, "WARN:"+msg) }
func (l *recordingLogger) Panic(_ map[string]any, msg string) { l.entries = append(l.entries, "PANIC:"+msg) }
func (l *recordingLogger) Fatal(_ map[string]any, msg string) { l.entries = append(l.entries, "FATAL:"+msg) }

func swapGlobal(t *testing.T, l Logger) {
	t.Helper()
	orig := GetLogger()
	SetLogger(l)
	t.Cleanup(func() { SetLogger(orig) })
}

func TestZapLogger_AllLevels(t *testing.T) {
	swapGlobal(t, newZapLogger(true, zapcore.DebugLevel))

	Debug(map[string]any{"key": "value", "n": 42, "err": errors.New("boom")}, "debug")
	Info(nil, "info")
	Warn(nil, "warn")
	Error(nil, "error")

	assert.Panics(t, func() { Panic(nil, "panic") })
	_ = Sync() // stderr may reject fsync
}

func TestGlobalHelpersDelegate(t *testing.T) {
	rec := &recordingLogger{}
	swapGlobal(t, rec)

	Info(nil, "a")
	Error(nil, "b")
	Debug(nil, "c")
	Warn(nil, "d")
	Panic(nil, "e")
	Fatal(nil, "f")

	assert.Equal(t, []string{"INFO:a", "ERROR:b", "DEBUG:c", "WARN:d", "PANIC:e", "FATAL:f"}, rec.entries)
	assert.NoError(t, Sync(), "loggers without sync support are a no-op")
}

func TestConfigure(t *testing.T) {
	swapGlobal(t, &recordingLogger{})

	tests := []struct {
		env, level string
		wantErr    bool
	}{
		{"dev", "debug", false},
		{"prod", "info", false},
		{"prod", "WARNING", false},
		{"dev", " error ", false},
		{"dev", "notalevel", true},
	}
	for _, tt := range tests {
		t.Run(tt.env+"/"+tt.level, func(t *testing.T) {
			err := Configure(tt.env, tt.level)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			_, isZap := GetLogger().(*zapLogger)
			assert.True(t, isZap)
		})
	}
}

func TestNoopLogger(t *testing.T) {
	swapGlobal(t, NewNoopLogger())

	assert.NotPanics(t, func() {
		Debug(nil, "debug")
		Info(nil, "info")
		Warn(nil, "warn")
		Error(nil, "error")
		Panic(nil, "panic")
		Fatal(nil, "fatal")
	})
}
