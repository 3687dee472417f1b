package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		level, encoding string
		want            zapcore.Level
	}{
		{"info", "json", zapcore.InfoLevel},
		{"debug", "console", zapcore.DebugLevel},
		{"warn", "", zapcore.WarnLevel},
	}
	for _, tt := range tests {
		t.Run(tt.level+"/"+tt.encoding, func(t *testing.T) {
			log, err := New(tt.level, tt.encoding)
			require.NoError(t, err)
			assert.True(t, log.Core().Enabled(tt.want))
			assert.False(t, log.Core().Enabled(tt.want-1))
		})
	}
}

func TestNew_Rejects(t *testing.T) {
	_, err := New("loud", "json")
	assert.Error(t, err)

	_, err = New("info", "xml")
	assert.ErrorContains(t, err, "unknown log encoding")
}
