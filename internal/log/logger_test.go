package log

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		env   string
		level string
		want  zerolog.Level
	}{
		{env: "production", level: "", want: zerolog.InfoLevel},
		{env: "development", level: "", want: zerolog.DebugLevel},
		{env: "production", level: "DEBUG", want: zerolog.DebugLevel},
		{env: "development", level: " warn ", want: zerolog.WarnLevel},
		{env: "development", level: "error", want: zerolog.ErrorLevel},
		{env: "production", level: "verbose", want: zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.env+"/"+tt.level, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.env, tt.level))
		})
	}
}
