package logging

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLogFilePath(t *testing.T) {
	sessionStart := time.Date(2026, 2, 12, 21, 38, 36, 0, time.UTC)

	tests := []struct {
		name    string
		logsDir string
		appName string
		want    string
	}{
		{
			name:    "basic path",
			logsDir: "hexatlaslogs",
			appName: "hexatlas",
			want:    filepath.Join("hexatlaslogs", "hexatlas.20260212_213836.log"),
		},
		{
			name:    "relative path with dot",
			logsDir: "./hexatlaslogs",
			appName: "hexatlas",
			want:    filepath.Join(".", "hexatlaslogs", "hexatlas.20260212_213836.log"),
		},
		{
			name:    "absolute path",
			logsDir: filepath.Join("/var", "log", "hexatlas"),
			appName: "hexatlas",
			want:    filepath.Join("/var", "log", "hexatlas", "hexatlas.20260212_213836.log"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LogFilePath(tt.logsDir, tt.appName, sessionStart)
			assert.Equal(t, tt.want, got)
		})
	}
}
