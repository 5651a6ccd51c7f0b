package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{in: "", want: LevelInfo},
		{in: "info", want: LevelInfo},
		{in: "warn", want: LevelWarning},
		{in: "warning", want: LevelWarning},
		{in: "error", want: LevelError},
		{in: "fatal", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSeverityOrder(t *testing.T) {
	assert.Less(t, Level("debug").Severity(), LevelInfo.Severity())
	assert.Less(t, LevelInfo.Severity(), LevelWarning.Severity())
	assert.Less(t, LevelWarning.Severity(), LevelError.Severity())
}
