package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextHook_Run(t *testing.T) {
	tests := []struct {
		name      string
		setupCtx  func() context.Context
		wantKeys  []string
		wantEmpty []string
	}{
		{
			name: "cycle and state",
			setupCtx: func() context.Context {
				ctx := WithCycleID(context.Background(), "c-1")
				return WithState(ctx, "refreshing")
			},
			wantKeys: []string{"cycle_id", "state"},
		},
		{
			name: "only cycle",
			setupCtx: func() context.Context {
				return WithCycleID(context.Background(), "c-1")
			},
			wantKeys:  []string{"cycle_id"},
			wantEmpty: []string{"state"},
		},
		{
			name:      "no context values",
			setupCtx:  context.Background,
			wantEmpty: []string{"cycle_id", "state"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := zerolog.New(&buf).Hook(ContextHook{})

			logger.Info().Ctx(tt.setupCtx()).Msg("tick")

			var entry map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

			for _, k := range tt.wantKeys {
				assert.Contains(t, entry, k)
			}
			for _, k := range tt.wantEmpty {
				assert.NotContains(t, entry, k)
			}
		})
	}
}
