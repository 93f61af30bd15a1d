package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindnote/counsel/internal/config"
)

func TestSetupTracing_Disabled(t *testing.T) {
	for _, cfg := range []*config.Config{
		{Telemetry: config.TelemetryCfg{Enabled: false, OtlpEndpoint: "localhost:4317"}},
		{Telemetry: config.TelemetryCfg{Enabled: true}},
	} {
		tp, err := SetupTracing(context.Background(), cfg)
		require.NoError(t, err)
		assert.Nil(t, tp)
	}
}

func TestOtlpHostPort(t *testing.T) {
	assert.Equal(t, "collector:4317", otlpHostPort("http://collector:4317"))
	assert.Equal(t, "collector:4317", otlpHostPort("https://collector:4317"))
	assert.Equal(t, "collector:4317", otlpHostPort("collector:4317"))
}

func TestSampler(t *testing.T) {
	assert.Contains(t, sampler(0).Description(), "AlwaysOnSampler")
	assert.Contains(t, sampler(1.5).Description(), "AlwaysOnSampler")
	assert.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}
