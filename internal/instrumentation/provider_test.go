package instrumentation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProviderDisabled(t *testing.T) {
	p, err := NewProvider(t.Context(), Config{Enabled: false})
	require.NoError(t, err)

	assert.False(t, p.Enabled())
	require.NotNil(t, p.Metrics(), "disabled provider still hands out a recorder")

	// All recording paths must be safe no-ops.
	p.Metrics().RecordHTTPRequest(t.Context(), "POST", "/webhook", 200, 0)
	p.Metrics().RecordMessageTurn(t.Context(), "executed")
	p.Metrics().RecordInterpretation(t.Context(), "success", 0)
	p.Metrics().RecordGoogleAPIOperation(t.Context(), "calendar", "insert", "success", 0)
	p.Metrics().RecordOAuthAuth(t.Context(), "success")

	assert.NoError(t, p.Shutdown(t.Context()))
}

func TestNewProviderEnabled(t *testing.T) {
	p, err := NewProvider(t.Context(), DefaultConfig())
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, p.Shutdown(t.Context()))
	}()

	assert.True(t, p.Enabled())
	require.NotNil(t, p.Metrics())

	p.Metrics().RecordHTTPRequest(t.Context(), "POST", "/webhook", 200, 0)
	p.Metrics().RecordMessageTurn(t.Context(), "executed")
	p.Metrics().RecordInterpretation(t.Context(), "error", 0)
	p.Metrics().RecordGoogleAPIOperation(t.Context(), "calendar", "list", "success", 0)
	p.Metrics().RecordOAuthAuth(t.Context(), "failure")
}

func TestMetricsZeroValueIsNoop(t *testing.T) {
	var m Metrics

	// Must not panic without initialized instruments.
	m.RecordHTTPRequest(t.Context(), "GET", "/healthz", 200, 0)
	m.RecordMessageTurn(t.Context(), "duplicate")
	m.RecordInterpretation(t.Context(), "success", 0)
	m.RecordGoogleAPIOperation(t.Context(), "oauth", "exchange", "error", 0)
	m.RecordOAuthAuth(t.Context(), "success")
}
