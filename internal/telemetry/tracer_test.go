// SPDX-License-Identifier: MIT

package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestNewProviderDisabled(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	require.NoError(t, p.Shutdown(context.Background()))
	assert.NotNil(t, Tracer("test"))
}

func TestNewProviderRejectsUnknownExporter(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{
		Enabled:      true,
		ExporterType: "carrier-pigeon",
	})
	require.Error(t, err)
}

func TestExtractionAttributes(t *testing.T) {
	attrs := ExtractionAttributes("CATS2008", "OTIS", "z", "spline", 42)
	require.Len(t, attrs, 5)
	m := map[attribute.Key]attribute.Value{}
	for _, kv := range attrs {
		m[kv.Key] = kv.Value
	}
	assert.Equal(t, "CATS2008", m[ModelNameKey].AsString())
	assert.Equal(t, int64(42), m[PointCountKey].AsInt64())
}

func TestErrorAttributes(t *testing.T) {
	attrs := ErrorAttributes("not_found")
	require.Len(t, attrs, 2)
	assert.Equal(t, attribute.Key(ErrorKey), attrs[0].Key)
	assert.True(t, attrs[0].Value.AsBool())
}
