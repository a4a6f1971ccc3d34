// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared across spans.
const (
	ModelNameKey    = "tide.model"
	ModelFormatKey  = "tide.format"
	VariableKey     = "tide.variable"
	PointCountKey   = "tide.points"
	ConstituentsKey = "tide.constituents"
	MethodKey       = "tide.method"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// ExtractionAttributes describes one extraction request span.
func ExtractionAttributes(model, format, variable, method string, points int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(ModelNameKey, model),
		attribute.String(ModelFormatKey, format),
		attribute.String(VariableKey, variable),
		attribute.String(MethodKey, method),
		attribute.Int(PointCountKey, points),
	}
}

// ConstituentAttributes annotates spans with the constituents served.
func ConstituentAttributes(ids []string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(ConstituentsKey, len(ids)),
		attribute.StringSlice("tide.constituent_ids", ids),
	}
}

// ErrorAttributes marks a span failed with a classification.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
