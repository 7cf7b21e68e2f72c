// SPDX-License-Identifier: MIT
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"
	HTTPUserAgentKey  = "http.user_agent"

	// Formatter attributes
	FormatterTargetTypeKey = "formatter.target_type"
	FormatterFieldKey      = "formatter.field"
	FormatterStyleKey      = "formatter.style"
	FormatterReferencesKey = "formatter.references"

	// Field render attributes
	RenderEntityTypeKey = "render.entity_type"
	RenderEntityIDKey   = "render.entity_id"
	RenderFieldKey      = "render.field"
	RenderViewModeKey   = "render.view_mode"
	RenderCacheHitKey   = "render.cache_hit"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// FormatterAttributes creates tab formatter span attributes.
func FormatterAttributes(targetType, field, style string, references int) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 4)
	if targetType != "" {
		attrs = append(attrs, attribute.String(FormatterTargetTypeKey, targetType))
	}
	if field != "" {
		attrs = append(attrs, attribute.String(FormatterFieldKey, field))
	}
	attrs = append(attrs,
		attribute.String(FormatterStyleKey, style),
		attribute.Int(FormatterReferencesKey, references),
	)
	return attrs
}

// RenderAttributes creates field render span attributes.
func RenderAttributes(entityType, entityID, field, viewMode string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(RenderEntityTypeKey, entityType),
		attribute.String(RenderEntityIDKey, entityID),
		attribute.String(RenderFieldKey, field),
		attribute.String(RenderViewModeKey, viewMode),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
