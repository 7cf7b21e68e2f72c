// SPDX-License-Identifier: MIT
package telemetry

import (
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestHTTPAttributes(t *testing.T) {
	attrs := HTTPAttributes("GET", "/entities/{type}/{id}", "http://localhost:8080/entities/node/1", 200)

	if len(attrs) != 4 {
		t.Fatalf("Expected 4 attributes, got %d", len(attrs))
	}

	verifyAttribute(t, attrs, HTTPMethodKey, "GET")
	verifyAttribute(t, attrs, HTTPRouteKey, "/entities/{type}/{id}")
	verifyIntAttribute(t, attrs, HTTPStatusCodeKey, 200)
}

func TestFormatterAttributes(t *testing.T) {
	tests := []struct {
		name       string
		targetType string
		field      string
		wantLen    int
	}{
		{name: "all fields", targetType: "node", field: "field_tabs", wantLen: 4},
		{name: "no target type", targetType: "", field: "field_tabs", wantLen: 3},
		{name: "only style and count", wantLen: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs := FormatterAttributes(tt.targetType, tt.field, "accordion", 3)
			if len(attrs) != tt.wantLen {
				t.Fatalf("Expected %d attributes, got %d", tt.wantLen, len(attrs))
			}
			verifyAttribute(t, attrs, FormatterStyleKey, "accordion")
			verifyIntAttribute(t, attrs, FormatterReferencesKey, 3)
		})
	}
}

func TestRenderAttributes(t *testing.T) {
	attrs := RenderAttributes("node", "1", "field_tabs", "default")
	if len(attrs) != 4 {
		t.Fatalf("Expected 4 attributes, got %d", len(attrs))
	}
	verifyAttribute(t, attrs, RenderEntityTypeKey, "node")
	verifyAttribute(t, attrs, RenderViewModeKey, "default")
}

func TestErrorAttributes(t *testing.T) {
	attrs := ErrorAttributes(errors.New("boom"), "load_failed")
	if len(attrs) != 2 {
		t.Fatalf("Expected 2 attributes, got %d", len(attrs))
	}
	verifyAttribute(t, attrs, ErrorTypeKey, "load_failed")
}

func verifyAttribute(t *testing.T, attrs []attribute.KeyValue, key, want string) {
	t.Helper()
	for _, a := range attrs {
		if string(a.Key) == key {
			if got := a.Value.AsString(); got != want {
				t.Errorf("attribute %s = %q, want %q", key, got, want)
			}
			return
		}
	}
	t.Errorf("attribute %s not found", key)
}

func verifyIntAttribute(t *testing.T, attrs []attribute.KeyValue, key string, want int) {
	t.Helper()
	for _, a := range attrs {
		if string(a.Key) == key {
			if got := a.Value.AsInt64(); got != int64(want) {
				t.Errorf("attribute %s = %d, want %d", key, got, want)
			}
			return
		}
	}
	t.Errorf("attribute %s not found", key)
}
