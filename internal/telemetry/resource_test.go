package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/onlythejoe/void-engine/internal/persist"
)

func TestNewResource_TagsServiceAndFormat(t *testing.T) {
	res, err := newResource(context.Background(), "void-engine-test")
	if err != nil {
		t.Fatalf("newResource: %v", err)
	}
	set := res.Set()

	want := map[attribute.Key]string{
		semconv.ServiceNameKey:      "void-engine-test",
		semconv.ServiceNamespaceKey: Namespace,
		"void.memoryfield.format":   persist.FormatVersion,
	}
	for k, v := range want {
		got, ok := set.Value(k)
		if !ok {
			t.Fatalf("missing attribute %s", k)
		}
		if got.AsString() != v {
			t.Fatalf("%s: want %q, got %q", k, v, got.AsString())
		}
	}
}
