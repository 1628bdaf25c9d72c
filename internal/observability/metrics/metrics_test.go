package metrics

import (
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("source", "client_occurrence"),
		attribute.String("member_id", "123"),
		attribute.String("reason", "missing_pricing"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	if attrs[0].Key != "source" && attrs[1].Key != "source" {
		t.Fatalf("expected source to be retained")
	}
	if attrs[0].Key != "reason" && attrs[1].Key != "reason" {
		t.Fatalf("expected reason to be retained")
	}
}
