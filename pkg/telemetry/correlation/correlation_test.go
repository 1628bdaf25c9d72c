package correlation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnsureCorrelationIDGeneratesWhenMissing(t *testing.T) {
	ctx, cid := EnsureCorrelationID(context.Background())
	assert.NotEmpty(t, cid)
	assert.Equal(t, cid, ExtractCorrelationID(ctx))
}

func TestEnsureCorrelationIDKeepsExisting(t *testing.T) {
	ctx := ContextWithCorrelationID(context.Background(), "abc123")
	ctx, cid := EnsureCorrelationID(ctx)
	assert.Equal(t, "abc123", cid)
	assert.Equal(t, "abc123", ExtractCorrelationID(ctx))
}

func TestExtractCorrelationIDNilContext(t *testing.T) {
	assert.Equal(t, "", ExtractCorrelationID(nil))
}
