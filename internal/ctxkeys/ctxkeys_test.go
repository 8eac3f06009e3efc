package ctxkeys

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextValues(t *testing.T) {
	ctx := context.Background()

	_, ok := RequestID(ctx)
	assert.False(t, ok)

	ctx = WithRequestID(ctx, "req-1")
	ctx = WithPrincipal(ctx, "key:ab12")
	ctx = WithTransport(ctx, "mcp")

	id, ok := RequestID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "req-1", id)

	p, _ := Principal(ctx)
	assert.Equal(t, "key:ab12", p)

	tr, _ := Transport(ctx)
	assert.Equal(t, "mcp", tr)
}

func TestContextValues_EmptyIsAbsent(t *testing.T) {
	ctx := WithRequestID(context.Background(), "")
	_, ok := RequestID(ctx)
	assert.False(t, ok)
}
