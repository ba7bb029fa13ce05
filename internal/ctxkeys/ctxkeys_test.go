package ctxkeys

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestID(t *testing.T) {
	_, ok := RequestID(context.Background())
	assert.False(t, ok)

	_, ok = RequestID(WithRequestID(context.Background(), ""))
	assert.False(t, ok)

	id, ok := RequestID(WithRequestID(context.Background(), "req-1"))
	assert.True(t, ok)
	assert.Equal(t, "req-1", id)
}

func TestAPIKeyID(t *testing.T) {
	ctx := WithAPIKeyID(WithRequestID(context.Background(), "req-1"), "key-abcd")

	id, ok := APIKeyID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "key-abcd", id)

	rid, _ := RequestID(ctx)
	assert.Equal(t, "req-1", rid)
}
