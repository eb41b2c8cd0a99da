package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithRequestID(t *testing.T) {
	ctx := context.Background()

	assert.Empty(t, RequestIDFromContext(ctx))

	ctx = WithRequestID(ctx, "req-123")
	assert.Equal(t, "req-123", RequestIDFromContext(ctx))
}

func TestRequestIDFromContext_WrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), requestIDKey, 42)
	assert.Empty(t, RequestIDFromContext(ctx))
}

func TestEnsureRequestID(t *testing.T) {
	t.Run("keeps existing id", func(t *testing.T) {
		ctx := WithRequestID(context.Background(), "req-abc")

		ctx, id := EnsureRequestID(ctx)
		assert.Equal(t, "req-abc", id)
		assert.Equal(t, "req-abc", RequestIDFromContext(ctx))
	})

	t.Run("generates when missing", func(t *testing.T) {
		ctx, id := EnsureRequestID(context.Background())

		assert.NotEmpty(t, id)
		assert.Equal(t, id, RequestIDFromContext(ctx))
	})

	t.Run("generated ids differ", func(t *testing.T) {
		_, a := EnsureRequestID(context.Background())
		_, b := EnsureRequestID(context.Background())
		assert.NotEqual(t, a, b)
	})
}

func TestWithQuery(t *testing.T) {
	ctx := context.Background()

	assert.Empty(t, QueryFromContext(ctx))

	ctx = WithQuery(ctx, "protein folding")
	assert.Equal(t, "protein folding", QueryFromContext(ctx))
}
