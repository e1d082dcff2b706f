package logger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/reimbursehq/reimbursement-service/pkg/logger"
)

func TestFromFallsBackToProcessLogger(t *testing.T) {
	l := logger.From(context.Background())

	assert.NotNil(t, l)
	assert.Same(t, logger.LoggerWrapper(), l)
}

func TestWithBindsScopedLogger(t *testing.T) {
	base := logger.From(context.Background())

	ctx := logger.With(context.Background(), "request_id", "req-1")
	bound := logger.From(ctx)

	assert.NotNil(t, bound)
	assert.NotSame(t, base, bound)
}

func TestWithChainsOntoBoundLogger(t *testing.T) {
	ctx := logger.With(context.Background(), "request_id", "req-1")
	first := logger.From(ctx)

	ctx = logger.With(ctx, "actor_id", "emp-1")
	second := logger.From(ctx)

	assert.NotSame(t, first, second)
	assert.Same(t, second, logger.From(ctx))
}
