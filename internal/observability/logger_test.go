package observability

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTracingHandler_RepositoryFromContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := slog.New(NewTracingHandler(slog.NewJSONHandler(&buf, nil), "repopulse", ""))

	ctx := WithRepository(context.Background(), "ric-plt/e2")
	logger.InfoContext(ctx, "cache hit")

	out := buf.String()
	assert.Contains(t, out, `"repository":"ric-plt/e2"`)
	assert.Contains(t, out, `"service":"repopulse"`)
	assert.NotContains(t, out, `"project"`)
	assert.NotContains(t, out, "trace_id")
}

func TestTracingHandler_ServiceStaysTopLevelUnderGroup(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := slog.New(NewTracingHandler(slog.NewJSONHandler(&buf, nil), "repopulse", "demo"))
	logger.WithGroup("stage").Info("done", "took", 3)

	out := buf.String()
	assert.Contains(t, out, `"service":"repopulse","project":"demo"`)
	assert.Contains(t, out, `"stage":{"took":3}`)
}

func TestRepositoryFrom(t *testing.T) {
	t.Parallel()

	_, ok := RepositoryFrom(context.Background())
	assert.False(t, ok)

	_, ok = RepositoryFrom(WithRepository(context.Background(), ""))
	assert.False(t, ok)

	name, ok := RepositoryFrom(WithRepository(context.Background(), "alpha"))
	assert.True(t, ok)
	assert.Equal(t, "alpha", name)
}
