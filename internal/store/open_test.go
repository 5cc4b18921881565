package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/fulfillment/internal/store"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

func TestOpen(t *testing.T) {
	logger := otelzap.New(zap.NewNop())

	st, err := store.Open(context.Background(), store.Config{Backend: store.BackendMemory}, logger)
	require.NoError(t, err)
	assert.IsType(t, &store.Memory{}, st)
	assert.NoError(t, st.Close(context.Background()))

	_, err = store.Open(context.Background(), store.Config{Backend: "sqlite"}, logger)
	assert.ErrorContains(t, err, `unknown store backend "sqlite"`)
}
