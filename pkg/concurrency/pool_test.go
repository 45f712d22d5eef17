package concurrency_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/secnn/pkg/concurrency"
)

func TestMapRunsEveryIndex(t *testing.T) {
	const n = 200
	var count int64
	err := concurrency.Map(context.Background(), 4, n, func(ctx context.Context, i int) error {
		atomic.AddInt64(&count, 1)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, int64(n), count)
}

func TestMapPropagatesFirstError(t *testing.T) {
	want := errors.New("boom")
	err := concurrency.Map(context.Background(), 2, 50, func(ctx context.Context, i int) error {
		if i == 10 {
			return want
		}
		return nil
	})
	require.ErrorIs(t, err, want)
}
