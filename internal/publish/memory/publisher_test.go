package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublisher_RecordsMessages(t *testing.T) {
	t.Parallel()

	pub := New()

	id, err := pub.Publish(context.Background(), "articles", map[string]string{"day": "2024-03-05"})
	require.NoError(t, err)
	require.Equal(t, "memory-1", id)

	id, err = pub.Publish(context.Background(), "articles", map[string]string{"day": "2024-03-06"})
	require.NoError(t, err)
	require.Equal(t, "memory-2", id)

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "articles", msgs[0].Topic)
}

func TestPublisher_FailWith(t *testing.T) {
	t.Parallel()

	pub := New()
	boom := errors.New("broker down")
	pub.FailWith(boom)

	_, err := pub.Publish(context.Background(), "articles", nil)
	require.ErrorIs(t, err, boom)
	require.Empty(t, pub.Messages())
}
