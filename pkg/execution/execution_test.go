package execution

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultStreamYieldsInOrder(t *testing.T) {
	stream := NewResultStream(
		&Result{},
		&Result{},
	)

	first, err := stream.Next(context.Background())
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := stream.Next(context.Background())
	require.NoError(t, err)
	require.NotNil(t, second)

	_, err = stream.Next(context.Background())
	assert.Equal(t, io.EOF, err)
}

func TestResultStreamCloseStopsIteration(t *testing.T) {
	stream := NewResultStream(&Result{}, &Result{})
	require.NoError(t, stream.Close(context.Background()))

	_, err := stream.Next(context.Background())
	assert.Equal(t, io.EOF, err)
}

func TestResultStreamHonorsCancellation(t *testing.T) {
	stream := NewResultStream(&Result{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := stream.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResponseConstructors(t *testing.T) {
	single := NewSingleResponse(&Result{})
	assert.NotNil(t, single.Single)
	assert.Nil(t, single.Stream)

	streamed := NewStreamResponse(NewResultStream())
	assert.Nil(t, streamed.Single)
	assert.NotNil(t, streamed.Stream)
}
