package phy_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcfec/fecpacker/internal/phy"
)

func TestLossyLoopbackRoundTrip(t *testing.T) {
	link := phy.NewLossyLoopback(4)
	defer link.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, link.Send(ctx, []byte("hello")))

	got, err := link.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got.Payload)
}

func TestLossyLoopbackDrop(t *testing.T) {
	link := phy.NewLossyLoopback(4)
	defer link.Close()
	link.Drop = func(buf []byte) bool { return true }

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.NoError(t, link.Send(ctx, []byte("dropped")))

	_, err := link.Recv(ctx)
	assert.Error(t, err, "dropped datagram should never be delivered")
}

func TestLossyLoopbackCloseUnblocksRecv(t *testing.T) {
	link := phy.NewLossyLoopback(1)

	errc := make(chan error, 1)
	go func() {
		_, err := link.Recv(context.Background())
		errc <- err
	}()

	link.Close()
	select {
	case err := <-errc:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("Recv did not unblock after Close")
	}
}

func TestSized(t *testing.T) {
	const headerSize = 6
	buf := make([]byte, 32)
	// size field (bytes 4-5, little-endian): size<<1 | is_fec
	size := 20
	buf[4] = byte(size << 1)
	buf[5] = byte((size << 1) >> 8)

	got, ok := phy.Sized(buf, headerSize)
	require.True(t, ok)
	assert.Equal(t, size, got)
}

func TestSizedRejectsShortBuffer(t *testing.T) {
	_, ok := phy.Sized(make([]byte, 2), 6)
	assert.False(t, ok)
}
