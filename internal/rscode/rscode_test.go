package rscode_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcfec/fecpacker/internal/rscode"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	const k, n, size = 4, 6, 32

	coder, err := rscode.New(k, n)
	require.NoError(t, err)

	src := make([][]byte, k)
	for i := range src {
		src[i] = bytes.Repeat([]byte{byte(i + 1)}, size)
	}

	parity := make([][]byte, n-k)
	for i := range parity {
		parity[i] = make([]byte, size)
	}
	require.NoError(t, coder.Encode(src, parity, []int{k, k + 1}, size))

	// Lose two data shards; recover them from the remaining data shards
	// plus both parity shards.
	survivingSrc := [][]byte{src[0], src[3], parity[0], parity[1]}
	survivingIdx := []int{0, 3, k, k + 1}

	missing := make([][]byte, 2)
	missing[0] = make([]byte, size)
	missing[1] = make([]byte, size)

	require.NoError(t, coder.Decode(survivingSrc, missing, survivingIdx, size))
	assert.Equal(t, src[1], missing[0])
	assert.Equal(t, src[2], missing[1])
}

func TestDecodeFailsWithTooFewShards(t *testing.T) {
	const k, n, size = 4, 6, 16

	coder, err := rscode.New(k, n)
	require.NoError(t, err)

	src := [][]byte{make([]byte, size), make([]byte, size)}
	dst := [][]byte{make([]byte, size)}

	err = coder.Decode(src, dst, []int{0, 1}, size)
	assert.Error(t, err)
}

func TestNewRejectsInvalidShardCounts(t *testing.T) {
	_, err := rscode.New(0, 4)
	assert.Error(t, err)
}
