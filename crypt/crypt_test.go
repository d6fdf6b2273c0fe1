package crypt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProduceVerify(t *testing.T) {
	hash, err := Produce("hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", hash)

	assert.True(t, Verify(hash, "hunter2"))
	assert.False(t, Verify(hash, "hunter3"))
	assert.False(t, Verify(hash, ""))
}

func TestVerifyGarbageHash(t *testing.T) {
	assert.False(t, Verify("not-a-hash", "hunter2"))
}
