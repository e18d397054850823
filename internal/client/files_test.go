package client

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amariwan/cmd-chat/internal/crypto"
)

func TestChunkCount(t *testing.T) {
	assert.Equal(t, 0, chunkCount(0))
	assert.Equal(t, 1, chunkCount(1))
	assert.Equal(t, 1, chunkCount(crypto.FileChunkSize))
	assert.Equal(t, 2, chunkCount(crypto.FileChunkSize+1))
}

func TestTransferAssemblyOutOfOrder(t *testing.T) {
	dir := t.TempDir()
	m := NewTransferManager(dir)

	m.Start(TransferInfo{FileID: "f1", Filename: "out.bin", TotalChunks: 3, Sender: "bob"})
	assert.Equal(t, 1, m.ActiveCount())

	complete, _, _, err := m.AddChunk("f1", 2, []byte("CC"))
	require.NoError(t, err)
	assert.False(t, complete)
	_, _, _, err = m.AddChunk("f1", 0, []byte("AA"))
	require.NoError(t, err)
	complete, received, total, err := m.AddChunk("f1", 1, []byte("BB"))
	require.NoError(t, err)
	assert.True(t, complete)
	assert.Equal(t, 3, received)
	assert.Equal(t, 3, total)

	path, err := m.Complete("f1")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "AABBCC", string(data))
	assert.Zero(t, m.ActiveCount())
}

func TestTransferDuplicateChunksCountedOnce(t *testing.T) {
	m := NewTransferManager(t.TempDir())
	m.Start(TransferInfo{FileID: "f1", Filename: "x", TotalChunks: 2})

	_, received, _, err := m.AddChunk("f1", 0, []byte("A"))
	require.NoError(t, err)
	assert.Equal(t, 1, received)

	complete, received, _, err := m.AddChunk("f1", 0, []byte("A"))
	require.NoError(t, err)
	assert.False(t, complete)
	assert.Equal(t, 1, received, "duplicate chunk must not advance the count")
}

func TestCompleteIncompleteTransferFails(t *testing.T) {
	m := NewTransferManager(t.TempDir())
	m.Start(TransferInfo{FileID: "f1", Filename: "x", TotalChunks: 2})
	_, _, _, err := m.AddChunk("f1", 0, []byte("A"))
	require.NoError(t, err)

	_, err = m.Complete("f1")
	assert.Error(t, err)
}

func TestCompleteResolvesNameCollisions(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dup.txt"), []byte("old"), 0o644))

	m := NewTransferManager(dir)
	m.Start(TransferInfo{FileID: "f1", Filename: "dup.txt", TotalChunks: 1})
	_, _, _, err := m.AddChunk("f1", 0, []byte("new"))
	require.NoError(t, err)

	path, err := m.Complete("f1")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "dup_1.txt"), path)

	old, err := os.ReadFile(filepath.Join(dir, "dup.txt"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(old), "existing file untouched")
}

func TestAddChunkUnknownTransfer(t *testing.T) {
	m := NewTransferManager(t.TempDir())
	_, _, _, err := m.AddChunk("nope", 0, []byte("A"))
	assert.Error(t, err)
}

func TestCancelDropsTransfer(t *testing.T) {
	m := NewTransferManager(t.TempDir())
	m.Start(TransferInfo{FileID: "f1", TotalChunks: 1})
	m.Cancel("f1")
	_, ok := m.Info("f1")
	assert.False(t, ok)
}
