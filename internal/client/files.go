package client

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/amariwan/cmd-chat/internal/crypto"
	"github.com/amariwan/cmd-chat/internal/protocol"
)

// TransferInfo is the metadata of one announced inbound transfer.
type TransferInfo struct {
	FileID      string
	Filename    string
	Filesize    int64
	TotalChunks int
	Sender      string
	Timestamp   string
}

type transferState struct {
	info     TransferInfo
	chunks   map[int][]byte
	received int
}

// TransferManager tracks inbound file transfers and reassembles them
// once every chunk has arrived. Chunks may arrive out of order;
// duplicates are counted once.
type TransferManager struct {
	mu        sync.Mutex
	active    map[string]*transferState
	outputDir string
}

// NewTransferManager stores completed files under outputDir; empty
// means ~/Downloads/cmdchat.
func NewTransferManager(outputDir string) *TransferManager {
	if outputDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			outputDir = filepath.Join(home, "Downloads", "cmdchat")
		} else {
			outputDir = "cmdchat-downloads"
		}
	}
	return &TransferManager{
		active:    make(map[string]*transferState),
		outputDir: outputDir,
	}
}

// Start begins tracking an announced transfer.
func (m *TransferManager) Start(info TransferInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active[info.FileID] = &transferState{
		info:   info,
		chunks: make(map[int][]byte),
	}
}

// Info returns the metadata for an active transfer, or false.
func (m *TransferManager) Info(fileID string) (TransferInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.active[fileID]
	if !ok {
		return TransferInfo{}, false
	}
	return t.info, true
}

// AddChunk records one chunk and reports (complete, received, total).
func (m *TransferManager) AddChunk(fileID string, index int, data []byte) (bool, int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.active[fileID]
	if !ok {
		return false, 0, 0, errors.Errorf("unknown transfer %s", fileID)
	}
	if _, dup := t.chunks[index]; !dup {
		t.chunks[index] = data
		t.received++
	}
	return t.received >= t.info.TotalChunks, t.received, t.info.TotalChunks, nil
}

// Complete writes the assembled file to the output directory and stops
// tracking the transfer. Name collisions get a _1, _2, ... suffix.
func (m *TransferManager) Complete(fileID string) (string, error) {
	m.mu.Lock()
	t, ok := m.active[fileID]
	if ok {
		delete(m.active, fileID)
	}
	m.mu.Unlock()
	if !ok {
		return "", errors.Errorf("unknown transfer %s", fileID)
	}
	if t.received < t.info.TotalChunks {
		return "", errors.Errorf("transfer incomplete: %d/%d chunks", t.received, t.info.TotalChunks)
	}

	if err := os.MkdirAll(m.outputDir, 0o755); err != nil {
		return "", errors.Wrap(err, "create download directory")
	}
	path := m.availablePath(t.info.Filename)

	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrap(err, "create output file")
	}
	defer f.Close()
	for i := 0; i < t.info.TotalChunks; i++ {
		if chunk, ok := t.chunks[i]; ok {
			if _, err := f.Write(chunk); err != nil {
				return "", errors.Wrap(err, "write chunk")
			}
		}
	}
	return path, nil
}

// Cancel drops an active transfer.
func (m *TransferManager) Cancel(fileID string) {
	m.mu.Lock()
	delete(m.active, fileID)
	m.mu.Unlock()
}

// ActiveCount returns the number of in-flight transfers.
func (m *TransferManager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

func (m *TransferManager) availablePath(filename string) string {
	path := filepath.Join(m.outputDir, filename)
	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)
	for counter := 1; ; counter++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path
		}
		path = filepath.Join(m.outputDir, fmt.Sprintf("%s_%d%s", stem, counter, ext))
	}
}

// chunkCount returns how many FileChunkSize chunks a file needs.
func chunkCount(filesize int64) int {
	return int((filesize + crypto.FileChunkSize - 1) / crypto.FileChunkSize)
}

// sendFile announces and streams a local file to the current room. The
// send function is the client's encrypted-payload writer.
func (c *Client) sendFile(path string) error {
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return errors.Errorf("file not found: %s", path)
	}
	if info.Size() > maxSendFileSize {
		return errors.New("file too large (max 10MB)")
	}

	fileID := uuid.NewString()
	total := chunkCount(info.Size())
	filename := filepath.Base(path)
	fmt.Printf("[file] Sending %s (%d bytes, %d chunks)...\n", filename, info.Size(), total)

	if err := c.sendEncrypted(protocol.Payload{
		Type:        protocol.TypeFileInit,
		FileID:      fileID,
		Filename:    filename,
		Filesize:    info.Size(),
		TotalChunks: total,
	}); err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open file")
	}
	defer f.Close()

	buf := make([]byte, crypto.FileChunkSize)
	for index := 0; index < total; index++ {
		n, err := io.ReadFull(f, buf)
		if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
			return errors.Wrap(err, "read file")
		}
		isFinal := index == total-1
		if err := c.sendEncrypted(protocol.Payload{
			Type:       protocol.TypeFileChunk,
			FileID:     fileID,
			ChunkIndex: index,
			ChunkData:  base64.StdEncoding.EncodeToString(buf[:n]),
			IsFinal:    isFinal,
		}); err != nil {
			return err
		}
		if (index+1)%10 == 0 || isFinal {
			progress := float64(index+1) / float64(total) * 100
			fmt.Printf("[file] Progress: %.1f%% (%d/%d chunks)\n", progress, index+1, total)
		}
	}
	fmt.Printf("[file] Transfer complete: %s\n", filename)
	return nil
}

// handleFileInit starts tracking an inbound transfer announcement.
func (c *Client) handleFileInit(p *protocol.Payload) {
	if p.FileID == "" {
		return
	}
	c.files.Start(TransferInfo{
		FileID:      p.FileID,
		Filename:    p.Filename,
		Filesize:    p.Filesize,
		TotalChunks: p.TotalChunks,
		Sender:      p.Sender,
		Timestamp:   p.Timestamp,
	})
	fmt.Printf("[file] %s is sending %s (%d bytes, %d chunks)\n", senderOf(p), p.Filename, p.Filesize, p.TotalChunks)
}

// handleFileChunk stores one inbound chunk and saves the file when the
// transfer completes.
func (c *Client) handleFileChunk(p *protocol.Payload) {
	info, ok := c.files.Info(p.FileID)
	if !ok {
		return
	}
	data, err := base64.StdEncoding.DecodeString(p.ChunkData)
	if err != nil {
		fmt.Printf("[error] File chunk processing failed: %v\n", err)
		c.files.Cancel(p.FileID)
		return
	}
	complete, received, total, err := c.files.AddChunk(p.FileID, p.ChunkIndex, data)
	if err != nil {
		return
	}
	if received%10 == 0 || p.IsFinal {
		progress := float64(received) / float64(total) * 100
		fmt.Printf("[file] Receiving %s: %.1f%% (%d/%d chunks)\n", info.Filename, progress, received, total)
	}
	if complete {
		path, err := c.files.Complete(p.FileID)
		if err != nil {
			fmt.Printf("[error] File transfer failed: %v\n", err)
			return
		}
		fmt.Printf("[file] Saved to: %s\n", path)
	}
}
