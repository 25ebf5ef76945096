package chunkuploader

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// FileChunkProvider cuts a file into parts of chunkSize bytes; the last part holds the rest.
type FileChunkProvider struct {
	file      *os.File
	size      int64
	chunkSize int64
	numChunks int
}

// NewFileChunkProvider opens path. numChunks must match the part URLs handed
// out for the file, it is checked against the file size.
func NewFileChunkProvider(path string, chunkSize int64, numChunks int) (*FileChunkProvider, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("stat file: %w", err)
	}

	want := int((info.Size() + chunkSize - 1) / chunkSize)
	if want == 0 {
		want = 1
	}
	if numChunks != want {
		_ = file.Close()
		return nil, fmt.Errorf("%d bytes in %d byte chunks need %d parts, got %d", info.Size(), chunkSize, want, numChunks)
	}

	return &FileChunkProvider{
		file:      file,
		size:      info.Size(),
		chunkSize: chunkSize,
		numChunks: numChunks,
	}, nil
}

// NumChunks ...
func (p *FileChunkProvider) NumChunks() int {
	return p.numChunks
}

// ChunkSize ...
func (p *FileChunkProvider) ChunkSize(index int) int64 {
	if index < 0 || index >= p.numChunks {
		return 0
	}
	if index == p.numChunks-1 {
		return p.size - int64(index)*p.chunkSize
	}
	return p.chunkSize
}

// GetChunk reads the part into memory so that it can be resent. ReadAt keeps
// parallel reads independent of each other.
func (p *FileChunkProvider) GetChunk(index int) (io.Reader, error) {
	if index < 0 || index >= p.numChunks {
		return nil, fmt.Errorf("chunk index %d out of range [0, %d)", index, p.numChunks)
	}

	data, err := io.ReadAll(io.NewSectionReader(p.file, int64(index)*p.chunkSize, p.ChunkSize(index)))
	if err != nil {
		return nil, fmt.Errorf("read chunk %d: %w", index+1, err)
	}
	return bytes.NewReader(data), nil
}

// Close ...
func (p *FileChunkProvider) Close() error {
	return p.file.Close()
}

// BytesChunkProvider serves parts already held in memory.
type BytesChunkProvider struct {
	chunks [][]byte
}

// NewBytesChunkProvider ...
func NewBytesChunkProvider(chunks [][]byte) *BytesChunkProvider {
	return &BytesChunkProvider{chunks: chunks}
}

// NumChunks ...
func (p *BytesChunkProvider) NumChunks() int {
	return len(p.chunks)
}

// ChunkSize ...
func (p *BytesChunkProvider) ChunkSize(index int) int64 {
	if index < 0 || index >= len(p.chunks) {
		return 0
	}
	return int64(len(p.chunks[index]))
}

// GetChunk ...
func (p *BytesChunkProvider) GetChunk(index int) (io.Reader, error) {
	if index < 0 || index >= len(p.chunks) {
		return nil, fmt.Errorf("chunk index %d out of range [0, %d)", index, len(p.chunks))
	}
	return bytes.NewReader(p.chunks[index]), nil
}
