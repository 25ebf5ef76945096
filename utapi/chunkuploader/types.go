// Package chunkuploader pushes the parts of a multipart upload to their
// presigned part URLs in parallel, with per-part retries and hung request detection.
package chunkuploader

import (
	"io"
)

// ChunkProvider provides the data of each part.
type ChunkProvider interface {
	NumChunks() int
	ChunkSize(index int) int64
	// GetChunk may be called more than once for the same index when a part is retried.
	GetChunk(index int) (io.Reader, error)
}

// Part is an uploaded part. Number is 1-based, as the storage expects it.
type Part struct {
	Number int
	ETag   string
}

type partResult struct {
	index int
	etag  string
	err   error
}
