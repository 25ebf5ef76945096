package utapi

import (
	"context"
	"errors"
	"fmt"

	"github.com/bitrise-io/go-utapi/utapi/chunkuploader"
)

// transferMultipart uploads a large file part by part to the ticket's URLs,
// then asks the service to assemble it. A failed upload is reported back so
// the service can abort the multipart upload.
func (c *Client) transferMultipart(ctx context.Context, ticket UploadTicket, file FileObj) error {
	provider, err := chunkuploader.NewFileChunkProvider(file.Path, ticket.ChunkSize, len(ticket.URLs))
	if err != nil {
		return &ValidationError{Field: "ticket", Reason: err.Error()}
	}
	defer provider.Close() //nolint:errcheck

	config := chunkuploader.DefaultConfig()
	config.HTTPClient = c.httpClient.StandardClient()
	config.Logger = c.logger
	uploader := chunkuploader.New(config)

	c.logger.Debugf("Uploading %s in %d parts of %d bytes", file.Name, len(ticket.URLs), ticket.ChunkSize)
	parts, err := uploader.Upload(ctx, provider, ticket.URLs)
	if err != nil {
		err = cancelledOr(ctx, fmt.Errorf("upload parts: %w", err))
		if !errors.Is(err, ErrCancelled) {
			c.reportFailure(ctx, ticket)
		}
		return err
	}

	request := completeMultipartRequest{
		FileKey:  ticket.Key,
		UploadID: ticket.UploadID,
		Etags:    make([]completedPart, 0, len(parts)),
	}
	for _, part := range parts {
		request.Etags = append(request.Etags, completedPart{Tag: part.ETag, PartNumber: part.Number})
	}
	if err := c.postJSON(ctx, "/api/completeMultipart", request, nil); err != nil {
		err = fmt.Errorf("complete multipart upload: %w", err)
		if !errors.Is(err, ErrCancelled) {
			c.reportFailure(ctx, ticket)
		}
		return err
	}
	return nil
}

func (c *Client) reportFailure(ctx context.Context, ticket UploadTicket) {
	request := failureCallbackRequest{FileKey: ticket.Key, UploadID: ticket.UploadID}
	if err := c.postJSON(ctx, "/api/failureCallback", request, nil); err != nil {
		c.logger.Warnf("Failed to report failed upload of %s: %s", ticket.Key, err)
	}
}
