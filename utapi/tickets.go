package utapi

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

const defaultContentType = "application/octet-stream"

type uploadOptions struct {
	metadata           map[string]string
	contentDisposition ContentDisposition
	acl                ACL
	maxConcurrency     int
}

func resolveOptions(opts *UploadFileOpts) uploadOptions {
	resolved := uploadOptions{
		metadata:           map[string]string{},
		contentDisposition: ContentDispositionInline,
		acl:                ACLPublicRead,
	}
	if opts == nil {
		return resolved
	}

	if opts.Metadata != nil {
		resolved.metadata = opts.Metadata
	}
	if opts.ContentDisposition != "" {
		resolved.contentDisposition = opts.ContentDisposition
	}
	if opts.ACL != "" {
		resolved.acl = opts.ACL
	}
	resolved.maxConcurrency = opts.MaxConcurrency
	return resolved
}

func (o uploadOptions) validate() error {
	switch o.contentDisposition {
	case ContentDispositionInline, ContentDispositionAttachment:
	default:
		return &ValidationError{Field: "contentDisposition", Reason: fmt.Sprintf("unknown value %q", o.contentDisposition)}
	}
	switch o.acl {
	case ACLPrivate, ACLPublicRead:
	default:
		return &ValidationError{Field: "acl", Reason: fmt.Sprintf("unknown value %q", o.acl)}
	}
	if o.maxConcurrency < 0 {
		return &ValidationError{Field: "maxConcurrency", Reason: "must not be negative"}
	}
	return nil
}

func describeFiles(files []FileObj) ([]fileDescriptor, error) {
	descriptors := make([]fileDescriptor, 0, len(files))
	for _, file := range files {
		if file.Name == "" {
			return nil, &ValidationError{Field: "name", Reason: fmt.Sprintf("file %s has no name", file.Path)}
		}

		info, err := os.Stat(file.Path)
		if err != nil {
			return nil, fmt.Errorf("stat file: %w", err)
		}
		if info.IsDir() {
			return nil, &ValidationError{Field: "path", Reason: fmt.Sprintf("%s is a directory", file.Path)}
		}

		descriptors = append(descriptors, fileDescriptor{
			Name: file.Name,
			Type: detectContentType(file),
			Size: info.Size(),
		})
	}
	return descriptors, nil
}

// detectContentType looks at the extension first (path, then display name),
// then sniffs the content, then falls back to application/octet-stream.
func detectContentType(file FileObj) string {
	for _, name := range []string{file.Path, file.Name} {
		if byExt := mime.TypeByExtension(filepath.Ext(name)); byExt != "" {
			return withoutParams(byExt)
		}
	}

	if detected, err := mimetype.DetectFile(file.Path); err == nil {
		return withoutParams(detected.String())
	}
	return defaultContentType
}

func withoutParams(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return contentType
	}
	return mediaType
}

// requestTickets exchanges the descriptors of a whole batch for one ticket per file.
func (c *Client) requestTickets(ctx context.Context, descriptors []fileDescriptor, opts uploadOptions) ([]UploadTicket, error) {
	payload := uploadFilesRequest{
		Files:              descriptors,
		Metadata:           opts.metadata,
		ContentDisposition: opts.contentDisposition,
		ACL:                opts.acl,
	}

	var response uploadFilesResponse
	err := c.postJSON(ctx, "/api/uploadFiles", payload, &response)
	if err == nil && len(response.Data) != len(descriptors) {
		err = fmt.Errorf("expected %d upload tickets, got %d", len(descriptors), len(response.Data))
	}
	if err != nil {
		sent, marshalErr := json.Marshal(payload)
		if marshalErr != nil {
			sent = []byte(marshalErr.Error())
		}
		c.logger.Errorf("Error requesting upload tickets: %s", err)
		c.logger.Errorf("Data sent in request:\n%s", sent)
		return nil, &BatchTicketError{Payload: string(sent), Err: err}
	}

	return response.Data, nil
}
