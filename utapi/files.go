package utapi

import (
	"context"
	"fmt"
)

// DeleteFiles deletes the files with the given keys.
func (c *Client) DeleteFiles(ctx context.Context, fileKeys []string) (DeleteFileResponse, error) {
	if err := validateKeys(fileKeys); err != nil {
		return DeleteFileResponse{}, err
	}

	var response DeleteFileResponse
	if err := c.postJSON(ctx, "/api/deleteFile", fileKeysPayload{FileKeys: fileKeys}, &response); err != nil {
		return DeleteFileResponse{}, fmt.Errorf("delete files: %w", err)
	}
	return response, nil
}

// GetFileURLs returns the public URLs of the given files.
func (c *Client) GetFileURLs(ctx context.Context, fileKeys []string) (UrlsResponse, error) {
	if err := validateKeys(fileKeys); err != nil {
		return UrlsResponse{}, err
	}

	var response UrlsResponse
	if err := c.postJSON(ctx, "/api/getFileUrl", fileKeysPayload{FileKeys: fileKeys}, &response); err != nil {
		return UrlsResponse{}, fmt.Errorf("get file urls: %w", err)
	}
	return response, nil
}

// ListFiles lists the files of the app. A nil opts requests the first 10 files.
func (c *Client) ListFiles(ctx context.Context, opts *ListFilesOpts) (FileListResponse, error) {
	payload := DefaultListFilesOpts()
	if opts != nil {
		payload = *opts
	}

	var response FileListResponse
	if err := c.postJSON(ctx, "/api/listFiles", payload, &response); err != nil {
		return FileListResponse{}, fmt.Errorf("list files: %w", err)
	}
	return response, nil
}

// RenameFiles ...
func (c *Client) RenameFiles(ctx context.Context, opts RenameFilesOpts) error {
	if len(opts.Updates) == 0 {
		return &ValidationError{Field: "updates", Reason: "at least one rename is required"}
	}
	for _, update := range opts.Updates {
		if update.FileKey == "" || update.NewName == "" {
			return &ValidationError{Field: "updates", Reason: "file key and new name must not be empty"}
		}
	}

	if err := c.postJSON(ctx, "/api/renameFiles", opts, nil); err != nil {
		return fmt.Errorf("rename files: %w", err)
	}
	return nil
}

// GetUsageInfo ...
func (c *Client) GetUsageInfo(ctx context.Context) (UsageInfo, error) {
	var response UsageInfo
	if err := c.postJSON(ctx, "/api/getUsageInfo", struct{}{}, &response); err != nil {
		return UsageInfo{}, fmt.Errorf("get usage info: %w", err)
	}
	return response, nil
}

// GetPresignedURL returns a URL granting temporary access to a private file.
func (c *Client) GetPresignedURL(ctx context.Context, opts PresignedURLOpts) (string, error) {
	if opts.FileKey == "" {
		return "", &ValidationError{Field: "fileKey", Reason: "must not be empty"}
	}
	if opts.ExpiresIn != nil && *opts.ExpiresIn > MaxPresignedURLExpiry {
		return "", &ValidationError{Field: "expiresIn", Reason: fmt.Sprintf("must be less than %d", MaxPresignedURLExpiry)}
	}

	var response presignedURLResponse
	if err := c.postJSON(ctx, "/api/requestFileAccess", opts, &response); err != nil {
		return "", fmt.Errorf("request file access: %w", err)
	}
	return response.URL, nil
}

func validateKeys(keys []string) error {
	if len(keys) == 0 {
		return &ValidationError{Field: "fileKeys", Reason: "at least one key is required"}
	}
	for _, key := range keys {
		if key == "" {
			return &ValidationError{Field: "fileKeys", Reason: "keys must not be empty"}
		}
	}
	return nil
}
