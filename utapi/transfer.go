package utapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"sort"

	"github.com/hashicorp/go-retryablehttp"
)

// transfer pushes the file's bytes to the destination of its ticket. Failures are terminal.
func (c *Client) transfer(ctx context.Context, ticket UploadTicket, file FileObj, name string) error {
	if err := ctx.Err(); err != nil {
		return cancelledOr(ctx, err)
	}
	if ticket.isMultipart() {
		return c.transferMultipart(ctx, ticket, file)
	}
	return c.transferPresignedPost(ctx, ticket, file, name)
}

func (c *Client) transferPresignedPost(ctx context.Context, ticket UploadTicket, file FileObj, name string) error {
	destination := ticket.destination()
	if destination == "" {
		return &ValidationError{Field: "ticket", Reason: fmt.Sprintf("no upload destination for key %s", ticket.Key)}
	}

	fields, err := formFields(ticket.Fields)
	if err != nil {
		return err
	}

	body, contentType, err := buildForm(fields, file.Path, name)
	if err != nil {
		return err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, destination, body)
	if err != nil {
		return fmt.Errorf("create upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	c.setAPIKey(req)

	c.logger.Debugf("Uploading %s to %s", name, req.URL.Host)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return cancelledOr(ctx, fmt.Errorf("upload %s: %w", name, err))
	}
	defer c.closeBody(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, err := io.ReadAll(resp.Body)
		if err != nil {
			text = []byte(err.Error())
		}
		return &TransferError{StatusCode: resp.StatusCode, Body: string(text)}
	}
	return nil
}

// formFields checks that every field value is a JSON string and returns the
// decoded values.
func formFields(raw map[string]json.RawMessage) (map[string]string, error) {
	fields := make(map[string]string, len(raw))
	for name, value := range raw {
		// null decodes into a string without error, so check the decoded type.
		var decoded interface{}
		s, ok := "", false
		if err := json.Unmarshal(value, &decoded); err == nil {
			s, ok = decoded.(string)
		}
		if !ok {
			return nil, &ValidationError{
				Field:  fmt.Sprintf("form field %q", name),
				Reason: fmt.Sprintf("value must be a string, got %s", string(value)),
			}
		}
		fields[name] = s
	}
	return fields, nil
}

// buildForm writes the text fields (sorted by name) followed by the file part.
func buildForm(fields map[string]string, path, fileName string) (*bytes.Buffer, string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open file: %w", err)
	}
	defer file.Close() //nolint:errcheck

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, name := range names {
		if err := writer.WriteField(name, fields[name]); err != nil {
			return nil, "", fmt.Errorf("write form field %s: %w", name, err)
		}
	}

	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", fmt.Errorf("read file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}

	return body, writer.FormDataContentType(), nil
}
