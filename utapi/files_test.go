package utapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiCall struct {
	Path   string
	Body   string
	Header http.Header
}

type apiStub struct {
	mu    sync.Mutex
	calls []apiCall
}

func (s *apiStub) last(t *testing.T) apiCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.calls)
	return s.calls[len(s.calls)-1]
}

func (s *apiStub) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// newAPIStub answers every request with the response registered for its path.
func newAPIStub(t *testing.T, status int, responses map[string]interface{}) (*Client, *apiStub) {
	stub := &apiStub{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		stub.mu.Lock()
		stub.calls = append(stub.calls, apiCall{Path: r.URL.Path, Body: string(body), Header: r.Header.Clone()})
		stub.mu.Unlock()

		response, ok := responses[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, status, response)
	}))
	t.Cleanup(server.Close)

	client, _ := newTestClient(t, server.URL)
	return client, stub
}

func TestDeleteFiles(t *testing.T) {
	client, stub := newAPIStub(t, http.StatusOK, map[string]interface{}{
		"/api/deleteFile": map[string]bool{"success": true},
	})

	response, err := client.DeleteFiles(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.True(t, response.Success)

	call := stub.last(t)
	assert.JSONEq(t, `{"fileKeys":["a","b"]}`, call.Body)
	assert.Equal(t, testAPIKey, call.Header.Get(apiKeyHeader))
	assert.Equal(t, "no-store", call.Header.Get("Cache-Control"))
}

func TestGetFileURLs(t *testing.T) {
	client, stub := newAPIStub(t, http.StatusOK, map[string]interface{}{
		"/api/getFileUrl": map[string]interface{}{
			"data": []map[string]string{{"key": "a", "url": "https://utfs.io/f/a"}},
		},
	})

	response, err := client.GetFileURLs(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, []FileURL{{Key: "a", URL: "https://utfs.io/f/a"}}, response.Data)
	assert.JSONEq(t, `{"fileKeys":["a"]}`, stub.last(t).Body)
}

func TestFileKeyValidation(t *testing.T) {
	client, stub := newAPIStub(t, http.StatusOK, nil)

	_, err := client.DeleteFiles(context.Background(), nil)
	var validationErr *ValidationError
	assert.True(t, errors.As(err, &validationErr))

	_, err = client.GetFileURLs(context.Background(), []string{"a", ""})
	assert.True(t, errors.As(err, &validationErr))

	assert.Equal(t, 0, stub.count())
}

func TestListFiles(t *testing.T) {
	client, stub := newAPIStub(t, http.StatusOK, map[string]interface{}{
		"/api/listFiles": map[string]interface{}{
			"files": []map[string]string{{"key": "a", "id": "1", "status": "Uploaded"}},
		},
	})

	response, err := client.ListFiles(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []File{{Key: "a", ID: "1", Status: FileStatusUploaded}}, response.Files)
	assert.JSONEq(t, `{"limit":10,"offset":0}`, stub.last(t).Body)

	limit := 50
	_, err = client.ListFiles(context.Background(), &ListFilesOpts{Limit: &limit})
	require.NoError(t, err)
	assert.JSONEq(t, `{"limit":50}`, stub.last(t).Body)
}

func TestRenameFiles(t *testing.T) {
	client, stub := newAPIStub(t, http.StatusOK, map[string]interface{}{
		"/api/renameFiles": map[string]bool{"success": true},
	})

	err := client.RenameFiles(context.Background(), RenameFilesOpts{Updates: []FileRename{{FileKey: "a", NewName: "b.txt"}}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"updates":[{"fileKey":"a","newName":"b.txt"}]}`, stub.last(t).Body)

	err = client.RenameFiles(context.Background(), RenameFilesOpts{})
	var validationErr *ValidationError
	assert.True(t, errors.As(err, &validationErr))
	err = client.RenameFiles(context.Background(), RenameFilesOpts{Updates: []FileRename{{FileKey: "a"}}})
	assert.True(t, errors.As(err, &validationErr))
	assert.Equal(t, 1, stub.count())
}

func TestGetUsageInfo(t *testing.T) {
	client, stub := newAPIStub(t, http.StatusOK, map[string]interface{}{
		"/api/getUsageInfo": map[string]interface{}{
			"totalBytes":       2048,
			"totalReadable":    "2.05KB",
			"appTotalBytes":    1024.5,
			"appTotalReadable": "1.02KB",
			"filesUploaded":    3,
			"limitBytes":       2147483648.0,
			"limitReadable":    "2GB",
		},
	})

	usage, err := client.GetUsageInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2048), usage.TotalBytes)
	assert.Equal(t, 3, usage.FilesUploaded)
	assert.Equal(t, "2GB", usage.LimitReadable)
	assert.JSONEq(t, `{}`, stub.last(t).Body)
}

func TestGetPresignedURL(t *testing.T) {
	client, stub := newAPIStub(t, http.StatusOK, map[string]interface{}{
		"/api/requestFileAccess": map[string]string{"url": "https://utfs.io/f/a?signature=x"},
	})

	expiresIn := 3600
	url, err := client.GetPresignedURL(context.Background(), PresignedURLOpts{FileKey: "a", ExpiresIn: &expiresIn})
	require.NoError(t, err)
	assert.Equal(t, "https://utfs.io/f/a?signature=x", url)
	assert.JSONEq(t, `{"fileKey":"a","expiresIn":3600}`, stub.last(t).Body)

	tooLong := MaxPresignedURLExpiry + 1
	_, err = client.GetPresignedURL(context.Background(), PresignedURLOpts{FileKey: "a", ExpiresIn: &tooLong})
	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "expiresIn", validationErr.Field)

	_, err = client.GetPresignedURL(context.Background(), PresignedURLOpts{})
	assert.True(t, errors.As(err, &validationErr))

	assert.Equal(t, 1, stub.count())
}

func TestAPIErrorIsPrettyPrinted(t *testing.T) {
	client, _ := newAPIStub(t, http.StatusUnauthorized, map[string]interface{}{
		"/api/deleteFile": map[string]string{"error": "Invalid API key"},
	})

	_, err := client.DeleteFiles(context.Background(), []string{"a"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "{\n  \"error\": \"Invalid API key\"\n}", apiErr.Body)
}

func Test_prettyJSON(t *testing.T) {
	assert.Equal(t, "{\n  \"a\": [\n    1\n  ]\n}", prettyJSON([]byte(`{"a":[1]}`)))
	assert.Equal(t, "upstream timeout", prettyJSON([]byte("upstream timeout")))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(prettyJSON([]byte(" {\"b\":true}\n"))), &decoded))
	assert.Equal(t, true, decoded["b"])
}
