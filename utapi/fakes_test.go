package utapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bitrise-io/go-utapi/config"
	"github.com/bitrise-io/go-utils/v2/analytics"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "sk_test_abc123"

type receivedUpload struct {
	Key      string
	Fields   map[string]string
	FileName string
	Content  string
	APIKey   string
}

// fakeService is a minimal UploadThing API: ticket endpoint, presigned POST
// destinations, multipart part URLs and the poll endpoint.
type fakeService struct {
	t      *testing.T
	server *httptest.Server

	mu              sync.Mutex
	ticketRequests  []uploadFilesRequest
	ticketHeaders   http.Header
	uploads         map[string]receivedUpload
	transferCalls   map[string]int
	pollCalls       map[string]int
	completed       []completeMultipartRequest
	failureReports  []failureCallbackRequest
	transferStarted chan string

	// Hooks, all optional.
	ticketStatus   int
	ticketCount    func(requested int) int
	ticketFields   func(key string) map[string]interface{}
	multipartSize  int64
	completeStatus int
	onTransfer     func(key string, w http.ResponseWriter, r *http.Request) bool
	pollStatus     func(key string, call int) string
}

func newFakeService(t *testing.T) *fakeService {
	f := &fakeService{
		t:               t,
		uploads:         map[string]receivedUpload{},
		transferCalls:   map[string]int{},
		pollCalls:       map[string]int{},
		transferStarted: make(chan string, 100),
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeService) handle(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/uploadFiles":
		f.handleTickets(w, r)
	case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/upload/"):
		f.handleTransfer(w, r, strings.TrimPrefix(r.URL.Path, "/upload/"))
	case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/part/"):
		f.handlePart(w, r)
	case r.Method == http.MethodPost && r.URL.Path == "/api/completeMultipart":
		var req completeMultipartRequest
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
		f.mu.Lock()
		f.completed = append(f.completed, req)
		f.mu.Unlock()
		if f.completeStatus != 0 {
			writeJSON(w, f.completeStatus, map[string]string{"error": "Failed to complete multipart upload"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	case r.Method == http.MethodPost && r.URL.Path == "/api/failureCallback":
		var req failureCallbackRequest
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
		f.mu.Lock()
		f.failureReports = append(f.failureReports, req)
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/pollUpload/"):
		f.handlePoll(w, strings.TrimPrefix(r.URL.Path, "/api/pollUpload/"))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeService) handleTickets(w http.ResponseWriter, r *http.Request) {
	var req uploadFilesRequest
	require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))

	f.mu.Lock()
	f.ticketRequests = append(f.ticketRequests, req)
	f.ticketHeaders = r.Header.Clone()
	f.mu.Unlock()

	if f.ticketStatus != 0 {
		writeJSON(w, f.ticketStatus, map[string]string{"error": "Invalid request", "message": "file type not allowed"})
		return
	}

	count := len(req.Files)
	if f.ticketCount != nil {
		count = f.ticketCount(count)
	}

	data := make([]map[string]interface{}, 0, count)
	for i := 0; i < count; i++ {
		key := fmt.Sprintf("key-%d", i)
		ticket := map[string]interface{}{
			"key":     key,
			"fileUrl": "https://utfs.io/f/" + key,
		}
		if f.multipartSize > 0 {
			size := req.Files[i].Size
			n := int((size + f.multipartSize - 1) / f.multipartSize)
			urls := make([]string, n)
			for p := range urls {
				urls[p] = fmt.Sprintf("%s/part/%s/%d", f.server.URL, key, p+1)
			}
			ticket["urls"] = urls
			ticket["uploadId"] = "upload-" + key
			ticket["chunkSize"] = f.multipartSize
			ticket["chunkCount"] = n
		} else {
			fields := map[string]interface{}{"key": key, "acl": string(req.ACL)}
			if f.ticketFields != nil {
				fields = f.ticketFields(key)
			}
			ticket["presignedUrl"] = f.server.URL + "/upload/" + key
			ticket["fields"] = fields
		}
		data = append(data, ticket)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": data})
}

func (f *fakeService) handleTransfer(w http.ResponseWriter, r *http.Request, key string) {
	f.mu.Lock()
	f.transferCalls[key]++
	f.mu.Unlock()
	f.transferStarted <- key

	if f.onTransfer != nil && f.onTransfer(key, w, r) {
		return
	}

	require.NoError(f.t, r.ParseMultipartForm(1<<20))
	upload := receivedUpload{Key: key, Fields: map[string]string{}, APIKey: r.Header.Get(apiKeyHeader)}
	for name, values := range r.MultipartForm.Value {
		upload.Fields[name] = values[0]
	}
	file, header, err := r.FormFile("file")
	require.NoError(f.t, err)
	content, err := io.ReadAll(file)
	require.NoError(f.t, err)
	upload.FileName = header.Filename
	upload.Content = string(content)

	f.mu.Lock()
	f.uploads[key] = upload
	f.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeService) handlePart(w http.ResponseWriter, r *http.Request) {
	segments := strings.Split(strings.TrimPrefix(r.URL.Path, "/part/"), "/")
	content, err := io.ReadAll(r.Body)
	require.NoError(f.t, err)

	f.mu.Lock()
	upload := f.uploads[segments[0]]
	upload.Key = segments[0]
	upload.Content += fmt.Sprintf("[%s:%s]", segments[1], content)
	f.uploads[segments[0]] = upload
	f.mu.Unlock()

	w.Header().Set("ETag", fmt.Sprintf("\"%s-%s\"", segments[0], segments[1]))
	w.WriteHeader(http.StatusOK)
}

func (f *fakeService) handlePoll(w http.ResponseWriter, key string) {
	f.mu.Lock()
	f.pollCalls[key]++
	call := f.pollCalls[key]
	f.mu.Unlock()

	status := "done"
	if f.pollStatus != nil {
		status = f.pollStatus(key, call)
	}
	if status == "" {
		writeJSON(w, http.StatusOK, map[string]string{})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

func (f *fakeService) tickets() ([]uploadFilesRequest, http.Header) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uploadFilesRequest(nil), f.ticketRequests...), f.ticketHeaders
}

func (f *fakeService) upload(key string) receivedUpload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploads[key]
}

func (f *fakeService) transfers(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.transferCalls[key]
}

func (f *fakeService) polls(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pollCalls[key]
}

func (f *fakeService) completions() []completeMultipartRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]completeMultipartRequest(nil), f.completed...)
}

func (f *fakeService) failures() []failureCallbackRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]failureCallbackRequest(nil), f.failureReports...)
}

func (f *fakeService) totalPollCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.pollCalls {
		total += n
	}
	return total
}

func (f *fakeService) totalTransferCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.transferCalls {
		total += n
	}
	return total
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// recordingSleeper replaces the poller's sleep so backoff tests run instantly.
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return cancelledOr(ctx, err)
	}
	return nil
}

func (s *recordingSleeper) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

const testJitter = 123 * time.Millisecond

func newTestClient(t *testing.T, host string, opts ...Option) (*Client, *recordingSleeper) {
	cfg := config.New(testAPIKey).WithHost(host)
	client, err := NewClient(cfg, log.NewLogger(), opts...)
	require.NoError(t, err)

	sleeper := &recordingSleeper{}
	client.poll.sleep = sleeper.sleep
	client.poll.jitter = func(time.Duration) time.Duration { return testJitter }
	return client, sleeper
}

func writeTestFiles(t *testing.T, count int) []FileObj {
	dir := t.TempDir()
	files := make([]FileObj, 0, count)
	for i := 0; i < count; i++ {
		name := fmt.Sprintf("file-%d.txt", i)
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf("content of file %d", i)), 0644))
		files = append(files, FileObj{Name: name, Path: path})
	}
	return files
}

type trackedEvent struct {
	name       string
	properties analytics.Properties
}

type fakeTracker struct {
	mu     sync.Mutex
	events []trackedEvent
}

func (f *fakeTracker) Enqueue(eventName string, properties ...analytics.Properties) {
	f.mu.Lock()
	defer f.mu.Unlock()
	merged := analytics.Properties{}
	for _, p := range properties {
		for k, v := range p {
			merged[k] = v
		}
	}
	f.events = append(f.events, trackedEvent{name: eventName, properties: merged})
}

func (f *fakeTracker) Wait() {}

func (f *fakeTracker) byName(name string) []trackedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var events []trackedEvent
	for _, e := range f.events {
		if e.name == name {
			events = append(events, e)
		}
	}
	return events
}
