package utapi

import (
	"time"

	"github.com/bitrise-io/go-utils/v2/analytics"
)

type batchTracker struct {
	tracker analytics.Tracker
	batchID string
}

func newBatchTracker(tracker analytics.Tracker, batchID string) batchTracker {
	return batchTracker{tracker: tracker, batchID: batchID}
}

func (t batchTracker) enqueue(event string, properties analytics.Properties) {
	if t.tracker == nil {
		return
	}
	properties["batch_id"] = t.batchID
	t.tracker.Enqueue(event, properties)
}

func (t batchTracker) logTicketsRequested(fileCount int, totalBytes int64, took time.Duration) {
	t.enqueue("utapi_batch_tickets_requested", analytics.Properties{
		"file_count":     fileCount,
		"total_bytes":    totalBytes,
		"request_time_s": took.Seconds(),
	})
}

func (t batchTracker) logFileUploaded(size int64, took time.Duration, waited bool) {
	t.enqueue("utapi_file_uploaded", analytics.Properties{
		"size_bytes":    size,
		"upload_time_s": took.Seconds(),
		"waited":        waited,
	})
}

func (t batchTracker) logFileFailed(status UploadStatus, size int64) {
	t.enqueue("utapi_file_failed", analytics.Properties{
		"status":     string(status),
		"size_bytes": size,
	})
}

func (t batchTracker) logBatchFinished(report Report, took time.Duration) {
	counts := report.Counts()
	t.enqueue("utapi_batch_finished", analytics.Properties{
		"file_count":       len(report.Outcomes),
		"uploaded_count":   counts[StatusUploaded],
		"failed_count":     counts[StatusFailed],
		"incomplete_count": counts[StatusIncomplete],
		"cancelled_count":  counts[StatusCancelled],
		"batch_time_s":     took.Seconds(),
	})
}
