package utapi

import (
	"context"
	"errors"
	"time"

	"github.com/docker/go-units"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// UploadStatus is the outcome of one file of a batch.
type UploadStatus string

// UploadStatus values.
const (
	StatusUploaded UploadStatus = "uploaded"
	// StatusFailed: the transfer (or a poll request) failed.
	StatusFailed UploadStatus = "failed"
	// StatusIncomplete: transferred, but the service never reported it done.
	StatusIncomplete UploadStatus = "incomplete"
	StatusCancelled  UploadStatus = "cancelled"
)

// FileOutcome ...
type FileOutcome struct {
	File   FileObj
	Status UploadStatus
	// Upload is set only for StatusUploaded.
	Upload *FileUpload
	Err    error
}

// Report has one outcome per input file, in input order.
type Report struct {
	BatchID  string
	Outcomes []FileOutcome
}

// Uploads returns the successfully uploaded files in input order.
func (r Report) Uploads() []FileUpload {
	uploads := make([]FileUpload, 0, len(r.Outcomes))
	for _, outcome := range r.Outcomes {
		if outcome.Status == StatusUploaded && outcome.Upload != nil {
			uploads = append(uploads, *outcome.Upload)
		}
	}
	return uploads
}

// Counts returns the number of files per status.
func (r Report) Counts() map[UploadStatus]int {
	counts := map[UploadStatus]int{}
	for _, outcome := range r.Outcomes {
		counts[outcome.Status]++
	}
	return counts
}

// UploadFiles uploads files as one batch and returns the files that made it.
// Only a failed ticket request (*BatchTicketError) or invalid input fails the
// whole call; a file that fails on its own is left out of the result. Use
// UploadFilesWithReport to see why.
func (c *Client) UploadFiles(ctx context.Context, files []FileObj, opts *UploadFileOpts, waitUntilDone bool) ([]FileUpload, error) {
	report, err := c.UploadFilesWithReport(ctx, files, opts, waitUntilDone)
	if err != nil {
		return nil, err
	}
	return report.Uploads(), nil
}

// UploadFilesWithReport requests the upload tickets of all files in a single
// call, then transfers every file in its own goroutine and, if waitUntilDone
// is set, polls until the service has processed it. Files do not affect each
// other: a failed or cancelled file only changes its own outcome.
func (c *Client) UploadFilesWithReport(ctx context.Context, files []FileObj, opts *UploadFileOpts, waitUntilDone bool) (Report, error) {
	report := Report{BatchID: uuid.NewString()}
	if len(files) == 0 {
		return report, &ValidationError{Field: "files", Reason: "no files to upload"}
	}

	options := resolveOptions(opts)
	if err := options.validate(); err != nil {
		return report, err
	}

	descriptors, err := describeFiles(files)
	if err != nil {
		return report, err
	}

	var totalBytes int64
	for _, d := range descriptors {
		totalBytes += d.Size
	}
	c.logger.Infof("[%s] Uploading %d file(s), %s", report.BatchID, len(files), units.HumanSizeWithPrecision(float64(totalBytes), 3))

	tracker := newBatchTracker(c.tracker, report.BatchID)
	batchStart := time.Now()
	tickets, err := c.requestTickets(ctx, descriptors, options)
	if err != nil {
		return report, err
	}
	tracker.logTicketsRequested(len(files), totalBytes, time.Since(batchStart))

	report.Outcomes = make([]FileOutcome, len(files))
	var group errgroup.Group
	if options.maxConcurrency > 0 {
		group.SetLimit(options.maxConcurrency)
	}
	for i := range files {
		i := i
		group.Go(func() error {
			report.Outcomes[i] = c.uploadFile(ctx, tracker, files[i], descriptors[i], tickets[i], waitUntilDone)
			return nil
		})
	}
	_ = group.Wait()

	counts := report.Counts()
	c.logger.Donef("[%s] %d of %d file(s) uploaded", report.BatchID, counts[StatusUploaded], len(files))
	if n := len(files) - counts[StatusUploaded]; n > 0 {
		c.logger.Warnf("[%s] %d failed, %d incomplete, %d cancelled", report.BatchID, counts[StatusFailed], counts[StatusIncomplete], counts[StatusCancelled])
	}
	tracker.logBatchFinished(report, time.Since(batchStart))

	return report, nil
}

func (c *Client) uploadFile(ctx context.Context, tracker batchTracker, file FileObj, descriptor fileDescriptor, ticket UploadTicket, waitUntilDone bool) FileOutcome {
	outcome := FileOutcome{File: file}
	start := time.Now()

	if err := c.transfer(ctx, ticket, file, descriptor.Name); err != nil {
		return c.fileFailed(tracker, outcome, descriptor, "upload", err)
	}

	if waitUntilDone {
		result, err := c.pollUntilDone(ctx, ticket.Key)
		if err != nil {
			return c.fileFailed(tracker, outcome, descriptor, "poll", err)
		}
		if result == PollIncomplete {
			c.logger.Warnf("Upload of %s (%s) was not confirmed in time", file.Path, ticket.Key)
			outcome.Status = StatusIncomplete
			tracker.logFileFailed(outcome.Status, descriptor.Size)
			return outcome
		}
	}

	outcome.Status = StatusUploaded
	outcome.Upload = &FileUpload{
		Key:  ticket.Key,
		URL:  ticket.FileURL,
		Name: descriptor.Name,
		Size: descriptor.Size,
	}
	c.logger.Debugf("Uploaded %s as %s", file.Path, ticket.Key)
	tracker.logFileUploaded(descriptor.Size, time.Since(start), waitUntilDone)
	return outcome
}

func (c *Client) fileFailed(tracker batchTracker, outcome FileOutcome, descriptor fileDescriptor, stage string, err error) FileOutcome {
	outcome.Err = err
	if errors.Is(err, ErrCancelled) {
		outcome.Status = StatusCancelled
		c.logger.Warnf("Upload cancelled for file %s (%s)", outcome.File.Path, stage)
	} else {
		outcome.Status = StatusFailed
		c.logger.Errorf("Error uploading file %s (%s): %s", outcome.File.Path, stage, err)
	}
	tracker.logFileFailed(outcome.Status, descriptor.Size)
	return outcome
}
