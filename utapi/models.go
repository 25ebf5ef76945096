package utapi

import "encoding/json"

// ContentDisposition ...
type ContentDisposition string

// ContentDisposition values.
const (
	ContentDispositionInline     ContentDisposition = "inline"
	ContentDispositionAttachment ContentDisposition = "attachment"
)

// ACL ...
type ACL string

// ACL values.
const (
	ACLPrivate    ACL = "private"
	ACLPublicRead ACL = "public-read"
)

// FileObj is a local file to upload under the given display name.
type FileObj struct {
	Name string
	Path string
}

// UploadFileOpts are shared by every file of a batch.
type UploadFileOpts struct {
	Metadata           map[string]string
	ContentDisposition ContentDisposition
	ACL                ACL
	// MaxConcurrency limits the number of files transferred at the same time.
	// Zero means no limit.
	MaxConcurrency int
}

// FileUpload describes a file that was uploaded (and confirmed, if waiting was requested).
type FileUpload struct {
	Key  string `json:"key"`
	URL  string `json:"url"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

type fileDescriptor struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

type uploadFilesRequest struct {
	Files              []fileDescriptor   `json:"files"`
	Metadata           map[string]string  `json:"metadata"`
	ContentDisposition ContentDisposition `json:"contentDisposition"`
	ACL                ACL                `json:"acl"`
}

type uploadFilesResponse struct {
	Data []UploadTicket `json:"data"`
}

// UploadTicket is issued by the service for one file of a batch.
type UploadTicket struct {
	Key          string `json:"key"`
	FileURL      string `json:"fileUrl"`
	PresignedURL string `json:"presignedUrl"`
	URL          string `json:"url"`
	// Fields must all hold JSON strings, they become the text parts of the upload form.
	Fields map[string]json.RawMessage `json:"fields"`

	// Set for multipart (chunked) uploads.
	URLs       []string `json:"urls,omitempty"`
	UploadID   string   `json:"uploadId,omitempty"`
	ChunkSize  int64    `json:"chunkSize,omitempty"`
	ChunkCount int      `json:"chunkCount,omitempty"`
}

func (t UploadTicket) isMultipart() bool {
	return len(t.URLs) > 0
}

func (t UploadTicket) destination() string {
	if t.PresignedURL != "" {
		return t.PresignedURL
	}
	return t.URL
}

type pollUploadResponse struct {
	Status string `json:"status"`
}

type completedPart struct {
	Tag        string `json:"tag"`
	PartNumber int    `json:"partNumber"`
}

type completeMultipartRequest struct {
	FileKey  string          `json:"fileKey"`
	UploadID string          `json:"uploadId"`
	Etags    []completedPart `json:"etags"`
}

type failureCallbackRequest struct {
	FileKey  string `json:"fileKey"`
	UploadID string `json:"uploadId"`
}

type fileKeysPayload struct {
	FileKeys []string `json:"fileKeys"`
}

// DeleteFileResponse ...
type DeleteFileResponse struct {
	Success bool `json:"success"`
}

// FileURL ...
type FileURL struct {
	URL string `json:"url"`
	Key string `json:"key"`
}

// UrlsResponse ...
type UrlsResponse struct {
	Data []FileURL `json:"data"`
}

// ListFilesOpts controls pagination of ListFiles.
type ListFilesOpts struct {
	Limit  *int `json:"limit,omitempty"`
	Offset *int `json:"offset,omitempty"`
}

// DefaultListFilesOpts returns the first page of 10 files.
func DefaultListFilesOpts() ListFilesOpts {
	limit, offset := 10, 0
	return ListFilesOpts{Limit: &limit, Offset: &offset}
}

// FileStatus ...
type FileStatus string

// FileStatus values reported by the list endpoint.
const (
	FileStatusDeletionPending FileStatus = "Deletion Pending"
	FileStatusFailed          FileStatus = "Failed"
	FileStatusUploaded        FileStatus = "Uploaded"
	FileStatusUploading       FileStatus = "Uploading"
)

// File ...
type File struct {
	Key    string     `json:"key"`
	ID     string     `json:"id"`
	Status FileStatus `json:"status"`
}

// FileListResponse ...
type FileListResponse struct {
	Files []File `json:"files"`
}

// FileRename ...
type FileRename struct {
	FileKey string `json:"fileKey"`
	NewName string `json:"newName"`
}

// RenameFilesOpts ...
type RenameFilesOpts struct {
	Updates []FileRename `json:"updates"`
}

// UsageInfo ...
type UsageInfo struct {
	TotalBytes       int64   `json:"totalBytes"`
	TotalReadable    string  `json:"totalReadable"`
	AppTotalBytes    float64 `json:"appTotalBytes"`
	AppTotalReadable string  `json:"appTotalReadable"`
	FilesUploaded    int     `json:"filesUploaded"`
	LimitBytes       float64 `json:"limitBytes"`
	LimitReadable    string  `json:"limitReadable"`
}

// MaxPresignedURLExpiry is the longest expiry, in seconds, the service accepts (7 days).
const MaxPresignedURLExpiry = 604800

// PresignedURLOpts ...
type PresignedURLOpts struct {
	FileKey string `json:"fileKey"`
	// ExpiresIn is in seconds. Nil uses the expiry configured on the dashboard.
	ExpiresIn *int `json:"expiresIn,omitempty"`
}

type presignedURLResponse struct {
	URL string `json:"url"`
}
