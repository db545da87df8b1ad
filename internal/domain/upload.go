package domain

// UploadStatus is the lifecycle state of an in-flight media upload
type UploadStatus string

const (
	UploadStatusInProgress UploadStatus = "in_progress"
	UploadStatusCompleted  UploadStatus = "completed"
	UploadStatusFailed     UploadStatus = "failed"
)

// UploadTask tracks one blob transfer. It lives in memory only, owned by
// the tracker, and is destroyed after its terminal state is observed.
type UploadTask struct {
	ID       string       `json:"id"`
	Progress float64      `json:"progress"` // [0,1]
	Status   UploadStatus `json:"status"`
	Error    string       `json:"error,omitempty"`
}

// UploadResponse is returned when an upload finishes
type UploadResponse struct {
	UploadID string `json:"upload_id"`
	Key      string `json:"key"`
	URL      string `json:"url"`
	CDNURL   string `json:"cdn_url,omitempty"`
	Size     int64  `json:"size"`
}
