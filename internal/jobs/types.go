package jobs

import "time"

// Status はジョブの実行状態を表します。
type Status string

const (
	StatusDownloading Status = "downloading"
	StatusProcessing  Status = "processing"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusCanceled    Status = "canceled"
)

// Terminal は終了状態（これ以上遷移しない状態）かどうかを返します。
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

// Job はレジストリが追跡する1件のダウンロードジョブです。
// レジストリの外へは常に値コピー（スナップショット）として渡されるため、
// 読み手が書き込み途中の状態を観測することはありません。
type Job struct {
	ID          string    `json:"jobId"`
	URL         string    `json:"url"`
	VideoFormat string    `json:"videoFormat,omitempty"`
	AudioFormat string    `json:"audioFormat,omitempty"`
	Status      Status    `json:"status"`
	Progress    float64   `json:"progress"`
	OutputPath  string    `json:"-"`
	StorageDir  string    `json:"-"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"startedAt"`
	CompletedAt time.Time `json:"completedAt,omitempty"`
}
