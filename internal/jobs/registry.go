package jobs

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound は指定されたジョブIDが存在しないことを表します。
	ErrNotFound = errors.New("job not found")
	// ErrNotCancelable はジョブがキャンセル可能な状態にないことを表します。
	ErrNotCancelable = errors.New("job is not cancelable")
)

// Registry はジョブ状態をメモリ上で管理する唯一の情報源です。
// 全ての読み書きは単一のミューテックスで直列化され、進捗コールバックと
// 終了遷移が同時に到着しても更新が失われることはありません。
// プロセス再起動で内容は失われます（永続化はしない設計です）。
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	now  func() time.Time
}

// NewRegistry は Registry を作成します。
func NewRegistry() *Registry {
	return &Registry{
		jobs: make(map[string]*Job),
		now:  time.Now,
	}
}

// Create は新しいジョブを Downloading 状態で登録し、ジョブIDを返します。
// IDはUUIDで生成されるため同時作成でも衝突しません。
func (r *Registry) Create(url, videoFormat, audioFormat string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.New().String()
	r.jobs[id] = &Job{
		ID:          id,
		URL:         url,
		VideoFormat: videoFormat,
		AudioFormat: audioFormat,
		Status:      StatusDownloading,
		StartedAt:   r.now().UTC(),
	}
	return id
}

// Get はジョブのスナップショットを返します。
func (r *Registry) Get(jobID string) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// SetStorageDir はジョブの私有ディレクトリを記録します。
func (r *Registry) SetStorageDir(jobID, dir string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if job, ok := r.jobs[jobID]; ok {
		job.StorageDir = dir
	}
}

// MarkProgress はダウンロード中の進捗率を更新します。
// 進捗は単調非減少で、Downloading 以外の状態では何もしません。
func (r *Registry) MarkProgress(jobID string, percent float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok || job.Status != StatusDownloading {
		return
	}
	if percent > job.Progress {
		job.Progress = percent
	}
}

// MarkProcessing はダウンロード完了・後処理中への遷移を記録します。
// 進捗は100に固定されます。Downloading 以外からは遷移しません。
func (r *Registry) MarkProcessing(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok || job.Status != StatusDownloading {
		return
	}
	job.Status = StatusProcessing
	job.Progress = 100
}

// MarkCompleted はジョブを完了状態にします。既に終了状態の場合は何もせず
// false を返します（重複コールバックや遅延完了の検出に使います）。
func (r *Registry) MarkCompleted(jobID, outputPath string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok || job.Status.Terminal() {
		return false
	}
	job.Status = StatusCompleted
	job.Progress = 100
	job.OutputPath = outputPath
	job.CompletedAt = r.now().UTC()
	return true
}

// MarkFailed はジョブを失敗状態にします。既に終了状態の場合は何もせず
// false を返します。
func (r *Registry) MarkFailed(jobID, message string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok || job.Status.Terminal() {
		return false
	}
	job.Status = StatusFailed
	job.Error = message
	job.CompletedAt = r.now().UTC()
	return true
}

// Cancel はダウンロード中のジョブをキャンセル状態にします。
// Downloading 以外の状態では ErrNotCancelable を返します。
func (r *Registry) Cancel(jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	if job.Status != StatusDownloading {
		return ErrNotCancelable
	}
	job.Status = StatusCanceled
	job.CompletedAt = r.now().UTC()
	return nil
}

// Remove はジョブをレジストリから取り除きます。
func (r *Registry) Remove(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.jobs, jobID)
}

// ListExpired は終了時刻から ttl を超過した終了済みジョブのID一覧を返します。
// 実行中のジョブは対象になりません。
func (r *Registry) ListExpired(now time.Time, ttl time.Duration) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var expired []string
	for id, job := range r.jobs {
		if job.Status.Terminal() && now.Sub(job.CompletedAt) > ttl {
			expired = append(expired, id)
		}
	}
	return expired
}

// Counts は実行中・終了済みのジョブ数を返します。
func (r *Registry) Counts() (active, terminal int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, job := range r.jobs {
		if job.Status.Terminal() {
			terminal++
		} else {
			active++
		}
	}
	return active, terminal
}
