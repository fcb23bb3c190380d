// Package jobs は非同期ダウンロードジョブのレジストリとライフサイクル管理を提供します。
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/yourusername/vibe-downloader/internal/media"
)

// Engine は抽出エンジンとしてダウンロードを実行できるサービスが実装します。
type Engine interface {
	Download(ctx context.Context, req media.DownloadRequest, progress media.ProgressFunc) (string, error)
}

// JobStorage はジョブの私有ディレクトリを管理できるストレージが実装します。
type JobStorage interface {
	CreateJobDir(jobID string) (string, error)
	RemoveJobDir(jobID string) error
}

// Manager は1ジョブを作成から終了状態まで駆動するオーケストレーターです。
// ジョブごとに専用ゴルーチンを起動しますが、同時実行数はスロットで制限されます。
type Manager struct {
	registry *Registry
	reporter *Reporter
	storage  JobStorage
	engine   Engine
	logger   *log.Logger

	maxHeight int
	slots     chan struct{}

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewManager は Manager を初期化します。
func NewManager(registry *Registry, storage JobStorage, engine Engine, maxHeight, concurrency int, logger *log.Logger) *Manager {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Manager{
		registry:  registry,
		reporter:  NewReporter(registry, logger),
		storage:   storage,
		engine:    engine,
		logger:    logger,
		maxHeight: maxHeight,
		slots:     make(chan struct{}, concurrency),
		cancels:   make(map[string]context.CancelFunc),
	}
}

// Start はジョブを登録してバックグラウンド実行を開始し、ジョブIDを返します。
// 返却時点でジョブは Downloading 状態で参照可能です。
func (m *Manager) Start(url, videoFormat, audioFormat string) (string, error) {
	jobID := m.registry.Create(url, videoFormat, audioFormat)

	dir, err := m.storage.CreateJobDir(jobID)
	if err != nil {
		m.registry.Remove(jobID)
		return "", fmt.Errorf("failed to create storage for job %s: %w", jobID, err)
	}
	m.registry.SetStorageDir(jobID, dir)

	ctx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	m.cancels[jobID] = cancel
	m.mu.Unlock()

	req := media.DownloadRequest{
		URL:        url,
		OutputDir:  dir,
		OutputBase: jobID,
		Selection:  media.BuildSelection(videoFormat, audioFormat, m.maxHeight),
	}
	go m.run(ctx, jobID, req)

	return jobID, nil
}

// run は1ジョブの実行単位です。あらゆるエラーはここで捕捉されて
// Failed 終了状態へ変換され、呼び出し元のリクエストへは伝播しません。
func (m *Manager) run(ctx context.Context, jobID string, req media.DownloadRequest) {
	defer m.dropCancel(jobID)
	defer func() {
		if rec := recover(); rec != nil {
			if m.registry.MarkFailed(jobID, fmt.Sprintf("internal error: %v", rec)) && m.logger != nil {
				m.logger.Printf("job panicked job=%s: %v", jobID, rec)
			}
		}
	}()

	select {
	case m.slots <- struct{}{}:
	case <-ctx.Done():
		// スロット待ちの間にキャンセルされた（ストレージは Cancel 側で削除済み）
		return
	}
	defer func() { <-m.slots }()

	outputPath, err := m.engine.Download(ctx, req, func(event media.ProgressEvent) {
		m.reporter.OnEvent(jobID, event)
	})
	if err != nil {
		if job, ok := m.registry.Get(jobID); ok && job.Status == StatusCanceled {
			// キャンセル後にエンジンが書き残したファイルを回収する
			_ = m.storage.RemoveJobDir(jobID)
			return
		}
		m.registry.MarkFailed(jobID, failureMessage(err))
		if m.logger != nil {
			m.logger.Printf("job failed job=%s: %v", jobID, err)
		}
		return
	}

	if !m.registry.MarkCompleted(jobID, outputPath) {
		// 遅延完了: ジョブは既にキャンセル済みなので成果物は公開せず破棄
		if err := m.storage.RemoveJobDir(jobID); err != nil && m.logger != nil {
			m.logger.Printf("failed to discard output of canceled job=%s: %v", jobID, err)
		}
		return
	}

	if m.logger != nil {
		m.logger.Printf("job completed job=%s output=%s", jobID, outputPath)
	}
}

// Cancel はダウンロード中のジョブをキャンセルし、ストレージを即時回収します。
// 実行中のエンジン呼び出しの中断はベストエフォートです。
func (m *Manager) Cancel(jobID string) error {
	if err := m.registry.Cancel(jobID); err != nil {
		return err
	}

	m.mu.Lock()
	cancel := m.cancels[jobID]
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	if err := m.storage.RemoveJobDir(jobID); err != nil && m.logger != nil {
		m.logger.Printf("failed to remove storage of canceled job=%s: %v", jobID, err)
	}
	return nil
}

// Snapshot はジョブの現在状態を返します。
func (m *Manager) Snapshot(jobID string) (Job, bool) {
	return m.registry.Get(jobID)
}

// Counts は実行中・終了済みのジョブ数を返します。
func (m *Manager) Counts() (active, terminal int) {
	return m.registry.Counts()
}

func (m *Manager) dropCancel(jobID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cancels, jobID)
}

// failureMessage はエラーから利用者向けの失敗理由を取り出します。
func failureMessage(err error) string {
	var apiErr *media.Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}
