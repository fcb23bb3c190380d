package jobs

import (
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// JanitorStorage は Janitor が回収対象とするストレージが実装します。
type JanitorStorage interface {
	RemoveJobDir(jobID string) error
	SweepOrphans(now time.Time, ttl time.Duration, isLive func(jobID string) bool) int
}

// Janitor は終了済みジョブと所有者不明ファイルを定期的に回収します。
// 回収ロジック（Sweep）はスケジューラーから独立しており、時刻を渡して
// 単体でテストできます。
type Janitor struct {
	registry  *Registry
	storage   JanitorStorage
	ttl       time.Duration
	orphanTTL time.Duration
	logger    *log.Logger
	cron      *cron.Cron
}

// NewJanitor は Janitor を作成します。
func NewJanitor(registry *Registry, storage JanitorStorage, ttl, orphanTTL time.Duration, logger *log.Logger) *Janitor {
	return &Janitor{
		registry:  registry,
		storage:   storage,
		ttl:       ttl,
		orphanTTL: orphanTTL,
		logger:    logger,
	}
}

// Start は interval ごとの定期実行を開始します。
func (j *Janitor) Start(interval time.Duration) error {
	j.cron = cron.New()
	_, err := j.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		j.Sweep(time.Now())
	})
	if err != nil {
		return fmt.Errorf("failed to schedule cleanup: %w", err)
	}
	j.cron.Start()
	return nil
}

// Stop は定期実行を停止します。実行中のスイープは完了まで待ちません。
func (j *Janitor) Stop() {
	if j.cron != nil {
		j.cron.Stop()
	}
}

// Sweep は1回分の回収を実行します。
// (a) 終了時刻から TTL を超過したジョブをレジストリとディスクから削除し、
// (b) レジストリに対応エントリの無い古いファイルを防御的に削除します。
// 個々の削除失敗は記録されるだけで、残りの回収を妨げません。
func (j *Janitor) Sweep(now time.Time) {
	expired := j.registry.ListExpired(now, j.ttl)
	for _, jobID := range expired {
		j.registry.Remove(jobID)
		if err := j.storage.RemoveJobDir(jobID); err != nil {
			if j.logger != nil {
				j.logger.Printf("cleanup: failed to remove storage job=%s: %v", jobID, err)
			}
			continue
		}
	}

	orphans := j.storage.SweepOrphans(now, j.orphanTTL, func(jobID string) bool {
		_, ok := j.registry.Get(jobID)
		return ok
	})

	if j.logger != nil && (len(expired) > 0 || orphans > 0) {
		j.logger.Printf("cleanup: removed %d expired jobs, %d orphaned entries", len(expired), orphans)
	}
}
