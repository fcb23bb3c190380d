package jobs

import (
	"log"
	"strconv"
	"strings"

	"github.com/yourusername/vibe-downloader/internal/media"
)

// Reporter は抽出エンジンの進捗イベントをレジストリへ反映します。
// エンジン側のゴルーチンから呼び出されるため、処理はレジストリ更新のみに
// 留めてあり、どのイベントでもパニックしません。
type Reporter struct {
	registry *Registry
	logger   *log.Logger
}

// NewReporter は Reporter を作成します。
func NewReporter(registry *Registry, logger *log.Logger) *Reporter {
	return &Reporter{
		registry: registry,
		logger:   logger,
	}
}

// OnEvent は1件の進捗イベントを処理します。
// 既に存在しないジョブへのイベントは無視します。パーセント文字列が
// 解析できない場合も無視し、直前の値を保持します。
func (r *Reporter) OnEvent(jobID string, event media.ProgressEvent) {
	switch event.Type {
	case media.ProgressDownloading:
		percent, ok := parsePercent(event.Percent)
		if !ok {
			return
		}
		r.registry.MarkProgress(jobID, percent)
	case media.ProgressFinished:
		r.registry.MarkProcessing(jobID)
	case media.ProgressError:
		// 終了遷移はオーケストレーター側が所有するため、ここではログのみ
		if r.logger != nil {
			r.logger.Printf("engine reported error event job=%s", jobID)
		}
	}
}

// parsePercent は "47.3%" 形式のパーセント文字列を解析します。
func parsePercent(raw string) (float64, bool) {
	trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "%"))
	if trimmed == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || value < 0 || value > 100 {
		return 0, false
	}
	return value, true
}
