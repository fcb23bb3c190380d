// Package media は yt-dlp による動画メタデータの取得とダウンロードを提供します。
package media

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"github.com/yourusername/vibe-downloader/internal/config"
)

const (
	progressInterval = 500 * time.Millisecond
	userAgent        = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	trimFilenameLen  = 200
)

// Service は抽出エンジン（yt-dlp）のラッパーです。
type Service struct {
	cfg    *config.Config
	logger *log.Logger
}

// NewService は Service を作成します。
func NewService(cfg *config.Config, logger *log.Logger) *Service {
	return &Service{
		cfg:    cfg,
		logger: logger,
	}
}

// DownloadRequest は1回のダウンロード実行の指定です。
type DownloadRequest struct {
	URL        string
	OutputDir  string // 成果物を書き込むディレクトリ（呼び出し側が所有）
	OutputBase string // 拡張子を除いた出力ファイル名（通常はジョブID）
	Selection  Selection
}

// baseCommand は全操作で共通の yt-dlp オプションを組み立てます。
func (s *Service) baseCommand() *ytdlp.Command {
	dl := ytdlp.New().
		NoWarnings().
		NoPlaylist().
		RestrictFilenames().
		TrimFilenames(trimFilenameLen).
		SocketTimeout(float64(s.cfg.SocketTimeoutSec)).
		Retries(strconv.Itoa(s.cfg.DownloadRetries)).
		UserAgent(userAgent)

	// クッキーファイルがあれば年齢制限付きコンテンツ等にも対応できる
	if _, err := os.Stat(s.cfg.CookieFile); err == nil {
		dl = dl.Cookies(s.cfg.CookieFile)
	}

	return dl
}

// Probe はURLを解決してメタデータとフォーマット一覧を返します。ダウンロードは行いません。
func (s *Service) Probe(ctx context.Context, url string) (*VideoInfo, error) {
	dl := s.baseCommand().
		SkipDownload().
		DumpSingleJSON()

	result, err := dl.Run(ctx, url)
	if err != nil {
		return nil, newError("EXTRACTION_FAILED", fmt.Sprintf("動画情報の取得に失敗しました: %s", url), err)
	}

	var raw probeInfo
	if err := json.Unmarshal([]byte(result.Stdout), &raw); err != nil {
		return nil, newError("EXTRACTION_FAILED", "動画情報の解析に失敗しました。", err)
	}
	if raw.ID == "" {
		return nil, newError("EXTRACTION_FAILED", "動画情報が空でした。", nil)
	}

	return buildVideoInfo(&raw), nil
}

// Download は指定ストリームをダウンロードし、必要なら結合・変換した上で
// 最終成果物の絶対パスを返します。成果物の存在確認まで行うため、
// 返却された時点でファイルはディスク上に存在します。
func (s *Service) Download(ctx context.Context, req DownloadRequest, progress ProgressFunc) (string, error) {
	sel := req.Selection
	outputTemplate := filepath.Join(req.OutputDir, req.OutputBase+".%(ext)s")
	expectedPath := filepath.Join(req.OutputDir, req.OutputBase+"."+sel.OutputExt)

	dl := s.baseCommand().
		Format(sel.Format).
		Output(outputTemplate).
		FFmpegLocation(s.cfg.FFmpegLocation)

	if sel.ExtractAudio {
		dl = dl.ExtractAudio().
			AudioFormat("mp3").
			AudioQuality("192K")
	} else {
		// 映像系は常に単一の再生可能コンテナへ正規化する
		dl = dl.MergeOutputFormat("mp4")
	}

	if progress != nil {
		dl = dl.ProgressFunc(progressInterval, func(update ytdlp.ProgressUpdate) {
			progress(eventFromUpdate(update))
		})
	}

	if _, err := dl.Run(ctx, req.URL); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", newError("EXTRACTION_FAILED", "ダウンロードに失敗しました。", err)
	}

	// Run の復帰と同期して出力を検証する（ディレクトリ走査はしない）
	if _, err := os.Stat(expectedPath); err != nil {
		return "", newError("MERGE_FAILED", "ダウンロードは完了しましたが成果物が見つかりません。", err)
	}

	return expectedPath, nil
}

// eventFromUpdate は yt-dlp の進捗更新を ProgressEvent へ変換します。
func eventFromUpdate(update ytdlp.ProgressUpdate) ProgressEvent {
	switch update.Status {
	case ytdlp.ProgressStatusError:
		return ProgressEvent{Type: ProgressError}
	case ytdlp.ProgressStatusPostProcessing, ytdlp.ProgressStatusFinished:
		return ProgressEvent{Type: ProgressFinished}
	default:
		event := ProgressEvent{Type: ProgressDownloading}
		if update.TotalBytes > 0 {
			percent := float64(update.DownloadedBytes) / float64(update.TotalBytes) * 100
			event.Percent = fmt.Sprintf("%.1f%%", percent)
		}
		return event
	}
}
