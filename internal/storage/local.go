// Package storage はジョブ成果物とスクラッチ領域のローカルストレージを管理します。
package storage

import (
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"os"
	"path/filepath"
	"time"
)

// Area はダウンロードルートと共有スクラッチ領域を所有します。
// ジョブごとの私有ディレクトリはダウンロードルート直下にジョブIDで作成され、
// 他のジョブから読み書きされることはありません。
type Area struct {
	downloadRoot string
	scratchRoot  string
	cookieFile   string
	logger       *log.Logger
}

// NewArea は Area を作成します。
func NewArea(downloadRoot, scratchRoot, cookieFile string, logger *log.Logger) *Area {
	return &Area{
		downloadRoot: downloadRoot,
		scratchRoot:  scratchRoot,
		cookieFile:   cookieFile,
		logger:       logger,
	}
}

// Init は必要なディレクトリを作成します。起動時に一度呼び出します。
func (a *Area) Init() error {
	for _, dir := range []string{a.downloadRoot, a.scratchRoot} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create storage dir %s: %w", dir, err)
		}
	}
	return nil
}

// JobDir はジョブの私有ディレクトリのパスを返します（作成はしません）。
func (a *Area) JobDir(jobID string) string {
	return filepath.Join(a.downloadRoot, jobID)
}

// CreateJobDir はジョブの私有ディレクトリを作成してパスを返します。
func (a *Area) CreateJobDir(jobID string) (string, error) {
	dir := a.JobDir(jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create job dir %s: %w", dir, err)
	}
	return dir, nil
}

// RemoveJobDir はジョブの私有ディレクトリを削除します。
// 存在しない場合はエラーになりません。
func (a *Area) RemoveJobDir(jobID string) error {
	return os.RemoveAll(a.JobDir(jobID))
}

// CreateScratchDir はスクラッチ領域にキー付きディレクトリを作成します。
// 同期ダウンロードの中間成果物はここに置かれ、キーが衝突しない限り
// 他のリクエストとファイル名が競合することはありません。
func (a *Area) CreateScratchDir(key string) (string, error) {
	dir := filepath.Join(a.scratchRoot, key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create scratch dir %s: %w", dir, err)
	}
	return dir, nil
}

// RemoveScratchDir はスクラッチ領域のキー付きディレクトリを削除します。
func (a *Area) RemoveScratchDir(key string) error {
	return os.RemoveAll(filepath.Join(a.scratchRoot, key))
}

// SweepOrphans はレジストリに対応するエントリが無く、最終更新が ttl より
// 古いディレクトリ・ファイルを削除し、削除した数を返します。
// プロセス再起動で取り残された状態の回収が目的です。
// 個々の削除失敗はログに残し、残りの回収は継続します。
func (a *Area) SweepOrphans(now time.Time, ttl time.Duration, isLive func(jobID string) bool) int {
	removed := 0
	removed += a.sweepDir(a.downloadRoot, now, ttl, isLive)
	// スクラッチ領域にレジストリ対応エントリは存在しないので全件が回収候補
	removed += a.sweepDir(a.scratchRoot, now, ttl, func(string) bool { return false })
	return removed
}

func (a *Area) sweepDir(root string, now time.Time, ttl time.Duration, isLive func(string) bool) int {
	entries, err := os.ReadDir(root)
	if err != nil {
		if !os.IsNotExist(err) && a.logger != nil {
			a.logger.Printf("orphan sweep: failed to read %s: %v", root, err)
		}
		return 0
	}

	removed := 0
	for _, entry := range entries {
		if isLive(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) <= ttl {
			continue
		}
		path := filepath.Join(root, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			if a.logger != nil {
				a.logger.Printf("orphan sweep: failed to remove %s: %v", path, err)
			}
			continue
		}
		removed++
	}
	return removed
}

// CookiePath はクッキーファイルのパスを返します。
func (a *Area) CookiePath() string {
	return a.cookieFile
}

// CookieExists はクッキーファイルが存在するかを返します。
func (a *Area) CookieExists() bool {
	_, err := os.Stat(a.cookieFile)
	return err == nil
}

// SaveCookie はアップロードされたクッキーファイルで既存ファイルを置き換えます。
func (a *Area) SaveCookie(file *multipart.FileHeader) error {
	if file == nil {
		return fmt.Errorf("cookie file is nil")
	}
	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("failed to open uploaded cookie file: %w", err)
	}
	defer src.Close()

	dst, err := os.OpenFile(a.cookieFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open cookie file %s: %w", a.cookieFile, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to write cookie file: %w", err)
	}
	return nil
}
