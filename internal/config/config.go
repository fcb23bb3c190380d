// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// サーバー設定
	Port    string // APIサーバーのポート番号
	GinMode string // Ginの実行モード (debug, release, test)

	// CORS設定
	CORSAllowedOrigins string // CORS許可オリジン（カンマ区切り）

	// ストレージ設定
	DownloadDir string // ジョブごとの成果物を置くダウンロードルート
	TempDir     string // 直接ダウンロード用の共有スクラッチ領域
	CookieFile  string // yt-dlpに渡すクッキーファイルのパス

	// ジョブ設定
	JobTTLMinutes          int // 終了済みジョブの保持時間（分）
	OrphanTTLMinutes       int // 所有者不明ファイルの保持時間（分）
	CleanupIntervalMinutes int // クリーンアップの実行間隔（分）
	MaxConcurrentJobs      int // 同時に実行するダウンロードジョブ数

	// 抽出エンジン設定
	MaxHeight        int    // フォールバック時の解像度上限（高さ）
	FFmpegLocation   string // ffmpeg実行ファイルのパス
	SocketTimeoutSec int    // yt-dlpのソケットタイムアウト（秒）
	DownloadRetries  int    // yt-dlpのリトライ回数
}

// Load は環境変数から設定を読み込みます。
// .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	// .env.local ファイルを読み込む（存在しない場合はスキップ）
	loadEnvFile()

	config := &Config{
		// サーバー設定
		Port:    getEnv("PORT", "8080"),
		GinMode: getEnv("GIN_MODE", "debug"),

		// CORS設定
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),

		// ストレージ設定
		DownloadDir: getEnv("DOWNLOAD_DIR", "/tmp/downloads"),
		TempDir:     getEnv("TEMP_DIR", "/tmp/temp"),
		CookieFile:  getEnv("COOKIE_FILE", "/tmp/cookie.txt"),

		// ジョブ設定
		JobTTLMinutes:          getEnvAsInt("JOB_TTL_MINUTES", 30),
		OrphanTTLMinutes:       getEnvAsInt("ORPHAN_TTL_MINUTES", 120),
		CleanupIntervalMinutes: getEnvAsInt("CLEANUP_INTERVAL_MINUTES", 15),
		MaxConcurrentJobs:      getEnvAsInt("MAX_CONCURRENT_JOBS", 4),

		// 抽出エンジン設定
		MaxHeight:        getEnvAsInt("MAX_HEIGHT", 1080),
		FFmpegLocation:   getEnv("FFMPEG_LOCATION", "/usr/bin/ffmpeg"),
		SocketTimeoutSec: getEnvAsInt("SOCKET_TIMEOUT_SEC", 30),
		DownloadRetries:  getEnvAsInt("DOWNLOAD_RETRIES", 3),
	}

	// 必須設定のバリデーション
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

// Validate は設定の妥当性を検証します。
func (c *Config) Validate() error {
	if c.DownloadDir == "" {
		return fmt.Errorf("DOWNLOAD_DIR is required")
	}
	if c.TempDir == "" {
		return fmt.Errorf("TEMP_DIR is required")
	}
	if c.JobTTLMinutes <= 0 {
		return fmt.Errorf("JOB_TTL_MINUTES must be positive (received: %d)", c.JobTTLMinutes)
	}
	if c.CleanupIntervalMinutes <= 0 {
		return fmt.Errorf("CLEANUP_INTERVAL_MINUTES must be positive (received: %d)", c.CleanupIntervalMinutes)
	}
	if c.MaxConcurrentJobs <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_JOBS must be positive (received: %d)", c.MaxConcurrentJobs)
	}
	if c.MaxHeight <= 0 {
		return fmt.Errorf("MAX_HEIGHT must be positive (received: %d)", c.MaxHeight)
	}

	return nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します。
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt は環境変数を整数として取得します。
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
