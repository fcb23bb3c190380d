// Package main はAPIサーバーのエントリーポイントです。
package main

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/lrstanley/go-ytdlp"

	"github.com/yourusername/vibe-downloader/internal/config"
	"github.com/yourusername/vibe-downloader/internal/jobs"
	"github.com/yourusername/vibe-downloader/internal/media"
	"github.com/yourusername/vibe-downloader/internal/storage"
)

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := log.Default()

	// Ginのモードを設定
	gin.SetMode(cfg.GinMode)

	// ストレージ領域の初期化
	area := storage.NewArea(cfg.DownloadDir, cfg.TempDir, cfg.CookieFile, logger)
	if err := area.Init(); err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	// yt-dlpバイナリの確認（無ければ取得を試みる。失敗してもPATH上のバイナリで動ける）
	if _, err := ytdlp.Install(context.Background(), nil); err != nil {
		logger.Printf("yt-dlp install check failed (will rely on PATH): %v", err)
	}

	// サービスの組み立て
	mediaService := media.NewService(cfg, logger)
	registry := jobs.NewRegistry()
	manager := jobs.NewManager(registry, area, mediaService, cfg.MaxHeight, cfg.MaxConcurrentJobs, logger)

	// クリーンアップの定期実行を開始
	janitor := jobs.NewJanitor(
		registry,
		area,
		time.Duration(cfg.JobTTLMinutes)*time.Minute,
		time.Duration(cfg.OrphanTTLMinutes)*time.Minute,
		logger,
	)
	if err := janitor.Start(time.Duration(cfg.CleanupIntervalMinutes) * time.Minute); err != nil {
		log.Fatalf("Failed to start janitor: %v", err)
	}
	defer janitor.Stop()

	// Ginルーターの初期化（デフォルトミドルウェア: Logger, Recovery）
	router := gin.Default()

	// CORSミドルウェアの設定
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = strings.Split(cfg.CORSAllowedOrigins, ",")
	router.Use(cors.New(corsConfig))

	// ルーティングの設定
	setupRoutes(router, cfg, manager, mediaService, area)

	// サーバーの起動
	addr := ":" + cfg.Port
	log.Printf("Starting API server on %s (mode: %s)", addr, cfg.GinMode)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// setupRoutes は API グループの配線を行います。
func setupRoutes(router *gin.Engine, cfg *config.Config, manager *jobs.Manager, mediaService *media.Service, area *storage.Area) {
	router.GET("/", handleRoot)

	api := router.Group("/api")
	{
		api.GET("/health", healthHandler(manager, area))
		api.GET("/video-info", media.VideoInfoHandler(mediaService))
		api.GET("/download", downloadHandler(manager))
		api.GET("/download-status/:id", downloadStatusHandler(manager))
		api.GET("/cancel-download/:id", cancelDownloadHandler(manager))
		api.GET("/get-file/:id", getFileHandler(manager))
		api.GET("/direct-download/:videoId/:formatId", media.DirectDownloadHandler(mediaService, area, cfg.MaxHeight))
		api.POST("/upload-cookie", media.UploadCookieHandler(area))
	}
}

// handleRoot はサービス情報を返します。
func handleRoot(c *gin.Context) {
	c.JSON(200, gin.H{
		"message": "vibe-downloader API",
		"version": "1.0.0",
		"endpoints": []string{
			"/api/health",
			"/api/video-info",
			"/api/download",
			"/api/download-status/:id",
			"/api/cancel-download/:id",
			"/api/get-file/:id",
			"/api/direct-download/:videoId/:formatId",
			"/api/upload-cookie",
		},
	})
}
