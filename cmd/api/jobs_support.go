package main

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/vibe-downloader/internal/jobs"
	"github.com/yourusername/vibe-downloader/internal/media"
	"github.com/yourusername/vibe-downloader/internal/storage"
)

// downloadHandler は GET /api/download のハンドラーを返します。
// ジョブを登録して即座に応答し、ダウンロード本体はバックグラウンドで進みます。
func downloadHandler(manager *jobs.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		videoURL := strings.TrimSpace(c.Query("url"))
		if videoURL == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "動画URLを指定してください。",
			})
			return
		}
		videoFormat := strings.TrimSpace(c.Query("format_id"))
		audioFormat := strings.TrimSpace(c.Query("audio_id"))

		jobID, err := manager.Start(videoURL, videoFormat, audioFormat)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "STORAGE_ERROR",
				"message": "ジョブの作成に失敗しました。",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"jobId":   jobID,
			"status":  "processing",
			"message": "ダウンロードを開始しました。映像と音声は自動的に結合されます。",
		})
	}
}

// downloadStatusHandler は GET /api/download-status/:id のハンドラーを返します。
func downloadStatusHandler(manager *jobs.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := strings.TrimSpace(c.Param("id"))

		job, ok := manager.Snapshot(jobID)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    "JOB_NOT_FOUND",
				"message": "指定されたジョブは存在しません。",
			})
			return
		}

		payload := gin.H{
			"jobId":    job.ID,
			"status":   job.Status,
			"progress": job.Progress,
			"url":      job.URL,
		}
		switch job.Status {
		case jobs.StatusCompleted:
			payload["download_url"] = fmt.Sprintf("/api/get-file/%s", job.ID)
		case jobs.StatusFailed:
			payload["error"] = job.Error
		}

		c.JSON(http.StatusOK, payload)
	}
}

// cancelDownloadHandler は GET /api/cancel-download/:id のハンドラーを返します。
func cancelDownloadHandler(manager *jobs.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := strings.TrimSpace(c.Param("id"))

		err := manager.Cancel(jobID)
		switch {
		case errors.Is(err, jobs.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"code":    "JOB_NOT_FOUND",
				"message": "指定されたジョブは存在しません。",
			})
		case errors.Is(err, jobs.ErrNotCancelable):
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "このジョブはキャンセルできません。",
			})
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "キャンセル処理に失敗しました。",
			})
		default:
			c.JSON(http.StatusOK, gin.H{
				"jobId":  jobID,
				"status": jobs.StatusCanceled,
			})
		}
	}
}

// getFileHandler は GET /api/get-file/:id のハンドラーを返します。
// 完了済みジョブの成果物を添付ファイルとして返却します。
func getFileHandler(manager *jobs.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := strings.TrimSpace(c.Param("id"))

		job, ok := manager.Snapshot(jobID)
		if !ok || job.Status != jobs.StatusCompleted {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    "FILE_NOT_FOUND",
				"message": "ダウンロード可能なファイルが見つかりません。",
			})
			return
		}

		if err := media.StreamFile(c, job.OutputPath, filepath.Base(job.OutputPath), job.ID); err != nil {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    "FILE_NOT_FOUND",
				"message": "ダウンロード可能なファイルが見つかりません。",
			})
		}
	}
}

// healthHandler は GET /api/health のハンドラーを返します。
func healthHandler(manager *jobs.Manager, area *storage.Area) gin.HandlerFunc {
	return func(c *gin.Context) {
		active, terminal := manager.Counts()
		c.JSON(http.StatusOK, gin.H{
			"status":             "ok",
			"service":            "vibe-downloader-api",
			"version":            "1.0.0",
			"cookie_file_exists": area.CookieExists(),
			"jobs": gin.H{
				"active":   active,
				"terminal": terminal,
			},
		})
	}
}
