package media

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// youTubeWatchURLTemplate は動画IDからの復元用URLテンプレートです。
const youTubeWatchURLTemplate = "https://www.youtube.com/watch?v=%s"

// InfoService は動画メタデータを解決できるサービスが実装します。
type InfoService interface {
	Probe(ctx context.Context, url string) (*VideoInfo, error)
}

// DownloadService は解決とダウンロードの両方を提供するサービスが実装します。
type DownloadService interface {
	InfoService
	Download(ctx context.Context, req DownloadRequest, progress ProgressFunc) (string, error)
}

// ScratchArea は同期ダウンロード用の一時領域を提供します。
type ScratchArea interface {
	CreateScratchDir(key string) (string, error)
	RemoveScratchDir(key string) error
}

// CookieStore はクッキーファイルの置き換えを提供します。
type CookieStore interface {
	SaveCookie(file *multipart.FileHeader) error
}

// VideoInfoHandler は GET /api/video-info のハンドラーを返します。
func VideoInfoHandler(svc InfoService) gin.HandlerFunc {
	return func(c *gin.Context) {
		videoURL := strings.TrimSpace(c.Query("url"))
		if videoURL == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "動画URLを指定してください。",
			})
			return
		}

		info, err := svc.Probe(c.Request.Context(), videoURL)
		if err != nil {
			RespondWithError(c, err)
			return
		}

		c.JSON(http.StatusOK, info)
	}
}

// DirectDownloadHandler は GET /api/direct-download/:videoId/:formatId のハンドラーを返します。
// 解決からストリーム返却までを同期的に行います。
func DirectDownloadHandler(svc DownloadService, scratch ScratchArea, maxHeight int) gin.HandlerFunc {
	return func(c *gin.Context) {
		videoID := strings.TrimSpace(c.Param("videoId"))
		formatID := strings.TrimSpace(c.Param("formatId"))
		if videoID == "" || formatID == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "videoId と formatId を指定してください。",
			})
			return
		}
		audioID := strings.TrimSpace(c.Query("audio_id"))
		customFilename := strings.TrimSpace(c.Query("filename"))
		videoURL := fmt.Sprintf(youTubeWatchURLTemplate, videoID)

		info, err := svc.Probe(c.Request.Context(), videoURL)
		if err != nil {
			RespondWithError(c, err)
			return
		}

		sel, err := BuildDirectSelection(info, formatID, audioID, maxHeight)
		if err != nil {
			RespondWithError(c, err)
			return
		}

		// スクラッチ領域のキーはリクエストごとに一意で、同一フォーマットの
		// 同時リクエストでもファイル名が衝突しない
		key := uuid.New().String()
		dir, err := scratch.CreateScratchDir(key)
		if err != nil {
			RespondWithError(c, newError("STORAGE_ERROR", "一時領域の作成に失敗しました。", err))
			return
		}
		defer func() {
			_ = scratch.RemoveScratchDir(key)
		}()

		outputPath, err := svc.Download(c.Request.Context(), DownloadRequest{
			URL:        videoURL,
			OutputDir:  dir,
			OutputBase: key,
			Selection:  sel,
		}, nil)
		if err != nil {
			RespondWithError(c, err)
			return
		}

		downloadName := customFilename
		if downloadName == "" {
			downloadName = sanitizeFilename(info.Title)
			if downloadName == "" {
				downloadName = videoID
			}
			downloadName += "." + sel.OutputExt
		}

		if err := StreamFile(c, outputPath, downloadName, ""); err != nil {
			RespondWithError(c, err)
		}
	}
}

// UploadCookieHandler は POST /api/upload-cookie のハンドラーを返します。
func UploadCookieHandler(store CookieStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		file, err := c.FormFile("cookie_file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "cookie_file フィールドでクッキーファイルを送信してください。",
			})
			return
		}

		if err := store.SaveCookie(file); err != nil {
			RespondWithError(c, newError("STORAGE_ERROR", "クッキーファイルの保存に失敗しました。", err))
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "クッキーファイルを更新しました。",
		})
	}
}

// RespondWithError はエラーをHTTPレスポンスへ変換します。
func RespondWithError(c *gin.Context, err error) {
	var apiErr *Error
	switch {
	case errors.As(err, &apiErr):
		status := http.StatusInternalServerError
		switch apiErr.Code {
		case "INVALID_INPUT":
			status = http.StatusBadRequest
		case "FORMAT_NOT_FOUND":
			status = http.StatusNotFound
		case "EXTRACTION_FAILED", "MERGE_FAILED":
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		})
	case errors.Is(err, context.Canceled):
		c.JSON(http.StatusRequestTimeout, gin.H{
			"code":    "REQUEST_CANCELED",
			"message": "リクエストがキャンセルされました。",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "INTERNAL_ERROR",
			"message": "サーバー内部でエラーが発生しました。",
		})
	}
}

// StreamFile は成果物を添付ファイルとしてストリーム返却します。
func StreamFile(c *gin.Context, path, downloadName, jobID string) error {
	file, err := os.Open(path)
	if err != nil {
		return newError("STORAGE_ERROR", "成果物の読み込みに失敗しました。", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return newError("STORAGE_ERROR", "成果物の読み込みに失敗しました。", err)
	}

	contentType := "application/octet-stream"
	if detected, err := mimetype.DetectFile(path); err == nil {
		contentType = detected.String()
	}

	if downloadName == "" {
		downloadName = filepath.Base(path)
	}
	encodedName := url.PathEscape(downloadName)
	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"; filename*=UTF-8''%s", downloadName, encodedName))
	c.Header("Cache-Control", "no-store")
	if jobID != "" {
		c.Header("X-Job-Id", jobID)
	}
	c.DataFromReader(http.StatusOK, stat.Size(), contentType, file, nil)
	return nil
}

// sanitizeFilename は動画タイトルをファイル名として安全な形へ整形します。
func sanitizeFilename(title string) string {
	var b strings.Builder
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	name := strings.TrimSpace(b.String())
	if len(name) > 100 {
		name = name[:100]
	}
	return name
}
