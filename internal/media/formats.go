package media

import (
	"fmt"
	"sort"
	"strings"
)

const maxDescriptionLength = 1000

// Thumbnail は動画サムネイルの情報です。
type Thumbnail struct {
	URL    string `json:"url"`
	ID     string `json:"id,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Channel はチャンネル情報です。
type Channel struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	URL            string `json:"url"`
	ProfilePicture string `json:"profile_picture,omitempty"`
}

// AudioFormat は音声のみのフォーマットを表します。
type AudioFormat struct {
	FormatID      string   `json:"format_id"`
	Ext           string   `json:"ext"`
	Filesize      *int64   `json:"filesize"`
	FilesizeHuman string   `json:"filesize_human"`
	FormatNote    string   `json:"format_note"`
	ABR           *float64 `json:"abr"`
	ACodec        string   `json:"acodec"`
	DownloadURL   string   `json:"download_url"`
}

// VideoFormat は映像を含むフォーマットを表します（音声同梱の場合もあります）。
type VideoFormat struct {
	FormatID      string   `json:"format_id"`
	Ext           string   `json:"ext"`
	Filesize      *int64   `json:"filesize"`
	FilesizeHuman string   `json:"filesize_human"`
	FormatNote    string   `json:"format_note"`
	Width         *int     `json:"width"`
	Height        *int     `json:"height"`
	FPS           *float64 `json:"fps"`
	VCodec        string   `json:"vcodec"`
	ACodec        string   `json:"acodec"`
	QualityLabel  string   `json:"quality_label"`
	HasAudio      bool     `json:"has_audio"`
	Resolution    string   `json:"resolution"`
	DownloadURL   string   `json:"download_url"`
}

// VideoInfo は動画のメタデータと選択可能なフォーマット一覧です。
type VideoInfo struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Description  string        `json:"description,omitempty"`
	Duration     *float64      `json:"duration"`
	ViewCount    *int64        `json:"view_count"`
	LikeCount    *int64        `json:"like_count"`
	UploadDate   string        `json:"upload_date,omitempty"`
	Thumbnails   []Thumbnail   `json:"thumbnails"`
	Channel      Channel       `json:"channel"`
	AudioFormats []AudioFormat `json:"audio_formats"`
	VideoFormats []VideoFormat `json:"video_formats"`
}

// probeInfo は yt-dlp の --dump-single-json 出力のうち必要な項目だけを写し取ります。
type probeInfo struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Duration    *float64      `json:"duration"`
	ViewCount   *int64        `json:"view_count"`
	LikeCount   *int64        `json:"like_count"`
	UploadDate  string        `json:"upload_date"`
	ChannelID   string        `json:"channel_id"`
	Channel     string        `json:"channel"`
	Uploader    string        `json:"uploader"`
	ChannelURL  string        `json:"channel_url"`
	Thumbnails  []Thumbnail   `json:"thumbnails"`
	Formats     []probeFormat `json:"formats"`
}

type probeFormat struct {
	FormatID   string   `json:"format_id"`
	Ext        string   `json:"ext"`
	Filesize   *int64   `json:"filesize"`
	FormatNote string   `json:"format_note"`
	ABR        *float64 `json:"abr"`
	ACodec     string   `json:"acodec"`
	VCodec     string   `json:"vcodec"`
	Width      *int     `json:"width"`
	Height     *int     `json:"height"`
	FPS        *float64 `json:"fps"`
}

func (f probeFormat) audioOnly() bool {
	return f.VCodec == "none" && f.ACodec != "" && f.ACodec != "none"
}

func (f probeFormat) hasVideo() bool {
	return f.VCodec != "" && f.VCodec != "none"
}

func (f probeFormat) hasAudio() bool {
	return f.ACodec != "" && f.ACodec != "none"
}

// buildVideoInfo は yt-dlp の生出力をAPIモデルへ変換し、
// 音声はビットレート降順、映像は解像度降順に整列します。
func buildVideoInfo(raw *probeInfo) *VideoInfo {
	info := &VideoInfo{
		ID:         raw.ID,
		Title:      raw.Title,
		Duration:   raw.Duration,
		ViewCount:  raw.ViewCount,
		LikeCount:  raw.LikeCount,
		UploadDate: raw.UploadDate,
		Thumbnails: raw.Thumbnails,
		Channel: Channel{
			ID:   raw.ChannelID,
			Name: channelName(raw),
			URL:  raw.ChannelURL,
		},
		AudioFormats: []AudioFormat{},
		VideoFormats: []VideoFormat{},
	}

	if len(raw.Description) > maxDescriptionLength {
		info.Description = raw.Description[:maxDescriptionLength]
	} else {
		info.Description = raw.Description
	}

	for _, thumbnail := range raw.Thumbnails {
		if thumbnail.URL != "" && strings.Contains(thumbnail.ID, "avatar") {
			info.Channel.ProfilePicture = thumbnail.URL
			break
		}
	}

	for _, fmtRaw := range raw.Formats {
		if fmtRaw.FormatID == "" {
			continue
		}
		switch {
		case fmtRaw.audioOnly():
			info.AudioFormats = append(info.AudioFormats, AudioFormat{
				FormatID:      fmtRaw.FormatID,
				Ext:           fmtRaw.Ext,
				Filesize:      fmtRaw.Filesize,
				FilesizeHuman: formatFilesize(fmtRaw.Filesize),
				FormatNote:    fmtRaw.FormatNote,
				ABR:           fmtRaw.ABR,
				ACodec:        fmtRaw.ACodec,
				DownloadURL:   directDownloadURL(raw.ID, fmtRaw.FormatID),
			})
		case fmtRaw.hasVideo():
			var width, height int
			if fmtRaw.Width != nil {
				width = *fmtRaw.Width
			}
			if fmtRaw.Height != nil {
				height = *fmtRaw.Height
			}
			info.VideoFormats = append(info.VideoFormats, VideoFormat{
				FormatID:      fmtRaw.FormatID,
				Ext:           fmtRaw.Ext,
				Filesize:      fmtRaw.Filesize,
				FilesizeHuman: formatFilesize(fmtRaw.Filesize),
				FormatNote:    fmtRaw.FormatNote,
				Width:         fmtRaw.Width,
				Height:        fmtRaw.Height,
				FPS:           fmtRaw.FPS,
				VCodec:        fmtRaw.VCodec,
				ACodec:        fmtRaw.ACodec,
				QualityLabel:  qualityLabel(fmtRaw.Height),
				HasAudio:      fmtRaw.hasAudio(),
				Resolution:    fmt.Sprintf("%dx%d", width, height),
				DownloadURL:   directDownloadURL(raw.ID, fmtRaw.FormatID),
			})
		}
	}

	sort.SliceStable(info.AudioFormats, func(i, j int) bool {
		return abrValue(info.AudioFormats[i].ABR) > abrValue(info.AudioFormats[j].ABR)
	})
	sort.SliceStable(info.VideoFormats, func(i, j int) bool {
		return heightValue(info.VideoFormats[i].Height) > heightValue(info.VideoFormats[j].Height)
	})

	return info
}

func channelName(raw *probeInfo) string {
	if raw.Channel != "" {
		return raw.Channel
	}
	return raw.Uploader
}

func directDownloadURL(videoID, formatID string) string {
	return fmt.Sprintf("/api/direct-download/%s/%s", videoID, formatID)
}

func abrValue(abr *float64) float64 {
	if abr == nil {
		return 0
	}
	return *abr
}

func heightValue(height *int) int {
	if height == nil {
		return 0
	}
	return *height
}

// qualityLabel は高さから表示用の画質ラベルを導出します。
func qualityLabel(height *int) string {
	if height == nil || *height <= 0 {
		return "Unknown"
	}
	h := *height
	switch {
	case h <= 144:
		return "144p"
	case h <= 240:
		return "240p"
	case h <= 360:
		return "360p"
	case h <= 480:
		return "480p"
	case h <= 720:
		return "720p (HD)"
	case h <= 1080:
		return "1080p (Full HD)"
	case h <= 1440:
		return "1440p (2K)"
	case h <= 2160:
		return "2160p (4K)"
	case h <= 4320:
		return "4320p (8K)"
	default:
		return fmt.Sprintf("%dp", h)
	}
}

// formatFilesize はバイト数を人間可読な表記へ変換します。
func formatFilesize(size *int64) string {
	if size == nil || *size <= 0 {
		return "Unknown"
	}
	value := float64(*size)
	for _, unit := range []string{"B", "KB", "MB", "GB"} {
		if value < 1024.0 {
			return fmt.Sprintf("%.1f %s", value, unit)
		}
		value /= 1024.0
	}
	return fmt.Sprintf("%.1f TB", value)
}
