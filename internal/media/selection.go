package media

import "fmt"

// Selection は抽出エンジンに渡すフォーマット指定と後処理の組み合わせです。
// 同じ入力に対して常に同じ Selection が得られます。
type Selection struct {
	// Format は yt-dlp のフォーマットセレクタ式です。
	Format string
	// ExtractAudio が真の場合、映像のマージは行わず音声コンテナへ変換します。
	ExtractAudio bool
	// OutputExt は最終成果物の拡張子（mp4 または mp3）です。
	OutputExt string
}

// BuildSelection はリクエストされたフォーマット指定から Selection を構築します。
//
//   - 映像+音声の両方指定: 指定された2ストリームを結合
//   - 映像のみ指定: 最良の互換音声トラックを結合（無音の映像は返さない）
//   - 音声のみ指定: 音声コンテナへ変換、マージなし
//   - 指定なし: 上限解像度以下の最良映像+最良音声
//
// いずれの映像系セレクタも、結合が満たせない場合は maxHeight 以下の
// 最良単一ストリームへフォールバックします。
func BuildSelection(videoFormat, audioFormat string, maxHeight int) Selection {
	fallback := fmt.Sprintf("best[height<=%d]", maxHeight)

	switch {
	case videoFormat != "" && audioFormat != "":
		return Selection{
			Format:    fmt.Sprintf("%s+%s/%s", videoFormat, audioFormat, fallback),
			OutputExt: "mp4",
		}
	case videoFormat != "":
		return Selection{
			Format:    fmt.Sprintf("%s+bestaudio[ext=m4a]/%s", videoFormat, fallback),
			OutputExt: "mp4",
		}
	case audioFormat != "":
		return Selection{
			Format:       audioFormat,
			ExtractAudio: true,
			OutputExt:    "mp3",
		}
	default:
		return Selection{
			Format:    fmt.Sprintf("bestvideo[height<=%d]+bestaudio/%s/best", maxHeight, fallback),
			OutputExt: "mp4",
		}
	}
}

// BuildDirectSelection は取得済みカタログを参照して direct-download 用の
// Selection を構築します。対象フォーマットが存在しない場合は FORMAT_NOT_FOUND を返します。
func BuildDirectSelection(info *VideoInfo, formatID, audioID string, maxHeight int) (Selection, error) {
	if info == nil {
		return Selection{}, newError("INTERNAL_ERROR", "フォーマット情報が取得できませんでした。", nil)
	}
	fallback := fmt.Sprintf("best[height<=%d]", maxHeight)

	if audio := findAudioFormat(info, formatID); audio != nil {
		// 音声のみのフォーマットが対象
		return Selection{
			Format:       formatID,
			ExtractAudio: true,
			OutputExt:    "mp3",
		}, nil
	}

	video := findVideoFormat(info, formatID)
	if video == nil {
		return Selection{}, newError("FORMAT_NOT_FOUND", fmt.Sprintf("指定されたフォーマットが見つかりません: %s", formatID), nil)
	}

	if audioID != "" {
		return Selection{
			Format:    fmt.Sprintf("%s+%s/%s", formatID, audioID, fallback),
			OutputExt: "mp4",
		}, nil
	}

	if !video.HasAudio {
		// 音声を含まない映像は必ず音声と結合する
		if best := bestAudioFormat(info); best != nil {
			return Selection{
				Format:    fmt.Sprintf("%s+%s/%s", formatID, best.FormatID, fallback),
				OutputExt: "mp4",
			}, nil
		}
		return Selection{
			Format:    fmt.Sprintf("%s+bestaudio/%s", formatID, fallback),
			OutputExt: "mp4",
		}, nil
	}

	return Selection{
		Format:    formatID,
		OutputExt: "mp4",
	}, nil
}

func findAudioFormat(info *VideoInfo, formatID string) *AudioFormat {
	for i := range info.AudioFormats {
		if info.AudioFormats[i].FormatID == formatID {
			return &info.AudioFormats[i]
		}
	}
	return nil
}

func findVideoFormat(info *VideoInfo, formatID string) *VideoFormat {
	for i := range info.VideoFormats {
		if info.VideoFormats[i].FormatID == formatID {
			return &info.VideoFormats[i]
		}
	}
	return nil
}

// bestAudioFormat はビットレート最大の音声フォーマットを返します。
// カタログはビットレート降順に整列済みなので先頭が常に同じ選択になります。
func bestAudioFormat(info *VideoInfo) *AudioFormat {
	if len(info.AudioFormats) == 0 {
		return nil
	}
	return &info.AudioFormats[0]
}
