package media

// ProgressEventType は抽出エンジンが報告する進捗イベントの種別です。
type ProgressEventType string

const (
	// ProgressDownloading はストリームのダウンロード中を表します。
	ProgressDownloading ProgressEventType = "downloading"
	// ProgressFinished はダウンロード完了・後処理開始を表します。
	ProgressFinished ProgressEventType = "finished"
	// ProgressError はエンジン側のエラー通知を表します。
	ProgressError ProgressEventType = "error"
)

// ProgressEvent は抽出エンジンからの進捗イベントです。
// Percent は "47.3%" のようなパーセント文字列で、ダウンロード中のみ意味を持ちます。
type ProgressEvent struct {
	Type    ProgressEventType
	Percent string
}

// ProgressFunc は進捗イベントを受け取るコールバックです。
// エンジンが実行されるゴルーチン上で呼び出されるため、長時間ブロックしてはいけません。
type ProgressFunc func(ProgressEvent)
