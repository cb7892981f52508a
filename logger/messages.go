package logger

import "github.com/ideamans/go-l10n"

func init() {
	l10n.Register("ja", l10n.LexiconMap{
		// Conversion
		"Reading %dx%d frames of %d bytes":                                     "%dx%d フレーム (%d バイト) を読み込み中",
		"Frame %d written, mean error %.2f":                                    "フレーム %d を書き込みました (平均誤差 %.2f)",
		"Converted %d frames (%dx%d at %g fps)":                                "%d フレームを変換しました (%dx%d, %g fps)",
		"Decoder failed after %d frames: %s":                                   "%d フレーム後にデコーダーが失敗しました: %s",
		"Trailing bytes ignored; likely partial frame at end (%d of %d bytes)": "末尾のバイトを無視しました。最後のフレームが不完全な可能性があります (%d / %d バイト)",
		"Failed to write preview: %s":                                          "プレビューの書き込みに失敗しました: %s",

		// Command line
		"Converting %s to %dx%d at %g fps":                                  "%s を %dx%d, %g fps に変換中",
		"Converting %s (%s) to %dx%d at %g fps":                             "%s (%s) を %dx%d, %g fps に変換中",
		"Start offset %s is beyond the end of the input (%s)":               "開始位置 %s が入力の長さ (%s) を超えています",
		"ffmpeg not found in PATH. Please install ffmpeg.":                  "PATH に ffmpeg が見つかりません。ffmpeg をインストールしてください。",
		"Failed to open %s: %s":                                             "%s を開けませんでした: %s",
		"ffmpeg exited with code %d":                                        "ffmpeg が終了コード %d で終了しました",
		"No frames were produced; the input may be shorter than one frame.": "フレームが生成されませんでした。入力が 1 フレームより短い可能性があります。",
		"Interrupted, shutting down...":                                     "中断されました。シャットダウン中...",
		"Conversion failed: %s":                                             "変換に失敗しました: %s",
		"Done. Frames: %d. Manifest: %s":                                    "完了しました。フレーム数: %d, マニフェスト: %s",
		"Mean quantization error: %.2f":                                     "平均量子化誤差: %.2f",
		"Processed %d frames...":                                            "%d フレームを処理しました...",

		// Server
		"Listening on %s":                          "%s で待機中",
		"Converting %s to %s":                      "%s を %s に変換中",
		"Conversion of %s failed: %s":              "%s の変換に失敗しました: %s",
		"Client disconnected: %s":                  "クライアントが切断されました: %s",
		"Failed to encode packet %d: %s":           "パケット %d のエンコードに失敗しました: %s",
		"Failed to unmarshal control message: %s":  "制御メッセージの解析に失敗しました: %s",
		"State inconsistency, expected converting": "状態の不整合: 変換中であるはずです",

		// Quality test
		"%s: mean error %.2f":      "%s: 平均誤差 %.2f",
		"Failed to process %s: %s": "%s の処理に失敗しました: %s",
	})
}
