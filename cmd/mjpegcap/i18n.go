// Package main provides localization for the mjpegcap CLI.
package main

import (
	"github.com/ideamans/go-l10n"
)

func init() {
	l10n.Register("ja", l10n.LexiconMap{
		// Flag categories
		"Capture":   "キャプチャ",
		"Transform": "デコーダ",
		"Output":    "出力先",
		"Debug":     "デバッグ",

		// Commands
		"Capture MJPEG from a webcam and dump decoded NV12 planes": "WebカメラからMJPEGを取得し、デコードしたNV12プレーンを保存します",
		"List capture devices": "キャプチャデバイスを一覧表示",
		"Capture from a webcam and write the planes of the first frame": "Webカメラから取得し、最初のフレームのプレーンを書き出す",
		"Decode a recorded MJPEG stream or a directory of JPEG files":   "録画済みMJPEGストリームまたはJPEGファイルのディレクトリをデコード",
		"Show version information":                                      "バージョン情報を表示",

		// Global flags
		"YAML configuration file":              "YAML設定ファイル",
		"Log level (debug, info, warn, error)": "ログレベル (debug, info, warn, error)",
		"Suppress all log output":              "ログ出力をすべて抑制",

		// Capture flags
		"Capture device index":                     "キャプチャデバイスの番号",
		"Frame width (default: 320)":               "フレーム幅 (デフォルト: 320)",
		"Frame height (default: 240)":              "フレーム高さ (デフォルト: 240)",
		"Frame rate (default: 30)":                 "フレームレート (デフォルト: 30)",
		"Frame rate used for timestamps":           "タイムスタンプに使うフレームレート",
		"Number of samples to read (default: 100)": "読み取るサンプル数 (デフォルト: 100)",
		"Number of samples to read":                "読み取るサンプル数",

		// Output flags
		"Decoder backend (auto, hardware, software)":         "デコーダのバックエンド (auto, hardware, software)",
		"CLSID of the hardware MJPEG decoder":                "ハードウェアMJPEGデコーダのCLSID",
		"Directory for planeY.bmp and planeUV.bmp":           "planeY.bmp と planeUV.bmp の出力ディレクトリ",
		"Also append every decoded frame to a raw NV12 file": "デコードした全フレームをNV12の生ファイルにも追記",
		"Do not drain the transform at end of stream":        "ストリーム終了時にデコーダをドレインしない",
		"Write a Markdown summary to this path":              "Markdownサマリーをこのパスに書き出す",
		"Enable debug output":                                "デバッグ出力を有効化",
		"Directory for debug output":                         "デバッグ出力のディレクトリ",

		// Messages
		"mjpegcap version %s":                                             "mjpegcap バージョン %s",
		"No capture devices found":                                        "キャプチャデバイスが見つかりません",
		"decode takes exactly one file or directory":                      "decode にはファイルまたはディレクトリを1つだけ指定してください",
		"Interrupted, shutting down...":                                   "中断されました。シャットダウン中...",
		"Output saved to %s":                                              "出力を %s に保存しました",
		"Summary saved to %s":                                             "サマリーを %s に保存しました",
		"Play back with: ffmpeg -f rawvideo -s %dx%d -pix_fmt nv12 -i %s": "再生コマンド: ffmpeg -f rawvideo -s %dx%d -pix_fmt nv12 -i %s",
	})
}
