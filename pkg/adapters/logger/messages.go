package logger

import "github.com/ideamans/go-l10n"

func init() {
	l10n.Register("ja", l10n.LexiconMap{
		// Orchestration level messages (info)
		"Starting pipeline":                 "パイプラインを開始します",
		"Capturing %d samples":              "%d サンプルをキャプチャします",
		"Source exhausted after %d samples": "%d サンプルでソースが終了しました",
		"Decoded %d frames from %d samples": "%[2]d サンプルから %[1]d フレームをデコードしました",
		"Pipeline completed successfully":   "パイプラインが正常に完了しました",
		"No frame was decoded":              "デコードされたフレームがありません",

		// Orchestration errors
		"Failed to open capture device: %s":  "キャプチャデバイスを開けませんでした: %s",
		"Failed to close capture device: %s": "キャプチャデバイスを閉じられませんでした: %s",
		"Failed to configure transform: %s":  "デコーダを設定できませんでした: %s",
		"Failed to release transform: %s":    "デコーダを解放できませんでした: %s",
		"Failed to read sample: %s":          "サンプルを読み取れませんでした: %s",
		"Failed to decode sample: %s":        "サンプルをデコードできませんでした: %s",
		"Failed to drain transform: %s":      "デコーダをドレインできませんでした: %s",
		"Failed to save media types: %s":     "メディアタイプを保存できませんでした: %s",
		"Failed to write frame: %s":          "フレームを書き出せませんでした: %s",

		// Capture stage
		"Using capture device %d: %s": "キャプチャデバイス %d を使用: %s",
		"Capture format: %s":          "キャプチャ形式: %s",
		"Native format: %s":           "ネイティブ形式: %s",

		// Decode stage
		"Decoding %s to %s":                 "%s を %s にデコードします",
		"Failed to save sample %d: %s":      "サンプル %d を保存できませんでした: %s",
		"Sample %d accepted, no output yet": "サンプル %d を受け付けました。出力はまだありません",
		"Drained %d frames":                 "%d フレームをドレインしました",

		// Dump stage
		"Failed to save preview: %s":               "プレビューを保存できませんでした: %s",
		"Wrote planes of %dx%d frame to %s and %s": "%dx%d フレームのプレーンを %s と %s に書き出しました",

		// Driver (debug)
		"Stream IDs: input %d, output %d":                        "ストリームID: 入力 %d, 出力 %d",
		"Input type set: %s":                                     "入力タイプを設定: %s",
		"Output type set: %s":                                    "出力タイプを設定: %s",
		"Available output type %d: %s":                           "利用可能な出力タイプ %d: %s",
		"Transform requested more input before producing output": "デコーダが出力前に追加入力を要求しました",
		"Event: %s": "イベント: %s",
		"Output buffer empty, waiting for more input":      "出力バッファが空です。追加入力を待ちます",
		"Output stream changed, renegotiating output type": "出力ストリームが変更されました。出力タイプを再ネゴシエーションします",

		// Transform
		"Hardware decoder unavailable (%s), using software decoder": "ハードウェアデコーダを利用できません (%s)。ソフトウェアデコーダを使用します",
		"Dropping undecodable sample at %s: %s":                     "デコードできないサンプルを破棄します (%s): %s",
		"Created hardware transform %s":                             "ハードウェアデコーダ %s を作成しました",

		// Capture devices
		"Skipping %s: %s":                     "%s をスキップ: %s",
		"Opened %s (%s)":                      "%s を開きました (%s)",
		"Opened %s":                           "%s を開きました",
		"Device adjusted frame size to %dx%d": "デバイスがフレームサイズを %dx%d に調整しました",
		"%s is not advertised by %s, asking the driver anyway": "%s は %s で公開されていませんが、ドライバに要求します",
		"Stream tick":                       "ストリームティック",
		"Loaded %d images of %dx%d from %s": "%[4]s から %[2]dx%[3]d の画像を %[1]d 枚読み込みました",
		"Requested %s, recording is %dx%d":  "%s を要求しましたが、録画は %dx%d です",
	})
}
