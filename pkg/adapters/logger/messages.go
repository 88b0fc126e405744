package logger

import "github.com/ideamans/go-l10n"

func init() {
	l10n.Register("ja", l10n.LexiconMap{
		// Process level messages (info)
		"Listening on %s":                 "%s で待ち受け中",
		"Backend listening on ws://%s%s":  "バックエンドが ws://%s%s で待ち受け中",
		"Interrupted, shutting down...":   "中断されました。シャットダウン中...",
		"Synchronizer running":            "同期ループを開始しました",
		"Synchronizer stopped":            "同期ループを停止しました",

		// Session
		"Stream started":                    "ストリームを開始しました",
		"Stream stopped":                    "ストリームを停止しました",
		"Video selection cancelled":         "動画の選択がキャンセルされました",
		"Opened video %s":                   "動画 %s を開きました",
		"Failed to stop stream on close: %s": "終了時のストリーム停止に失敗しました: %s",

		// Overlay and seek
		"Region moved to %s":   "領域を %s に移動しました",
		"Region resized to %s": "領域を %s にリサイズしました",
		"Seeking to %d":        "%d へシーク中",

		// Frames
		"Skipping malformed frame: %s": "不正なフレームをスキップします: %s",

		// Synchronizer
		"Action %s failed: %s":             "操作 %s に失敗しました: %s",
		"Failed to close session: %s":      "セッションの終了に失敗しました: %s",
		"Failed to save debug output: %s":  "デバッグ出力の保存に失敗しました: %s",
		"Failed to render view: %s":        "ビューの描画に失敗しました: %s",

		// Server and websocket peers
		"Failed to encode view: %s":            "ビューのエンコードに失敗しました: %s",
		"Dropped view for slow client %s":      "低速なクライアント %s へのビューを破棄しました",
		"Websocket upgrade failed: %s":         "WebSocket へのアップグレードに失敗しました: %s",
		"Client %s connected from %s":          "クライアント %s が %s から接続しました",
		"Client %s disconnected":               "クライアント %s が切断しました",
		"Client %s read failed: %s":            "クライアント %s の読み込みに失敗しました: %s",
		"Invalid message from client %s: %s":  "クライアント %s からの不正なメッセージ: %s",
		"Failed to encode result: %s":          "結果のエンコードに失敗しました: %s",
		"Client %s gone before result: %s":     "結果の送信前にクライアント %s が切断しました: %s",
		"Write failed: %s":                     "書き込みに失敗しました: %s",

		// Remote backend
		"Backend connection lost: %s":     "バックエンドとの接続が切れました: %s",
		"Invalid message from backend: %s": "バックエンドからの不正なメッセージ: %s",
		"Ignoring %s from backend":        "バックエンドからの %s を無視します",

		// Local backend
		"Capture started on %s":                   "%s でキャプチャを開始しました",
		"Capture stopped":                         "キャプチャを停止しました",
		"Frame grab failed: %s":                   "フレームの取得に失敗しました: %s",
		"Seek to %d ignored: no video open":       "動画が開かれていないため %d へのシークを無視します",
		"Seek to %d ignored: out of range":        "範囲外のため %d へのシークを無視します",
		"Region committed: %.0f,%.0f %.0fx%.0f":   "領域を確定しました: %.0f,%.0f %.0fx%.0f",
		"Video %s is %s long":                     "動画 %s の長さは %s です",
		"mp4 probe of %s failed, using ffprobe: %s": "%s の mp4 解析に失敗したため ffprobe を使用します: %s",

		// Splits
		"Split %d added with score region %s":  "スプリット %d をスコア領域 %s で追加しました",
		"Split %d triggered (correlation %.3f)": "スプリット %d を検出しました（相関 %.3f）",
		"Split check failed: %s":                "スプリットの判定に失敗しました: %s",
	})
}
