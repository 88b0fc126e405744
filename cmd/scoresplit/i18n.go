// Package main provides localization for the scoresplit CLI.
package main

import (
	"github.com/ideamans/go-l10n"
)

func init() {
	// Register Japanese translations for CLI messages.
	l10n.Register("ja", l10n.LexiconMap{
		// Flag categories
		"Configuration": "設定",
		"Logging":       "ログ",
		"Backend":       "バックエンド",
		"Server":        "サーバー",
		"Debug":         "デバッグ",

		// Root command
		"Mark the score region of a run video and scrub through it": "動画のスコア領域を指定してシークします",

		// Commands
		"Serve the region editor UI over a websocket":     "領域エディタ UI を WebSocket で提供",
		"Host the local video backend for remote servers": "リモートサーバー向けにローカル動画バックエンドを提供",

		// Global flags
		"YAML configuration file":              "YAML 設定ファイル",
		"Log level (debug, info, warn, error)": "ログレベル（debug, info, warn, error）",
		"Suppress all log output":              "全てのログ出力を抑制",
		"Path to the ffmpeg executable":        "ffmpeg 実行ファイルのパス",
		"Path to the ffprobe executable":       "ffprobe 実行ファイルのパス",
		"Capture device for live streaming":    "ライブストリーミングに使うキャプチャデバイス",
		"Milliseconds between backend frames":  "バックエンドのフレーム間隔（ミリ秒）",

		// Serve flags
		"Address of the UI server":                            "UI サーバーのアドレス",
		"Use the remote backend at this websocket URL":        "この WebSocket URL のリモートバックエンドを使用",
		"Directory relative video paths are resolved against": "相対パスの動画を解決する基準ディレクトリ",
		"Enable debug output":                                 "デバッグ出力を有効化",
		"Directory for debug output":                          "デバッグ出力のディレクトリ",

		// Backend flags
		"Address of the backend host": "バックエンドホストのアドレス",

		// Summary output
		"Summary saved to %s":         "サマリーを %s に保存しました",
		"Failed to write summary: %s": "サマリーの書き込みに失敗しました: %s",

		// Summary content
		"Session Summary":    "セッションサマリー",
		"Generated":          "生成日時",
		"Item":               "項目",
		"Value":              "値",
		"None":               "なし",
		"Session":            "セッション",
		"State":              "状態",
		"Source":             "ソース",
		"Last Seek Position": "最後のシーク位置",
		"Uptime":             "稼働時間",
		"Score Region":       "スコア領域",
		"Position":           "位置",
		"Size":               "サイズ",
		"Frames":             "フレーム",
		"Received":           "受信",
		"Dropped":            "破棄",
		"Malformed":          "不正",
		"Last Frame":         "最終フレーム",
		"Settings":           "設定",
		"Canvas Size":        "キャンバスサイズ",
		"Frame Interval":     "フレーム間隔",
		"Splits":             "スプリット",
		"Triggered":          "検出済み",
	})
}
