// Package protocol defines the JSON messages exchanged over websockets, both
// between the UI and the server and between the server and a remote video
// backend.
package protocol

import "encoding/json"

// MessageType enumerates all message types.
type MessageType string

const (
	// UI -> server
	MsgStart        MessageType = "start"
	MsgStop         MessageType = "stop"
	MsgOpen         MessageType = "open"
	MsgSeek         MessageType = "seek"
	MsgWheel        MessageType = "wheel"
	MsgDragEnd      MessageType = "drag_end"
	MsgTransformEnd MessageType = "transform_end"
	MsgDisplaySize  MessageType = "display_size"
	MsgAddSplit     MessageType = "add_split"
	MsgResetSplits  MessageType = "reset_splits"

	// Server -> UI
	MsgResult MessageType = "result"
	MsgView   MessageType = "view"

	// Client -> backend host
	MsgStartStream MessageType = "start_stream"
	MsgOpenVideo   MessageType = "open_video"
	MsgBroadcast   MessageType = "broadcast"

	// Backend host -> client
	MsgAck         MessageType = "ack"
	MsgFrameUpdate MessageType = "frame_update"
)

// Envelope is the outer JSON wrapper for all WebSocket messages.
// RequestID is echoed back in the matching result or ack.
type Envelope struct {
	Type      MessageType     `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// --- UI -> server payloads ---

// OpenPayload names the video to open. An empty path cancels the selection.
type OpenPayload struct {
	Path string `json:"path"`
}

// SeekPayload carries a slider value in [0, 100000].
type SeekPayload struct {
	Value int `json:"value"`
}

// WheelPayload carries a wheel delta. Positive values scroll down.
type WheelPayload struct {
	DeltaY float64 `json:"delta_y"`
}

// DragEndPayload is the region position reported at the end of a drag.
type DragEndPayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// TransformEndPayload is the region position and scale reported at the end
// of a resize. ScaleX and ScaleY are relative to the last committed region,
// not to the region's initial size, so the UI must reset the node's scale to
// 1 after every commit.
type TransformEndPayload struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	ScaleX float64 `json:"scale_x"`
	ScaleY float64 `json:"scale_y"`
}

// DisplaySizePayload is the size at which the UI draws the canvas.
type DisplaySizePayload struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// AddSplitPayload marks the trigger rectangle, in display coordinates, on
// the frame currently shown. The committed region becomes the split's score
// region.
type AddSplitPayload struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ResetSplitsPayload rewinds split detection. Clear also removes every split.
type ResetSplitsPayload struct {
	Clear bool `json:"clear"`
}

// --- Server -> UI payloads ---

// ResultPayload reports the outcome of a UI command.
type ResultPayload struct {
	AckedType MessageType `json:"acked_type"`
	OK        bool        `json:"ok"`
	Error     string      `json:"error,omitempty"`
}

// --- Backend wire payloads ---

// OpenVideoPayload asks the backend host to open a file.
type OpenVideoPayload struct {
	Path string `json:"path"`
}

// BroadcastPayload carries a notification for the backend host.
type BroadcastPayload struct {
	Event    string         `json:"event"`
	Position int            `json:"position,omitempty"`
	Region   *RegionPayload `json:"region,omitempty"`
}

// RegionPayload is a committed score region.
type RegionPayload struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// AckPayload acknowledges a backend command.
type AckPayload struct {
	AckedType MessageType `json:"acked_type"`
	OK        bool        `json:"ok"`
	Error     string      `json:"error,omitempty"`
}

// FrameUpdatePayload carries one base64 JPEG frame.
type FrameUpdatePayload struct {
	Frame string `json:"frame"`
}
