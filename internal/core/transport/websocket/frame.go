package websocket

import (
	"encoding/json"
	"fmt"

	"github.com/dep2p/go-pushclient/pkg/types"
)

// FrameType 帧类型
type FrameType string

const (
	FrameRequest  FrameType = "request"
	FrameResponse FrameType = "response"
	FramePush     FrameType = "push"
)

// Frame 线上帧，按 Type 恰有一个载荷字段非空
type Frame struct {
	Type     FrameType       `json:"type"`
	Request  *types.Request  `json:"request,omitempty"`
	Response *types.Response `json:"response,omitempty"`
	Push     *types.Push     `json:"push,omitempty"`
}

// EncodeFrame 编码帧
func EncodeFrame(f Frame) ([]byte, error) {
	return json.Marshal(f)
}

// DecodeFrame 解码并校验帧
func DecodeFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	switch f.Type {
	case FrameRequest:
		if f.Request == nil {
			return Frame{}, fmt.Errorf("request frame without request")
		}
	case FrameResponse:
		if f.Response == nil || f.Response.ID == "" {
			return Frame{}, fmt.Errorf("response frame without id")
		}
	case FramePush:
		if f.Push == nil {
			return Frame{}, fmt.Errorf("push frame without push")
		}
	default:
		return Frame{}, fmt.Errorf("unknown frame type %q", f.Type)
	}
	return f, nil
}
