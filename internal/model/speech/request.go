package speech

import (
	"io"
)

// TranscriptionRequest 语音识别请求
type TranscriptionRequest struct {
	Audio       io.Reader `json:"-"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"contentType"`
}

// SynthesisRequest 语音合成请求
type SynthesisRequest struct {
	Text string `json:"text"`
}
