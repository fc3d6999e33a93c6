package speech

// TranscriptionResponse 语音识别响应，JSON 形态即 relay 的返回体。
type TranscriptionResponse struct {
	Text string `json:"text"`
}

// SynthesisResponse 语音合成响应
type SynthesisResponse struct {
	Audio       []byte
	ContentType string
}
