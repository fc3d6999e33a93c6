package speech

// Default naming for clips captured by a browser MediaRecorder.
const (
	DefaultClipName        = "audio.webm"
	DefaultClipContentType = "audio/webm"
	SynthesisContentType   = "audio/mpeg"
)

// Clip is one captured recording, consumed once by the speech relay.
type Clip struct {
	Data        []byte
	Filename    string
	ContentType string
}

// Normalized fills in the browser defaults for a clip with no name or type.
func (c Clip) Normalized() Clip {
	if c.Filename == "" {
		c.Filename = DefaultClipName
	}
	if c.ContentType == "" {
		c.ContentType = DefaultClipContentType
	}
	return c
}
