package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/zhouzirui/poet-chat/backend/internal/model/chat"
	"github.com/zhouzirui/poet-chat/backend/internal/model/persona"
	"github.com/zhouzirui/poet-chat/backend/internal/model/speech"
)

// RelayError is a non-2xx answer from the server, carrying its error body.
type RelayError struct {
	Status  int
	Message string
}

func (e *RelayError) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("relay returned %d: %s", e.Status, e.Message)
}

// Relay is an HTTP client for the chat and speech relays.
type Relay struct {
	baseURL    string
	httpClient *http.Client
}

// NewRelay creates a relay client for the server at baseURL.
func NewRelay(baseURL string, timeout time.Duration) *Relay {
	return &Relay{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Persona fetches the persona new transcripts are seeded with.
func (r *Relay) Persona(ctx context.Context) (persona.Persona, error) {
	var p persona.Persona
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/api/persona", nil)
	if err != nil {
		return p, fmt.Errorf("failed to create request: %w", err)
	}
	err = r.doJSON(req, &p)
	return p, err
}

// Complete sends the full turn sequence to the chat relay.
func (r *Relay) Complete(ctx context.Context, turns []chat.Turn) (chat.Turn, error) {
	var reply chat.Turn
	body, err := json.Marshal(chat.CompletionRequest{Messages: turns})
	if err != nil {
		return reply, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return reply, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	err = r.doJSON(req, &reply)
	return reply, err
}

// Transcribe uploads a clip to the speech relay and returns the recognised text.
func (r *Relay) Transcribe(ctx context.Context, clip speech.Clip) (string, error) {
	clip = clip.Normalized()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, clip.Filename))
	header.Set("Content-Type", clip.ContentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(clip.Data); err != nil {
		return "", fmt.Errorf("failed to write clip: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/api/speech", body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var resp speech.TranscriptionResponse
	if err := r.doJSON(req, &resp); err != nil {
		return "", err
	}
	return resp.Text, nil
}

// Synthesize asks the speech relay to speak text and returns the audio bytes.
func (r *Relay) Synthesize(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(speech.SynthesisRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/api/speech", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call speech relay: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, relayError(resp)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}
	return audio, nil
}

func (r *Relay) doJSON(req *http.Request, out any) error {
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return relayError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func relayError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var body struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(data))
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		msg = body.Error
	}
	return &RelayError{Status: resp.StatusCode, Message: msg}
}
