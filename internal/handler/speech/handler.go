package speech

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/poet-chat/backend/internal/model/speech"
	speechsvc "github.com/zhouzirui/poet-chat/backend/internal/service/speech"
	"github.com/zhouzirui/poet-chat/backend/pkg/utils"
)

const (
	MessageNoAudio            = "No audio file provided"
	MessageNoText             = "No text provided"
	MessageInvalidContentType = "Invalid content type"
	MessageInvalidBody        = "Invalid request body"
	MessageAudioTooLarge      = "Audio file too large"
	MessageBodyTooLarge       = "Request body too large"
	MessageTranscribeFailed   = "Failed to transcribe audio"
	MessageSynthesizeFailed   = "Failed to generate speech"

	// formFileField 上传音频所用的表单字段
	formFileField = "file"
	// multipartMemory 超出部分由 mime/multipart 落盘
	multipartMemory = 8 << 20
	// maxJSONBodyBytes 合成请求只携带一段文本
	maxJSONBodyBytes = 1 << 20
)

// SpeechService 抽象语音业务，便于测试与替换实现
type SpeechService interface {
	Transcribe(ctx context.Context, req *speech.TranscriptionRequest) (*speech.TranscriptionResponse, error)
	Synthesize(ctx context.Context, req *speech.SynthesisRequest) (*speech.SynthesisResponse, error)
}

// Handler 语音服务的HTTP处理器
type Handler struct {
	speechSvc      SpeechService
	maxUploadBytes int64
}

// New 创建语音处理器
func New(speechSvc SpeechService, maxUploadBytes int64) *Handler {
	return &Handler{
		speechSvc:      speechSvc,
		maxUploadBytes: maxUploadBytes,
	}
}

// RegisterRoutes 注册语音相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/speech", h.handleSpeech)
}

// handleSpeech 按请求的 Content-Type 分派：表单上传走转写，JSON 走合成
func (h *Handler) handleSpeech(w http.ResponseWriter, r *http.Request) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, MessageInvalidContentType)
		return
	}

	switch mediaType {
	case "multipart/form-data":
		h.handleTranscribe(w, r)
	case "application/json":
		h.handleSynthesize(w, r)
	default:
		utils.RespondError(w, http.StatusBadRequest, MessageInvalidContentType)
	}
}

// handleTranscribe 处理语音转文本请求
func (h *Handler) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.RespondError(w, http.StatusRequestEntityTooLarge, MessageAudioTooLarge)
			return
		}
		log.Printf("[speech] failed to parse multipart form: %v", err)
		utils.RespondError(w, http.StatusBadRequest, MessageNoAudio)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(formFileField)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, MessageNoAudio)
		return
	}
	defer file.Close()

	clip := speech.Clip{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
	}.Normalized()

	resp, err := h.speechSvc.Transcribe(r.Context(), &speech.TranscriptionRequest{
		Audio:       file,
		Filename:    clip.Filename,
		ContentType: clip.ContentType,
	})
	if err != nil {
		log.Printf("[speech] transcription failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, upstreamMessage(err, MessageTranscribeFailed))
		return
	}

	utils.RespondJSON(w, http.StatusOK, resp)
}

// handleSynthesize 处理文本转语音请求
func (h *Handler) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var req speech.SynthesisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.RespondError(w, http.StatusRequestEntityTooLarge, MessageBodyTooLarge)
			return
		}
		utils.RespondError(w, http.StatusBadRequest, MessageInvalidBody)
		return
	}

	if req.Text == "" {
		utils.RespondError(w, http.StatusBadRequest, MessageNoText)
		return
	}

	resp, err := h.speechSvc.Synthesize(r.Context(), &req)
	if err != nil {
		log.Printf("[speech] synthesis failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, upstreamMessage(err, MessageSynthesizeFailed))
		return
	}

	contentType := resp.ContentType
	if contentType == "" {
		contentType = speech.SynthesisContentType
	}
	utils.RespondAudio(w, contentType, resp.Audio)
}

func upstreamMessage(err error, fallback string) string {
	if msg := speechsvc.ProviderMessage(err); msg != "" {
		return msg
	}
	return fallback
}
