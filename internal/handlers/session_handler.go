package handlers

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/SAP-F-2025/practice-service/internal/practice"
	"github.com/SAP-F-2025/practice-service/internal/services"
	"github.com/SAP-F-2025/practice-service/internal/utils"
	"github.com/SAP-F-2025/practice-service/internal/validator"
)

const imageFormField = "image"

type SessionHandler struct {
	BaseHandler
	sessionService services.SessionService
	validator      *validator.Validator
	upgrader       websocket.Upgrader
	maxImageBytes  int64
}

func NewSessionHandler(
	sessionService services.SessionService,
	validator *validator.Validator,
	logger utils.Logger,
	cfg HandlerConfig,
) *SessionHandler {
	return &SessionHandler{
		BaseHandler:    NewBaseHandler(logger, cfg.PurchaseURL),
		sessionService: sessionService,
		validator:      validator,
		maxImageBytes:  cfg.MaxImageBytes,
		upgrader: websocket.Upgrader{
			ReadBufferSize:   4096,
			WriteBufferSize:  1024,
			HandshakeTimeout: 10 * time.Second,
			CheckOrigin:      cfg.checkOrigin,
		},
	}
}

// ===== LIFECYCLE =====

// OpenSession opens a practice session
// @Summary Open practice session
// @Description Opens a session for a subject, or resumes one with resume_session_id
// @Tags sessions
// @Accept json
// @Produce json
// @Param session body services.OpenSessionRequest true "Session parameters"
// @Success 201 {object} practice.Snapshot
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /sessions [post]
func (h *SessionHandler) OpenSession(c *gin.Context) {
	h.LogRequest(c, "Opening practice session")

	var req services.OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	userID, ok := h.requireUser(c)
	if !ok {
		return
	}

	snapshot, err := h.sessionService.Open(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, snapshot)
}

// GetSession returns the current state of a session
// @Summary Get practice session
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} practice.Snapshot
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id} [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	h.withSession(c, h.sessionService.Snapshot)
}

// CloseSession tears a session down and releases its microphone
// @Summary Close practice session
// @Tags sessions
// @Param id path string true "Session ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id} [delete]
func (h *SessionHandler) CloseSession(c *gin.Context) {
	id := ParseSessionIDParam(c, "id")
	if id == "" {
		return
	}
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Closing practice session", "session_id", id)

	if err := h.sessionService.Close(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ===== QUESTIONS AND ANSWERS =====

// NextQuestion acquires a new question
// @Summary Next question
// @Description Charges credits and replaces the current question
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} practice.Snapshot
// @Failure 402 {object} ErrorResponse{details=CreditPurchaseDetails}
// @Failure 409 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /sessions/{id}/next [post]
func (h *SessionHandler) NextQuestion(c *gin.Context) {
	h.withSession(c, h.sessionService.Next)
}

// SetAnswer updates the draft answer
// @Summary Set answer
// @Description Sets {option}, {text}, or {label, text} for a structured part
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param answer body services.AnswerRequest true "Answer input"
// @Success 200 {object} practice.Snapshot
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /sessions/{id}/answer [put]
func (h *SessionHandler) SetAnswer(c *gin.Context) {
	id := ParseSessionIDParam(c, "id")
	if id == "" {
		return
	}

	var req services.AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	userID, ok := h.requireUser(c)
	if !ok {
		return
	}

	snapshot, err := h.sessionService.SetAnswer(c.Request.Context(), id, userID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// AttachImage attaches a photo of a handwritten answer and extracts its text
// @Summary Attach answer image
// @Tags sessions
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Session ID"
// @Param image formData file true "Answer image"
// @Success 200 {object} practice.Snapshot
// @Failure 400 {object} ErrorResponse
// @Failure 413 {object} ErrorResponse
// @Router /sessions/{id}/image [post]
func (h *SessionHandler) AttachImage(c *gin.Context) {
	id := ParseSessionIDParam(c, "id")
	if id == "" {
		return
	}
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}

	file, err := c.FormFile(imageFormField)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Missing image file",
			Details: err.Error(),
		})
		return
	}
	if h.maxImageBytes > 0 && file.Size > h.maxImageBytes {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
			Message: services.ErrImageTooLarge.Error(),
		})
		return
	}

	img, err := readImage(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Unreadable image file",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Attaching answer image", "session_id", id, "size", len(img.Data), "mime_type", img.MimeType)

	snapshot, err := h.sessionService.AttachImage(c.Request.Context(), id, userID, img)
	if err != nil {
		if errors.Is(err, services.ErrImageTooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Message: err.Error()})
			return
		}
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func readImage(file *multipart.FileHeader) (practice.Image, error) {
	f, err := file.Open()
	if err != nil {
		return practice.Image{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return practice.Image{}, err
	}

	mimeType := file.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	return practice.Image{Data: data, MimeType: mimeType}, nil
}

// SubmitAnswer grades the draft answer
// @Summary Submit answer
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} practice.Snapshot
// @Failure 400 {object} ErrorResponse
// @Failure 402 {object} ErrorResponse{details=CreditPurchaseDetails}
// @Failure 409 {object} ErrorResponse
// @Router /sessions/{id}/submit [post]
func (h *SessionHandler) SubmitAnswer(c *gin.Context) {
	h.withSession(c, h.sessionService.Submit)
}

// ===== MICROPHONE =====

// StartRecording starts capturing audio from the attached microphone
// @Summary Start recording
// @Tags sessions
// @Param id path string true "Session ID"
// @Success 200 {object} practice.Snapshot
// @Router /sessions/{id}/recording/start [post]
func (h *SessionHandler) StartRecording(c *gin.Context) {
	h.withSession(c, h.sessionService.StartRecording)
}

// StopRecording stops capturing and transcribes the recording into the draft
// @Summary Stop recording
// @Tags sessions
// @Param id path string true "Session ID"
// @Success 200 {object} practice.Snapshot
// @Router /sessions/{id}/recording/stop [post]
func (h *SessionHandler) StopRecording(c *gin.Context) {
	h.withSession(c, h.sessionService.StopRecording)
}

// Microphone upgrades to a websocket that streams the browser microphone into the session
// @Summary Attach microphone
// @Tags sessions
// @Param id path string true "Session ID"
// @Param token query string false "Bearer token for clients that cannot set headers"
// @Success 101
// @Failure 409 {object} ErrorResponse
// @Router /sessions/{id}/microphone [get]
func (h *SessionHandler) Microphone(c *gin.Context) {
	id := ParseSessionIDParam(c, "id")
	if id == "" {
		return
	}
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}

	device, err := h.sessionService.Microphone(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the error response
		h.LogWarn(c, "Microphone upgrade failed", "session_id", id, "error", err)
		return
	}

	h.LogRequest(c, "Microphone attached", "session_id", id)
	if err := device.Serve(c.Request.Context(), ws); err != nil {
		h.LogWarn(c, "Microphone connection ended", "session_id", id, "error", err)
	}
}

// ===== HELPERS =====

type sessionAction func(ctx context.Context, sessionID, userID string) (*practice.Snapshot, error)

// withSession runs an action that only needs the session and user, then writes its snapshot.
func (h *SessionHandler) withSession(c *gin.Context, action sessionAction) {
	id := ParseSessionIDParam(c, "id")
	if id == "" {
		return
	}
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}

	snapshot, err := action(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}
