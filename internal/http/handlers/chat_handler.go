package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adithyaanandbtech24-sys/Medisync-1/internal/domain"
	"github.com/adithyaanandbtech24-sys/Medisync-1/internal/services"
	"github.com/adithyaanandbtech24-sys/Medisync-1/internal/utils"
)

// ChatRequest is the JSON body accepted by the chat endpoint.
type ChatRequest struct {
	Message string `json:"message" binding:"required" example:"How did my cholesterol change?"`
}

// ChatResponse carries the assistant reply.
type ChatResponse struct {
	Response string `json:"response"`
}

// ChatHistoryResponse wraps the stored transcript, oldest first.
type ChatHistoryResponse struct {
	Messages []domain.ChatMessage `json:"messages"`
}

// Chat godoc
// @ID          chat
// @Summary     Send a chat message
// @Description Appends the user message, generates an assistant reply grounded in the user's health data, and returns it.
// @Tags        Chat
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string               false "User ID (demo header)" example(user123)
// @Param       payload    body    handlers.ChatRequest true  "Chat message"
//
// @Success     200  {object} handlers.ChatResponse
// @Failure     400  {object} handlers.ErrorResponse "Message is required"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /chat [post]
func (h *Handlers) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Message is required")
		return
	}

	reply, err := h.chatSvc.Answer(c.Request.Context(), h.owner(c), req.Message)
	switch {
	case errors.Is(err, services.ErrEmptyMessage):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Message is required")
		return
	case errors.Is(err, services.ErrMessageTooLong):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Message is too long")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeChatFailed, err.Error())
		return
	}

	ok(c, http.StatusOK, ChatResponse{Response: reply})
}

// ChatHistory godoc
// @ID          chatHistory
// @Summary     Get chat history
// @Description Returns the user's stored conversation, oldest message first.
// @Tags        Chat
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"      example(user123)
// @Param       limit      query   int     false "Max messages (default 50)"  example(50)
//
// @Success     200  {object} handlers.ChatHistoryResponse
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /chat/history [get]
func (h *Handlers) ChatHistory(c *gin.Context) {
	limit := utils.AtoiDefault(c.Query("limit"), 0)

	messages, err := h.chatSvc.History(c.Request.Context(), h.owner(c), limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	if messages == nil {
		messages = []domain.ChatMessage{}
	}
	ok(c, http.StatusOK, ChatHistoryResponse{Messages: messages})
}
