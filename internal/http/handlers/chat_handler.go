// Chat HTTP handlers.
//
// This file exposes REST endpoints for chat resources:
//   - POST   /chat/text      (generate a text answer and persist the exchange)
//   - POST   /chat/image     (generate an image description and persist it)
//   - GET    /chat/history   (list, paginated, ETag support)
//   - DELETE /chat/{id}      (owner-scoped delete)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/velora-ai/chat-backend/internal/domain"
	"github.com/velora-ai/chat-backend/internal/http/middleware"
	"github.com/velora-ai/chat-backend/internal/llm"
	"github.com/velora-ai/chat-backend/internal/repo"
	"github.com/velora-ai/chat-backend/internal/services"
	"github.com/velora-ai/chat-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// ChatService defines chat lifecycle operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type ChatService interface {
	// Answer generates a model response for prompt and persists the exchange.
	Answer(ctx context.Context, userID, kind, prompt string) (*domain.ChatRecord, error)
	// ListPage returns a page of the user's chat records and the total count.
	ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.ChatRecord, int64, error)
	// Delete removes a chat record that belongs to userID.
	Delete(ctx context.Context, userID, id string) error
}

// AuthService defines registration and login operations consumed by HTTP
// handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type AuthService interface {
	// Register creates a user account and returns it with a signed token.
	Register(ctx context.Context, username, email, password string) (*domain.User, string, error)
	// Login verifies credentials and returns the user with a signed token.
	Login(ctx context.Context, email, password string) (*domain.User, string, error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for chat and authentication.
// It depends on abstract service interfaces to keep transport concerns
// separate from business logic.
type Handlers struct {
	chatSvc ChatService
	authSvc AuthService
}

// New constructs and returns a Handlers instance bound to the given services.
func New(chatSvc ChatService, authSvc AuthService) *Handlers {
	return &Handlers{chatSvc: chatSvc, authSvc: authSvc}
}

//
// DTOs
//

// ChatRequest is the JSON payload for generating a chat response.
type ChatRequest struct {
	// Prompt is the user's input text (1–2000 chars).
	Prompt string `json:"prompt" binding:"required" example:"Explain how tides work"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Current    int   `json:"current"`
	TotalPages int   `json:"total_pages"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
}

// HistoryResponse wraps a page of chat records and pagination information.
type HistoryResponse struct {
	Chats      []domain.ChatRecord `json:"chats"`
	Pagination Pagination          `json:"pagination"`
}

// DeleteResponse confirms a successful delete.
type DeleteResponse struct {
	Message string `json:"message" example:"chat deleted"`
}

//
// Helpers
//

// clampPagination parses and bounds page and limit query params to sane
// defaults and limits, returning (page, limit).
func clampPagination(c *gin.Context) (page, limit int) {
	const (
		defaultPage  = 1
		defaultLimit = 20
		maxLimit     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	limit = utils.AtoiDefault(c.Query("limit"), defaultLimit)
	if limit < 1 {
		limit = 1
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return
}

// answerError translates a ChatService.Answer failure into an HTTP response.
func answerError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrEmptyPrompt):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "prompt must not be empty")
		return
	case errors.Is(err, services.ErrTooLong):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "prompt exceeds the maximum length of 2000 characters")
		return
	case errors.Is(err, services.ErrPersist):
		failDetail(c, http.StatusInternalServerError, ErrCodeSaveFailed, "failed to save chat record", err.Error())
		return
	}

	var ue *llm.UpstreamError
	if errors.As(err, &ue) {
		if ue.ClientFacing() {
			code := ErrCodeBadRequest
			switch ue.Status {
			case http.StatusUnauthorized:
				code = ErrCodeUnauthorized
			case http.StatusTooManyRequests:
				code = ErrCodeRateLimited
			}
			failDetail(c, ue.Status, code, ue.Message, ue.Error())
			return
		}
		failDetail(c, http.StatusBadGateway, ErrCodeAnswerFailed, "error generating response", ue.Error())
		return
	}

	failDetail(c, http.StatusInternalServerError, ErrCodeInternal, "internal error", err.Error())
}

// answer is the shared implementation behind PostText and PostImage.
func (h *Handlers) answer(c *gin.Context, kind string) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body: prompt required")
		return
	}

	rec, err := h.chatSvc.Answer(c.Request.Context(), middleware.UserID(c), kind, req.Prompt)
	if err != nil {
		answerError(c, err)
		return
	}
	ok(c, http.StatusOK, rec)
}

//
// Handlers
//

// PostText godoc
// @ID          chatText
// @Summary     Generate a text response
// @Description Sends the prompt to the generative model, persists the exchange, and returns the saved record.
// @Tags        Chat
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       body  body  handlers.ChatRequest  true  "Chat prompt payload"
//
// @Success     200  {object}  domain.ChatRecord
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or invalid token"
// @Failure     429  {object}  handlers.ErrorResponse  "Upstream rate limit"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Failure     502  {object}  handlers.ErrorResponse  "Upstream generation failed"
// @Router      /chat/text [post]
func (h *Handlers) PostText(c *gin.Context) {
	h.answer(c, domain.KindText)
}

// PostImage godoc
// @ID          chatImage
// @Summary     Generate an image description
// @Description Produces a vivid visual description of the prompt plus a placeholder image URL, persists the exchange, and returns the saved record.
// @Tags        Chat
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       body  body  handlers.ChatRequest  true  "Chat prompt payload"
//
// @Success     200  {object}  domain.ChatRecord
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing or invalid token"
// @Failure     429  {object}  handlers.ErrorResponse  "Upstream rate limit"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Failure     502  {object}  handlers.ErrorResponse  "Upstream generation failed"
// @Router      /chat/image [post]
func (h *Handlers) PostImage(c *gin.Context) {
	h.answer(c, domain.KindImageDescription)
}

// History godoc
// @ID          chatHistory
// @Summary     List chat history (paginated)
// @Description Returns a page of the user's chat records, newest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Chat
// @Produce     json
// @Security    BearerAuth
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       limit          query   int     false "Items per page"               minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.HistoryResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     401  {object} handlers.ErrorResponse "Missing or invalid token"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /chat/history [get]
func (h *Handlers) History(c *gin.Context) {
	ctx := c.Request.Context()
	uid := middleware.UserID(c)
	page, limit := clampPagination(c)

	// ETag pre-check (best effort).
	var db *gorm.DB
	if svc, isConcrete := h.chatSvc.(*services.ChatService); isConcrete {
		db = svc.DB
	}
	if db != nil {
		count, maxTS, err := repo.ChatsStats(ctx, db, uid)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"chats:%s:%d:%d"`, uid, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	// Fetch page.
	items, total, err := h.chatSvc.ListPage(ctx, uid, page, limit)
	if err != nil {
		failDetail(c, http.StatusInternalServerError, ErrCodeListFailed, "failed to list chat history", err.Error())
		return
	}
	if items == nil {
		items = []domain.ChatRecord{}
	}

	resp := HistoryResponse{
		Chats: items,
		Pagination: Pagination{
			Current:    page,
			TotalPages: utils.TotalPages(total, limit),
			Limit:      limit,
			Total:      total,
		},
	}
	ok(c, http.StatusOK, resp)
}

// DeleteChat godoc
// @ID          deleteChat
// @Summary     Delete a chat record
// @Description Deletes a chat record owned by the current user. Absent and not-owned records are indistinguishable (both 404).
// @Tags        Chat
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Chat ID (UUID)"  format(uuid) example(141add05-4415-4938-b5a1-17e0d3171aff)
//
// @Success     200  {object} handlers.DeleteResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     401  {object} handlers.ErrorResponse "Missing or invalid token"
// @Failure     404  {object} handlers.ErrorResponse "Chat not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /chat/{id} [delete]
func (h *Handlers) DeleteChat(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "chat id must be a UUID")
		return
	}

	if err := h.chatSvc.Delete(c.Request.Context(), middleware.UserID(c), id); err != nil {
		if errors.Is(err, services.ErrChatNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "chat not found")
			return
		}
		failDetail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to delete chat", err.Error())
		return
	}

	ok(c, http.StatusOK, DeleteResponse{Message: "chat deleted"})
}
