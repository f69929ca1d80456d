// Package services – ChatService
//
// This file implements ChatService, the application-level component that
// owns the chat generation pipeline: validate the prompt, dispatch to the
// generation client, persist the exchange as an immutable chat record, and
// serve paginated history and owner-scoped deletes on top of the repository.
//
// The ordering of stages is a hard invariant: validation failures never
// reach the generation client, and generation failures never reach the
// store. A store failure after a successful generation is wrapped in
// ErrPersist so callers can tell "the AI failed" apart from "we could not
// save the response".
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// include user identifiers and pagination parameters where applicable.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/velora-ai/chat-backend/internal/domain"
	"github.com/velora-ai/chat-backend/internal/llm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ChatRepo defines the repository contract required by ChatService.
// Implementations are responsible for persistence of chat records.
type ChatRepo interface {
	// CreateChat inserts a new record owned by userID.
	CreateChat(ctx context.Context, db *gorm.DB, userID, prompt, response, kind string, imageURL *string, modelName string) (*domain.ChatRecord, error)

	// CountChats returns the total number of records for pagination.
	CountChats(ctx context.Context, db *gorm.DB, userID string) (int64, error)

	// ListChatsPage returns a page of records belonging to the user.
	ListChatsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.ChatRecord, error)

	// DeleteChat removes a record only when it is owned by userID.
	DeleteChat(ctx context.Context, db *gorm.DB, id, userID string) error
}

// ChatService coordinates prompt validation, generation, and persistence.
type ChatService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the chat-record repository used by this service.
	Repo ChatRepo
	// LLM is the generation client.
	LLM llm.Client

	// MaxPromptRunes caps accepted prompts by rune length.
	MaxPromptRunes int
}

// NewChatService constructs a ChatService with the default prompt cap.
func NewChatService(db *gorm.DB, r ChatRepo, client llm.Client) *ChatService {
	return &ChatService{
		DB:             db,
		Repo:           r,
		LLM:            client,
		MaxPromptRunes: 2000,
	}
}

// Answer runs the full pipeline for one prompt: trim and validate, dispatch
// to the generation client, and persist the resulting record. The returned
// record carries the prompt verbatim (post-trim), the generated response,
// and — for image-description requests — the synthesized image reference.
func (s *ChatService) Answer(ctx context.Context, userID, kind, prompt string) (*domain.ChatRecord, error) {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "Answer",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("chat.kind", kind),
		),
	)
	defer span.End()

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	if s.MaxPromptRunes > 0 && utf8.RuneCountInString(prompt) > s.MaxPromptRunes {
		return nil, ErrTooLong
	}

	res, err := s.LLM.Generate(ctx, kind, prompt)
	if err != nil {
		return nil, err
	}

	rec, err := s.Repo.CreateChat(ctx, s.DB, userID, prompt, res.Text, kind, res.ImageURL, res.ModelName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return rec, nil
}

// ListPage returns a page of the user's records, newest first, plus the
// total count. It applies defaults for invalid page/pageSize and caps the
// page size at 100.
func (s *ChatService) ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.ChatRecord, int64, error) {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	total, err := s.Repo.CountChats(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.ChatRecord{}, 0, nil
	}

	items, err := s.Repo.ListChatsPage(ctx, s.DB, userID, offset, pageSize)
	return items, total, err
}

// Delete removes the record identified by id when it belongs to userID.
// A missing record and a record owned by someone else both return
// ErrChatNotFound.
func (s *ChatService) Delete(ctx context.Context, userID, id string) error {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "Delete",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("chat.id", id),
		),
	)
	defer span.End()

	if err := s.Repo.DeleteChat(ctx, s.DB, id, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrChatNotFound
		}
		return err
	}
	return nil
}
