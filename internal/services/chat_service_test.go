package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/velora-ai/chat-backend/internal/domain"
	"github.com/velora-ai/chat-backend/internal/llm"
)

// ----- Fake repo -----

type fakeChatRepo struct {
	createCalls  int
	createUserID string
	createPrompt string
	createKind   string
	createImage  *string
	createModel  string
	createErr    error

	countTotal int64
	countErr   error

	pageUserID string
	pageOffset int
	pageLimit  int
	pageItems  []domain.ChatRecord
	pageErr    error

	deleteID     string
	deleteUserID string
	deleteErr    error
}

func (r *fakeChatRepo) CreateChat(ctx context.Context, db *gorm.DB, userID, prompt, response, kind string, imageURL *string, modelName string) (*domain.ChatRecord, error) {
	r.createCalls++
	r.createUserID, r.createPrompt, r.createKind = userID, prompt, kind
	r.createImage, r.createModel = imageURL, modelName
	if r.createErr != nil {
		return nil, r.createErr
	}
	return &domain.ChatRecord{
		ID:        "c1",
		UserID:    userID,
		Prompt:    prompt,
		Response:  response,
		Kind:      kind,
		ImageURL:  imageURL,
		ModelName: modelName,
	}, nil
}

func (r *fakeChatRepo) CountChats(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	return r.countTotal, r.countErr
}

func (r *fakeChatRepo) ListChatsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.ChatRecord, error) {
	r.pageUserID, r.pageOffset, r.pageLimit = userID, offset, limit
	return r.pageItems, r.pageErr
}

func (r *fakeChatRepo) DeleteChat(ctx context.Context, db *gorm.DB, id, userID string) error {
	r.deleteID, r.deleteUserID = id, userID
	return r.deleteErr
}

// ----- Fake generation client -----

type fakeLLM struct {
	calls      int
	lastKind   string
	lastPrompt string
	result     *llm.Result
	err        error
}

func (f *fakeLLM) Generate(ctx context.Context, kind, prompt string) (*llm.Result, error) {
	f.calls++
	f.lastKind, f.lastPrompt = kind, prompt
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &llm.Result{Text: "generated", ModelName: "gemini-1.5-flash"}, nil
}

// ----- Tests -----

func TestNewChatService_Defaults(t *testing.T) {
	r := &fakeChatRepo{}
	g := &fakeLLM{}
	s := NewChatService(nil, r, g)

	if s.Repo != ChatRepo(r) || s.LLM != llm.Client(g) {
		t.Fatalf("dependencies not wired")
	}
	if s.MaxPromptRunes != 2000 {
		t.Fatalf("MaxPromptRunes default = 2000, got %d", s.MaxPromptRunes)
	}
}

func TestAnswer_EmptyPrompt_NeverCallsLLM(t *testing.T) {
	g := &fakeLLM{}
	r := &fakeChatRepo{}
	s := NewChatService(nil, r, g)

	for _, prompt := range []string{"", "   ", "\t\n"} {
		if _, err := s.Answer(context.Background(), "u1", domain.KindText, prompt); !errors.Is(err, ErrEmptyPrompt) {
			t.Fatalf("prompt %q: got %v; want ErrEmptyPrompt", prompt, err)
		}
	}
	if g.calls != 0 {
		t.Fatalf("LLM called %d times for invalid prompts", g.calls)
	}
	if r.createCalls != 0 {
		t.Fatalf("store touched for invalid prompts")
	}
}

func TestAnswer_TooLong_NeverCallsLLM(t *testing.T) {
	g := &fakeLLM{}
	r := &fakeChatRepo{}
	s := NewChatService(nil, r, g)

	long := strings.Repeat("x", 2001)
	if _, err := s.Answer(context.Background(), "u1", domain.KindText, long); !errors.Is(err, ErrTooLong) {
		t.Fatalf("got %v; want ErrTooLong", err)
	}
	if g.calls != 0 || r.createCalls != 0 {
		t.Fatalf("collaborators touched: llm=%d create=%d", g.calls, r.createCalls)
	}

	// Exactly at the boundary is accepted.
	exact := strings.Repeat("x", 2000)
	if _, err := s.Answer(context.Background(), "u1", domain.KindText, exact); err != nil {
		t.Fatalf("2000-rune prompt rejected: %v", err)
	}
}

func TestAnswer_TrimsPromptAndPersistsVerbatim(t *testing.T) {
	g := &fakeLLM{}
	r := &fakeChatRepo{}
	s := NewChatService(nil, r, g)

	rec, err := s.Answer(context.Background(), "u1", domain.KindText, "  Hello  ")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if g.lastPrompt != "Hello" || r.createPrompt != "Hello" {
		t.Fatalf("prompt not trimmed: llm=%q repo=%q", g.lastPrompt, r.createPrompt)
	}
	if rec.Prompt != "Hello" || rec.Response == "" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.ImageURL != nil {
		t.Fatalf("text record must not carry an image url")
	}
	if r.createModel != "gemini-1.5-flash" {
		t.Fatalf("model name not persisted: %q", r.createModel)
	}
}

func TestAnswer_ImageKind_CarriesImageURL(t *testing.T) {
	url := "https://image.pollinations.ai/prompt/a%20cat?seed=1"
	g := &fakeLLM{result: &llm.Result{Text: "a fluffy cat", ModelName: "gemini-1.5-flash", ImageURL: &url}}
	r := &fakeChatRepo{}
	s := NewChatService(nil, r, g)

	rec, err := s.Answer(context.Background(), "u1", domain.KindImageDescription, "a cat")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if g.lastKind != domain.KindImageDescription {
		t.Fatalf("kind not forwarded: %q", g.lastKind)
	}
	if rec.Kind != domain.KindImageDescription || rec.ImageURL == nil || *rec.ImageURL != url {
		t.Fatalf("unexpected image record: %+v", rec)
	}
}

func TestAnswer_UpstreamErrorPropagates_StoreUntouched(t *testing.T) {
	g := &fakeLLM{err: &llm.UpstreamError{Status: http.StatusTooManyRequests, Message: "quota"}}
	r := &fakeChatRepo{}
	s := NewChatService(nil, r, g)

	_, err := s.Answer(context.Background(), "u1", domain.KindText, "hi")
	var ue *llm.UpstreamError
	if !errors.As(err, &ue) || ue.Status != http.StatusTooManyRequests {
		t.Fatalf("got %v; want 429 UpstreamError", err)
	}
	if r.createCalls != 0 {
		t.Fatalf("store touched after generation failure")
	}
}

func TestAnswer_PersistFailureIsDistinct(t *testing.T) {
	g := &fakeLLM{}
	r := &fakeChatRepo{createErr: errors.New("disk full")}
	s := NewChatService(nil, r, g)

	_, err := s.Answer(context.Background(), "u1", domain.KindText, "hi")
	if !errors.Is(err, ErrPersist) {
		t.Fatalf("got %v; want ErrPersist", err)
	}
	var ue *llm.UpstreamError
	if errors.As(err, &ue) {
		t.Fatalf("persist failure must not look like an upstream failure")
	}
}

func TestListPage_DefaultsAndOffset(t *testing.T) {
	r := &fakeChatRepo{countTotal: 25, pageItems: make([]domain.ChatRecord, 5)}
	s := NewChatService(nil, r, &fakeLLM{})

	items, total, err := s.ListPage(context.Background(), "u1", 2, 20)
	if err != nil {
		t.Fatalf("ListPage: %v", err)
	}
	if total != 25 || len(items) != 5 {
		t.Fatalf("total=%d items=%d; want 25/5", total, len(items))
	}
	if r.pageOffset != 20 || r.pageLimit != 20 {
		t.Fatalf("offset/limit = %d/%d; want 20/20", r.pageOffset, r.pageLimit)
	}

	// Invalid values fall back to defaults.
	if _, _, err := s.ListPage(context.Background(), "u1", -3, 0); err != nil {
		t.Fatalf("ListPage defaults: %v", err)
	}
	if r.pageOffset != 0 || r.pageLimit != 20 {
		t.Fatalf("default offset/limit = %d/%d; want 0/20", r.pageOffset, r.pageLimit)
	}

	// Oversized page size is capped.
	if _, _, err := s.ListPage(context.Background(), "u1", 1, 1000); err != nil {
		t.Fatalf("ListPage cap: %v", err)
	}
	if r.pageLimit != 100 {
		t.Fatalf("capped limit = %d; want 100", r.pageLimit)
	}
}

func TestListPage_EmptySkipsPageQuery(t *testing.T) {
	r := &fakeChatRepo{countTotal: 0, pageErr: errors.New("should not be called")}
	s := NewChatService(nil, r, &fakeLLM{})

	items, total, err := s.ListPage(context.Background(), "u1", 1, 20)
	if err != nil {
		t.Fatalf("ListPage: %v", err)
	}
	if total != 0 || len(items) != 0 {
		t.Fatalf("expected empty result, got total=%d items=%d", total, len(items))
	}
}

func TestDelete_MapsNotFound(t *testing.T) {
	r := &fakeChatRepo{deleteErr: gorm.ErrRecordNotFound}
	s := NewChatService(nil, r, &fakeLLM{})

	if err := s.Delete(context.Background(), "u1", "c1"); !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("got %v; want ErrChatNotFound", err)
	}
	if r.deleteID != "c1" || r.deleteUserID != "u1" {
		t.Fatalf("delete scope not forwarded: id=%q user=%q", r.deleteID, r.deleteUserID)
	}

	r.deleteErr = nil
	if err := s.Delete(context.Background(), "u1", "c1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}
