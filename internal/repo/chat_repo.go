// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the ChatRecord
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a record is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Functions:
//
//   - CreateChat(ctx, db, userID, prompt, response, kind, imageURL, modelName) -> *domain.ChatRecord, error
//     Inserts a new record with UUID primary key and UTC timestamp.
//
//   - CountChats(ctx, db, userID) -> (int64, error)
//     Returns the total number of records owned by the user.
//
//   - ListChatsPage(ctx, db, userID, offset, limit) -> []domain.ChatRecord, error
//     Returns a paginated slice of the user's records, newest first.
//
//   - DeleteChat(ctx, db, id, userID) -> error
//     Deletes a record only when it is owned by userID; an absent record and
//     a record owned by someone else both return ErrNotFound.
//
//   - ChatsStats(ctx, db, userID) -> (count, maxCreatedAt, error)
//     Aggregate metadata used for conditional history responses (ETags).
//
// This repository is wrapped by services.ChatService, which enforces the
// prompt validation and generation pipeline on top of it.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/velora-ai/chat-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist or is not
// owned by the requesting user. It aliases gorm.ErrRecordNotFound for
// consistency across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateChat inserts a new ChatRecord owned by userID. The record ID is a
// randomly generated UUID and CreatedAt is set to UTC. imageURL may be nil
// for plain text records.
//
// On success, it returns the persisted record. On failure, it returns a DB error.
func CreateChat(ctx context.Context, db *gorm.DB, userID, prompt, response, kind string, imageURL *string, modelName string) (*domain.ChatRecord, error) {
	rec := &domain.ChatRecord{
		ID:        uuid.NewString(),
		UserID:    userID,
		Prompt:    prompt,
		Response:  response,
		Kind:      kind,
		ImageURL:  imageURL,
		ModelName: modelName,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

// CountChats returns the total number of records owned by userID.
// On DB error, it returns the error.
func CountChats(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.ChatRecord{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// ListChatsPage returns a paginated slice of records for userID, ordered by
// creation time descending. Use CountChats to obtain the total for pagination
// metadata. On DB error, it returns the error.
//
// The caller is responsible for computing offset and limit (e.g., (page-1)*pageSize).
func ListChatsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.ChatRecord, error) {
	var out []domain.ChatRecord
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// DeleteChat removes the record identified by id, but only when it is owned
// by userID. If no row matches (record missing or owned by another user),
// it returns ErrNotFound; the two cases are indistinguishable to the caller.
// On DB error, the raw error is returned.
func DeleteChat(ctx context.Context, db *gorm.DB, id, userID string) error {
	res := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&domain.ChatRecord{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ChatsStats returns aggregate metadata for a user's records: the total
// number of rows and the maximum CreatedAt timestamp among those rows.
//
// It executes two lightweight queries against the chats table scoped to the
// provided userID. When the user has no records, the returned count is 0 and
// maxCreatedAt is nil.
func ChatsStats(ctx context.Context, db *gorm.DB, userID string) (count int64, maxCreatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.ChatRecord{}).Where("user_id = ?", userID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest created_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		CreatedAt time.Time
	}
	if err = q.Select("created_at").Order("created_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.CreatedAt, nil
}
