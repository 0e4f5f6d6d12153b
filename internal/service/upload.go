package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kmalykhin/storefront/internal/logging"
	"github.com/kmalykhin/storefront/internal/models"
	"github.com/kmalykhin/storefront/internal/repo"
	"github.com/kmalykhin/storefront/internal/storage"
)

// StreamThreshold is the file size above which downloads are served as a
// stream instead of an in-memory buffer.
const StreamThreshold = 1 << 20

type UploadService struct {
	Repo     *repo.GormRepo
	Sessions storage.UploadSessionStore
	Blobs    *storage.DiskStore
}

// DownloadResult has exactly two shapes, picked by file size. No caller
// ever needs to probe the value beyond a type switch.
type DownloadResult interface{ isDownloadResult() }

type BytesResult struct {
	Meta models.FileObject
	Data []byte
}

type StreamResult struct {
	Meta   models.FileObject
	Reader io.ReadCloser
}

func (BytesResult) isDownloadResult()  {}
func (StreamResult) isDownloadResult() {}

func (s *UploadService) StartUpload(ctx context.Context, name, contentType string, totalChunks int, actor Actor) (*storage.UploadSession, error) {
	l := logging.FromContext(ctx).With("svc", "upload.start")

	if name == "" || totalChunks <= 0 {
		return nil, fmt.Errorf("name and total_chunks required: %w", ErrValidation)
	}

	session := &storage.UploadSession{
		ID:          uuid.NewString(),
		Name:        name,
		ContentType: contentType,
		TotalChunks: totalChunks,
		Received:    map[int]bool{},
		UploadedBy:  actor.UserID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.Sessions.Put(ctx, session); err != nil {
		return nil, err
	}
	l.Info("upload_started", "upload_id", session.ID, "chunks", totalChunks)
	return session, nil
}

func (s *UploadService) PutChunk(ctx context.Context, uploadID string, index int, data io.Reader, actor Actor) (*storage.UploadSession, error) {
	session, err := s.getOwnedSession(ctx, uploadID, actor)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= session.TotalChunks {
		return nil, fmt.Errorf("chunk index out of range: %w", ErrValidation)
	}

	if _, err := s.Blobs.WriteChunk(uploadID, index, data); err != nil {
		return nil, err
	}
	session.Received[index] = true
	if err := s.Sessions.Put(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *UploadService) CompleteUpload(ctx context.Context, uploadID string, actor Actor) (*models.FileObject, error) {
	l := logging.FromContext(ctx).With("svc", "upload.complete", "upload_id", uploadID)

	session, err := s.getOwnedSession(ctx, uploadID, actor)
	if err != nil {
		return nil, err
	}
	if !session.Complete() {
		return nil, fmt.Errorf("%d of %d chunks received: %w",
			len(session.Received), session.TotalChunks, ErrValidation)
	}

	path, size, err := s.Blobs.Assemble(uploadID, session.Name, session.TotalChunks)
	if err != nil {
		return nil, err
	}

	file := &models.FileObject{
		Name:        session.Name,
		ContentType: session.ContentType,
		Size:        size,
		Path:        path,
		UploadedBy:  session.UploadedBy,
	}
	if err := s.Repo.CreateFileObject(ctx, file); err != nil {
		return nil, err
	}
	if err := s.Sessions.Delete(ctx, uploadID); err != nil {
		l.Error("session_delete_failed", "error", err)
	}
	l.Info("upload_complete", "file_id", file.ID, "size", size)
	return file, nil
}

// Download returns a BytesResult for small files and a StreamResult above
// the threshold; the caller owns the reader in the streaming case.
func (s *UploadService) Download(ctx context.Context, fileID uint) (DownloadResult, error) {
	file, err := s.Repo.GetFileObject(ctx, fileID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("file %d: %w", fileID, ErrNotFound)
		}
		return nil, err
	}

	if file.Size <= StreamThreshold {
		data, err := s.Blobs.ReadAll(file.Path)
		if err != nil {
			return nil, err
		}
		return BytesResult{Meta: *file, Data: data}, nil
	}

	reader, err := s.Blobs.Open(file.Path)
	if err != nil {
		return nil, err
	}
	return StreamResult{Meta: *file, Reader: reader}, nil
}

func (s *UploadService) getOwnedSession(ctx context.Context, uploadID string, actor Actor) (*storage.UploadSession, error) {
	session, err := s.Sessions.Get(ctx, uploadID)
	if err != nil {
		if errors.Is(err, storage.ErrSessionNotFound) {
			return nil, fmt.Errorf("upload %s: %w", uploadID, ErrNotFound)
		}
		return nil, err
	}
	if session.UploadedBy != actor.UserID && !actor.IsAdmin() {
		return nil, fmt.Errorf("upload %s: %w", uploadID, ErrForbidden)
	}
	return session, nil
}
