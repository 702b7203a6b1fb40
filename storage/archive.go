package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/Dosada05/alliance-board/board"
	"github.com/Dosada05/alliance-board/models"
)

const archiveContentType = "application/json"

var ErrForeignArchive = errors.New("key is not an archive of this session")

// ArchiveKey names the object a session snapshot is stored under.
func ArchiveKey(sessionID string, at time.Time) string {
	return fmt.Sprintf("sessions/%s/%s.json", sessionID, at.UTC().Format("20060102T150405Z"))
}

// ArchiveSession uploads the exported board of a session and returns where it landed.
func ArchiveSession(ctx context.Context, uploader FileUploader, session *models.Session, at time.Time) (*UploadResult, error) {
	if uploader == nil {
		return nil, errors.New("no uploader configured")
	}
	var buf bytes.Buffer
	if err := board.Export(&buf, session.Data); err != nil {
		return nil, fmt.Errorf("export session %s: %w", session.ID, err)
	}
	return uploader.Upload(ctx, ArchiveKey(session.ID, at), archiveContentType, &buf)
}

// ReplaceArchive uploads a new archive of session and then deletes previous,
// an earlier archive of the same session. If the delete fails the new
// archive is still returned together with the error.
func ReplaceArchive(ctx context.Context, uploader FileUploader, session *models.Session, at time.Time, previous string) (*UploadResult, error) {
	if !IsArchiveOf(session.ID, previous) {
		return nil, fmt.Errorf("%w: %q", ErrForeignArchive, previous)
	}
	result, err := ArchiveSession(ctx, uploader, session, at)
	if err != nil {
		return nil, err
	}
	if previous == result.Key {
		return result, nil
	}
	if err := uploader.Delete(ctx, previous); err != nil {
		return result, fmt.Errorf("delete previous archive %s: %w", previous, err)
	}
	return result, nil
}

// IsArchiveOf reports whether key was produced by ArchiveKey for sessionID.
func IsArchiveOf(sessionID, key string) bool {
	prefix := "sessions/" + sessionID + "/"
	if sessionID == "" || !strings.HasPrefix(key, prefix) {
		return false
	}
	name := strings.TrimPrefix(key, prefix)
	return strings.HasSuffix(name, ".json") && !strings.ContainsAny(name, "/\\") && !strings.HasPrefix(name, ".")
}

// MemoryUploader keeps uploads in memory. Used by tests and by servers
// without object storage credentials in development.
type MemoryUploader struct {
	BaseURL string

	mu      sync.Mutex
	objects map[string][]byte
}

func NewMemoryUploader(baseURL string) *MemoryUploader {
	return &MemoryUploader{BaseURL: baseURL, objects: make(map[string][]byte)}
}

func (m *MemoryUploader) Upload(_ context.Context, key string, _ string, reader io.Reader) (*UploadResult, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.objects[key] = data
	m.mu.Unlock()
	return &UploadResult{Key: key, Location: m.GetPublicURL(key)}, nil
}

func (m *MemoryUploader) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryUploader) GetPublicURL(key string) string {
	return PublicURL(m.BaseURL, key)
}

// Object returns a stored object.
func (m *MemoryUploader) Object(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	return data, ok
}
