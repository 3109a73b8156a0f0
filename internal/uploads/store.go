package uploads

import (
	"errors"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"chat-app/internal/models"
)

// MaxFileSize caps attachment uploads. Oversized files are rejected before
// any persistence attempt.
const MaxFileSize = 10 << 20 // 10 MB

var (
	ErrFileTooLarge    = errors.New("file exceeds maximum size")
	ErrFileTypeBlocked = errors.New("file type not allowed")
)

var allowedExtensions = map[string]bool{
	".jpeg": true,
	".jpg":  true,
	".png":  true,
	".gif":  true,
	".pdf":  true,
	".doc":  true,
	".docx": true,
	".txt":  true,
}

// DiskStore writes attachments to a local directory under generated unique
// names. Only the stored name travels onto the message row.
type DiskStore struct {
	dir string
}

// NewDiskStore creates the upload directory if needed.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskStore{dir: dir}, nil
}

// Dir returns the backing directory, used for static serving.
func (s *DiskStore) Dir() string {
	return s.dir
}

// Save validates and stores an uploaded file, returning attachment metadata
// for the message row.
func (s *DiskStore) Save(file *multipart.FileHeader) (models.Attachment, error) {
	if file.Size > MaxFileSize {
		return models.Attachment{}, ErrFileTooLarge
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedExtensions[ext] {
		return models.Attachment{}, ErrFileTypeBlocked
	}

	storedName := uuid.NewString() + ext
	src, err := file.Open()
	if err != nil {
		return models.Attachment{}, err
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(s.dir, storedName))
	if err != nil {
		return models.Attachment{}, err
	}
	defer dst.Close()

	if _, err := dst.ReadFrom(src); err != nil {
		return models.Attachment{}, err
	}

	return models.Attachment{
		Path: storedName,
		Name: filepath.Base(file.Filename),
		Size: file.Size,
	}, nil
}
