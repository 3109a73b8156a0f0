package uploads

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func multipartFile(t *testing.T, filename, content string) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	_, header, err := req.FormFile("file")
	require.NoError(t, err)
	return header
}

func TestSaveStoresFileUnderGeneratedName(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	att, err := store.Save(multipartFile(t, "notes.txt", "hello"))
	require.NoError(t, err)

	assert.Equal(t, "notes.txt", att.Name)
	assert.EqualValues(t, 5, att.Size)
	assert.NotEqual(t, "notes.txt", att.Path)
	assert.Equal(t, ".txt", filepath.Ext(att.Path))

	data, err := os.ReadFile(filepath.Join(store.Dir(), att.Path))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestSaveRejectsBlockedExtension(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save(multipartFile(t, "malware.exe", "boom"))
	assert.ErrorIs(t, err, ErrFileTypeBlocked)
}

func TestSaveRejectsOversizedFile(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	// Size is checked before the file is opened, so a synthetic header works.
	oversized := &multipart.FileHeader{Filename: "big.txt", Size: MaxFileSize + 1}
	_, err = store.Save(oversized)
	assert.ErrorIs(t, err, ErrFileTooLarge)
}
