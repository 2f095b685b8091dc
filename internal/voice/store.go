package voice

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// FileStore writes synthesized audio under a local directory that the webhook
// server exposes at /media/.
type FileStore struct {
	dir     string
	baseURL string
}

// NewFileStore constructs a FileStore, creating the directory when absent.
// baseURL is the externally reachable server root, e.g. https://bot.example.com.
func NewFileStore(dir, baseURL string) (*FileStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("media directory is required")
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("public base url is required")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media directory: %w", err)
	}

	return &FileStore{
		dir:     dir,
		baseURL: baseURL,
	}, nil
}

// Save writes the audio to a uuid-named file and returns its public URL.
func (s *FileStore) Save(audio []byte) (string, error) {
	if s == nil || s.dir == "" {
		return "", errors.New("file store is not initialized")
	}
	if len(audio) == 0 {
		return "", errors.New("audio is required")
	}

	name := uuid.NewString() + ".ogg"
	path := filepath.Join(s.dir, name)

	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return "", fmt.Errorf("write audio file: %w", err)
	}

	return fmt.Sprintf("%s/media/%s", s.baseURL, name), nil
}
