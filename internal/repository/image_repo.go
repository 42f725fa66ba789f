package repository

import (
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/google/uuid"
)

const imageURLPrefix = "/images/products/"

// ImageStore keeps uploaded product images on disk under uuid-prefixed
// names and hands back the URL path they are served from.
type ImageStore struct {
	Dir string
}

func (s *ImageStore) Save(name string, r io.Reader) (string, error) {
	filename := uuid.New().String() + "_" + filepath.Base(name)
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", err
	}
	f, err := os.Create(filepath.Join(s.Dir, filename))
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return "", err
	}
	return imageURLPrefix + filename, nil
}

// Replace stores the new image and deletes the superseded file.
func (s *ImageStore) Replace(oldURL, name string, r io.Reader) (string, error) {
	url, err := s.Save(name, r)
	if err != nil {
		return "", err
	}
	s.Remove(oldURL)
	return url, nil
}

// Remove deletes the file behind url; a missing file is not an error.
func (s *ImageStore) Remove(url string) {
	if url == "" {
		return
	}
	os.Remove(filepath.Join(s.Dir, path.Base(url)))
}
