// Package upload stores files sent through admin and contact forms.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Upload errors.
var (
	ErrFileTooLarge        = errors.New("file is too large")
	ErrExtensionNotAllowed = errors.New("file type is not allowed")
	ErrEmptyFile           = errors.New("file is empty")
)

// PublicURLPrefix is where public uploads are served.
const PublicURLPrefix = "/uploads/"

var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true,
}

// Store writes uploads under a public and a protected root.
type Store struct {
	publicDir    string
	protectedDir string
	allowed      map[string]bool
	maxSize      int64
	logger       *slog.Logger
}

// New creates a Store. Extensions may be given with or without the dot.
func New(publicDir, protectedDir string, extensions []string, maxSize int64, logger *slog.Logger) *Store {
	allowed := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = true
	}
	return &Store{
		publicDir:    publicDir,
		protectedDir: protectedDir,
		allowed:      allowed,
		maxSize:      maxSize,
		logger:       logger.With("component", "upload"),
	}
}

// Init creates both upload roots.
func (s *Store) Init() error {
	for _, dir := range []string{s.publicDir, s.protectedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create upload root %s: %w", dir, err)
		}
	}
	return nil
}

// Ping reports whether both upload roots exist as directories.
func (s *Store) Ping(ctx context.Context) error {
	for _, dir := range []string{s.publicDir, s.protectedDir} {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("upload root %s: %w", dir, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("upload root %s is not a directory", dir)
		}
	}
	return nil
}

// PublicDir is the root served under PublicURLPrefix.
func (s *Store) PublicDir() string { return s.publicDir }

// ProtectedDir is the root of files that are only streamed by handlers.
func (s *Store) ProtectedDir() string { return s.protectedDir }

// SaveImage stores a public image under sub and returns its URL path.
func (s *Store) SaveImage(file multipart.File, header *multipart.FileHeader, sub string) (string, error) {
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !imageExtensions[ext] {
		return "", fmt.Errorf("%w: %s", ErrExtensionNotAllowed, ext)
	}
	rel, err := s.save(s.publicDir, sub, file, header)
	if err != nil {
		return "", err
	}
	return PublicURLPrefix + path.Clean(filepath.ToSlash(rel)), nil
}

// SaveProtected stores a file under the protected root and returns its
// relative path. A non-empty only list narrows the configured extensions.
func (s *Store) SaveProtected(file multipart.File, header *multipart.FileHeader, sub string, only ...string) (string, error) {
	if len(only) > 0 {
		ext := strings.ToLower(filepath.Ext(header.Filename))
		ok := false
		for _, o := range only {
			if ext == o {
				ok = true
				break
			}
		}
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrExtensionNotAllowed, ext)
		}
	}
	rel, err := s.save(s.protectedDir, sub, file, header)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

func (s *Store) save(root, sub string, file multipart.File, header *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !s.allowed[ext] {
		return "", fmt.Errorf("%w: %s", ErrExtensionNotAllowed, ext)
	}
	if header.Size == 0 {
		return "", ErrEmptyFile
	}
	if s.maxSize > 0 && header.Size > s.maxSize {
		return "", ErrFileTooLarge
	}

	dir := filepath.Join(root, filepath.Clean("/" + sub))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload folder: %w", err)
	}

	name := uuid.NewString() + ext
	full := filepath.Join(dir, name)
	out, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create upload: %w", err)
	}

	var src io.Reader = file
	if s.maxSize > 0 {
		src = io.LimitReader(file, s.maxSize+1)
	}
	n, err := io.Copy(out, src)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil && s.maxSize > 0 && n > s.maxSize {
		err = ErrFileTooLarge
	}
	if err != nil {
		_ = os.Remove(full)
		if errors.Is(err, ErrFileTooLarge) {
			return "", err
		}
		return "", fmt.Errorf("failed to write upload: %w", err)
	}

	rel, err := filepath.Rel(root, full)
	if err != nil {
		return "", err
	}
	s.logger.Info("file uploaded", "path", rel, "bytes", n)
	return rel, nil
}

// RemoveImage deletes a previously stored public image given its URL path.
// Unknown or foreign paths are ignored.
func (s *Store) RemoveImage(urlPath string) {
	if !strings.HasPrefix(urlPath, PublicURLPrefix) {
		return
	}
	rel := filepath.FromSlash(strings.TrimPrefix(path.Clean(urlPath), PublicURLPrefix))
	full := filepath.Join(s.publicDir, filepath.Clean("/"+rel))
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("failed to remove upload", "path", urlPath, "error", err)
	}
}

// RemoveProtected deletes a protected file given its relative path.
func (s *Store) RemoveProtected(rel string) {
	if rel == "" {
		return
	}
	full := filepath.Join(s.protectedDir, filepath.Clean("/"+filepath.FromSlash(rel)))
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("failed to remove upload", "path", rel, "error", err)
	}
}
