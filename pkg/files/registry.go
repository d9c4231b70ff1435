package files

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"mercator-hq/poebridge/pkg/apierror"
	"mercator-hq/poebridge/pkg/config"
	"mercator-hq/poebridge/pkg/ids"
)

// Registry validates uploads and resolves file ids.
type Registry struct {
	store   Store
	allowed map[string]bool
	limit   int64
	now     func() time.Time
	logger  *slog.Logger
}

// NewRegistry returns a registry over store. A zero limit disables the size
// check; an empty allowlist accepts every type.
func NewRegistry(store Store, allowedTypes []string, limit int64) *Registry {
	allowed := make(map[string]bool, len(allowedTypes))
	for _, t := range allowedTypes {
		allowed[strings.ToLower(t)] = true
	}
	return &Registry{
		store:   store,
		allowed: allowed,
		limit:   limit,
		now:     time.Now,
		logger:  slog.Default().With("component", "files"),
	}
}

// New builds the registry configured in cfg.
func New(cfg *config.Config) (*Registry, error) {
	var store Store
	switch cfg.Files.Backend {
	case "", "memory":
		store = NewMemoryStore()
	case "sqlite":
		s, err := NewSQLiteStore(cfg.Files.SQLite)
		if err != nil {
			return nil, err
		}
		store = s
	default:
		return nil, fmt.Errorf("unknown files backend %q", cfg.Files.Backend)
	}
	return NewRegistry(store, cfg.Files.AllowedTypes, cfg.Limits.FileSizeLimit()), nil
}

// Upload validates and stores a file. Size is checked before type.
func (r *Registry) Upload(ctx context.Context, filename, contentType, purpose string, data []byte) (*File, error) {
	size := int64(len(data))
	if r.limit > 0 && size > r.limit {
		return nil, apierror.PayloadTooLarge("file", size, r.limit)
	}

	mimeType := DetectType(filename, contentType, data)
	if len(r.allowed) > 0 && !r.allowed[mimeType] {
		return nil, apierror.UnsupportedMediaType(mimeType)
	}

	if purpose == "" {
		purpose = "assistants"
	}
	f := &File{
		ID:        ids.New(ids.File),
		Filename:  filename,
		Purpose:   purpose,
		MimeType:  mimeType,
		Bytes:     size,
		CreatedAt: r.now(),
		Data:      data,
	}
	if err := r.store.Put(ctx, f); err != nil {
		return nil, apierror.Internal(err)
	}

	r.logger.Debug("file stored",
		"file_id", f.ID,
		"mime_type", mimeType,
		"bytes", size,
	)
	return f, nil
}

// Get returns a file with its bytes.
func (r *Registry) Get(ctx context.Context, id string) (*File, error) {
	f, err := r.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apierror.NotFound("file", id)
	}
	if err != nil {
		return nil, apierror.Internal(err)
	}
	return f, nil
}

// List returns file metadata, oldest first. A non-empty purpose filters.
func (r *Registry) List(ctx context.Context, purpose string) ([]*File, error) {
	all, err := r.store.List(ctx)
	if err != nil {
		return nil, apierror.Internal(err)
	}
	if purpose == "" {
		return all, nil
	}
	out := all[:0]
	for _, f := range all {
		if f.Purpose == purpose {
			out = append(out, f)
		}
	}
	return out, nil
}

// Delete removes a file.
func (r *Registry) Delete(ctx context.Context, id string) error {
	ok, err := r.store.Delete(ctx, id)
	if err != nil {
		return apierror.Internal(err)
	}
	if !ok {
		return apierror.NotFound("file", id)
	}
	return nil
}

// Stats reports the number of stored files and their total size.
func (r *Registry) Stats(ctx context.Context) (int, int64, error) {
	return r.store.Stats(ctx)
}

// Ping checks the underlying store.
func (r *Registry) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}

// Close closes the underlying store.
func (r *Registry) Close() error {
	return r.store.Close()
}

// DetectType returns the media type of an upload without parameters. The
// declared type wins unless it is missing or generic; then the extension,
// then the content is consulted.
func DetectType(filename, declared string, data []byte) string {
	if t := baseType(declared); t != "" && t != "application/octet-stream" {
		return t
	}
	if ext := filepath.Ext(filename); ext != "" {
		if t := baseType(mime.TypeByExtension(ext)); t != "" {
			return t
		}
	}
	if len(data) > 0 {
		return baseType(http.DetectContentType(data))
	}
	return "application/octet-stream"
}

func baseType(v string) string {
	if v == "" {
		return ""
	}
	t, _, err := mime.ParseMediaType(v)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(v))
	}
	return strings.ToLower(t)
}
