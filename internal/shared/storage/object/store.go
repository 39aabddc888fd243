package object

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"

	"justicebench/internal/shared/util"
)

// ErrNotFound is returned by Open and Delete for an unknown key.
var ErrNotFound = errors.New("object not found")

// ErrInvalidKey is returned for namespaces or keys that escape the store.
var ErrInvalidKey = errors.New("invalid storage key")

// Document describes an archived judgment upload.
type Document struct {
	Key      string `json:"key"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
	SHA256   string `json:"sha256"`
}

// ObjectStore archives uploaded source documents.
type ObjectStore interface {
	// Save stores r under namespace and returns the generated key.
	Save(ctx context.Context, namespace string, fileName string, r io.Reader) (Document, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// NewKey returns namespace/<uuid>_<sanitized file name>. Namespace segments
// must be non-empty and may not be "." or "..".
func NewKey(namespace, fileName string) (string, error) {
	name, err := util.SanitizeFileName(fileName)
	if err != nil {
		return "", err
	}
	ns := strings.Trim(strings.TrimSpace(namespace), "/")
	if err := CheckKey(ns); err != nil {
		return "", err
	}
	return path.Join(ns, uuid.NewString()+"_"+name), nil
}

// CheckKey rejects empty, absolute and traversing keys.
func CheckKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." || strings.Contains(seg, "\\") {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}

// Meter wraps an upload body, sniffing its content type and counting and
// hashing the bytes as they are read.
type Meter struct {
	r        io.Reader
	h        hash.Hash
	n        int64
	mimeType string
}

// NewMeter sniffs up to 512 bytes of r for the content type.
func NewMeter(r io.Reader) (*Meter, error) {
	var head [512]byte
	n, err := io.ReadFull(r, head[:])
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("read upload head: %w", err)
	}
	return &Meter{
		r:        io.MultiReader(bytes.NewReader(head[:n]), r),
		h:        sha256.New(),
		mimeType: http.DetectContentType(head[:n]),
	}, nil
}

func (m *Meter) Read(p []byte) (int, error) {
	n, err := m.r.Read(p)
	if n > 0 {
		m.h.Write(p[:n])
		m.n += int64(n)
	}
	return n, err
}

// Document reports what has been read so far under key.
func (m *Meter) Document(key string) Document {
	return Document{
		Key:      key,
		Size:     m.n,
		MimeType: m.mimeType,
		SHA256:   hex.EncodeToString(m.h.Sum(nil)),
	}
}
