// Copyright (c) 2026 Gatekeep. All rights reserved.
// Author: minh.vo.sg@gmail.com

/*
Package upload implements the validation gate for user-supplied files.

Every byte arriving from a client is treated as hostile until proven
otherwise. The gate enforces three independent checks before anything
touches disk:

  - Size: the payload must fit within the configured byte budget.
  - Content: the actual bytes must sniff as an allow-listed image format.
    The declared MIME type and filename extension are advisory only.
  - Naming: the stored filename is generated server-side; the client's
    filename never appears in any filesystem path.

Architecture:

  - Gate: Stateless validator + writer, constructed once with config.
  - StoredFile: Result descriptor handed back to the calling operation.
  - Compensation: Remove undoes a successful write when a downstream
    step of the operation fails.
*/
package upload

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/minhvo/gatekeep/internal/platform/apperr"
)

// sniffLen is the number of leading bytes http.DetectContentType examines.
const sniffLen = 512

// allowedTypes maps sniffed content types to the server-chosen extension.
// The extension always comes from this table, never from the client.
var allowedTypes = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// StoredFile describes an accepted and persisted upload.
type StoredFile struct {
	// Name is the server-generated filename (no directory components).
	Name string
	// Path is the absolute filesystem location of the stored file.
	Path string
	// URL is the public path under which the file is served.
	URL string
	// ContentType is the sniffed (not declared) MIME type.
	ContentType string
	// Size is the stored byte count.
	Size int64
}

// Gate validates and stores uploaded files.
//
// # Concurrency
//
// Gate is immutable after construction and safe for concurrent use.
type Gate struct {
	dir       string
	urlPrefix string
	maxBytes  int64
}

// NewGate constructs a [Gate] writing into dir with the given size budget.
//
// The directory is not required to exist yet; it is created idempotently on
// the first accepted upload. It must live outside any path the serving layer
// would execute.
func NewGate(dir, urlPrefix string, maxBytes int64) *Gate {
	return &Gate{dir: dir, urlPrefix: urlPrefix, maxBytes: maxBytes}
}

/*
Accept validates the upload and, only if every check passes, writes it to disk.

Description: Reads at most maxBytes+1 from the reader, sniffs the content,
and persists under a server-generated name derived from the owner ID, a
random suffix, and the sniffed type's extension.

Parameters:
  - ctx: context.Context
  - reader: io.Reader (raw upload body)
  - ownerID: string (account that owns the file; used in the generated name)
  - declaredFilename: string (client-supplied, advisory only)
  - declaredMime: string (client-supplied, advisory only)

Returns:
  - *StoredFile: Descriptor of the persisted file
  - error: apperr.TooLarge, apperr.UnsupportedMedia, or apperr.Internal
*/
func (gate *Gate) Accept(ctx context.Context, reader io.Reader, ownerID, declaredFilename, declaredMime string) (*StoredFile, error) {

	// Honor request cancellation before doing any work.
	if err := ctx.Err(); err != nil {
		return nil, apperr.Internal(err)
	}

	// Read one byte past the budget so an oversize payload is detected
	// without buffering the whole thing.
	content, err := io.ReadAll(io.LimitReader(reader, gate.maxBytes+1))
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("upload: read failed: %w", err))
	}

	if int64(len(content)) > gate.maxBytes {
		return nil, apperr.TooLarge(gate.maxBytes)
	}

	if len(content) == 0 {
		return nil, apperr.UnsupportedMedia("Uploaded file is empty")
	}

	// Sniff the real content type. The declared values are ignored on
	// purpose: both are attacker-controlled.
	sniffed := http.DetectContentType(content[:min(len(content), sniffLen)])
	extension, allowed := allowedTypes[sniffed]
	if !allowed {
		return nil, apperr.UnsupportedMedia("File content must be a JPEG, PNG, GIF, or WebP image")
	}

	// Server-generated destination name: owner + random suffix + sniffed ext.
	suffix, err := randomSuffix()
	if err != nil {
		return nil, apperr.Internal(err)
	}
	name := fmt.Sprintf("user%s_%s.%s", ownerID, suffix, extension)

	// Idempotent directory creation.
	if err := os.MkdirAll(gate.dir, 0o755); err != nil {
		return nil, apperr.Internal(fmt.Errorf("upload: create dir failed: %w", err))
	}

	path := filepath.Join(gate.dir, name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return nil, apperr.Internal(fmt.Errorf("upload: write failed: %w", err))
	}

	return &StoredFile{
		Name:        name,
		Path:        path,
		URL:         gate.urlPrefix + "/" + name,
		ContentType: sniffed,
		Size:        int64(len(content)),
	}, nil
}

// Remove deletes a previously stored file.
//
// It is the compensating action for a failed downstream write: when the
// database update after a successful Accept fails, the caller invokes Remove
// so no orphaned file is left behind. Removing a missing file is not an error.
func (gate *Gate) Remove(path string) error {
	// Refuse to delete anything outside the gate's own directory.
	cleanDir := filepath.Clean(gate.dir)
	if filepath.Dir(filepath.Clean(path)) != cleanDir {
		return fmt.Errorf("upload: refusing to remove %q outside %q", path, cleanDir)
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("upload: remove failed: %w", err)
	}
	return nil
}

// Dir returns the gate's storage directory.
func (gate *Gate) Dir() string {
	return gate.dir
}

// URLPrefix returns the public URL prefix under which stored files are served.
func (gate *Gate) URLPrefix() string {
	return gate.urlPrefix
}

// randomSuffix returns 8 random bytes hex-encoded.
func randomSuffix() (string, error) {
	buffer := make([]byte, 8)
	if _, err := rand.Read(buffer); err != nil {
		return "", fmt.Errorf("upload: random suffix failed: %w", err)
	}
	return hex.EncodeToString(buffer), nil
}

// Sniff classifies content the same way Accept does, without storing anything.
func Sniff(content []byte) (contentType string, allowed bool) {
	sniffed := http.DetectContentType(content[:min(len(content), sniffLen)])
	_, ok := allowedTypes[sniffed]
	return sniffed, ok
}
