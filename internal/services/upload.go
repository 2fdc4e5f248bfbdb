package services

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// MaxUploadSize caps featured images at 10MB.
const MaxUploadSize = 10 * 1024 * 1024

// allowedImageTypes maps accepted MIME types to the extension used for the
// stored file. Detection is done by content sniffing, not the client header.
var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Uploader stores featured images under a configured directory, created on
// demand. Posts reference the stored file by name only.
type Uploader struct {
	Dir string
}

func NewUploader(dir string) *Uploader {
	if dir == "" {
		dir = "./uploads"
	}
	return &Uploader{Dir: dir}
}

// Save validates and persists an uploaded image, returning the stored
// filename. Validation failures come back as a list of human-readable
// messages; an empty list with an empty filename never happens.
func (u *Uploader) Save(file multipart.File, header *multipart.FileHeader) (string, []string) {
	var errs []string

	if header.Size > MaxUploadSize {
		errs = append(errs, "Uploaded image exceeds the 10MB size limit.")
	}

	// Sniff the real content type from the first bytes
	buf := make([]byte, 512)
	n, err := file.Read(buf)
	if err != nil && err != io.EOF {
		return "", append(errs, "Could not read the uploaded file.")
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", append(errs, "Could not read the uploaded file.")
	}

	contentType := http.DetectContentType(buf[:n])
	ext, ok := allowedImageTypes[contentType]
	if !ok {
		errs = append(errs, fmt.Sprintf("File type %q is not allowed. Allowed types: JPEG, PNG, GIF, WebP.", contentType))
	}

	if len(errs) > 0 {
		return "", errs
	}

	if err := os.MkdirAll(u.Dir, 0o755); err != nil {
		return "", []string{"Failed to create image upload directory."}
	}

	name, err := randomFilename(ext)
	if err != nil {
		return "", []string{"Failed to generate a filename for the upload."}
	}

	dst, err := os.Create(filepath.Join(u.Dir, name))
	if err != nil {
		return "", []string{"Image upload directory is not writable."}
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		os.Remove(dst.Name())
		return "", []string{"Failed to write the uploaded file to disk."}
	}

	return name, nil
}

// Remove deletes a stored image by filename. Best effort: the post row is
// the source of truth and is already gone or about to change when this runs.
func (u *Uploader) Remove(filename string) {
	if filename == "" {
		return
	}
	// Never follow a path component out of the upload dir
	clean := filepath.Base(filename)
	path := filepath.Join(u.Dir, clean)
	if _, err := os.Stat(path); err == nil {
		os.Remove(path)
	}
}

func randomFilename(ext string) (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return strings.ToLower(hex.EncodeToString(b)) + ext, nil
}
