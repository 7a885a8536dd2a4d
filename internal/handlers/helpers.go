package handlers

import (
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

func parseUUID(value string) (uuid.UUID, error) {
	return uuid.Parse(strings.TrimSpace(value))
}

// readFormFile drains one multipart file into memory and returns its bytes
// together with a sanitized filename and content type.
func readFormFile(header *multipart.FileHeader) ([]byte, string, string, error) {
	stream, err := header.Open()
	if err != nil {
		return nil, "", "", err
	}
	defer stream.Close()

	data, err := io.ReadAll(stream)
	if err != nil {
		return nil, "", "", err
	}

	filename := filepath.Base(strings.TrimSpace(header.Filename))
	if filename == "" || filename == "." {
		filename = "file"
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return data, filename, contentType, nil
}
