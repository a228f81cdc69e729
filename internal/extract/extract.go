package extract

import (
	"bytes"
	"context"
	"os"
)

// Extractor defines the behavior for unpacking downloaded archives.
type Extractor interface {
	// Extract unpacks the archive at the given path into destDir.
	// Returns the list of extracted file paths, or an error if
	// extraction fails. The archive itself is left in place.
	Extract(ctx context.Context, archivePath string, destDir string) ([]string, error)

	// CanExtract checks if this extractor can handle the given file.
	CanExtract(path string) (bool, error)

	// Returns the human-readable name of this extractor (e.g. "ZIP")
	Name() string
}

// ZIP file signatures (magic bytes)
var zipSignatures = [][]byte{
	{0x50, 0x4B, 0x03, 0x04}, // Standard ZIP
	{0x50, 0x4B, 0x05, 0x06}, // Empty ZIP
	{0x50, 0x4B, 0x07, 0x08}, // Spanned ZIP
}

// hasZipSignature checks if the file has a valid ZIP magic byte signature
func hasZipSignature(path string) (bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer file.Close()

	header := make([]byte, 4)
	n, err := file.Read(header)
	if err != nil || n < 4 {
		return false, nil
	}

	for _, sig := range zipSignatures {
		if bytes.Equal(header[:4], sig) {
			return true, nil
		}
	}
	return false, nil
}
