package extract

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ZipExtractor unpacks ZIP archives in-process.
type ZipExtractor struct{}

func NewZipExtractor() *ZipExtractor {
	return &ZipExtractor{}
}

// Name returns the extractor name
func (z *ZipExtractor) Name() string {
	return "ZIP"
}

// CanExtract checks extension and magic bytes, so a file that merely
// ends in .zip but holds something else is rejected up front.
func (z *ZipExtractor) CanExtract(path string) (bool, error) {
	if !strings.HasSuffix(strings.ToLower(filepath.Base(path)), ".zip") {
		return false, nil
	}

	ok, err := hasZipSignature(path)
	if err != nil {
		return false, fmt.Errorf("failed to verify ZIP signature: %w", err)
	}
	return ok, nil
}

// Extract unpacks the archive into destDir. Entry paths are confined to
// destDir; an entry that would escape it fails the whole extraction.
func (z *ZipExtractor) Extract(ctx context.Context, archivePath string, destDir string) ([]string, error) {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", archivePath, err)
	}
	defer reader.Close()

	var finalPaths []string

	for _, entry := range reader.File {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		target, err := safeJoin(destDir, entry.Name)
		if err != nil {
			return nil, err
		}

		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return nil, fmt.Errorf("create directory %s: %w", target, err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return nil, fmt.Errorf("create directory for %s: %w", target, err)
		}

		if err := writeEntry(entry, target); err != nil {
			return nil, err
		}

		finalPaths = append(finalPaths, target)
	}

	return finalPaths, nil
}

func writeEntry(entry *zip.File, target string) error {
	in, err := entry.Open()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", entry.Name, err)
	}
	defer in.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, entry.Mode())
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("write %s: %w", target, err)
	}

	return out.Close()
}

// safeJoin resolves an archive entry name under destDir and rejects
// entries that would escape it.
func safeJoin(destDir, name string) (string, error) {
	target := filepath.Join(destDir, filepath.Clean(name))

	rel, err := filepath.Rel(destDir, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("archive entry %q escapes destination directory", name)
	}

	return target, nil
}
