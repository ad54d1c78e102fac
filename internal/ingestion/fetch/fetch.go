package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/mentorium/backend/internal/clients/gdrive"
	"github.com/mentorium/backend/internal/platform/logger"
)

// LocalFile is a downloaded resource staged on disk. Callers must invoke
// Cleanup once the pipeline is done with it, success or not.
type LocalFile struct {
	Path string
	Name string
	Hash string
}

func (f *LocalFile) Cleanup() {
	if f == nil || f.Path == "" {
		return
	}
	_ = os.Remove(f.Path)
}

type Fetcher struct {
	log         *logger.Logger
	drive       gdrive.Client
	downloadDir string
}

func NewFetcher(log *logger.Logger, drive gdrive.Client, downloadDir string) (*Fetcher, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if drive == nil {
		return nil, fmt.Errorf("drive client required")
	}
	if strings.TrimSpace(downloadDir) == "" {
		downloadDir = os.TempDir()
	}
	if err := os.MkdirAll(downloadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create download dir: %w", err)
	}
	return &Fetcher{
		log:         log.With("component", "Fetcher"),
		drive:       drive,
		downloadDir: downloadDir,
	}, nil
}

// Fetch downloads the Drive file under the sanitized title and fingerprints
// its bytes. The same logical title always maps to the same storage key.
func (f *Fetcher) Fetch(ctx context.Context, title, driveID string) (*LocalFile, error) {
	name := SanitizeFilename(title)
	if name == "" {
		return nil, fmt.Errorf("resource title is empty after sanitization")
	}
	path := filepath.Join(f.downloadDir, name)

	if err := f.drive.Download(ctx, driveID, path); err != nil {
		return nil, err
	}

	hash, err := HashFile(path)
	if err != nil {
		_ = os.Remove(path)
		return nil, err
	}

	f.log.Info("Resource fetched", "file", name, "file_hash", hash)
	return &LocalFile{Path: path, Name: name, Hash: hash}, nil
}

// HashFile computes the SHA-256 digest of the file in fixed-size blocks so
// large decks never need to fit in memory.
func HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open for hashing: %w", err)
	}
	defer file.Close()

	h := sha256.New()
	buf := make([]byte, 4096)
	if _, err := io.CopyBuffer(h, file, buf); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// SanitizeFilename drops diacritics and replaces whitespace runs with "_",
// e.g. "Guía de Cálculo.pdf" -> "Guia_de_Calculo.pdf".
func SanitizeFilename(name string) string {
	out, _, err := transform.String(stripMarks, name)
	if err != nil {
		out = name
	}
	return strings.Join(strings.Fields(out), "_")
}
