// Package validation checks user-supplied paths, codes and input files before
// a sync run touches the store.
package validation

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

// Resource limits for input files.
const (
	// MaxFileSize is the maximum allowed input file size (256 MB).
	MaxFileSize = 256 << 20
	// MaxPathLength is the maximum allowed path length.
	MaxPathLength = 4096
)

// Common validation errors.
var (
	ErrEmptyPath        = errors.New("path cannot be empty")
	ErrPathTooLong      = errors.New("path too long")
	ErrInvalidCharacter = errors.New("invalid character in path")
	ErrFileTooLarge     = errors.New("file too large")
	ErrNotRegularFile   = errors.New("not a regular file")
	ErrInvalidCode      = errors.New("invalid code")
	ErrInvalidURL       = errors.New("invalid URL")
)

// codePattern matches language and version codes (id, TB2, en-US).
var codePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,15}$`)

// ValidatePath checks for dangerous patterns, length limits, and invalid characters.
func ValidatePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}

	if len(path) > MaxPathLength {
		return ErrPathTooLong
	}

	if strings.Contains(path, "\x00") {
		return fmt.Errorf("%w: null byte not allowed", ErrInvalidCharacter)
	}

	for _, r := range path {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidCharacter)
		}
	}

	return nil
}

// ValidateReportPath checks a report destination: a valid path ending in .json.
func ValidateReportPath(path string) error {
	if err := ValidatePath(path); err != nil {
		return err
	}
	if !strings.EqualFold(filepath.Ext(path), ".json") {
		return fmt.Errorf("report path %q must end in .json", path)
	}
	return nil
}

// ValidateCode checks a language or version code.
func ValidateCode(field, code string) error {
	if !codePattern.MatchString(code) {
		return fmt.Errorf("%w: %s %q", ErrInvalidCode, field, code)
	}
	return nil
}

// ValidateBaseURL checks that raw is an absolute http(s) URL.
func ValidateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme in %q", ErrInvalidURL, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host in %q", ErrInvalidURL, raw)
	}
	return nil
}

// FileType represents a validated input file type.
type FileType string

const (
	FileTypeCSV      FileType = "csv"
	FileTypeJSON     FileType = "json"
	FileTypeMarkdown FileType = "markdown"
	FileTypeText     FileType = "text"

	// Types detected from content that are never valid inputs.
	FileTypePDF    FileType = "pdf"
	FileTypeZip    FileType = "zip"
	FileTypeGzip   FileType = "gzip"
	FileTypeXZ     FileType = "xz"
	FileTypeSQLite FileType = "sqlite"

	FileTypeUnknown FileType = "unknown"
)

// magicBytes defines magic byte signatures for file type detection.
var magicBytes = []struct {
	fileType FileType
	magic    []byte
}{
	{FileTypePDF, []byte("%PDF-")},
	{FileTypeGzip, []byte{0x1f, 0x8b}},
	{FileTypeXZ, []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}},
	{FileTypeZip, []byte{0x50, 0x4b, 0x03, 0x04}},
	{FileTypeSQLite, []byte("SQLite format 3")},
}

// ValidateFileType checks that content matches the type implied by filename.
// Inputs are text formats, so any binary signature is a mismatch.
func ValidateFileType(reader io.Reader, filename string) (FileType, error) {
	buf := make([]byte, 512)
	n, err := io.ReadFull(reader, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return FileTypeUnknown, fmt.Errorf("failed to read file header: %w", err)
	}
	buf = buf[:n]

	expected := detectFileTypeFromExtension(filename)
	detected := detectFileTypeFromMagic(buf)

	if detected == FileTypePDF {
		return detected, fmt.Errorf("%s is a PDF; extract it to JSON first", filename)
	}
	if detected != FileTypeUnknown {
		return detected, fmt.Errorf("file type mismatch: extension suggests %s but content is %s", expected, detected)
	}
	if len(buf) > 0 && !isLikelyText(buf) {
		return FileTypeUnknown, fmt.Errorf("%s does not look like a text file", filename)
	}
	if expected == FileTypeJSON {
		trimmed := bytes.TrimLeft(bytes.TrimPrefix(buf, []byte("\xef\xbb\xbf")), " \t\r\n")
		if len(trimmed) > 0 && trimmed[0] != '{' && trimmed[0] != '[' {
			return FileTypeUnknown, fmt.Errorf("%s does not start with a JSON object", filename)
		}
	}
	return expected, nil
}

// RequireInputFile checks that path names a readable regular text file of one
// of the wanted types. It is the fatal-startup check for --csv and --extract.
func RequireInputFile(path string, want ...FileType) (FileType, error) {
	if err := ValidatePath(path); err != nil {
		return FileTypeUnknown, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return FileTypeUnknown, fmt.Errorf("input file %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return FileTypeUnknown, fmt.Errorf("%w: %s", ErrNotRegularFile, path)
	}
	if info.Size() > MaxFileSize {
		return FileTypeUnknown, fmt.Errorf("%w: %s is %d bytes", ErrFileTooLarge, path, info.Size())
	}

	f, err := os.Open(path)
	if err != nil {
		return FileTypeUnknown, fmt.Errorf("input file %s: %w", path, err)
	}
	defer f.Close()

	ft, err := ValidateFileType(f, path)
	if err != nil {
		return ft, err
	}
	if len(want) == 0 {
		return ft, nil
	}
	for _, w := range want {
		if ft == w {
			return ft, nil
		}
	}
	return ft, fmt.Errorf("input file %s: expected %v, got %s", path, want, ft)
}

// detectFileTypeFromMagic detects file type from magic bytes.
func detectFileTypeFromMagic(buf []byte) FileType {
	for _, sig := range magicBytes {
		if bytes.HasPrefix(buf, sig.magic) {
			return sig.fileType
		}
	}
	return FileTypeUnknown
}

// detectFileTypeFromExtension determines expected file type from filename extension.
func detectFileTypeFromExtension(filename string) FileType {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".tsv":
		return FileTypeCSV
	case ".json":
		return FileTypeJSON
	case ".md", ".markdown":
		return FileTypeMarkdown
	case ".txt":
		return FileTypeText
	default:
		return FileTypeUnknown
	}
}

// isLikelyText checks if the buffer contains likely text content.
func isLikelyText(buf []byte) bool {
	if len(buf) == 0 {
		return false
	}

	// Null bytes are a strong indicator of binary content.
	if bytes.IndexByte(buf, 0) != -1 {
		return false
	}

	printable := 0
	control := 0
	for _, b := range buf {
		if b >= 0x20 && b <= 0x7e || b == '\t' || b == '\n' || b == '\r' {
			printable++
		} else if b < 0x20 {
			control++
		}
		// UTF-8 continuation and start bytes (>= 0x80) are neutral
	}

	return printable > 0 && float64(printable)/float64(printable+control) > 0.95
}
