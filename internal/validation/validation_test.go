package validation

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr error
	}{
		{name: "ok", path: "docs/import/report.json"},
		{name: "empty", path: "", wantErr: ErrEmptyPath},
		{name: "too long", path: strings.Repeat("a", MaxPathLength+1), wantErr: ErrPathTooLong},
		{name: "null byte", path: "a\x00b", wantErr: ErrInvalidCharacter},
		{name: "control", path: "a\nb", wantErr: ErrInvalidCharacter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.path)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidatePath(%q) = %v", tt.path, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidatePath(%q) = %v, want %v", tt.path, err, tt.wantErr)
			}
		})
	}
}

func TestValidateReportPath(t *testing.T) {
	if err := ValidateReportPath("docs/import/x_report.json"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateReportPath("docs/import/x_report.txt"); err == nil {
		t.Error("expected error for non-json report path")
	}
}

func TestValidateCode(t *testing.T) {
	for _, ok := range []string{"id", "TB2", "EN1", "en-US", "tb_2"} {
		if err := ValidateCode("version", ok); err != nil {
			t.Errorf("ValidateCode(%q) = %v", ok, err)
		}
	}
	for _, bad := range []string{"", "id/TB2", "-x", "a b", strings.Repeat("x", 17)} {
		if err := ValidateCode("version", bad); !errors.Is(err, ErrInvalidCode) {
			t.Errorf("ValidateCode(%q) = %v, want ErrInvalidCode", bad, err)
		}
	}
}

func TestValidateBaseURL(t *testing.T) {
	tests := []struct {
		raw     string
		wantErr bool
	}{
		{raw: "https://example.org/bible"},
		{raw: "http://localhost:8080"},
		{raw: "ftp://example.org", wantErr: true},
		{raw: "example.org/bible", wantErr: true},
		{raw: "https://", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			err := ValidateBaseURL(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateBaseURL(%q) = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
		})
	}
}

func TestValidateFileType(t *testing.T) {
	tests := []struct {
		name     string
		content  []byte
		filename string
		want     FileType
		wantErr  bool
	}{
		{name: "csv", content: []byte("book_name,chapter,verse,text\nKejadian,1,1,Pada mulanya\n"), filename: "tb2.csv", want: FileTypeCSV},
		{name: "json object", content: []byte(`{"books":{}}`), filename: "extract.json", want: FileTypeJSON},
		{name: "json with bom", content: []byte("\xef\xbb\xbf\n{\"books\":{}}"), filename: "extract.json", want: FileTypeJSON},
		{name: "json not object", content: []byte("book_name,chapter"), filename: "extract.json", wantErr: true},
		{name: "pdf", content: []byte("%PDF-1.7\n..."), filename: "tb2.json", want: FileTypePDF, wantErr: true},
		{name: "zip", content: []byte{0x50, 0x4b, 0x03, 0x04, 0, 0}, filename: "tb2.csv", want: FileTypeZip, wantErr: true},
		{name: "binary", content: []byte{0x01, 0x02, 0x00, 0x03}, filename: "tb2.csv", wantErr: true},
		{name: "utf8 text", content: []byte("kitab,pasal\nKejadian,1 \xe2\x80\x94 ok"), filename: "tb2.csv", want: FileTypeCSV},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateFileType(bytes.NewReader(tt.content), tt.filename)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateFileType() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.want != "" && got != tt.want {
				t.Errorf("ValidateFileType() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRequireInputFile(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "tb2.csv")
	if err := os.WriteFile(csvPath, []byte("book_name,chapter,verse,text\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if ft, err := RequireInputFile(csvPath, FileTypeCSV); err != nil || ft != FileTypeCSV {
		t.Errorf("RequireInputFile(csv) = %s, %v", ft, err)
	}
	if _, err := RequireInputFile(csvPath, FileTypeJSON); err == nil {
		t.Error("expected type mismatch error")
	}
	if _, err := RequireInputFile(filepath.Join(dir, "missing.csv")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file error = %v, want ErrNotExist", err)
	}
	if _, err := RequireInputFile(dir); !errors.Is(err, ErrNotRegularFile) {
		t.Errorf("directory error = %v, want ErrNotRegularFile", err)
	}
}
