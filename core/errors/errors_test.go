package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestNotFoundError(t *testing.T) {
	tests := []struct {
		name     string
		err      *NotFoundError
		wantMsg  string
		wantBase error
	}{
		{
			name:     "with ID",
			err:      &NotFoundError{Resource: "workspace", ID: "id/TB2"},
			wantMsg:  "workspace not found: id/TB2",
			wantBase: ErrNotFound,
		},
		{
			name:     "without ID",
			err:      &NotFoundError{Resource: "chapter"},
			wantMsg:  "chapter not found",
			wantBase: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if got := tt.err.Unwrap(); !errors.Is(got, tt.wantBase) {
				t.Errorf("Unwrap() = %v, want %v", got, tt.wantBase)
			}
		})
	}

	t.Run("with underlying error", func(t *testing.T) {
		underlyingErr := fmt.Errorf("disk error")
		err := &NotFoundError{Resource: "file", ID: "tb2.json", Err: underlyingErr}
		if got := err.Unwrap(); got != underlyingErr {
			t.Errorf("Unwrap() = %v, want %v", got, underlyingErr)
		}
	})
}

func TestValidationError(t *testing.T) {
	tests := []struct {
		name    string
		err     *ValidationError
		wantMsg string
	}{
		{
			name:    "with field",
			err:     &ValidationError{Field: "version", Message: "must not be empty"},
			wantMsg: "validation failed for version: must not be empty",
		},
		{
			name:    "without field",
			err:     &ValidationError{Message: "invalid format"},
			wantMsg: "validation failed: invalid format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if !errors.Is(tt.err, ErrInvalidInput) {
				t.Errorf("errors.Is(%v, ErrInvalidInput) = false", tt.err)
			}
		})
	}
}

func TestConfigError(t *testing.T) {
	err := NewConfig("SUPABASE_SERVICE_ROLE_KEY", "missing")
	if got, want := err.Error(), "config SUPABASE_SERVICE_ROLE_KEY: missing"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(Wrap(err, "startup"), ErrConfig) {
		t.Error("wrapped ConfigError should match ErrConfig")
	}
}

func TestParseError(t *testing.T) {
	tests := []struct {
		name    string
		err     *ParseError
		wantMsg string
	}{
		{
			name:    "with path and line",
			err:     &ParseError{Format: "CSV", Path: "tb2.csv", Line: 12, Message: "bad verse"},
			wantMsg: "failed to parse CSV at tb2.csv:12: bad verse",
		},
		{
			name:    "with path only",
			err:     &ParseError{Format: "JSON", Path: "extract.json", Message: "unexpected EOF"},
			wantMsg: "failed to parse JSON at extract.json: unexpected EOF",
		},
		{
			name:    "bare",
			err:     &ParseError{Format: "markdown", Message: "empty"},
			wantMsg: "failed to parse markdown: empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if !errors.Is(tt.err, ErrInvalidInput) {
				t.Error("ParseError should unwrap to ErrInvalidInput")
			}
		})
	}

	t.Run("keeps cause", func(t *testing.T) {
		cause := fmt.Errorf("unexpected EOF")
		err := &ParseError{Format: "JSON", Message: "truncated", Err: cause}
		if !errors.Is(err, cause) || !errors.Is(err, ErrInvalidInput) {
			t.Error("ParseError should unwrap to both its cause and ErrInvalidInput")
		}
	})
}

func TestFetchError(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := &FetchError{URL: "https://example.org/genesis/1.md", Attempts: 5, Err: cause}

	if !errors.Is(err, ErrFetch) {
		t.Error("FetchError should match ErrFetch")
	}
	if !errors.Is(err, cause) {
		t.Error("FetchError should match its cause")
	}
	want := "fetch https://example.org/genesis/1.md failed after 5 attempt(s): connection reset"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestStoreError(t *testing.T) {
	tests := []struct {
		name    string
		err     *StoreError
		wantMsg string
	}{
		{
			name:    "http status",
			err:     &StoreError{Operation: "UPSERT", Table: "bible_verses", StatusCode: 409, Body: "conflict"},
			wantMsg: "UPSERT bible_verses failed: 409 conflict",
		},
		{
			name:    "driver error",
			err:     &StoreError{Operation: "DELETE", Table: "bible_books", Err: fmt.Errorf("locked")},
			wantMsg: "DELETE bible_books failed: locked",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if !errors.Is(tt.err, ErrStore) {
				t.Error("StoreError should match ErrStore")
			}
		})
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "context") != nil {
		t.Error("Wrap(nil) should return nil")
	}
	base := errors.New("base")
	wrapped := Wrapf(base, "chapter %d", 3)
	if wrapped.Error() != "chapter 3: base" {
		t.Errorf("Wrapf() = %q", wrapped.Error())
	}
	if !Is(wrapped, base) {
		t.Error("wrapped error should match base")
	}
	var ioErr *IOError
	if As(wrapped, &ioErr) {
		t.Error("As should not match unrelated type")
	}
}
