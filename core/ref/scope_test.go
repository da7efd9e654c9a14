package ref

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseScope(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Scope
		wantErr bool
	}{
		{
			name:  "empty",
			input: "  ",
			want:  nil,
		},
		{
			name:  "whole book",
			input: "Kejadian",
			want:  Scope{{Book: "Kejadian", BookKey: "kejadian"}},
		},
		{
			name:  "numbered book with chapter",
			input: "1 Yohanes 3",
			want:  Scope{{Book: "1 Yohanes", BookKey: "1 yohanes", Chapter: 3}},
		},
		{
			name:  "multi word book",
			input: "Kisah Para Rasul 2",
			want:  Scope{{Book: "Kisah Para Rasul", BookKey: "kisah para rasul", Chapter: 2}},
		},
		{
			name:  "hyphenated book",
			input: "Hakim-hakim",
			want:  Scope{{Book: "Hakim-hakim", BookKey: "hakim hakim"}},
		},
		{
			name:  "lettered esther chapter",
			input: "Esther A",
			want:  Scope{{Book: "Esther", BookKey: "esther", Chapter: 11}},
		},
		{
			name:  "list",
			input: "Mazmur 119; Esther F, Rut",
			want: Scope{
				{Book: "Mazmur", BookKey: "mazmur", Chapter: 119},
				{Book: "Esther", BookKey: "esther", Chapter: 16},
				{Book: "Rut", BookKey: "rut"},
			},
		},
		{
			name:    "chapter only",
			input:   "3",
			wantErr: true,
		},
		{
			name:    "zero chapter",
			input:   "Rut 0",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseScope(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseScope(%q) expected error, got %v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseScope(%q) unexpected error: %v", tt.input, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseScope(%q) mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}
}

func TestScopeIncludes(t *testing.T) {
	scope, err := ParseScope("Mazmur 23; Rut")
	if err != nil {
		t.Fatal(err)
	}

	if !scope.IncludesBook("MAZMUR") || !scope.IncludesBook("rut") || scope.IncludesBook("Ayub") {
		t.Error("IncludesBook classification wrong")
	}
	if !scope.IncludesChapter("Mazmur", 23) || scope.IncludesChapter("Mazmur", 24) {
		t.Error("chapter selector should match only chapter 23")
	}
	if !scope.IncludesChapter("Rut", 4) {
		t.Error("whole-book selector should match every chapter")
	}

	var all Scope
	if !all.IncludesChapter("Ayub", 1) || !all.IncludesBook("Ayub") {
		t.Error("empty scope should include everything")
	}
	if got := scope.String(); got != "Mazmur 23; Rut" {
		t.Errorf("String() = %q", got)
	}
}
