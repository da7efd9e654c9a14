package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/FocuswithJustin/biblesync/core/errors"
	"github.com/FocuswithJustin/biblesync/internal/reconcile"
	"github.com/FocuswithJustin/biblesync/internal/store"
)

func mapEnv(m map[string]string) Getenv {
	return func(k string) string { return m[k] }
}

func TestStoreFromEnv(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		want    Store
		wantErr string
	}{
		{
			name: "database url",
			env:  map[string]string{EnvDatabaseURL: "sqlite::memory:", EnvServiceKey: "ignored"},
			want: Store{DatabaseURL: "sqlite::memory:", ServiceKey: "ignored", Schema: "public", Limits: store.DefaultLimits()},
		},
		{
			name: "public supabase url",
			env:  map[string]string{EnvPublicURL: "https://x.supabase.co", EnvURL: "https://other", EnvServiceKey: "k"},
			want: Store{RESTURL: "https://x.supabase.co", ServiceKey: "k", Schema: "public", Limits: store.DefaultLimits()},
		},
		{
			name: "plain supabase url and schema",
			env:  map[string]string{EnvURL: "https://x.supabase.co", EnvServiceKey: "k", EnvSchema: "bible"},
			want: Store{RESTURL: "https://x.supabase.co", ServiceKey: "k", Schema: "bible", Limits: store.DefaultLimits()},
		},
		{
			name:    "nothing configured",
			env:     map[string]string{},
			wantErr: EnvDatabaseURL,
		},
		{
			name:    "missing key",
			env:     map[string]string{EnvURL: "https://x.supabase.co"},
			wantErr: EnvServiceKey,
		},
		{
			name:    "missing url",
			env:     map[string]string{EnvServiceKey: "k"},
			wantErr: EnvPublicURL,
		},
		{
			name:    "bad limit",
			env:     map[string]string{EnvDatabaseURL: "sqlite::memory:", EnvPageSize: "lots"},
			wantErr: EnvPageSize,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := StoreFromEnv(mapEnv(tt.env))
			if tt.wantErr != "" {
				var cfgErr *errors.ConfigError
				if !errors.As(err, &cfgErr) {
					t.Fatalf("StoreFromEnv() error = %v, want ConfigError", err)
				}
				if cfgErr.Key != tt.wantErr {
					t.Errorf("ConfigError.Key = %q, want %q", cfgErr.Key, tt.wantErr)
				}
				if !errors.Is(err, errors.ErrConfig) {
					t.Error("error should unwrap to ErrConfig")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("StoreFromEnv() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStoreFromEnvReportsEveryBadLimit(t *testing.T) {
	_, err := StoreFromEnv(mapEnv(map[string]string{
		EnvDatabaseURL:    "sqlite::memory:",
		EnvPageSize:       "lots",
		EnvWriteChunkSize: "-1",
	}))
	if !errors.Is(err, errors.ErrConfig) {
		t.Fatalf("StoreFromEnv() error = %v, want ErrConfig", err)
	}
	for _, name := range []string{EnvPageSize, EnvWriteChunkSize} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error %q does not name %s", err, name)
		}
	}
	if strings.Contains(err.Error(), EnvInChunkSize) {
		t.Errorf("error %q names a valid limit", err)
	}
}

func TestStoreLimitsFromEnv(t *testing.T) {
	got, err := StoreFromEnv(mapEnv(map[string]string{
		EnvDatabaseURL:    "sqlite::memory:",
		EnvPageSize:       "250",
		EnvInChunkSize:    "50",
		EnvWriteChunkSize: "100",
	}))
	if err != nil {
		t.Fatal(err)
	}
	want := store.DefaultLimits()
	want.PageSize, want.InChunkSize, want.WriteChunkSize = 250, 50, 100
	if diff := cmp.Diff(want, got.Limits); diff != "" {
		t.Errorf("limits mismatch (-want +got):\n%s", diff)
	}
	if got.Kind() != "sql" {
		t.Errorf("Kind() = %q", got.Kind())
	}
}

func TestOpenRepositorySQLite(t *testing.T) {
	s := Store{DatabaseURL: "sqlite::memory:", Limits: store.DefaultLimits()}
	repo, b, err := s.OpenRepository(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	books, err := repo.ListAllBooks(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(books) != 0 {
		t.Errorf("fresh store has %d books", len(books))
	}
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	if err := os.WriteFile(".env.local", []byte("BIBLESYNC_TEST_A=local\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(".env", []byte("BIBLESYNC_TEST_A=base\nBIBLESYNC_TEST_B=base\nBIBLESYNC_TEST_C=file\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BIBLESYNC_TEST_C", "process")
	// t.Setenv restores these on cleanup even though godotenv sets them.
	t.Setenv("BIBLESYNC_TEST_A", "")
	os.Unsetenv("BIBLESYNC_TEST_A")
	t.Setenv("BIBLESYNC_TEST_B", "")
	os.Unsetenv("BIBLESYNC_TEST_B")

	loaded, err := LoadEnvFiles("")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{".env.local", ".env"}, loaded); diff != "" {
		t.Errorf("loaded files mismatch (-want +got):\n%s", diff)
	}

	for k, want := range map[string]string{
		"BIBLESYNC_TEST_A": "local",
		"BIBLESYNC_TEST_B": "base",
		"BIBLESYNC_TEST_C": "process",
	} {
		if got := os.Getenv(k); got != want {
			t.Errorf("%s = %q, want %q", k, got, want)
		}
	}

	if _, err := LoadEnvFiles(filepath.Join(dir, "missing.env")); !errors.Is(err, errors.ErrConfig) {
		t.Errorf("explicit missing env file error = %v, want ErrConfig", err)
	}
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		name      string
		yaml      string
		wantMerge reconcile.Policy
		wantErr   bool
	}{
		{
			name:      "empty file keeps defaults",
			yaml:      "",
			wantMerge: reconcile.DefaultPolicy(),
		},
		{
			name: "custom order",
			yaml: "text_sources: [existing, extract]\n",
			wantMerge: reconcile.Policy{
				Text:     []reconcile.TextSource{reconcile.SourceExisting, reconcile.SourceExtract},
				Pericope: reconcile.DefaultPolicy().Pericope,
			},
		},
		{name: "unknown source", yaml: "text_sources: [ocr]\n", wantErr: true},
		{name: "duplicate source", yaml: "pericope_sources: [extract, extract]\n", wantErr: true},
		{name: "empty text list", yaml: "text_sources: []\n", wantErr: true},
		{name: "unknown key", yaml: "text_source: [extract]\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParsePolicy([]byte(tt.yaml))
			if tt.wantErr {
				if !errors.Is(err, errors.ErrConfig) {
					t.Fatalf("ParsePolicy() error = %v, want ErrConfig", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.wantMerge, p.Merge, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("merge policy mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPolicySlug(t *testing.T) {
	p, err := ParsePolicy([]byte("slug_overrides:\n  Song of Songs: songofsongs\n  1 Kings: 1kings\n"))
	if err != nil {
		t.Fatal(err)
	}
	tests := map[string]string{
		"Song of Songs": "songofsongs",
		"SONG OF SONGS": "songofsongs",
		"1 Kings":       "1kings",
		"Genesis":       "genesis",
		"2 Samuel":      "2samuel",
	}
	for name, want := range tests {
		if got := p.Slug(name); got != want {
			t.Errorf("Slug(%q) = %q, want %q", name, got, want)
		}
	}

	if got := DefaultPolicy().Slug("Genesis"); got != "genesis" {
		t.Errorf("default Slug() = %q", got)
	}
}

func TestLoadPolicyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte("pericope_sources: [existing]\n"), 0644); err != nil {
		t.Fatal(err)
	}
	p, err := LoadPolicy(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]reconcile.TextSource{reconcile.SourceExisting}, p.Merge.Pericope); diff != "" {
		t.Errorf("pericope sources mismatch (-want +got):\n%s", diff)
	}

	if _, err := LoadPolicy(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("LoadPolicy() of missing file should fail")
	}
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent to testing.T.Chdir from Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
