// Package config loads the environment file, selects the store backend and
// reads the merge policy file.
package config

import (
	"context"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/FocuswithJustin/biblesync/core/errors"
	"github.com/FocuswithJustin/biblesync/internal/logging"
	"github.com/FocuswithJustin/biblesync/internal/store"
)

// Environment variable names.
const (
	EnvDatabaseURL    = "BIBLESYNC_DATABASE_URL"
	EnvPublicURL      = "NEXT_PUBLIC_SUPABASE_URL"
	EnvURL            = "SUPABASE_URL"
	EnvServiceKey     = "SUPABASE_SERVICE_ROLE_KEY"
	EnvSchema         = "SUPABASE_DB_SCHEMA"
	EnvPageSize       = "BIBLESYNC_PAGE_SIZE"
	EnvInChunkSize    = "BIBLESYNC_IN_CHUNK"
	EnvWriteChunkSize = "BIBLESYNC_WRITE_CHUNK"

	// EnvPericopeBaseURL is the Markdown mirror used when --base-url is unset.
	EnvPericopeBaseURL = "BIBLESYNC_PERICOPE_BASE_URL"
)

// DefaultEnvFiles are tried in order when no --env-file is given. Earlier
// files win over later ones.
var DefaultEnvFiles = []string{".env.local", ".env"}

// LoadEnvFiles loads variables from path, or from DefaultEnvFiles when path
// is empty. Variables already set in the process environment are never
// overridden. A missing explicit file is a config error; missing default
// files are skipped. It returns the files actually loaded.
func LoadEnvFiles(path string) ([]string, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return nil, errors.NewConfig("env-file", err.Error())
		}
		return []string{path}, nil
	}

	var loaded []string
	for _, f := range DefaultEnvFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return loaded, errors.NewConfig("env-file", err.Error())
		}
		loaded = append(loaded, f)
	}
	return loaded, nil
}

// Getenv looks up a variable. os.Getenv in production, a map in tests.
type Getenv func(string) string

// Store describes how to reach the verse store.
type Store struct {
	// DatabaseURL selects the SQL backend when set.
	DatabaseURL string

	// RESTURL, ServiceKey and Schema select the PostgREST backend.
	RESTURL    string
	ServiceKey string
	Schema     string

	Limits store.Limits
}

// Kind names the selected backend for logs and reports.
func (s Store) Kind() string {
	if s.DatabaseURL != "" {
		return "sql"
	}
	return "rest"
}

// StoreFromEnv reads the store settings. It fails when neither a database
// URL nor a REST URL with a service key is present.
func StoreFromEnv(getenv Getenv) (Store, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	get := func(name string) string { return strings.TrimSpace(getenv(name)) }

	s := Store{
		DatabaseURL: get(EnvDatabaseURL),
		RESTURL:     get(EnvPublicURL),
		ServiceKey:  get(EnvServiceKey),
		Schema:      get(EnvSchema),
	}
	if s.RESTURL == "" {
		s.RESTURL = get(EnvURL)
	}
	if s.Schema == "" {
		s.Schema = "public"
	}

	// Every bad limit is reported, not just the first.
	lim := store.DefaultLimits()
	var errs []error
	for _, v := range []struct {
		name string
		dst  *int
	}{
		{EnvPageSize, &lim.PageSize},
		{EnvInChunkSize, &lim.InChunkSize},
		{EnvWriteChunkSize, &lim.WriteChunkSize},
	} {
		n, err := intVar(getenv, v.name, *v.dst)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		*v.dst = n
	}
	if err := errors.Join(errs...); err != nil {
		return Store{}, err
	}
	s.Limits = lim

	if s.DatabaseURL != "" {
		return s, nil
	}
	switch {
	case s.RESTURL == "" && s.ServiceKey == "":
		return Store{}, errors.NewConfig(EnvDatabaseURL, "no store configured: set "+EnvDatabaseURL+" or "+EnvPublicURL+" and "+EnvServiceKey)
	case s.RESTURL == "":
		return Store{}, errors.NewConfig(EnvPublicURL, "missing store URL")
	case s.ServiceKey == "":
		return Store{}, errors.NewConfig(EnvServiceKey, "missing service credential")
	}
	return s, nil
}

func intVar(getenv Getenv, name string, def int) (int, error) {
	v := strings.TrimSpace(getenv(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, errors.NewConfig(name, "must be a positive integer, got "+strconv.Quote(v))
	}
	return n, nil
}

// Open connects to the configured backend.
func (s Store) Open(ctx context.Context) (store.Backend, error) {
	if s.DatabaseURL != "" {
		logging.DebugContext(ctx, "opening SQL store")
		return store.OpenSQL(ctx, s.DatabaseURL)
	}
	logging.DebugContext(ctx, "opening REST store", "url", s.RESTURL, "schema", s.Schema)
	return store.NewRESTBackend(store.RESTConfig{
		BaseURL:    s.RESTURL,
		ServiceKey: s.ServiceKey,
		Schema:     s.Schema,
	})
}

// OpenRepository opens the backend and wraps it in a repository. The caller
// closes the returned backend.
func (s Store) OpenRepository(ctx context.Context) (*store.Repository, store.Backend, error) {
	b, err := s.Open(ctx)
	if err != nil {
		return nil, nil, err
	}
	return store.NewRepository(b, s.Limits), b, nil
}
