package config

import (
	"bytes"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/FocuswithJustin/biblesync/core/errors"
	"github.com/FocuswithJustin/biblesync/core/textkey"
	"github.com/FocuswithJustin/biblesync/internal/reconcile"
)

// Policy is the parsed --policy file.
//
//	text_sources: [extract, fallback, existing]
//	pericope_sources: [extract, existing]
//	slug_overrides:
//	  Song of Songs: songofsongs
type Policy struct {
	Merge reconcile.Policy `yaml:",inline"`

	// SlugOverrides maps a book name to its source URL slug.
	SlugOverrides map[string]string `yaml:"slug_overrides"`

	slugs map[string]string
}

// DefaultPolicy returns the policy used without a file.
func DefaultPolicy() *Policy {
	p := &Policy{Merge: reconcile.DefaultPolicy()}
	p.index()
	return p
}

// LoadPolicy reads a policy file. An empty path yields DefaultPolicy. Lists
// left out of the file keep their defaults.
func LoadPolicy(path string) (*Policy, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewIO("read", path, err)
	}
	p, err := ParsePolicy(data)
	if err != nil {
		return nil, errors.Wrapf(err, "policy %s", path)
	}
	return p, nil
}

// ParsePolicy decodes policy YAML. Unknown keys are rejected.
func ParsePolicy(data []byte) (*Policy, error) {
	var p Policy
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && err != io.EOF {
		return nil, errors.NewConfig("policy", err.Error())
	}

	p.Merge = p.Merge.WithDefaults()
	if len(p.Merge.Text) == 0 {
		return nil, errors.NewConfig("policy", "text_sources must not be empty")
	}
	if err := p.Merge.Validate(); err != nil {
		return nil, errors.NewConfig("policy", err.Error())
	}
	p.index()
	return &p, nil
}

func (p *Policy) index() {
	p.slugs = make(map[string]string, len(p.SlugOverrides))
	for name, slug := range p.SlugOverrides {
		p.slugs[textkey.NormalizeBookKey(name)] = slug
	}
}

// Slug returns the source URL slug for a book name.
func (p *Policy) Slug(bookName string) string {
	if s, ok := p.slugs[textkey.NormalizeBookKey(bookName)]; ok {
		return s
	}
	return textkey.SlugifyBookName(bookName)
}
