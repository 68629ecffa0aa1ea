// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package prompt holds the catalog of prompt templates. Each template is a
// YAML file declaring its system prompt, a text/template body, the generation
// settings and the JSON shape the model must answer with. Templates are
// embedded at compile time and parsed once at startup.
package prompt

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"verdant/internal/parse"
)

//go:embed templates/*.yaml
var embedTemplates embed.FS

// Output formats.
const (
	OutputJSON = "json"
	OutputText = "text"
)

// ErrUnknownTemplate is returned when a template name is not in the catalog.
var ErrUnknownTemplate = errors.New("unknown prompt template")

// Template is a single prompt definition.
type Template struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	System      string         `yaml:"system"`
	Body        string         `yaml:"body"`
	Backend     string         `yaml:"backend"`
	Temperature *float64       `yaml:"temperature"`
	MaxTokens   int            `yaml:"max_tokens"`
	Output      string         `yaml:"output"`
	Required    []string       `yaml:"required"`
	Optional    []string       `yaml:"optional"`
	Defaults    map[string]any `yaml:"defaults"`
	Schema      parse.Schema   `yaml:"schema"`

	tmpl *template.Template
}

// JSON reports whether the template expects a JSON answer.
func (t *Template) JSON() bool { return t.Output == OutputJSON }

// Catalog is an immutable set of templates keyed by name.
type Catalog struct {
	templates map[string]*Template
}

// Default loads the templates embedded in the binary.
func Default() (*Catalog, error) {
	return Load(embedTemplates, "templates")
}

// Load parses every *.yaml file in dir. Template names must be unique and
// temperatures must lie in [0, 1].
func Load(fsys fs.FS, dir string) (*Catalog, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("prompt catalog read dir: %w", err)
	}

	c := &Catalog{templates: make(map[string]*Template)}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}

		data, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("prompt catalog read %s: %w", entry.Name(), err)
		}

		t, err := parseTemplate(data)
		if err != nil {
			return nil, fmt.Errorf("prompt catalog %s: %w", entry.Name(), err)
		}
		if _, dup := c.templates[t.Name]; dup {
			return nil, fmt.Errorf("prompt catalog %s: duplicate template %q", entry.Name(), t.Name)
		}
		c.templates[t.Name] = t
	}

	return c, nil
}

func parseTemplate(data []byte) (*Template, error) {
	var t Template
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("yaml: %w", err)
	}

	if t.Name == "" {
		return nil, errors.New("name is required")
	}
	if strings.TrimSpace(t.Body) == "" {
		return nil, fmt.Errorf("template %q has an empty body", t.Name)
	}
	if t.Output == "" {
		t.Output = OutputJSON
	}
	if t.Output != OutputJSON && t.Output != OutputText {
		return nil, fmt.Errorf("template %q: output must be json or text, got %q", t.Name, t.Output)
	}
	if t.Temperature != nil && (*t.Temperature < 0 || *t.Temperature > 1) {
		return nil, fmt.Errorf("template %q: temperature %.2f out of range", t.Name, *t.Temperature)
	}

	tmpl, err := template.New(t.Name).
		Funcs(funcs).
		Option("missingkey=error").
		Parse(t.Body)
	if err != nil {
		return nil, fmt.Errorf("template %q: %w", t.Name, err)
	}
	t.tmpl = tmpl

	return &t, nil
}

// Get returns the named template.
func (c *Catalog) Get(name string) (*Template, error) {
	t, ok := c.templates[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
	}
	return t, nil
}

// Names returns all template names in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.templates))
	for name := range c.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
