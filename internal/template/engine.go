package template

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	texttemplate "text/template"

	"github.com/Masterminds/sprig/v3"
)

// Engine renders named chat message templates.
//
// Templates use text/template syntax with the sprig function library.
// Rendering fails when a template references a key missing from the
// context, so a typo in a message never reaches a chat as "<no value>".
type Engine struct {
	root *texttemplate.Template
}

// New parses every template in sources, keyed by name.
func New(sources map[string]string) (*Engine, error) {
	root := texttemplate.New("").
		Funcs(sprig.TxtFuncMap()).
		Option("missingkey=error")

	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if _, err := root.New(name).Parse(sources[name]); err != nil {
			return nil, fmt.Errorf("parse template %q: %w", name, err)
		}
	}
	return &Engine{root: root}, nil
}

// Must is like New but panics on error. It is meant for built-in templates.
func Must(e *Engine, err error) *Engine {
	if err != nil {
		panic(err)
	}
	return e
}

// Has reports whether a template named name exists.
func (e *Engine) Has(name string) bool {
	return e.root.Lookup(name) != nil
}

// Render executes the named template with context.
func (e *Engine) Render(name string, context map[string]interface{}) (string, error) {
	t := e.root.Lookup(name)
	if t == nil {
		return "", fmt.Errorf("unknown template %q", name)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, context); err != nil {
		return "", fmt.Errorf("render template %q: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// Names returns the defined template names in sorted order.
func (e *Engine) Names() []string {
	var names []string
	for _, t := range e.root.Templates() {
		if t.Name() != "" {
			names = append(names, t.Name())
		}
	}
	sort.Strings(names)
	return names
}
