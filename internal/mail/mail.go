// Package mail renders and delivers transactional mail.
package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html"
	"html/template"
	"io/fs"
	"path"
	"sort"
	"strings"

	"golang.org/x/text/language"
)

//go:embed templates/*.html
var templateFS embed.FS

// Template keys.
const (
	TemplateInvite = "invite"
)

// Message is a mail to render from a template and deliver.
type Message struct {
	TemplateKey string
	Language    string
	To          string
	Variables   map[string]any
}

// Dispatcher delivers messages. Send blocks until the mail is handed over;
// a returned error means it was not.
type Dispatcher interface {
	Send(ctx context.Context, msg Message) error
}

// Rendered is a message ready for delivery.
type Rendered struct {
	Subject  string
	HTMLBody string
	Language language.Tag
}

type templateSet struct {
	tags    []language.Tag
	matcher language.Matcher
	byTag   map[language.Tag]*template.Template
}

// Renderer renders the embedded templates. Each template exists in one or
// more languages, named templates/<key>.<bcp47 tag>.html, and defines a
// "subject" and a "body" block. The requested language is matched against
// the available ones; the first tag in sort order is the fallback.
type Renderer struct {
	sets map[string]*templateSet
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	return newRenderer(templateFS, "templates")
}

func newRenderer(fsys fs.FS, dir string) (*Renderer, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read mail templates: %w", err)
	}

	r := &Renderer{sets: make(map[string]*templateSet)}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".html") {
			names = append(names, e.Name())
		}
	}
	// "en" sorts before the other tags we ship, which makes it the fallback.
	sort.Slice(names, func(i, j int) bool {
		return fallbackFirst(names[i]) < fallbackFirst(names[j])
	})

	for _, name := range names {
		key, tagStr, ok := strings.Cut(strings.TrimSuffix(name, ".html"), ".")
		if !ok {
			return nil, fmt.Errorf("mail template %s: name must be <key>.<language>.html", name)
		}
		tag, err := language.Parse(tagStr)
		if err != nil {
			return nil, fmt.Errorf("mail template %s: %w", name, err)
		}
		tmpl, err := template.ParseFS(fsys, path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("parse mail template %s: %w", name, err)
		}
		for _, block := range []string{"subject", "body"} {
			if tmpl.Lookup(block) == nil {
				return nil, fmt.Errorf("mail template %s: missing %q block", name, block)
			}
		}

		set, ok := r.sets[key]
		if !ok {
			set = &templateSet{byTag: make(map[language.Tag]*template.Template)}
			r.sets[key] = set
		}
		set.tags = append(set.tags, tag)
		set.byTag[tag] = tmpl
	}

	for _, set := range r.sets {
		set.matcher = language.NewMatcher(set.tags)
	}
	return r, nil
}

func fallbackFirst(name string) string {
	if strings.Contains(name, ".en.") {
		return "0" + name
	}
	return "1" + name
}

// Languages returns the languages a template is available in.
func (r *Renderer) Languages(key string) []language.Tag {
	set, ok := r.sets[key]
	if !ok {
		return nil
	}
	return append([]language.Tag(nil), set.tags...)
}

// Render renders msg in the best available language.
func (r *Renderer) Render(msg Message) (*Rendered, error) {
	set, ok := r.sets[msg.TemplateKey]
	if !ok {
		return nil, fmt.Errorf("unknown mail template %q", msg.TemplateKey)
	}

	// An unparsable language falls back like an unsupported one.
	requested, _ := language.Parse(msg.Language)
	_, idx, _ := set.matcher.Match(requested)
	tag := set.tags[idx]
	tmpl := set.byTag[tag]

	var subject, body bytes.Buffer
	if err := tmpl.ExecuteTemplate(&subject, "subject", msg.Variables); err != nil {
		return nil, fmt.Errorf("execute %s subject: %w", msg.TemplateKey, err)
	}
	if err := tmpl.ExecuteTemplate(&body, "body", msg.Variables); err != nil {
		return nil, fmt.Errorf("execute %s body: %w", msg.TemplateKey, err)
	}
	return &Rendered{
		Subject:  html.UnescapeString(strings.TrimSpace(subject.String())),
		HTMLBody: body.String(),
		Language: tag,
	}, nil
}
