// Package templates resolves a fixed set of named notification templates
// into final message bodies. Context keys absent from the data render as
// text/template's "<no value>" placeholder; execution never fails on a
// missing key.
package templates

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"text/template"
)

// ErrTemplateNotFound is returned for an unknown template name. The
// dispatcher converts it into a FAILED record, it is never propagated raw.
var ErrTemplateNotFound = errors.New("template not found")

// Renderer compiles and renders the named template set.
type Renderer struct {
	mu    sync.RWMutex
	email map[string]*compiledEmail
	sms   map[string]*template.Template
}

type compiledEmail struct {
	text *template.Template
	html *template.Template
}

// NewRenderer compiles the built-in template set. Compilation failures are
// programmer errors and surface at construction.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{
		email: make(map[string]*compiledEmail, len(emailTemplates)),
		sms:   make(map[string]*template.Template, len(smsTemplates)),
	}

	for name, tmpl := range emailTemplates {
		text, err := template.New(name + ".text").Parse(tmpl.text)
		if err != nil {
			return nil, fmt.Errorf("parse email template %s: %w", name, err)
		}
		html, err := template.New(name + ".html").Parse(tmpl.html)
		if err != nil {
			return nil, fmt.Errorf("parse email template %s (html): %w", name, err)
		}
		r.email[name] = &compiledEmail{text: text, html: html}
	}

	for name, raw := range smsTemplates {
		tmpl, err := template.New(name + ".sms").Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse sms template %s: %w", name, err)
		}
		r.sms[name] = tmpl
	}

	return r, nil
}

// Render resolves an email template into its text and HTML bodies.
func (r *Renderer) Render(name string, data map[string]any) (textBody string, htmlBody string, err error) {
	r.mu.RLock()
	tmpl, ok := r.email[name]
	r.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("%w: email template %q", ErrTemplateNotFound, name)
	}

	textBody, err = execute(tmpl.text, data)
	if err != nil {
		return "", "", fmt.Errorf("render template %s: %w", name, err)
	}
	htmlBody, err = execute(tmpl.html, data)
	if err != nil {
		return "", "", fmt.Errorf("render template %s (html): %w", name, err)
	}

	return textBody, htmlBody, nil
}

// RenderSMS resolves an SMS template into a plain-text body.
func (r *Renderer) RenderSMS(name string, data map[string]any) (string, error) {
	r.mu.RLock()
	tmpl, ok := r.sms[name]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: sms template %q", ErrTemplateNotFound, name)
	}

	body, err := execute(tmpl, data)
	if err != nil {
		return "", fmt.Errorf("render sms template %s: %w", name, err)
	}
	return body, nil
}

// HasTemplate reports whether a template exists for the given name on
// either channel.
func (r *Renderer) HasTemplate(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, email := r.email[name]
	_, sms := r.sms[name]
	return email || sms
}

func execute(tmpl *template.Template, data map[string]any) (string, error) {
	if data == nil {
		data = map[string]any{}
	}
	var out strings.Builder
	if err := tmpl.Execute(&out, data); err != nil {
		return "", err
	}
	return out.String(), nil
}
