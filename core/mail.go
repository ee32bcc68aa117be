package core

import (
	"bytes"
	htmltmpl "html/template"
	"io/fs"
	"net/mail"
	"path"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"
)

var (
	templates   tmplCache
	templatesMu sync.RWMutex
)

type (
	tmplCacheEntry struct {
		text *texttmpl.Template
		html *htmltmpl.Template
	}
	tmplCache map[string]*tmplCacheEntry // {name: entry}

	EmailMessage struct {
		To      []mail.Address
		Cc      []mail.Address
		Subject string
		BodyStr string // simple text/plain, non-templated content

		// templated contents
		TemplateName string // without ext
		TemplateData interface{}
		TextContent  string
		HTMLContent  string

		frontendBaseURL string
	}

	ContextData struct {
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

// ParseEmailTemplates loads `<name>.txt` and `<name>.gohtml` templates from dir in fsys.
// Files starting with "_" are layouts shared by every template.
func ParseEmailTemplates(fsys fs.FS, dir string, strict bool) error {
	names, err := fs.Glob(fsys, path.Join(dir, "*"))
	if err != nil {
		return errors.Wrap(err, "listing email templates")
	}

	cache := make(tmplCache)
	for _, fp := range names {
		fname := path.Base(fp)
		ext := path.Ext(fname)
		if strings.HasPrefix(fname, "_") || !(ext == ".txt" || ext == ".gohtml") {
			continue
		}
		name := strings.TrimSuffix(fname, ext)
		entry, ok := cache[name]
		if !ok {
			entry = new(tmplCacheEntry)
			cache[name] = entry
		}

		if ext == ".txt" {
			tmpl, err := texttmpl.ParseFS(fsys, path.Join(dir, "_base.txt"), fp)
			if err != nil {
				return errors.Wrapf(err, "parsing %s", fname)
			}
			if strict {
				tmpl = tmpl.Option("missingkey=error")
			}
			entry.text = tmpl
		} else {
			tmpl, err := htmltmpl.ParseFS(fsys, path.Join(dir, "_base.gohtml"), fp)
			if err != nil {
				return errors.Wrapf(err, "parsing %s", fname)
			}
			if strict {
				tmpl = tmpl.Option("missingkey=error")
			}
			entry.html = tmpl
		}
	}

	templatesMu.Lock()
	templates = cache
	templatesMu.Unlock()
	return nil
}

// NewEmailMessage prepares a templated message for one recipient.
func NewEmailMessage(conf *Config, to mail.Address, subject, tmpl string, data interface{}) *EmailMessage {
	return &EmailMessage{
		To:              []mail.Address{to},
		Subject:         subject,
		TemplateName:    tmpl,
		TemplateData:    data,
		frontendBaseURL: conf.FrontendBaseURL,
	}
}

func (m *EmailMessage) getContextData() ContextData {
	return ContextData{
		FrontendBaseURL: m.frontendBaseURL,
		Data:            m.TemplateData,
	}
}

func (m *EmailMessage) getTemplate() (*tmplCacheEntry, bool) {
	templatesMu.RLock()
	defer templatesMu.RUnlock()
	entry, ok := templates[m.TemplateName]
	return entry, ok
}

// Render fills TextContent and HTMLContent.
func (m *EmailMessage) Render() error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
	}
	if m.TemplateName == "" {
		return nil
	}

	entry, ok := m.getTemplate()
	if !ok {
		return errors.Errorf("email template %q not found", m.TemplateName)
	}

	var buff bytes.Buffer
	if entry.text != nil && m.BodyStr == "" {
		if err := entry.text.Execute(&buff, m.getContextData()); err != nil {
			return errors.Wrap(err, "rendering text")
		}
		m.TextContent = buff.String()
	}
	if entry.html != nil {
		buff.Reset()
		if err := entry.html.Execute(&buff, m.getContextData()); err != nil {
			return errors.Wrap(err, "rendering html")
		}
		m.HTMLContent = buff.String()
	}
	return nil
}

func (m *EmailMessage) HasRecipients() bool { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool    { return (m.TextContent != "") || (m.HTMLContent != "") }
