// Package templates holds the HTML components for the web UI.
package templates

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/a-h/templ"
)

// UploadOptions fills the defaults of the upload form.
type UploadOptions struct {
	DefaultRegion string
	Hash          bool
	ZipAvailable  bool
	MaxUploadMB   int64
}

// PreviewColumn is one input column of a header preview.
type PreviewColumn struct {
	Index  int    `json:"index"`
	Header string `json:"header"`
	Field  string `json:"field,omitempty"`
}

// HeaderPreview is the resolved mapping of an uploaded header row.
type HeaderPreview struct {
	Columns     []PreviewColumn `json:"columns"`
	Missing     []string        `json:"missing,omitempty"`
	Warnings    []string        `json:"warnings,omitempty"`
	CanInferZip bool            `json:"can_infer_zip"`
	Error       string          `json:"error,omitempty"`
	Code        string          `json:"code,omitempty"`
}

const pageStyle = `body{font-family:system-ui,sans-serif;max-width:42rem;margin:2rem auto;padding:0 1rem;color:#1f2937}
fieldset{border:1px solid #d1d5db;border-radius:.5rem;padding:1rem;margin-bottom:1rem}
label{display:block;margin:.4rem 0}
.alert{border:1px solid #fca5a5;background:#fef2f2;padding:.75rem;border-radius:.5rem}
.muted{color:#6b7280;font-size:.875rem}
table{border-collapse:collapse;width:100%}td,th{border-bottom:1px solid #e5e7eb;padding:.25rem;text-align:left}`

// UploadPage renders the single-page upload form. The form posts to
// /api/normalize and the browser downloads the CSV response.
func UploadPage(opts UploadOptions) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		region := opts.DefaultRegion
		if region == "" {
			region = "US"
		}

		p := &printer{w: w}
		p.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>Customer Match CSV</title><style>`)
		p.raw(pageStyle)
		p.raw(`</style></head><body><h1>Customer Match CSV</h1>`)
		p.raw(`<p class="muted">Upload a contact list to produce First Name, Last Name, Phone, Email, Country and Zip columns ready for ad-platform matching.</p>`)
		p.raw(`<form method="post" action="/api/normalize" enctype="multipart/form-data">`)
		p.raw(`<fieldset><legend>File</legend><input type="file" name="file" accept=".csv,text/csv" required>`)
		if opts.MaxUploadMB > 0 {
			p.raw(`<p class="muted">Up to `)
			p.text(strconv.FormatInt(opts.MaxUploadMB, 10))
			p.raw(` MB.</p>`)
		}
		p.raw(`</fieldset><fieldset><legend>Options</legend>`)
		p.checkbox("hash", "Hash values with SHA-256", opts.Hash)
		p.checkbox("format_only", "Format only (no hashing)", false)
		if opts.ZipAvailable {
			p.checkbox("infer_zip", "Fill missing zip codes from city and state", false)
		} else {
			p.raw(`<p class="muted">Zip inference is not configured on this server.</p>`)
		}
		p.raw(`<label>Default phone region <input type="text" name="region" maxlength="2" size="3" value="`)
		p.text(region)
		p.raw(`"></label></fieldset><button type="submit">Normalize</button></form></body></html>`)
		return p.err
	})
}

// ErrorAlert renders an error fragment with the user message and support code.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &printer{w: w}
		p.raw(`<div class="alert" role="alert"><strong>`)
		p.text(message)
		p.raw(`</strong>`)
		if action != "" {
			p.raw(`<p>`)
			p.text(action)
			p.raw(`</p>`)
		}
		if code != "" {
			p.raw(`<p class="muted">Code: `)
			p.text(code)
			p.raw(`</p>`)
		}
		p.raw(`</div>`)
		return p.err
	})
}

// HeaderPreviewTable renders a header preview as an HTML fragment.
func HeaderPreviewTable(preview HeaderPreview) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if preview.Error != "" {
			if err := ErrorAlert(preview.Error, "", preview.Code).Render(ctx, w); err != nil {
				return err
			}
		}

		p := &printer{w: w}
		p.raw(`<table><thead><tr><th>#</th><th>Column</th><th>Maps to</th></tr></thead><tbody>`)
		for _, c := range preview.Columns {
			field := c.Field
			if field == "" {
				field = "(dropped)"
			}
			p.raw(`<tr><td>`)
			p.text(strconv.Itoa(c.Index + 1))
			p.raw(`</td><td>`)
			p.text(c.Header)
			p.raw(`</td><td>`)
			p.text(field)
			p.raw(`</td></tr>`)
		}
		p.raw(`</tbody></table>`)
		for _, m := range preview.Warnings {
			p.raw(`<p class="muted">`)
			p.text(m)
			p.raw(`</p>`)
		}
		return p.err
	})
}

// printer stops writing after the first error.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) raw(s string) {
	if p.err != nil {
		return
	}
	_, p.err = io.WriteString(p.w, s)
}

func (p *printer) text(s string) {
	p.raw(templ.EscapeString(s))
}

func (p *printer) checkbox(name, label string, checked bool) {
	p.raw(fmt.Sprintf(`<label><input type="checkbox" name="%s" value="true"`, name))
	if checked {
		p.raw(` checked`)
	}
	p.raw(`> `)
	p.text(label)
	p.raw(`</label>`)
}
