package ui

import (
	"context"
	"html"
	"io"

	"github.com/a-h/templ"
)

// Layout renders a full HTML page with a title and body component.
func Layout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, "<!DOCTYPE html><html lang=\"en\">")
		if err != nil {
			return err
		}

		// Head
		_, err = io.WriteString(w, "<head><meta charset=\"utf-8\">")
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, "<meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">")
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, "<title>"+html.EscapeString(title)+"</title>")
		if err != nil {
			return err
		}
		// Minimal modern CSS framework (Pico.css) via CDN.
		_, err = io.WriteString(w, "<link rel=\"stylesheet\" href=\"https://unpkg.com/@picocss/pico@2/css/pico.min.css\">")
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, "</head><body><main class=\"container\">")
		if err != nil {
			return err
		}

		if err := body.Render(ctx, w); err != nil {
			return err
		}

		_, err = io.WriteString(w, "</main></body></html>")
		return err
	})
}

// UploadPage renders a form that posts a file to uploadPath. The browser
// prompts for the gateway credentials when the form is submitted.
func UploadPage(title string, uploadPath string) templ.Component {
	return Layout(title, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, "<section><header><h1>"+html.EscapeString(title)+"</h1>")
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, "<p>Upload a file to receive its public URL. Leave the name empty to get a random one.</p></header>")
		if err != nil {
			return err
		}

		form := "<form method=\"post\" action=\"" + html.EscapeString(uploadPath) + "\" enctype=\"multipart/form-data\">"
		_, err = io.WriteString(w, form)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, "<label>File<input type=\"file\" name=\"file\" required></label>")
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, "<label>Name (optional)<input type=\"text\" name=\"name\" placeholder=\"random\"></label>")
		if err != nil {
			return err
		}

		_, err = io.WriteString(w, "<button type=\"submit\">Upload</button></form></section>")
		return err
	}))
}
