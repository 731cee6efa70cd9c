package endpoint

import "net/http"

// StringRenderer writes Body with an optional status code and content type.
//
// Status defaults to 200 and ContentType to "text/plain; charset=utf-8".
type StringRenderer struct {
	Status      int
	Body        string
	ContentType string
}

// Render implements Renderer for StringRenderer.
func (sr *StringRenderer) Render(w http.ResponseWriter, _ *http.Request) error {
	contentType := sr.ContentType
	if contentType == "" {
		contentType = "text/plain; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	status := sr.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if sr.Body == "" {
		return nil
	}
	_, err := w.Write([]byte(sr.Body))
	return err
}

// PlainRenderer writes a plain-text response.
type PlainRenderer struct {
	StringRenderer
}

// Render implements Renderer for PlainRenderer.
func (pr *PlainRenderer) Render(w http.ResponseWriter, r *http.Request) error {
	pr.StringRenderer.ContentType = "text/plain; charset=utf-8"
	return pr.StringRenderer.Render(w, r)
}

// HTMLRenderer writes an HTML response.
type HTMLRenderer struct {
	StringRenderer
}

// Render implements Renderer for HTMLRenderer.
func (hr *HTMLRenderer) Render(w http.ResponseWriter, r *http.Request) error {
	hr.StringRenderer.ContentType = "text/html; charset=utf-8"
	return hr.StringRenderer.Render(w, r)
}

// Then returns a Renderer that runs r and afterwards calls fn, regardless of
// whether rendering succeeded.
func Then(r Renderer, fn func()) Renderer {
	return RendererFunc(func(w http.ResponseWriter, req *http.Request) error {
		defer fn()
		return r.Render(w, req)
	})
}
