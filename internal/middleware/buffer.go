package middleware

import (
	"bytes"
	"mime"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/preloadwatch/internal/notify"
)

// bufferedWriter holds the response body until the unit of work has been
// checked, so a footer can still be injected.
type bufferedWriter struct {
	http.ResponseWriter
	buf         bytes.Buffer
	status      int
	wroteHeader bool
}

func newBufferedWriter(w http.ResponseWriter) *bufferedWriter {
	return &bufferedWriter{ResponseWriter: w, status: http.StatusOK}
}

func (w *bufferedWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.status = code
	w.wroteHeader = true
}

func (w *bufferedWriter) Write(b []byte) (int, error) {
	return w.buf.Write(b)
}

func (w *bufferedWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *bufferedWriter) isHTML() bool {
	ct := w.Header().Get(echo.HeaderContentType)
	if ct == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	return err == nil && mediaType == echo.MIMETextHTML
}

// flush writes the held status and body to the wrapped writer, with footer
// injected when it is not empty.
func (w *bufferedWriter) flush(footer string) error {
	body := w.buf.Bytes()
	if footer != "" {
		body = notify.InjectFooter(body, footer)
		w.Header().Set(echo.HeaderContentLength, strconv.Itoa(len(body)))
	}
	w.ResponseWriter.WriteHeader(w.status)
	if len(body) == 0 {
		return nil
	}
	_, err := w.ResponseWriter.Write(body)
	return err
}
