package notify

import (
	"bytes"
	"html"
	"strings"

	"github.com/k3a/html2text"
)

// FooterID is the id of the injected footer element.
const FooterID = "preloadwatch-footer"

var closingBody = []byte("</body>")

// RenderHTML renders the report as a self-contained footer block.
func RenderHTML(r Report) string {
	var sb strings.Builder
	sb.WriteString(`<div id="` + FooterID + `" style="position:fixed;bottom:0;left:0;right:0;` +
		`max-height:30%;overflow:auto;background:#fdf6e3;border-top:2px solid #cb4b16;` +
		`font:12px monospace;padding:8px;z-index:9999">`)
	sb.WriteString("<p><strong>" + html.EscapeString(r.Summary()) + "</strong></p><ul>")
	for _, n := range r.Notices {
		sb.WriteString("<li><strong>" + html.EscapeString(n.Title()) + "</strong><br>")
		sb.WriteString(html.EscapeString(n.Body()))
		if n.CallSite != "" {
			sb.WriteString("<br><code>" + html.EscapeString(n.CallSite) + "</code>")
		}
		sb.WriteString("</li>")
	}
	sb.WriteString("</ul></div>")
	return sb.String()
}

// PlainText is RenderHTML converted to plain text, used as the message body
// for chat and push services.
func PlainText(r Report) string {
	return html2text.HTML2Text(RenderHTML(r))
}

// InjectFooter inserts footer before the last closing body tag, or appends
// it when the page has none.
func InjectFooter(page []byte, footer string) []byte {
	idx := lastIndexFold(page, closingBody)
	if idx < 0 {
		return append(page, footer...)
	}
	out := make([]byte, 0, len(page)+len(footer))
	out = append(out, page[:idx]...)
	out = append(out, footer...)
	return append(out, page[idx:]...)
}

// lastIndexFold is bytes.LastIndex with ASCII case folding. It compares the
// original bytes, so offsets stay valid for pages that are not UTF-8.
func lastIndexFold(s, sep []byte) int {
	for i := len(s) - len(sep); i >= 0; i-- {
		if bytes.EqualFold(s[i:i+len(sep)], sep) {
			return i
		}
	}
	return -1
}
