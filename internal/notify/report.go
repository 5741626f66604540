package notify

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tphakala/preloadwatch/internal/detector"
	"github.com/tphakala/preloadwatch/internal/errors"
)

// Output formats understood by Report.Render.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Report is what one unit of work produced.
type Report struct {
	UnitOfWork string            `json:"unit_of_work" yaml:"unit_of_work"`
	Source     string            `json:"source,omitempty" yaml:"source,omitempty"` // e.g. "GET /posts"
	Time       time.Time         `json:"time" yaml:"time"`
	Notices    []detector.Notice `json:"notices" yaml:"notices"`
	Stats      detector.Stats    `json:"stats" yaml:"stats"`
}

// NewReport collects the notices of a checkpointed detector.
func NewReport(d *detector.Detector, source string) Report {
	return Report{
		UnitOfWork: d.ID(),
		Source:     source,
		Time:       time.Now(),
		Notices:    d.Notices(),
		Stats:      d.Stats(),
	}
}

// Empty reports whether there is nothing to deliver.
func (r Report) Empty() bool { return len(r.Notices) == 0 }

// Summary is a one-line headline for the report.
func (r Report) Summary() string {
	noun := "notices"
	if len(r.Notices) == 1 {
		noun = "notice"
	}
	s := fmt.Sprintf("preloadwatch: %d %s", len(r.Notices), noun)
	if r.Source != "" {
		s += " in " + r.Source
	}
	return s
}

// Text renders the report the way it is written to consoles and logs.
func (r Report) Text() string {
	var sb strings.Builder
	sb.WriteString(r.Summary())
	if r.UnitOfWork != "" {
		sb.WriteString(" (" + r.UnitOfWork + ")")
	}
	sb.WriteByte('\n')
	for _, n := range r.Notices {
		sb.WriteString(n.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Render writes the report in format.
func (r Report) Render(w io.Writer, format string) error {
	var err error
	switch format {
	case FormatText, "":
		_, err = io.WriteString(w, r.Text())
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		err = enc.Encode(r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		err = enc.Encode(r)
		if err == nil {
			err = enc.Close()
		}
	default:
		return errors.Newf("unknown report format %q", format).
			Category(errors.CategoryValidation).
			Context("format", format).
			Build()
	}
	if err != nil {
		return errors.New(err).
			Category(errors.CategoryFileIO).
			Context("format", format).
			Build()
	}
	return nil
}
