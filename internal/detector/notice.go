package detector

import (
	"fmt"
	"strings"
)

// Flag is one reportable (class, association) finding.
type Flag struct {
	Kind        Kind   `json:"kind" yaml:"kind"`
	Class       string `json:"class" yaml:"class"`
	Association string `json:"association" yaml:"association"`
	Objects     int    `json:"objects" yaml:"objects"`
}

// Notice groups the flags of one kind raised on one class, the unit a
// notifier reports.
type Notice struct {
	Kind         Kind     `json:"kind" yaml:"kind"`
	Class        string   `json:"class" yaml:"class"`
	Associations []string `json:"associations" yaml:"associations"`
	CallSite     string   `json:"call_site,omitempty" yaml:"call_site,omitempty"`
	UnitOfWork   string   `json:"unit_of_work,omitempty" yaml:"unit_of_work,omitempty"`
}

// Title is the headline shown by notifiers.
func (n Notice) Title() string {
	switch n.Kind {
	case KindUnpreloaded:
		return "N+1 query detected"
	case KindUnusedPreload:
		return "Unused eager loading detected"
	default:
		return "eager loading notice"
	}
}

// Body renders "Class => [Assoc, ...]".
func (n Notice) Body() string {
	return fmt.Sprintf("%s => [%s]", n.Class, strings.Join(n.Associations, ", "))
}

// Key identifies a notice independently of the unit of work it came from.
func (n Notice) Key() string {
	return n.Kind.String() + "|" + n.Body() + "|" + n.CallSite
}

func (n Notice) String() string {
	s := n.Title() + "\n  " + n.Body()
	if n.CallSite != "" {
		s += "\n  Call site: " + n.CallSite
	}
	return s
}
