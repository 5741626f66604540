package detector

import (
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

const maxCallSiteDepth = 32

// callSiteSkip lists function prefixes that are plumbing rather than the
// application code responsible for a registration.
var callSiteSkip = []string{
	"github.com/tphakala/preloadwatch/internal/detector.",
	"github.com/tphakala/preloadwatch/internal/gormhook.",
	"gorm.io/",
	"runtime.",
	"reflect.",
}

// captureCallSite returns "dir/file.go:line" of the first frame outside the
// detector and the ORM plumbing, or "" if none is found.
func captureCallSite() string {
	pcs := make([]uintptr, maxCallSiteDepth)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	for {
		frame, more := frames.Next()
		if frame.Function != "" && !skipFrame(frame.Function) {
			return shortFile(frame.File) + ":" + strconv.Itoa(frame.Line)
		}
		if !more {
			return ""
		}
	}
}

func skipFrame(function string) bool {
	for _, prefix := range callSiteSkip {
		if strings.HasPrefix(function, prefix) {
			return true
		}
	}
	return false
}

// shortFile keeps the last directory and the file name.
func shortFile(path string) string {
	dir, file := filepath.Split(path)
	return filepath.Join(filepath.Base(dir), file)
}
