package output

import (
	"fmt"
	"io"
	"os"
	"time"
)

// IsCI reports whether we are running inside a CI job.
func IsCI() bool {
	return os.Getenv("CI") == "true"
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// UseColor returns true if colored output should be used on f.
// Respects NO_COLOR env, TERM=dumb, and terminal detection.
func UseColor(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return isTerminal(f) || IsCI()
}

// IsGitLabCI reports whether we are running inside a GitLab CI job.
func IsGitLabCI() bool {
	return os.Getenv("GITLAB_CI") == "true"
}

// GitLab collapsible section helpers.

// SectionStart opens a collapsed GitLab log section. No-op outside GitLab CI.
func SectionStart(w io.Writer, id, name string) {
	if !IsGitLabCI() {
		return
	}
	fmt.Fprintf(w, "\033[0Ksection_start:%d:%s[collapsed=true]\r\033[0K%s\n", time.Now().Unix(), id, name)
}

// SectionEnd closes a GitLab log section. No-op outside GitLab CI.
func SectionEnd(w io.Writer, id string) {
	if !IsGitLabCI() {
		return
	}
	fmt.Fprintf(w, "\033[0Ksection_end:%d:%s\r\033[0K\n", time.Now().Unix(), id)
}
