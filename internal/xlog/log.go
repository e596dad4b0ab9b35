/*
MIT License

Copyright (c) 2023-2025 The Trzsz SSH Authors.

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

// Package xlog is the ambient debug/warning logger shared by muxclient and
// proxyclient. Debug output is off by default and warnings are on by
// default; embedding applications change either with SetDebug/SetWarning.
package xlog

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

var (
	blackColor  = lipgloss.Color("0")
	yellowColor = lipgloss.Color("3")
)

var (
	debugEnabled   atomic.Bool
	warningEnabled = newEnabledByDefault()
	writeMutex     sync.Mutex
)

func newEnabledByDefault() *atomic.Bool {
	b := &atomic.Bool{}
	b.Store(true)
	return b
}

// SetDebug toggles Debugf output.
func SetDebug(enabled bool) {
	debugEnabled.Store(enabled)
}

// SetWarning toggles Warningf output. Warnings are on by default.
func SetWarning(enabled bool) {
	warningEnabled.Store(enabled)
}

// Debugf writes a cyan-tagged debug line to stderr if debug logging is
// enabled. Any ANSI control sequences already present in the arguments
// (e.g. a relayed remote banner) are stripped so the tag itself stays
// legible.
func Debugf(format string, a ...any) {
	if !debugEnabled.Load() {
		return
	}
	msg := ansi.Strip(fmt.Sprintf(format, a...))
	buf := fmt.Appendf(nil, "\r\033[0;36mdebug:\033[0m %s\033[K\r\n", msg)
	writeMutex.Lock()
	_, _ = os.Stderr.Write(buf)
	writeMutex.Unlock()
}

// Warningf writes a highlighted warning line to stderr if warning logging
// is enabled. It also mirrors to Debugf so a debug log file captures both.
func Warningf(format string, a ...any) {
	if !warningEnabled.Load() {
		return
	}
	msg := "Warning: " + ansi.Strip(fmt.Sprintf(format, a...))
	if debugEnabled.Load() {
		Debugf("%s", msg)
	}
	styled := lipgloss.NewStyle().Foreground(blackColor).Background(yellowColor).Render(msg)
	writeMutex.Lock()
	_, _ = fmt.Fprintf(os.Stderr, "\r%s\033[K\r\n", styled)
	writeMutex.Unlock()
}
