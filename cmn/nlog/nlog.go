// Package nlog provides the structured logger used across every OuroborosFS
// component: each line is written to stderr and, if configured, also to a
// log file, with per-call severity and caller file:line prefixing.
package nlog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

type severity int

const (
	sevInfo severity = iota
	sevWarn
	sevErr
)

var sevChar = [...]byte{sevInfo: 'I', sevWarn: 'W', sevErr: 'E'}

var (
	mu      sync.Mutex
	file    *os.File
	verbose bool
)

// SetLogDir additionally writes subsequent log lines into <dir>/<tag>.log,
// created or appended to; stderr keeps receiving them. Call once at
// startup; if never called, all output goes to stderr only.
func SetLogDir(dir, tag string) error {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(dir, tag+".log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	mu.Lock()
	file = f
	mu.Unlock()
	return nil
}

// SetVerbose toggles emission of Infoln/Infof at the fast path; warnings
// and errors are always emitted.
func SetVerbose(v bool) { verbose = v }

func Flush() {
	mu.Lock()
	defer mu.Unlock()
	if file != nil {
		_ = file.Sync()
	}
}

func Infof(format string, a ...any)  { logf(sevInfo, format, a...) }
func Warnf(format string, a ...any)  { logf(sevWarn, format, a...) }
func Errorf(format string, a ...any) { logf(sevErr, format, a...) }

func Infoln(a ...any)    { logln(sevInfo, a...) }
func Warningln(a ...any) { logln(sevWarn, a...) }
func Errorln(a ...any)   { logln(sevErr, a...) }

func logf(sev severity, format string, a ...any) {
	write(sev, fmt.Sprintf(format, a...))
}

func logln(sev severity, a ...any) {
	write(sev, strings.TrimRight(fmt.Sprintln(a...), "\n"))
}

func write(sev severity, msg string) {
	if sev == sevInfo && !verbose {
		return
	}
	caller := callerInfo(3)
	line := fmt.Sprintf("%c %s %s %s\n", sevChar[sev], time.Now().Format("15:04:05.000000"), caller, msg)

	mu.Lock()
	defer mu.Unlock()
	var dst io.Writer = os.Stderr
	if file != nil {
		dst = io.MultiWriter(os.Stderr, file)
	}
	_, _ = dst.Write([]byte(line))
}

func callerInfo(skip int) string {
	_, fn, ln, ok := runtime.Caller(skip)
	if !ok {
		return "???"
	}
	if idx := strings.LastIndexByte(fn, filepath.Separator); idx >= 0 {
		fn = fn[idx+1:]
	}
	return fn + ":" + strconv.Itoa(ln)
}
