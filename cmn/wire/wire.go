// Package wire implements the line-based header codec shared by the
// dispatcher and every ring protocol's outbound hop: read exactly one
// \n-terminated header line, then — for commands that declare one — read
// or write exactly the declared number of raw payload bytes without ever
// re-parsing those bytes as a further command (spec §4.1, §9).
package wire

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

const MaxHeaderLen = 8192

// ReadHeader reads one \n-terminated line and returns it with trailing
// \r and \n characters trimmed. It never reads past the terminating newline, so the
// caller's reader is positioned exactly at the start of any raw payload.
func ReadHeader(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	if len(line) > MaxHeaderLen {
		return "", fmt.Errorf("header line too long (%d bytes)", len(line))
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// WriteHeader writes line terminated by a single \n.
func WriteHeader(w io.Writer, line string) error {
	_, err := io.WriteString(w, line+"\n")
	return err
}

// Tokens splits a header line on whitespace, as spec §4.1 requires.
func Tokens(line string) []string {
	return strings.Fields(line)
}

// ReadExact reads exactly n bytes from r, the "declared raw byte stream"
// that follows certain headers (spec §4.1). It is a thin wrapper over
// io.ReadFull kept here so every caller goes through one audited path.
func ReadExact(r io.Reader, n int64) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative length %d", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// CopyExact copies exactly n bytes from src to dst, as used by relay
// forwarding to stream bytes through a node without buffering the whole
// remainder in memory.
func CopyExact(dst io.Writer, src io.Reader, n int64) (int64, error) {
	written, err := io.CopyN(dst, src, n)
	if err != nil {
		return written, err
	}
	return written, nil
}
