// Package spool implements the Spool port over the directory of change files
// written by the password filter.
package spool

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Evolveum/midpoint-password-agent-ad/internal/domain/model"
)

const (
	firstChar          = '['
	dateSeparator      = '/'
	dateTimeSeparator  = ' '
	timeSeparator      = ':'
	lastChar           = ']'
	usernameStart      = ':'
	usernameEnd        = ", "
	lineTerminatorSet  = "\r\n"
	timestampFieldBase = 10
)

// MalformedRecordError reports a change file that does not follow the
// "[YYYY/MM/DD HH:MM:SS:mmm]:username, password" layout.
type MalformedRecordError struct {
	Path   string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed password file %s: %s", e.Path, e.Reason)
}

// ParseRecord decodes one change file into a pending UpdateRecord.
func ParseRecord(path string, data []byte) (*model.UpdateRecord, error) {
	malformed := func(format string, args ...any) error {
		return &MalformedRecordError{Path: path, Reason: fmt.Sprintf(format, args...)}
	}

	line, err := DecodeInterleaved(data)
	if err != nil {
		return nil, malformed("%v", err)
	}
	if line == "" || line[0] != firstChar {
		return nil, malformed("record does not start with %q", firstChar)
	}

	c := cursor{line: line, pos: 1}
	ts, err := c.timestamp()
	if err != nil {
		return nil, malformed("%v", err)
	}

	if !c.consume(usernameStart) {
		return nil, malformed("expected %q after timestamp", usernameStart)
	}

	rest := line[c.pos:]
	end := strings.Index(rest, usernameEnd)
	if end < 0 {
		return nil, malformed("missing %q after username", usernameEnd)
	}
	username := rest[:end]
	if username == "" {
		return nil, malformed("empty username")
	}

	password := rest[end+len(usernameEnd):]
	if i := strings.IndexAny(password, lineTerminatorSet); i >= 0 {
		password = password[:i]
	}
	if password == "" {
		return nil, malformed("empty password for user %q", username)
	}

	return model.NewUpdateRecord(path, username, password, ts)
}

// cursor walks the decoded line left to right.
type cursor struct {
	line string
	pos  int
}

func (c *cursor) consume(b byte) bool {
	if c.pos >= len(c.line) || c.line[c.pos] != b {
		return false
	}
	c.pos++
	return true
}

// field reads an integer terminated by sep and moves past sep.
func (c *cursor) field(name string, sep byte) (int, error) {
	end := strings.IndexByte(c.line[c.pos:], sep)
	if end < 0 {
		return 0, fmt.Errorf("error parsing the timestamp: %s not terminated by %q", name, sep)
	}
	raw := c.line[c.pos : c.pos+end]
	v, err := strconv.ParseInt(raw, timestampFieldBase, 32)
	if err != nil {
		return 0, fmt.Errorf("error parsing the timestamp: %s %q is not a number", name, raw)
	}
	c.pos += end + 1
	return int(v), nil
}

func (c *cursor) timestamp() (time.Time, error) {
	type part struct {
		name string
		sep  byte
	}
	parts := []part{
		{"year", dateSeparator},
		{"month", dateSeparator},
		{"day", dateTimeSeparator},
		{"hour", timeSeparator},
		{"minute", timeSeparator},
		{"second", timeSeparator},
		{"millisecond", lastChar},
	}

	var v [7]int
	for i, p := range parts {
		n, err := c.field(p.name, p.sep)
		if err != nil {
			return time.Time{}, err
		}
		v[i] = n
	}

	return buildTimestamp(v[0], v[1], v[2], v[3], v[4], v[5], v[6])
}

// buildTimestamp rejects out-of-range fields instead of letting time.Date
// normalize them.
func buildTimestamp(year, month, day, hour, minute, second, millisecond int) (time.Time, error) {
	if year < 1 || year > 9999 ||
		month < 1 || month > 12 ||
		hour < 0 || hour > 23 ||
		minute < 0 || minute > 59 ||
		second < 0 || second > 59 ||
		millisecond < 0 || millisecond > 999 {
		return time.Time{}, fmt.Errorf("error parsing the timestamp: field out of range")
	}

	ts := time.Date(year, time.Month(month), day, hour, minute, second, millisecond*int(time.Millisecond), time.UTC)
	if ts.Day() != day || int(ts.Month()) != month {
		return time.Time{}, fmt.Errorf("error parsing the timestamp: day %d out of range", day)
	}
	return ts, nil
}
