// Package parser turns raw access-log lines into structured fields.
//
// Parsing is total: malformed input degrades to well-defined defaults and
// never produces an error, so one bad line can never stall the pipeline.
package parser

import (
	"strconv"
	"strings"

	"github.com/shepherdlog/shepherd/internal/shared/types"
)

// Default field values used whenever a line (or one of its parts) cannot be
// interpreted.
const (
	DefaultStatusCode   = 500
	DefaultClientIP     = "unknown"
	DefaultMethod       = "UNKNOWN"
	DefaultPath         = "/"
	DefaultResponseSize = 0
	DefaultUserAgent    = "unknown"
)

// Parser converts a raw log line into structured fields.
type Parser interface {
	Parse(raw string) types.ParsedFields
}

// AccessLog parses nginx/apache style access-log lines:
//
//	IP - - [timestamp] "METHOD path protocol" status size "referer" "user_agent"
//
// It is stateless and safe for concurrent use.
type AccessLog struct{}

// NewAccessLog returns an access-log line parser.
func NewAccessLog() *AccessLog { return &AccessLog{} }

// Parse extracts structured fields from a raw line. All fields are always
// populated; unparseable parts fall back to defaults.
func (p *AccessLog) Parse(raw string) types.ParsedFields {
	fields := defaults()

	if strings.TrimSpace(raw) == "" {
		return fields
	}

	parts := strings.Split(raw, `"`)
	if len(parts) < 3 {
		// Malformed line: salvage the client IP if there is any token at all.
		if words := strings.Fields(raw); len(words) > 0 {
			fields.ClientIP = words[0]
		}
		return fields
	}

	// Segment 0: "IP - - [timestamp] ", first token is the client IP.
	if words := strings.Fields(strings.TrimSpace(parts[0])); len(words) > 0 {
		fields.ClientIP = words[0]
	}

	// Segment 1: the request line, "METHOD path protocol".
	if req := strings.Fields(parts[1]); len(req) > 0 {
		fields.Method = req[0]
		if len(req) > 1 {
			fields.Path = req[1]
		}
	}

	// Segment 2: " status size " between the request and referer quotes.
	statusSize := strings.Fields(strings.TrimSpace(parts[2]))
	if len(statusSize) > 0 {
		if code, err := strconv.Atoi(statusSize[0]); err == nil {
			fields.StatusCode = code
		}
	}
	if len(statusSize) > 1 {
		if size, err := strconv.Atoi(statusSize[1]); err == nil {
			fields.ResponseSize = size
		}
	}

	// The user agent is the last quoted value on the line. A full line has
	// quoted segments at 1 (request), 3 (referer), 5 (user agent); shorter
	// lines fall back to whatever quoted segment follows the status block.
	switch {
	case len(parts) > 5 && parts[5] != "":
		fields.UserAgent = parts[5]
	case len(parts) > 3 && parts[3] != "":
		fields.UserAgent = parts[3]
	}

	return fields
}

func defaults() types.ParsedFields {
	return types.ParsedFields{
		StatusCode:   DefaultStatusCode,
		ClientIP:     DefaultClientIP,
		Method:       DefaultMethod,
		Path:         DefaultPath,
		ResponseSize: DefaultResponseSize,
		UserAgent:    DefaultUserAgent,
	}
}
