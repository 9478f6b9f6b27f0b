// Package parser extracts the metadata header, tags, and wikilinks from note content.
package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Delimiter opens and closes the metadata header.
const Delimiter = "---"

var (
	wikilinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)
	tagsKeyRe  = regexp.MustCompile(`^tags:[ \t]*(.*?)[ \t]*$`)
	listItemRe = regexp.MustCompile(`^([ \t]*)-[ \t]*(.*?)[ \t]*$`)
)

// Header is the metadata block at the top of a note.
type Header struct {
	// Start and End are byte offsets of the header content (the lines
	// between the two delimiter lines) within the original data.
	Start, End int
	Fields     map[string]any // nil when the header is not valid YAML
	Tags       []string
	HasTags    bool // a tags field is declared, possibly empty
}

// Result holds the output of parsing a note.
type Result struct {
	Header *Header // nil when absent or unterminated
	Body   string
	Links  []string
}

// HasTag reports whether the header declares tag exactly (case-sensitive).
func (r *Result) HasTag(tag string) bool {
	if r.Header == nil {
		return false
	}
	for _, t := range r.Header.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Parse splits data into header and body and extracts wikilinks from the body.
// Malformed headers are never an error: the whole file is treated as body.
func Parse(data []byte) *Result {
	h, body := splitHeader(data)
	return &Result{
		Header: h,
		Body:   body,
		Links:  ExtractLinks(body),
	}
}

// bom is the UTF-8 byte order mark some editors put at the start of a file.
const bom = "\ufeff"

// splitHeader locates the header: the first non-blank line must be the
// delimiter and the header ends at the next delimiter line. A leading byte
// order mark is skipped; offsets still refer to data.
func splitHeader(data []byte) (*Header, string) {
	rest := bytes.TrimPrefix(data, []byte(bom))
	start := len(data) - len(bytes.TrimLeft(rest, "\r\n"))
	first, pos, ok := nextLine(data, start)
	if !ok || trimEOL(first) != Delimiter {
		return nil, string(data)
	}
	contentStart := pos
	for pos < len(data) {
		lineStart := pos
		line, next, ok := nextLine(data, pos)
		if !ok {
			break
		}
		if strings.TrimRight(trimEOL(line), " \t") == Delimiter {
			h := &Header{Start: contentStart, End: lineStart}
			h.decode(string(data[contentStart:lineStart]))
			return h, string(data[next:])
		}
		pos = next
	}
	// No closing delimiter: treat everything as body.
	return nil, string(data)
}

// nextLine returns the line starting at pos including its line ending and
// the offset of the following line.
func nextLine(data []byte, pos int) (string, int, bool) {
	if pos >= len(data) {
		return "", pos, false
	}
	i := bytes.IndexByte(data[pos:], '\n')
	if i < 0 {
		return string(data[pos:]), len(data), true
	}
	return string(data[pos : pos+i+1]), pos + i + 1, true
}

func trimEOL(line string) string {
	return strings.TrimRight(line, "\r\n")
}

// decode reads the header content as YAML, falling back to a line scan of
// the tags field when the YAML is invalid.
func (h *Header) decode(content string) {
	var fields map[string]any
	if err := yaml.Unmarshal([]byte(content), &fields); err == nil {
		h.Fields = fields
		if raw, ok := fields["tags"]; ok {
			h.HasTags = true
			h.Tags = tagValues(raw)
		}
		return
	}
	h.Tags, h.HasTags = scanTags(content)
}

// tagValues normalises the YAML forms of a tags field: a list, or a
// comma-separated scalar.
func tagValues(raw any) []string {
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	switch v := raw.(type) {
	case []any:
		for _, item := range v {
			if item == nil {
				continue
			}
			if s, ok := item.(string); ok {
				add(s)
			} else {
				add(fmt.Sprint(item))
			}
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			add(s)
		}
	case nil:
	default:
		add(fmt.Sprint(v))
	}
	return out
}

// scanTags finds a top-level "tags:" line and collects the "- value" items
// that follow it.
func scanTags(content string) ([]string, bool) {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		m := tagsKeyRe.FindStringSubmatch(trimEOL(line))
		if m == nil {
			continue
		}
		var tags []string
		if m[1] != "" {
			inline := strings.Trim(m[1], "[]")
			for _, s := range strings.Split(inline, ",") {
				if s = strings.TrimSpace(s); s != "" {
					tags = append(tags, s)
				}
			}
			return tags, true
		}
		for _, next := range lines[i+1:] {
			item := listItemRe.FindStringSubmatch(trimEOL(next))
			if item == nil {
				break
			}
			if item[2] != "" {
				tags = append(tags, item[2])
			}
		}
		return tags, true
	}
	return nil, false
}

// ExtractLinks returns deduplicated wikilink targets in first-occurrence
// order. [[Target|Alias]] yields Target.
func ExtractLinks(body string) []string {
	matches := wikilinkRe.FindAllStringSubmatch(body, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		target := m[1]
		if i := strings.Index(target, "|"); i >= 0 {
			target = target[:i]
		}
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	return out
}
