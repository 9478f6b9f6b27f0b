// Package marker records that a note has been counted by adding a tag to
// its metadata header.
package marker

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"strings"

	"github.com/starford/skilltally/internal/apperr"
	"github.com/starford/skilltally/internal/parser"
)

const defaultIndent = "  "

var (
	tagsKeyRe  = regexp.MustCompile(`^tags:([ \t]*)(.*?)([ \t]*)$`)
	listItemRe = regexp.MustCompile(`^([ \t]*)-(?:[ \t]|$)`)
	commentRe  = regexp.MustCompile(`[ \t]+#`)
)

// Apply returns content with tag added to the header tag list.
// changed is false when the tag is already present or when the note has no
// header; in the latter case no header is synthesized. Everything outside
// the tags field is preserved byte for byte. Edits that would lose or
// reshape existing header content return ErrNotMarked and leave content
// untouched.
func Apply(content []byte, tag string) ([]byte, bool, error) {
	doc := parser.Parse(content)
	if doc.Header == nil {
		return content, false, nil
	}
	if doc.HasTag(tag) {
		return content, false, nil
	}

	eol := "\n"
	if strings.Contains(string(content), "\r\n") {
		eol = "\r\n"
	}

	header := string(content[doc.Header.Start:doc.Header.End])
	updated, err := addTag(header, tag, eol)
	if err != nil {
		return content, false, fmt.Errorf("marker: %w: %v", apperr.ErrNotMarked, err)
	}

	out := make([]byte, 0, len(content)+len(tag)+8)
	out = append(out, content[:doc.Header.Start]...)
	out = append(out, updated...)
	out = append(out, content[doc.Header.End:]...)

	if err := verify(doc.Header, parser.Parse(out).Header, tag); err != nil {
		return content, false, fmt.Errorf("marker: %w: %v", apperr.ErrNotMarked, err)
	}
	return out, true, nil
}

// verify checks that the rewritten header holds exactly the old tags plus
// tag and, when the old header was valid YAML, that it still is and that
// every other field kept its value.
func verify(before, after *parser.Header, tag string) error {
	if after == nil {
		return errors.New("header lost")
	}
	if before.Fields != nil {
		if after.Fields == nil {
			return errors.New("header is no longer valid YAML")
		}
		if !reflect.DeepEqual(withoutTags(before.Fields), withoutTags(after.Fields)) {
			return errors.New("header fields changed")
		}
	}
	want := append(append([]string{}, before.Tags...), tag)
	if !slices.Equal(after.Tags, want) {
		return fmt.Errorf("tags = %q, want %q", after.Tags, want)
	}
	return nil
}

func withoutTags(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if k != "tags" {
			out[k] = v
		}
	}
	return out
}

// addTag rewrites the tags field inside header content.
func addTag(header, tag, eol string) (string, error) {
	lines := strings.SplitAfter(header, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}

	for i, line := range lines {
		m := tagsKeyRe.FindStringSubmatch(strings.TrimRight(line, "\r\n"))
		if m == nil {
			continue
		}
		lineEOL := line[len(strings.TrimRight(line, "\r\n")):]
		value, comment := splitComment(m[2])

		if value != "" {
			inline, err := inlineWithTag(value, tag)
			if err != nil {
				return "", err
			}
			trailing := m[3]
			if comment != "" {
				trailing = comment
			}
			lines[i] = "tags:" + m[1] + inline + trailing + lineEOL
			return strings.Join(lines, ""), nil
		}

		// Block list: insert after the last contiguous item.
		last := i
		indent := defaultIndent
		for j := i + 1; j < len(lines); j++ {
			item := listItemRe.FindStringSubmatch(strings.TrimRight(lines[j], "\r\n"))
			if item == nil {
				break
			}
			if j == i+1 {
				indent = item[1]
			}
			last = j
		}
		if lineEOL == "" && last == i {
			lines[i] += eol
		}
		if !strings.HasSuffix(lines[last], "\n") {
			lines[last] += eol
		}
		entry := indent + "- " + tag + eol
		out := make([]string, 0, len(lines)+1)
		out = append(out, lines[:last+1]...)
		out = append(out, entry)
		out = append(out, lines[last+1:]...)
		return strings.Join(out, ""), nil
	}

	// No tags field: append one at the end of the header.
	if header != "" && !strings.HasSuffix(header, "\n") {
		header += eol
	}
	return header + "tags:" + eol + defaultIndent + "- " + tag + eol, nil
}

// splitComment separates a trailing YAML comment (including the blanks
// before it) from a field value.
func splitComment(value string) (string, string) {
	if strings.HasPrefix(value, "#") {
		return "", value
	}
	loc := commentRe.FindStringIndex(value)
	if loc == nil {
		return value, ""
	}
	return value[:loc[0]], value[loc[0]:]
}

// inlineWithTag appends tag to a flow list ("[a, b]") or turns a scalar
// ("a, b") into a flow list. A flow list that continues on later lines
// cannot be edited in place.
func inlineWithTag(value, tag string) (string, error) {
	if strings.HasPrefix(value, "[") {
		if !strings.HasSuffix(value, "]") {
			return "", fmt.Errorf("tags flow list %q spans several lines", value)
		}
		inner := strings.TrimSpace(value[1 : len(value)-1])
		if inner == "" {
			return "[" + tag + "]", nil
		}
		return value[:len(value)-1] + ", " + tag + "]", nil
	}
	return "[" + value + ", " + tag + "]", nil
}
