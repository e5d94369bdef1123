// Package parser extracts frontmatter, link references, and tags from
// Markdown content. Parsing is pure: it never touches the filesystem and
// the same bytes always produce the same result.
package parser

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
)

var (
	wikilinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)
	mdLinkRe   = regexp.MustCompile(`\[([^\]]*)\]\(([^()\s]+)\)`)
	tagRe      = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)
)

// Result holds the output of parsing a note file.
type Result struct {
	Frontmatter map[string]interface{}
	Body        string
	Title       string
	Aliases     []string
	Tags        []string
	Links       []models.LinkRef
}

// Parse extracts structural facts from raw note bytes. Malformed YAML
// frontmatter fails with a *apperr.ParseError; callers treat that as
// non-fatal and keep the previous good state for the note.
func Parse(path string, data []byte) (*Result, error) {
	fm, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, &apperr.ParseError{Path: path, Cause: err}
	}

	return &Result{
		Frontmatter: fm,
		Body:        body,
		Title:       deriveTitle(fm, body),
		Aliases:     extractAliases(fm),
		Tags:        extractTags(body, fm),
		Links:       extractLinks(body),
	}, nil
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the Markdown body. If no frontmatter is found the entire content is body.
func splitFrontmatter(data []byte) (map[string]interface{}, string, error) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data), nil
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		// No closing delimiter: the whole file is body.
		return nil, string(data), nil
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]interface{}
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return nil, "", err
	}

	return fm, body, nil
}

// extractLinks returns link references in document order: wikilinks
// ([[target|alias]], with #heading and #^block subpaths) and internal
// markdown links ([text](target.md)). External URLs produce no reference.
func extractLinks(body string) []models.LinkRef {
	var out []models.LinkRef

	for _, m := range wikilinkRe.FindAllStringSubmatch(body, -1) {
		if ref, ok := splitWikilink(m[1]); ok {
			out = append(out, ref)
		}
	}

	for _, m := range mdLinkRe.FindAllStringSubmatch(body, -1) {
		target := strings.TrimSpace(m[2])
		if target == "" || isExternalTarget(target) {
			continue
		}
		ref := models.LinkRef{Target: decodeTarget(target), Display: strings.TrimSpace(m[1])}
		ref.Target, ref.Section, ref.Block = splitSubpath(ref.Target)
		if ref.Target != "" {
			out = append(out, ref)
		}
	}

	return out
}

// splitWikilink parses the inside of [[...]]: alias after |, then block
// after #^, then heading after #.
func splitWikilink(raw string) (models.LinkRef, bool) {
	var ref models.LinkRef
	target := raw
	if i := strings.Index(raw, "|"); i >= 0 {
		target = raw[:i]
		ref.Display = strings.TrimSpace(raw[i+1:])
	}
	target, ref.Section, ref.Block = splitSubpath(strings.TrimSpace(target))
	if target == "" {
		return ref, false
	}
	ref.Target = decodeTarget(target)
	return ref, true
}

func splitSubpath(target string) (base, section, block string) {
	if i := strings.Index(target, "#^"); i >= 0 {
		return strings.TrimSpace(target[:i]), "", strings.TrimSpace(target[i+2:])
	}
	if i := strings.Index(target, "#"); i >= 0 {
		return strings.TrimSpace(target[:i]), strings.TrimSpace(target[i+1:]), ""
	}
	return target, "", ""
}

func isExternalTarget(target string) bool {
	return strings.Contains(target, "://") ||
		strings.HasPrefix(target, "mailto:") ||
		strings.HasPrefix(target, "#")
}

// decodeTarget undoes percent-encoding that markdown links commonly carry
// and normalises backslashes to forward slashes.
func decodeTarget(target string) string {
	target = strings.ReplaceAll(target, "\\", "/")
	if decoded, err := url.PathUnescape(target); err == nil {
		return decoded
	}
	return target
}

// extractTags collects #tags from body and from the frontmatter "tags" field.
func extractTags(body string, fm map[string]interface{}) []string {
	seen := make(map[string]struct{})
	var out []string

	add := func(s string) {
		s = strings.TrimSpace(strings.TrimPrefix(s, "#"))
		if s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	if fm != nil {
		switch v := fm["tags"].(type) {
		case []interface{}:
			for _, item := range v {
				if s, ok := item.(string); ok {
					add(s)
				}
			}
		case string:
			for _, s := range strings.Split(v, ",") {
				add(s)
			}
		}
	}

	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}

	return out
}

// extractAliases collects alternate names from the frontmatter "aliases"
// (list) or "alias" (string) field.
func extractAliases(fm map[string]interface{}) []string {
	if fm == nil {
		return nil
	}
	var out []string
	switch v := fm["aliases"].(type) {
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case string:
		if strings.TrimSpace(v) != "" {
			out = append(out, strings.TrimSpace(v))
		}
	}
	if s, ok := fm["alias"].(string); ok && strings.TrimSpace(s) != "" {
		out = append(out, strings.TrimSpace(s))
	}
	return out
}

// deriveTitle returns the frontmatter "title" if present, otherwise the first
// H1 heading, otherwise empty string.
func deriveTitle(fm map[string]interface{}, body string) string {
	if fm != nil {
		if t, ok := fm["title"]; ok {
			if s, ok := t.(string); ok && s != "" {
				return s
			}
		}
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
