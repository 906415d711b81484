package importer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/larder/internal/models"
)

// Extensions lists the file types Decode understands.
var Extensions = []string{".json", ".yaml", ".yml", ".md"}

// Supported reports whether name has a decodable extension.
func Supported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Decode parses an import file into raw recipe records. JSON and YAML files
// hold one recipe object, an array of them, or {"recipes": [...]}. A Markdown
// file is one recipe: YAML frontmatter for the fields, the body as description.
// Array elements that are not objects come back as nil records.
func Decode(name string, data []byte) ([]models.RawRecord, error) {
	var (
		doc any
		err error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md":
		return []models.RawRecord{decodeMarkdown(data)}, nil
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &doc)
	default:
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("importer: parse %s: %w", name, err)
	}
	return records(doc)
}

func records(doc any) ([]models.RawRecord, error) {
	switch v := doc.(type) {
	case map[string]any:
		if list, ok := v["recipes"].([]any); ok {
			return records(list)
		}
		return []models.RawRecord{v}, nil
	case []any:
		out := make([]models.RawRecord, len(v))
		for i, e := range v {
			if m, ok := e.(map[string]any); ok {
				out[i] = m
			}
		}
		return out, nil
	case nil:
		return []models.RawRecord{}, nil
	}
	return nil, errors.New("importer: expected a recipe object or an array of recipes")
}

var inlineTagRe = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)

func decodeMarkdown(data []byte) models.RawRecord {
	fm, body := splitFrontmatter(data)
	rec := models.RawRecord{}
	for k, v := range fm {
		rec[k] = v
	}
	if _, ok := rec.String("title"); !ok {
		if t := firstHeading(body); t != "" {
			rec["title"] = t
		}
	}
	if _, ok := rec.String("description"); !ok {
		if d := strings.TrimSpace(stripHeading(body)); d != "" {
			rec["description"] = d
		}
	}
	if tags := mergeTags(fm["tags"], body); len(tags) > 0 {
		rec["tags"] = tags
	}
	return rec
}

// splitFrontmatter separates YAML frontmatter (between leading --- lines) from
// the body. Missing or invalid frontmatter leaves the whole input as body.
func splitFrontmatter(data []byte) (map[string]any, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data)
	}
	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data)
	}
	var fm map[string]any
	if err := yaml.Unmarshal(rest[:idx], &fm); err != nil {
		return nil, string(data)
	}
	body := strings.TrimLeft(string(rest[idx+1+len(delim):]), "\n\r")
	return fm, body
}

func firstHeading(body string) string {
	for _, line := range strings.Split(body, "\n") {
		if t := strings.TrimSpace(line); strings.HasPrefix(t, "# ") {
			return strings.TrimSpace(t[2:])
		}
	}
	return ""
}

func stripHeading(body string) string {
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "# ") {
			return strings.Join(append(lines[:i:i], lines[i+1:]...), "\n")
		}
	}
	return body
}

// mergeTags joins frontmatter tags with inline #tags, first occurrence wins.
func mergeTags(fmTags any, body string) []any {
	seen := map[string]struct{}{}
	var out []any
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	if list, ok := fmTags.([]any); ok {
		for _, e := range list {
			if s, ok := e.(string); ok {
				add(s)
			}
		}
	}
	for _, m := range inlineTagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}
	return out
}
