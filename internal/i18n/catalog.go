// Package i18n provides localized player-facing messages.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed locales/*/messages.yaml
var localeFS embed.FS

// Fallback is the language used when a player's language has no match
// or a translation lacks a key.
var Fallback = language.English

// Catalog holds message tables keyed by language.
//
// Not safe for concurrent mutation; Register is called during startup only.
type Catalog struct {
	tags    []language.Tag // tags[0] is always Fallback
	tables  []map[string]string
	matcher language.Matcher
}

// New loads the embedded locale catalogs.
func New() (*Catalog, error) {
	return Load(localeFS, "locales")
}

// Load reads <root>/<tag>/messages.yaml for every subdirectory of root.
func Load(fsys fs.FS, root string) (*Catalog, error) {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return nil, fmt.Errorf("reading locales dir %q: %w", root, err)
	}

	c := &Catalog{}
	c.Register(Fallback, nil)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		tag, err := language.Parse(e.Name())
		if err != nil {
			return nil, fmt.Errorf("parsing locale %q: %w", e.Name(), err)
		}

		data, err := fs.ReadFile(fsys, path.Join(root, e.Name(), "messages.yaml"))
		if err != nil {
			return nil, fmt.Errorf("reading locale %q: %w", e.Name(), err)
		}

		var msgs map[string]string
		if err := yaml.Unmarshal(data, &msgs); err != nil {
			return nil, fmt.Errorf("parsing locale %q: %w", e.Name(), err)
		}
		c.Register(tag, msgs)
	}
	return c, nil
}

// Register merges msgs into the table for tag, creating it if needed.
// Existing keys are overwritten.
func (c *Catalog) Register(tag language.Tag, msgs map[string]string) {
	idx := -1
	for i, t := range c.tags {
		if t.String() == tag.String() {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.tags = append(c.tags, tag)
		c.tables = append(c.tables, make(map[string]string, len(msgs)))
		idx = len(c.tags) - 1
		c.matcher = language.NewMatcher(c.tags)
	}
	for k, v := range msgs {
		c.tables[idx][k] = v
	}
}

// Languages returns the registered language tags, fallback first.
func (c *Catalog) Languages() []language.Tag {
	out := make([]language.Tag, len(c.tags))
	copy(out, c.tags)
	return out
}

// Message returns the text for key in the best match for lang, with {0}..{n}
// replaced by args. Falls back to the English text and then to the key itself.
func (c *Catalog) Message(lang, key string, args ...any) string {
	tmpl, ok := c.tables[c.match(lang)][key]
	if !ok {
		tmpl, ok = c.tables[0][key]
	}
	if !ok {
		tmpl = key
	}
	return Format(tmpl, args...)
}

func (c *Catalog) match(lang string) int {
	if lang == "" {
		return 0
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return 0
	}
	_, idx, conf := c.matcher.Match(tag)
	if conf == language.No {
		return 0
	}
	return idx
}

// Format replaces positional placeholders {0}, {1}, ... with args.
// Placeholders without a matching argument are left as is.
func Format(tmpl string, args ...any) string {
	if len(args) == 0 || !strings.Contains(tmpl, "{") {
		return tmpl
	}

	var b strings.Builder
	b.Grow(len(tmpl))
	for i := 0; i < len(tmpl); i++ {
		if tmpl[i] == '{' {
			end := strings.IndexByte(tmpl[i:], '}')
			if end > 1 {
				n, err := strconv.Atoi(tmpl[i+1 : i+end])
				if err == nil && n >= 0 && n < len(args) {
					fmt.Fprint(&b, args[n])
					i += end
					continue
				}
			}
		}
		b.WriteByte(tmpl[i])
	}
	return b.String()
}
