// Package messages provides the YAML message catalogs behind i18n.Resolver.
package messages

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/Sentinel-Gate/sessiongate/internal/domain/i18n"
)

//go:embed catalogs/*.yaml
var builtin embed.FS

// Catalog resolves message keys against per-language tables. Lookups fall
// back from the requested locale to the closest supported language, then to
// the fallback language, then to the key itself.
type Catalog struct {
	tables   map[language.Tag]map[string]string
	tags     []language.Tag
	matcher  language.Matcher
	fallback language.Tag
}

// Load builds a Catalog from the embedded catalogs.
func Load(fallback language.Tag) (*Catalog, error) {
	sub, err := fs.Sub(builtin, "catalogs")
	if err != nil {
		return nil, err
	}
	return LoadFS(sub, fallback)
}

// LoadFS builds a Catalog from every *.yaml file at the root of fsys.
// The file name (without extension) is the BCP 47 tag of its language.
// fallback must be one of the loaded languages.
func LoadFS(fsys fs.FS, fallback language.Tag) (*Catalog, error) {
	names, err := fs.Glob(fsys, "*.yaml")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	tables := make(map[language.Tag]map[string]string, len(names))
	for _, name := range names {
		tag, err := language.Parse(strings.TrimSuffix(path.Base(name), ".yaml"))
		if err != nil {
			return nil, fmt.Errorf("catalog %s: %w", name, err)
		}
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("catalog %s: %w", name, err)
		}
		table := make(map[string]string)
		if err := yaml.Unmarshal(data, &table); err != nil {
			return nil, fmt.Errorf("catalog %s: %w", name, err)
		}
		tables[tag] = table
	}

	if _, ok := tables[fallback]; !ok {
		return nil, fmt.Errorf("fallback language %s has no catalog", fallback)
	}

	// The matcher's first tag is its default, so the fallback goes first.
	tags := []language.Tag{fallback}
	for _, name := range names {
		tag := language.MustParse(strings.TrimSuffix(path.Base(name), ".yaml"))
		if tag != fallback {
			tags = append(tags, tag)
		}
	}

	return &Catalog{
		tables:   tables,
		tags:     tags,
		matcher:  language.NewMatcher(tags),
		fallback: fallback,
	}, nil
}

// Resolve implements i18n.Resolver.
func (c *Catalog) Resolve(key string, locale language.Tag) string {
	if msg, ok := c.tables[c.Match(locale)][key]; ok {
		return msg
	}
	if msg, ok := c.tables[c.fallback][key]; ok {
		return msg
	}
	return key
}

// Match returns the supported language closest to the given preferences,
// or the fallback language when none is close enough.
func (c *Catalog) Match(preferred ...language.Tag) language.Tag {
	if len(preferred) == 0 {
		return c.fallback
	}
	_, idx, conf := c.matcher.Match(preferred...)
	if conf == language.No {
		return c.fallback
	}
	return c.tags[idx]
}

// Languages returns the supported languages, fallback first.
func (c *Catalog) Languages() []language.Tag {
	return append([]language.Tag(nil), c.tags...)
}

// Missing returns, per language, the keys present in the fallback catalog
// but absent from that language.
func (c *Catalog) Missing() map[language.Tag][]string {
	out := make(map[language.Tag][]string)
	for _, tag := range c.tags[1:] {
		for key := range c.tables[c.fallback] {
			if _, ok := c.tables[tag][key]; !ok {
				out[tag] = append(out[tag], key)
			}
		}
		sort.Strings(out[tag])
	}
	return out
}

var _ i18n.Resolver = (*Catalog)(nil)
