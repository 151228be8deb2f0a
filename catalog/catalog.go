// Package catalog loads the declarative tool catalog: a remote YAML
// document of categories and tools, validated against a schema and cached
// on disk.
package catalog

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tobayashi-san/arch-appcenter/logging"
)

// Tool is one runnable catalog entry.
type Tool struct {
	Name        string
	Description string
	Command     string
	Tags        []string
	Requires    []string
	Category    string
}

// Category groups tools under a display name and ordering.
type Category struct {
	ID          string
	Name        string
	Description string
	Icon        string
	Order       int
	Tools       []Tool
}

// defaultOrder sorts categories without an explicit order last.
const defaultOrder = 999

// yamlTool and yamlCategory mirror the document layout on disk.
type yamlTool struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Command     string   `yaml:"command"`
	Tags        []string `yaml:"tags"`
	Requires    []string `yaml:"requires"`
}

type yamlCategory struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Icon        string     `yaml:"icon"`
	Order       *int       `yaml:"order"`
	Tools       []yamlTool `yaml:"tools"`
}

type yamlDocument struct {
	Categories map[string]yamlCategory `yaml:"categories"`
}

// Catalog is a parsed, validated tool catalog. Immutable after Parse.
type Catalog struct {
	categories []Category
}

// Parse validates and parses a catalog document. The document must pass
// the schema; individual tools missing a name, description, or command
// are skipped with a warning instead of rejecting the whole document.
func Parse(raw []byte, log logging.Logger) (*Catalog, error) {
	if log == nil {
		log = logging.Nop{}
	}
	log = logging.WithComponent(log, "catalog")

	if errs, err := validateDocument(raw); err != nil {
		return nil, err
	} else if len(errs) > 0 {
		return nil, fmt.Errorf("catalog document invalid: %s", strings.Join(errs, "; "))
	}

	var doc yamlDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}

	cat := &Catalog{}
	toolCount := 0
	for id, yc := range doc.Categories {
		c := Category{
			ID:          id,
			Name:        yc.Name,
			Description: yc.Description,
			Icon:        yc.Icon,
			Order:       defaultOrder,
		}
		if c.Name == "" {
			c.Name = titleFromID(id)
		}
		if yc.Order != nil {
			c.Order = *yc.Order
		}
		for _, yt := range yc.Tools {
			t := Tool{
				Name:        strings.TrimSpace(yt.Name),
				Description: strings.TrimSpace(yt.Description),
				Command:     strings.TrimSpace(yt.Command),
				Tags:        yt.Tags,
				Requires:    yt.Requires,
				Category:    id,
			}
			if t.Name == "" || t.Description == "" || t.Command == "" {
				log.Warn("skipping incomplete tool entry", map[string]any{"category": id, "name": yt.Name})
				continue
			}
			c.Tools = append(c.Tools, t)
			toolCount++
		}
		sort.Slice(c.Tools, func(i, j int) bool { return c.Tools[i].Name < c.Tools[j].Name })
		cat.categories = append(cat.categories, c)
	}

	sort.Slice(cat.categories, func(i, j int) bool {
		a, b := cat.categories[i], cat.categories[j]
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return a.Name < b.Name
	})

	log.Info("catalog parsed", map[string]any{"categories": len(cat.categories), "tools": toolCount})
	return cat, nil
}

// Categories returns every category, sorted by order then name.
func (c *Catalog) Categories() []Category {
	return c.categories
}

// Category looks a category up by its id.
func (c *Catalog) Category(id string) (Category, bool) {
	for _, cat := range c.categories {
		if cat.ID == id {
			return cat, true
		}
	}
	return Category{}, false
}

// FindTool looks a tool up by name, case-insensitively.
func (c *Catalog) FindTool(name string) (Tool, bool) {
	for _, cat := range c.categories {
		for _, t := range cat.Tools {
			if strings.EqualFold(t.Name, name) {
				return t, true
			}
		}
	}
	return Tool{}, false
}

// Search returns every tool whose name, description, or any tag contains
// the term, case-insensitively.
func (c *Catalog) Search(term string) []Tool {
	term = strings.ToLower(term)
	var hits []Tool
	for _, cat := range c.categories {
		for _, t := range cat.Tools {
			if matches(t, term) {
				hits = append(hits, t)
			}
		}
	}
	return hits
}

func matches(t Tool, term string) bool {
	if strings.Contains(strings.ToLower(t.Name), term) {
		return true
	}
	if strings.Contains(strings.ToLower(t.Description), term) {
		return true
	}
	for _, tag := range t.Tags {
		if strings.Contains(strings.ToLower(tag), term) {
			return true
		}
	}
	return false
}

// titleFromID turns an id like "system_setup" into "System Setup".
func titleFromID(id string) string {
	words := strings.FieldsFunc(id, func(r rune) bool { return r == '_' || r == '-' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
