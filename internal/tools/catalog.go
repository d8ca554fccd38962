// Package tools serves the conversion tool catalog. The catalog ships
// embedded in the binary so the gateway works air-gapped from any catalog
// service; the front end renders its widgets from it.
package tools

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/convertdesk/backend/internal/models"
)

//go:embed catalog.yaml
var embeddedCatalog []byte

// OptionField describes one user-editable option on a tool widget.
type OptionField struct {
	Name        string   `yaml:"name" json:"name"`
	Label       string   `yaml:"label" json:"label"`
	Type        string   `yaml:"type" json:"type"` // text | select | password
	Values      []string `yaml:"values" json:"values,omitempty"`
	Placeholder string   `yaml:"placeholder" json:"placeholder,omitempty"`
}

// Tool is one conversion tool as declared in the catalog.
type Tool struct {
	ID          string        `yaml:"id" json:"id"`
	Name        string        `yaml:"name" json:"name"`
	Description string        `yaml:"description" json:"description"`
	Endpoint    string        `yaml:"endpoint" json:"endpoint"`
	InputType   string        `yaml:"input_type" json:"inputType"` // single | multiple
	Accept      string        `yaml:"accept" json:"accept"`
	MinFiles    int           `yaml:"min_files" json:"minFiles,omitempty"`
	Options     []OptionField `yaml:"options" json:"options,omitempty"`
}

// Category groups related tools for display.
type Category struct {
	ID          string `yaml:"id" json:"id"`
	Title       string `yaml:"title" json:"title"`
	Icon        string `yaml:"icon" json:"icon"`
	Color       string `yaml:"color" json:"color"`
	Description string `yaml:"description" json:"description"`
	Tools       []Tool `yaml:"tools" json:"tools"`
}

// Catalog is the full set of categories and tools, with an index by tool ID.
type Catalog struct {
	Categories []Category `yaml:"categories" json:"categories"`

	byID map[string]toolRef
}

type toolRef struct {
	tool       *Tool
	categoryID string
	index      int
}

// Load parses the embedded catalog.
func Load() (*Catalog, error) {
	return Parse(embeddedCatalog)
}

// Parse builds a catalog from YAML bytes.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse tool catalog: %w", err)
	}

	c.byID = make(map[string]toolRef)
	for ci := range c.Categories {
		cat := &c.Categories[ci]
		for ti := range cat.Tools {
			tool := &cat.Tools[ti]
			if tool.ID == "" {
				return nil, fmt.Errorf("tool %q in category %q has no id", tool.Name, cat.ID)
			}
			if _, dup := c.byID[tool.ID]; dup {
				return nil, fmt.Errorf("duplicate tool id %q", tool.ID)
			}
			c.byID[tool.ID] = toolRef{tool: tool, categoryID: cat.ID, index: ti}
		}
	}
	return &c, nil
}

// Find returns the tool with the given ID.
func (c *Catalog) Find(toolID string) (*Tool, bool) {
	ref, ok := c.byID[toolID]
	if !ok {
		return nil, false
	}
	return ref.tool, true
}

// ToolCount returns the total number of tools across all categories.
func (c *Catalog) ToolCount() int {
	return len(c.byID)
}

// MinimumFiles returns the effective minimum file count for a tool. When
// both the catalog's min_files and a per-tool rule apply, the stricter
// (larger) minimum is authoritative.
func MinimumFiles(tool *Tool) int {
	min := tool.MinFiles
	if override, ok := minimumFileRules[tool.ID]; ok && override > min {
		min = override
	}
	if min == 0 && InputMode(tool) == models.InputSingle {
		min = 1
	}
	return min
}

// minimumFileRules are tool-specific floors that hold even if the catalog
// metadata says otherwise. Merging anything needs at least two inputs.
var minimumFileRules = map[string]int{
	"merge-pdf":  2,
	"merge-word": 2,
}

// InputMode maps the catalog's input_type string onto the request model's
// enum. Anything other than "multiple" is treated as single.
func InputMode(tool *Tool) models.InputMode {
	if strings.EqualFold(tool.InputType, string(models.InputMultiple)) {
		return models.InputMultiple
	}
	return models.InputSingle
}

// Descriptor builds the read-only submission view of a tool, carrying the
// user's option values. Empty and whitespace-only values are dropped here so
// they are never sent as empty form fields.
func (c *Catalog) Descriptor(toolID string, options map[string]string) (models.ToolDescriptor, bool) {
	ref, ok := c.byID[toolID]
	if !ok {
		return models.ToolDescriptor{}, false
	}
	tool := ref.tool

	var fields map[string]string
	for _, opt := range tool.Options {
		value, present := options[opt.Name]
		if !present || strings.TrimSpace(value) == "" {
			continue
		}
		if fields == nil {
			fields = make(map[string]string)
		}
		fields[opt.Name] = value
	}

	return models.ToolDescriptor{
		ToolID:       tool.ID,
		ToolName:     tool.Name,
		CategoryID:   ref.categoryID,
		ToolIndex:    ref.index,
		InputMode:    InputMode(tool),
		MinFiles:     MinimumFiles(tool),
		OptionFields: fields,
	}, true
}
