// Package catalog loads the project/reference/pipeline catalogue from YAML
// and user stage definitions from Starlark, and implements the resolver's
// attribute and target provider boundaries.
package catalog

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/stagepath/stagepath/internal/pipeline"
	"github.com/stagepath/stagepath/internal/resolve"
	"github.com/stagepath/stagepath/internal/stage"
)

// Project is a named root with the targets its outputs are computed for.
type Project struct {
	Name    string
	Targets []string
}

// Reference is a named reference data set, addressable in paths as
// "ref_<name>" and in attribute tokens as "ref.<name>.dir".
type Reference struct {
	Name string
	Dir  string
}

// Catalog is the loaded catalogue. It is read-only after Load.
type Catalog struct {
	Projects   map[string]*Project
	References map[string]*Reference
	Pipelines  []*pipeline.Def
	Dirs       map[string]string
}

type fileProject struct {
	Targets []string `yaml:"targets"`
}

type fileReference struct {
	Dir string `yaml:"dir"`
}

type filePipeline struct {
	Hide   bool         `yaml:"hide"`
	Doc    string       `yaml:"doc"`
	Stages []fileMember `yaml:"stages"`
}

// fileMember accepts either a bare stage reference or a one-entry mapping
// with per-member options:
//
//	stages:
//	  - trim
//	  - dedup:
//	      hide: true
type fileMember struct {
	Ref  string
	Hide *bool
}

func (m *fileMember) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return node.Decode(&m.Ref)
	}
	var raw map[string]struct {
		Hide *bool `yaml:"hide"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if len(raw) != 1 {
		return fmt.Errorf("line %d: pipeline member must be a name or a single-key mapping", node.Line)
	}
	for ref, opts := range raw {
		m.Ref = ref
		m.Hide = opts.Hide
	}
	return nil
}

type fileCatalog struct {
	Projects   map[string]fileProject   `yaml:"projects"`
	References map[string]fileReference `yaml:"references"`
	Pipelines  yaml.Node                `yaml:"pipelines"`
	Dirs       map[string]string        `yaml:"dirs"`
}

// Load reads the catalogue file at path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes catalogue YAML.
func Parse(data []byte) (*Catalog, error) {
	var raw fileCatalog
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	c := &Catalog{
		Projects:   make(map[string]*Project),
		References: make(map[string]*Reference),
		Dirs:       raw.Dirs,
	}
	if c.Dirs == nil {
		c.Dirs = make(map[string]string)
	}
	for name, p := range raw.Projects {
		c.Projects[name] = &Project{Name: name, Targets: p.Targets}
	}
	for name, r := range raw.References {
		if r.Dir == "" {
			return nil, fmt.Errorf("reference %q has no dir", name)
		}
		c.References[name] = &Reference{Name: name, Dir: r.Dir}
	}

	// Pipelines are decoded off the raw node to preserve declaration order;
	// a plain map would shuffle it.
	if raw.Pipelines.Kind != 0 {
		if raw.Pipelines.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("pipelines must be a mapping")
		}
		for i := 0; i+1 < len(raw.Pipelines.Content); i += 2 {
			nameNode, defNode := raw.Pipelines.Content[i], raw.Pipelines.Content[i+1]
			var fp filePipeline
			if err := defNode.Decode(&fp); err != nil {
				return nil, fmt.Errorf("pipeline %s: %w", nameNode.Value, err)
			}
			def := &pipeline.Def{Name: nameNode.Value, Hide: fp.Hide, Doc: fp.Doc}
			for _, m := range fp.Stages {
				def.Members = append(def.Members, pipeline.MemberRef{Ref: m.Ref, Hide: m.Hide})
			}
			c.Pipelines = append(c.Pipelines, def)
		}
	}
	return c, nil
}

// Apply registers the catalogue's reference stages and pipeline definitions.
// Call after built-in and user stages are registered, before Freeze/Check.
func (c *Catalog) Apply(reg *stage.Registry, exp *pipeline.Expander) error {
	for _, ref := range c.References {
		err := reg.Register(&stage.Stage{
			Name:    "ref_" + ref.Name,
			Doc:     "reference data set " + ref.Name,
			Outputs: []string{"{this}/sequences.fasta"},
		})
		if err != nil {
			return err
		}
	}
	for _, def := range c.Pipelines {
		if err := exp.Add(def); err != nil {
			return err
		}
	}
	return nil
}

// HasProject implements stack.ProjectSource.
func (c *Catalog) HasProject(name string) bool {
	_, ok := c.Projects[name]
	return ok
}

// Targets implements resolve.TargetProvider. The order is the declared
// order, stable across one build invocation.
func (c *Catalog) Targets(root string) ([]string, error) {
	p, ok := c.Projects[root]
	if !ok {
		return nil, fmt.Errorf("unknown project %q", root)
	}
	out := make([]string, len(p.Targets))
	copy(out, p.Targets)
	return out, nil
}

// Attribute implements resolve.AttributeProvider. Supported forms are
// "dir.<name>" and "ref.<name>.dir".
func (c *Catalog) Attribute(path string) (string, error) {
	parts := strings.Split(path, ".")
	switch {
	case len(parts) == 2 && parts[0] == "dir":
		if dir, ok := c.Dirs[parts[1]]; ok {
			return dir, nil
		}
	case len(parts) == 3 && parts[0] == "ref" && parts[2] == "dir":
		if ref, ok := c.References[parts[1]]; ok {
			return ref.Dir, nil
		}
	}
	return "", &resolve.UnknownAttributeError{Attribute: path}
}
