package catalog

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Project is a configured research project articles can be assigned to.
type Project struct {
	Name        string
	Description string
}

// Projects is the ordered project catalog.
type Projects []Project

// Lookup resolves a project name case-insensitively to its configured spelling.
func (p Projects) Lookup(name string) (string, bool) {
	needle := normalize(name)
	for _, project := range p {
		if normalize(project.Name) == needle {
			return project.Name, true
		}
	}
	return "", false
}

// Prompt renders the catalog as "- name: description" lines.
func (p Projects) Prompt() string {
	lines := make([]string, 0, len(p))
	for _, project := range p {
		lines = append(lines, fmt.Sprintf("- %s: %s", project.Name, project.Description))
	}
	return strings.Join(lines, "\n")
}

// Catalog bundles the immutable reference data consumed by the gate and the classifier.
type Catalog struct {
	Taxonomy       Taxonomy
	Projects       Projects
	Keywords       []string
	AIKeywords     []string
	TrustedSources []string
}

// Default returns the built-in catalog with an empty project list.
func Default() Catalog {
	return Catalog{
		Taxonomy:       DefaultTaxonomy(),
		Keywords:       MedicalKeywords,
		AIKeywords:     AIKeywords,
		TrustedSources: TrustedSources,
	}
}

// LoadProjects reads a name→description mapping from a YAML or JSON file,
// keeping the file's key order.
func LoadProjects(path string) (Projects, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read projects %s: %w", path, err)
	}
	return ParseProjects(raw)
}

// ParseProjects decodes a name→description mapping.
func ParseProjects(raw []byte) (Projects, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse projects: %w", err)
	}
	if len(doc.Content) == 0 {
		return Projects{}, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parse projects: expected a mapping of name to description")
	}

	projects := make(Projects, 0, len(root.Content)/2)
	seen := map[string]struct{}{}
	for i := 0; i+1 < len(root.Content); i += 2 {
		name := strings.TrimSpace(root.Content[i].Value)
		if name == "" {
			continue
		}
		if _, dup := seen[normalize(name)]; dup {
			return nil, fmt.Errorf("parse projects: duplicate project %q", name)
		}
		seen[normalize(name)] = struct{}{}
		projects = append(projects, Project{Name: name, Description: strings.TrimSpace(root.Content[i+1].Value)})
	}
	return projects, nil
}
