package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaxonomyContains(t *testing.T) {
	tax := DefaultTaxonomy()

	assert.True(t, tax.Contains("Clinical Applications", "Diagnostics & Prognostics"))
	assert.True(t, tax.Contains(" clinical applications ", "diagnostics & prognostics"))
	assert.True(t, tax.Contains("Other", "anything goes"))
	assert.True(t, tax.Contains("Other", ""))
	assert.False(t, tax.Contains("Clinical Applications", "Drug Discovery & Development"))
	assert.False(t, tax.Contains("Quantum Computing", "Qubits"))
}

func TestTaxonomyCanonical(t *testing.T) {
	main, sub, ok := DefaultTaxonomy().Canonical("research & development", "drug discovery & development")
	require.True(t, ok)
	assert.Equal(t, "Research & Development", main)
	assert.Equal(t, "Drug Discovery & Development", sub)
}

func TestTaxonomyPromptListsEveryGroup(t *testing.T) {
	prompt := DefaultTaxonomy().Prompt()
	for _, group := range []string{
		"Clinical Applications", "Healthcare Operations", "Research & Development",
		"Evaluation & Implementation", "Ethical & Societal Implications",
		"Education & Workforce", "Other",
	} {
		assert.Contains(t, prompt, "\n"+group+"\n")
	}
	assert.Contains(t, prompt, "- Environmental Impact: Computational resource usage, sustainability concerns")
	assert.Contains(t, prompt, "- All other articles that don't fit a specific category")
}

func TestParseProjectsKeepsOrder(t *testing.T) {
	projects, err := ParseProjects([]byte(`{"Sepsis Watch": "early sepsis alerts", "RadGPT": "radiology report LLM"}`))
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "Sepsis Watch", projects[0].Name)
	assert.Equal(t, "RadGPT", projects[1].Name)

	name, ok := projects.Lookup("radgpt")
	require.True(t, ok)
	assert.Equal(t, "RadGPT", name)

	assert.True(t, strings.HasPrefix(projects.Prompt(), "- Sepsis Watch: early sepsis alerts\n"))
}

func TestParseProjectsRejectsDuplicates(t *testing.T) {
	_, err := ParseProjects([]byte("A: one\na: two\n"))
	require.Error(t, err)
}

func TestParseProjectsRejectsList(t *testing.T) {
	_, err := ParseProjects([]byte("- a\n- b\n"))
	require.Error(t, err)
}

func TestLoadProjectsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "projects.yaml")
	require.NoError(t, os.WriteFile(path, []byte("Oncology Agents: LLM agents for tumor boards\n"), 0o600))

	projects, err := LoadProjects(path)
	require.NoError(t, err)
	require.Equal(t, Projects{{Name: "Oncology Agents", Description: "LLM agents for tumor boards"}}, projects)
}
