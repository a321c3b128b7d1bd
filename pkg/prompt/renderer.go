// Package prompt loads and renders the named prompt templates used by the
// LLM gateway. Built-in templates are embedded; a directory of overrides
// may shadow them by file name. Rendering is pure text substitution.
package prompt

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

//go:embed templates/*.tmpl
var builtinFS embed.FS

// Stable template names. The gateway addresses templates only through
// these; a rename is a breaking change for prompt overrides.
const (
	TaskDecomposition         = "task_decomposition"
	TaskPrioritization        = "task_prioritization"
	HypothesisGeneration      = "hypothesis_generation"
	HypothesisQueryGeneration = "hypothesis_query_generation"
	RelevanceEvaluation       = "relevance_evaluation"
	CoverageAssessment        = "coverage_assessment"
	SaturationDetection       = "saturation_detection"
	FollowUpGeneration        = "follow_up_generation"
	EntityExtraction          = "entity_extraction"
	ReportSynthesis           = "report_synthesis"
)

var (
	// ErrTemplateNotFound indicates the named template does not exist.
	ErrTemplateNotFound = errors.New("prompt template not found")

	// ErrMissingVariable indicates a template referenced a variable the
	// caller did not supply.
	ErrMissingVariable = errors.New("prompt variable missing")
)

// Renderer resolves template names to parsed templates.
type Renderer struct {
	templates map[string]*template.Template
}

// NewRenderer loads the embedded templates, then overlays any *.tmpl files
// found in overrideDir (empty string skips the overlay). Override parse
// errors fail loading; a missing override directory is not an error.
func NewRenderer(overrideDir string) (*Renderer, error) {
	r := &Renderer{templates: make(map[string]*template.Template)}

	entries, err := builtinFS.ReadDir("templates")
	if err != nil {
		return nil, fmt.Errorf("reading embedded templates: %w", err)
	}
	for _, e := range entries {
		data, err := builtinFS.ReadFile("templates/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("reading embedded template %s: %w", e.Name(), err)
		}
		if err := r.parse(e.Name(), string(data)); err != nil {
			return nil, err
		}
	}

	if overrideDir != "" {
		if err := r.overlay(overrideDir); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Renderer) overlay(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading prompt override dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".tmpl") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return fmt.Errorf("reading prompt override %s: %w", e.Name(), err)
		}
		if err := r.parse(e.Name(), string(data)); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) parse(filename, text string) error {
	name := strings.TrimSuffix(filename, ".tmpl")
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return fmt.Errorf("parsing template %s: %w", name, err)
	}
	r.templates[name] = tmpl
	return nil
}

// Names returns the loaded template names, for startup logging.
func (r *Renderer) Names() []string {
	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	return names
}

// Render resolves the named template with vars. Unknown names return
// ErrTemplateNotFound; referenced-but-absent variables return
// ErrMissingVariable. Both fail the enclosing LLM call.
func (r *Renderer) Render(name string, vars map[string]any) (string, error) {
	tmpl, ok := r.templates[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, vars); err != nil {
		if strings.Contains(err.Error(), "map has no entry for key") {
			return "", fmt.Errorf("%w: template %s: %v", ErrMissingVariable, name, err)
		}
		return "", fmt.Errorf("rendering template %s: %w", name, err)
	}
	return sb.String(), nil
}
