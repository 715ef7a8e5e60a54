package definition

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zjrosen/flowstate/internal/workflows/domain"
)

// File is the YAML authoring format for a workflow definition. This shape
// is the wire contract other tooling must honor to interoperate:
//
//	key: repair_job
//	name: Repair Job
//	states: [received, diagnosing, repairing, done]
//	transitions:
//	  received: [diagnosing]
//	  diagnosing: [repairing]
//	  repairing: [done]
//	initial_state: received
//	terminal_states: [done]
//	validators: [require-note]
type File struct {
	Key            string              `yaml:"key"`
	Name           string              `yaml:"name"`
	States         []string            `yaml:"states"`
	Transitions    map[string][]string `yaml:"transitions"`
	InitialState   string              `yaml:"initial_state"`
	TerminalStates []string            `yaml:"terminal_states"`
	Validators     []string            `yaml:"validators"`
}

// Parse decodes a definition from its YAML authoring format. It checks
// only that the document is well-formed and keyed; graph validation
// happens at registration.
func Parse(data []byte) (*domain.Definition, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing definition: %w", err)
	}
	if f.Key == "" {
		return nil, fmt.Errorf("parsing definition: missing key")
	}

	name := f.Name
	if name == "" {
		name = f.Key
	}

	return &domain.Definition{
		Key:            f.Key,
		Name:           name,
		States:         f.States,
		Transitions:    f.Transitions,
		InitialState:   f.InitialState,
		TerminalStates: f.TerminalStates,
		Validators:     f.Validators,
	}, nil
}

// LoadFile reads and parses a definition file.
func LoadFile(path string) (*domain.Definition, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the configured definitions directory
	if err != nil {
		return nil, fmt.Errorf("reading definition file: %w", err)
	}
	def, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", filepath.Base(path), err)
	}
	return def, nil
}

// LoadDir parses every .yaml/.yml file in dir, sorted by filename.
// A missing directory yields an empty result, not an error.
func LoadDir(dir string) ([]*domain.Definition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading definitions directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !isDefinitionFile(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	var defs []*domain.Definition
	for _, name := range names {
		def, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func isDefinitionFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
