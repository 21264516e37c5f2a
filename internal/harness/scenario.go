package harness

import (
	"bytes"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/semstore/internal/errors"
	"github.com/roach88/semstore/internal/factfile"
)

// Scenario defines a sequence of store operations.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	Config Config `yaml:"config,omitempty"`

	// Steps run in order against one database.
	Steps []Step `yaml:"steps"`
}

// Config overrides the defaults the harness runs with.
type Config struct {
	// EnableUpdateJobs defaults to true.
	EnableUpdateJobs *bool `yaml:"enable_update_jobs,omitempty"`

	// IDRetention is a store.IDRetention name.
	IDRetention string `yaml:"id_retention,omitempty"`

	// Language selects the locale table for subject text.
	Language string `yaml:"language,omitempty"`

	MaxSize  *int `yaml:"max_size,omitempty"`
	MaxDepth *int `yaml:"max_depth,omitempty"`
}

// Step is one operation. Exactly one of Update, Delete, Concepts and
// Advance is set.
type Step struct {
	Update *factfile.Document `yaml:"update,omitempty"`

	// ChangeProp marks an update as triggered by change propagation.
	ChangeProp bool `yaml:"change_prop,omitempty"`

	// UpdateJobs overrides the store-wide job mode for one update.
	UpdateJobs *bool `yaml:"update_jobs,omitempty"`

	// Delete is the subject text to remove with the writer.
	Delete string `yaml:"delete,omitempty"`

	Concepts *ConceptStep `yaml:"concepts,omitempty"`

	// Advance moves the fake clock, e.g. "90m".
	Advance string `yaml:"advance,omitempty"`
}

// ConceptStep is one concept cache manager run.
type ConceptStep struct {
	Action     string `yaml:"action"`
	Concept    string `yaml:"concept,omitempty"`
	Start      int64  `yaml:"start,omitempty"`
	End        int64  `yaml:"end,omitempty"`
	UpdateOnly bool   `yaml:"update_only,omitempty"`
	OldMinutes int    `yaml:"old,omitempty"`
	HardOnly   bool   `yaml:"hard,omitempty"`
	Verbose    bool   `yaml:"verbose,omitempty"`
}

// Step kinds as recorded in snapshots.
const (
	StepUpdate   = "update"
	StepDelete   = "delete"
	StepConcepts = "concepts"
	StepAdvance  = "advance"
)

// Kind names the operation of the step, or "" when the step sets none
// or several.
func (s Step) Kind() string {
	kind, n := "", 0
	if s.Update != nil {
		kind, n = StepUpdate, n+1
	}
	if s.Delete != "" {
		kind, n = StepDelete, n+1
	}
	if s.Concepts != nil {
		kind, n = StepConcepts, n+1
	}
	if s.Advance != "" {
		kind, n = StepAdvance, n+1
	}
	if n != 1 {
		return ""
	}
	return kind
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read scenario file")
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field validation.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, errors.Wrap(err, "failed to parse YAML")
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, errors.Wrap(err, "invalid scenario")
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if s.Description == "" {
		return errors.New("description is required")
	}
	if len(s.Steps) == 0 {
		return errors.New("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		switch step.Kind() {
		case "":
			return errors.Newf("step %d must set exactly one of update, delete, concepts, advance", i+1)
		case StepConcepts:
			if step.Concepts.Action == "" {
				return errors.Newf("step %d: concepts action is required", i+1)
			}
		case StepAdvance:
			if _, err := time.ParseDuration(step.Advance); err != nil {
				return errors.Wrapf(err, "step %d: advance", i+1)
			}
		}
		if (step.ChangeProp || step.UpdateJobs != nil) && step.Update == nil {
			return errors.Newf("step %d: change_prop and update_jobs apply to update steps only", i+1)
		}
	}
	return nil
}
