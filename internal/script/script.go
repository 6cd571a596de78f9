// Package script reads headless command scripts and replays them against an
// engine through the same entry points an interactive host uses.
package script

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/model"
	"gopkg.in/yaml.v3"
)

// ErrInvalidScript is returned for scripts that cannot be replayed.
var ErrInvalidScript = errors.New("invalid script")

// Script is a network fixture plus the steps to replay on it.
type Script struct {
	Name string `yaml:"name"`
	// Model is the model made current before the first step.
	Model string `yaml:"model"`
	// Network is inline; NetworkFile is resolved relative to the script.
	Network     *model.Spec `yaml:"network"`
	NetworkFile string      `yaml:"network_file"`
	// Headless lets flows ask Answers instead of pausing on feedback.
	Headless bool     `yaml:"headless"`
	Answers  []string `yaml:"answers"`
	Steps    []Step   `yaml:"steps"`

	dir string
}

// Step is one action. Exactly one of the action fields is set; Expect may
// accompany any of them.
type Step struct {
	Flow    string         `yaml:"flow,omitempty"`
	Preload map[string]any `yaml:"preload,omitempty"`
	Click   *Pointer       `yaml:"click,omitempty"`
	Motion  *Pointer       `yaml:"motion,omitempty"`
	Select  *domain.Rect   `yaml:"select,omitempty"`
	Answer  *Reply         `yaml:"answer,omitempty"`
	Cancel  *string        `yaml:"cancel,omitempty"`
	Undo    bool           `yaml:"undo,omitempty"`
	Redo    bool           `yaml:"redo,omitempty"`
	Await   bool           `yaml:"await,omitempty"`
	Expect  *Expect        `yaml:"expect,omitempty"`
}

// Pointer is a click or motion position.
type Pointer struct {
	X       float64 `yaml:"x"`
	Y       float64 `yaml:"y"`
	Shifted bool    `yaml:"shifted"`
}

// Reply answers pending feedback.
type Reply struct {
	Choice string         `yaml:"choice"`
	Values map[string]any `yaml:"values"`
}

// Expect asserts on the engine after a step. Empty fields are not checked.
type Expect struct {
	Progress string `yaml:"progress"`
	Click    string `yaml:"click"`
	Mode     string `yaml:"mode"`
	Outcome  string `yaml:"outcome"`
	History  *int   `yaml:"history"`
	// Error is a substring the step's error must contain.
	Error string `yaml:"error"`
}

// Action names the step's action.
func (s Step) Action() string {
	switch {
	case s.Flow != "" && s.Preload != nil:
		return "preload"
	case s.Flow != "":
		return "flow"
	case s.Click != nil:
		return "click"
	case s.Motion != nil:
		return "motion"
	case s.Select != nil:
		return "select"
	case s.Answer != nil:
		return "answer"
	case s.Cancel != nil:
		return "cancel"
	case s.Undo:
		return "undo"
	case s.Redo:
		return "redo"
	case s.Await:
		return "await"
	}
	return ""
}

func (s Step) actions() int {
	n := 0
	for _, set := range []bool{s.Flow != "", s.Click != nil, s.Motion != nil, s.Select != nil,
		s.Answer != nil, s.Cancel != nil, s.Undo, s.Redo, s.Await} {
		if set {
			n++
		}
	}
	return n
}

// Parse decodes a script. Relative network files resolve against dir.
func Parse(data []byte, dir string) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScript, err)
	}
	s.dir = dir
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Load reads and parses the script at path.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return Parse(data, filepath.Dir(path))
}

// Validate checks that the script names a network and every step one action.
func (s *Script) Validate() error {
	if s.Network == nil && s.NetworkFile == "" {
		return fmt.Errorf("%w: network or network_file is required", ErrInvalidScript)
	}
	if s.Network != nil && s.NetworkFile != "" {
		return fmt.Errorf("%w: network and network_file are mutually exclusive", ErrInvalidScript)
	}
	for i, st := range s.Steps {
		if n := st.actions(); n != 1 {
			return fmt.Errorf("%w: step %d has %d actions, want 1", ErrInvalidScript, i+1, n)
		}
		if st.Preload != nil && st.Flow == "" {
			return fmt.Errorf("%w: step %d preloads without a flow", ErrInvalidScript, i+1)
		}
		if st.Cancel != nil {
			if _, err := parseMask(*st.Cancel); err != nil {
				return fmt.Errorf("%w: step %d: %v", ErrInvalidScript, i+1, err)
			}
		}
	}
	for _, a := range s.Answers {
		if !validChoice(a) {
			return fmt.Errorf("%w: unknown answer %q", ErrInvalidScript, a)
		}
	}
	return nil
}

// Spec returns the network spec, reading NetworkFile when needed.
func (s *Script) Spec() (model.Spec, error) {
	if s.Network != nil {
		return *s.Network, nil
	}
	path := s.NetworkFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.dir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Spec{}, fmt.Errorf("read network: %w", err)
	}
	var spec model.Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return model.Spec{}, fmt.Errorf("parse network %s: %w", path, err)
	}
	return spec, nil
}

func validChoice(s string) bool {
	switch s {
	case "ok", "yes", "no", "cancel":
		return true
	}
	return false
}
