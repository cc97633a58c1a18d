package gate

import (
	"fmt"
	"time"
)

// Strategy selects how a Locator value is interpreted.
type Strategy string

// Supported locator strategies.
const (
	ByID    Strategy = "id"
	ByCSS   Strategy = "css"
	ByXPath Strategy = "xpath"
)

// Locator identifies the element a gate step interacts with.
type Locator struct {
	Strategy Strategy `mapstructure:"by" json:"by"`
	Value    string   `mapstructure:"value" json:"value"`
}

func (l Locator) String() string {
	return fmt.Sprintf("%s=%s", l.Strategy, l.Value)
}

// Validate rejects empty or unknown locators.
func (l Locator) Validate() error {
	switch l.Strategy {
	case ByID, ByCSS, ByXPath:
	default:
		return fmt.Errorf("unknown locator strategy %q", l.Strategy)
	}
	if l.Value == "" {
		return fmt.Errorf("locator value is required")
	}
	return nil
}

// Step is one click-through obstacle.
type Step struct {
	Locator     Locator
	MaxWait     time.Duration
	Description string
}

// Sequence is the ordered list of gates for one service.
type Sequence struct {
	Name  string
	Steps []Step
}

// Validate checks every step in the sequence.
func (s Sequence) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("sequence name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("sequence %s: at least one step is required", s.Name)
	}
	for i, step := range s.Steps {
		if err := step.Locator.Validate(); err != nil {
			return fmt.Errorf("sequence %s step %d: %w", s.Name, i, err)
		}
		if step.MaxWait <= 0 {
			return fmt.Errorf("sequence %s step %d: max wait must be > 0", s.Name, i)
		}
	}
	return nil
}

// LaunchOptions configures a browser process.
type LaunchOptions struct {
	ExecPath        string
	UserAgent       string
	PageLoadTimeout time.Duration
	// Flags are extra command line switches, e.g. "no-sandbox": true.
	Flags map[string]any
}

// Snapshot is the diagnostic artifact captured when a step fails.
type Snapshot struct {
	HTML       []byte
	Screenshot []byte
	URL        string
}
