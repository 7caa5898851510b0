package project

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// File is the on-disk shape of a project, shared by YAML and JSON.
type File struct {
	Name         string           `json:"name,omitempty" yaml:"name,omitempty"`
	Tasks        []TaskSpec       `json:"tasks" yaml:"tasks"`
	Dependencies []DependencySpec `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Collapsed    []string         `json:"collapsed,omitempty" yaml:"collapsed,omitempty"`
}

// TaskSpec is one task entry. Tasks are listed in outline order; children
// may appear before or after their parent.
type TaskSpec struct {
	ID       string     `json:"id" yaml:"id"`
	Name     string     `json:"name,omitempty" yaml:"name,omitempty"`
	Parent   string     `json:"parent,omitempty" yaml:"parent,omitempty"`
	Start    Date       `json:"start" yaml:"start"`
	End      Date       `json:"end" yaml:"end"`
	Progress int        `json:"progress,omitempty" yaml:"progress,omitempty"`
	Accepts  *[]string  `json:"accepts,omitempty" yaml:"accepts,omitempty"`
	Rules    []RuleSpec `json:"rules,omitempty" yaml:"rules,omitempty"`
}

// RuleSpec is one rule entry. Active defaults to true.
type RuleSpec struct {
	Type     string `json:"type" yaml:"type"`
	Date     Date   `json:"date" yaml:"date"`
	End      *Date  `json:"end,omitempty" yaml:"end,omitempty"`
	Active   *bool  `json:"active,omitempty" yaml:"active,omitempty"`
	Implicit bool   `json:"implicit,omitempty" yaml:"implicit,omitempty"`
}

// DependencySpec is one dependency entry. Type accepts the long names
// (end-start) and the short ones (FS).
type DependencySpec struct {
	ID   string `json:"id,omitempty" yaml:"id,omitempty"`
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
	Type string `json:"type,omitempty" yaml:"type,omitempty"`
	Lag  Lag    `json:"lag,omitempty" yaml:"lag,omitempty"`
}

// Date is a calendar date written as 2006-01-02, or a full RFC3339 time.
type Date struct {
	time.Time
}

// ParseDate parses either accepted date layout.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return Date{t}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD or RFC3339", s)
	}
	return Date{t}, nil
}

// String prints midnight UTC as a bare date and anything else as RFC3339.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	u := d.UTC()
	if u.Equal(u.Truncate(24 * time.Hour)) {
		return u.Format(time.DateOnly)
	}
	return d.Format(time.RFC3339)
}

func (d Date) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func (d *Date) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := ParseDate(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = parsed
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Lag is a signed offset written as a Go duration ("36h") or a day count
// ("2d", "-1d").
type Lag time.Duration

const day = 24 * time.Hour

// ParseLag parses either accepted lag form.
func ParseLag(s string) (Lag, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}
	if strings.HasSuffix(s, "d") {
		n, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return 0, fmt.Errorf("invalid lag %q: %w", s, err)
		}
		return Lag(time.Duration(n) * day), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid lag %q: want a duration like 36h or a day count like 2d", s)
	}
	return Lag(d), nil
}

// String prints whole days as "Nd" and anything else as a Go duration.
func (l Lag) String() string {
	d := time.Duration(l)
	if d == 0 {
		return "0"
	}
	if d%day == 0 {
		return fmt.Sprintf("%dd", d/day)
	}
	return d.String()
}

// IsZero lets omitempty drop a zero lag.
func (l Lag) IsZero() bool {
	return l == 0
}

func (l Lag) MarshalYAML() (interface{}, error) {
	return l.String(), nil
}

func (l *Lag) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := ParseLag(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*l = parsed
	return nil
}

func (l Lag) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

func (l *Lag) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseLag(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
