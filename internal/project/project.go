// Package project reads and writes timeline project files.
package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/timeline/internal/domain"
	"github.com/felixgeelhaar/timeline/internal/errors"
	"github.com/felixgeelhaar/timeline/internal/model"
)

// Project is a validated, decoded project file.
type Project struct {
	Name         string
	Tasks        []model.Task
	Dependencies []model.Dependency
	Collapsed    []domain.TaskID
}

// Snapshot returns the project as editor state. Collapsed rows are not part
// of the snapshot; callers apply them after loading.
func (p *Project) Snapshot() model.Snapshot {
	return model.Snapshot{Tasks: p.Tasks, Dependencies: p.Dependencies}
}

// Format names a supported encoding.
type Format string

// Supported formats
const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatOf picks the encoding from the file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", errors.Newf(errors.ErrCodeFileUnmarshal, "unsupported project file extension %q", filepath.Ext(path)).
			WithSuggestion("Use a .yaml, .yml or .json file")
	}
}

// Load reads and validates a project file.
func Load(path string) (*Project, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFoundError(path)
		}
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, fmt.Sprintf("read project file %s", path), err)
	}

	f, err := Decode(data, format)
	if err != nil {
		return nil, errors.NewFileUnmarshalError(path, strings.ToUpper(string(format)), err)
	}
	return f.Project()
}

// Decode parses raw bytes in the given format.
func Decode(data []byte, format Format) (*File, error) {
	var f File
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, err
		}
	default:
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, err
		}
	}
	return &f, nil
}

// Save writes p to path in the format its extension names.
func Save(p *Project, path string) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	data, err := Encode(FromProject(p), format)
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileMarshal, "encode project", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, fmt.Sprintf("write project file %s", path), err)
	}
	return nil
}

// Encode renders f in the given format.
func Encode(f *File, format Format) ([]byte, error) {
	if format == FormatJSON {
		return json.MarshalIndent(f, "", "  ")
	}
	return yaml.Marshal(f)
}

// Project validates f and converts it into model values.
func (f *File) Project() (*Project, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	p := &Project{Name: f.Name}
	for _, ts := range f.Tasks {
		t := model.Task{
			ID:         domain.TaskID(ts.ID),
			Name:       ts.Name,
			ParentID:   domain.TaskID(ts.Parent),
			OrderIndex: len(p.Tasks),
			Start:      ts.Start.Time,
			End:        ts.End.Time,
			Progress:   ts.Progress,
		}
		if ts.Accepts != nil {
			t.AcceptedChildKinds = []domain.TaskKind{}
			for _, k := range *ts.Accepts {
				kind, _ := domain.ParseTaskKind(k)
				t.AcceptedChildKinds = append(t.AcceptedChildKinds, kind)
			}
		}
		for _, rs := range ts.Rules {
			t.Rules = append(t.Rules, rs.rule())
		}
		p.Tasks = append(p.Tasks, t)
	}
	for _, ds := range f.Dependencies {
		typ := domain.EndToStart
		if ds.Type != "" {
			typ, _ = domain.ParseDependencyType(ds.Type)
		}
		p.Dependencies = append(p.Dependencies, model.Dependency{
			ID:            domain.DependencyID(ds.ID),
			PredecessorID: domain.TaskID(ds.From),
			SuccessorID:   domain.TaskID(ds.To),
			Type:          typ,
			Lag:           time.Duration(ds.Lag),
		})
	}
	for _, id := range f.Collapsed {
		p.Collapsed = append(p.Collapsed, domain.TaskID(id))
	}
	return p, nil
}

func (rs RuleSpec) rule() model.Rule {
	typ, _ := domain.ParseRuleType(rs.Type)
	r := model.Rule{Type: typ, Date: rs.Date.Time, Active: true, Implicit: rs.Implicit}
	if rs.End != nil {
		r.EndDate = rs.End.Time
	}
	if rs.Active != nil {
		r.Active = *rs.Active
	}
	return r
}

// FromProject converts model values back into the file shape.
func FromProject(p *Project) *File {
	f := &File{Name: p.Name}
	for _, t := range p.Tasks {
		ts := TaskSpec{
			ID:       t.ID.String(),
			Name:     t.Name,
			Parent:   t.ParentID.String(),
			Start:    Date{t.Start},
			End:      Date{t.End},
			Progress: t.Progress,
		}
		if t.AcceptedChildKinds != nil {
			kinds := make([]string, len(t.AcceptedChildKinds))
			for i, k := range t.AcceptedChildKinds {
				kinds[i] = k.String()
			}
			ts.Accepts = &kinds
		}
		for _, r := range t.Rules {
			rs := RuleSpec{Type: string(r.Type), Date: Date{r.Date}, Implicit: r.Implicit}
			if !r.EndDate.IsZero() {
				rs.End = &Date{r.EndDate}
			}
			if !r.Active {
				inactive := false
				rs.Active = &inactive
			}
			ts.Rules = append(ts.Rules, rs)
		}
		f.Tasks = append(f.Tasks, ts)
	}
	for _, d := range p.Dependencies {
		f.Dependencies = append(f.Dependencies, DependencySpec{
			ID:   string(d.ID),
			From: d.PredecessorID.String(),
			To:   d.SuccessorID.String(),
			Type: string(d.Type),
			Lag:  Lag(d.Lag),
		})
	}
	for _, id := range p.Collapsed {
		f.Collapsed = append(f.Collapsed, id.String())
	}
	return f
}
