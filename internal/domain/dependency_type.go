package domain

import "fmt"

// DependencyType names which end of the predecessor drives which end of the successor.
type DependencyType string

// Dependency types
const (
	StartToStart DependencyType = "start-start"
	StartToEnd   DependencyType = "start-end"
	EndToStart   DependencyType = "end-start"
	EndToEnd     DependencyType = "end-end"
)

// AllDependencyTypes lists every dependency type.
var AllDependencyTypes = []DependencyType{StartToStart, StartToEnd, EndToStart, EndToEnd}

// Endpoint selects the start or end of a task span.
type Endpoint int

const (
	// EndpointStart is the start of a span
	EndpointStart Endpoint = iota
	// EndpointEnd is the end of a span
	EndpointEnd
)

// String returns the string representation
func (e Endpoint) String() string {
	if e == EndpointEnd {
		return "end"
	}
	return "start"
}

// ParseDependencyType creates a DependencyType with validation. The short
// forms SS, SF, FS and FF are accepted as well.
func ParseDependencyType(value string) (DependencyType, error) {
	switch value {
	case "SS", "ss":
		return StartToStart, nil
	case "SF", "sf":
		return StartToEnd, nil
	case "FS", "fs":
		return EndToStart, nil
	case "FF", "ff":
		return EndToEnd, nil
	}
	t := DependencyType(value)
	if err := t.Validate(); err != nil {
		return "", err
	}
	return t, nil
}

// Validate checks if the dependency type is valid
func (t DependencyType) Validate() error {
	switch t {
	case StartToStart, StartToEnd, EndToStart, EndToEnd:
		return nil
	default:
		return fmt.Errorf("invalid dependency type %q: must be start-start, start-end, end-start, or end-end", string(t))
	}
}

// String returns the string representation
func (t DependencyType) String() string {
	return string(t)
}

// Source is the predecessor endpoint the dependency anchors on.
func (t DependencyType) Source() Endpoint {
	switch t {
	case EndToStart, EndToEnd:
		return EndpointEnd
	default:
		return EndpointStart
	}
}

// Target is the successor endpoint the dependency drives.
func (t DependencyType) Target() Endpoint {
	switch t {
	case StartToEnd, EndToEnd:
		return EndpointEnd
	default:
		return EndpointStart
	}
}
