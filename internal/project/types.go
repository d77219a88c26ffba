package project

import (
	"regexp"
	"slices"
	"time"
)

// Document file names under the spec directory.
const (
	SpecDirName    = "spec"
	WorkUnitsFile  = "work-units.json"
	PrefixesFile   = "prefixes.json"
	EpicsFile      = "epics.json"
	TagsFile       = "tags.json"
	FoundationFile = "foundation.json"
)

// DocumentFiles lists every tracked document.
func DocumentFiles() []string {
	return []string{WorkUnitsFile, PrefixesFile, EpicsFile, TagsFile, FoundationFile}
}

// Status is the workflow state of a work unit.
type Status string

// Work unit statuses in workflow order, with blocked last.
const (
	StatusBacklog      Status = "backlog"
	StatusSpecifying   Status = "specifying"
	StatusTesting      Status = "testing"
	StatusImplementing Status = "implementing"
	StatusValidating   Status = "validating"
	StatusDone         Status = "done"
	StatusBlocked      Status = "blocked"
)

// Statuses returns all statuses in board column order.
func Statuses() []Status {
	return []Status{
		StatusBacklog,
		StatusSpecifying,
		StatusTesting,
		StatusImplementing,
		StatusValidating,
		StatusDone,
		StatusBlocked,
	}
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	return slices.Contains(Statuses(), s)
}

// WorkUnitType classifies a work unit.
type WorkUnitType string

// Work unit types.
const (
	TypeStory WorkUnitType = "story"
	TypeTask  WorkUnitType = "task"
	TypeBug   WorkUnitType = "bug"
)

// IsValid reports whether t is a known type.
func (t WorkUnitType) IsValid() bool {
	return t == TypeStory || t == TypeTask || t == TypeBug
}

var (
	prefixPattern = regexp.MustCompile(`^[A-Z]{2,6}$`)
	kebabPattern  = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
	tagPattern    = regexp.MustCompile(`^@[a-z0-9]+(-[a-z0-9]+)*$`)
	idPattern     = regexp.MustCompile(`^([A-Z]{2,6})-(\d+)$`)
)

// Meta is the bookkeeping header of work-units.json.
type Meta struct {
	Version     string    `json:"version"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// StateChange is one entry of a work unit's history.
type StateChange struct {
	State     Status    `json:"state"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason,omitempty"`
}

// WorkUnit is a story, task or bug tracked on the board.
type WorkUnit struct {
	ID            string        `json:"id"`
	Title         string        `json:"title"`
	Description   string        `json:"description,omitempty"`
	Type          WorkUnitType  `json:"type"`
	Status        Status        `json:"status"`
	Epic          string        `json:"epic,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
	BlockedReason string        `json:"blockedReason,omitempty"`
	StateHistory  []StateChange `json:"stateHistory"`
}

// WorkUnitsDoc is the content of work-units.json.
type WorkUnitsDoc struct {
	Meta      Meta                 `json:"meta"`
	WorkUnits map[string]*WorkUnit `json:"workUnits"`
	States    map[Status][]string  `json:"states"`
}

// Prefix is a registered work unit id prefix.
type Prefix struct {
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

// PrefixesDoc is the content of prefixes.json.
type PrefixesDoc struct {
	Prefixes map[string]Prefix `json:"prefixes"`
}

// Epic groups related work units.
type Epic struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	WorkUnits   []string  `json:"workUnits"`
	CreatedAt   time.Time `json:"createdAt"`
}

// EpicsDoc is the content of epics.json.
type EpicsDoc struct {
	Epics map[string]*Epic `json:"epics"`
}

// Tag is a registered feature-file tag.
type Tag struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// TagCategory groups tags.
type TagCategory struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Tags        []Tag  `json:"tags"`
}

// TagsDoc is the content of tags.json.
type TagsDoc struct {
	Categories []TagCategory `json:"categories"`
}

// ProjectInfo is the foundation's project section.
type ProjectInfo struct {
	Name        string `json:"name"`
	Vision      string `json:"vision"`
	ProjectType string `json:"projectType"`
}

// Problem describes the primary problem the project addresses.
type Problem struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Impact      string `json:"impact"`
}

// ProblemSpace is the foundation's problem section.
type ProblemSpace struct {
	PrimaryProblem Problem `json:"primaryProblem"`
}

// SolutionSpace is the foundation's solution section.
type SolutionSpace struct {
	Overview     string   `json:"overview"`
	Capabilities []string `json:"capabilities"`
}

// FoundationDoc is the content of foundation.json.
type FoundationDoc struct {
	Version       string        `json:"version"`
	Project       ProjectInfo   `json:"project"`
	ProblemSpace  ProblemSpace  `json:"problemSpace"`
	SolutionSpace SolutionSpace `json:"solutionSpace"`
}

// DocumentVersion is written into new documents.
const DocumentVersion = "2.0.0"
