package project

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	ferrors "github.com/Iron-Ham/fspec/internal/errors"
	"github.com/Iron-Ham/fspec/internal/filemanager"
)

// WorkUnitOptions are the optional fields of a new work unit.
type WorkUnitOptions struct {
	Description string
	Type        WorkUnitType
	Epic        string
}

// WorkUnitFilter narrows WorkUnits. Empty fields match everything.
type WorkUnitFilter struct {
	Status Status
	Prefix string
	Epic   string
}

func (f WorkUnitFilter) matches(wu *WorkUnit) bool {
	if f.Status != "" && wu.Status != f.Status {
		return false
	}
	if f.Prefix != "" && !strings.HasPrefix(wu.ID, f.Prefix+"-") {
		return false
	}
	if f.Epic != "" && wu.Epic != f.Epic {
		return false
	}
	return true
}

// CreateWorkUnit allocates the next id for prefix and adds a backlog work
// unit. The id is allocated inside the transaction, so concurrent creators
// never receive the same number.
func (s *Store) CreateWorkUnit(ctx context.Context, prefix, title string, opts WorkUnitOptions) (*WorkUnit, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ferrors.NewValidationError("title must not be empty").WithField("title")
	}
	if opts.Type == "" {
		opts.Type = TypeStory
	}
	if !opts.Type.IsValid() {
		return nil, ferrors.NewValidationError("type must be one of: story, task, bug").
			WithField("type").WithValue(opts.Type)
	}

	prefixes, err := readOptional[PrefixesDoc](ctx, s, PrefixesFile)
	if err != nil {
		return nil, err
	}
	if _, ok := prefixes.Prefixes[prefix]; !ok {
		return nil, ferrors.NewNotFoundError("prefix", prefix).WithCause(ferrors.ErrPrefixNotRegistered)
	}

	if opts.Epic != "" {
		epics, err := readOptional[EpicsDoc](ctx, s, EpicsFile)
		if err != nil {
			return nil, err
		}
		if _, ok := epics.Epics[opts.Epic]; !ok {
			return nil, ferrors.NewNotFoundError("epic", opts.Epic).WithCause(ferrors.ErrEpicNotFound)
		}
	}

	var created WorkUnit
	err = filemanager.Transaction(ctx, s.files, s.Path(WorkUnitsFile), func(doc *WorkUnitsDoc) error {
		now := s.now()
		doc.normalize(now)

		id := fmt.Sprintf("%s-%03d", prefix, nextNumber(doc, prefix))
		wu := &WorkUnit{
			ID:          id,
			Title:       title,
			Description: opts.Description,
			Type:        opts.Type,
			Status:      StatusBacklog,
			Epic:        opts.Epic,
			CreatedAt:   now,
			UpdatedAt:   now,
			StateHistory: []StateChange{
				{State: StatusBacklog, Timestamp: now},
			},
		}
		doc.WorkUnits[id] = wu
		doc.States[StatusBacklog] = append(doc.States[StatusBacklog], id)
		doc.Meta.LastUpdated = now
		created = *wu
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("work unit created", "id", created.ID, "epic", created.Epic)

	if opts.Epic != "" {
		if err := s.linkEpic(ctx, opts.Epic, created.ID); err != nil {
			return &created, fmt.Errorf("work unit %s created but not linked to epic: %w", created.ID, err)
		}
	}
	return &created, nil
}

// nextNumber returns one more than the highest number used with prefix.
func nextNumber(doc *WorkUnitsDoc, prefix string) int {
	highest := 0
	for id := range doc.WorkUnits {
		p, n, ok := splitID(id)
		if ok && p == prefix && n > highest {
			highest = n
		}
	}
	return highest + 1
}

func splitID(id string) (string, int, bool) {
	m := idPattern.FindStringSubmatch(id)
	if m == nil {
		return "", 0, false
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, false
	}
	return m[1], n, true
}

// UpdateWorkUnitStatus moves a work unit to status, recording the change in
// its history. Moving to blocked requires a reason. Setting the current
// status again changes nothing.
func (s *Store) UpdateWorkUnitStatus(ctx context.Context, id string, status Status, reason string) (*WorkUnit, error) {
	if !status.IsValid() {
		return nil, ferrors.NewValidationError("unknown status").WithField("status").WithValue(status)
	}
	reason = strings.TrimSpace(reason)
	if status == StatusBlocked && reason == "" {
		return nil, ferrors.NewValidationError("a reason is required when blocking a work unit").WithField("reason")
	}

	var (
		updated WorkUnit
		from    Status
	)
	err := filemanager.Transaction(ctx, s.files, s.Path(WorkUnitsFile), func(doc *WorkUnitsDoc) error {
		wu, ok := doc.WorkUnits[id]
		if !ok {
			return ferrors.NewNotFoundError("work unit", id).WithCause(ferrors.ErrWorkUnitNotFound)
		}
		from = wu.Status
		if wu.Status == status {
			updated = *wu
			return nil
		}

		now := s.now()
		doc.normalize(now)
		doc.States[wu.Status] = slices.DeleteFunc(doc.States[wu.Status], func(v string) bool { return v == id })
		doc.States[status] = append(doc.States[status], id)

		wu.Status = status
		wu.UpdatedAt = now
		wu.BlockedReason = ""
		if status == StatusBlocked {
			wu.BlockedReason = reason
		}
		wu.StateHistory = append(wu.StateHistory, StateChange{State: status, Timestamp: now, Reason: reason})
		doc.Meta.LastUpdated = now
		updated = *wu
		return nil
	})
	if err != nil {
		return nil, err
	}

	if from != status {
		s.logger.Info("work unit status changed", "id", id, "from", string(from), "to", string(status))
	}
	return &updated, nil
}

// WorkUnit returns the work unit with the given id.
func (s *Store) WorkUnit(ctx context.Context, id string) (*WorkUnit, error) {
	doc, err := readOptional[WorkUnitsDoc](ctx, s, WorkUnitsFile)
	if err != nil {
		return nil, err
	}
	wu, ok := doc.WorkUnits[id]
	if !ok {
		return nil, ferrors.NewNotFoundError("work unit", id).WithCause(ferrors.ErrWorkUnitNotFound)
	}
	return wu, nil
}

// WorkUnits returns the work units matching filter, ordered by prefix and
// number.
func (s *Store) WorkUnits(ctx context.Context, filter WorkUnitFilter) ([]*WorkUnit, error) {
	doc, err := readOptional[WorkUnitsDoc](ctx, s, WorkUnitsFile)
	if err != nil {
		return nil, err
	}
	return filterWorkUnits(doc, filter), nil
}

func filterWorkUnits(doc WorkUnitsDoc, filter WorkUnitFilter) []*WorkUnit {
	var units []*WorkUnit
	for _, wu := range doc.WorkUnits {
		if filter.matches(wu) {
			units = append(units, wu)
		}
	}
	sortWorkUnits(units)
	return units
}

func sortWorkUnits(units []*WorkUnit) {
	sort.Slice(units, func(i, j int) bool {
		pi, ni, oki := splitID(units[i].ID)
		pj, nj, okj := splitID(units[j].ID)
		if !oki || !okj || pi != pj {
			return units[i].ID < units[j].ID
		}
		return ni < nj
	})
}
