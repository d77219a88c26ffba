package project

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Column is one status lane of the board.
type Column struct {
	Status Status
	Units  []*WorkUnit
}

// Board is a point-in-time snapshot for the dashboard.
type Board struct {
	Columns []Column
	// EpicTitles maps epic id to title.
	EpicTitles map[string]string
	TagCount   int
	LoadedAt   time.Time
}

// Total returns the number of work units on the board.
func (b *Board) Total() int {
	n := 0
	for _, c := range b.Columns {
		n += len(c.Units)
	}
	return n
}

// Board loads work units, epics and tags concurrently and groups the work
// units by status. The three reads are independent, so the snapshot is
// consistent per document, not across documents.
func (s *Store) Board(ctx context.Context) (*Board, error) {
	var (
		units  WorkUnitsDoc
		epics  EpicsDoc
		tags   TagsDoc
		loaded = s.now()
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		units, err = readOptional[WorkUnitsDoc](gctx, s, WorkUnitsFile)
		return err
	})
	g.Go(func() error {
		var err error
		epics, err = readOptional[EpicsDoc](gctx, s, EpicsFile)
		return err
	})
	g.Go(func() error {
		var err error
		tags, err = readOptional[TagsDoc](gctx, s, TagsFile)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	board := &Board{
		EpicTitles: make(map[string]string, len(epics.Epics)),
		TagCount:   tags.TagCount(),
		LoadedAt:   loaded,
	}
	for id, e := range epics.Epics {
		board.EpicTitles[id] = e.Title
	}
	for _, status := range Statuses() {
		board.Columns = append(board.Columns, Column{
			Status: status,
			Units:  filterWorkUnits(units, WorkUnitFilter{Status: status}),
		})
	}

	s.logger.Debug("board loaded", "work_units", board.Total())
	return board, nil
}
