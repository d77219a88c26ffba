// Package project implements fspec's project documents: work units, id
// prefixes, epics, tags and the foundation. Every read and write goes
// through a filemanager.Manager, so concurrent commands and the dashboard
// never observe or produce a torn document.
//
// Each mutating operation is a single transaction on the one document it
// changes. Checks against other documents (does the prefix exist, does the
// epic exist) are plain reads taken before the transaction; a concurrent
// delete between the two is not detected.
package project

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	ferrors "github.com/Iron-Ham/fspec/internal/errors"
	"github.com/Iron-Ham/fspec/internal/filemanager"
	"github.com/Iron-Ham/fspec/internal/logging"
)

// Store reads and mutates the documents of one project.
type Store struct {
	root    string
	specDir string
	files   *filemanager.Manager
	logger  *logging.Logger
	now     func() time.Time
}

// NewStore creates a Store for the project at root. A nil logger discards
// output.
func NewStore(root string, files *filemanager.Manager, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Store{
		root:    root,
		specDir: filepath.Join(root, SpecDirName),
		files:   files,
		logger:  logger.WithComponent("project"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Root returns the project root.
func (s *Store) Root() string {
	return s.root
}

// SpecDir returns the directory holding the documents.
func (s *Store) SpecDir() string {
	return s.specDir
}

// Path returns the location of the named document.
func (s *Store) Path(name string) string {
	return filepath.Join(s.specDir, name)
}

// Init creates the spec directory and seeds every missing or empty
// document. It returns the names of the documents it seeded and leaves
// existing content alone.
func (s *Store) Init(ctx context.Context) ([]string, error) {
	if err := os.MkdirAll(s.specDir, 0755); err != nil {
		return nil, ferrors.NewFsError("create spec directory", s.specDir, err)
	}

	now := s.now()
	var seeded []string

	steps := []struct {
		name string
		run  func() (bool, error)
	}{
		{WorkUnitsFile, func() (bool, error) {
			var fresh bool
			err := filemanager.Transaction(ctx, s.files, s.Path(WorkUnitsFile), func(doc *WorkUnitsDoc) error {
				fresh = doc.WorkUnits == nil && doc.Meta.Version == ""
				doc.normalize(now)
				return nil
			})
			return fresh, err
		}},
		{PrefixesFile, func() (bool, error) {
			var fresh bool
			err := filemanager.Transaction(ctx, s.files, s.Path(PrefixesFile), func(doc *PrefixesDoc) error {
				fresh = doc.Prefixes == nil
				doc.normalize()
				return nil
			})
			return fresh, err
		}},
		{EpicsFile, func() (bool, error) {
			var fresh bool
			err := filemanager.Transaction(ctx, s.files, s.Path(EpicsFile), func(doc *EpicsDoc) error {
				fresh = doc.Epics == nil
				doc.normalize()
				return nil
			})
			return fresh, err
		}},
		{TagsFile, func() (bool, error) {
			var fresh bool
			err := filemanager.Transaction(ctx, s.files, s.Path(TagsFile), func(doc *TagsDoc) error {
				fresh = doc.Categories == nil
				doc.normalize()
				return nil
			})
			return fresh, err
		}},
		{FoundationFile, func() (bool, error) {
			var fresh bool
			err := filemanager.Transaction(ctx, s.files, s.Path(FoundationFile), func(doc *FoundationDoc) error {
				fresh = doc.Version == ""
				doc.normalize()
				return nil
			})
			return fresh, err
		}},
	}

	for _, step := range steps {
		fresh, err := step.run()
		if err != nil {
			return seeded, err
		}
		if fresh {
			seeded = append(seeded, step.name)
		}
	}

	s.logger.Info("project initialized", "root", s.root, "seeded", len(seeded))
	return seeded, nil
}

// readOptional reads a document, treating a missing file as the zero value.
func readOptional[T any](ctx context.Context, s *Store, name string) (T, error) {
	doc, err := filemanager.Read[T](ctx, s.files, s.Path(name))
	if err != nil && ferrors.Is(err, fs.ErrNotExist) {
		var zero T
		return zero, nil
	}
	return doc, err
}

func (d *WorkUnitsDoc) normalize(now time.Time) {
	if d.Meta.Version == "" {
		d.Meta.Version = DocumentVersion
		d.Meta.LastUpdated = now
	}
	if d.WorkUnits == nil {
		d.WorkUnits = make(map[string]*WorkUnit)
	}
	if d.States == nil {
		d.States = make(map[Status][]string)
	}
	for _, status := range Statuses() {
		if d.States[status] == nil {
			d.States[status] = []string{}
		}
	}
}

func (d *PrefixesDoc) normalize() {
	if d.Prefixes == nil {
		d.Prefixes = make(map[string]Prefix)
	}
}

func (d *EpicsDoc) normalize() {
	if d.Epics == nil {
		d.Epics = make(map[string]*Epic)
	}
}

func (d *TagsDoc) normalize() {
	if d.Categories == nil {
		d.Categories = []TagCategory{}
	}
}

func (d *FoundationDoc) normalize() {
	if d.Version == "" {
		d.Version = DocumentVersion
	}
	if d.SolutionSpace.Capabilities == nil {
		d.SolutionSpace.Capabilities = []string{}
	}
}
