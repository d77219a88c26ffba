package project

import (
	"context"
	"slices"
	"strings"

	ferrors "github.com/Iron-Ham/fspec/internal/errors"
	"github.com/Iron-Ham/fspec/internal/filemanager"
)

// CreatePrefix registers a work unit id prefix of 2-6 upper-case letters.
func (s *Store) CreatePrefix(ctx context.Context, prefix, description string) error {
	if !prefixPattern.MatchString(prefix) {
		return ferrors.NewValidationError("prefix must be 2-6 upper-case letters").
			WithField("prefix").WithValue(prefix)
	}

	err := filemanager.Transaction(ctx, s.files, s.Path(PrefixesFile), func(doc *PrefixesDoc) error {
		doc.normalize()
		if _, exists := doc.Prefixes[prefix]; exists {
			return ferrors.NewAlreadyExistsError("prefix", prefix)
		}
		doc.Prefixes[prefix] = Prefix{Description: strings.TrimSpace(description), CreatedAt: s.now()}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("prefix registered", "prefix", prefix)
	return nil
}

// Prefixes returns the registered prefixes.
func (s *Store) Prefixes(ctx context.Context) (map[string]Prefix, error) {
	doc, err := readOptional[PrefixesDoc](ctx, s, PrefixesFile)
	if err != nil {
		return nil, err
	}
	doc.normalize()
	return doc.Prefixes, nil
}

// CreateEpic adds an epic with a kebab-case id.
func (s *Store) CreateEpic(ctx context.Context, id, title, description string) (*Epic, error) {
	if !kebabPattern.MatchString(id) {
		return nil, ferrors.NewValidationError("epic id must be kebab-case").WithField("id").WithValue(id)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ferrors.NewValidationError("title must not be empty").WithField("title")
	}

	var created Epic
	err := filemanager.Transaction(ctx, s.files, s.Path(EpicsFile), func(doc *EpicsDoc) error {
		doc.normalize()
		if _, exists := doc.Epics[id]; exists {
			return ferrors.NewAlreadyExistsError("epic", id)
		}
		epic := &Epic{
			ID:          id,
			Title:       title,
			Description: strings.TrimSpace(description),
			WorkUnits:   []string{},
			CreatedAt:   s.now(),
		}
		doc.Epics[id] = epic
		created = *epic
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("epic created", "epic", id)
	return &created, nil
}

// Epics returns all epics.
func (s *Store) Epics(ctx context.Context) (map[string]*Epic, error) {
	doc, err := readOptional[EpicsDoc](ctx, s, EpicsFile)
	if err != nil {
		return nil, err
	}
	doc.normalize()
	return doc.Epics, nil
}

func (s *Store) linkEpic(ctx context.Context, epicID, workUnitID string) error {
	return filemanager.Transaction(ctx, s.files, s.Path(EpicsFile), func(doc *EpicsDoc) error {
		doc.normalize()
		epic, ok := doc.Epics[epicID]
		if !ok {
			return ferrors.NewNotFoundError("epic", epicID).WithCause(ferrors.ErrEpicNotFound)
		}
		if !slices.Contains(epic.WorkUnits, workUnitID) {
			epic.WorkUnits = append(epic.WorkUnits, workUnitID)
		}
		return nil
	})
}

// RegisterTag adds an @kebab-case tag to category, creating the category on
// first use. Tag names are unique across all categories.
func (s *Store) RegisterTag(ctx context.Context, category, name, description string) error {
	category = strings.TrimSpace(category)
	if category == "" {
		return ferrors.NewValidationError("category must not be empty").WithField("category")
	}
	if !tagPattern.MatchString(name) {
		return ferrors.NewValidationError("tag must look like @kebab-case").WithField("tag").WithValue(name)
	}

	err := filemanager.Transaction(ctx, s.files, s.Path(TagsFile), func(doc *TagsDoc) error {
		doc.normalize()
		for _, c := range doc.Categories {
			for _, t := range c.Tags {
				if t.Name == name {
					return ferrors.NewAlreadyExistsError("tag", name)
				}
			}
		}

		tag := Tag{Name: name, Description: strings.TrimSpace(description)}
		for i := range doc.Categories {
			if doc.Categories[i].Name == category {
				doc.Categories[i].Tags = append(doc.Categories[i].Tags, tag)
				return nil
			}
		}
		doc.Categories = append(doc.Categories, TagCategory{Name: category, Tags: []Tag{tag}})
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("tag registered", "tag", name, "category", category)
	return nil
}

// Tags returns the tag registry.
func (s *Store) Tags(ctx context.Context) (*TagsDoc, error) {
	doc, err := readOptional[TagsDoc](ctx, s, TagsFile)
	if err != nil {
		return nil, err
	}
	doc.normalize()
	return &doc, nil
}

// TagCount returns the number of tags across all categories.
func (d *TagsDoc) TagCount() int {
	n := 0
	for _, c := range d.Categories {
		n += len(c.Tags)
	}
	return n
}
