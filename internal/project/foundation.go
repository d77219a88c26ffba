package project

import (
	"context"
	"sort"
	"strings"

	ferrors "github.com/Iron-Ham/fspec/internal/errors"
	"github.com/Iron-Ham/fspec/internal/filemanager"
)

// foundationSetters maps the dotted field names accepted by
// UpdateFoundation to the edit they perform.
var foundationSetters = map[string]func(*FoundationDoc, string){
	"project.name":        func(d *FoundationDoc, v string) { d.Project.Name = v },
	"project.vision":      func(d *FoundationDoc, v string) { d.Project.Vision = v },
	"project.projectType": func(d *FoundationDoc, v string) { d.Project.ProjectType = v },
	"problemSpace.primaryProblem.title": func(d *FoundationDoc, v string) {
		d.ProblemSpace.PrimaryProblem.Title = v
	},
	"problemSpace.primaryProblem.description": func(d *FoundationDoc, v string) {
		d.ProblemSpace.PrimaryProblem.Description = v
	},
	"problemSpace.primaryProblem.impact": func(d *FoundationDoc, v string) {
		d.ProblemSpace.PrimaryProblem.Impact = v
	},
	"solutionSpace.overview": func(d *FoundationDoc, v string) { d.SolutionSpace.Overview = v },
	"solutionSpace.capabilities": func(d *FoundationDoc, v string) {
		d.SolutionSpace.Capabilities = append(d.SolutionSpace.Capabilities, v)
	},
}

// FoundationFields returns the fields UpdateFoundation accepts, sorted.
func FoundationFields() []string {
	fields := make([]string, 0, len(foundationSetters))
	for f := range foundationSetters {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// Foundation returns the foundation document.
func (s *Store) Foundation(ctx context.Context) (*FoundationDoc, error) {
	doc, err := readOptional[FoundationDoc](ctx, s, FoundationFile)
	if err != nil {
		return nil, err
	}
	doc.normalize()
	return &doc, nil
}

// UpdateFoundation sets one dotted field of the foundation. The
// solutionSpace.capabilities field appends instead of replacing.
func (s *Store) UpdateFoundation(ctx context.Context, field, value string) error {
	set, ok := foundationSetters[field]
	if !ok {
		return ferrors.NewValidationError("field must be one of: " + strings.Join(FoundationFields(), ", ")).
			WithField("field").WithValue(field)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return ferrors.NewValidationError("value must not be empty").WithField(field)
	}

	err := filemanager.Transaction(ctx, s.files, s.Path(FoundationFile), func(doc *FoundationDoc) error {
		doc.normalize()
		set(doc, value)
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("foundation updated", "field", field)
	return nil
}
