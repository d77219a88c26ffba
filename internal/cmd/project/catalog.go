package project

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/fspec/internal/cmd/app"
	"github.com/Iron-Ham/fspec/internal/tui/styles"
)

func newCreatePrefixCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create-prefix <PREFIX> <description>",
		Short: "Register a work unit id prefix",
		Long: `Register a work unit id prefix of 2-6 upper-case letters.
Work units are numbered per prefix, e.g. AUTH-001, AUTH-002.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.Open(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := a.Store.CreatePrefix(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), styles.SuccessMsg.Render("✓ Created prefix "+args[0]))
			return nil
		},
	}
}

func newCreateEpicCmd() *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "create-epic <id> <title>",
		Short: "Create an epic",
		Long:  `Create an epic with a kebab-case id, e.g. user-management.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.Open(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			epic, err := a.Store.CreateEpic(cmd.Context(), args[0], args[1], description)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), styles.SuccessMsg.Render(fmt.Sprintf("✓ Created epic %s (%s)", epic.ID, epic.Title)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "Epic description")
	return cmd
}

func newRegisterTagCmd() *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "register-tag <@tag> <category>",
		Short: "Register a feature tag",
		Long: `Register an @kebab-case tag in a category. The category is created on
first use. Tag names are unique across all categories.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.Open(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := a.Store.RegisterTag(cmd.Context(), args[1], args[0], description); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), styles.SuccessMsg.Render(fmt.Sprintf("✓ Registered %s in %s", args[0], args[1])))
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "Tag description")
	return cmd
}

func newListTagsCmd() *cobra.Command {
	var (
		category string
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "list-tags",
		Short: "List registered tags by category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.Open(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			tags, err := a.Store.Tags(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(tags)
			}

			shown := 0
			for _, c := range tags.Categories {
				if category != "" && c.Name != category {
					continue
				}
				fmt.Fprintln(out, styles.Title.Render(c.Name))
				for _, t := range c.Tags {
					if t.Description != "" {
						fmt.Fprintf(out, "  %-24s %s\n", t.Name, styles.Muted.Render(t.Description))
					} else {
						fmt.Fprintf(out, "  %s\n", t.Name)
					}
					shown++
				}
			}
			if shown == 0 {
				fmt.Fprintln(out, "No tags registered.")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "Only show this category")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the tag registry as JSON")
	return cmd
}
