package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/userwatch/internal/attr"
	"github.com/roach88/userwatch/internal/csvsource"
	"github.com/roach88/userwatch/internal/entity"
)

// MutateOptions holds flags for create and update.
type MutateOptions struct {
	*RootOptions
	Attrs []string // key=value pairs
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		Long: `Load the users file and print every record in file order.

A missing users file is created with the built-in seed records first.

Examples:
  userwatch list
  userwatch list --source ./data/users.csv --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(rootOpts, cmd)
		},
	}
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MutateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		Long: `Create a user with a freshly generated id and notify observers.

The users file has a column for name and email only, so those are the
attributes accepted here. Values are stored as text.

Examples:
  userwatch create --attr name=Ada --attr email=ada@example.com
  userwatch create -a name=Ada`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(opts, cmd)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Attrs, "attr", "a", nil, "attribute as key=value (repeatable)")
	return cmd
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MutateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a user",
		Long: `Merge attributes into an existing user and notify observers.

Attributes not given keep their current values. Only name and email
can be set.

Exit codes:
  0 - Updated
  1 - Unknown id, or an observer failed (the update is kept)
  2 - Command error

Examples:
  userwatch update 2 --attr email=jane@new.example.com`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Attrs, "attr", "a", nil, "attribute as key=value (repeatable)")
	_ = cmd.MarkFlagRequired("attr")
	return cmd
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a user",
		Long: `Remove a user and notify observers with the removed record.

Examples:
  userwatch delete 3`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(rootOpts, args[0], cmd)
		},
	}
}

// entityList renders a list of entities one per line in text mode.
type entityList []entity.Entity

func (l entityList) String() string {
	if len(l) == 0 {
		return "No users."
	}
	lines := make([]string, len(l))
	for i, e := range l {
		lines[i] = e.String()
	}
	return strings.Join(lines, "\n")
}

func runList(opts *RootOptions, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	s, err := openSession(cmd.Context(), opts)
	if err != nil {
		return f.Fail("failed to load users", err)
	}
	defer s.Close()

	return f.Success(entityList(s.store.List()))
}

func runCreate(opts *MutateOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	attrs, err := parseAttrs(opts.Attrs)
	if err != nil {
		return f.Fail("invalid --attr", err)
	}

	return mutate(cmd.Context(), opts.RootOptions, f, "create", func(st *entity.Store) (entity.Entity, error) {
		return st.Create(attrs)
	})
}

func runUpdate(opts *MutateOptions, id string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	attrs, err := parseAttrs(opts.Attrs)
	if err != nil {
		return f.Fail("invalid --attr", err)
	}

	return mutate(cmd.Context(), opts.RootOptions, f, "update", func(st *entity.Store) (entity.Entity, error) {
		return st.Update(id, attrs)
	})
}

func runDelete(opts *RootOptions, id string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	return mutate(cmd.Context(), opts, f, "delete", func(st *entity.Store) (entity.Entity, error) {
		return st.Delete(id)
	})
}

// parseAttrs parses key=value flags into attributes the users file can
// hold. Anything else is refused before the store is touched, so a
// committed change is never dropped on save.
func parseAttrs(kvs []string) (attr.Attributes, error) {
	attrs, err := attr.ParseAll(kvs)
	if err != nil {
		return nil, err
	}
	return csvsource.Normalize(attrs)
}

// mutate opens a session, applies op, saves the collection when the
// mutation took effect and prints the affected entity.
func mutate(ctx context.Context, opts *RootOptions, f *OutputFormatter, verb string, op func(*entity.Store) (entity.Entity, error)) error {
	s, err := openSession(ctx, opts)
	if err != nil {
		return f.Fail("failed to load users", err)
	}
	defer s.Close()

	e, opErr := op(s.store)
	if committed(opErr) {
		if err := s.save(); err != nil {
			return f.Fail("failed to save users", err)
		}
		f.VerboseLog("%s: saved %d users to %s", verb, s.store.Len(), s.source.Name())
	}
	if opErr != nil {
		return f.Fail(fmt.Sprintf("%s failed", verb), opErr)
	}

	return f.Success(e)
}
