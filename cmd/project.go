package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	errors "github.com/Laisky/errors/v2"
	gconfig "github.com/Laisky/go-config/v2"
	gcmd "github.com/Laisky/go-utils/v6/cmd"
	"github.com/Laisky/zap"
	"github.com/spf13/cobra"

	"github.com/Laisky/texpad/internal/project"
	"github.com/Laisky/texpad/library/log"
)

var projectCMD = &cobra.Command{
	Use:   "project",
	Short: "manage projects",
	Args:  gcmd.NoExtraArgs,
}

var projectCreateCMD = &cobra.Command{
	Use:   "create NAME",
	Short: "create a project seeded with main.tex",
	Args:  cobra.ExactArgs(1),
	PreRun: func(cmd *cobra.Command, args []string) {
		if err := initialize(cmd.Context(), cmd); err != nil {
			log.Logger.Panic("init", zap.Error(err))
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(store project.Store) error {
			p, err := store.CreateProject(cmd.Context(), args[0], gconfig.Shared.GetString("description"))
			if err != nil {
				return errors.Wrap(err, "create project")
			}
			fmt.Fprintln(cmd.OutOrStdout(), p.Project.ID)
			return nil
		})
	},
}

var projectListCMD = &cobra.Command{
	Use:   "list",
	Short: "list projects, newest first",
	Args:  gcmd.NoExtraArgs,
	PreRun: func(cmd *cobra.Command, args []string) {
		if err := initialize(cmd.Context(), cmd); err != nil {
			log.Logger.Panic("init", zap.Error(err))
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(store project.Store) error {
			ps, err := store.ListProjects(cmd.Context())
			if err != nil {
				return errors.Wrap(err, "list projects")
			}
			return printProjects(cmd.OutOrStdout(), ps)
		})
	},
}

func init() {
	rootCMD.AddCommand(projectCMD)
	projectCMD.AddCommand(projectCreateCMD, projectListCMD)
	projectCreateCMD.Flags().String("description", "", "project description")
}

// withStore opens the configured store for the duration of fn.
func withStore(ctx context.Context, fn func(project.Store) error) (err error) {
	st, err := openStore(ctx)
	if err != nil {
		return errors.Wrap(err, "open store")
	}
	defer func() {
		if closeErr := st.Close(context.Background()); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	return fn(st)
}

func printProjects(w io.Writer, ps []project.Project) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCREATED\tDESCRIPTION")
	for _, p := range ps {
		created := "-"
		if !p.CreatedAt.IsZero() {
			created = p.CreatedAt.Local().Format(time.DateTime)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Name, created, p.Description)
	}
	return errors.Wrap(tw.Flush(), "flush")
}
