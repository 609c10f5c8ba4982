package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	errors "github.com/Laisky/errors/v2"
	gconfig "github.com/Laisky/go-config/v2"
	gcmd "github.com/Laisky/go-utils/v6/cmd"
	logSDK "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Laisky/texpad/cmd/tui"
	"github.com/Laisky/texpad/internal/project"
	"github.com/Laisky/texpad/internal/workspace"
	"github.com/Laisky/texpad/library/log"
)

const closeTimeout = 15 * time.Second

var tuiCMD = &cobra.Command{
	Use:   "tui",
	Short: "Open a project in the terminal workspace",
	Long: `Open a project in a three-pane terminal workspace: file explorer, editor and preview.

Edits are saved automatically after a short pause, ctrl+s saves at once.
Without --project the most recently created project is opened, an empty
store gets a new "untitled" project.

Logs go to stderr, redirect it to keep the screen clean:
  texpad tui -c settings.yml 2>texpad.log

Keyboard shortcuts:
  tab            Switch between explorer and editor
  enter          Open the selected file (explorer)
  ctrl+s         Save now
  ctrl+b/ctrl+t  Insert \textbf{} / \textit{}
  ctrl+n         New file
  ctrl+r         Rename the active tab
  ctrl+d         Delete the active file
  ctrl+w         Close the active tab
  ctrl+←/ctrl+→  Previous / next tab
  ctrl+c         Quit`,
	Args: gcmd.NoExtraArgs,
	PreRun: func(cmd *cobra.Command, args []string) {
		if err := initialize(cmd.Context(), cmd); err != nil {
			log.Logger.Panic("init", zap.Error(err))
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runTUI(ctx, gconfig.Shared.GetString("project"))
	},
}

func init() {
	rootCMD.AddCommand(tuiCMD)
	tuiCMD.Flags().String("project", "", "project id to open")
}

// runTUI opens the workspace of projectID and runs the interactive program until it quits.
func runTUI(ctx context.Context, projectID string) (err error) {
	if !gconfig.Shared.GetBool("debug") {
		if err = log.Logger.ChangeLevel(logSDK.LevelError); err != nil {
			return errors.Wrap(err, "change log level")
		}
	}

	st, err := openStore(ctx)
	if err != nil {
		return errors.Wrap(err, "open store")
	}
	defer func() {
		if closeErr := st.Close(context.Background()); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if projectID, err = resolveProject(ctx, st, projectID); err != nil {
		return err
	}

	ws, err := workspace.New(st, projectID, workspace.LoadSettingsFromConfig(),
		log.Logger.Named("workspace"), nil, nil)
	if err != nil {
		return errors.Wrap(err, "new workspace")
	}
	if err = ws.Load(ctx); err != nil {
		return errors.Wrapf(err, "load project %q", projectID)
	}

	watchCtx, cancelWatch := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(watchCtx)
	if st.dir != nil {
		g.Go(func() error {
			return st.dir.Watch(gctx, projectID, 0, func() {
				if err := ws.Reload(gctx); err != nil {
					log.Logger.Warn("reload after external change", zap.Error(err))
				}
			})
		})
	}

	model := tui.NewModel(ctx, ws)
	defer model.Close()

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	_, runErr := p.Run()

	cancelWatch()
	if werr := g.Wait(); werr != nil && !errors.Is(werr, context.Canceled) {
		log.Logger.Warn("watch project", zap.Error(werr))
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err = ws.Close(closeCtx); err != nil {
		return errors.Wrap(err, "close workspace")
	}
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return errors.Wrap(runErr, "run tui")
	}
	return nil
}

// resolveProject picks the project to open when none was given.
func resolveProject(ctx context.Context, store project.Store, projectID string) (string, error) {
	if projectID != "" {
		return projectID, nil
	}

	ps, err := store.ListProjects(ctx)
	if err != nil {
		return "", errors.Wrap(err, "list projects")
	}
	if len(ps) > 0 {
		return ps[0].ID, nil
	}

	created, err := store.CreateProject(ctx, "untitled", "")
	if err != nil {
		return "", errors.Wrap(err, "create project")
	}
	log.Logger.Info("created project", zap.String("project", created.Project.ID))
	return created.Project.ID, nil
}
