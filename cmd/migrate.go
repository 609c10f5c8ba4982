package cmd

import (
	"context"

	gcmd "github.com/Laisky/go-utils/v6/cmd"
	"github.com/Laisky/zap"
	"github.com/spf13/cobra"

	"github.com/Laisky/texpad/library/log"
)

var migrateCMD = &cobra.Command{
	Use:   "migrate",
	Short: "migrate",
	Long:  `create the tables or indexes of the configured store backend`,
	Args:  gcmd.NoExtraArgs,
	PreRun: func(cmd *cobra.Command, args []string) {
		if err := initialize(cmd.Context(), cmd); err != nil {
			log.Logger.Panic("init", zap.Error(err))
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		// the sql and mongo stores migrate when they are opened
		st, err := openStore(cmd.Context())
		if err != nil {
			log.Logger.Panic("migrate", zap.Error(err))
		}
		if err = st.Close(context.Background()); err != nil {
			log.Logger.Panic("close store", zap.Error(err))
		}
		log.Logger.Info("migrated", zap.String("backend", st.backend))
	},
}

func init() {
	rootCMD.AddCommand(migrateCMD)
}
