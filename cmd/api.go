package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	errors "github.com/Laisky/errors/v2"
	gconfig "github.com/Laisky/go-config/v2"
	gcmd "github.com/Laisky/go-utils/v6/cmd"
	"github.com/Laisky/zap"
	"github.com/spf13/cobra"

	"github.com/Laisky/texpad/internal/mcp"
	"github.com/Laisky/texpad/internal/web"
	"github.com/Laisky/texpad/library/jwt"
	"github.com/Laisky/texpad/library/log"
	"github.com/Laisky/texpad/library/throttle"
)

var apiCMD = &cobra.Command{
	Use:   "api",
	Short: "api",
	Long:  `serve the configured project store over HTTP, for remote workspaces`,
	Args:  gcmd.NoExtraArgs,
	PreRun: func(cmd *cobra.Command, args []string) {
		if err := initialize(cmd.Context(), cmd); err != nil {
			log.Logger.Panic("init", zap.Error(err))
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runAPI(ctx, gconfig.Shared.GetString("listen"))
	},
}

var tokenCMD = &cobra.Command{
	Use:   "token USERNAME",
	Short: "issue an api token",
	Long:  `sign a bearer token with settings.web.jwt_secret for settings.store.remote.token`,
	Args:  cobra.ExactArgs(1),
	PreRun: func(cmd *cobra.Command, args []string) {
		if err := initialize(cmd.Context(), cmd); err != nil {
			log.Logger.Panic("init", zap.Error(err))
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		signer, err := signerFromConfig(gconfig.Shared.GetDuration("ttl"))
		if err != nil {
			return err
		}
		if signer == nil {
			return errors.New("settings.web.jwt_secret is not configured")
		}

		token, err := signer.Sign(args[0])
		if err != nil {
			return errors.Wrap(err, "sign token")
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	rootCMD.AddCommand(apiCMD)
	apiCMD.Flags().String("listen", "localhost:8080", "like `localhost:8080`")

	apiCMD.AddCommand(tokenCMD)
	tokenCMD.Flags().Duration("ttl", 0, "token lifetime, default 30 days")
}

// signerFromConfig returns nil when no secret is configured, leaving the api open.
func signerFromConfig(ttl time.Duration) (*jwt.Signer, error) {
	secret := gconfig.Shared.GetString("settings.web.jwt_secret")
	if secret == "" {
		return nil, nil
	}

	signer, err := jwt.NewSigner([]byte(secret), ttl)
	if err != nil {
		return nil, errors.Wrap(err, "new jwt signer")
	}
	return signer, nil
}

// throttleFromConfig returns nil when settings.web.throttle.total_per_sec is unset.
func throttleFromConfig(ctx context.Context) (*throttle.Throttle, error) {
	total := gconfig.Shared.GetInt("settings.web.throttle.total_per_sec")
	if total <= 0 {
		return nil, nil
	}

	cfg := throttle.Config{
		TotalNPerSec: total,
		TotalBurst:   gconfig.Shared.GetInt("settings.web.throttle.total_burst"),
		EachNPerSec:  gconfig.Shared.GetInt("settings.web.throttle.each_per_sec"),
		EachBurst:    gconfig.Shared.GetInt("settings.web.throttle.each_burst"),
	}
	if cfg.TotalBurst < cfg.TotalNPerSec {
		cfg.TotalBurst = cfg.TotalNPerSec
	}
	if cfg.EachNPerSec <= 0 {
		cfg.EachNPerSec = cfg.TotalNPerSec
	}
	if cfg.EachBurst < cfg.EachNPerSec {
		cfg.EachBurst = cfg.EachNPerSec
	}

	th, err := throttle.New(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "new throttle")
	}
	return th, nil
}

func corsOriginsFromConfig() []string {
	var origins []string
	for _, origin := range gconfig.Shared.GetStringSlice("settings.web.cors_origins") {
		for _, part := range strings.Split(origin, ",") {
			if part = strings.TrimSpace(part); part != "" {
				origins = append(origins, part)
			}
		}
	}
	return origins
}

func runAPI(ctx context.Context, addr string) (err error) {
	st, err := openStore(ctx)
	if err != nil {
		return errors.Wrap(err, "open store")
	}
	defer func() {
		if closeErr := st.Close(context.Background()); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	opts := []web.Option{
		web.WithLogger(log.Logger.Named("web")),
		web.WithAllowedOrigins(corsOriginsFromConfig()...),
	}
	signer, err := signerFromConfig(0)
	if err != nil {
		return err
	}
	if signer != nil {
		opts = append(opts, web.WithSigner(signer))
	} else {
		log.Logger.Warn("settings.web.jwt_secret is empty, api runs without authentication")
	}

	if gconfig.Shared.GetBool("settings.web.mcp.enabled") {
		mcpServer, err := mcp.NewServer(st, log.Logger.Named("mcp"))
		if err != nil {
			return errors.Wrap(err, "new mcp server")
		}
		opts = append(opts, web.WithMCP(mcpServer.Handler()))
	}

	th, err := throttleFromConfig(ctx)
	if err != nil {
		return err
	}
	if th != nil {
		defer th.Close()
		opts = append(opts, web.WithThrottle(th))
	}

	srv, err := web.NewServer(st, opts...)
	if err != nil {
		return errors.Wrap(err, "new server")
	}
	return srv.Run(ctx, addr)
}
