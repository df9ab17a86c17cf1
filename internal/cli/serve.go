package cli

import (
	"context"
	"fmt"
	"time"

	"kimbiofarm-backend/internal/config"
	"kimbiofarm-backend/internal/database"
	"kimbiofarm-backend/internal/server"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.ValidateServer(); err != nil {
				return fmt.Errorf("config: %w", err)
			}

			db, err := database.Open(cfg)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer database.Close(db)

			app := server.New(cfg, db)

			errCh := make(chan error, 1)
			go func() {
				log.Info().Str("port", cfg.HTTPPort).Msg("server listening")
				errCh <- app.Listen(":" + cfg.HTTPPort)
			}()

			select {
			case err := <-errCh:
				return err
			case <-cmd.Context().Done():
			}

			log.Info().Msg("shutting down")
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return app.ShutdownWithContext(ctx)
		},
	}
}
