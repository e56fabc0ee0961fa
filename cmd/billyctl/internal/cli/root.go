// Package cli implements the billyctl commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrJamesThe3rd/billy/internal/app"
	"github.com/MrJamesThe3rd/billy/internal/billing"
	"github.com/MrJamesThe3rd/billy/internal/config"
)

const closeTimeout = 5 * time.Second

var version = "dev"

// NewRootCmd builds the command tree. Output goes to out.
func NewRootCmd(out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "billyctl",
		Short: "Operate on the billing database from the command line",
		Long: `billyctl allocates document numbers, inspects invoices and runs the
invoice and receipt delete cascades against the configured database.

The database and operator identity are read from the environment
(DB_DRIVER, DB_PATH, DB_HOST, ..., OPERATOR_ID, OPERATOR_ROLE) and
from a .env file in the working directory.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.SetOut(out)
	root.SetErr(out)

	root.AddCommand(
		newMigrateCmd(),
		newAllocateCmd(),
		newShowInvoiceCmd(),
		newDeleteInvoiceCmd(),
		newDeleteReceiptCmd(),
		newTokenCmd(),
	)

	return root
}

// withApp loads the configuration, opens the application and passes fn a
// context carrying the operator.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))

	a, err := app.Open(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}

	ctx := billing.ContextWithActor(cmd.Context(), a.Operator())
	runErr := fn(ctx, a)

	closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	if err := a.Close(closeCtx); err != nil && runErr == nil {
		return err
	}

	return runErr
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}

	return id, nil
}
