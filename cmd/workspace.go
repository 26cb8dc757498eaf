package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eccleston-labs/tally-enricher/internal/cache"
	"github.com/eccleston-labs/tally-enricher/internal/model"
)

var (
	wsName         string
	wsMinEmployees float64
	wsMinFunding   float64
	wsMinRevenue   float64
	wsBookingURL   string
	wsFallbackURL  string
	wsSlackWebhook string
)

var workspaceCmd = &cobra.Command{
	Use:   "workspace",
	Short: "Manage workspace routing criteria",
}

var workspaceSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Create or update a workspace",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("workspace"); err != nil {
			return err
		}
		if wsName == "" {
			return eris.New("--name is required")
		}

		ctx := cmd.Context()
		st, err := newStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		criteria := &model.WorkspaceCriteria{}
		if cmd.Flags().Changed("min-employees") {
			criteria.MinEmployees = model.Float(wsMinEmployees)
		}
		if cmd.Flags().Changed("min-funding") {
			criteria.MinFundingUSD = model.Float(wsMinFunding)
		}
		if cmd.Flags().Changed("min-revenue") {
			criteria.MinRevenueUSD = model.Float(wsMinRevenue)
		}

		ws := &model.Workspace{
			Name:            wsName,
			Criteria:        criteria,
			BookingURL:      wsBookingURL,
			FallbackURL:     wsFallbackURL,
			SlackWebhookURL: wsSlackWebhook,
		}
		if err := st.UpsertWorkspace(ctx, ws); err != nil {
			return err
		}

		// stale criteria must not route leads; drop the cached copy
		cache.New(st).InvalidateWorkspace(ctx, wsName)

		zap.L().Info("workspace saved", zap.String("name", wsName))
		return nil
	},
}

var workspaceGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print a workspace as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("workspace"); err != nil {
			return err
		}
		if wsName == "" {
			return eris.New("--name is required")
		}

		ctx := cmd.Context()
		st, err := newStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ws, err := st.GetWorkspace(ctx, wsName)
		if err != nil {
			return err
		}
		if ws == nil {
			return eris.Errorf("workspace %q not found", wsName)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(ws)
	},
}

func init() {
	workspaceCmd.PersistentFlags().StringVar(&wsName, "name", "", "workspace name")
	workspaceSetCmd.Flags().Float64Var(&wsMinEmployees, "min-employees", 0, "minimum employee count to qualify")
	workspaceSetCmd.Flags().Float64Var(&wsMinFunding, "min-funding", 0, "minimum total funding in USD to qualify")
	workspaceSetCmd.Flags().Float64Var(&wsMinRevenue, "min-revenue", 0, "minimum annual revenue in USD to qualify")
	workspaceSetCmd.Flags().StringVar(&wsBookingURL, "booking-url", "", "destination for qualified leads")
	workspaceSetCmd.Flags().StringVar(&wsFallbackURL, "fallback-url", "", "destination for everyone else")
	workspaceSetCmd.Flags().StringVar(&wsSlackWebhook, "slack-webhook", "", "per-workspace Slack webhook override")
	workspaceCmd.AddCommand(workspaceSetCmd, workspaceGetCmd)
	rootCmd.AddCommand(workspaceCmd)
}
