package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/eccleston-labs/tally-enricher/internal/cache"
	"github.com/eccleston-labs/tally-enricher/internal/model"
	"github.com/eccleston-labs/tally-enricher/internal/scorer"
)

var (
	qualifyEmail     string
	qualifyWorkspace string
	qualifyCompany   string
	qualifyWebsite   string
)

var qualifyCmd = &cobra.Command{
	Use:   "qualify",
	Short: "Run the pipeline for one lead and print the verdict",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("qualify"); err != nil {
			return err
		}
		if qualifyEmail == "" {
			return eris.New("--email is required")
		}

		ctx := cmd.Context()
		st, err := newStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		c := cache.New(st)
		orch := buildOrchestrator(cfg, c)

		answers := model.Answers{
			model.FieldEmail:       qualifyEmail,
			model.FieldCompanyName: qualifyCompany,
			model.FieldWebsite:     qualifyWebsite,
		}

		var criteria *model.WorkspaceCriteria
		if qualifyWorkspace != "" {
			ws, err := st.GetWorkspace(ctx, qualifyWorkspace)
			if err != nil {
				return err
			}
			if ws == nil {
				return eris.Errorf("workspace %q not found", qualifyWorkspace)
			}
			criteria = ws.Criteria
		}

		enriched := orch.EnrichAll(ctx, answers, criteria)
		decision := scorer.ScoreLead(enriched, criteria)

		out := struct {
			Decision model.QualificationResult `json:"decision"`
			Enriched *model.EnrichedResult     `json:"enriched"`
		}{decision, enriched}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	qualifyCmd.Flags().StringVar(&qualifyEmail, "email", "", "lead email address")
	qualifyCmd.Flags().StringVar(&qualifyWorkspace, "workspace", "", "workspace whose criteria to score against")
	qualifyCmd.Flags().StringVar(&qualifyCompany, "company", "", "company name (optional)")
	qualifyCmd.Flags().StringVar(&qualifyWebsite, "website", "", "company website (optional, beats the email domain)")
	rootCmd.AddCommand(qualifyCmd)
}
