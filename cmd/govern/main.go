// govern is the operations CLI for the governance service. The sweep
// and enforce commands are the scheduler entry points: they run the
// batch governance operations directly against the database, without
// interactive authentication.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"bizops-governance/backend/internal/audit"
	"bizops-governance/backend/internal/auth"
	"bizops-governance/backend/internal/config"
	"bizops-governance/backend/internal/logging"
	"bizops-governance/backend/internal/repository"
	"bizops-governance/backend/internal/services"
	"bizops-governance/backend/pkg/models"
)

// schedulerActor is the audit actor for non-interactive runs.
const schedulerActor = "system"

func main() {
	root := &cobra.Command{
		Use:           "govern",
		Short:         "Governance service operations CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "Path to config file")

	root.AddCommand(newEnforceCmd())
	root.AddCommand(newSweepCmd())
	root.AddCommand(newSeedCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// connect loads config, opens the pool, and wires the service layer
// with the scheduler identity in context.
func connect(cmd *cobra.Command) (context.Context, *pgxpool.Pool, *services.GovernanceService, *repository.PostgresStore, error) {
	logger := logging.NewLogger()

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	ctx := auth.WithIdentity(cmd.Context(), "", schedulerActor)

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, cfg.DB.SSLMode,
	)
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	store := repository.NewPostgresStore(pool)
	recorder := audit.NewStoreRecorder(store, logger)
	service := services.NewGovernanceService(store, recorder, logger)
	return ctx, pool, service, store, nil
}

// targetBusinesses resolves the --business flag, or every business
// when --all is set.
func targetBusinesses(ctx context.Context, cmd *cobra.Command, store *repository.PostgresStore) ([]string, error) {
	businessID, _ := cmd.Flags().GetString("business")
	all, _ := cmd.Flags().GetBool("all")
	if businessID != "" {
		return []string{businessID}, nil
	}
	if !all {
		return nil, fmt.Errorf("either --business or --all is required")
	}
	businesses, err := store.ListBusinesses(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(businesses))
	for _, b := range businesses {
		ids = append(ids, b.ID)
	}
	return ids, nil
}

func newEnforceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enforce",
		Short: "Re-evaluate and persist governance health for a business's workflows",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, pool, service, store, err := connect(cmd)
			if err != nil {
				return err
			}
			defer pool.Close()

			ids, err := targetBusinesses(ctx, cmd, store)
			if err != nil {
				return err
			}
			for _, id := range ids {
				result, err := service.EnforceBusiness(ctx, id)
				if err != nil {
					return fmt.Errorf("enforce business %s: %w", id, err)
				}
				fmt.Printf("business %s: %d workflow(s) enforced\n", id, result.Count)
				for _, w := range result.Updated {
					fmt.Printf("  %s score=%d\n", w.ID, w.Score)
				}
			}
			return nil
		},
	}
	cmd.Flags().String("business", "", "Business ID to enforce")
	cmd.Flags().Bool("all", false, "Enforce every business")
	return cmd
}

func newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run the governance automation loop (enforce, remediate, escalate)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, pool, service, store, err := connect(cmd)
			if err != nil {
				return err
			}
			defer pool.Close()

			ids, err := targetBusinesses(ctx, cmd, store)
			if err != nil {
				return err
			}
			for _, id := range ids {
				run, err := service.RunAutomation(ctx, id)
				if err != nil {
					return fmt.Errorf("sweep business %s: %w", id, err)
				}
				fmt.Printf("business %s: %d workflow(s), %d remediated, %d escalated\n",
					id, len(run.Workflows), run.Remediated, run.Escalated)
			}
			return nil
		},
	}
	cmd.Flags().String("business", "", "Business ID to sweep")
	cmd.Flags().Bool("all", false, "Sweep every business")
	return cmd
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the schema and a demo business with sample workflows",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, pool, _, store, err := connect(cmd)
			if err != nil {
				return err
			}
			defer pool.Close()

			if _, err := pool.Exec(ctx, repository.Schema); err != nil {
				return fmt.Errorf("create schema: %w", err)
			}

			// Check for an existing demo business to prevent duplicates
			domain := "localhost"
			business, err := store.GetBusinessByDomain(ctx, domain)
			if err != nil {
				business = &models.Business{
					Name:   "Local Dev Business",
					Domain: domain,
					Tier:   models.TierEnterprise,
				}
				if err := store.CreateBusiness(ctx, business); err != nil {
					return fmt.Errorf("create business: %w", err)
				}
				fmt.Println("created demo business", business.ID)
			} else {
				fmt.Println("found existing business", business.ID)
			}

			workflows, err := store.ListWorkflowsByBusiness(ctx, business.ID)
			if err != nil {
				return err
			}
			if len(workflows) > 0 {
				fmt.Printf("business already has %d workflow(s), skipping seed\n", len(workflows))
				return nil
			}

			sla := 48.0
			samples := []*models.Workflow{
				{
					BusinessID:  business.ID,
					Name:        "invoice approval",
					Description: "routes supplier invoices for sign-off",
					Region:      "emea",
					Tier:        models.TierEnterprise,
					Steps: []models.WorkflowStep{
						{Type: models.StepTypeApproval, Role: "admin", SLAHours: &sla},
					},
				},
				{
					BusinessID: business.ID,
					Name:       "campaign launch",
					Region:     "amer",
					Tier:       models.TierSME,
					Pipeline: []models.WorkflowStep{
						{Type: "task"},
						{Type: models.StepTypeDelay},
					},
				},
				{
					BusinessID:  business.ID,
					Name:        "newsletter",
					Description: "weekly mailout",
					Tier:        models.TierSolopreneur,
				},
			}
			for _, w := range samples {
				if err := store.CreateWorkflow(ctx, w); err != nil {
					return fmt.Errorf("create workflow %q: %w", w.Name, err)
				}
				fmt.Println("created workflow", w.Name, w.ID)
			}
			return nil
		},
	}
}
