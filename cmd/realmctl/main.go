// Command realmctl is the operator-facing maintenance CLI (SPEC_FULL §11
// domain stack): catalog validation and Grand Exchange book inspection
// against a running realm's database, run out-of-process from realmd.
// Grounded on the cobra root/subcommand shape the pack uses for operator
// tooling (synnergy-network/cmd/synnergy).
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/duskhollow/realm/internal/config"
	"github.com/duskhollow/realm/internal/data"
	"github.com/duskhollow/realm/internal/persist"
)

func main() {
	root := &cobra.Command{Use: "realmctl", Short: "realm operator CLI"}
	root.PersistentFlags().String("config", "config/server.toml", "path to server.toml")
	root.PersistentFlags().String("data-dir", "data/yaml", "path to the YAML data catalog")

	root.AddCommand(catalogCmd())
	root.AddCommand(exchangeCmd())
	root.AddCommand(accountCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runID tags one CLI invocation's output, the same "stamp an id at the
// point of creation" convention the pack's control-plane handlers use for
// newly created resources.
func runID() string { return uuid.New().String()[:8] }

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "catalog", Short: "inspect and validate the data catalog"}

	validate := &cobra.Command{
		Use:   "validate",
		Short: "load the YAML catalog and report integrity problems",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("data-dir")
			id := runID()
			cat, err := data.Load(dir)
			if err != nil {
				return fmt.Errorf("load catalog: %w", err)
			}

			fmt.Printf("[%s] loaded catalog from %s\n", id, dir)
			fmt.Printf("[%s]   items:               %d\n", id, len(cat.AllItems()))
			fmt.Printf("[%s]   npc templates:       %d\n", id, len(cat.AllNpcTemplates()))
			fmt.Printf("[%s]   resource templates:  %d\n", id, len(cat.AllResourceTemplates()))
			fmt.Printf("[%s]   zones:               %d\n", id, len(cat.Zones()))
			fmt.Printf("[%s]   skills:              %d\n", id, len(cat.AllSkills()))

			problems := validateCatalog(cat)
			if len(problems) == 0 {
				fmt.Printf("[%s] no integrity problems found\n", id)
				return nil
			}
			for _, p := range problems {
				fmt.Printf("[%s] PROBLEM: %s\n", id, p)
			}
			return fmt.Errorf("%d integrity problems found", len(problems))
		},
	}
	cmd.AddCommand(validate)
	return cmd
}

// validateCatalog cross-checks references between tables that data.Catalog
// itself doesn't enforce at load time: resource templates must name a real
// skill, and every resource/NPC drop must reference a real item.
func validateCatalog(cat *data.Catalog) []string {
	var problems []string

	for _, r := range cat.AllResourceTemplates() {
		if cat.Skill(r.Skill) == nil {
			problems = append(problems, fmt.Sprintf("resource template %d (%s) references unknown skill %q", r.ID, r.Name, r.Skill))
		}
		if cat.Item(r.YieldItemID) == nil {
			problems = append(problems, fmt.Sprintf("resource template %d (%s) yields unknown item %d", r.ID, r.Name, r.YieldItemID))
		}
	}

	for _, n := range cat.AllNpcTemplates() {
		for _, drop := range n.Drops {
			if cat.Item(drop.ItemID) == nil {
				problems = append(problems, fmt.Sprintf("npc template %d (%s) drops unknown item %d", n.ID, n.Name, drop.ItemID))
			}
		}
	}

	return problems
}

func exchangeCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "exchange", Short: "inspect the Grand Exchange order book"}

	dump := &cobra.Command{
		Use:   "dump",
		Short: "list every active offer in the order book",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			id := runID()

			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			repo, closeDB, err := connect(ctx, cfgPath)
			if err != nil {
				return err
			}
			defer closeDB()

			offers, err := repo.LoadActiveOffers(ctx)
			if err != nil {
				return fmt.Errorf("load active offers: %w", err)
			}
			if len(offers) == 0 {
				fmt.Printf("[%s] no active offers\n", id)
				return nil
			}
			fmt.Printf("[%s] %d active offers\n", id, len(offers))
			for _, o := range offers {
				fmt.Printf("[%s]   #%d char=%d %s item=%d qty=%d/%d price=%d status=%s\n",
					id, o.ID, o.CharacterID, o.Side, o.ItemID, o.QuantityFilled, o.QuantityTotal, o.PricePerUnit, o.Status)
			}
			return nil
		},
	}
	cmd.AddCommand(dump)
	return cmd
}

func accountCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "account", Short: "manage accounts"}

	setStatus := &cobra.Command{
		Use:   "set-status [accountId] [status]",
		Short: "set an account's status (active, suspended, banned)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			id := runID()

			var accountID int64
			if _, err := fmt.Sscanf(args[0], "%d", &accountID); err != nil {
				return fmt.Errorf("invalid account id %q: %w", args[0], err)
			}
			status := args[1]

			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			repo, closeDB, err := connect(ctx, cfgPath)
			if err != nil {
				return err
			}
			defer closeDB()

			if err := repo.SetAccountStatus(ctx, accountID, status); err != nil {
				return fmt.Errorf("set account status: %w", err)
			}
			fmt.Printf("[%s] account %d status set to %s\n", id, accountID, status)
			return nil
		},
	}
	cmd.AddCommand(setStatus)
	return cmd
}

// connect loads configuration and opens a short-lived pool for one CLI
// invocation; realmctl never runs migrations itself, only realmd owns that.
func connect(ctx context.Context, cfgPath string) (*persist.Repo, func(), error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log := zap.NewNop()
	db, err := persist.NewDB(ctx, cfg.Database, log)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	return persist.NewRepo(db), func() { db.Close() }, nil
}
