package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/pageblocks/internal/audit"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect and prune the audit trail",
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit entries, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		database, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		filter := audit.QueryFilter{}
		filter.DocumentID, _ = cmd.Flags().GetString("document")
		action, _ := cmd.Flags().GetString("action")
		filter.Action = audit.Action(action)
		filter.Limit, _ = cmd.Flags().GetInt("limit")

		entries, err := audit.NewStore(database).Query(context.Background(), filter)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No audit entries.")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("%s  %-18s %-6s %-24s %s\n", e.Timestamp.Format(time.DateTime), e.Action, e.ActorType, e.ActorID, e.Summary)
			if verbose && e.Detail != "" {
				fmt.Printf("    %s\n", e.Detail)
			}
		}
		return nil
	},
}

var auditPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete audit entries older than a duration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		database, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		age, _ := cmd.Flags().GetDuration("older-than")
		if age <= 0 {
			return fmt.Errorf("--older-than must be positive")
		}
		n, err := audit.NewStore(database).DeleteBefore(context.Background(), time.Now().Add(-age))
		if err != nil {
			return err
		}
		fmt.Printf("Pruned %d audit entries older than %s.\n", n, age)
		return nil
	},
}

func init() {
	auditListCmd.Flags().String("document", "", "only entries for this document")
	auditListCmd.Flags().String("action", "", "only entries with this action, e.g. sections_applied")
	auditListCmd.Flags().Int("limit", audit.DefaultLimit, "maximum entries to print")
	auditPruneCmd.Flags().Duration("older-than", 90*24*time.Hour, "age of the entries to delete")
	auditCmd.AddCommand(auditListCmd, auditPruneCmd)
	rootCmd.AddCommand(auditCmd)
}
