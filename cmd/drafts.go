package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/pageblocks/internal/autosave"
)

var draftsCmd = &cobra.Command{
	Use:   "drafts",
	Short: "Inspect and clear autosaved builder drafts",
}

var draftsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored drafts, newest first",
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

		drafts, err := autosave.NewSQLiteStore(database).List(context.Background())
		if err != nil {
			return err
		}
		if len(drafts) == 0 {
			fmt.Println("No drafts stored.")
			return nil
		}
		for _, d := range drafts {
			saved := time.UnixMilli(d.Timestamp).Format(time.DateTime)
			fmt.Printf("%-40s %3d sections  %s\n", strings.TrimPrefix(d.Key, autosave.KeyPrefix), d.Sections, saved)
		}
		return nil
	},
}

var draftsClearCmd = &cobra.Command{
	Use:   "clear [document-id...]",
	Short: "Discard drafts for the given documents, or all drafts",
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

		ctx := context.Background()
		store := autosave.NewSQLiteStore(database)
		keys := make([]string, 0, len(args))
		for _, id := range args {
			keys = append(keys, autosave.Key(id))
		}
		if len(keys) == 0 {
			drafts, err := store.List(ctx)
			if err != nil {
				return err
			}
			for _, d := range drafts {
				keys = append(keys, d.Key)
			}
		}
		if len(keys) == 0 {
			fmt.Println("No drafts stored.")
			return nil
		}

		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			prompt := promptui.Prompt{
				Label:     fmt.Sprintf("Discard %d draft(s)", len(keys)),
				IsConfirm: true,
			}
			if _, err := prompt.Run(); err != nil {
				if errors.Is(err, promptui.ErrAbort) {
					fmt.Println("Aborted.")
					return nil
				}
				return err
			}
		}
		for _, key := range keys {
			if err := store.Clear(ctx, key); err != nil {
				return err
			}
		}
		fmt.Printf("Discarded %d draft(s).\n", len(keys))
		return nil
	},
}

func init() {
	draftsClearCmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")
	draftsCmd.AddCommand(draftsListCmd, draftsClearCmd)
	rootCmd.AddCommand(draftsCmd)
}
