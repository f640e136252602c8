package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/pageblocks/internal/progress"
	"github.com/ziadkadry99/pageblocks/internal/theme"
)

var classesCmd = &cobra.Command{
	Use:   "classes",
	Short: "Scan theme stylesheets and print the class vocabulary",
	Long:  `Scans the configured theme directories for CSS class names, the same vocabulary the builder offers for autocompletion.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		dirs := cfg.Preview.ThemeDirs
		if len(args) > 0 {
			dirs = args
		}
		catalog := theme.NewCatalog(dirs...)
		n, err := catalog.Rebuild(progress.NewReporter("Scanning stylesheets"))
		if err != nil {
			return fmt.Errorf("scanning themes: %w", err)
		}
		quiet, _ := cmd.Flags().GetBool("count")
		if !quiet {
			for _, c := range catalog.Classes() {
				fmt.Println(c)
			}
		}
		fmt.Printf("%d classes in %v\n", n, catalog.Dirs())
		return nil
	},
}

func init() {
	classesCmd.Flags().Bool("count", false, "only print the number of classes")
	rootCmd.AddCommand(classesCmd)
}
