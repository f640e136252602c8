package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/pageblocks/internal/auth"
	"github.com/ziadkadry99/pageblocks/internal/config"
	"github.com/ziadkadry99/pageblocks/internal/documents"
)

var documentsCmd = &cobra.Command{
	Use:     "documents",
	Aliases: []string{"docs"},
	Short:   "Create documents and issue builder launch links",
}

var documentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents",
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

		docs, err := documents.NewStore(database).List(context.Background())
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			fmt.Println("No documents.")
			return nil
		}
		for _, d := range docs {
			fmt.Printf("%s  %-30s %3d sections  %s\n", d.ID, d.Title, len(d.Sections()), d.UpdatedAt.Format(time.DateTime))
		}
		return nil
	},
}

var documentsCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create an empty builder document and print its launch link",
	Args:  cobra.MinimumNArgs(1),
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

		template, _ := cmd.Flags().GetString("template")
		doc, err := documents.NewStore(database).Create(context.Background(), strings.Join(args, " "), template, nil)
		if err != nil {
			return err
		}
		fmt.Printf("Created %s (%s)\n", doc.ID, doc.Title)
		return printLaunch(cmd, cfg, doc.ID)
	},
}

var documentsTokenCmd = &cobra.Command{
	Use:   "token <document-id>",
	Short: "Issue a builder token and print the launch link",
	Args:  cobra.ExactArgs(1),
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

		if _, err := documents.NewStore(database).Get(context.Background(), args[0]); err != nil {
			return fmt.Errorf("loading %s: %w", args[0], err)
		}
		return printLaunch(cmd, cfg, args[0])
	},
}

func printLaunch(cmd *cobra.Command, cfg *config.Config, id string) error {
	signer, err := newSigner(cfg)
	if err != nil {
		return err
	}
	ttl, _ := cmd.Flags().GetDuration("ttl")
	token := signer.Issue(auth.ActionBuilder, id, ttl)
	base := cfg.Server.PublicURL
	if base == "" {
		base = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}
	fmt.Printf("Token: %s\n", token)
	fmt.Printf("Builder: %s/ws/builder/%s?pb_nonce=%s\n", base, id, token)
	fmt.Printf("Published: %s/p/%s\n", base, id)
	return nil
}

func init() {
	documentsCreateCmd.Flags().String("template", "", "page template, e.g. page-blocks-builder.php")
	for _, c := range []*cobra.Command{documentsCreateCmd, documentsTokenCmd} {
		c.Flags().Duration("ttl", auth.DefaultTTL, "token lifetime")
	}
	documentsCmd.AddCommand(documentsListCmd, documentsCreateCmd, documentsTokenCmd)
	rootCmd.AddCommand(documentsCmd)
}
