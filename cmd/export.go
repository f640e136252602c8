package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/pageblocks/internal/documents"
	"github.com/ziadkadry99/pageblocks/internal/progress"
	"github.com/ziadkadry99/pageblocks/internal/render"
)

var exportCmd = &cobra.Command{
	Use:   "export [document-id...]",
	Short: "Render documents to static HTML",
	Long:  `Renders the published form of documents into <output>/<id>/index.html. Without arguments every document is exported.`,
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().String("output", "", "output directory (defaults to {data_dir}/export)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	outputDir, _ := cmd.Flags().GetString("output")
	if outputDir == "" {
		outputDir = filepath.Join(cfg.DataDir, "export")
	}

	ctx := context.Background()
	store := documents.NewStore(database)
	var docs []documents.Document
	if len(args) == 0 {
		if docs, err = store.List(ctx); err != nil {
			return err
		}
	} else {
		for _, id := range args {
			doc, err := store.Get(ctx, id)
			if err != nil {
				return fmt.Errorf("loading %s: %w", id, err)
			}
			docs = append(docs, *doc)
		}
	}
	if len(docs) == 0 {
		fmt.Println("No documents to export.")
		return nil
	}

	renderer := offlineRenderer(cfg)
	rep := progress.NewReporter("Exporting documents")
	rep.Start(len(docs))
	written := 0
	for i := range docs {
		doc := &docs[i]
		n, err := renderer.Export(ctx, outputDir, []render.DocumentInput{{
			Data:      render.Data{DocumentID: doc.ID, Title: doc.Title, Template: doc.Template, Now: doc.UpdatedAt},
			Sections:  doc.Sections(),
			Styles:    cfg.Preview.ThemeStyleURLs,
			Injection: cfg.Preview.Injection,
		}})
		written += n
		if err != nil {
			rep.Finish()
			return err
		}
		rep.Update(i+1, doc.ID)
	}
	rep.Finish()

	fmt.Printf("Exported %d documents to %s\n", written, outputDir)
	return nil
}
