package export

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"radiorec/internal/app"
	"radiorec/internal/app/export"
	"radiorec/internal/config"
)

var (
	outputFilePath string
	since          string
)

func init() {
	Cmd.Flags().StringVarP(&outputFilePath, "outputFilePath", "o", "", "set outputFilePath")
	Cmd.Flags().StringVarP(&since, "since", "s", "", "only include jobs starting at or after this RFC3339 time")

	Cmd.MarkFlagRequired("outputFilePath")
}

// Cmd represents the export command
var Cmd = &cobra.Command{
	Use:   "export",
	Short: "Export job history to excel",
	Long: `Export job history to excel.

- Exports every non-template job with its status, output file and
  replication state, newest first.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			log.Fatalf("failed to load configuration: %v", err)
		}

		var from time.Time
		if since != "" {
			from, err = time.Parse(time.RFC3339, since)
			if err != nil {
				log.Fatalf("invalid --since: %v", err)
			}
		}

		store, err := app.NewStore(cfg)
		if err != nil {
			log.Fatalf("failed to open job store: %v", err)
		}

		jobs, err := store.FindJobHistory(context.Background(), from)
		if err != nil {
			log.Fatal(err)
		}

		if err := export.ToExcel(jobs, outputFilePath); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("export finished, exported %d jobs to: %v\n", len(jobs), outputFilePath)
	},
}
