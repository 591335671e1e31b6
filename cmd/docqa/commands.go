package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"docqa/internal/answer"
	"docqa/internal/api"
	"docqa/internal/config"
)

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question over the indexed documents",
	Long: `Ask a question over the indexed documents.

Examples:
  docqa ask "What were the key findings?"
  docqa ask --year 2023 "What changed in the methodology?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")
		year, _ := cmd.Flags().GetInt("year")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := api.AskRequest{Question: question}
		if year != 0 {
			req.Year = &year
		}

		resp, err := client.post(cmd.Context(), "/ask", req)
		if err != nil {
			return err
		}

		var result answer.QueryResult
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Println(result.Answer)
		if len(result.Sources) > 0 {
			fmt.Printf("\n%s\n", colorize(colorBold, "Sources:"))
			for _, s := range result.Sources {
				fmt.Printf("  %s (%d)\n", colorize(colorCyan, s.Filename), s.Year)
			}
		}
		return nil
	},
}

func init() {
	askCmd.Flags().Int("year", 0, "restrict retrieval to documents from this year")
}

// --- reprocess ---

var reprocessCmd = &cobra.Command{
	Use:   "reprocess",
	Short: "Rebuild the index from the docs directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := "/reprocess"
		if keep, _ := cmd.Flags().GetBool("keep-existing"); keep {
			path += "?clear_existing=false"
		}

		resp, err := client.post(cmd.Context(), path, nil)
		if err != nil {
			return err
		}

		var result api.ReprocessResponse
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Reprocessed %d documents into %d chunks", result.DocumentsProcessed, result.ChunksIndexed)
		if result.DocumentsFailed > 0 {
			printWarning("%d documents failed and were skipped", result.DocumentsFailed)
		}
		return nil
	},
}

func init() {
	reprocessCmd.Flags().Bool("keep-existing", false, "append to the index instead of clearing it first")
}

// --- years ---

var yearsCmd = &cobra.Command{
	Use:   "years",
	Short: "List the document years available for filtering",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/years")
		if err != nil {
			return err
		}

		var result struct {
			Years []int `json:"available_years"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if len(result.Years) == 0 {
			fmt.Println("No documents indexed.")
			return nil
		}
		for _, y := range result.Years {
			fmt.Println(y)
		}
		return nil
	},
}

// --- stats ---

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/stats")
		if err != nil {
			return err
		}

		var result api.StatsResponse
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printStatus("Documents", "%d", result.DocCount)
		printStatus("Years", "%v-%v", result.MinYear, result.MaxYear)
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
}
