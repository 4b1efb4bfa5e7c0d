package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mutsynchub/poslens/internal/config"
)

// --- push ---

var pushCmd = &cobra.Command{
	Use:   "push <tenant>",
	Short: "Push JSON records into a tenant's buffer",
	Long: `Push JSON records into a tenant's buffer.

Examples:
  poslens push acme --json '{"sku":"A1","qty":5}'
  poslens push acme --file ./batch.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tenant := args[0]
		raw, _ := cmd.Flags().GetString("json")
		file, _ := cmd.Flags().GetString("file")

		if raw == "" && file == "" {
			return fmt.Errorf("one of --json or --file is required")
		}
		if raw == "" {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading file: %w", err)
			}
			raw = string(data)
		}

		var payload json.RawMessage
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return fmt.Errorf("invalid JSON payload: %w", err)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/tenants/"+tenant+"/records", payload)
		if err != nil {
			return err
		}

		var result map[string]int
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Ingested %d records for %s", result["ingested"], tenant)
		return nil
	},
}

func init() {
	pushCmd.Flags().String("json", "", "inline JSON object or array of objects")
	pushCmd.Flags().String("file", "", "path to a JSON file")
}

// --- upload ---

var uploadCmd = &cobra.Command{
	Use:   "upload <tenant> <file>",
	Short: "Upload a CSV or XLSX export for a tenant",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		tenant, file := args[0], args[1]

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		printStep("Uploading %s...", file)
		resp, err := client.postFile(cmd.Context(), "/tenants/"+tenant+"/upload", file)
		if err != nil {
			return err
		}

		var result map[string]int
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Ingested %d records for %s", result["ingested"], tenant)
		return nil
	},
}

// --- run ---

var runCmd = &cobra.Command{
	Use:   "run <tenant>",
	Short: "Run analytics for a tenant now",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tenant := args[0]
		analytic, _ := cmd.Flags().GetString("analytic")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/tenants/"+tenant+"/run", map[string]string{"analytic": analytic})
		if err != nil {
			return err
		}

		var result struct {
			Industry   string          `json:"industry"`
			Confidence float64         `json:"confidence"`
			Report     json.RawMessage `json:"report"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Run complete: %s (confidence %.2f)", result.Industry, result.Confidence)
		return printJSON(result.Report)
	},
}

func init() {
	runCmd.Flags().String("analytic", "eda", "analytic to run")
}

// --- report ---

var reportCmd = &cobra.Command{
	Use:   "report <tenant>",
	Short: "Show the most recent report for a tenant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tenant := args[0]
		history, _ := cmd.Flags().GetInt("history")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		if history > 0 {
			resp, err := client.get(cmd.Context(), fmt.Sprintf("/tenants/%s/reports?limit=%d", tenant, history))
			if err != nil {
				return err
			}
			var entries []struct {
				ID         string  `json:"id"`
				Analytic   string  `json:"analytic"`
				Industry   string  `json:"industry"`
				CreatedAt  string  `json:"created_at"`
				Confidence float64 `json:"confidence"`
			}
			if err := decodeJSON(resp, &entries); err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("No reports found.")
				return nil
			}
			for _, e := range entries {
				fmt.Printf("%s  %s  %s  %s (%.2f)\n",
					colorize(colorCyan, e.ID[:8]), e.CreatedAt, e.Analytic, e.Industry, e.Confidence)
			}
			return nil
		}

		resp, err := client.get(cmd.Context(), "/tenants/"+tenant+"/report")
		if err != nil {
			return err
		}
		var entry json.RawMessage
		if err := decodeJSON(resp, &entry); err != nil {
			return err
		}
		return printJSON(entry)
	},
}

func init() {
	reportCmd.Flags().Int("history", 0, "list the last N ledger entries instead of the full latest report")
}

// --- classify ---

var classifyCmd = &cobra.Command{
	Use:   "classify <tenant>",
	Short: "Classify a tenant's current buffer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tenant := args[0]

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/tenants/"+tenant+"/classification")
		if err != nil {
			return err
		}

		var result struct {
			Industry   string  `json:"industry"`
			Confidence float64 `json:"confidence"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printStatus("Industry", "%s", result.Industry)
		printStatus("Confidence", "%.2f", result.Confidence)
		return nil
	},
}

// --- schedule ---

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage recurring analytics runs",
}

var scheduleAddCmd = &cobra.Command{
	Use:   "add <tenant> <frequency>",
	Short: "Add a recurring run (daily, weekly or monthly)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		tenant, frequency := args[0], args[1]
		analytic, _ := cmd.Flags().GetString("analytic")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		body := map[string]string{"analytic": analytic, "frequency": frequency}
		resp, err := client.post(cmd.Context(), "/tenants/"+tenant+"/schedules", body)
		if err != nil {
			return err
		}

		var sch struct {
			ID string `json:"id"`
		}
		if err := decodeJSON(resp, &sch); err != nil {
			return err
		}

		printSuccess("Scheduled %s %s for %s (%s)", frequency, analytic, tenant, sch.ID[:8])
		return nil
	},
}

var scheduleListCmd = &cobra.Command{
	Use:   "list <tenant>",
	Short: "List a tenant's schedules",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tenant := args[0]

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/tenants/"+tenant+"/schedules")
		if err != nil {
			return err
		}

		var schedules []struct {
			ID        string `json:"id"`
			Analytic  string `json:"analytic"`
			Frequency string `json:"frequency"`
			NextRun   string `json:"next_run"`
		}
		if err := decodeJSON(resp, &schedules); err != nil {
			return err
		}

		if len(schedules) == 0 {
			fmt.Println("No schedules found.")
			return nil
		}
		for _, s := range schedules {
			fmt.Printf("%s  %-8s %-8s next %s\n",
				colorize(colorCyan, s.ID[:8]), s.Analytic, s.Frequency, s.NextRun)
		}
		return nil
	},
}

var scheduleRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a schedule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/schedules/"+args[0])
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Schedule removed")
		return nil
	},
}

func init() {
	scheduleAddCmd.Flags().String("analytic", "eda", "analytic to schedule")
	scheduleCmd.AddCommand(scheduleAddCmd)
	scheduleCmd.AddCommand(scheduleListCmd)
	scheduleCmd.AddCommand(scheduleRemoveCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
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

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			if strings.Contains(err.Error(), "unknown config key") {
				printWarning("Valid keys: %s", strings.Join(config.ValidKeys(), ", "))
			}
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
