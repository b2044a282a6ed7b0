// Command flowctl inspects, validates and executes flow documents without a
// running server.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"channelflow-backend/internal/flow"
)

var (
	flowsDir string
	verbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "flowctl",
	Short: "Inspect, validate and run flow documents",
	Long: `flowctl works with the flow documents that drive message triage.

It loads the built-in flows plus any JSON documents in --flows-dir, and can
validate or execute a document locally. Local runs use the mock language
model provider and an in-memory item store, so no AWS or model credentials
are needed.`,
	SilenceUsage: true,
}

var flowsCmd = &cobra.Command{
	Use:   "flows",
	Short: "List available flow documents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		library, err := loadLibrary()
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tNODES\tEDGES")
		for _, doc := range library.List() {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", doc.ID, doc.Name, len(doc.Nodes), len(doc.Edges))
		}
		return w.Flush()
	},
}

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export <flow-id>",
	Short: "Print a flow document as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		library, err := loadLibrary()
		if err != nil {
			return err
		}
		doc, ok := library.Get(args[0])
		if !ok {
			return fmt.Errorf("unknown flow %q", args[0])
		}
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return err
		}
		data = append(data, '\n')
		if exportOutput != "" {
			return os.WriteFile(exportOutput, data, 0o644)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate a flow document file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		doc, err := flow.Parse(data)
		if err != nil {
			return err
		}
		registry, err := offlineRegistry(zap.NewNop())
		if err != nil {
			return err
		}
		if err := doc.Validate(registry); err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is valid (%d nodes, %d edges)\n", doc.ID, len(doc.Nodes), len(doc.Edges))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flowsDir, "flows-dir", "flows", "Directory of flow documents")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write to a file instead of stdout")

	rootCmd.AddCommand(flowsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(runCmd)
}

func newLogger() *zap.Logger {
	if verbose {
		logger, err := zap.NewDevelopment()
		if err == nil {
			return logger
		}
	}
	return zap.NewNop()
}

func loadLibrary() (*flow.Library, error) {
	return flow.NewLibrary(flowsDir, newLogger())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
