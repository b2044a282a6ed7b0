package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"channelflow-backend/internal/component"
	"channelflow-backend/internal/component/dynamo"
	"channelflow-backend/internal/component/knowledge"
	"channelflow-backend/internal/component/processor"
	"channelflow-backend/internal/config"
	"channelflow-backend/internal/flow"
	"channelflow-backend/internal/llm"
	"channelflow-backend/internal/repository/mocks"
	"channelflow-backend/internal/runner"
)

var tweakFlags []string

var runCmd = &cobra.Command{
	Use:   "run <flow-id-or-file>",
	Short: "Execute a flow document locally",
	Long: `Executes a flow once using the mock language model provider and an
in-memory item store. The argument is either a flow id from the library or a
path to a JSON document. Node inputs can be overridden per run:

  flowctl run message-processing-flow \
    --tweak message-processor-1.message="the login page is broken" \
    --tweak message-processor-1.category=BUGS \
    --tweak message-processor-1.channel_id=team-a \
    --tweak dynamodb-1.table_name=BUGS \
    --tweak dynamodb-1.channel_id=team-a`,
	Args: cobra.ExactArgs(1),
	RunE: runFlow,
}

func init() {
	runCmd.Flags().StringArrayVar(&tweakFlags, "tweak", nil, "Override a node input as node.field=value (repeatable)")
}

func runFlow(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	doc, err := resolveDocument(args[0])
	if err != nil {
		return err
	}
	registry, err := offlineRegistry(logger)
	if err != nil {
		return err
	}
	tweaks, err := parseTweaks(tweakFlags)
	if err != nil {
		return err
	}

	run := runner.New(registry, logger)
	res, err := run.Run(cmd.Context(), doc, runner.RunOptions{Tweaks: tweaks})
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

// resolveDocument reads the argument as a file first, then falls back to a
// library lookup.
func resolveDocument(ref string) (*flow.Document, error) {
	if data, err := os.ReadFile(ref); err == nil {
		return flow.Parse(data)
	}
	library, err := loadLibrary()
	if err != nil {
		return nil, err
	}
	doc, ok := library.Get(ref)
	if !ok {
		return nil, fmt.Errorf("no flow file or library entry %q", ref)
	}
	return doc, nil
}

// offlineRegistry builds the component set against local substitutes. The
// knowledge component is registered so documents referencing it still
// validate, but it reports an error when invoked.
func offlineRegistry(logger *zap.Logger) (*component.Registry, error) {
	cfg := config.LLMConfig{
		Provider:            "mock",
		SimilarityThreshold: 0.85,
		MaxConcurrentEmbeds: 2,
	}
	return component.NewRegistry(
		processor.New(llm.NewMockProvider(), cfg, logger),
		dynamo.New(mocks.NewMockChannelRepository(), logger),
		knowledge.New(offlineKB{}, config.BedrockConfig{KnowledgeBaseID: "offline"}, logger),
	)
}

type offlineKB struct{}

func (offlineKB) RetrieveAndGenerate(ctx context.Context, params *bedrockagentruntime.RetrieveAndGenerateInput, optFns ...func(*bedrockagentruntime.Options)) (*bedrockagentruntime.RetrieveAndGenerateOutput, error) {
	return nil, errors.New("knowledge base queries need AWS access; run the server instead")
}

// parseTweaks turns node.field=value pairs into runner tweaks. Values parse
// as JSON when possible so numbers, booleans and objects come through typed;
// anything else stays a string.
func parseTweaks(specs []string) (map[string]map[string]any, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	tweaks := make(map[string]map[string]any)
	for _, spec := range specs {
		key, raw, found := strings.Cut(spec, "=")
		if !found {
			return nil, fmt.Errorf("tweak %q must look like node.field=value", spec)
		}
		node, field, found := strings.Cut(key, ".")
		if !found || node == "" || field == "" {
			return nil, fmt.Errorf("tweak %q must look like node.field=value", spec)
		}
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		if tweaks[node] == nil {
			tweaks[node] = make(map[string]any)
		}
		tweaks[node][field] = value
	}
	return tweaks, nil
}
