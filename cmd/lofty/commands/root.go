package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/lofty-sh/lofty/pkg/cloud"
	"github.com/lofty-sh/lofty/pkg/deploy"
	"github.com/lofty-sh/lofty/pkg/descriptor"
	"github.com/lofty-sh/lofty/pkg/packager"
	"github.com/lofty-sh/lofty/pkg/reconcile"
	"github.com/lofty-sh/lofty/pkg/telemetry"
)

var (
	// Global flags
	descriptorPath string
	verbose        bool
	jsonOutput     bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "lofty",
		Short: "Lofty - serverless function deployment",
		Long: `Lofty deploys a local code directory as a serverless function,
along with everything it needs to run:

  - An execution role with log-writing permission
  - Version aliases (latest plus named releases)
  - An optional HTTP API front end built from a route spec module
  - Object-storage event subscriptions

State lives in a lofty.json descriptor next to your code; project
defaults can be set in lofty.yml.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&descriptorPath, "descriptor", "d", "", "deployment descriptor path (default lofty.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log every provider call")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newCreateCommand())
	rootCmd.AddCommand(newUpdateCommand())
	rootCmd.AddCommand(newSetVersionCommand())
	rootCmd.AddCommand(newEventSourceCommand())
	rootCmd.AddCommand(newUpdateConfigCommand())
	rootCmd.AddCommand(newDestroyCommand())

	return rootCmd
}

// newPipeline wires the provider session, the descriptor store and the
// progress reporter into a pipeline for one command run.
func newPipeline(ctx context.Context, region string) (*deploy.Pipeline, *descriptor.Store, error) {
	session, err := cloud.NewSession(ctx, region)
	if err != nil {
		return nil, nil, err
	}

	services := deploy.Services{
		Identity:    session.Identity,
		Functions:   session.Functions,
		Gateway:     session.Gateway,
		ObjectStore: session.ObjectStore,
		Caller:      session.Caller,
	}
	if verbose {
		services.Identity = cloud.WithIdentityLogging(services.Identity, log.Logger)
		services.Functions = cloud.WithFunctionLogging(services.Functions, log.Logger)
		services.Gateway = cloud.WithGatewayLogging(services.Gateway, log.Logger)
		services.ObjectStore = cloud.WithObjectStoreLogging(services.ObjectStore, log.Logger)
	}

	store := descriptor.NewStore(descriptorPath)
	pipeline := deploy.New(services, packager.NewZipBuilder(), store, telemetry.NewLogReporter(log.Logger))
	return pipeline, store, nil
}

// loadDeployment reads the descriptor of an already-created deployment.
func loadDeployment(store *descriptor.Store) (*descriptor.DeploymentConfig, error) {
	cfg, err := store.Load()
	if err != nil {
		if errors.Is(err, descriptor.ErrNoDeployment) {
			return nil, fmt.Errorf("no deployment descriptor at %s; run 'lofty create' first", store.Path())
		}
		return nil, err
	}
	return cfg, nil
}

// parseEnvInput combines KEY=VALUE pairs with an optional JSON file of
// string-to-string mappings. Pairs win over file entries.
func parseEnvInput(pairs []string, file string) (map[string]string, error) {
	env := make(map[string]string)
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("reading env file: %w", err)
		}
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("parsing env file %s: %w", file, err)
		}
	}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid env entry %q, expected KEY=VALUE", pair)
		}
		env[key] = value
	}
	if len(env) == 0 {
		return nil, nil
	}
	return env, nil
}

// envModeFrom maps the --replace-env flag onto a reconciliation mode.
func envModeFrom(replace bool) reconcile.EnvMode {
	if replace {
		return reconcile.EnvReplace
	}
	return reconcile.EnvMerge
}

// printResult renders a run result as text or, with --json, as a JSON
// document on stdout.
func printResult(result *deploy.Result) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	if result.FunctionArn != "" {
		fmt.Printf("function: %s\n", result.FunctionArn)
	}
	if result.FunctionVersion != "" {
		fmt.Printf("version:  %s\n", result.FunctionVersion)
	}
	if result.ApiURL != "" {
		fmt.Printf("api:      %s\n", result.ApiURL)
	}
	if result.ArtifactPath != "" {
		fmt.Printf("artifact: %s\n", result.ArtifactPath)
	}
	for key, value := range result.Metadata {
		fmt.Printf("%s: %s\n", key, value)
	}
	return nil
}
