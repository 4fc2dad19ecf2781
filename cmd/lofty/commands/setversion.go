package commands

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/lofty-sh/lofty/pkg/deploy"
	"github.com/lofty-sh/lofty/pkg/descriptor"
)

func newSetVersionCommand() *cobra.Command {
	var (
		label      string
		envPairs   []string
		envFile    string
		replaceEnv bool
		kmsKeyArn  string
	)

	cmd := &cobra.Command{
		Use:   "set-version",
		Short: "Publish the current code as a labeled version",
		Long: `Publish the function's current code and configuration as a new
immutable version and bind a label to it. Environment variables given
here are reconciled first, so the published version carries them.

When the deployment has an HTTP API, a stage named after the label is
deployed, pinned to the labeled version through the lambdaVersion stage
variable.`,
		Example: `  # Cut release v12 from what latest currently runs
  lofty set-version --label v12

  # Cut a release with an extra setting baked in
  lofty set-version --label v13 --env FEATURE_FLAG=on`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := parseEnvInput(envPairs, envFile)
			if err != nil {
				return err
			}

			store := descriptor.NewStore(descriptorPath)
			cfg, err := loadDeployment(store)
			if err != nil {
				return err
			}

			log.Info().
				Str("name", cfg.Function.Name).
				Str("label", label).
				Msg("Publishing version")

			pipeline, _, err := newPipeline(cmd.Context(), cfg.Function.Region)
			if err != nil {
				return err
			}

			result, err := pipeline.SetVersion(cmd.Context(), cfg, deploy.SetVersionRequest{
				Label:     label,
				Env:       env,
				EnvMode:   envModeFrom(replaceEnv),
				KMSKeyArn: kmsKeyArn,
			})
			if err != nil {
				return err
			}
			return printResult(result)
		},
	}

	cmd.Flags().StringVar(&label, "label", "", "label to bind to the published version")
	cmd.Flags().StringSliceVar(&envPairs, "env", nil, "environment variables as KEY=VALUE")
	cmd.Flags().StringVar(&envFile, "env-file", "", "JSON file with environment variables")
	cmd.Flags().BoolVar(&replaceEnv, "replace-env", false, "replace the variable set instead of merging")
	cmd.Flags().StringVar(&kmsKeyArn, "kms-key", "", "KMS key ARN for environment encryption")
	cmd.MarkFlagRequired("label")

	return cmd
}
