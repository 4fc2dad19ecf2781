package commands

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/lofty-sh/lofty/pkg/deploy"
	"github.com/lofty-sh/lofty/pkg/descriptor"
)

func newUpdateConfigCommand() *cobra.Command {
	var (
		envPairs   []string
		envFile    string
		replaceEnv bool
		kmsKeyArn  string
	)

	cmd := &cobra.Command{
		Use:   "update-config",
		Short: "Reconcile function environment variables",
		Long: `Update the function's environment variables without publishing a new
version. By default the given variables are merged over the deployed
set; --replace-env discards the deployed set instead.`,
		Example: `  # Merge one variable into the deployed set
  lofty update-config --env LOG_LEVEL=debug

  # Replace the whole set from a file
  lofty update-config --env-file env.json --replace-env`,
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
				Bool("replace", replaceEnv).
				Msg("Updating function configuration")

			pipeline, _, err := newPipeline(cmd.Context(), cfg.Function.Region)
			if err != nil {
				return err
			}

			return pipeline.UpdateEnv(cmd.Context(), cfg, deploy.UpdateEnvRequest{
				Env:       env,
				EnvMode:   envModeFrom(replaceEnv),
				KMSKeyArn: kmsKeyArn,
			})
		},
	}

	cmd.Flags().StringSliceVar(&envPairs, "env", nil, "environment variables as KEY=VALUE")
	cmd.Flags().StringVar(&envFile, "env-file", "", "JSON file with environment variables")
	cmd.Flags().BoolVar(&replaceEnv, "replace-env", false, "replace the variable set instead of merging")
	cmd.Flags().StringVar(&kmsKeyArn, "kms-key", "", "KMS key ARN for environment encryption")

	return cmd
}
