package commands

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/lofty-sh/lofty/pkg/deploy"
	"github.com/lofty-sh/lofty/pkg/descriptor"
)

func newUpdateCommand() *cobra.Command {
	var (
		sourceDir    string
		label        string
		ignore       []string
		keepArtifact bool
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Upload new code for an existing deployment",
		Long: `Package the source directory again, upload it, publish the resulting
version and re-point latest at it. When the deployment was created with
--api-module, the route tree is rebuilt from the module and the stages
redeployed.`,
		Example: `  # Ship the current directory
  lofty update

  # Ship and also bind a release label
  lofty update --label v12`,
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := descriptor.LoadProjectOptions(sourceDir)
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
				Str("source", sourceDir).
				Msg("Updating deployment")

			pipeline, _, err := newPipeline(cmd.Context(), cfg.Function.Region)
			if err != nil {
				return err
			}

			result, err := pipeline.Update(cmd.Context(), cfg, deploy.UpdateRequest{
				SourceDir:    sourceDir,
				Label:        label,
				Ignore:       append(ignore, project.Ignore...),
				KeepArtifact: keepArtifact,
			})
			if err != nil {
				return err
			}
			return printResult(result)
		},
	}

	cmd.Flags().StringVarP(&sourceDir, "source", "s", ".", "directory to package and deploy")
	cmd.Flags().StringVar(&label, "label", "", "extra version label besides latest")
	cmd.Flags().StringSliceVar(&ignore, "ignore", nil, "glob patterns excluded from the artifact")
	cmd.Flags().BoolVar(&keepArtifact, "keep-artifact", false, "keep the zip artifact after deployment")

	return cmd
}
