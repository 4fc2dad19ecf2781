package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/lofty-sh/lofty/pkg/deploy"
	"github.com/lofty-sh/lofty/pkg/descriptor"
)

func newCreateCommand() *cobra.Command {
	var (
		sourceDir    string
		name         string
		region       string
		runtime      string
		handler      string
		apiModule    string
		memoryMB     int32
		timeoutSec   int32
		roleRef      string
		label        string
		envPairs     []string
		envFile      string
		kmsKeyArn    string
		ignore       []string
		keepArtifact bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Provision a new function deployment",
		Long: `Package the source directory, create the execution role and the
function, bind the latest alias (plus an optional release label) and,
when --api-module is given, build an HTTP front end from the route spec.

Defaults for runtime, handler, memory, timeout, env and ignore patterns
can be set in a lofty.yml file inside the source directory; flags
override it.`,
		Example: `  # Deploy the current directory
  lofty create --name uploads-handler --region us-east-1 --runtime nodejs22.x --handler index.handler

  # Deploy with an HTTP API described by app.json
  lofty create --name uploads-api --region us-east-1 --runtime nodejs22.x --api-module app.json

  # Reuse an existing execution role
  lofty create --name uploads-handler --region us-east-1 --runtime nodejs22.x \
    --handler index.handler --role arn:aws:iam::123456789012:role/shared-executor`,
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := descriptor.LoadProjectOptions(sourceDir)
			if err != nil {
				return err
			}
			if runtime == "" {
				runtime = project.Runtime
			}
			if handler == "" && apiModule == "" {
				handler = project.Handler
			}
			if memoryMB == 0 {
				memoryMB = project.Memory
			}
			if timeoutSec == 0 {
				timeoutSec = project.Timeout
			}

			env, err := parseEnvInput(envPairs, envFile)
			if err != nil {
				return err
			}
			for key, value := range project.Env {
				if _, set := env[key]; !set {
					if env == nil {
						env = make(map[string]string)
					}
					env[key] = value
				}
			}

			log.Info().
				Str("name", name).
				Str("region", region).
				Str("source", sourceDir).
				Msg("Creating deployment")

			pipeline, store, err := newPipeline(cmd.Context(), region)
			if err != nil {
				return err
			}

			result, err := pipeline.Create(cmd.Context(), deploy.CreateRequest{
				SourceDir:    sourceDir,
				FunctionName: name,
				Region:       region,
				Runtime:      runtime,
				MemoryMB:     memoryMB,
				TimeoutSec:   timeoutSec,
				Handler:      handler,
				APIModule:    apiModule,
				RoleRef:      roleRef,
				Label:        label,
				Env:          env,
				KMSKeyArn:    kmsKeyArn,
				Ignore:       append(ignore, project.Ignore...),
				KeepArtifact: keepArtifact,
			})
			if err != nil {
				return err
			}

			if !jsonOutput {
				fmt.Printf("deployment recorded in %s\n", store.Path())
			}
			return printResult(result)
		},
	}

	cmd.Flags().StringVarP(&sourceDir, "source", "s", ".", "directory to package and deploy")
	cmd.Flags().StringVarP(&name, "name", "n", "", "function name")
	cmd.Flags().StringVar(&region, "region", "", "target region")
	cmd.Flags().StringVar(&runtime, "runtime", "", "function runtime identifier")
	cmd.Flags().StringVar(&handler, "handler", "", "function entry point")
	cmd.Flags().StringVar(&apiModule, "api-module", "", "route spec module for an HTTP front end")
	cmd.Flags().Int32Var(&memoryMB, "memory", 0, "memory in MB")
	cmd.Flags().Int32Var(&timeoutSec, "timeout", 0, "timeout in seconds")
	cmd.Flags().StringVar(&roleRef, "role", "", "existing execution role name or ARN")
	cmd.Flags().StringVar(&label, "label", "", "extra version label besides latest")
	cmd.Flags().StringSliceVar(&envPairs, "env", nil, "environment variables as KEY=VALUE")
	cmd.Flags().StringVar(&envFile, "env-file", "", "JSON file with environment variables")
	cmd.Flags().StringVar(&kmsKeyArn, "kms-key", "", "KMS key ARN for environment encryption")
	cmd.Flags().StringSliceVar(&ignore, "ignore", nil, "glob patterns excluded from the artifact")
	cmd.Flags().BoolVar(&keepArtifact, "keep-artifact", false, "keep the zip artifact after deployment")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("region")

	return cmd
}
