package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/lofty-sh/lofty/pkg/descriptor"
)

func newDestroyCommand() *cobra.Command {
	var (
		autoApprove bool
	)

	cmd := &cobra.Command{
		Use:   "destroy",
		Short: "Tear down the deployment",
		Long: `Delete the HTTP API, the function (all versions and aliases) and, when
the execution role was created by this tool, the role. The local
descriptor is removed afterwards.

Execution roles referenced with --role at create time are shared and
never deleted. Buckets and their notification configurations are left
untouched.`,
		Example: `  # Tear down with a confirmation prompt
  lofty destroy

  # Tear down without prompting
  lofty destroy --auto-approve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := descriptor.NewStore(descriptorPath)
			cfg, err := loadDeployment(store)
			if err != nil {
				return err
			}

			if !autoApprove {
				fmt.Printf("Destroy deployment %s in %s? Only 'yes' continues: ", cfg.Function.Name, cfg.Function.Region)
				reader := bufio.NewReader(os.Stdin)
				answer, _ := reader.ReadString('\n')
				if strings.TrimSpace(answer) != "yes" {
					fmt.Println("Aborted.")
					return nil
				}
			}

			log.Info().
				Str("name", cfg.Function.Name).
				Msg("Destroying deployment")

			pipeline, _, err := newPipeline(cmd.Context(), cfg.Function.Region)
			if err != nil {
				return err
			}

			if err := pipeline.Destroy(cmd.Context(), cfg); err != nil {
				return err
			}
			if err := store.Remove(); err != nil {
				return err
			}
			fmt.Printf("deployment %s destroyed\n", cfg.Function.Name)
			return nil
		},
	}

	cmd.Flags().BoolVar(&autoApprove, "auto-approve", false, "skip confirmation prompt")

	return cmd
}
