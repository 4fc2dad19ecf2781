package commands

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/lofty-sh/lofty/pkg/deploy"
	"github.com/lofty-sh/lofty/pkg/descriptor"
)

func newEventSourceCommand() *cobra.Command {
	var (
		bucket string
		prefix string
		suffix string
		events []string
		label  string
	)

	cmd := &cobra.Command{
		Use:   "add-s3-event-source",
		Short: "Subscribe the function to bucket events",
		Long: `Grant the storage service permission to invoke the function, then add
a notification rule to the bucket's configuration. Rules registered by
other tools on the same bucket are preserved.

The bucket must live in the deployment's region. Without --events the
rule fires on s3:ObjectCreated:*.`,
		Example: `  # Invoke on every new object
  lofty add-s3-event-source --bucket incoming-uploads

  # Only thumbnails, routed to the prod alias
  lofty add-s3-event-source --bucket incoming-uploads --prefix thumbs/ --suffix .png --label prod`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := descriptor.NewStore(descriptorPath)
			cfg, err := loadDeployment(store)
			if err != nil {
				return err
			}

			log.Info().
				Str("name", cfg.Function.Name).
				Str("bucket", bucket).
				Msg("Adding event source")

			pipeline, _, err := newPipeline(cmd.Context(), cfg.Function.Region)
			if err != nil {
				return err
			}

			return pipeline.AddEventSource(cmd.Context(), cfg, deploy.EventSourceRequest{
				Bucket: bucket,
				Prefix: prefix,
				Suffix: suffix,
				Events: events,
				Label:  label,
			})
		},
	}

	cmd.Flags().StringVar(&bucket, "bucket", "", "bucket to subscribe to")
	cmd.Flags().StringVar(&prefix, "prefix", "", "only objects whose key starts with this prefix")
	cmd.Flags().StringVar(&suffix, "suffix", "", "only objects whose key ends with this suffix")
	cmd.Flags().StringSliceVar(&events, "events", nil, "event types (default s3:ObjectCreated:*)")
	cmd.Flags().StringVar(&label, "label", "", "alias to invoke instead of the unqualified function")
	cmd.MarkFlagRequired("bucket")

	return cmd
}
