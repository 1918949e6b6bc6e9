package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"calixo/internal/backup"
)

func newSyncCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Exchange the record with the remote record store",
	}

	pull := &cobra.Command{
		Use:   "pull",
		Short: "Adopt the remote record when it carries any data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), opts, func(e *env) error {
				if err := e.sync.ProbeHealth(cmd.Context()); err != nil {
					return fmt.Errorf("record store health: %w", err)
				}
				adopted, err := e.sync.PullOnce(cmd.Context(), e.store)
				if err != nil {
					return err
				}
				if adopted {
					fmt.Fprintln(cmd.OutOrStdout(), "Adopted remote record.")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "Remote record is empty; kept local data.")
				}
				return nil
			})
		},
	}

	push := &cobra.Command{
		Use:   "push",
		Short: "Overwrite the remote record with the local one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), opts, func(e *env) error {
				if err := e.sync.ProbeHealth(cmd.Context()); err != nil {
					return fmt.Errorf("record store health: %w", err)
				}
				if err := e.sync.Push(cmd.Context(), e.store.Load()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Pushed local record.")
				return nil
			})
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Report whether the record store is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), opts, func(e *env) error {
				if err := e.sync.ProbeHealth(cmd.Context()); err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "Record store: unreachable (%v)\n", err)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Record store: %s\n", e.sync.Availability())
				return nil
			})
		},
	}

	cmd.AddCommand(pull, push, status)
	return cmd
}

func newBackupCmd(opts *rootOptions) *cobra.Command {
	var bucket, prefix string
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Upload a JSON snapshot of the local record to S3",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd.Context(), opts, func(e *env) error {
				cfg := e.cfg.Backup
				if bucket != "" {
					cfg.Bucket = bucket
				}
				if cmd.Flags().Changed("prefix") {
					cfg.Prefix = prefix
				}
				uploader, err := backup.New(cmd.Context(), cfg, e.logger.Named("backup"))
				if err != nil {
					return err
				}
				key, err := uploader.Upload(cmd.Context(), e.store.Load())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Uploaded s3://%s/%s\n", cfg.Bucket, key)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&bucket, "bucket", "", "S3 bucket (default CALIXO_BACKUP_BUCKET)")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Object key prefix (default CALIXO_BACKUP_PREFIX)")
	return cmd
}
