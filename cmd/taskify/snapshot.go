package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fastygo/taskify/domain"
	"github.com/fastygo/taskify/internal/persist"
	"github.com/fastygo/taskify/internal/services/lifecycle"
)

// bundle is the export file layout: one array per snapshot key.
type bundle struct {
	Tasks          []domain.Task          `json:"tasks"`
	Sprints        []domain.Sprint        `json:"sprints"`
	Retrospectives []domain.Retrospective `json:"retrospectives"`
}

func (b *bundle) validate() error {
	seen := make(map[string]bool, len(b.Tasks))
	for i, t := range b.Tasks {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("tasks[%d]: %w", i, err)
		}
		if seen[t.ID] {
			return fmt.Errorf("tasks[%d]: duplicate id %s", i, t.ID)
		}
		seen[t.ID] = true
	}
	for i, sp := range b.Sprints {
		if sp.ID == "" {
			return fmt.Errorf("sprints[%d]: missing id", i)
		}
		if err := sp.Validate(); err != nil {
			return fmt.Errorf("sprints[%d]: %w", i, err)
		}
	}
	for i, r := range b.Retrospectives {
		if r.ID == "" {
			return fmt.Errorf("retrospectives[%d]: missing id", i)
		}
	}
	return nil
}

func snapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Export or import the stored task, sprint and retrospective snapshots",
	}
	cmd.AddCommand(exportCmd())
	cmd.AddCommand(importCmd())
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write all snapshots as one JSON document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, _ := cmd.Flags().GetString("out")
			return withAdapter(cmd, func(ctx context.Context, adapter *persist.Adapter) error {
				var b bundle
				if err := load(ctx, adapter, persist.KeyTasks, &b.Tasks); err != nil {
					return err
				}
				if err := load(ctx, adapter, persist.KeySprints, &b.Sprints); err != nil {
					return err
				}
				if err := load(ctx, adapter, persist.KeyRetrospectives, &b.Retrospectives); err != nil {
					return err
				}

				data, err := json.MarshalIndent(b, "", "  ")
				if err != nil {
					return err
				}
				data = append(data, '\n')
				if out == "" || out == "-" {
					_, err = cmd.OutOrStdout().Write(data)
					return err
				}
				return os.WriteFile(out, data, 0o600)
			})
		},
	}
	cmd.Flags().StringP("out", "o", "", "output file (default stdout)")
	return cmd
}

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [file]",
		Short: "Replace the stored snapshots with the contents of an export file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var b bundle
			if err := json.Unmarshal(raw, &b); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}
			if err := b.validate(); err != nil {
				return fmt.Errorf("invalid snapshot file: %w", err)
			}

			return withAdapter(cmd, func(ctx context.Context, adapter *persist.Adapter) error {
				if err := persist.Save(ctx, adapter, persist.KeyTasks, b.Tasks); err != nil {
					return err
				}
				if err := persist.Save(ctx, adapter, persist.KeySprints, b.Sprints); err != nil {
					return err
				}
				if err := persist.Save(ctx, adapter, persist.KeyRetrospectives, b.Retrospectives); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d tasks, %d sprints, %d retrospectives\n",
					len(b.Tasks), len(b.Sprints), len(b.Retrospectives))
				return nil
			})
		},
	}
}

// withAdapter opens the configured storage for the duration of fn.
func withAdapter(cmd *cobra.Command, fn func(context.Context, *persist.Adapter) error) error {
	cfg, zapLogger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer zapLogger.Sync()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	defer func() {
		if err := manager.Shutdown(context.Background()); err != nil {
			zapLogger.Error("shutdown error", zap.Error(err))
		}
	}()

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Context.RequestTimeout*6)
	defer cancel()

	st, err := openStorage(ctx, cfg, manager, zapLogger)
	if err != nil {
		return err
	}
	return fn(ctx, persist.NewAdapter(st.repo, cfg.Storage.Namespace, nil, zapLogger))
}

func load[T any](ctx context.Context, adapter *persist.Adapter, key string, out *[]T) error {
	records, _, err := persist.Load[T](ctx, adapter, key)
	if err != nil {
		return err
	}
	if records == nil {
		records = []T{}
	}
	*out = records
	return nil
}
