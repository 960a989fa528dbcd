package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"identigraph/internal/config"
	"identigraph/internal/repository/sqlite"
	"identigraph/internal/upstream"
)

func newAbilityCmd(root *rootFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ability",
		Short: "Show which platforms each upstream can expand",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(root)
			if err != nil {
				return err
			}
			registry, closeFn, err := abilityRegistry(cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"fetchers":  registry.ListFetchers(),
					"abilities": registry.Abilities(),
				})
			}
			return printAbilities(cmd.OutOrStdout(), registry)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

// abilityRegistry builds the configured registry over a throwaway store
func abilityRegistry(cfg *config.Config) (*upstream.Registry, func(), error) {
	repo, err := sqlite.New(":memory:")
	if err != nil {
		return nil, nil, err
	}
	registry, err := buildRegistry(cfg, repo, zap.NewNop())
	if err != nil {
		repo.Close()
		return nil, nil, err
	}
	return registry, func() { repo.Close() }, nil
}

func printAbilities(w io.Writer, registry *upstream.Registry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "SOURCE\tENABLED\tRATE LIMIT\tINPUT\tOUTPUT")
	for _, info := range registry.ListFetchers() {
		rate := "-"
		if info.RateLimit > 0 {
			rate = fmt.Sprintf("%g/s", info.RateLimit)
		}
		for i, a := range info.Ability {
			source, enabled, limit := string(info.Source), fmt.Sprint(info.Enabled), rate
			if i > 0 {
				source, enabled, limit = "", "", ""
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", source, enabled, limit, a.Input, joinPlatforms(a.Output))
		}
	}
	return tw.Flush()
}

func joinPlatforms[T ~string](items []T) string {
	parts := make([]string, len(items))
	for i, p := range items {
		parts[i] = string(p)
	}
	return strings.Join(parts, ",")
}
