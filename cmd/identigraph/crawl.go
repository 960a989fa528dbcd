package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"identigraph/internal/codec"
	"identigraph/internal/domain"
	"identigraph/internal/service"
)

type crawlFlags struct {
	seedsFile string
	format    string
	output    string
}

func newCrawlCmd(root *rootFlags) *cobra.Command {
	flags := &crawlFlags{}

	cmd := &cobra.Command{
		Use:   "crawl [target...]",
		Short: "Crawl the identity graph from one or more seeds",
		Long: `Crawl the identity graph from one or more seeds and print a report.

Targets are written as <platform>:<identity>, for example ethereum:0xd8da...
or twitter:vitalik. A bare <name>.eth is an ENS name. NFTs use
nft:<chain>:<category>:<contract>:<id>.`,
		Example: `  identigraph crawl ethereum:0xd8da6bf26964af9d7eed9e03e53415d37aa96045
  identigraph crawl vitalik.eth --format yaml
  identigraph crawl --seeds-file seeds.yaml -o report.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCrawl(cmd, root, flags, args)
		},
	}

	cmd.Flags().StringVar(&flags.seedsFile, "seeds-file", "", "read seeds from a JSON or YAML file with a \"seeds\" list")
	cmd.Flags().StringVarP(&flags.format, "format", "f", "json", "report format: json or yaml")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "write the report to a file instead of stdout")
	return cmd
}

func runCrawl(cmd *cobra.Command, root *rootFlags, flags *crawlFlags, args []string) error {
	exporter, err := codec.ForFormat(flags.format)
	if err != nil {
		return err
	}

	seeds, err := parseTargets(args)
	if err != nil {
		return err
	}
	if flags.seedsFile != "" {
		fromFile, err := readSeedsFile(flags.seedsFile)
		if err != nil {
			return err
		}
		seeds = append(seeds, fromFile...)
	}
	if len(seeds) == 0 {
		return errors.New("no seeds: pass targets as arguments or use --seeds-file")
	}

	a, err := newApp(root)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	if flags.output != "" {
		f, err := os.Create(flags.output)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}

	var storageFailures int
	for _, seed := range seeds {
		report, err := a.crawler.Crawl(cmd.Context(), seed)
		if err != nil && !errors.Is(err, service.ErrStorage) {
			return err
		}
		if err != nil {
			storageFailures++
			a.logger.Error("crawl finished with storage errors", zap.String("seed", seed.Key()), zap.Error(err))
		}
		if err := exporter.Export(report, out); err != nil {
			return err
		}
	}

	if storageFailures > 0 {
		return fmt.Errorf("%d of %d crawls had storage errors: %w", storageFailures, len(seeds), service.ErrStorage)
	}
	return nil
}

// readSeedsFile picks the codec by file extension, defaulting to YAML
func readSeedsFile(path string) ([]domain.Target, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seeds file: %w", err)
	}
	defer f.Close()

	var importer codec.Importer = codec.NewYAMLCodec()
	if strings.EqualFold(filepath.Ext(path), ".json") {
		importer = codec.NewJSONCodec()
	}
	return importer.Parse(f)
}
