// Command langfeed-migrate rewrites a feedback dataset into another schema
// version, normalising label spellings on the way.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/valentinpelus/langfeed/internal/logging"
	"github.com/valentinpelus/langfeed/pkg/dataset"
	"github.com/valentinpelus/langfeed/pkg/types"
)

func main() {
	path := flag.String("path", os.Getenv("DATASET_PATH"), "dataset file to migrate")
	to := flag.String("to", "v2", "target schema version (v1 or v2)")
	romanNep := flag.String("roman-nepali", os.Getenv("LABEL_ROMAN_NEPALI"), "spelling of the RomanNep label in the output")
	respell := flag.Bool("respell", false, "rewrite label spellings even when the file already uses the target schema")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	logger := logging.New(*level, "", false)
	defer logger.Sync()

	if err := run(*path, *to, *romanNep, *respell, logger); err != nil {
		logger.Error("Migration failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(path, to, romanNep string, respell bool, logger *zap.Logger) error {
	if path == "" {
		return fmt.Errorf("-path or DATASET_PATH is required")
	}
	target, err := dataset.SchemaByVersion(to)
	if err != nil {
		return err
	}
	source, err := dataset.DetectFileSchema(path)
	if err != nil {
		return err
	}
	if source.Version == target.Version && !respell {
		logger.Info("Dataset already uses the target schema", zap.String("path", path), zap.String("schema", target.Version))
		return nil
	}

	n, err := dataset.Migrate(path, source, target, types.NewLabelSet(romanNep))
	if err != nil {
		return err
	}
	logger.Info("Migrated dataset",
		zap.String("path", path), zap.String("from", source.Version), zap.String("to", target.Version), zap.Int("records", n))
	return nil
}
