package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/querycraft/querycraft/internal/config"
	"github.com/querycraft/querycraft/internal/observability"
	"github.com/querycraft/querycraft/internal/setup"
	"github.com/querycraft/querycraft/internal/storage"
	"github.com/querycraft/querycraft/internal/storage/s3"
)

func main() {
	path := flag.String("path", "", "database file to create; defaults to QUERYCRAFT_STORE_DSN")
	sourceURL := flag.String("source-url", "", "download the seed script from this URL instead of QUERYCRAFT_SEED_SOURCE_URL")
	objectKey := flag.String("object-key", "", "read the seed script with this name from the object store instead of QUERYCRAFT_SEED_OBJECT_KEY")
	demo := flag.Bool("demo", false, "generate a small Artist/Album dataset instead of downloading a script")
	demoSeed := flag.Int64("demo-seed", 1, "random seed for -demo")
	demoArtists := flag.Int("demo-artists", 25, "number of artists for -demo")
	publish := flag.Bool("publish", false, "upload the seed script to the object store instead of creating a database")
	list := flag.Bool("list", false, "list the seed scripts published to the object store and exit")
	flag.Parse()

	cfg, err := config.LoadFromEnv("querycraft-setup")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	if *list {
		bucket, err := openBucket(ctx, cfg.ObjectStore, false)
		if err != nil {
			fmt.Fprintf(os.Stderr, "object store error: %v\n", err)
			os.Exit(1)
		}
		scripts, err := bucket.ListScripts(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "list failed: %v\n", err)
			os.Exit(1)
		}
		for _, script := range scripts {
			fmt.Printf("%s\t%d\t%s\t%s\n", script.Name, script.Size, script.LastModified.Format(time.RFC3339), script.Checksum)
		}
		return
	}

	key := firstNonEmpty(*objectKey, cfg.Seed.ObjectKey)
	var source setup.Source
	switch {
	case *demo:
		source = setup.DemoSource{Seed: *demoSeed, Artists: *demoArtists}
	case key != "" && !*publish:
		bucket, err := openBucket(ctx, cfg.ObjectStore, false)
		if err != nil {
			fmt.Fprintf(os.Stderr, "object store error: %v\n", err)
			os.Exit(1)
		}
		source = setup.ObjectSource{Store: bucket, Script: key}
	default:
		source = setup.URLSource{URL: firstNonEmpty(*sourceURL, cfg.Seed.SourceURL)}
	}

	if *publish {
		name := firstNonEmpty(key, "chinook.sql")
		if _, err := storage.SeedScriptKey(name); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(2)
		}
		bucket, err := openBucket(ctx, cfg.ObjectStore, true)
		if err != nil {
			fmt.Fprintf(os.Stderr, "object store error: %v\n", err)
			os.Exit(1)
		}
		info, err := setup.Publish(ctx, bucket, name, source)
		if err != nil {
			fmt.Fprintf(os.Stderr, "publish failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("published %s (%d bytes, sha256 %s) to %s/%s\n", source.Name(), info.Size, info.Checksum, cfg.ObjectStore.Bucket, info.Key)
		return
	}

	if cfg.Store.Dialect != "sqlite" {
		fmt.Fprintf(os.Stderr, "setup only creates sqlite databases; QUERYCRAFT_STORE_DIALECT is %q\n", cfg.Store.Dialect)
		os.Exit(2)
	}
	target := firstNonEmpty(*path, cfg.Store.DSN)
	report, err := setup.Run(ctx, target, source, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "setup failed: %v\n", err)
		os.Exit(1)
	}
	if report.Skipped {
		fmt.Printf("database already exists at %s\n", report.Path)
		return
	}
	fmt.Printf("created %s from %s: %d bytes, tables: %s\n", report.Path, report.Source, report.Bytes, strings.Join(report.Tables, ", "))
}

func openBucket(ctx context.Context, cfg config.ObjectStoreConfig, create bool) (*s3.Bucket, error) {
	bucketCfg := s3.ConfigFrom(cfg)
	bucketCfg.CreateBucket = create
	return s3.Open(ctx, bucketCfg)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
