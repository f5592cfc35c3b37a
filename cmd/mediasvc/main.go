package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmertens/storefront-media/internal/infra/config"
	"github.com/jmertens/storefront-media/internal/infra/logging"
	"github.com/jmertens/storefront-media/internal/infra/transport/http"
	"github.com/jmertens/storefront-media/internal/repo/object"
	"github.com/jmertens/storefront-media/internal/repo/record"
	"github.com/jmertens/storefront-media/internal/svc/imagesvc"
	"github.com/jmertens/storefront-media/internal/svc/ingestsvc"
)

const (
	appName = "storefront"
	svcName = "mediasvc"
)

type Config struct {
	config.EnvConfig

	Log         logging.LoggerConfig                `envPrefix:"LOG_"`
	Upload      imagesvc.UploadPolicy               `envPrefix:"UPLOAD_"`
	Compression imagesvc.CompressionPolicy          `envPrefix:"COMPRESSION_"`
	Ingest      ingestsvc.IngestConfig              `envPrefix:"INGEST_"`
	IngestHTTP  ingestsvc.HTTPTransportConfig       `envPrefix:"INGEST_HTTP_"`
	Object      object.FileSystemStoreConfig        `envPrefix:"OBJECT_"`
	Record      record.SQLiteRecordRepositoryConfig `envPrefix:"RECORD_"`
}

func main() {
	var (
		cfg Config
		ctx = context.Background()

		configPrefix = strings.ToUpper(strings.Join([]string{appName, svcName}, "_"))
		loggerName   = strings.ToLower(strings.Join([]string{appName, svcName}, "."))
	)

	if err := config.Parse(ctx, &cfg, configPrefix); err != nil {
		panic(err)
	}

	logging.Configure(ctx, cfg.Log, loggerName)

	if err := run(ctx, cfg); err != nil {
		panic(err)
	}
}

func run(ctx context.Context, cfg Config) (err error) {
	defer func() {
		log := logging.GetLogger("cmd.mediasvc")

		if err != nil {
			log.ErrorContext(ctx, "error", "err", err)
			panic(err)
		}

		log.InfoContext(ctx, "shutdown")
	}()

	store, err := object.NewFileSystemStore(ctx, cfg.Object)
	if err != nil {
		return fmt.Errorf("new object store: %w", err)
	}

	recordsFactory := record.SQLiteRecordRepositoryFactory(cfg.Record)

	records, err := recordsFactory()
	if err != nil {
		return fmt.Errorf("new record repository: %w", err)
	}
	defer records.Close()

	ingestSvc := ingestsvc.NewPipelineIngestService(
		imagesvc.NewValidator(cfg.Upload),
		imagesvc.NewCompressor(cfg.Compression),
		store,
		records,
		cfg.Ingest,
	)

	httpTransport := ingestsvc.NewHTTPTransport(ingestSvc, cfg.IngestHTTP)

	if err := http.ListenAndServe(ctx, httpTransport, cfg.IngestHTTP.HTTPTransportConfig); err != nil {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}
