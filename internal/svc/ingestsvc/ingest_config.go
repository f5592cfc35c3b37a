package ingestsvc

// IngestConfig holds configuration parameters for the ingestion orchestrator.
type IngestConfig struct {
	// MaxBatchSize is the maximum number of files accepted in one batch.
	MaxBatchSize int `env:"MAX_BATCH_SIZE" default:"5"`
}
