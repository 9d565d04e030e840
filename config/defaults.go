// Package config defines configuration defaults for the outages pipeline.
//
// Every constant here can be overridden via the environment or an optional
// yaml config file; see internal/config.
package config

import "time"

// Server defaults.
const (
	// DefaultListenAddress is the default API listen address.
	// Override via LISTEN.
	DefaultListenAddress = "0.0.0.0:8080"

	// DefaultReadTimeout bounds reading a request.
	DefaultReadTimeout = 15 * time.Second

	// DefaultWriteTimeout bounds writing a response. Refreshes run long, so
	// this stays generous.
	DefaultWriteTimeout = 10 * time.Minute

	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 10 * time.Second
)

// Upstream (EIA API) defaults.
const (
	// DefaultBaseURL is the EIA v2 API root.
	// Override via EIA_BASE_URL.
	DefaultBaseURL = "https://api.eia.gov/v2/"

	// DefaultOutagesRoute is the generator nuclear outages data route.
	DefaultOutagesRoute = "nuclear-outages/generator-nuclear-outages/data"

	// DefaultPageSize is the page length requested from upstream.
	// Override via PAGE_SIZE.
	DefaultPageSize = 5000

	// DefaultMaxRecords caps rows collected per run. Zero disables the cap.
	// Override via MAX_RECORDS.
	DefaultMaxRecords = 10000

	// DefaultMaxRetries bounds attempts per page fetch.
	// Override via MAX_RETRIES.
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the base backoff delay, doubled per attempt.
	// Override via RETRY_DELAY.
	DefaultRetryDelay = 5 * time.Second

	// DefaultRequestTimeout bounds one upstream HTTP request.
	DefaultRequestTimeout = 30 * time.Second
)

// Storage defaults.
const (
	// DefaultRawPath is the raw store Parquet file.
	// Override via RAW_PATH.
	DefaultRawPath = "data/raw_data.parquet"

	// DefaultModeledDir is the live modeled store directory.
	// Override via MODELED_DIR.
	DefaultModeledDir = "data/modeled"
)

// Refresh defaults.
const (
	// DefaultPreviewHead is the rows per table returned by preview refreshes.
	DefaultPreviewHead = 5

	// MaxPreviewHead bounds the preview sample size.
	MaxPreviewHead = 100
)

// Event defaults.
const (
	// DefaultKafkaTopic is the topic refresh events are published to.
	// Override via KAFKA_TOPIC.
	DefaultKafkaTopic = "outages.refresh"
)
