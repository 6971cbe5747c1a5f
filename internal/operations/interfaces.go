package operations

import (
	"context"

	"pricepipe/internal/crawler"
	"pricepipe/internal/dataprocessing"
	"pricepipe/internal/files"
)

// Crawler runs the browser stage and reports the downloaded artifact.
type Crawler interface {
	Run(ctx context.Context) (crawler.Result, error)
}

// ArtifactLocator finds the newest export in a directory.
type ArtifactLocator interface {
	LatestExcelFile(dir string) (files.FileInfo, error)
}

// TableReader reads a spreadsheet into a raw table.
type TableReader interface {
	ReadTable(path string) (dataprocessing.RawTable, error)
}

// Transformer maps a raw table onto the canonical schema.
type Transformer interface {
	Transform(raw dataprocessing.RawTable) (*dataprocessing.CanonicalTable, error)
}

// Loader appends a canonical table to the store.
type Loader interface {
	Load(ctx context.Context, table *dataprocessing.CanonicalTable, tableName string) (int64, error)
}
