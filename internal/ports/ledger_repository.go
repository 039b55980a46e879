package ports

import "context"

type DatasetVersion struct {
	ID        string
	CreatedAt string
}

type RawRecord struct {
	RawRecordID      string
	DatasetVersionID string
	Payload          string
	FileChecksum     string
	LegacyNoChecksum bool
	CreatedAt        string
}

type RawRecordCreate struct {
	RawRecordID      string
	DatasetVersionID string
	Payload          string
	FileChecksum     string
	LegacyNoChecksum bool
	CreatedAt        string
}

// LedgerRepository persists dataset versions and their raw records.
//
// Raw record payloads are immutable once written; the only permitted update
// is MarkRawRecordLegacy, which sets the migration flag and nothing else.
type LedgerRepository interface {
	CreateDatasetVersion(ctx context.Context, version DatasetVersion) error
	GetDatasetVersion(ctx context.Context, id string) (DatasetVersion, error)

	InsertRawRecord(ctx context.Context, record RawRecordCreate) (bool, error)
	GetRawRecord(ctx context.Context, rawRecordID string) (RawRecord, error)
	ListRawRecords(ctx context.Context, datasetVersionID string) ([]RawRecord, error)
	MarkRawRecordLegacy(ctx context.Context, rawRecordID string) error
}
