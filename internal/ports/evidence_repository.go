package ports

import "context"

type EvidenceRecord struct {
	EvidenceID       string
	DatasetVersionID string
	Kind             string
	Payload          string
	CreatedAt        string
}

type FindingRecord struct {
	FindingID        string
	DatasetVersionID string
	RawRecordID      string
	Kind             string
	Payload          string
	CreatedAt        string
}

type FindingEvidenceLink struct {
	LinkID     string
	FindingID  string
	EvidenceID string
	CreatedAt  string
}

// EvidenceRepository persists evidence, findings and their links.
//
// Insert* methods are first-writer-wins: the insert is conflict-ignored on
// the deterministic primary key and the bool reports whether this call
// created the row. Callers compare against the existing row when false.
type EvidenceRepository interface {
	InsertEvidence(ctx context.Context, record EvidenceRecord) (bool, error)
	GetEvidence(ctx context.Context, evidenceID string) (EvidenceRecord, error)
	GetEvidenceByIDs(ctx context.Context, evidenceIDs []string) ([]EvidenceRecord, error)
	ListEvidenceByDataset(ctx context.Context, datasetVersionID string) ([]EvidenceRecord, error)

	InsertFinding(ctx context.Context, record FindingRecord) (bool, error)
	GetFinding(ctx context.Context, findingID string) (FindingRecord, error)
	GetFindingsByIDs(ctx context.Context, findingIDs []string) ([]FindingRecord, error)
	ListFindingsByDataset(ctx context.Context, datasetVersionID string) ([]FindingRecord, error)

	InsertLink(ctx context.Context, link FindingEvidenceLink) (bool, error)
	GetLink(ctx context.Context, linkID string) (FindingEvidenceLink, error)
	ListLinksByFindings(ctx context.Context, findingIDs []string) ([]FindingEvidenceLink, error)
}
