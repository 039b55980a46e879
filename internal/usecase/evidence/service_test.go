package evidence

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"tallybook/internal/domain/ledger"
	"tallybook/internal/infrastructure/persistence/sqlite/model"
	sqliterepo "tallybook/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "tallybook/internal/infrastructure/persistence/sqlite/uow"
	"tallybook/internal/ports"
	"tallybook/internal/usecase/audit"
	"tallybook/internal/usecase/dataset"
)

type fixture struct {
	svc      *Service
	datasets *dataset.Service
}

func setup(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(gormsqlite.Open(filepath.Join(t.TempDir(), "ledger.sqlite")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	if err := db.AutoMigrate(
		&model.DatasetVersion{},
		&model.RawRecord{},
		&model.EvidenceRecord{},
		&model.FindingRecord{},
		&model.FindingEvidenceLink{},
		&model.AuditEntry{},
	); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	recorder := audit.NewRecorder(sqliterepo.NewAuditRepository(db))
	ledgerRepo := sqliterepo.NewLedgerRepository(db)
	uow := sqliteuow.NewUnitOfWork(db)
	return &fixture{
		svc:      NewService(sqliterepo.NewEvidenceRepository(db), ledgerRepo, uow, recorder),
		datasets: dataset.NewService(ledgerRepo, uow, recorder),
	}
}

func testActor() ports.Actor {
	return ports.Actor{ID: "engine:quality", Type: "engine"}
}

func (f *fixture) mintVersion(t *testing.T) string {
	t.Helper()
	version, err := f.datasets.CreateVersion(context.Background(), testActor())
	if err != nil {
		t.Fatalf("CreateVersion() error = %v", err)
	}
	return version.ID
}

func (f *fixture) ingestRecord(t *testing.T, datasetVersionID string) string {
	t.Helper()
	record, err := f.datasets.IngestRawRecord(context.Background(), dataset.IngestInput{
		DatasetVersionID: datasetVersionID,
		Payload:          []byte(`{"row": 1}`),
		LegacyNoChecksum: true,
		Actor:            testActor(),
	})
	if err != nil {
		t.Fatalf("IngestRawRecord() error = %v", err)
	}
	return record.RawRecordID
}

func TestCreateEvidenceDerivesStableID(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	dv := f.mintVersion(t)

	in := CreateEvidenceInput{
		DatasetVersionID: dv,
		EngineID:         "quality",
		Kind:             "null_rate",
		StableKey:        "col:amount",
		Payload:          []byte(`{"rate": "0.25"}`),
		CreatedAt:        "2026-08-01T00:00:00Z",
		Actor:            testActor(),
	}
	record, err := f.svc.CreateEvidence(ctx, in)
	if err != nil {
		t.Fatalf("CreateEvidence() error = %v", err)
	}
	if record.EvidenceID != ledger.EvidenceID(dv, "quality", "null_rate", "col:amount") {
		t.Fatalf("evidence id = %s, want derived id", record.EvidenceID)
	}

	replay, err := f.svc.CreateEvidence(ctx, in)
	if err != nil {
		t.Fatalf("replay CreateEvidence() error = %v", err)
	}
	if replay != record {
		t.Fatalf("replay returned %#v, want stored %#v", replay, record)
	}
}

func TestCreateEvidenceReplayIgnoresKeyOrder(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	dv := f.mintVersion(t)

	base := CreateEvidenceInput{
		DatasetVersionID: dv,
		EngineID:         "quality",
		Kind:             "null_rate",
		StableKey:        "col:amount",
		CreatedAt:        "2026-08-01T00:00:00Z",
		Actor:            testActor(),
	}

	first := base
	first.Payload = []byte(`{"rate": "0.25", "rows": 100}`)
	if _, err := f.svc.CreateEvidence(ctx, first); err != nil {
		t.Fatalf("CreateEvidence() error = %v", err)
	}

	// Same content in another key order canonicalizes identically.
	second := base
	second.Payload = []byte(`{"rows": 100, "rate": "0.25"}`)
	if _, err := f.svc.CreateEvidence(ctx, second); err != nil {
		t.Fatalf("reordered replay error = %v", err)
	}
}

func TestCreateEvidenceDivergingReplayConflicts(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	dv := f.mintVersion(t)

	in := CreateEvidenceInput{
		EvidenceID:       "ev-1",
		DatasetVersionID: dv,
		Kind:             "null_rate",
		Payload:          []byte(`{"rate": "0.25"}`),
		CreatedAt:        "2026-08-01T00:00:00Z",
		Actor:            testActor(),
	}
	if _, err := f.svc.CreateEvidence(ctx, in); err != nil {
		t.Fatalf("CreateEvidence() error = %v", err)
	}

	in.Payload = []byte(`{"rate": "0.30"}`)
	if _, err := f.svc.CreateEvidence(ctx, in); !errors.Is(err, ledger.ErrImmutableConflict) {
		t.Fatalf("diverging replay error = %v, want ErrImmutableConflict", err)
	}
}

func TestCreateFindingChecksRawRecordVersion(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	dv1 := f.mintVersion(t)
	dv2 := f.mintVersion(t)
	rawID := f.ingestRecord(t, dv1)

	if _, err := f.svc.CreateFinding(ctx, CreateFindingInput{
		FindingID:        "finding-1",
		DatasetVersionID: dv1,
		RawRecordID:      rawID,
		Kind:             "anomaly",
		Payload:          []byte(`{"score": "0.9"}`),
		Actor:            testActor(),
	}); err != nil {
		t.Fatalf("CreateFinding() error = %v", err)
	}

	_, err := f.svc.CreateFinding(ctx, CreateFindingInput{
		FindingID:        "finding-2",
		DatasetVersionID: dv2,
		RawRecordID:      rawID,
		Kind:             "anomaly",
		Payload:          []byte(`{"score": "0.9"}`),
		Actor:            testActor(),
	})
	if !errors.Is(err, ledger.ErrDatasetVersionMismatch) {
		t.Fatalf("cross-version finding error = %v, want ErrDatasetVersionMismatch", err)
	}

	_, err = f.svc.CreateFinding(ctx, CreateFindingInput{
		FindingID:        "finding-3",
		DatasetVersionID: dv1,
		RawRecordID:      "absent",
		Kind:             "anomaly",
		Payload:          []byte(`{"score": "0.9"}`),
		Actor:            testActor(),
	})
	if !errors.Is(err, ledger.ErrRawRecordNotFound) {
		t.Fatalf("absent raw record error = %v, want ErrRawRecordNotFound", err)
	}
}

func TestLinkRequiresSharedDatasetVersion(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	dv1 := f.mintVersion(t)
	dv2 := f.mintVersion(t)
	rawID := f.ingestRecord(t, dv1)

	finding, err := f.svc.CreateFinding(ctx, CreateFindingInput{
		DatasetVersionID: dv1,
		EngineID:         "quality",
		RawRecordID:      rawID,
		Kind:             "anomaly",
		StableKey:        "row:1",
		Payload:          []byte(`{"score": "0.9"}`),
		Actor:            testActor(),
	})
	if err != nil {
		t.Fatalf("CreateFinding() error = %v", err)
	}

	sameVersion, err := f.svc.CreateEvidence(ctx, CreateEvidenceInput{
		DatasetVersionID: dv1,
		EngineID:         "quality",
		Kind:             "null_rate",
		StableKey:        "col:amount",
		Payload:          []byte(`{"rate": "0.25"}`),
		Actor:            testActor(),
	})
	if err != nil {
		t.Fatalf("CreateEvidence() error = %v", err)
	}
	otherVersion, err := f.svc.CreateEvidence(ctx, CreateEvidenceInput{
		DatasetVersionID: dv2,
		EngineID:         "quality",
		Kind:             "null_rate",
		StableKey:        "col:amount",
		Payload:          []byte(`{"rate": "0.25"}`),
		Actor:            testActor(),
	})
	if err != nil {
		t.Fatalf("CreateEvidence() error = %v", err)
	}

	link, err := f.svc.LinkFindingToEvidence(ctx, LinkInput{
		FindingID:  finding.FindingID,
		EvidenceID: sameVersion.EvidenceID,
		Actor:      testActor(),
	})
	if err != nil {
		t.Fatalf("LinkFindingToEvidence() error = %v", err)
	}
	if link.LinkID != ledger.LinkID(finding.FindingID, sameVersion.EvidenceID) {
		t.Fatalf("link id = %s, want derived id", link.LinkID)
	}

	// Linking twice is a no-op.
	if _, err := f.svc.LinkFindingToEvidence(ctx, LinkInput{
		FindingID:  finding.FindingID,
		EvidenceID: sameVersion.EvidenceID,
		Actor:      testActor(),
	}); err != nil {
		t.Fatalf("replay link error = %v", err)
	}

	_, err = f.svc.LinkFindingToEvidence(ctx, LinkInput{
		FindingID:  finding.FindingID,
		EvidenceID: otherVersion.EvidenceID,
		Actor:      testActor(),
	})
	if !errors.Is(err, ledger.ErrDatasetVersionMismatch) {
		t.Fatalf("cross-version link error = %v, want ErrDatasetVersionMismatch", err)
	}
}

func TestListFindingsCarriesLinkedEvidence(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	dv := f.mintVersion(t)
	rawID := f.ingestRecord(t, dv)

	finding, err := f.svc.CreateFinding(ctx, CreateFindingInput{
		DatasetVersionID: dv,
		EngineID:         "quality",
		RawRecordID:      rawID,
		Kind:             "anomaly",
		StableKey:        "row:1",
		Payload:          []byte(`{"score": "0.9"}`),
		Actor:            testActor(),
	})
	if err != nil {
		t.Fatalf("CreateFinding() error = %v", err)
	}
	evidenceRecord, err := f.svc.CreateEvidence(ctx, CreateEvidenceInput{
		DatasetVersionID: dv,
		EngineID:         "quality",
		Kind:             "null_rate",
		StableKey:        "col:amount",
		Payload:          []byte(`{"rate": "0.25"}`),
		Actor:            testActor(),
	})
	if err != nil {
		t.Fatalf("CreateEvidence() error = %v", err)
	}
	if _, err := f.svc.LinkFindingToEvidence(ctx, LinkInput{
		FindingID:  finding.FindingID,
		EvidenceID: evidenceRecord.EvidenceID,
		Actor:      testActor(),
	}); err != nil {
		t.Fatalf("LinkFindingToEvidence() error = %v", err)
	}

	findings, err := f.svc.ListFindings(ctx, dv)
	if err != nil {
		t.Fatalf("ListFindings() error = %v", err)
	}
	if len(findings) != 1 {
		t.Fatalf("findings len = %d, want 1", len(findings))
	}
	if len(findings[0].EvidenceIDs) != 1 || findings[0].EvidenceIDs[0] != evidenceRecord.EvidenceID {
		t.Fatalf("linked evidence = %v", findings[0].EvidenceIDs)
	}
}

func TestGetEvidenceByIDsRejectsMissingAndForeign(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	dv1 := f.mintVersion(t)
	dv2 := f.mintVersion(t)

	record, err := f.svc.CreateEvidence(ctx, CreateEvidenceInput{
		DatasetVersionID: dv1,
		EngineID:         "quality",
		Kind:             "null_rate",
		StableKey:        "col:amount",
		Payload:          []byte(`{"rate": "0.25"}`),
		Actor:            testActor(),
	})
	if err != nil {
		t.Fatalf("CreateEvidence() error = %v", err)
	}

	got, err := f.svc.GetEvidenceByIDs(ctx, dv1, []string{record.EvidenceID})
	if err != nil {
		t.Fatalf("GetEvidenceByIDs() error = %v", err)
	}
	if len(got) != 1 || got[0].EvidenceID != record.EvidenceID {
		t.Fatalf("unexpected result: %#v", got)
	}

	_, err = f.svc.GetEvidenceByIDs(ctx, dv1, []string{record.EvidenceID, "absent"})
	if !errors.Is(err, ledger.ErrMissingEvidence) {
		t.Fatalf("missing id error = %v, want ErrMissingEvidence", err)
	}

	_, err = f.svc.GetEvidenceByIDs(ctx, dv2, []string{record.EvidenceID})
	if !errors.Is(err, ledger.ErrDatasetVersionMismatch) {
		t.Fatalf("foreign version error = %v, want ErrDatasetVersionMismatch", err)
	}
}
