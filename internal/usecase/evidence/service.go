// Package evidence owns the evidence/finding registry and finding-evidence
// links: idempotent create-by-ID with conflict detection, always scoped to an
// explicit dataset version.
package evidence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tallybook/internal/domain/ledger"
	"tallybook/internal/ports"
	"tallybook/internal/usecase/audit"
	"tallybook/internal/usecase/dataset"
)

type Service struct {
	repo       ports.EvidenceRepository
	ledgerRepo ports.LedgerRepository
	uow        ports.UnitOfWork
	audit      *audit.Recorder
}

func NewService(repo ports.EvidenceRepository, ledgerRepo ports.LedgerRepository, uow ports.UnitOfWork, recorder *audit.Recorder) *Service {
	return &Service{repo: repo, ledgerRepo: ledgerRepo, uow: uow, audit: recorder}
}

func nowString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

type CreateEvidenceInput struct {
	// EvidenceID may be empty when EngineID and StableKey are given; the id
	// is then derived from (dataset version, engine, kind, stable key).
	EvidenceID       string
	DatasetVersionID string
	EngineID         string
	Kind             string
	StableKey        string
	Payload          []byte
	// CreatedAt is caller-supplied so identical retries replay byte-for-byte;
	// empty means now.
	CreatedAt string
	Actor     ports.Actor
}

// CreateEvidence inserts an evidence record by deterministic id. The first
// successful writer wins; an identical retry returns the stored row; a
// differing retry is an immutable conflict, never an overwrite.
func (s *Service) CreateEvidence(ctx context.Context, in CreateEvidenceInput) (ports.EvidenceRecord, error) {
	record, err := s.createEvidence(ctx, in)
	s.audit.Record(ctx, audit.Action{
		Actor:            in.Actor,
		Type:             "evidence.create",
		Label:            "create evidence record",
		DatasetVersionID: strings.TrimSpace(in.DatasetVersionID),
		Context:          map[string]any{"evidence_id": record.EvidenceID, "kind": in.Kind},
	}, err)
	return record, err
}

func (s *Service) createEvidence(ctx context.Context, in CreateEvidenceInput) (ports.EvidenceRecord, error) {
	if err := dataset.RequireVersion(ctx, s.ledgerRepo, in.DatasetVersionID); err != nil {
		return ports.EvidenceRecord{}, err
	}
	datasetVersionID := strings.TrimSpace(in.DatasetVersionID)

	canonical, err := ledger.CanonicalJSON(in.Payload)
	if err != nil {
		return ports.EvidenceRecord{}, err
	}

	evidenceID := strings.TrimSpace(in.EvidenceID)
	if evidenceID == "" {
		evidenceID = ledger.EvidenceID(datasetVersionID, in.EngineID, in.Kind, in.StableKey)
	}
	createdAt := in.CreatedAt
	if createdAt == "" {
		createdAt = nowString()
	}

	create := ports.EvidenceRecord{
		EvidenceID:       evidenceID,
		DatasetVersionID: datasetVersionID,
		Kind:             in.Kind,
		Payload:          string(canonical),
		CreatedAt:        createdAt,
	}

	var out ports.EvidenceRecord
	err = s.uow.WithTx(ctx, func(txCtx context.Context) error {
		inserted, err := s.repo.InsertEvidence(txCtx, create)
		if err != nil {
			return err
		}
		existing, err := s.repo.GetEvidence(txCtx, evidenceID)
		if err != nil {
			return err
		}
		if !inserted && existing != create {
			return fmt.Errorf("%w: evidence %s", ledger.ErrImmutableConflict, evidenceID)
		}
		out = existing
		return nil
	})
	if err != nil {
		return ports.EvidenceRecord{}, err
	}
	return out, nil
}

type CreateFindingInput struct {
	FindingID        string
	DatasetVersionID string
	EngineID         string
	RawRecordID      string
	Kind             string
	StableKey        string
	Payload          []byte
	CreatedAt        string
	Actor            ports.Actor
}

// CreateFinding has the same replay semantics as CreateEvidence plus the
// referential check that the raw record belongs to the same dataset version.
func (s *Service) CreateFinding(ctx context.Context, in CreateFindingInput) (ports.FindingRecord, error) {
	record, err := s.createFinding(ctx, in)
	s.audit.Record(ctx, audit.Action{
		Actor:            in.Actor,
		Type:             "finding.create",
		Label:            "create finding record",
		DatasetVersionID: strings.TrimSpace(in.DatasetVersionID),
		Context:          map[string]any{"finding_id": record.FindingID, "kind": in.Kind},
	}, err)
	return record, err
}

func (s *Service) createFinding(ctx context.Context, in CreateFindingInput) (ports.FindingRecord, error) {
	if err := dataset.RequireVersion(ctx, s.ledgerRepo, in.DatasetVersionID); err != nil {
		return ports.FindingRecord{}, err
	}
	datasetVersionID := strings.TrimSpace(in.DatasetVersionID)

	rawRecord, err := s.ledgerRepo.GetRawRecord(ctx, in.RawRecordID)
	if err != nil {
		return ports.FindingRecord{}, err
	}
	if rawRecord.DatasetVersionID != datasetVersionID {
		return ports.FindingRecord{}, fmt.Errorf("%w: raw record %s belongs to %s",
			ledger.ErrDatasetVersionMismatch, in.RawRecordID, rawRecord.DatasetVersionID)
	}

	canonical, err := ledger.CanonicalJSON(in.Payload)
	if err != nil {
		return ports.FindingRecord{}, err
	}

	findingID := strings.TrimSpace(in.FindingID)
	if findingID == "" {
		findingID = ledger.FindingID(datasetVersionID, in.EngineID, in.Kind, in.StableKey)
	}
	createdAt := in.CreatedAt
	if createdAt == "" {
		createdAt = nowString()
	}

	create := ports.FindingRecord{
		FindingID:        findingID,
		DatasetVersionID: datasetVersionID,
		RawRecordID:      in.RawRecordID,
		Kind:             in.Kind,
		Payload:          string(canonical),
		CreatedAt:        createdAt,
	}

	var out ports.FindingRecord
	err = s.uow.WithTx(ctx, func(txCtx context.Context) error {
		inserted, err := s.repo.InsertFinding(txCtx, create)
		if err != nil {
			return err
		}
		existing, err := s.repo.GetFinding(txCtx, findingID)
		if err != nil {
			return err
		}
		if !inserted && existing != create {
			return fmt.Errorf("%w: finding %s", ledger.ErrImmutableConflict, findingID)
		}
		out = existing
		return nil
	})
	if err != nil {
		return ports.FindingRecord{}, err
	}
	return out, nil
}

type LinkInput struct {
	LinkID     string
	FindingID  string
	EvidenceID string
	Actor      ports.Actor
}

// LinkFindingToEvidence connects a finding to supporting evidence. Both
// referents must already exist and share a dataset version.
func (s *Service) LinkFindingToEvidence(ctx context.Context, in LinkInput) (ports.FindingEvidenceLink, error) {
	link, err := s.link(ctx, in)
	s.audit.Record(ctx, audit.Action{
		Actor:   in.Actor,
		Type:    "finding_evidence_link.create",
		Label:   "link finding to evidence",
		Context: map[string]any{"link_id": link.LinkID},
	}, err)
	return link, err
}

func (s *Service) link(ctx context.Context, in LinkInput) (ports.FindingEvidenceLink, error) {
	finding, err := s.repo.GetFinding(ctx, in.FindingID)
	if err != nil {
		return ports.FindingEvidenceLink{}, err
	}
	evidenceRecord, err := s.repo.GetEvidence(ctx, in.EvidenceID)
	if err != nil {
		return ports.FindingEvidenceLink{}, err
	}
	if finding.DatasetVersionID != evidenceRecord.DatasetVersionID {
		return ports.FindingEvidenceLink{}, fmt.Errorf(
			"%w: finding %s is in %s, evidence %s is in %s",
			ledger.ErrDatasetVersionMismatch,
			finding.FindingID, finding.DatasetVersionID,
			evidenceRecord.EvidenceID, evidenceRecord.DatasetVersionID)
	}

	linkID := strings.TrimSpace(in.LinkID)
	if linkID == "" {
		linkID = ledger.LinkID(finding.FindingID, evidenceRecord.EvidenceID)
	}

	create := ports.FindingEvidenceLink{
		LinkID:     linkID,
		FindingID:  finding.FindingID,
		EvidenceID: evidenceRecord.EvidenceID,
		CreatedAt:  nowString(),
	}

	var out ports.FindingEvidenceLink
	err = s.uow.WithTx(ctx, func(txCtx context.Context) error {
		inserted, err := s.repo.InsertLink(txCtx, create)
		if err != nil {
			return err
		}
		existing, err := s.repo.GetLink(txCtx, linkID)
		if err != nil {
			return err
		}
		if !inserted &&
			(existing.FindingID != create.FindingID || existing.EvidenceID != create.EvidenceID) {
			return fmt.Errorf("%w: link %s", ledger.ErrImmutableConflict, linkID)
		}
		out = existing
		return nil
	})
	if err != nil {
		return ports.FindingEvidenceLink{}, err
	}
	return out, nil
}

// FindingWithEvidence is a finding plus the evidence ids reachable through
// its links.
type FindingWithEvidence struct {
	ports.FindingRecord
	EvidenceIDs []string
}

// ListFindings returns the findings of one dataset version with their linked
// evidence ids.
func (s *Service) ListFindings(ctx context.Context, datasetVersionID string) ([]FindingWithEvidence, error) {
	if err := dataset.RequireVersion(ctx, s.ledgerRepo, datasetVersionID); err != nil {
		return nil, err
	}

	findings, err := s.repo.ListFindingsByDataset(ctx, strings.TrimSpace(datasetVersionID))
	if err != nil {
		return nil, err
	}

	findingIDs := make([]string, 0, len(findings))
	for _, f := range findings {
		findingIDs = append(findingIDs, f.FindingID)
	}
	links, err := s.repo.ListLinksByFindings(ctx, findingIDs)
	if err != nil {
		return nil, err
	}

	linked := make(map[string][]string, len(findings))
	for _, link := range links {
		linked[link.FindingID] = append(linked[link.FindingID], link.EvidenceID)
	}

	out := make([]FindingWithEvidence, 0, len(findings))
	for _, f := range findings {
		out = append(out, FindingWithEvidence{FindingRecord: f, EvidenceIDs: linked[f.FindingID]})
	}
	return out, nil
}

// ListEvidence returns the evidence of one dataset version.
func (s *Service) ListEvidence(ctx context.Context, datasetVersionID string) ([]ports.EvidenceRecord, error) {
	if err := dataset.RequireVersion(ctx, s.ledgerRepo, datasetVersionID); err != nil {
		return nil, err
	}
	return s.repo.ListEvidenceByDataset(ctx, strings.TrimSpace(datasetVersionID))
}

// GetEvidenceByIDs fetches specific evidence ids within one dataset version.
// An id resolving to another version is a mismatch, and a missing id is an
// error rather than a silently shorter result.
func (s *Service) GetEvidenceByIDs(ctx context.Context, datasetVersionID string, evidenceIDs []string) ([]ports.EvidenceRecord, error) {
	if err := dataset.RequireVersion(ctx, s.ledgerRepo, datasetVersionID); err != nil {
		return nil, err
	}
	datasetVersionID = strings.TrimSpace(datasetVersionID)

	records, err := s.repo.GetEvidenceByIDs(ctx, evidenceIDs)
	if err != nil {
		return nil, err
	}
	if len(records) != len(dedupe(evidenceIDs)) {
		return nil, fmt.Errorf("%w: %d of %d evidence ids found",
			ledger.ErrMissingEvidence, len(records), len(dedupe(evidenceIDs)))
	}
	for _, record := range records {
		if record.DatasetVersionID != datasetVersionID {
			return nil, fmt.Errorf("%w: evidence %s belongs to %s",
				ledger.ErrDatasetVersionMismatch, record.EvidenceID, record.DatasetVersionID)
		}
	}
	return records, nil
}

// GetFindingsByIDs fetches specific finding ids within one dataset version
// with the same scoping rules as GetEvidenceByIDs.
func (s *Service) GetFindingsByIDs(ctx context.Context, datasetVersionID string, findingIDs []string) ([]ports.FindingRecord, error) {
	if err := dataset.RequireVersion(ctx, s.ledgerRepo, datasetVersionID); err != nil {
		return nil, err
	}
	datasetVersionID = strings.TrimSpace(datasetVersionID)

	records, err := s.repo.GetFindingsByIDs(ctx, findingIDs)
	if err != nil {
		return nil, err
	}
	if len(records) != len(dedupe(findingIDs)) {
		return nil, fmt.Errorf("%w: %d of %d finding ids found",
			ledger.ErrMissingEvidence, len(records), len(dedupe(findingIDs)))
	}
	for _, record := range records {
		if record.DatasetVersionID != datasetVersionID {
			return nil, fmt.Errorf("%w: finding %s belongs to %s",
				ledger.ErrDatasetVersionMismatch, record.FindingID, record.DatasetVersionID)
		}
	}
	return records, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
