// Package dataset owns dataset version minting and the raw record store.
package dataset

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"tallybook/internal/bootstrap/logging"
	"tallybook/internal/domain/ledger"
	"tallybook/internal/errs"
	"tallybook/internal/ports"
	"tallybook/internal/usecase/audit"
)

type Service struct {
	repo  ports.LedgerRepository
	uow   ports.UnitOfWork
	audit *audit.Recorder
}

func NewService(repo ports.LedgerRepository, uow ports.UnitOfWork, recorder *audit.Recorder) *Service {
	return &Service{repo: repo, uow: uow, audit: recorder}
}

func nowString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// CreateVersion mints a new immutable dataset version id. This is the only
// way an id comes into existence; nothing in the core infers or defaults one.
func (s *Service) CreateVersion(ctx context.Context, actor ports.Actor) (ports.DatasetVersion, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return ports.DatasetVersion{}, errs.Wrap(err, "mint dataset version id")
	}

	version := ports.DatasetVersion{
		ID:        id.String(),
		CreatedAt: nowString(),
	}
	err = s.repo.CreateDatasetVersion(ctx, version)
	s.audit.Record(ctx, audit.Action{
		Actor:            actor,
		Type:             "dataset_version.create",
		Label:            "create dataset version",
		DatasetVersionID: version.ID,
	}, err)
	if err != nil {
		return ports.DatasetVersion{}, err
	}

	logging.Info(ctx, "dataset version created", slog.String("dataset_version_id", version.ID))
	return version, nil
}

// RequireVersion validates an explicit dataset version id against the
// registry before any other side effect. Blank, malformed and unknown ids
// each fail with their own taxonomy error.
func RequireVersion(ctx context.Context, repo ports.LedgerRepository, datasetVersionID string) error {
	trimmed := strings.TrimSpace(datasetVersionID)
	if trimmed == "" {
		return ledger.ErrDatasetVersionMissing
	}
	if _, err := uuid.Parse(trimmed); err != nil {
		return fmt.Errorf("%w: %q", ledger.ErrDatasetVersionInvalid, datasetVersionID)
	}
	if _, err := repo.GetDatasetVersion(ctx, trimmed); err != nil {
		return err
	}
	return nil
}

type IngestInput struct {
	DatasetVersionID string
	// RawRecordID may be empty; the id is then derived from the dataset
	// version and the canonical payload checksum, making ingestion replayable.
	RawRecordID      string
	Payload          []byte
	FileChecksum     string
	LegacyNoChecksum bool
	Actor            ports.Actor
}

// IngestRawRecord appends one payload to a dataset version. A supplied
// checksum is verified against the canonical payload hash before anything is
// written; replays with identical content no-op, diverging replays conflict.
func (s *Service) IngestRawRecord(ctx context.Context, in IngestInput) (ports.RawRecord, error) {
	record, err := s.ingestRawRecord(ctx, in)
	s.audit.Record(ctx, audit.Action{
		Actor:            in.Actor,
		Type:             "raw_record.ingest",
		Label:            "ingest raw record",
		DatasetVersionID: strings.TrimSpace(in.DatasetVersionID),
		Context:          map[string]any{"raw_record_id": record.RawRecordID},
	}, err)
	return record, err
}

func (s *Service) ingestRawRecord(ctx context.Context, in IngestInput) (ports.RawRecord, error) {
	if err := RequireVersion(ctx, s.repo, in.DatasetVersionID); err != nil {
		return ports.RawRecord{}, err
	}
	datasetVersionID := strings.TrimSpace(in.DatasetVersionID)

	checksum, err := ledger.PayloadChecksum(in.Payload)
	if err != nil {
		return ports.RawRecord{}, err
	}
	if in.FileChecksum != "" && in.FileChecksum != checksum {
		return ports.RawRecord{}, fmt.Errorf("%w: supplied %s, computed %s",
			ledger.ErrChecksumMismatch, in.FileChecksum, checksum)
	}

	rawRecordID := strings.TrimSpace(in.RawRecordID)
	if rawRecordID == "" {
		rawRecordID = ledger.DeriveID("raw_record", datasetVersionID, checksum)
	}

	create := ports.RawRecordCreate{
		RawRecordID:      rawRecordID,
		DatasetVersionID: datasetVersionID,
		Payload:          string(in.Payload),
		FileChecksum:     in.FileChecksum,
		LegacyNoChecksum: in.LegacyNoChecksum,
		CreatedAt:        nowString(),
	}

	var out ports.RawRecord
	err = s.uow.WithTx(ctx, func(txCtx context.Context) error {
		inserted, err := s.repo.InsertRawRecord(txCtx, create)
		if err != nil {
			return err
		}

		existing, err := s.repo.GetRawRecord(txCtx, rawRecordID)
		if err != nil {
			return err
		}
		if !inserted {
			if existing.DatasetVersionID != create.DatasetVersionID ||
				existing.Payload != create.Payload ||
				existing.FileChecksum != create.FileChecksum ||
				existing.LegacyNoChecksum != create.LegacyNoChecksum {
				return fmt.Errorf("%w: raw record %s", ledger.ErrImmutableConflict, rawRecordID)
			}
		}
		out = existing
		return nil
	})
	if err != nil {
		return ports.RawRecord{}, err
	}
	return out, nil
}

// LoadRawRecords returns the records of one dataset version, verifying
// checksums per opts. The flag combination is rejected before any storage
// access. In strict mode the first violation fails the whole call; in
// migration mode violations are logged and, when requested, missing
// checksums are persisted as legacy flags.
func (s *Service) LoadRawRecords(ctx context.Context, datasetVersionID string, opts ledger.ReadOptions, actor ports.Actor) ([]ports.RawRecord, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := RequireVersion(ctx, s.repo, datasetVersionID); err != nil {
		return nil, err
	}

	records, err := s.repo.ListRawRecords(ctx, strings.TrimSpace(datasetVersionID))
	if err != nil {
		return nil, err
	}
	if !opts.VerifyChecksums {
		return records, nil
	}

	flagged := 0
	for i := range records {
		if _, err := s.verifyOne(ctx, &records[i], opts, &flagged); err != nil {
			return nil, err
		}
	}
	s.recordFlagged(ctx, strings.TrimSpace(datasetVersionID), actor, flagged)
	return records, nil
}

// LoadRawRecordByID is the single-record read path with the same flags. A
// record resolving to a different dataset version is a mismatch, never a
// silent cross-snapshot read.
func (s *Service) LoadRawRecordByID(ctx context.Context, datasetVersionID, rawRecordID string, opts ledger.ReadOptions, actor ports.Actor) (ports.RawRecord, error) {
	if err := opts.Validate(); err != nil {
		return ports.RawRecord{}, err
	}
	if err := RequireVersion(ctx, s.repo, datasetVersionID); err != nil {
		return ports.RawRecord{}, err
	}

	record, err := s.repo.GetRawRecord(ctx, rawRecordID)
	if err != nil {
		return ports.RawRecord{}, err
	}
	if record.DatasetVersionID != strings.TrimSpace(datasetVersionID) {
		return ports.RawRecord{}, fmt.Errorf("%w: raw record %s belongs to %s",
			ledger.ErrDatasetVersionMismatch, rawRecordID, record.DatasetVersionID)
	}

	if opts.VerifyChecksums {
		flagged := 0
		if _, err := s.verifyOne(ctx, &record, opts, &flagged); err != nil {
			return ports.RawRecord{}, err
		}
		s.recordFlagged(ctx, record.DatasetVersionID, actor, flagged)
	}
	return record, nil
}

// recordFlagged audits a read that persisted legacy flags as a side effect.
// Both read paths report the same action type, attributed to the caller.
func (s *Service) recordFlagged(ctx context.Context, datasetVersionID string, actor ports.Actor, flagged int) {
	if flagged == 0 {
		return
	}
	s.audit.Record(ctx, audit.Action{
		Actor:            actor,
		Type:             "raw_record.flag_legacy",
		Label:            "flag legacy raw records",
		DatasetVersionID: datasetVersionID,
		Context:          map[string]any{"flagged": flagged},
	}, nil)
}

func (s *Service) verifyOne(ctx context.Context, record *ports.RawRecord, opts ledger.ReadOptions, flagged *int) (bool, error) {
	if !record.LegacyNoChecksum && record.FileChecksum == "" && opts.FlagLegacyMissing {
		if err := s.repo.MarkRawRecordLegacy(ctx, record.RawRecordID); err != nil {
			return false, err
		}
		record.LegacyNoChecksum = true
		*flagged++
		return true, nil
	}

	return ledger.VerifyRecord(ctx, ledger.RecordIntegrity{
		RawRecordID:      record.RawRecordID,
		Payload:          []byte(record.Payload),
		FileChecksum:     record.FileChecksum,
		LegacyNoChecksum: record.LegacyNoChecksum,
	}, opts.Strict, opts.Strict)
}

// BackfillReport summarizes one legacy-flag backfill batch.
type BackfillReport struct {
	Scanned int
	Flagged int
	Failed  []string
}

// BackfillLegacyFlags marks every checksum-less record of a dataset version
// as legacy. Per-item failures are collected and do not abort the rest of
// the batch.
func (s *Service) BackfillLegacyFlags(ctx context.Context, datasetVersionID string, actor ports.Actor) (BackfillReport, error) {
	if err := RequireVersion(ctx, s.repo, datasetVersionID); err != nil {
		return BackfillReport{}, err
	}

	records, err := s.repo.ListRawRecords(ctx, strings.TrimSpace(datasetVersionID))
	if err != nil {
		return BackfillReport{}, err
	}

	report := BackfillReport{Scanned: len(records)}
	for _, record := range records {
		if record.LegacyNoChecksum || record.FileChecksum != "" {
			continue
		}
		if err := s.repo.MarkRawRecordLegacy(ctx, record.RawRecordID); err != nil {
			logging.Warn(ctx, "legacy backfill item failed",
				slog.String("raw_record_id", record.RawRecordID),
				slog.Any("err", errs.Loggable(err)))
			report.Failed = append(report.Failed, record.RawRecordID)
			continue
		}
		report.Flagged++
	}

	s.audit.Record(ctx, audit.Action{
		Actor:            actor,
		Type:             "raw_record.backfill_legacy",
		Label:            "backfill legacy checksum flags",
		DatasetVersionID: strings.TrimSpace(datasetVersionID),
		Context: map[string]any{
			"scanned": report.Scanned,
			"flagged": report.Flagged,
			"failed":  len(report.Failed),
		},
	}, nil)
	return report, nil
}
