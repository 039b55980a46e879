package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"tallybook/internal/bootstrap/logging"
)

// RecordIntegrity is the slice of a raw record the checksum service needs.
type RecordIntegrity struct {
	RawRecordID      string
	Payload          []byte
	FileChecksum     string
	LegacyNoChecksum bool
}

// ReadOptions control checksum behavior on the raw-record read path.
//
// Strict is the default mode: a missing checksum or a mismatch fails the
// call. FlagLegacyMissing is the migration path: records without a checksum
// are flagged legacy and persisted as such. The two are mutually exclusive;
// Validate rejects the combination before any storage access so strict mode
// can never be bypassed by legacy flagging.
type ReadOptions struct {
	VerifyChecksums   bool
	FlagLegacyMissing bool
	Strict            bool
}

func DefaultReadOptions() ReadOptions {
	return ReadOptions{VerifyChecksums: true, Strict: true}
}

func (o ReadOptions) Validate() error {
	if o.Strict && o.FlagLegacyMissing {
		return fmt.Errorf("%w: strict mode cannot be combined with legacy flagging", ErrConfiguration)
	}
	return nil
}

// VerifyRecord checks a raw record's payload against its stored checksum.
//
// Legacy records always verify: no error, no warning, regardless of flags.
// A missing checksum is an error when raiseOnMissing is set, otherwise a
// logged warning that counts as verified. A mismatch is an error when
// raiseOnMismatch is set, otherwise a logged warning with a false return.
func VerifyRecord(ctx context.Context, rec RecordIntegrity, raiseOnMissing, raiseOnMismatch bool) (bool, error) {
	if rec.LegacyNoChecksum {
		return true, nil
	}

	if rec.FileChecksum == "" {
		if raiseOnMissing {
			return false, fmt.Errorf("%w: raw record %s", ErrChecksumMissing, rec.RawRecordID)
		}
		logging.Warn(ctx, "raw record has no checksum",
			slog.String("raw_record_id", rec.RawRecordID))
		return true, nil
	}

	computed, err := PayloadChecksum(rec.Payload)
	if err != nil {
		return false, fmt.Errorf("compute checksum for raw record %s: %w", rec.RawRecordID, err)
	}

	if computed != rec.FileChecksum {
		if raiseOnMismatch {
			return false, fmt.Errorf("%w: raw record %s (stored %s, computed %s)",
				ErrChecksumMismatch, rec.RawRecordID, rec.FileChecksum, computed)
		}
		logging.Warn(ctx, "raw record checksum mismatch",
			slog.String("raw_record_id", rec.RawRecordID),
			slog.String("stored", rec.FileChecksum),
			slog.String("computed", computed))
		return false, nil
	}

	return true, nil
}
