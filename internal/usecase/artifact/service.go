// Package artifact is the content-addressed blob store: keys derive from
// content, puts are idempotent, and every read re-verifies the hash.
package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"tallybook/internal/domain/ledger"
	"tallybook/internal/ports"
	"tallybook/internal/usecase/audit"
)

const keyPrefix = "sha256:"

type Service struct {
	repo  ports.ArtifactRepository
	audit *audit.Recorder
}

func NewService(repo ports.ArtifactRepository, recorder *audit.Recorder) *Service {
	return &Service{repo: repo, audit: recorder}
}

// Info describes a stored artifact without its content.
type Info struct {
	Key         string
	SHA256      string
	Size        int64
	ContentType string
}

// Key returns the content-derived storage key for a blob.
func Key(content []byte) (key, sha string) {
	sum := sha256.Sum256(content)
	sha = hex.EncodeToString(sum[:])
	return keyPrefix + sha, sha
}

// Put stores a blob under its content-derived key. Identical content always
// yields the same key; a second put of the same content is a no-op, and
// concurrent identical puts cannot duplicate storage or fail each other.
func (s *Service) Put(ctx context.Context, content []byte, contentType string, actor ports.Actor) (Info, error) {
	key, sha := Key(content)

	create := ports.Artifact{
		Key:         key,
		SHA256:      sha,
		Size:        int64(len(content)),
		ContentType: contentType,
		Content:     content,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339Nano),
	}

	inserted, err := s.repo.InsertArtifact(ctx, create)
	if err == nil && !inserted {
		// Key collision with different bytes cannot happen short of storage
		// corruption; verify anyway so it surfaces here and not on read.
		var existing ports.Artifact
		existing, err = s.repo.GetArtifact(ctx, key)
		if err == nil && existing.SHA256 != sha {
			err = fmt.Errorf("%w: artifact %s", ledger.ErrImmutableConflict, key)
		}
	}

	s.audit.Record(ctx, audit.Action{
		Actor:   actor,
		Type:    "artifact.put",
		Label:   "store artifact",
		Context: map[string]any{"key": key, "size": create.Size, "created": inserted},
	}, err)
	if err != nil {
		return Info{}, err
	}
	return Info{Key: key, SHA256: sha, Size: create.Size, ContentType: contentType}, nil
}

// Get returns a stored blob after recomputing its hash. A mismatch means the
// backing store corrupted the content and is always a hard failure.
func (s *Service) Get(ctx context.Context, key string) (ports.Artifact, error) {
	stored, err := s.repo.GetArtifact(ctx, key)
	if err != nil {
		return ports.Artifact{}, err
	}

	sum := sha256.Sum256(stored.Content)
	computed := hex.EncodeToString(sum[:])
	if computed != stored.SHA256 {
		return ports.Artifact{}, fmt.Errorf("%w: artifact %s (stored %s, computed %s)",
			ledger.ErrChecksumMismatch, key, stored.SHA256, computed)
	}
	return stored, nil
}
