package ports

import "context"

type Artifact struct {
	Key         string
	SHA256      string
	Size        int64
	ContentType string
	Content     []byte
	CreatedAt   string
}

// ArtifactRepository stores content-addressed blobs. Insert is
// conflict-ignored on the key; there is no update or delete.
type ArtifactRepository interface {
	InsertArtifact(ctx context.Context, artifact Artifact) (bool, error)
	GetArtifact(ctx context.Context, key string) (Artifact, error)
}
