package rubric

import "context"

type StoreAPI interface {
	ActiveVersion(ctx context.Context, key string) (Version, error)
	VersionByNumber(ctx context.Context, key string, version int) (Version, error)
	ListVersions(ctx context.Context, key string) ([]Version, error)
	CreateVersion(ctx context.Context, key string, value Rubric, createdBy, description string) (Version, error)
}
