package repository

import (
	"context"

	"github.com/maburgos12/pollyanas-dolce-erp/pkg/db/option"
	"gorm.io/gorm"
)

// Repository is the generic persistence surface shared by feature stores.
type Repository[T any] interface {
	WithTrx(tx *gorm.DB) Repository[T]
	Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	Create(ctx context.Context, resource *T) error
	Update(ctx context.Context, resourceID string, resource any) error
	Delete(ctx context.Context, resourceID string) error
	Count(ctx context.Context, query *T) (int64, error)
	BatchCreate(ctx context.Context, resources []*T) error
	BatchUpdate(ctx context.Context, resources []*T) error
	Upsert(ctx context.Context, conflictColumns []string, updateColumns []string, resources []*T) error
}
