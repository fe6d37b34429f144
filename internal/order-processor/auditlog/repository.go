package auditlog

import "context"

// Repository appends journal entries. Rows are never updated.
type Repository interface {
	Save(ctx context.Context, entry *Entry) error
}
