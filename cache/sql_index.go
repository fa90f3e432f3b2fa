package cache

import (
	"context"

	"github.com/jfk9w-go/flu/gormf"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQLIndex is a postgres-backed Index shared between processes.
type SQLIndex gorm.DB

func (i *SQLIndex) Unmask() *gorm.DB {
	return (*gorm.DB)(i)
}

func (i *SQLIndex) Init(ctx context.Context) error {
	return i.Unmask().WithContext(ctx).AutoMigrate(new(Entry))
}

func (i *SQLIndex) Locate(ctx context.Context, key, format string) (*Entry, error) {
	entry := new(Entry)
	err := i.Unmask().WithContext(ctx).
		Where("key = ? and format = ?", key, format).
		First(entry).
		Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	case err != nil:
		return nil, err
	}

	return entry, nil
}

func (i *SQLIndex) Store(ctx context.Context, entry *Entry) error {
	update := clause.Set{
		clause.Assignment{Column: clause.Column{Name: "hits"}, Value: gorm.Expr("blob.hits + 1")},
		clause.Assignment{Column: clause.Column{Name: "last_seen"}, Value: entry.LastSeen},
	}

	return i.Unmask().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Clauses(gormf.OnConflictClause(entry, "primaryKey", false, update)).
			Create(entry).
			Error; err != nil {
			return errors.Wrap(err, "create")
		}

		if err := tx.First(entry).Error; err != nil {
			return errors.Wrap(err, "find")
		}

		return nil
	})
}
