package dataset

import (
	"context"
	"sort"
)

// ClassStat counts instances of one class: Direct are instances of exactly
// this class, Polymorphic includes every subclass instance (each instance
// owns a row in all its ancestors' tables).
type ClassStat struct {
	Class       string
	Direct      int64
	Polymorphic int64
}

// Stats reports per-class instance counts for all populated classes, most
// direct instances first.
func (d *Dataset) Stats(ctx context.Context) ([]ClassStat, error) {
	var stats []ClassStat
	for _, class := range d.Schema.Hierarchy() {
		poly, err := d.DB.Count(ctx, class.TableName())
		if err != nil {
			return nil, err
		}
		if poly == 0 {
			continue
		}
		direct, err := d.DB.CountWhereType(ctx, class.Root().TableName(), class.Name)
		if err != nil {
			return nil, err
		}
		stats = append(stats, ClassStat{Class: class.Name, Direct: direct, Polymorphic: poly})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Direct != stats[j].Direct {
			return stats[i].Direct > stats[j].Direct
		}
		return stats[i].Class < stats[j].Class
	})
	return stats, nil
}
