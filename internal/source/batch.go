package source

import (
	"context"

	"github.com/leapstack-labs/wrangle/pkg/row"
	"github.com/leapstack-labs/wrangle/pkg/sampling"
)

// ReadBatch pulls up to size rows from it. A short batch means it is
// exhausted. A size of zero or less reads everything.
func ReadBatch(ctx context.Context, it sampling.Iterator[*row.Row], size int) ([]*row.Row, error) {
	var batch []*row.Row
	if size > 0 {
		batch = make([]*row.Row, 0, size)
	}
	for size <= 0 || len(batch) < size {
		if err := ctx.Err(); err != nil {
			return batch, err
		}
		r, ok := it.Next()
		if !ok {
			break
		}
		batch = append(batch, r)
	}
	return batch, nil
}

// ReadAll reads every row of src and reports the source error, if any.
func ReadAll(ctx context.Context, src Source) ([]*row.Row, error) {
	rows, err := ReadBatch(ctx, src, 0)
	if err != nil {
		return rows, err
	}
	return rows, src.Err()
}

// Batches splits src into batches of size rows. The final batch may be
// shorter; an exhausted source yields no empty batch.
func Batches(ctx context.Context, src Source, size int) ([][]*row.Row, error) {
	var out [][]*row.Row
	for {
		batch, err := ReadBatch(ctx, src, size)
		if err != nil {
			return out, err
		}
		if len(batch) > 0 {
			out = append(out, batch)
		}
		if size <= 0 || len(batch) < size {
			return out, src.Err()
		}
	}
}
