package fake

import (
	"context"
	"sync/atomic"
)

// Radio reports a fixed signal strength which can be changed at runtime.
type Radio struct {
	dbm atomic.Int64
}

func NewRadio(dbm int) *Radio {
	var r Radio
	r.dbm.Store(int64(dbm))
	return &r
}

func (r *Radio) SignalStrength(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return int(r.dbm.Load()), nil
}

func (r *Radio) Set(dbm int) {
	r.dbm.Store(int64(dbm))
}
