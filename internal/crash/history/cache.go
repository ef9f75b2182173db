package history

import (
	"context"

	lru "github.com/hashicorp/golang-lru"
)

// Cached guarda rodadas lidas por id; rodadas gravadas nunca mudam,
// então a entrada não precisa de invalidação
type Cached struct {
	Store
	rounds *lru.Cache
}

func NewCached(s Store, size int) (*Cached, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Cached{Store: s, rounds: c}, nil
}

func (c *Cached) Get(ctx context.Context, roundID int64) (Round, error) {
	if v, ok := c.rounds.Get(roundID); ok {
		if r, ok := v.(Round); ok {
			return r, nil
		}
	}
	r, err := c.Store.Get(ctx, roundID)
	if err != nil {
		return Round{}, err
	}
	c.rounds.Add(roundID, r)
	return r, nil
}
