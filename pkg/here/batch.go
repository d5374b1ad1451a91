package here

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// BatchResult pairs an address with its resolution outcome.
type BatchResult struct {
	Address  string
	Position *Position
	Err      error
}

// BatchGeocode resolves several addresses with bounded parallelism.
// Individual failures are reported per address and do not abort the batch;
// results keep the input order.
func (c *Client) BatchGeocode(ctx context.Context, addresses []string) []BatchResult {
	results := make([]BatchResult, len(addresses))

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(c.batchConcurrency)

	for i, addr := range addresses {
		eg.Go(func() error {
			pos, err := c.Geocode(gCtx, addr)
			results[i] = BatchResult{Address: addr, Position: pos, Err: err}
			return nil
		})
	}

	_ = eg.Wait()
	return results
}
