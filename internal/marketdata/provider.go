package marketdata

import (
	"context"
	"time"
)

// Provider is the market-data collaborator the causal engine depends on.
//
// FetchDaily returns raw daily closing levels for a node's underlying ticker;
// FetchNodeSeries returns the node's derived weekly series (weekly changes or
// weekly log returns) used by propagation checks. Both signal expected data
// gaps with an empty series; an error means a genuine provider failure.
type Provider interface {
	FetchDaily(ctx context.Context, node string, start, end time.Time) (Series, error)
	FetchNodeSeries(ctx context.Context, node string, start, end time.Time) (Series, error)
}
