package marketdata

import (
	"fmt"

	apperrors "tremor/internal/errors"
)

// NodeMethod selects how raw closes are reduced to the node's weekly series.
type NodeMethod string

const (
	MethodWeeklyChange    NodeMethod = "weekly_change"
	MethodWeeklyLogReturn NodeMethod = "weekly_log_return"
)

// NodeConfig maps a causal-network node to its data source ticker and the
// computation that turns prices into the node's variable.
type NodeConfig struct {
	Source string     `json:"source"`
	Ticker string     `json:"ticker"`
	Method NodeMethod `json:"method"`
}

// DefaultNodes is the built-in registry of causal-network nodes.
var DefaultNodes = map[string]NodeConfig{
	"d_fed_funds":     {Source: "FRED", Ticker: "DFF", Method: MethodWeeklyChange},
	"d_treasury_10y":  {Source: "FRED", Ticker: "DGS10", Method: MethodWeeklyChange},
	"d_credit_spread": {Source: "FRED", Ticker: "BAMLH0A0HYM2", Method: MethodWeeklyChange},
	"d_vix":           {Source: "yahoo", Ticker: "^VIX", Method: MethodWeeklyChange},
	"sp500_ret":       {Source: "yahoo", Ticker: "^GSPC", Method: MethodWeeklyLogReturn},
}

// LookupNode resolves a node name against the registry.
func LookupNode(nodes map[string]NodeConfig, name string) (NodeConfig, error) {
	cfg, ok := nodes[name]
	if !ok {
		return NodeConfig{}, fmt.Errorf("%w: %s", apperrors.ErrUnknownNode, name)
	}
	return cfg, nil
}
