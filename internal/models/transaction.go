package models

import "time"

// TransactionRecord is one sale line, already resolved to typed fields by the
// ingestion boundary. QuantitySold and StockRemaining stay nil when the source
// data has no such column; nil means "unknown", never zero.
type TransactionRecord struct {
	Timestamp      time.Time
	StoreID        string
	ItemID         string
	Category       string
	Amount         float64
	QuantitySold   *float64
	StockRemaining *float64
}

// ItemAggregate is the per-item summary inside a ranked segment. TotalQuantity
// and DaysSupply serialize as null when undefined so the payload shape stays
// stable whether or not the upstream data carried a quantity column.
type ItemAggregate struct {
	ItemID        string   `json:"item_id"`
	TotalSales    float64  `json:"total_sales"`
	TotalQuantity *float64 `json:"total_quantity"`
	Velocity      float64  `json:"velocity"`
	DaysSupply    *float64 `json:"days_supply"`
}

type SegmentKind string

const (
	SegmentTop    SegmentKind = "top"
	SegmentBottom SegmentKind = "bottom"
)

// RankedSegment holds the k best or worst sellers, ordered descending (top)
// or ascending (bottom) by total sales.
type RankedSegment struct {
	Kind    SegmentKind     `json:"segment_kind"`
	Members []ItemAggregate `json:"members"`
}

// CategoryShare is one row of the category mix summary.
type CategoryShare struct {
	Category       string  `json:"name"`
	TotalSales     float64 `json:"total_sales"`
	PercentOfTotal float64 `json:"percent_of_total"`
}

// RankedReport is the full report for one store and lookback window.
type RankedReport struct {
	StoreID       string          `json:"store_id,omitempty"`
	WindowDays    int             `json:"window_days"`
	DistinctItems int             `json:"distinct_items"`
	SegmentSize   int             `json:"segment_size"`
	Top           RankedSegment   `json:"top"`
	Bottom        RankedSegment   `json:"bottom"`
	Categories    []CategoryShare `json:"categories"`
	GeneratedAt   time.Time       `json:"generated_at"`
}

// InsightReport is the advisory output of the LLM collaborator.
type InsightReport struct {
	ID               string    `json:"id"`
	StoreID          string    `json:"store_id,omitempty"`
	WindowDays       int       `json:"window_days"`
	CategoryInsights []string  `json:"category_insights"`
	ProductInsights  []string  `json:"product_insights"`
	Insights         []string  `json:"insights"`
	Model            string    `json:"model"`
	GeneratedAt      time.Time `json:"generated_at"`
}
