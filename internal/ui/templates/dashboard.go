package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>PinePulse Inventory Report</title>
<script type="module" src="https://cdn.jsdelivr.net/gh/starfederation/datastar@v1.0.0/bundles/datastar.js"></script>
<style>
body { font-family: system-ui, sans-serif; margin: 0; background: #f4f6f5; color: #1d2a24; }
header { background: #1e4d3b; color: #fff; padding: 1rem 2rem; }
header h1 { margin: 0; font-size: 1.3rem; }
main { max-width: 1100px; margin: 0 auto; padding: 1.5rem; }
.controls { display: flex; gap: 0.75rem; margin-bottom: 1.5rem; align-items: center; }
.controls input { padding: 0.4rem 0.6rem; border: 1px solid #c6d2cc; border-radius: 6px; }
.controls button { padding: 0.45rem 1rem; border: none; border-radius: 6px; background: #1e4d3b; color: #fff; cursor: pointer; }
.card { background: #fff; border-radius: 10px; padding: 1.25rem; margin-bottom: 1.5rem; box-shadow: 0 1px 3px rgba(0,0,0,0.08); }
.card h2 { margin-top: 0; font-size: 1.05rem; }
.modern-table { width: 100%; border-collapse: collapse; }
.modern-table th, .modern-table td { text-align: left; padding: 0.45rem 0.6rem; border-bottom: 1px solid #e4eae7; }
.modern-table th { color: #5a6b63; font-weight: 600; font-size: 0.85rem; }
</style>
</head>
<body data-signals="{topData: [], bottomData: [], categoryData: []}">
<header><h1>PinePulse &middot; Ranked Inventory Report</h1></header>
<main>
<div class="controls">
<input id="store" placeholder="Store ID (blank = all)">
<input id="window" type="number" min="1" value="30" placeholder="Window days">
<button data-on-click="@get('/sse/refresh-all')">Refresh</button>
</div>
<section class="card" data-on-load="@get('/sse/report')">
<h2>Top Movers</h2>
<div id="movers-content">Loading&hellip;</div>
</section>
<section class="card">
<h2>Cold Movers</h2>
<div data-text="JSON.stringify($bottomData.map(i => i.item_id))"></div>
</section>
<section class="card">
<h2>Category Mix</h2>
<div data-text="JSON.stringify($categoryData)"></div>
</section>
</main>
</body>
</html>`

// Dashboard is the single-page shell. All data arrives over the SSE
// endpoints, so the markup itself is static.
func Dashboard() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, dashboardHTML)
		return err
	})
}
