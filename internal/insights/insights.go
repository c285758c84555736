// Package insights is the advisory collaborator: it serializes a ranked
// report into the analyst prompt, sends it to a hosted chat-completions
// model and parses the strict-JSON reply. Everything here is recoverable;
// a failed or unparseable reply never takes the request handler down.
package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"pinepulse/internal/config"
	"pinepulse/internal/models"
	"pinepulse/internal/observability"
)

// ErrUnparsable marks a model reply that could not be coerced into the
// expected JSON shape even after fallbacks.
var ErrUnparsable = errors.New("insights: model reply is not valid advisory JSON")

// chatCompleter abstracts the OpenAI client for testability.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type Advisor struct {
	client  chatCompleter
	model   string
	timeout time.Duration
	metrics *observability.Metrics
	logger  *slog.Logger
}

func NewAdvisor(cfg config.InsightsConfig, logger *slog.Logger) *Advisor {
	return &Advisor{
		client:  openai.NewClient(cfg.APIKey),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		logger:  logger,
	}
}

// SetMetrics attaches prometheus counters. Call before serving traffic.
func (a *Advisor) SetMetrics(m *observability.Metrics) { a.metrics = m }

// skuContext is the serialized shape the prompt carries per SKU. Quantity and
// days_supply stay null when unknown so the model can say so instead of
// inventing numbers.
type skuContext struct {
	Name       string   `json:"name"`
	Sales      float64  `json:"sales"`
	Quantity   *float64 `json:"quantity"`
	Velocity   float64  `json:"velocity"`
	DaysSupply *float64 `json:"days_supply"`
}

// advisoryReply is the strict JSON contract the model is asked to honor.
type advisoryReply struct {
	CategoryInsights []string `json:"category_insights"`
	ProductInsights  []string `json:"product_insights"`
	Insights         []string `json:"insights"`
}

var schemaExample = advisoryReply{
	CategoryInsights: []string{
		"Tell me which category is accelerating or decelerating, why, and a 1-2 sentence action (e.g. 'run a 10% off promo').",
		"Identify the category with the highest days_supply and suggest an inventory tactic.",
		"Highlight the top-performing category and recommend a cross-sell or bundle opportunity.",
	},
	ProductInsights: []string{
		"Identify one SKU at risk of stock-out and suggest reorder timing based on velocity and days_supply.",
		"Identify one SKU with excess days_supply and recommend a promotional tactic to clear stock.",
		"Identify one emerging fast-mover and suggest a bundling or upsell opportunity.",
	},
	Insights: []string{
		"Recommend one pricing adjustment based on payment-method trends (e.g., wallet, card).",
		"Recommend one marketing channel or discount strategy to boost performance of cold-movers.",
		"Recommend one inventory optimization tactic to reduce holding costs or improve turnover.",
	},
}

// Generate asks the model for advisory bullets grounded in the given report.
func (a *Advisor) Generate(ctx context.Context, rep models.RankedReport) (models.InsightReport, error) {
	if a.metrics != nil {
		a.metrics.InsightRequests.Inc()
	}

	prompt, err := buildPrompt(rep)
	if err != nil {
		return models.InsightReport{}, fmt.Errorf("build prompt: %w", err)
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "Output only JSON."},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.2,
		MaxTokens:   1000,
	})
	if err != nil {
		if a.metrics != nil {
			a.metrics.InsightFailures.Inc()
		}
		return models.InsightReport{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		if a.metrics != nil {
			a.metrics.InsightFailures.Inc()
		}
		return models.InsightReport{}, fmt.Errorf("chat completion: empty response")
	}

	reply, err := parseReply(resp.Choices[0].Message.Content)
	if err != nil {
		if a.metrics != nil {
			a.metrics.InsightFailures.Inc()
		}
		a.logger.Warn("unparseable model reply", "error", err)
		return models.InsightReport{}, err
	}

	return models.InsightReport{
		ID:               uuid.NewString(),
		StoreID:          rep.StoreID,
		WindowDays:       rep.WindowDays,
		CategoryInsights: reply.CategoryInsights,
		ProductInsights:  reply.ProductInsights,
		Insights:         reply.Insights,
		Model:            a.model,
		GeneratedAt:      time.Now().UTC(),
	}, nil
}

func buildPrompt(rep models.RankedReport) (string, error) {
	schema, err := json.MarshalIndent(schemaExample, "", "  ")
	if err != nil {
		return "", err
	}
	categories, err := json.MarshalIndent(rep.Categories, "", "  ")
	if err != nil {
		return "", err
	}
	top, err := json.MarshalIndent(skuContexts(rep.Top.Members), "", "  ")
	if err != nil {
		return "", err
	}
	cold, err := json.MarshalIndent(skuContexts(rep.Bottom.Members), "", "  ")
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(`You are a data-driven retail analyst. Output ONLY valid JSON matching exactly these keys:
  - category_insights: 3 bullet-point strings
  - product_insights: 3 bullet-point strings
  - insights: 3 bullet-point strings

Each bullet must:
  - Reference actual numbers from the data (sales, velocity, days_supply)
  - Include a one-sentence, actionable recommendation

Schema example:
%s

Category summary (name, total_sales, percent_of_total):
%s

Top SKUs (name, sales, quantity, velocity, days_supply):
%s

Cold SKUs (name, sales, quantity, velocity, days_supply):
%s
`, schema, categories, top, cold), nil
}

func skuContexts(members []models.ItemAggregate) []skuContext {
	out := make([]skuContext, 0, len(members))
	for _, m := range members {
		out = append(out, skuContext{
			Name:       m.ItemID,
			Sales:      m.TotalSales,
			Quantity:   m.TotalQuantity,
			Velocity:   m.Velocity,
			DaysSupply: m.DaysSupply,
		})
	}
	return out
}

// parseReply accepts a bare JSON object, a fenced code block, or JSON buried
// in surrounding prose. Anything else is ErrUnparsable.
func parseReply(content string) (advisoryReply, error) {
	candidate := strings.TrimSpace(content)
	if after, ok := strings.CutPrefix(candidate, "```json"); ok {
		candidate = after
	} else if after, ok := strings.CutPrefix(candidate, "```"); ok {
		candidate = after
	}
	candidate = strings.TrimSuffix(strings.TrimSpace(candidate), "```")

	var reply advisoryReply
	if err := json.Unmarshal([]byte(candidate), &reply); err == nil {
		return validated(reply)
	}

	// Last resort: the outermost brace pair.
	start := strings.Index(candidate, "{")
	end := strings.LastIndex(candidate, "}")
	if start >= 0 && end > start {
		if err := json.Unmarshal([]byte(candidate[start:end+1]), &reply); err == nil {
			return validated(reply)
		}
	}
	return advisoryReply{}, ErrUnparsable
}

func validated(reply advisoryReply) (advisoryReply, error) {
	if len(reply.CategoryInsights) == 0 && len(reply.ProductInsights) == 0 && len(reply.Insights) == 0 {
		return advisoryReply{}, ErrUnparsable
	}
	return reply, nil
}
