// Package ai runs the back-office stock assistant: a Gemini chat session with
// read-only function tools over the ledgers.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/config"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/database"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/inventory"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/models"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/perorder"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/scope"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"gorm.io/gorm"
)

// ErrDisabled is returned by Ask when no API key is configured.
var ErrDisabled = errors.New("stock assistant is not configured")

// A model that keeps calling tools is cut off after this many rounds.
const maxToolRounds = 4

type Agent struct {
	apiKey string
	model  string
	db     *gorm.DB
	stock  *inventory.Ledger
	orders *perorder.Service
	log    *zap.Logger
}

func New(cfg config.AI, db *gorm.DB, stock *inventory.Ledger, orders *perorder.Service, log *zap.Logger) *Agent {
	return &Agent{apiKey: cfg.GeminiAPIKey, model: cfg.Model, db: db, stock: stock, orders: orders, log: log}
}

func (a *Agent) Enabled() bool { return a != nil && a.apiKey != "" }

var tools = []*genai.Tool{
	{
		FunctionDeclarations: []*genai.FunctionDeclaration{
			{
				Name:        "check_stock",
				Description: "Get on-hand quantities per product. Use this for ANY question about stock, price, SKU or brand. Omit branch_id for the total across all branches.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"branch_id": {Type: genai.TypeInteger, Description: "Branch to inspect"},
					},
				},
			},
			{
				Name:        "list_pending_orders",
				Description: "List customer per-orders that are still pending (paid in advance, not yet converted to a sale).",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"branch_id": {Type: genai.TypeInteger, Description: "Branch to inspect"},
					},
				},
			},
			{
				Name:        "get_sales_report",
				Description: "Get total sales revenue, invoice count and outstanding dues for a date range.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"start_date": {Type: genai.TypeString, Description: "Start date (YYYY-MM-DD)"},
						"end_date":   {Type: genai.TypeString, Description: "End date (YYYY-MM-DD), inclusive"},
						"branch_id":  {Type: genai.TypeInteger, Description: "Branch to inspect"},
					},
					Required: []string{"start_date", "end_date"},
				},
			},
		},
	},
}

// Ask answers one back-office question. Tools run with the caller's read
// scope; none of them writes.
func (a *Agent) Ask(ctx context.Context, actor scope.Actor, userMessage string) (string, error) {
	if !a.Enabled() {
		return "", ErrDisabled
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(a.apiKey))
	if err != nil {
		return "", fmt.Errorf("gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(a.model)
	model.Tools = tools

	today := time.Now().Format("2006-01-02")
	systemPrompt := fmt.Sprintf(`SYSTEM: Today is %s. You are the stock assistant of a multi-branch phone shop.

	RULES:
	1. STOCK: For quantities, prices or product details call 'check_stock' and read the JSON. Never guess a number.
	2. ORDERS: For customer reservations or advances call 'list_pending_orders'.
	3. SALES: For revenue, invoices or dues call 'get_sales_report'.
	4. You can only read. If asked to change anything, explain that it must be done in the back office.

	USER: %s`, today, userMessage)

	session := model.StartChat()
	resp, err := session.SendMessage(ctx, genai.Text(systemPrompt))
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}

	for round := 0; round < maxToolRounds; round++ {
		call, ok := firstFunctionCall(resp)
		if !ok {
			return printResponse(resp), nil
		}

		result, err := a.callTool(ctx, actor, call)
		if err != nil {
			a.log.Warn("assistant tool failed", zap.String("tool", call.Name), zap.Error(err))
			result = map[string]interface{}{"error": err.Error()}
		}

		resp, err = session.SendMessage(ctx, genai.FunctionResponse{Name: call.Name, Response: result})
		if err != nil {
			return "", fmt.Errorf("gemini: %w", err)
		}
	}
	return printResponse(resp), nil
}

func (a *Agent) callTool(ctx context.Context, actor scope.Actor, call genai.FunctionCall) (map[string]interface{}, error) {
	branchID, err := optionalID(call.Args, "branch_id")
	if err != nil {
		return nil, err
	}
	s, err := scope.ReadScope(actor, branchID)
	if err != nil {
		return nil, err
	}

	switch call.Name {
	case "check_stock":
		rows, err := a.stock.GetStock(ctx, s)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"scope": s.String(), "stock": rows}, nil

	case "list_pending_orders":
		orders, err := a.orders.List(ctx, actor, perorder.ListFilter{BranchID: branchID, Status: models.PerOrderPending})
		if err != nil {
			return nil, err
		}
		type pendingOrder struct {
			OrderNumber string `json:"order_number"`
			Customer    string `json:"customer"`
			BranchID    uint   `json:"branch_id"`
			Advance     string `json:"advance"`
			Due         string `json:"due"`
		}
		out := make([]pendingOrder, 0, len(orders))
		for _, o := range orders {
			out = append(out, pendingOrder{
				OrderNumber: o.OrderNumber,
				Customer:    o.Customer.Name,
				BranchID:    o.BranchID,
				Advance:     o.AdvancePayment.StringFixed(2),
				Due:         o.DueAmount.StringFixed(2),
			})
		}
		return map[string]interface{}{"scope": s.String(), "orders": out}, nil

	case "get_sales_report":
		start, err := dateArg(call.Args, "start_date")
		if err != nil {
			return nil, err
		}
		end, err := dateArg(call.Args, "end_date")
		if err != nil {
			return nil, err
		}
		report, err := database.GetSalesReport(ctx, a.db, s, start, end.AddDate(0, 0, 1))
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"scope":           report.Scope,
			"revenue":         report.TotalRevenue.StringFixed(2),
			"sales_count":     report.TotalCount,
			"outstanding_due": report.OutstandingDue.StringFixed(2),
		}, nil
	}
	return nil, fmt.Errorf("unknown tool %q", call.Name)
}

func optionalID(args map[string]interface{}, key string) (*uint, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return nil, nil
	}
	f, ok := v.(float64)
	if !ok || f < 1 || f != float64(uint(f)) {
		return nil, fmt.Errorf("%s must be a positive integer", key)
	}
	id := uint(f)
	return &id, nil
}

func dateArg(args map[string]interface{}, key string) (time.Time, error) {
	s, _ := args[key].(string)
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be in YYYY-MM-DD format", key)
	}
	return t, nil
}

func firstFunctionCall(resp *genai.GenerateContentResponse) (genai.FunctionCall, bool) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return genai.FunctionCall{}, false
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if funcCall, ok := part.(genai.FunctionCall); ok {
			return funcCall, true
		}
	}
	return genai.FunctionCall{}, false
}

func printResponse(resp *genai.GenerateContentResponse) string {
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if txt, ok := part.(genai.Text); ok {
				return string(txt)
			}
		}
	}
	return "I completed the action."
}
