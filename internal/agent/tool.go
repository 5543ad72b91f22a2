package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/helpdesk-rag/internal/access"
	"github.com/54b3r/helpdesk-rag/internal/answer"
	"github.com/54b3r/helpdesk-rag/internal/retrieval"
)

// retrieveToolName is the tool name the routing model is told to call.
const retrieveToolName = "retrieve"

// retrieveToolInfo describes the retrieve tool to the model. It does not
// depend on the caller, so it is bound to the model once.
func retrieveToolInfo() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: retrieveToolName,
		Desc: "Retrieve relevant documents from the IT support knowledge base. " +
			"Use this tool to search the knowledge base before answering any IT support question.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     schema.String,
				Desc:     "The search query to find relevant documents.",
				Required: true,
			},
		}),
	}
}

type retrieveArgs struct {
	Query string `json:"query"`
}

// retrieveTool runs the retrieval gate for one top-level query. The caller's
// filter and top-k are fixed at construction and never re-derived from the
// model's arguments. Each run is recorded in call order.
type retrieveTool struct {
	gate     Retriever
	filter   *access.VisibilityFilter
	topK     int
	question string

	mu      sync.Mutex
	results []toolResult
}

// toolResult is one recorded run. On failure outcome is nil.
type toolResult struct {
	outcome *retrieval.Outcome
	err     error
}

var _ tool.InvokableTool = (*retrieveTool)(nil)

func newRetrieveTool(gate Retriever, filter *access.VisibilityFilter, topK int, question string) *retrieveTool {
	return &retrieveTool{gate: gate, filter: filter, topK: topK, question: question}
}

// Info implements tool.BaseTool.
func (t *retrieveTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return retrieveToolInfo(), nil
}

// InvokableRun implements tool.InvokableTool. Failures are reported in the
// returned text, never as an error.
func (t *retrieveTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	text, out, err := t.run(ctx, argumentsInJSON)
	t.mu.Lock()
	t.results = append(t.results, toolResult{outcome: out, err: err})
	t.mu.Unlock()
	return text, nil
}

// recorded returns the runs so far, oldest first.
func (t *retrieveTool) recorded() []toolResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]toolResult(nil), t.results...)
}

// run executes one tool call and returns the tool text with the outcome it
// was rendered from. On failure the text carries the error and the outcome
// is nil.
func (t *retrieveTool) run(ctx context.Context, argumentsInJSON string) (string, *retrieval.Outcome, error) {
	query := t.question
	if strings.TrimSpace(argumentsInJSON) != "" {
		var args retrieveArgs
		if err := json.Unmarshal([]byte(argumentsInJSON), &args); err != nil {
			err = fmt.Errorf("invalid arguments: %w", err)
			return toolErrorText(err), nil, err
		}
		if q := strings.TrimSpace(args.Query); q != "" {
			query = q
		}
	}

	out, err := t.gate.Retrieve(ctx, query, t.topK, t.filter)
	if err != nil {
		return toolErrorText(err), nil, err
	}
	if out.Rejected() {
		return out.Rejection.ToolText(), out, nil
	}
	return answer.FormatContext(out.Documents()), out, nil
}

func toolErrorText(err error) string {
	return "Error retrieving documents: " + err.Error()
}

func unknownToolError(name string) error {
	return fmt.Errorf("unknown tool %q", name)
}

// newToolsNode builds the node that executes routed tool calls. The retrieve
// tool is caller-specific, so each turn passes its own instance through
// compose.WithToolList; the placeholder only fixes the tool set. Calls run
// in order so the last one decides the outcome. Calls to any other tool name
// get the error text instead of failing the turn.
func newToolsNode(ctx context.Context, gate Retriever) (*compose.ToolsNode, error) {
	return compose.NewToolNode(ctx, &compose.ToolsNodeConfig{
		Tools:               []tool.BaseTool{newRetrieveTool(gate, nil, 0, "")},
		ExecuteSequentially: true,
		UnknownToolsHandler: func(_ context.Context, name, _ string) (string, error) {
			return toolErrorText(unknownToolError(name)), nil
		},
	})
}
