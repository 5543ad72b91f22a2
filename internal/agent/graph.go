package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/helpdesk-rag/internal/answer"
	"github.com/54b3r/helpdesk-rag/internal/budget"
	"github.com/54b3r/helpdesk-rag/internal/logging"
	"github.com/54b3r/helpdesk-rag/internal/retrieval"
	"github.com/54b3r/helpdesk-rag/internal/session"
)

// Graph node keys. They are also the names reported in executed_nodes.
const (
	nodeClassify = "classify"
	nodeGreet    = "greet"
	nodeDecide   = "decide"
	nodeTools    = "tools"
	nodeGround   = "ground"
	nodeGenerate = "generate"
)

// routingPrompt instructs the routing model to always search first.
const routingPrompt = `You are an IT support knowledge base assistant. Your ONLY source of truth is the knowledge base.

MANDATORY WORKFLOW:
1. For EVERY IT support question, call the retrieve tool FIRST with a focused search query.
2. NEVER answer an IT question from general knowledge.
3. NEVER skip the retrieval step, even if you think you know the answer.
4. Use the conversation history only to resolve what the user is referring to.`

// buildGraph wires the conversation nodes into a compiled graph.
func (a *Agent) buildGraph(ctx context.Context) (compose.Runnable[*turnState, *turnState], error) {
	g := compose.NewGraph[*turnState, *turnState]()

	nodes := []struct {
		key string
		fn  func(context.Context, *turnState) (*turnState, error)
	}{
		{nodeClassify, a.classify},
		{nodeGreet, a.greet},
		{nodeDecide, a.decide},
		{nodeTools, a.runTools},
		{nodeGround, a.ground},
		{nodeGenerate, a.generate},
	}
	for _, n := range nodes {
		if err := g.AddLambdaNode(n.key, compose.InvokableLambda(n.fn), compose.WithNodeName(n.key)); err != nil {
			return nil, fmt.Errorf("agent: add node %s: %w", n.key, err)
		}
	}

	edges := [][2]string{
		{compose.START, nodeClassify},
		{nodeTools, nodeGenerate},
		{nodeGround, nodeGenerate},
		{nodeGreet, compose.END},
		{nodeGenerate, compose.END},
	}
	for _, e := range edges {
		if err := g.AddEdge(e[0], e[1]); err != nil {
			return nil, fmt.Errorf("agent: add edge %s->%s: %w", e[0], e[1], err)
		}
	}

	greetOrDecide := compose.NewGraphBranch(func(_ context.Context, st *turnState) (string, error) {
		if IsPureGreeting(st.req.Question) {
			return nodeGreet, nil
		}
		return nodeDecide, nil
	}, map[string]bool{nodeGreet: true, nodeDecide: true})
	if err := g.AddBranch(nodeClassify, greetOrDecide); err != nil {
		return nil, fmt.Errorf("agent: add classify branch: %w", err)
	}

	toolsOrGround := compose.NewGraphBranch(func(_ context.Context, st *turnState) (string, error) {
		if len(st.toolCalls) > 0 {
			return nodeTools, nil
		}
		return nodeGround, nil
	}, map[string]bool{nodeTools: true, nodeGround: true})
	if err := g.AddBranch(nodeDecide, toolsOrGround); err != nil {
		return nil, fmt.Errorf("agent: add decide branch: %w", err)
	}

	r, err := g.Compile(ctx, compose.WithGraphName("helpdesk_conversation"))
	if err != nil {
		return nil, fmt.Errorf("agent: compile graph: %w", err)
	}
	return r, nil
}

func (a *Agent) classify(_ context.Context, st *turnState) (*turnState, error) {
	st.visit(nodeClassify)
	st.turn = append(st.turn, schema.UserMessage(st.req.Question))
	return st, nil
}

func (a *Agent) greet(_ context.Context, st *turnState) (*turnState, error) {
	st.visit(nodeGreet)
	st.answer = GreetingText
	return st, nil
}

// decide asks the routing model whether to call the retrieve tool.
func (a *Agent) decide(ctx context.Context, st *turnState) (*turnState, error) {
	st.visit(nodeDecide)

	system := schema.SystemMessage(routingPrompt)
	user := schema.UserMessage(st.req.Question)
	prior := budget.TrimThread([]*schema.Message{system, user}, st.thread, a.maxContextTokens)

	msgs := make([]*schema.Message, 0, len(prior)+2)
	msgs = append(msgs, system)
	msgs = append(msgs, prior...)
	msgs = append(msgs, user)

	mctx, cancel := context.WithTimeout(ctx, a.modelTimeout)
	defer cancel()
	resp, err := a.router.Generate(mctx, msgs)
	if err != nil {
		return st, st.fail(&GenerationError{Stage: nodeDecide, Err: err})
	}

	if len(resp.ToolCalls) > 0 {
		st.toolCalls = resp.ToolCalls
		st.usedTools = true
		st.turn = append(st.turn, resp)
	}
	return st, nil
}

// runTools executes the routed tool calls through the tools node. The
// outcome of the last call wins.
func (a *Agent) runTools(ctx context.Context, st *turnState) (*turnState, error) {
	st.visit(nodeTools)
	logger := logging.FromContext(ctx)
	t := newRetrieveTool(a.retriever, st.filter, st.topK, st.req.Question)

	routed := &schema.Message{Role: schema.Assistant, ToolCalls: st.toolCalls}
	msgs, err := a.tools.Invoke(ctx, routed, compose.WithToolList(t))
	if err != nil {
		return st, st.fail(fmt.Errorf("agent: run tools: %w", err))
	}

	runs := t.recorded()
	for _, call := range st.toolCalls {
		if call.Function.Name != retrieveToolName {
			st.toolErr = unknownToolError(call.Function.Name)
		} else if len(runs) > 0 {
			st.outcome, st.toolErr = runs[0].outcome, runs[0].err
			runs = runs[1:]
		}
		if st.toolErr != nil {
			logger.Warn("agent: retrieve tool failed",
				slog.String("call_id", call.ID),
				slog.Any("error", st.toolErr),
			)
		}
	}
	st.turn = append(st.turn, msgs...)
	return st, nil
}

// ground handles a routing reply without tool calls by retrieving for the
// raw question anyway. The model's direct answer is discarded.
func (a *Agent) ground(ctx context.Context, st *turnState) (*turnState, error) {
	st.visit(nodeGround)
	logging.FromContext(ctx).Debug("agent: model skipped retrieval, grounding directly")

	out, err := a.retriever.Retrieve(ctx, st.req.Question, st.topK, st.filter)
	if err != nil {
		return st, st.fail(err)
	}
	st.outcome = out
	return st, nil
}

// generate turns the retrieval outcome into the final answer. Only accepted
// documents reach the answer model.
func (a *Agent) generate(ctx context.Context, st *turnState) (*turnState, error) {
	st.visit(nodeGenerate)

	switch {
	case st.outcome == nil && st.toolErr != nil:
		st.answer = answer.DeflectionText
	case st.outcome == nil:
		st.answer = answer.NoKnowledgeText
	case st.outcome.Rejected():
		if st.outcome.Rejection.Reason == retrieval.ReasonInsufficientPermission {
			st.answer = st.outcome.Rejection.Message
		} else {
			st.answer = answer.NoKnowledgeText
		}
	default:
		text, err := a.answerer.Generate(ctx, answer.Input{
			Question:  st.req.Question,
			Documents: st.outcome.Documents(),
			Role:      st.req.Role,
			History:   historyMessages(st.history),
		})
		if err != nil {
			return st, st.fail(&GenerationError{Stage: nodeGenerate, Err: err})
		}
		st.answer = answer.Citations(text, st.req.Question, st.outcome.SourceLinks(), st.req.IncludeSources)
	}
	return st, nil
}

func historyMessages(history []session.Message) []*schema.Message {
	if len(history) == 0 {
		return nil
	}
	out := make([]*schema.Message, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case session.RoleUser:
			out = append(out, schema.UserMessage(m.Content))
		case session.RoleAssistant:
			out = append(out, schema.AssistantMessage(m.Content, nil))
		}
	}
	return out
}
