package agent

import (
	"context"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/helpdesk-rag/internal/access"
	"github.com/54b3r/helpdesk-rag/internal/answer"
	"github.com/54b3r/helpdesk-rag/internal/retrieval"
	"github.com/54b3r/helpdesk-rag/internal/session"
	"github.com/54b3r/helpdesk-rag/internal/store"
)

// Retriever runs one gated retrieval. Satisfied by *retrieval.Gate.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int, filter *access.VisibilityFilter) (*retrieval.Outcome, error)
}

// Answerer produces a grounded answer. Satisfied by *answer.Generator.
type Answerer interface {
	Generate(ctx context.Context, in answer.Input) (string, error)
}

// Config holds the dependencies for constructing an Agent.
type Config struct {
	// ChatModel is the tool-calling model used for the routing decision.
	ChatModel model.ToolCallingChatModel

	// Retriever is the retrieval gate behind the retrieve tool.
	Retriever Retriever

	// Answerer writes the final answer from accepted documents.
	Answerer Answerer

	// Sessions is the optional per-session memory. When nil the answer
	// generator always sees a first turn.
	Sessions session.Memory

	// Checkpoints is the optional thread store. When nil every query starts
	// an empty thread.
	Checkpoints store.CheckpointStore

	// TopK is the retrieval depth used when a request does not set one.
	// Defaults to retrieval.DefaultTopK.
	TopK int

	// ModelTimeout bounds the routing model call. Defaults to 60s.
	ModelTimeout time.Duration

	// MaxContextTokens is the estimated token budget for the routing call.
	// Defaults to budget.DefaultMaxContextTokens.
	MaxContextTokens int
}

// Agent answers helpdesk questions through the conversation graph.
// It is safe for concurrent use; per-query state lives in turnState.
type Agent struct {
	// router is the chat model with the retrieve tool bound.
	router model.BaseChatModel

	retriever   Retriever
	answerer    Answerer
	sessions    session.Memory
	checkpoints store.CheckpointStore

	topK             int
	modelTimeout     time.Duration
	maxContextTokens int

	// tools executes routed tool calls; the per-turn retrieve tool is
	// supplied with compose.WithToolList.
	tools *compose.ToolsNode

	// graph is compiled once in New.
	graph compose.Runnable[*turnState, *turnState]
}

// turnState is the per-invocation state threaded through the graph nodes.
type turnState struct {
	req    Request
	filter *access.VisibilityFilter
	topK   int

	// thread is the checkpointed conversation before this turn.
	thread []*schema.Message
	// turn collects the messages this invocation appends to the thread.
	turn []*schema.Message
	// history is the session memory shown to the answer generator.
	history []session.Message

	toolCalls []schema.ToolCall
	usedTools bool
	outcome   *retrieval.Outcome
	toolErr   error

	answer   string
	executed []string

	// fatal is the error that aborted the graph, kept so callers can match
	// it with errors.Is after the graph runtime wraps it.
	fatal error
}

func (st *turnState) visit(node string) {
	st.executed = append(st.executed, node)
}

func (st *turnState) fail(err error) error {
	st.fatal = err
	return err
}
