package contract

import "context"

// Agent handles one conversational turn: full history in, a single assistant
// message (content plus stage memory) out.
type Agent interface {
	Respond(ctx context.Context, history []Message) (Message, error)
}

// Recommender is the capability the order-taking stage depends on. The
// at-most-once-per-cart invocation policy belongs to the caller.
type Recommender interface {
	Agent
	RecommendForOrder(ctx context.Context, history []Message, order []LineItem) (Message, error)
}

// Gateway wraps the remote text-generation service. Complete strips messages
// to role and content before transmission; failures are classified but never
// retried. Repair asks the same service to fix malformed structured text and
// returns whatever comes back.
type Gateway interface {
	Complete(ctx context.Context, model string, temperature float64, messages []Message) (string, error)
	Embed(ctx context.Context, model string, inputs []string) ([][]float64, error)
	Repair(ctx context.Context, model string, raw string) (string, error)
}
