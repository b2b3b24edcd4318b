package oracle

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

// Chain is a compiled Eino graph: Template -> Model -> Parser.
type Chain[T any] struct {
	runnable compose.Runnable[map[string]any, T]
	name     string
}

// NewChain compiles a prompt template, a chat model and a response parser
// into a single runnable graph.
func NewChain[T any](
	ctx context.Context,
	name string,
	chatModel model.BaseChatModel,
	templateStr string,
	parse func(content string) (T, error),
) (*Chain[T], error) {
	tmpl, err := template.New(name).Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}

	promptFunc := func(ctx context.Context, input map[string]any) ([]*schema.Message, error) {
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, input); err != nil {
			return nil, fmt.Errorf("execute template: %w", err)
		}
		return []*schema.Message{schema.UserMessage(buf.String())}, nil
	}

	// BaseChatModel is wrapped in a lambda so models without tool binding work.
	modelFunc := func(ctx context.Context, input []*schema.Message) (*schema.Message, error) {
		return chatModel.Generate(ctx, input)
	}

	parserFunc := func(ctx context.Context, output *schema.Message) (T, error) {
		if output == nil {
			var zero T
			return zero, fmt.Errorf("empty model response")
		}
		return parse(output.Content)
	}

	graph := compose.NewGraph[map[string]any, T]()
	_ = graph.AddLambdaNode("prompt", compose.InvokableLambda(promptFunc))
	_ = graph.AddLambdaNode("model", compose.InvokableLambda(modelFunc))
	_ = graph.AddLambdaNode("parser", compose.InvokableLambda(parserFunc))

	_ = graph.AddEdge(compose.START, "prompt")
	_ = graph.AddEdge("prompt", "model")
	_ = graph.AddEdge("model", "parser")
	_ = graph.AddEdge("parser", compose.END)

	runnable, err := graph.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile chain %s: %w", name, err)
	}
	return &Chain[T]{runnable: runnable, name: name}, nil
}

// Invoke runs the chain once.
func (c *Chain[T]) Invoke(ctx context.Context, input map[string]any) (T, error) {
	out, err := c.runnable.Invoke(ctx, input)
	if err != nil {
		return out, fmt.Errorf("%s: %w", c.name, err)
	}
	return out, nil
}
