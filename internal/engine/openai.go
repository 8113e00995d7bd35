// ABOUTME: OpenAI-backed Engine implementation over chat completion streaming
// ABOUTME: Accumulates tool call argument deltas across chunks into one call

package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/packages/ssestream"
)

const (
	oaiFinishReasonStop          = "stop"
	oaiFinishReasonToolCalls     = "tool_calls"
	oaiFinishReasonFunctionCall  = "function_call"
	oaiFinishReasonLength        = "length"
	oaiFinishReasonContentFilter = "content_filter"
)

var _ Engine = (*OpenAIEngine)(nil)
var _ Completer = (*OpenAIEngine)(nil)

// OpenAIEngine implements Engine and Completer against the OpenAI chat
// completions API, or any endpoint speaking the same protocol.
type OpenAIEngine struct {
	client      openai.Client
	model       string
	maxTokens   int64
	temperature float64
	logger      *slog.Logger
}

// OpenAIOptions configures an OpenAIEngine.
type OpenAIOptions struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int64
	Temperature float64
}

// NewOpenAIEngine creates an engine for the given model endpoint.
func NewOpenAIEngine(opts OpenAIOptions) (*OpenAIEngine, error) {
	if opts.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	reqOpts := []option.RequestOption{}
	if opts.APIKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}

	return &OpenAIEngine{
		client:      openai.NewClient(reqOpts...),
		model:       opts.Model,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
		logger:      slog.Default().With("component", "engine"),
	}, nil
}

// Run starts one streaming generation pass.
func (e *OpenAIEngine) Run(ctx context.Context, req *Request) (*Stream, error) {
	params, err := e.completionParams(req)
	if err != nil {
		return nil, err
	}

	stream := NewStream(32)
	go func() {
		p := &chunkPuller{stream: stream, logger: e.logger}
		p.pull(ctx, e.client.Chat.Completions.NewStreaming(ctx, params))
	}()
	return stream, nil
}

// Complete runs a single non-streaming completion with no tools.
func (e *OpenAIEngine) Complete(ctx context.Context, system, prompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: e.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(prompt),
		},
	}
	if e.maxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(e.maxTokens)
	}

	resp, err := e.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (e *OpenAIEngine) completionParams(req *Request) (openai.ChatCompletionNewParams, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, openai.SystemMessage(req.System))
	}
	for i := range req.Messages {
		mp, err := convMessage(&req.Messages[i])
		if err != nil {
			return openai.ChatCompletionNewParams{}, err
		}
		msgs = append(msgs, mp)
	}

	params := openai.ChatCompletionNewParams{
		Model:    e.model,
		Messages: msgs,
	}
	if e.maxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(e.maxTokens)
	}
	if e.temperature > 0 {
		params.Temperature = param.NewOpt(e.temperature)
	}

	for _, tool := range req.Tools {
		params.Tools = append(params.Tools, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        tool.Name,
				Description: param.NewOpt(tool.Description),
				Parameters:  convSchema(tool.Parameters),
			},
		})
	}

	return params, nil
}

func convMessage(msg *Message) (openai.ChatCompletionMessageParamUnion, error) {
	switch msg.Role {
	case RoleSystem:
		return openai.SystemMessage(msg.Content), nil
	case RoleUser:
		return openai.UserMessage(msg.Content), nil
	case RoleAssistant:
		if msg.ToolCall != nil {
			return openai.ChatCompletionMessageParamUnion{
				OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					ToolCalls: []openai.ChatCompletionMessageToolCallParam{
						{
							ID: msg.ToolCall.ID,
							Function: openai.ChatCompletionMessageToolCallFunctionParam{
								Name:      msg.ToolCall.Name,
								Arguments: msg.ToolCall.Arguments,
							},
						},
					},
				},
			}, nil
		}
		return openai.AssistantMessage(msg.Content), nil
	case RoleTool:
		if msg.ToolCallID == "" {
			return openai.ChatCompletionMessageParamUnion{}, fmt.Errorf("tool message missing tool call id")
		}
		return openai.ToolMessage(msg.Content, msg.ToolCallID), nil
	default:
		return openai.ChatCompletionMessageParamUnion{}, fmt.Errorf("unexpected message role %q", msg.Role)
	}
}

func convSchema(s *jsonschema.Schema) openai.FunctionParameters {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil
	}
	var m openai.FunctionParameters
	if err := json.Unmarshal(b, &m); err != nil {
		return nil
	}
	return m
}

// chunkPuller drains an SSE chunk stream into engine events, merging tool
// call fragments that arrive split across chunks.
type chunkPuller struct {
	stream      *Stream
	logger      *slog.Logger
	runningTool *openai.ChatCompletionChunkChoiceDeltaToolCall
}

func (p *chunkPuller) commitTool(ctx context.Context) bool {
	if p.runningTool == nil {
		return true
	}
	call := ToolCall{
		ID:        p.runningTool.ID,
		Name:      p.runningTool.Function.Name,
		Arguments: p.runningTool.Function.Arguments,
	}
	p.runningTool = nil
	return p.stream.Send(ctx, ToolCallEvent{Call: call})
}

func (p *chunkPuller) pull(ctx context.Context, sse *ssestream.Stream[openai.ChatCompletionChunk]) {
	defer sse.Close()

	for sse.Next() {
		chunk := sse.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := &chunk.Choices[0]

		if s := choice.Delta.Content; s != "" {
			if !p.stream.Send(ctx, TextDelta{Text: s}) {
				p.stream.Close(ctx.Err())
				return
			}
		}

		for _, t := range choice.Delta.ToolCalls {
			if p.runningTool == nil {
				if t.ID != "" {
					tc := t
					p.runningTool = &tc
				}
				continue
			}
			// Only the first call of a pass is honored; fragments of any
			// parallel call arrive under a different index and are dropped.
			if t.Index != p.runningTool.Index {
				if t.ID != "" {
					p.logger.Warn("ignoring parallel tool call", "tool", t.Function.Name)
				}
				continue
			}
			p.runningTool.Function.Name += t.Function.Name
			p.runningTool.Function.Arguments += t.Function.Arguments
		}

		switch choice.FinishReason {
		case oaiFinishReasonToolCalls, oaiFinishReasonFunctionCall:
			if !p.commitTool(ctx) {
				p.stream.Close(ctx.Err())
				return
			}
			if p.stream.Send(ctx, Completed{Reason: FinishToolCall}) {
				p.stream.Close(nil)
			} else {
				p.stream.Close(ctx.Err())
			}
			return
		case oaiFinishReasonStop:
			if p.stream.Send(ctx, Completed{Reason: FinishStop}) {
				p.stream.Close(nil)
			} else {
				p.stream.Close(ctx.Err())
			}
			return
		case oaiFinishReasonLength:
			p.logger.Warn("generation truncated by token limit")
			if p.stream.Send(ctx, Completed{Reason: FinishLength}) {
				p.stream.Close(nil)
			} else {
				p.stream.Close(ctx.Err())
			}
			return
		case oaiFinishReasonContentFilter:
			p.stream.Close(fmt.Errorf("generation blocked by content filter"))
			return
		}
	}

	if err := sse.Err(); err != nil {
		p.stream.Close(fmt.Errorf("completion stream: %w", err))
		return
	}
	p.stream.Close(fmt.Errorf("completion stream ended without finish reason"))
}
