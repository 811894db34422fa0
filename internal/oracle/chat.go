package oracle

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/openai"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const (
	defaultModel       = "gpt-4o"
	defaultTemperature = float32(0.3)
	defaultMaxTokens   = 500
)

const systemPrompt = `You are a task complexity analyst for execution platforms. ` +
	`Score tasks from 0 to 100 on each complexity factor and answer with a single JSON object.`

const userPromptTemplate = `Analyze this task for complexity: %q

Score each factor from 0 to 100:
- computational_requirements: CPU and memory intensive work
- data_processing: amount and complexity of data handling
- integration_complexity: number of systems and APIs involved
- real_time_requirements: time sensitivity and latency needs
- security_requirements: security and compliance needs
Also give estimated_duration in minutes.

Answer with JSON only:
{"computational_requirements": 0, "data_processing": 0, "integration_complexity": 0,
 "real_time_requirements": 0, "security_requirements": 0, "estimated_duration": 0,
 "reasoning": "short explanation"}`

// ChatConfig configures an OpenAI-compatible chat model used as the oracle.
type ChatConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

// NewOpenAIChatModel builds the eino OpenAI chat model for cfg.
func NewOpenAIChatModel(ctx context.Context, cfg ChatConfig) (*openai.ChatModel, error) {
	name := cfg.Model
	if name == "" {
		name = defaultModel
	}
	chatConfig := &openai.ChatModelConfig{
		Model:  name,
		APIKey: cfg.APIKey,
	}
	if cfg.BaseURL != "" {
		chatConfig.BaseURL = cfg.BaseURL
	}
	m, err := openai.NewChatModel(ctx, chatConfig)
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}
	return m, nil
}

// ChatOracle asks a chat model to score a task description.
type ChatOracle struct {
	model einomodel.BaseChatModel
}

// Compile-time interface satisfaction check.
var _ Oracle = (*ChatOracle)(nil)

// NewChatOracle wraps a chat model as an Oracle.
func NewChatOracle(m einomodel.BaseChatModel) *ChatOracle {
	return &ChatOracle{model: m}
}

// Analyze sends the description to the chat model and parses its reply.
func (o *ChatOracle) Analyze(ctx context.Context, description string) (Analysis, error) {
	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(fmt.Sprintf(userPromptTemplate, description)),
	}

	resp, err := o.model.Generate(ctx, messages,
		einomodel.WithTemperature(defaultTemperature),
		einomodel.WithMaxTokens(defaultMaxTokens),
	)
	if err != nil {
		return Analysis{}, fmt.Errorf("generate: %w", err)
	}
	if resp == nil {
		return Analysis{}, ErrUnparseable
	}
	return ParseAnalysis(resp.Content)
}
