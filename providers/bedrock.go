package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// BedrockProvider implements Completer against AWS Bedrock via the runtime
// InvokeModel API. Anthropic Claude, Amazon Titan, and Meta Llama model
// families are supported; the family is selected by model-ID prefix.
type BedrockProvider struct {
	Base
	model  string
	client *bedrockruntime.Client
	region string
}

// DefaultBedrockModel is used when no model is configured.
const DefaultBedrockModel = "anthropic.claude-3-5-haiku-20241022-v1:0"

// NewBedrock creates a Bedrock completer. region defaults to us-east-1,
// model to DefaultBedrockModel. Credentials come from the standard AWS
// config chain.
func NewBedrock(region, model string) (*BedrockProvider, error) {
	if region == "" {
		region = "us-east-1"
	}
	if model == "" {
		model = DefaultBedrockModel
	}

	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("bedrock: load AWS config: %w", err)
	}

	return &BedrockProvider{
		Base:   Base{name: "bedrock"},
		model:  model,
		client: bedrockruntime.NewFromConfig(cfg),
		region: region,
	}, nil
}

// Complete dispatches to the model family's body codec.
func (p *BedrockProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	switch {
	case strings.HasPrefix(p.model, "anthropic."):
		return p.completeAnthropic(ctx, req)
	case strings.HasPrefix(p.model, "amazon.titan"):
		return p.completeTitan(ctx, req)
	case strings.HasPrefix(p.model, "meta.llama"):
		return p.completeLlama(ctx, req)
	default:
		return nil, fmt.Errorf("bedrock: unsupported model prefix: %s", p.model)
	}
}

func (p *BedrockProvider) invoke(ctx context.Context, body []byte) ([]byte, error) {
	output, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(p.model),
		ContentType: aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock invoke failed: %w", err)
	}
	return output.Body, nil
}

// ── Anthropic Claude on Bedrock ──────────────────────────────────────────────

type bedrockAnthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type bedrockAnthropicRequest struct {
	AnthropicVersion string                    `json:"anthropic_version"`
	MaxTokens        int                       `json:"max_tokens"`
	Messages         []bedrockAnthropicMessage `json:"messages"`
	Temperature      float64                   `json:"temperature"`
	System           string                    `json:"system,omitempty"`
}

type bedrockAnthropicResponse struct {
	ID      string `json:"id"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (p *BedrockProvider) completeAnthropic(ctx context.Context, req Request) (*Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	messages := []bedrockAnthropicMessage{}
	if req.Context != "" {
		messages = append(messages, bedrockAnthropicMessage{
			Role:    "user",
			Content: "Context:\n" + req.Context,
		}, bedrockAnthropicMessage{
			Role:    "assistant",
			Content: "Understood.",
		})
	}
	messages = append(messages, bedrockAnthropicMessage{Role: "user", Content: req.User})

	body, err := json.Marshal(bedrockAnthropicRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        maxTokens,
		Messages:         messages,
		Temperature:      req.Temperature,
		System:           req.System,
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock: marshal request: %w", err)
	}

	raw, err := p.invoke(ctx, body)
	if err != nil {
		return nil, err
	}

	var resp bedrockAnthropicResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("bedrock: unmarshal response: %w", err)
	}

	var text strings.Builder
	for _, c := range resp.Content {
		if c.Type == "text" {
			text.WriteString(c.Text)
		}
	}

	return &Response{
		Text:       text.String(),
		TokensUsed: resp.Usage.InputTokens + resp.Usage.OutputTokens,
		Model:      p.model,
	}, nil
}

// ── Amazon Titan ─────────────────────────────────────────────────────────────

type bedrockTitanRequest struct {
	InputText            string `json:"inputText"`
	TextGenerationConfig struct {
		MaxTokenCount int     `json:"maxTokenCount,omitempty"`
		Temperature   float64 `json:"temperature"`
	} `json:"textGenerationConfig"`
}

type bedrockTitanResponse struct {
	InputTextTokenCount int `json:"inputTextTokenCount"`
	Results             []struct {
		TokenCount int    `json:"tokenCount"`
		OutputText string `json:"outputText"`
	} `json:"results"`
}

func (p *BedrockProvider) completeTitan(ctx context.Context, req Request) (*Response, error) {
	titanReq := bedrockTitanRequest{InputText: flattenPrompt(req)}
	titanReq.TextGenerationConfig.MaxTokenCount = req.MaxTokens
	titanReq.TextGenerationConfig.Temperature = req.Temperature

	body, err := json.Marshal(titanReq)
	if err != nil {
		return nil, fmt.Errorf("bedrock: marshal request: %w", err)
	}

	raw, err := p.invoke(ctx, body)
	if err != nil {
		return nil, err
	}

	var resp bedrockTitanResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("bedrock: unmarshal response: %w", err)
	}
	if len(resp.Results) == 0 {
		return nil, fmt.Errorf("bedrock: response contained no results")
	}

	return &Response{
		Text:       resp.Results[0].OutputText,
		TokensUsed: resp.InputTextTokenCount + resp.Results[0].TokenCount,
		Model:      p.model,
	}, nil
}

// ── Meta Llama ───────────────────────────────────────────────────────────────

type bedrockLlamaRequest struct {
	Prompt      string  `json:"prompt"`
	MaxGenLen   int     `json:"max_gen_len,omitempty"`
	Temperature float64 `json:"temperature"`
}

type bedrockLlamaResponse struct {
	Generation           string `json:"generation"`
	PromptTokenCount     int    `json:"prompt_token_count"`
	GenerationTokenCount int    `json:"generation_token_count"`
}

func (p *BedrockProvider) completeLlama(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(bedrockLlamaRequest{
		Prompt:      flattenPrompt(req),
		MaxGenLen:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("bedrock: marshal request: %w", err)
	}

	raw, err := p.invoke(ctx, body)
	if err != nil {
		return nil, err
	}

	var resp bedrockLlamaResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("bedrock: unmarshal response: %w", err)
	}

	return &Response{
		Text:       resp.Generation,
		TokensUsed: resp.PromptTokenCount + resp.GenerationTokenCount,
		Model:      p.model,
	}, nil
}

// flattenPrompt collapses system/context/user into a single prompt for model
// families without native message roles.
func flattenPrompt(req Request) string {
	var sb strings.Builder
	if req.System != "" {
		sb.WriteString(req.System)
		sb.WriteString("\n\n")
	}
	if req.Context != "" {
		sb.WriteString("Context:\n")
		sb.WriteString(req.Context)
		sb.WriteString("\n\n")
	}
	sb.WriteString(req.User)
	return sb.String()
}
