package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/volcengine/volcengine-go-sdk/service/arkruntime"
	"github.com/volcengine/volcengine-go-sdk/service/arkruntime/model/responses"
)

// VolcengineClient calls an Ark model through the Responses API. Sampling
// options are not forwarded.
type VolcengineClient struct {
	client *arkruntime.Client
	model  string
}

func NewVolcengineClient(model, apiKey string) (*VolcengineClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("volcengine api key is empty")
	}
	return &VolcengineClient{
		client: arkruntime.NewClientWithApiKey(apiKey),
		model:  model,
	}, nil
}

func (c *VolcengineClient) Generate(ctx context.Context, _ Options, prompts ...Prompt) (string, error) {
	text, err := joinText(prompts, "Volcengine")
	if err != nil {
		return "", err
	}

	resp, err := c.client.CreateResponses(ctx, arkRequest(c.model, text), arkruntime.WithProjectName("chat-eval"))
	if err != nil {
		return "", classify(fmt.Errorf("ark API error: %w", err))
	}

	var b strings.Builder
	for _, item := range resp.Output {
		msg := item.GetOutputMessage()
		if msg == nil {
			continue
		}
		for _, part := range msg.Content {
			if t := part.GetText(); t != nil {
				b.WriteString(t.Text)
			}
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("no text content found in model response")
	}
	return b.String(), nil
}

// arkRequest wraps text as a single user message.
func arkRequest(model, text string) *responses.ResponsesRequest {
	msg := &responses.ItemInputMessage{
		Role: responses.MessageRole_user,
		Content: []*responses.ContentItem{{
			Union: &responses.ContentItem_Text{
				Text: &responses.ContentItemText{
					Type: responses.ContentItemType_input_text,
					Text: text,
				},
			},
		}},
	}
	return &responses.ResponsesRequest{
		Model: model,
		Input: &responses.ResponsesInput{
			Union: &responses.ResponsesInput_ListValue{
				ListValue: &responses.InputItemList{ListValue: []*responses.InputItem{{
					Union: &responses.InputItem_InputMessage{InputMessage: msg},
				}}},
			},
		},
	}
}
