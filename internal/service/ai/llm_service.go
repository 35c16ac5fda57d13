package ai

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/linxy/chat-relay/internal/config"
)

// SummaryFallback is returned whenever summary generation fails. Finalization
// must still complete with this value in place of a real summary.
const SummaryFallback = "Summary generation failed"

const summaryPrompt = `Summarize this conversation in bullet points.
Keep it under 150 words. Include key topics, user intent, and assistant actions.

Conversation:
%s`

// Service wraps the completion provider behind two entry points: Complete for
// the conversation loop and Summarize for session finalization.
type Service struct {
	completionModel model.ChatModel
	summaryModel    model.ChatModel
}

// NewService builds the provider models and binds the tool-calling contract.
// Two model instances are held so summary requests never advertise tools.
func NewService(ctx context.Context, cfg config.AIConfig, tools []*schema.ToolInfo) (*Service, error) {
	completionModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	if len(tools) > 0 {
		if err := completionModel.BindTools(tools); err != nil {
			return nil, fmt.Errorf("failed to bind tools: %w", err)
		}
	}

	summaryModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create summary model: %w", err)
	}

	return &Service{
		completionModel: completionModel,
		summaryModel:    summaryModel,
	}, nil
}

// Complete performs one blocking round trip to the completion provider. The
// response may carry text, tool-call requests, or both.
func (s *Service) Complete(ctx context.Context, messages []*schema.Message) (*schema.Message, error) {
	response, err := s.completionModel.Generate(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("completion request failed: %w", err)
	}
	return response, nil
}

// Summarize condenses a session narrative into bullet points. Any failure
// yields the fixed fallback string rather than an error.
func (s *Service) Summarize(ctx context.Context, conversation string) string {
	request := []*schema.Message{
		schema.UserMessage(fmt.Sprintf(summaryPrompt, conversation)),
	}

	response, err := s.summaryModel.Generate(ctx, request)
	if err != nil {
		log.Printf("[ai] summary generation failed: %v", err)
		return SummaryFallback
	}

	summary := strings.TrimSpace(response.Content)
	if summary == "" {
		return SummaryFallback
	}
	return summary
}
