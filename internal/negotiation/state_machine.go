package negotiation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// TextGenerator produces outbound message content. Implementations may
// fail or time out; the state machine always recovers with a fixed
// template, so a generator failure is never surfaced to the caller.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string, promptContext map[string]interface{}) (string, error)
}

// StateMachine owns the single authoritative stage-advance operation
type StateMachine struct {
	textGen TextGenerator
	logger  *zap.Logger
}

// NewStateMachine creates a negotiation state machine
func NewStateMachine(textGen TextGenerator, logger *zap.Logger) *StateMachine {
	return &StateMachine{textGen: textGen, logger: logger}
}

// Advance generates one outbound message for the session's current stage,
// appends it to the message log, moves the session to the next stage and
// recomputes the success probability.
//
// Advancing a completed session fails with ErrStageOrderViolation and
// leaves the session unchanged.
func (m *StateMachine) Advance(ctx context.Context, s *Session) (*Message, error) {
	if s.Completed() {
		return nil, fmt.Errorf("%w: session %s already completed", ErrStageOrderViolation, s.ID)
	}

	content := m.generateContent(ctx, s)

	msg := Message{
		Sender:    "agent",
		Type:      string(s.Stage),
		Content:   content,
		Timestamp: time.Now().UTC(),
	}

	s.Messages = append(s.Messages, msg)
	s.Stage = s.Stage.Next()
	s.SuccessProbability = successProbability(s)
	s.UpdatedAt = msg.Timestamp

	return &msg, nil
}

// generateContent asks the text generator for stage-appropriate content,
// falling back to the deterministic template on any failure.
func (m *StateMachine) generateContent(ctx context.Context, s *Session) string {
	if m.textGen == nil {
		return stageTemplate(s)
	}

	content, err := m.textGen.GenerateText(ctx, stagePrompt(s), map[string]interface{}{
		"stage":   string(s.Stage),
		"product": s.Deal.Product,
		"buyer":   s.Buyer.CompanyName,
		"style":   string(s.Strategy.Style),
	})
	if err != nil || content == "" {
		m.logger.Warn("Text generation failed, using stage template",
			zap.String("session_id", s.ID.String()),
			zap.String("stage", string(s.Stage)),
			zap.Error(err))
		return stageTemplate(s)
	}
	return content
}

// Success probability model. The value is advisory and never gates a
// transition.
const (
	probabilityBase  = 70
	probabilityFloor = 30
	probabilityCeil  = 95
)

func successProbability(s *Session) int {
	p := probabilityBase

	if s.Buyer.Urgency == LevelHigh {
		p += 15
	}
	if s.Buyer.BuyingPower == LevelHigh {
		p += 10
	}
	if s.Buyer.PriceSensitivity == LevelLow {
		p += 10
	}

	p += 2 * len(s.Messages)

	if s.Deal.BasePrice > 0 {
		marginPct := (s.Deal.TargetPrice - s.Deal.BasePrice) / s.Deal.BasePrice * 100
		if marginPct > 15 {
			p -= 10
		}
	}

	if p < probabilityFloor {
		return probabilityFloor
	}
	if p > probabilityCeil {
		return probabilityCeil
	}
	return p
}
