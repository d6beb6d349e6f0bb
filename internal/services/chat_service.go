package services

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"inkwell/internal/models"
)

//go:embed chat_rules.yaml
var defaultChatRules []byte

// FallbackRuleID is recorded on bot replies that matched no rule.
const FallbackRuleID = "fallback"

const (
	maxChatMessageLength = 500
	maxChatSessionLength = 64
	chatHistoryLimit     = 100
)

type ChatRule struct {
	ID       string   `yaml:"id" json:"id"`
	Priority int      `yaml:"priority" json:"priority"`
	Patterns []string `yaml:"patterns" json:"patterns"`
	Response string   `yaml:"response" json:"response"`
}

type ChatRules struct {
	Fallback string     `yaml:"fallback"`
	Rules    []ChatRule `yaml:"rules"`
}

// LoadChatRules reads rules from path, or the built-in set when path is empty.
func LoadChatRules(path string) (*ChatRules, error) {
	if path == "" {
		return ParseChatRules(defaultChatRules)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read chat rules: %w", err)
	}
	return ParseChatRules(data)
}

func ParseChatRules(data []byte) (*ChatRules, error) {
	var rules ChatRules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse chat rules: %w", err)
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return &rules, nil
}

func (r *ChatRules) Validate() error {
	if strings.TrimSpace(r.Fallback) == "" {
		return fmt.Errorf("fallback response is required")
	}
	seen := make(map[string]bool, len(r.Rules))
	for i, rule := range r.Rules {
		if rule.ID == "" {
			return fmt.Errorf("rule %d: id is required", i)
		}
		if rule.ID == FallbackRuleID {
			return fmt.Errorf("rule %q: id is reserved", rule.ID)
		}
		if seen[rule.ID] {
			return fmt.Errorf("rule %q: duplicate id", rule.ID)
		}
		seen[rule.ID] = true
		if len(rule.Patterns) == 0 {
			return fmt.Errorf("rule %q: at least one pattern is required", rule.ID)
		}
		if strings.TrimSpace(rule.Response) == "" {
			return fmt.Errorf("rule %q: response is required", rule.ID)
		}
	}
	return nil
}

// normalizeWords lowercases s and collapses everything that is not a letter
// or digit into single spaces, padded on both ends.
func normalizeWords(s string) string {
	var b strings.Builder
	b.WriteByte(' ')
	space := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	if !space {
		b.WriteByte(' ')
	}
	return b.String()
}

// Match returns the highest priority rule with a pattern that appears in
// text as whole words. Ties go to the rule listed first.
func (r *ChatRules) Match(text string) (ChatRule, bool) {
	haystack := normalizeWords(text)

	var best ChatRule
	found := false
	for _, rule := range r.Rules {
		if found && rule.Priority <= best.Priority {
			continue
		}
		for _, p := range rule.Patterns {
			needle := normalizeWords(p)
			if strings.TrimSpace(needle) == "" {
				continue
			}
			if strings.Contains(haystack, needle) {
				best = rule
				found = true
				break
			}
		}
	}
	return best, found
}

type ChatExchange struct {
	Question models.ChatMessage `json:"question"`
	Answer   models.ChatMessage `json:"answer"`
}

type ChatService struct {
	store ChatStore
	rules *ChatRules
	log   *zap.Logger
	now   func() time.Time
	newID func() string
}

func NewChatService(store ChatStore, rules *ChatRules, logger *zap.Logger) *ChatService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{
		store: store,
		rules: rules,
		log:   logger.Named("chat"),
		now:   func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
		newID: uuid.NewString,
	}
}

func validSessionID(id string) bool {
	return id != "" && len(id) <= maxChatSessionLength
}

// Send stores the visitor's message and the bot's reply.
func (s *ChatService) Send(ctx context.Context, actor *models.User, sessionID, text string) (*ChatExchange, error) {
	if !validSessionID(sessionID) {
		return nil, fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: message is empty", ErrInvalidInput)
	}
	if utf8.RuneCountInString(text) > maxChatMessageLength {
		return nil, fmt.Errorf("%w: message is limited to %d characters", ErrInvalidInput, maxChatMessageLength)
	}

	var userID *uint
	if actor != nil {
		id := actor.ID
		userID = &id
	}

	now := s.now()
	question := models.ChatMessage{
		ID:        s.newID(),
		SessionID: sessionID,
		UserID:    userID,
		Sender:    models.ChatSenderUser,
		Text:      text,
		CreatedAt: now,
	}
	if err := s.store.SaveChatMessage(ctx, &question); err != nil {
		return nil, fmt.Errorf("save chat message: %w", err)
	}

	ruleID, response := FallbackRuleID, s.rules.Fallback
	if rule, ok := s.rules.Match(text); ok {
		ruleID, response = rule.ID, rule.Response
	}

	answer := models.ChatMessage{
		ID:        s.newID(),
		SessionID: sessionID,
		Sender:    models.ChatSenderBot,
		Text:      response,
		RuleID:    ruleID,
		CreatedAt: now.Add(time.Microsecond),
	}
	if err := s.store.SaveChatMessage(ctx, &answer); err != nil {
		return nil, fmt.Errorf("save chat reply: %w", err)
	}

	if err := s.store.RecordRuleHit(ctx, ruleID); err != nil {
		s.log.Warn("record rule hit failed", zap.String("rule_id", ruleID), zap.Error(err))
	}

	return &ChatExchange{Question: question, Answer: answer}, nil
}

// Feedback rates a bot reply. Each reply can be rated once.
func (s *ChatService) Feedback(ctx context.Context, messageID string, helpful bool, comment string) (*models.ChatFeedback, error) {
	msg, err := s.store.GetChatMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.Sender != models.ChatSenderBot {
		return nil, ErrFeedbackNotAllowed
	}

	comment = strings.TrimSpace(comment)
	if utf8.RuneCountInString(comment) > maxChatMessageLength {
		return nil, fmt.Errorf("%w: comment is limited to %d characters", ErrInvalidInput, maxChatMessageLength)
	}

	fb := &models.ChatFeedback{
		MessageID: msg.ID,
		SessionID: msg.SessionID,
		RuleID:    msg.RuleID,
		Helpful:   helpful,
		Comment:   comment,
		CreatedAt: s.now(),
	}
	if err := s.store.SaveChatFeedback(ctx, fb); err != nil {
		return nil, err
	}

	if err := s.store.RecordRuleFeedback(ctx, msg.RuleID, helpful); err != nil {
		s.log.Warn("record rule feedback failed", zap.String("rule_id", msg.RuleID), zap.Error(err))
	}
	return fb, nil
}

// History returns a session's messages, oldest first.
func (s *ChatService) History(ctx context.Context, sessionID string) ([]models.ChatMessage, error) {
	if !validSessionID(sessionID) {
		return nil, fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}
	return s.store.ListSessionMessages(ctx, sessionID, chatHistoryLimit)
}

func (s *ChatService) Analytics(ctx context.Context, actor *models.User) ([]models.ChatAnalytics, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.store.ListChatAnalytics(ctx)
}
