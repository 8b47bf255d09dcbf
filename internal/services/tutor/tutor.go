// Package tutor answers quant-finance questions through an external language model.
// Failures never reach the caller as errors: they become a static apology in the
// requested language.
package tutor

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/quantlab/internal/clients"
	"github.com/vadiminshakov/quantlab/internal/domain"
)

// ErrEmptyQuestion returned when the user message is blank.
var ErrEmptyQuestion = errors.New("question is empty")

type fallbackKind int

const (
	fallbackEmpty fallbackKind = iota
	fallbackConnection
)

var fallbacks = map[domain.Language]map[fallbackKind]string{
	domain.LanguageEnglish: {
		fallbackEmpty:      "I couldn't generate a response. Please check your API key.",
		fallbackConnection: "Error connecting to AI Tutor. Please ensure your API key is configured correctly.",
	},
	domain.LanguageChinese: {
		fallbackEmpty:      "抱歉，我无法生成回复。请检查您的 API 密钥。",
		fallbackConnection: "连接 AI 导师时出错。请确认您的 API 密钥配置正确。",
	},
}

type transcriptWriter interface {
	Save(msg domain.ChatMessage) (uint64, error)
}

type requestRecorder interface {
	RecordTutorRequest(lang string, outcome string, seconds float64)
}

// Exchange question and answer of one tutor call.
type Exchange struct {
	Question domain.ChatMessage `json:"question"`
	Answer   domain.ChatMessage `json:"answer"`
}

// Service wraps an LLM client with language-specific prompts and fallbacks.
type Service struct {
	client     clients.LLMClient
	transcript transcriptWriter
	recorder   requestRecorder
	logger     *zap.Logger
}

// NewService creates a tutor. transcript and recorder may be nil.
func NewService(client clients.LLMClient, transcript transcriptWriter, recorder requestRecorder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		client:     client,
		transcript: transcript,
		recorder:   recorder,
		logger:     logger,
	}
}

// Ask sends text to the model and returns the exchange. The only error is
// ErrEmptyQuestion; model failures produce a fallback answer.
func (s *Service) Ask(ctx context.Context, text string, lang domain.Language) (Exchange, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Exchange{}, ErrEmptyQuestion
	}
	if !lang.IsValid() {
		lang = domain.LanguageEnglish
	}

	question := domain.NewChatMessage(domain.ChatRoleUser, text, lang)
	s.record(question)

	start := time.Now()
	reply, err := s.client.Complete(ctx, SystemPrompt(lang), text)
	elapsed := time.Since(start)

	var answer domain.ChatMessage
	outcome := "ok"
	switch {
	case err == nil:
		answer = domain.NewChatMessage(domain.ChatRoleModel, reply, lang)
	case errors.Is(err, clients.ErrEmptyResponse):
		outcome = "empty"
		s.logger.Warn("tutor returned empty response", zap.String("lang", lang.String()))
		answer = fallbackMessage(lang, fallbackEmpty)
	default:
		outcome = "error"
		s.logger.Error("tutor request failed",
			zap.String("lang", lang.String()),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		answer = fallbackMessage(lang, fallbackConnection)
	}

	if s.recorder != nil {
		s.recorder.RecordTutorRequest(lang.String(), outcome, elapsed.Seconds())
	}
	s.record(answer)

	return Exchange{Question: question, Answer: answer}, nil
}

func (s *Service) record(msg domain.ChatMessage) {
	if s.transcript == nil {
		return
	}
	if _, err := s.transcript.Save(msg); err != nil {
		s.logger.Warn("failed to save chat message", zap.String("id", msg.ID), zap.Error(err))
	}
}

func fallbackMessage(lang domain.Language, kind fallbackKind) domain.ChatMessage {
	texts, ok := fallbacks[lang]
	if !ok {
		texts = fallbacks[domain.LanguageEnglish]
	}

	msg := domain.NewChatMessage(domain.ChatRoleModel, texts[kind], lang)
	msg.Fallback = true
	return msg
}
