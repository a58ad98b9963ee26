package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quizbot-service/internal/domain"
	"quizbot-service/internal/logger"
)

var (
	errNotTesting        = fmt.Errorf("%w: no test in progress", domain.ErrStaleEvent)
	errNoVariantExpected = fmt.Errorf("%w: variant selection not expected", domain.ErrStaleEvent)
)

// Conversation drives one identity through begin, name, variant, questions and
// completion. Handle must not run concurrently for the same identity; the
// Dispatcher guarantees that.
type Conversation struct {
	engine    *SessionEngine
	states    StateRepository
	variants  *Variants
	messenger Messenger
	results   *ResultPublisher
	log       *logger.Logger
	delay     time.Duration
	now       func() time.Time
}

type ConversationOption func(*Conversation)

// WithQuestionDelay sets the pause between an answer and the next question.
func WithQuestionDelay(d time.Duration) ConversationOption {
	return func(c *Conversation) { c.delay = d }
}

func WithResultPublisher(p *ResultPublisher) ConversationOption {
	return func(c *Conversation) { c.results = p }
}

func WithClock(now func() time.Time) ConversationOption {
	return func(c *Conversation) { c.now = now }
}

func NewConversation(engine *SessionEngine, states StateRepository, variants *Variants, messenger Messenger, log *logger.Logger, opts ...ConversationOption) *Conversation {
	c := &Conversation{
		engine:    engine,
		states:    states,
		variants:  variants,
		messenger: messenger,
		log:       log,
		delay:     500 * time.Millisecond,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Handle processes one inbound event. Rejected input and stale events are
// answered in chat; the returned error is informational only.
func (c *Conversation) Handle(ctx context.Context, ev domain.Event) error {
	c.log.Debug("event received", "identity", ev.Identity, "event", ev.Kind.String())
	var err error
	switch ev.Kind {
	case domain.EventCommand:
		err = c.handleCommand(ctx, ev)
	case domain.EventText:
		err = c.handleText(ctx, ev)
	case domain.EventChoice:
		err = c.handleChoice(ctx, ev)
	default:
		err = fmt.Errorf("%w: unknown event kind %d", domain.ErrStaleEvent, ev.Kind)
	}
	if err != nil {
		c.reject(ctx, ev, err)
	}
	return err
}

func (c *Conversation) handleCommand(ctx context.Context, ev domain.Event) error {
	switch ev.Command {
	case domain.CommandStart:
		return c.begin(ctx, ev)
	case domain.CommandHelp:
		return c.send(ctx, ev.Chat, domain.Reply{Text: msgHelp})
	default:
		c.log.Debug("ignoring unknown command", "identity", ev.Identity, "command", ev.Command)
		return nil
	}
}

func (c *Conversation) begin(ctx context.Context, ev domain.Event) error {
	completed, ok, err := c.engine.FindCompletedSession(ctx, ev.Identity)
	if err != nil {
		return err
	}
	if ok {
		return c.send(ctx, ev.Chat, domain.Reply{Text: alreadyCompletedText(completed)})
	}

	state, err := c.loadState(ctx, ev.Identity)
	if err != nil {
		return err
	}
	if state.Testing() {
		session, ok, err := c.engine.FindSessionByID(ctx, *state.SessionID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("session %d: %w", *state.SessionID, domain.ErrSessionNotFound)
		}
		if err := c.send(ctx, ev.Chat, domain.Reply{Text: resumeText(state.CurrentQuestionIndex, session.TotalQuestions)}); err != nil {
			return err
		}
		return c.sendQuestion(ctx, ev.Chat, session, state.CurrentQuestionIndex)
	}

	// A session left in progress without a testing row is continued, not restarted.
	active, ok, err := c.engine.FindActiveSession(ctx, ev.Identity)
	if err != nil {
		return err
	}
	if ok {
		return c.enterTesting(ctx, ev, active, true)
	}

	if err := c.states.SaveState(ctx, domain.ConversationState{
		Identity:  ev.Identity,
		State:     domain.StateAwaitingName,
		UpdatedAt: c.now().UTC(),
	}); err != nil {
		return err
	}
	var single *domain.Variant
	if v, ok := c.variants.Single(); ok {
		single = &v
	}
	return c.send(ctx, ev.Chat, domain.Reply{Text: welcomeText(single)})
}

func (c *Conversation) handleText(ctx context.Context, ev domain.Event) error {
	state, err := c.loadState(ctx, ev.Identity)
	if err != nil {
		return err
	}
	switch state.State {
	case domain.StateAwaitingName:
		return c.acceptName(ctx, ev)
	case domain.StateAwaitingVariant:
		return c.send(ctx, ev.Chat, c.variantPrompt())
	case domain.StateTesting:
		return c.send(ctx, ev.Chat, domain.Reply{Text: msgUseButtons})
	default:
		return c.send(ctx, ev.Chat, domain.Reply{Text: msgSendStart})
	}
}

func (c *Conversation) acceptName(ctx context.Context, ev domain.Event) error {
	name, err := domain.NormalizeName(ev.Text)
	if err != nil {
		return err
	}
	if variant, ok := c.variants.Single(); ok {
		return c.startTest(ctx, ev, name, variant)
	}

	if err := c.states.SaveState(ctx, domain.ConversationState{
		Identity:    ev.Identity,
		State:       domain.StateAwaitingVariant,
		PendingName: &name,
		UpdatedAt:   c.now().UTC(),
	}); err != nil {
		return err
	}
	return c.send(ctx, ev.Chat, c.variantPrompt())
}

func (c *Conversation) variantPrompt() domain.Reply {
	variants := c.variants.All()
	choices := make([]domain.Choice, len(variants))
	for i, v := range variants {
		choices[i] = domain.Choice{Label: v.Label(), Data: domain.EncodeVariant(v.Name)}
	}
	return domain.Reply{Text: msgChooseVariant, Choices: choices}
}

func (c *Conversation) startTest(ctx context.Context, ev domain.Event, name string, variant domain.Variant) error {
	session, err := c.engine.StartSession(ctx, ev.Identity, name, variant)
	if err != nil {
		return err
	}
	if err := c.send(ctx, ev.Chat, domain.Reply{Text: introText(session.DisplayName, variant, session.TotalQuestions)}); err != nil {
		return err
	}
	return c.enterTesting(ctx, ev, session, false)
}

// enterTesting points the conversation at the session's first unanswered
// position and serves it.
func (c *Conversation) enterTesting(ctx context.Context, ev domain.Event, session domain.Session, notice bool) error {
	position, err := c.engine.NextPosition(ctx, session.ID)
	if err != nil {
		return err
	}
	if position >= session.TotalQuestions {
		return c.finish(ctx, ev, session.ID)
	}

	sessionID := session.ID
	if err := c.states.SaveState(ctx, domain.ConversationState{
		Identity:             ev.Identity,
		State:                domain.StateTesting,
		SessionID:            &sessionID,
		CurrentQuestionIndex: position,
		UpdatedAt:            c.now().UTC(),
	}); err != nil {
		return err
	}
	if notice {
		if err := c.send(ctx, ev.Chat, domain.Reply{Text: resumeText(position, session.TotalQuestions)}); err != nil {
			return err
		}
	}
	return c.sendQuestion(ctx, ev.Chat, session, position)
}

func (c *Conversation) handleChoice(ctx context.Context, ev domain.Event) error {
	sel, err := domain.DecodeSelection(ev.Data)
	if err != nil {
		return err
	}
	state, err := c.loadState(ctx, ev.Identity)
	if err != nil {
		return err
	}
	switch sel.Kind {
	case domain.SelectVariant:
		return c.selectVariant(ctx, ev, state, sel.Variant)
	default:
		return c.answer(ctx, ev, state, sel)
	}
}

func (c *Conversation) selectVariant(ctx context.Context, ev domain.Event, state domain.ConversationState, name string) error {
	if state.State != domain.StateAwaitingVariant || state.PendingName == nil {
		return errNoVariantExpected
	}
	variant, ok := c.variants.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnknownVariant, name)
	}
	c.acknowledge(ctx, ev, "")
	c.dismiss(ctx, ev)
	return c.startTest(ctx, ev, *state.PendingName, variant)
}

func (c *Conversation) answer(ctx context.Context, ev domain.Event, state domain.ConversationState, sel domain.Selection) error {
	if !state.Testing() {
		return errNotTesting
	}
	if sel.QuestionIndex != state.CurrentQuestionIndex {
		return fmt.Errorf("%w: got %d, current %d", domain.ErrNotCurrentQuestion, sel.QuestionIndex, state.CurrentQuestionIndex)
	}
	sessionID := *state.SessionID
	session, ok, err := c.engine.FindSessionByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("session %d: %w", sessionID, domain.ErrSessionNotFound)
	}

	correct, err := c.engine.RecordAnswer(ctx, sessionID, sel.QuestionIndex, sel.OptionIndex)
	if err != nil {
		return err
	}
	c.dismiss(ctx, ev)
	if correct {
		c.acknowledge(ctx, ev, msgCorrect)
	} else {
		c.acknowledge(ctx, ev, msgIncorrect)
	}

	next := sel.QuestionIndex + 1
	if next >= session.TotalQuestions {
		return c.finish(ctx, ev, sessionID)
	}
	if err := c.states.AdvanceQuestion(ctx, ev.Identity, sessionID, next); err != nil {
		return err
	}
	if err := c.pause(ctx); err != nil {
		return err
	}
	return c.sendQuestion(ctx, ev.Chat, session, next)
}

func (c *Conversation) finish(ctx context.Context, ev domain.Event, sessionID int64) error {
	final, err := c.engine.CompleteSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := c.states.ClearState(ctx, ev.Identity); err != nil {
		return err
	}
	c.results.Publish(sessionID)
	return c.send(ctx, ev.Chat, domain.Reply{Text: completionText(final)})
}

func (c *Conversation) sendQuestion(ctx context.Context, chat string, session domain.Session, position int) error {
	entry, err := c.engine.Question(ctx, session.ID, position)
	if err != nil {
		return err
	}
	choices := make([]domain.Choice, len(entry.Options))
	for i, option := range entry.Options {
		choices[i] = domain.Choice{Label: option, Data: domain.EncodeAnswer(position, i)}
	}
	return c.send(ctx, chat, domain.Reply{
		Text:    questionText(position, session.TotalQuestions, entry.QuestionText),
		Choices: choices,
	})
}

func (c *Conversation) loadState(ctx context.Context, identity domain.Identity) (domain.ConversationState, error) {
	state, err := c.states.GetState(ctx, identity)
	if errors.Is(err, domain.ErrStateNotFound) {
		return domain.IdleState(identity), nil
	}
	return state, err
}

func (c *Conversation) pause(ctx context.Context) error {
	if c.delay <= 0 {
		return nil
	}
	t := time.NewTimer(c.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *Conversation) send(ctx context.Context, chat string, reply domain.Reply) error {
	if err := c.messenger.Send(ctx, chat, reply); err != nil {
		return fmt.Errorf("send to %s: %w", chat, err)
	}
	return nil
}

// acknowledge and dismiss are best effort; the state change already happened.
func (c *Conversation) acknowledge(ctx context.Context, ev domain.Event, text string) {
	if err := c.messenger.Acknowledge(ctx, ev, text); err != nil {
		c.log.Warn("acknowledge failed", "identity", ev.Identity, "error", err)
	}
}

func (c *Conversation) dismiss(ctx context.Context, ev domain.Event) {
	if err := c.messenger.DismissChoices(ctx, ev); err != nil {
		c.log.Warn("dismiss choices failed", "identity", ev.Identity, "error", err)
	}
}

// reject turns a handler error into a user-facing reply. Persisted state is
// left as the failed step found it.
func (c *Conversation) reject(ctx context.Context, ev domain.Event, err error) {
	text, level := c.describe(ev, err)
	switch level {
	case "debug":
		c.log.Debug("event rejected", "identity", ev.Identity, "event", ev.Kind.String(), "error", err)
	default:
		c.log.Error("event failed", "identity", ev.Identity, "event", ev.Kind.String(), "error", err)
	}

	if ev.Kind == domain.EventChoice && ev.AckID != "" {
		c.acknowledge(ctx, ev, text)
		if errors.Is(err, domain.ErrUnknownVariant) {
			_ = c.messenger.Send(ctx, ev.Chat, c.variantPrompt())
		}
		return
	}
	if sendErr := c.messenger.Send(ctx, ev.Chat, domain.Reply{Text: text}); sendErr != nil {
		c.log.Warn("failure reply not delivered", "identity", ev.Identity, "error", sendErr)
	}
}

func (c *Conversation) describe(ev domain.Event, err error) (string, string) {
	switch {
	case errors.Is(err, domain.ErrNameTooShort):
		return msgNameTooShort, "debug"
	case errors.Is(err, domain.ErrUnknownVariant):
		return msgUnknownVariant, "debug"
	case errors.Is(err, domain.ErrNotCurrentQuestion):
		return msgNotCurrentQuestion, "debug"
	case errors.Is(err, errNotTesting):
		return msgSendStart, "debug"
	case errors.Is(err, errNoVariantExpected):
		return msgNothingToSelect, "debug"
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrStaleEvent):
		return msgInvalidSelection, "debug"
	case ev.Kind == domain.EventChoice:
		return msgFailureTapAgain, "error"
	case errors.Is(err, domain.ErrNotFound):
		return msgFailureStart, "error"
	default:
		return msgFailure, "error"
	}
}
