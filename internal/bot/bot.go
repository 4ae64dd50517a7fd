// ABOUTME: Telegram bot core: update loop, message routing, streaming replies.
// ABOUTME: Handles commands and bridges plain messages to the orchestrator.

package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/2389/coven-telegram/internal/dedupe"
	"github.com/2389/coven-telegram/internal/orchestrator"
	"github.com/2389/coven-telegram/internal/render"
	"github.com/2389/coven-telegram/internal/session"
	"github.com/2389/coven-telegram/internal/store"
	"github.com/2389/coven-telegram/internal/telegram"
)

const (
	placeholderText = "⌛ Processing your request…"

	historyLimitMax = 20

	// Re-delivered updates within this window are dropped.
	dedupeTTL     = 10 * time.Minute
	dedupeMaxSize = 10000
)

// Transport is the Telegram surface the bot needs. *telegram.Client
// implements it; tests substitute a fake.
type Transport interface {
	GetMe(ctx context.Context) (*telegram.User, error)
	GetUpdates(ctx context.Context, offset int64, timeoutSeconds int) ([]telegram.Update, error)
	SendMessage(ctx context.Context, req *telegram.SendMessageRequest) (*telegram.Message, error)
	EditMessageText(ctx context.Context, chatID, messageID int64, text, parseMode string) error
	SendChatAction(ctx context.Context, chatID int64, action string) error
}

// Options tunes bot behavior.
type Options struct {
	TypingIndicator    bool
	HistoryLimit       int
	PollTimeoutSeconds int
	ParseMode          string
}

// Bot connects Telegram to the orchestrator.
type Bot struct {
	transport     Transport
	router        *session.Router
	conversations conversationService
	orchestrator  orchestrator.Orchestrator
	seen          *dedupe.Cache
	logger        *slog.Logger
	opts          Options

	me *telegram.User

	// Track chat/user pairs with a query in flight to avoid duplicate handling
	processing sync.Map
}

// conversationService is the subset of the conversation service the bot uses.
type conversationService interface {
	RecordMessage(ctx context.Context, conversationID, role, content string) error
	History(ctx context.Context, conversationID string, limit int) ([]*store.Message, error)
	GetAgent(ctx context.Context, name string) (*store.Agent, error)
	ListAgents(ctx context.Context) ([]*store.Agent, error)
	ListAllAgents(ctx context.Context) ([]*store.Agent, error)
}

// New creates a bot. Run must be called to start processing.
func New(transport Transport, router *session.Router, conversations conversationService, orch orchestrator.Orchestrator, opts Options, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 5
	}
	if opts.PollTimeoutSeconds <= 0 {
		opts.PollTimeoutSeconds = 30
	}
	return &Bot{
		transport:     transport,
		router:        router,
		conversations: conversations,
		orchestrator:  orch,
		seen:          dedupe.New(dedupeTTL, dedupeMaxSize),
		logger:        logger.With("component", "bot"),
		opts:          opts,
	}
}

// Run starts the long-polling loop and blocks until the context is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	me, err := b.transport.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("verifying bot token: %w", err)
	}
	b.me = me
	b.logger.Info("bot authenticated", "username", me.Username, "id", me.ID)

	var offset int64
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("shutting down bot")
			return nil
		default:
		}

		updates, err := b.transport.GetUpdates(ctx, offset, b.opts.PollTimeoutSeconds)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			b.logger.Error("polling for updates failed", "error", err)
			select {
			case <-time.After(3 * time.Second):
			case <-ctx.Done():
				return nil
			}
			continue
		}

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			if b.seen.Seen(fmt.Sprintf("update-%d", update.UpdateID)) {
				b.logger.Debug("dropping duplicate update", "update_id", update.UpdateID)
				continue
			}
			if update.Message == nil {
				continue
			}
			// Process in a goroutine so a slow stream doesn't stall polling.
			go b.handleMessage(ctx, update.Message)
		}
	}
}

// handleMessage dispatches one incoming message.
func (b *Bot) handleMessage(ctx context.Context, msg *telegram.Message) {
	if msg.From == nil || msg.From.IsBot || msg.Chat == nil {
		return
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	b.logger.Info("received message",
		"chat_id", msg.Chat.ID,
		"user_id", msg.From.ID,
		"length", len(text),
	)

	if strings.HasPrefix(text, "/") {
		b.handleCommand(ctx, msg, text)
		return
	}

	// Outside private chats only follow-ups (replies to the bot) are handled,
	// so group chatter doesn't trigger the agent.
	if msg.Chat.Type != "private" && !b.isReplyToBot(msg) {
		return
	}

	b.streamQuery(ctx, msg, text, "")
}

func (b *Bot) isReplyToBot(msg *telegram.Message) bool {
	return msg.ReplyToMessage != nil &&
		msg.ReplyToMessage.From != nil &&
		b.me != nil &&
		msg.ReplyToMessage.From.ID == b.me.ID
}

// handleCommand parses and executes a /command message.
func (b *Bot) handleCommand(ctx context.Context, msg *telegram.Message, text string) {
	fields := strings.Fields(text)
	command := fields[0]
	args := fields[1:]

	// Commands in groups arrive as /command@botname.
	if at := strings.Index(command, "@"); at > 0 {
		if b.me != nil && !strings.EqualFold(command[at+1:], b.me.Username) {
			return
		}
		command = command[:at]
	}

	switch command {
	case "/start":
		b.reply(ctx, msg, "👋 Hi! Send me a message and I'll forward it to your agent.\n\nCommands:\n/chat <text> — ask the active agent\n/agent <name> — switch agents\n/agents — list available agents\n/history — show recent messages")
	case "/chat":
		query := strings.TrimSpace(strings.TrimPrefix(text, fields[0]))
		if query == "" && msg.ReplyToMessage != nil {
			// Bare /chat in reply to a message uses that message as the prompt.
			query = strings.TrimSpace(msg.ReplyToMessage.Text)
		}
		if query == "" {
			b.reply(ctx, msg, "Usage: /chat <your question>")
			return
		}
		b.streamQuery(ctx, msg, query, "")
	case "/agents":
		b.handleAgents(ctx, msg, true)
	case "/agent":
		if len(args) == 0 {
			b.handleAgents(ctx, msg, false)
			return
		}
		b.handleAgentSwitch(ctx, msg, args[0])
	case "/history":
		limit := b.opts.HistoryLimit
		if len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 || n > historyLimitMax {
				b.reply(ctx, msg, fmt.Sprintf("Usage: /history [1-%d]", historyLimitMax))
				return
			}
			limit = n
		}
		b.handleHistory(ctx, msg, limit)
	default:
		b.reply(ctx, msg, fmt.Sprintf("Unknown command %s. Try /start.", command))
	}
}

// handleAgents lists the agent catalog. /agents shows only enabled agents;
// bare /agent shows everything including disabled entries.
func (b *Bot) handleAgents(ctx context.Context, msg *telegram.Message, enabledOnly bool) {
	var agents []*store.Agent
	var err error
	if enabledOnly {
		agents, err = b.conversations.ListAgents(ctx)
	} else {
		agents, err = b.conversations.ListAllAgents(ctx)
	}
	if err != nil {
		b.logger.Error("listing agents failed", "error", err)
		b.reply(ctx, msg, "❌ Could not load the agent list.")
		return
	}
	if len(agents) == 0 {
		b.reply(ctx, msg, "No agents are configured.")
		return
	}

	var sb strings.Builder
	sb.WriteString("Available agents:\n")
	for _, a := range agents {
		sb.WriteString(fmt.Sprintf("• %s — %s", a.Name, a.DisplayName))
		if a.Description != "" {
			sb.WriteString(": " + a.Description)
		}
		if !a.Enabled {
			sb.WriteString(" (disabled)")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\nSwitch with /agent <name>.")
	b.reply(ctx, msg, sb.String())
}

// handleAgentSwitch validates the agent and activates its session.
func (b *Bot) handleAgentSwitch(ctx context.Context, msg *telegram.Message, name string) {
	agent, err := b.conversations.GetAgent(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		b.reply(ctx, msg, fmt.Sprintf("Agent %q not found. Use /agents to see what's available.", name))
		return
	}
	if err != nil {
		b.logger.Error("looking up agent failed", "agent", name, "error", err)
		b.reply(ctx, msg, "❌ Could not switch agents, please try again.")
		return
	}
	if !agent.Enabled {
		b.reply(ctx, msg, fmt.Sprintf("Agent %q is currently disabled.", name))
		return
	}

	identity := session.ChatIdentity{ChatID: msg.Chat.ID, UserID: msg.From.ID}
	handle, err := b.router.SwitchAgent(ctx, identity, name)
	if err != nil {
		b.logger.Error("agent switch failed", "agent", name, "error", err)
		b.reply(ctx, msg, "❌ Could not switch agents, please try again.")
		return
	}

	b.logger.Info("switched agent", "identity", identity.Key(), "agent", handle.AgentName)
	b.reply(ctx, msg, fmt.Sprintf("✅ Now talking to %s.", agent.DisplayName))
}

// handleHistory shows the most recent exchanges in the active conversation.
func (b *Bot) handleHistory(ctx context.Context, msg *telegram.Message, limit int) {
	identity := session.ChatIdentity{ChatID: msg.Chat.ID, UserID: msg.From.ID}
	handle, err := b.router.Resolve(ctx, identity, "")
	if err != nil {
		b.logger.Error("resolving session for history failed", "error", err)
		b.reply(ctx, msg, "❌ Could not load history.")
		return
	}

	messages, err := b.conversations.History(ctx, handle.ConversationID, limit)
	if err != nil {
		b.logger.Error("loading history failed", "conversation_id", handle.ConversationID, "error", err)
		b.reply(ctx, msg, "❌ Could not load history.")
		return
	}
	if len(messages) == 0 {
		b.reply(ctx, msg, "No messages yet in this conversation.")
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Recent messages with %s:\n\n", handle.AgentName))
	for _, m := range messages {
		prefix := "👤"
		if m.Role == store.RoleAssistant {
			prefix = "🤖"
		}
		sb.WriteString(fmt.Sprintf("%s %s\n", prefix, m.Content))
	}
	b.reply(ctx, msg, telegram.Truncate(sb.String(), telegram.MaxPayloadLength))
}

// streamQuery forwards a user message to the orchestrator and streams the
// response back by editing a placeholder message in place.
func (b *Bot) streamQuery(ctx context.Context, msg *telegram.Message, query, requestedAgent string) {
	identity := session.ChatIdentity{ChatID: msg.Chat.ID, UserID: msg.From.ID}

	// Check if we're already streaming a response for this participant
	if _, loaded := b.processing.LoadOrStore(identity.Key(), true); loaded {
		b.logger.Debug("query already in flight, dropping", "identity", identity.Key())
		return
	}
	defer b.processing.Delete(identity.Key())

	if b.opts.TypingIndicator {
		if err := b.transport.SendChatAction(ctx, msg.Chat.ID, "typing"); err != nil {
			b.logger.Debug("failed to send typing action", "error", err)
		}
	}

	placeholder, err := b.transport.SendMessage(ctx, &telegram.SendMessageRequest{
		ChatID:                   msg.Chat.ID,
		Text:                     placeholderText,
		ReplyToMessageID:         msg.MessageID,
		AllowSendingWithoutReply: true,
	})
	if err != nil {
		b.logger.Error("sending placeholder failed", "chat_id", msg.Chat.ID, "error", err)
		return
	}

	handle, err := b.router.Resolve(ctx, identity, requestedAgent)
	if err != nil {
		b.logger.Error("session resolution failed", "identity", identity.Key(), "error", err)
		b.editPlain(ctx, msg.Chat.ID, placeholder.MessageID, "❌ Failed to process the request: no agent available.")
		return
	}

	if err := b.conversations.RecordMessage(ctx, handle.ConversationID, store.RoleUser, query); err != nil {
		b.logger.Warn("recording user message failed", "error", err)
	}

	events, err := b.orchestrator.StreamQuery(ctx, &orchestrator.QueryRequest{
		Query:          query,
		AgentName:      handle.AgentName,
		UserID:         strconv.FormatInt(identity.UserID, 10),
		ConversationID: handle.ConversationID,
	})
	if err != nil {
		b.logger.Error("starting query stream failed", "agent", handle.AgentName, "error", err)
		b.editPlain(ctx, msg.Chat.ID, placeholder.MessageID, fmt.Sprintf("❌ Failed to process the request: %v", err))
		return
	}

	editor := &placeholderEditor{
		bot:       b,
		chatID:    msg.Chat.ID,
		messageID: placeholder.MessageID,
	}
	agg := render.NewAggregator(editor, b.logger)
	if err := agg.Run(ctx, events); err != nil {
		b.logger.Error("streaming response failed", "conversation_id", handle.ConversationID, "error", err)
		return
	}

	if final := agg.FinalText(); final != "" {
		if err := b.conversations.RecordMessage(ctx, handle.ConversationID, store.RoleAssistant, final); err != nil {
			b.logger.Warn("recording assistant message failed", "error", err)
		}
	}
}

// placeholderEditor adapts the placeholder message to the aggregator's Editor.
// Each edit is truncated, rendered to Telegram HTML, and falls back to plain
// text when Telegram rejects the formatting.
type placeholderEditor struct {
	bot       *Bot
	chatID    int64
	messageID int64
}

func (e *placeholderEditor) Edit(ctx context.Context, text string) error {
	text = telegram.Truncate(text, telegram.MaxPayloadLength)

	if e.bot.opts.ParseMode == telegram.ParseModeHTML {
		html, err := telegram.FormatHTML(text)
		if err == nil {
			err = e.bot.transport.EditMessageText(ctx, e.chatID, e.messageID, html, telegram.ParseModeHTML)
			if err == nil {
				return nil
			}
			if !errors.Is(err, telegram.ErrBadFormatting) {
				return err
			}
			e.bot.logger.Debug("formatting rejected, retrying as plain text", "chat_id", e.chatID)
		}
	}

	return e.bot.transport.EditMessageText(ctx, e.chatID, e.messageID, text, "")
}

// reply sends a plain response to the incoming message.
func (b *Bot) reply(ctx context.Context, msg *telegram.Message, text string) {
	_, err := b.transport.SendMessage(ctx, &telegram.SendMessageRequest{
		ChatID:                   msg.Chat.ID,
		Text:                     text,
		ReplyToMessageID:         msg.MessageID,
		AllowSendingWithoutReply: true,
	})
	if err != nil {
		b.logger.Error("sending reply failed", "chat_id", msg.Chat.ID, "error", err)
	}
}

func (b *Bot) editPlain(ctx context.Context, chatID, messageID int64, text string) {
	if err := b.transport.EditMessageText(ctx, chatID, messageID, text, ""); err != nil {
		b.logger.Error("editing message failed", "chat_id", chatID, "error", err)
	}
}
