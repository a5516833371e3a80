package gateway

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Haga4000/Regelebot/agent"
	"github.com/Haga4000/Regelebot/club"
	"github.com/Haga4000/Regelebot/history"
	"github.com/Haga4000/Regelebot/model"
)

// MessageEvent is a group message relayed by the WhatsApp bridge.
type MessageEvent struct {
	From       string `json:"from_" binding:"required"`
	Sender     string `json:"sender"`
	SenderName string `json:"sender_name"`
	Body       string `json:"body"`
	Timestamp  int64  `json:"timestamp"`
}

// senderKey identifies the member for admission control. Bridges that
// omit the sender fall back to the chat id.
func (e MessageEvent) senderKey() string {
	if e.Sender != "" {
		return e.Sender
	}
	return e.From
}

// PollCreatedEvent links a poll to the WhatsApp message showing it.
type PollCreatedEvent struct {
	PollID      string `json:"poll_id" binding:"required"`
	WAMessageID string `json:"wa_message_id" binding:"required"`
}

// PollVoteEvent is a vote cast on a native WhatsApp poll.
type PollVoteEvent struct {
	WAMessageID     string   `json:"wa_message_id" binding:"required"`
	Voter           string   `json:"voter"`
	VoterName       string   `json:"voter_name"`
	SelectedOptions []string `json:"selected_options"`
}

// MessageReply is the answer to a MessageEvent. Reply is null when the
// bot stays silent.
type MessageReply struct {
	Reply *string      `json:"reply"`
	Poll  *PollPayload `json:"poll,omitempty"`
}

type pollAck struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
}

func internalError(c *gin.Context) {
	c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
}

func (s *Server) handleMessage(c *gin.Context) {
	var event MessageEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	groupID := event.From

	if !s.limiter.Allow(event.senderKey()) {
		s.metrics.RecordRateLimited()
		s.logger.Warn("rate limit exceeded", "group", groupID, "sender", event.senderKey())
		c.JSON(http.StatusTooManyRequests, gin.H{"detail": "Rate limit exceeded"})
		return
	}

	if !s.mentions.ShouldRespond(event.Body) {
		c.JSON(http.StatusOK, MessageReply{})
		return
	}

	// History is read before the current message is stored.
	recent, err := s.conversations.Recent(ctx, groupID, s.config.WindowSize)
	if err != nil {
		s.logger.Warn("failed to load conversation history", "group", groupID, "error", err)
		recent = nil
	}
	prepared := history.Prepare(recent, s.config.WindowSize, s.config.TokenBudget)

	s.store(c, groupID, model.HistoryEntry{
		Role:       model.RoleUser,
		SenderName: event.SenderName,
		Content:    event.Body,
	})

	var reply Reply
	if IsCommand(event.Body) {
		reply = s.commands.Handle(ctx, event.Body, event.SenderName, groupID)
	} else {
		text := s.mentions.Clean(event.Body)
		s.logger.Info("agent processing", "message", preview(text, 50), "sender", event.SenderName)
		resp := s.responder.Process(ctx, agent.Turn{
			Text:          text,
			SenderName:    event.SenderName,
			History:       prepared.Window,
			PriorSubjects: prepared.PriorSubjects,
		})
		reply = Reply{Text: resp.Text}
	}

	if reply.Text == "" {
		c.JSON(http.StatusOK, MessageReply{})
		return
	}
	s.store(c, groupID, model.HistoryEntry{Role: model.RoleBot, Content: reply.Text})

	formatted := FormatReply(reply.Text, event.Body)
	c.JSON(http.StatusOK, MessageReply{Reply: &formatted, Poll: reply.Poll})
}

func (s *Server) store(c *gin.Context, groupID string, entry model.HistoryEntry) {
	entry.CreatedAt = time.Now().UTC()
	if err := s.conversations.StoreMessage(c.Request.Context(), groupID, entry); err != nil {
		s.logger.Error("failed to store message", "group", groupID, "role", entry.Role, "error", err)
	}
}

func (s *Server) handlePollCreated(c *gin.Context) {
	var event PollCreatedEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		badRequest(c, err)
		return
	}

	err := s.polls.SetWAMessageID(c.Request.Context(), event.PollID, event.WAMessageID)
	if msg, ok := club.UserMessage(err); ok {
		s.logger.Error("poll-created error", "error", msg)
		c.JSON(http.StatusOK, pollAck{Error: msg})
		return
	}
	if err != nil {
		s.logger.Error("poll-created failed", "poll_id", event.PollID, "error", err)
		internalError(c)
		return
	}
	s.logger.Info("linked poll to WhatsApp message", "poll_id", event.PollID, "wa_message_id", event.WAMessageID)
	c.JSON(http.StatusOK, pollAck{Success: true})
}

func (s *Server) handlePollVote(c *gin.Context) {
	var event PollVoteEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		badRequest(c, err)
		return
	}
	member := event.VoterName
	if member == "" {
		member = model.DefaultSenderName
	}

	_, err := s.polls.VoteByLabel(c.Request.Context(), event.WAMessageID, event.SelectedOptions, member)
	if msg, ok := club.UserMessage(err); ok {
		s.logger.Error("poll-vote error", "error", msg)
		c.JSON(http.StatusOK, pollAck{Error: msg})
		return
	}
	if err != nil {
		s.logger.Error("poll-vote failed", "wa_message_id", event.WAMessageID, "error", err)
		internalError(c)
		return
	}
	s.logger.Info("native vote recorded", "voter", member, "options", event.SelectedOptions)
	c.JSON(http.StatusOK, pollAck{Success: true})
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
