// Package chat coordinates the message/conversation write sequences shared
// by the request path and the realtime path. Every mutation of conversation
// or message state goes through Service, so the resulting state is identical
// no matter which transport a write entered through.
package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/tradiehub/messaging-api/internal/data"
	"github.com/tradiehub/messaging-api/internal/normalize"
)

// ConversationStore is the conversation directory: the single writer of
// unread counters and last-message links.
type ConversationStore interface {
	FindOrCreate(ctx context.Context, participantA, participantB, contextID string) (*data.Conversation, error)
	Get(ctx context.Context, conversationID string) (*data.Conversation, error)
	ListForParticipant(ctx context.Context, principalID string) ([]*data.Conversation, error)
	RecordMessageAppended(ctx context.Context, conversationID, messageID, senderID string) (*data.Conversation, error)
	ResetUnread(ctx context.Context, conversationID, principalID string) error
	UnreadTotal(ctx context.Context, principalID string) (int64, error)
}

// MessageStore is the append-only message log.
type MessageStore interface {
	Append(ctx context.Context, conversationID, senderID, content string) (*data.Message, error)
	Get(ctx context.Context, messageID string) (*data.Message, error)
	ListByConversation(ctx context.Context, conversationID string) ([]*data.Message, error)
	MarkRead(ctx context.Context, conversationID, principalID string) (int64, error)
}

// PrincipalDirectory resolves participant ids against the marketplace's
// user records.
type PrincipalDirectory interface {
	Exists(ctx context.Context, principalID string) (bool, error)
}

// EventSink receives notifications after successful mutations so connected
// sessions can be updated. Implementations must not block: the realtime hub
// enqueues onto bounded per-connection buffers and drops slow consumers.
type EventSink interface {
	// MessageAppended fires after a message is durably appended and the
	// conversation's counters reflect it. conv carries the updated state.
	MessageAppended(conv *data.Conversation, msg *data.Message)

	// MessagesRead fires after a participant marked the conversation read.
	MessagesRead(conv *data.Conversation, principalID string)
}

// ConversationSummary is a conversation plus its last message, as shown in
// the conversation list.
type ConversationSummary struct {
	Conversation *data.Conversation
	LastMessage  *data.Message
}

// conversationLocks hands out one mutex per conversation id for as long as
// anyone holds or waits on it. Entries are refcounted and removed when the
// last holder releases, so the map stays bounded by in-flight mutations
// rather than every conversation ever touched.
type conversationLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newConversationLocks() *conversationLocks {
	return &conversationLocks{entries: map[string]*lockEntry{}}
}

func (l *conversationLocks) lock(conversationID string) func() {
	l.mu.Lock()
	e, ok := l.entries[conversationID]
	if !ok {
		e = &lockEntry{}
		l.entries[conversationID] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.entries, conversationID)
		}
		l.mu.Unlock()
	}
}

func (l *conversationLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Service implements the shared write sequences. Mutations on one
// conversation are serialized by a per-conversation mutex so the fan-out
// order matches the store's creation order.
type Service struct {
	convs      ConversationStore
	msgs       MessageStore
	principals PrincipalDirectory
	events     EventSink

	locks *conversationLocks
}

// NewService wires a Service. events may be nil when no realtime fan-out is
// attached (tests, tooling).
func NewService(convs ConversationStore, msgs MessageStore, principals PrincipalDirectory, events EventSink) *Service {
	return &Service{convs: convs, msgs: msgs, principals: principals, events: events, locks: newConversationLocks()}
}

func (s *Service) lockConversation(conversationID string) func() {
	return s.locks.lock(conversationID)
}

// assertParticipant is the sole authorization gate. Every operation that
// reads or writes a conversation calls it before acting.
func assertParticipant(conv *data.Conversation, principalID string) error {
	if !conv.HasParticipant(principalID) {
		return fmt.Errorf("%w: %s is not a participant of conversation %s",
			data.ErrForbidden, principalID, conv.ID.Hex())
	}
	return nil
}

// appendMessage runs the write sequence for an already-authorized sender:
// append to the log, record on the conversation, notify. The conversation
// lock makes the message and its counter effect observable together.
func (s *Service) appendMessage(ctx context.Context, conversationID, senderID, content string) (*data.Message, *data.Conversation, error) {
	unlock := s.lockConversation(conversationID)
	defer unlock()

	msg, err := s.msgs.Append(ctx, conversationID, senderID, content)
	if err != nil {
		return nil, nil, err
	}
	conv, err := s.convs.RecordMessageAppended(ctx, conversationID, msg.ID.Hex(), senderID)
	if err != nil {
		return nil, nil, err
	}

	if s.events != nil {
		s.events.MessageAppended(conv, msg)
	}
	return msg, conv, nil
}

// markRead runs the read-side sequence for an already-authorized reader.
func (s *Service) markRead(ctx context.Context, conv *data.Conversation, principalID string) (int64, error) {
	conversationID := conv.ID.Hex()

	unlock := s.lockConversation(conversationID)
	defer unlock()

	marked, err := s.msgs.MarkRead(ctx, conversationID, principalID)
	if err != nil {
		return 0, err
	}
	if err := s.convs.ResetUnread(ctx, conversationID, principalID); err != nil {
		return 0, err
	}

	if s.events != nil {
		s.events.MessagesRead(conv, principalID)
	}
	return marked, nil
}

// CreateConversation finds or creates the conversation between the caller
// and the other participant, optionally scoped by a job/booking context, and
// appends the initial message if one is provided. An initial message that
// trims to nothing is treated as absent.
func (s *Service) CreateConversation(ctx context.Context, callerID, otherID, contextID, initialMessage string) (*data.Conversation, *data.Message, error) {
	callerID = normalize.ID(callerID)
	otherID = normalize.ID(otherID)

	if otherID == "" {
		return nil, nil, fmt.Errorf("%w: participant id is required", data.ErrInvalidInput)
	}
	if callerID == otherID {
		return nil, nil, fmt.Errorf("%w: cannot start a conversation with yourself", data.ErrInvalidInput)
	}

	exists, err := s.principals.Exists(ctx, otherID)
	if err != nil {
		return nil, nil, err
	}
	if !exists {
		return nil, nil, fmt.Errorf("%w: principal %s", data.ErrNotFound, otherID)
	}

	conv, err := s.convs.FindOrCreate(ctx, callerID, otherID, contextID)
	if err != nil {
		return nil, nil, err
	}

	var msg *data.Message
	if strings.TrimSpace(initialMessage) != "" {
		msg, conv, err = s.appendMessage(ctx, conv.ID.Hex(), callerID, initialMessage)
		if err != nil {
			return nil, nil, err
		}
	}
	return conv, msg, nil
}

// SendMessage appends a message to the conversation on behalf of the sender.
func (s *Service) SendMessage(ctx context.Context, conversationID, senderID, content string) (*data.Message, error) {
	senderID = normalize.ID(senderID)

	conv, err := s.convs.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if err := assertParticipant(conv, senderID); err != nil {
		return nil, err
	}

	msg, _, err := s.appendMessage(ctx, conversationID, senderID, content)
	return msg, err
}

// GetConversation returns the conversation and its ordered messages, marking
// everything read for the caller as a side effect.
func (s *Service) GetConversation(ctx context.Context, conversationID, callerID string) (*data.Conversation, []*data.Message, error) {
	callerID = normalize.ID(callerID)

	conv, err := s.convs.Get(ctx, conversationID)
	if err != nil {
		return nil, nil, err
	}
	if err := assertParticipant(conv, callerID); err != nil {
		return nil, nil, err
	}

	if _, err := s.markRead(ctx, conv, callerID); err != nil {
		return nil, nil, err
	}

	// re-read so the returned counters reflect the reset
	conv, err = s.convs.Get(ctx, conversationID)
	if err != nil {
		return nil, nil, err
	}
	messages, err := s.msgs.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, nil, err
	}
	return conv, messages, nil
}

// ListConversations returns the caller's conversations, most recently active
// first, each with its last message for previews.
func (s *Service) ListConversations(ctx context.Context, callerID string) ([]ConversationSummary, error) {
	callerID = normalize.ID(callerID)

	conversations, err := s.convs.ListForParticipant(ctx, callerID)
	if err != nil {
		return nil, err
	}

	summaries := make([]ConversationSummary, 0, len(conversations))
	for _, conv := range conversations {
		summary := ConversationSummary{Conversation: conv}
		if conv.LastMessageID != "" {
			msg, err := s.msgs.Get(ctx, conv.LastMessageID)
			if err != nil {
				return nil, err
			}
			summary.LastMessage = msg
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// MarkConversationRead marks the conversation read for the caller and
// returns how many messages were newly marked.
func (s *Service) MarkConversationRead(ctx context.Context, conversationID, callerID string) (int64, error) {
	callerID = normalize.ID(callerID)

	conv, err := s.convs.Get(ctx, conversationID)
	if err != nil {
		return 0, err
	}
	if err := assertParticipant(conv, callerID); err != nil {
		return 0, err
	}
	return s.markRead(ctx, conv, callerID)
}

// UnreadTotal sums the caller's unread counters across all conversations.
func (s *Service) UnreadTotal(ctx context.Context, callerID string) (int64, error) {
	return s.convs.UnreadTotal(ctx, normalize.ID(callerID))
}

// AuthorizeJoin checks that the principal may join the conversation's room.
// Membership is re-checked on every join even though participants cannot
// change today.
func (s *Service) AuthorizeJoin(ctx context.Context, conversationID, principalID string) error {
	conv, err := s.convs.Get(ctx, conversationID)
	if err != nil {
		return err
	}
	return assertParticipant(conv, normalize.ID(principalID))
}
