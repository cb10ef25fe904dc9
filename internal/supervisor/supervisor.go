// Package supervisor owns conversation lifecycle: submitting new
// conversations to a fixed-size worker pool, resuming ones awaiting user
// input, reporting their current snapshot, and cancelling them
// mid-flight, per spec §4.4.
package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ssharma1011/ragforge/internal/agentrt"
	"github.com/ssharma1011/ragforge/internal/logx"
	"github.com/ssharma1011/ragforge/internal/metrics"
	"github.com/ssharma1011/ragforge/internal/persistence"
	"github.com/ssharma1011/ragforge/internal/proto"
	"github.com/ssharma1011/ragforge/internal/stream"
)

// DefaultWorkerCount is the fixed worker pool size used when none is
// given to NewSupervisor.
const DefaultWorkerCount = 8

// workItem is one unit dispatched to the worker pool: the conversation to
// drive from its current state.
type workItem struct {
	state *proto.WorkflowState
}

// Supervisor submits conversations to a fixed-size worker pool built on a
// buffered channel of work items, adapted from the teacher's
// goroutine+channel state-change dispatch in the original supervisor's
// processing loop. A map of per-conversation mutexes serializes lifecycle
// operations (submit/resume/cancel) for a single conversationId, adapted
// from the teacher's per-agent context/cancel map.
type Supervisor struct {
	registry map[string]agentrt.AgentFunc
	services *agentrt.Services
	store    *persistence.Store
	hub      *stream.Hub
	metrics  *metrics.Recorder
	logger   *logx.Logger

	work chan workItem
	wg   sync.WaitGroup

	locksMu   sync.Mutex
	locks     map[string]*sync.Mutex
	cancelled map[string]bool
}

// NewSupervisor wires the Agent Runtime registry and capability Services
// to a persistence Store and a stream Hub, and sizes the work queue to four
// times workerCount (DefaultWorkerCount if <= 0). The number of workers is
// set by Start.
func NewSupervisor(registry map[string]agentrt.AgentFunc, services *agentrt.Services, store *persistence.Store, hub *stream.Hub, rec *metrics.Recorder, workerCount int) *Supervisor {
	if workerCount <= 0 {
		workerCount = DefaultWorkerCount
	}
	return &Supervisor{
		registry:  registry,
		services:  services,
		store:     store,
		hub:       hub,
		metrics:   rec,
		logger:    logx.NewLogger("supervisor"),
		work:      make(chan workItem, workerCount*4),
		locks:     make(map[string]*sync.Mutex),
		cancelled: make(map[string]bool),
	}
}

// Start launches the fixed-size worker pool. Workers exit when ctx is
// cancelled; callers should follow with Wait to block until drained.
func (s *Supervisor) Start(ctx context.Context, workerCount int) {
	if workerCount <= 0 {
		workerCount = DefaultWorkerCount
	}
	for i := 0; i < workerCount; i++ {
		s.wg.Add(1)
		go s.runWorker(ctx)
	}
}

// Wait blocks until every worker goroutine started by Start has exited.
func (s *Supervisor) Wait() {
	s.wg.Wait()
}

func (s *Supervisor) runWorker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case item, ok := <-s.work:
			if !ok {
				return
			}
			s.process(ctx, item.state)
		}
	}
}

func (s *Supervisor) lockFor(conversationID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	lock, ok := s.locks[conversationID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[conversationID] = lock
	}
	return lock
}

// Submit enqueues a brand-new conversation's initial state onto the
// worker pool.
func (s *Supervisor) Submit(ctx context.Context, state *proto.WorkflowState) error {
	if state.ConversationID == "" {
		return fmt.Errorf("submitting conversation: conversation id is required")
	}
	lock := s.lockFor(state.ConversationID)
	lock.Lock()
	defer lock.Unlock()

	s.locksMu.Lock()
	delete(s.cancelled, state.ConversationID)
	s.locksMu.Unlock()

	if err := s.store.SaveSnapshot(state); err != nil {
		return fmt.Errorf("saving initial snapshot: %w", err)
	}
	select {
	case s.work <- workItem{state: state}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Resume appends a user message to a conversation awaiting user input,
// sets it back to RUNNING, and re-enqueues it.
func (s *Supervisor) Resume(ctx context.Context, conversationID, userMessage string) error {
	lock := s.lockFor(conversationID)
	lock.Lock()
	defer lock.Unlock()

	state, err := s.store.LoadSnapshot(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("loading conversation %s: %w", conversationID, err)
	}
	if state == nil {
		return fmt.Errorf("conversation %s not found", conversationID)
	}
	if state.Status != proto.StatusAwaitingUser {
		return fmt.Errorf("conversation %s is not awaiting user input (status %s)", conversationID, state.Status)
	}

	messages := state.AppendMessage(proto.RoleUser, userMessage)
	next := state.Clone()
	next.Messages = messages
	next.Status = proto.StatusRunning
	next.Seq = state.Seq + 1

	if err := s.store.AppendMessage(conversationID, next.Seq, messages[len(messages)-1]); err != nil {
		s.logger.Error("appending message for conversation %s: %v", conversationID, err)
	}
	if err := s.store.SaveSnapshot(next); err != nil {
		return fmt.Errorf("saving resumed snapshot: %w", err)
	}

	select {
	case s.work <- workItem{state: next}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get returns a conversation's latest persisted snapshot.
func (s *Supervisor) Get(ctx context.Context, conversationID string) (*proto.WorkflowState, error) {
	state, err := s.store.LoadSnapshot(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("loading conversation %s: %w", conversationID, err)
	}
	if state == nil {
		return nil, fmt.Errorf("conversation %s not found", conversationID)
	}
	return state, nil
}

// Cancel marks a conversation cancelled; the running worker observes this
// at the next transition boundary and stops, per spec's cancellation
// contract.
func (s *Supervisor) Cancel(conversationID string) {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	s.cancelled[conversationID] = true
}

func (s *Supervisor) isCancelled(conversationID string) bool {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	return s.cancelled[conversationID]
}

// process drives one conversation's state machine one step at a time,
// snapshotting state and publishing a stream event after every
// transition (spec: "snapshot-write-then-event-publish is the required
// order; readers that see an event may assume the snapshot is durable").
func (s *Supervisor) process(ctx context.Context, state *proto.WorkflowState) {
	lock := s.lockFor(state.ConversationID)
	lock.Lock()
	defer lock.Unlock()

	started := time.Now()
	s.hub.Publish(stream.NewEvent(state.ConversationID, stream.StatusConnected, "resuming conversation"))

	for {
		if s.isCancelled(state.ConversationID) {
			decision := &proto.AgentDecision{Kind: proto.DecisionError, Message: "cancelled"}
			state = state.Transition(state.CurrentAgent, decision, func(n *proto.WorkflowState) { n.Status = proto.StatusCancelled })
			if err := s.store.SaveSnapshot(state); err != nil {
				s.logger.Error("saving snapshot for conversation %s: %v", state.ConversationID, err)
			}
			break
		}

		prevMessages := len(state.Messages)
		next, decision := agentrt.Step(ctx, s.registry, state, s.services)
		state = next

		for _, msg := range state.Messages[prevMessages:] {
			if err := s.store.AppendMessage(state.ConversationID, state.Seq, msg); err != nil {
				s.logger.Error("appending audit message for conversation %s: %v", state.ConversationID, err)
			}
		}
		if err := s.store.SaveSnapshot(state); err != nil {
			s.logger.Error("saving snapshot for conversation %s: %v", state.ConversationID, err)
		}
		s.hub.Publish(stream.NewEvent(state.ConversationID, stream.StatusRunning, decision.Message))

		if decision.Kind != proto.DecisionContinue || decision.NextAgent == "" {
			break
		}

		advanced := state.Clone()
		advanced.CurrentAgent = decision.NextAgent
		state = advanced
	}

	s.finish(state, started)
}

func (s *Supervisor) finish(state *proto.WorkflowState, started time.Time) {
	duration := time.Since(started)
	if s.metrics != nil {
		s.metrics.ObserveConversation(string(state.Status), duration)
	}

	switch state.Status {
	case proto.StatusCompleted:
		s.hub.Complete(state.ConversationID, "conversation complete")
	case proto.StatusFailed, proto.StatusCancelled:
		msg := "conversation failed"
		if state.LastAgentDecision != nil && state.LastAgentDecision.Message != "" {
			msg = state.LastAgentDecision.Message
		}
		s.hub.Fail(state.ConversationID, msg)
	case proto.StatusAwaitingUser:
		s.hub.Publish(stream.NewEvent(state.ConversationID, stream.StatusPartial, "awaiting user input"))
	}

	s.locksMu.Lock()
	delete(s.cancelled, state.ConversationID)
	s.locksMu.Unlock()
}
