package vault

import (
	"sync"

	"github.com/rs/zerolog"

	klog "github.com/cinderlabs/cindervault/internal/log"
	"github.com/cinderlabs/cindervault/pkg/types"
)

// Sink receives vault events. Events fire only on successful operations;
// no failed call ever emits one.
type Sink interface {
	// TokenGenerated fires once per token on each successful mint.
	TokenGenerated(token types.Token)
	// AccessLogged fires on each successful redemption.
	AccessLogged(token types.Token, caller types.Address, paid types.Amount)
}

// LogSink writes events to the structured log.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a sink that logs events on the vault component logger.
func NewLogSink() *LogSink {
	return &LogSink{logger: klog.WithComponent("vault")}
}

// TokenGenerated implements Sink.
func (s *LogSink) TokenGenerated(token types.Token) {
	s.logger.Info().
		Stringer("token", token).
		Msg("token generated")
}

// AccessLogged implements Sink.
func (s *LogSink) AccessLogged(token types.Token, caller types.Address, paid types.Amount) {
	s.logger.Info().
		Stringer("token", token).
		Stringer("caller", caller).
		Uint64("paid", uint64(paid)).
		Msg("access logged")
}

// Access pairs the fields of an AccessLogged event.
type Access struct {
	Token  types.Token
	Caller types.Address
	Paid   types.Amount
}

// CollectSink records events in memory. Used in tests.
type CollectSink struct {
	mu        sync.Mutex
	generated []types.Token
	accesses  []Access
}

// TokenGenerated implements Sink.
func (s *CollectSink) TokenGenerated(token types.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generated = append(s.generated, token)
}

// AccessLogged implements Sink.
func (s *CollectSink) AccessLogged(token types.Token, caller types.Address, paid types.Amount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accesses = append(s.accesses, Access{Token: token, Caller: caller, Paid: paid})
}

// Generated returns a copy of the recorded TokenGenerated events.
func (s *CollectSink) Generated() []types.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Token, len(s.generated))
	copy(out, s.generated)
	return out
}

// Accesses returns a copy of the recorded AccessLogged events.
func (s *CollectSink) Accesses() []Access {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Access, len(s.accesses))
	copy(out, s.accesses)
	return out
}
