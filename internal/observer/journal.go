package observer

import (
	"context"
	"fmt"

	"github.com/roach88/userwatch/internal/event"
	"github.com/roach88/userwatch/internal/journal"
)

// JournalSink writes every event it receives to a journal, stamped with the
// next logical sequence number.
type JournalSink struct {
	ctx     context.Context
	journal *journal.Journal
	clock   *journal.Clock
}

// NewJournalSink creates a sink that resumes numbering after the journal's
// last entry. ctx bounds every write the sink makes.
func NewJournalSink(ctx context.Context, j *journal.Journal) (*JournalSink, error) {
	last, err := j.LastSeq(ctx)
	if err != nil {
		return nil, fmt.Errorf("journal sink: %w", err)
	}
	return &JournalSink{ctx: ctx, journal: j, clock: journal.NewClockAt(last)}, nil
}

// Update implements event.Observer.
func (s *JournalSink) Update(_ event.Subject, name string, data any) error {
	payload := renderPayload(data)
	entry := journal.Entry{
		Seq:      s.clock.Next(),
		Name:     name,
		EntityID: entityID(data),
		Payload:  payload,
	}
	if err := s.journal.Append(s.ctx, entry); err != nil {
		return fmt.Errorf("journal sink: %w", err)
	}
	return nil
}
