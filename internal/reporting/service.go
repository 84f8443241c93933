package reporting

import (
	"context"
	"errors"

	"fieldlink/internal/accounts"
	"fieldlink/internal/normalize"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Service aggregates ingested records for tenant dashboards. It reads the
// normalized record store only; it never talks to the vendor.
type Service struct {
	records accounts.RecordStore
}

func NewService(records accounts.RecordStore) *Service { return &Service{records: records} }

func (s *Service) CallsSummary(ctx context.Context, req CallsSummaryRequest) (CallsSummary, error) {
	if req.TenantID == "" {
		return CallsSummary{}, ErrInvalidRequest
	}
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return CallsSummary{}, ErrInvalidRequest
	}
	if s.records == nil {
		return CallsSummary{}, errors.New("reporting: record store not configured")
	}

	rows, err := s.records.ListCalls(ctx, req.TenantID, req.Range.From, req.Range.To)
	if err != nil {
		return CallsSummary{}, err
	}

	out := CallsSummary{TenantID: req.TenantID}
	for _, c := range rows {
		out.TotalCalls++
		out.TotalDurationSeconds += c.DurationSeconds
		if c.RecordingURL != "" {
			out.RecordedCalls++
		}
		switch c.Direction {
		case normalize.DirectionInbound:
			out.InboundCalls++
		case normalize.DirectionOutbound:
			out.OutboundCalls++
		}
		switch c.Status {
		case normalize.CallStatusCompleted:
			out.CompletedCalls++
		case normalize.CallStatusFailed:
			out.FailedCalls++
		case normalize.CallStatusNoAnswer:
			out.NoAnswerCalls++
		case normalize.CallStatusBusy:
			out.BusyCalls++
		case normalize.CallStatusVoicemail:
			out.VoicemailCalls++
		case normalize.CallStatusCanceled:
			out.CanceledCalls++
		}
	}
	if out.TotalCalls > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / out.TotalCalls
	}
	return out, nil
}

func (s *Service) MessagesSummary(ctx context.Context, req MessagesSummaryRequest) (MessagesSummary, error) {
	if req.TenantID == "" {
		return MessagesSummary{}, ErrInvalidRequest
	}
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return MessagesSummary{}, ErrInvalidRequest
	}
	if s.records == nil {
		return MessagesSummary{}, errors.New("reporting: record store not configured")
	}

	rows, err := s.records.ListMessages(ctx, req.TenantID, req.Range.From, req.Range.To)
	if err != nil {
		return MessagesSummary{}, err
	}

	out := MessagesSummary{TenantID: req.TenantID}
	for _, m := range rows {
		out.TotalMessages++
		switch m.Direction {
		case normalize.DirectionInbound:
			out.InboundMessages++
		case normalize.DirectionOutbound:
			out.OutboundMessages++
		}
		if m.Status == normalize.MessageStatusFailed {
			out.FailedMessages++
		}
	}
	return out, nil
}
