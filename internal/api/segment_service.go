package api

import (
	"context"

	"argus/internal/store"
)

// SegmentReader abstracts segment persistence interactions needed for API queries.
type SegmentReader interface {
	ListSegments(ctx context.Context, filter store.SegmentFilter) ([]*store.Segment, error)
	Stats(ctx context.Context) (map[store.Status]int, error)
	SegmentByID(ctx context.Context, id int64) (*store.Segment, error)
}

// SegmentService exposes read-only segment operations returning API DTOs.
type SegmentService struct {
	store SegmentReader
}

// NewSegmentService constructs a SegmentService around the provided reader.
func NewSegmentService(store SegmentReader) *SegmentService {
	if store == nil {
		return nil
	}
	return &SegmentService{store: store}
}

// List returns segments filtered by status.
func (s *SegmentService) List(ctx context.Context, statuses ...store.Status) ([]Segment, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	segments, err := s.store.ListSegments(ctx, store.SegmentFilter{Statuses: statuses})
	if err != nil {
		return nil, err
	}
	return FromSegments(segments), nil
}

// Stats returns queue summary counts keyed by status string.
func (s *SegmentService) Stats(ctx context.Context) (map[string]int, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return MergeQueueStats(stats), nil
}

// Describe fetches a single segment.
func (s *SegmentService) Describe(ctx context.Context, id int64) (*Segment, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	seg, err := s.store.SegmentByID(ctx, id)
	if err != nil || seg == nil {
		return nil, err
	}
	dto := FromSegment(seg)
	return &dto, nil
}
