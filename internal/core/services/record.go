package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xiaohuanlin/algoassistant-sync/internal/core/domain"
	"github.com/xiaohuanlin/algoassistant-sync/internal/core/ports/driven"
	"github.com/xiaohuanlin/algoassistant-sync/internal/core/ports/driving"
)

var _ driving.RecordService = (*RecordService)(nil)

// RecordService manages submission records and joins them with their
// owning tasks to produce apparent channel statuses.
type RecordService struct {
	records driven.RecordStore
	tasks   driven.SyncTaskStore
	syncs   driving.SyncTaskService
	logger  *slog.Logger
}

// NewRecordService creates a new RecordService
func NewRecordService(
	records driven.RecordStore,
	tasks driven.SyncTaskStore,
	syncs driving.SyncTaskService,
	logger *slog.Logger,
) *RecordService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordService{
		records: records,
		tasks:   tasks,
		syncs:   syncs,
		logger:  logger,
	}
}

// Create adds a submission record with every channel pending
func (s *RecordService) Create(ctx context.Context, sub domain.Submission) (*domain.Record, error) {
	if err := sub.Validate(); err != nil {
		return nil, err
	}
	record := domain.NewRecord(sub)
	if err := s.records.Create(ctx, record); err != nil {
		return nil, err
	}
	s.logger.Info("record created", "record_id", record.ID, "submission_id", sub.SubmissionID)
	return record, nil
}

// Get returns a record with the apparent status of each channel
func (s *RecordService) Get(ctx context.Context, id int64) (*domain.RecordDetail, error) {
	record, err := s.records.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	details, err := s.withViews(ctx, []*domain.Record{record})
	if err != nil {
		return nil, err
	}
	return details[0], nil
}

// List returns a page of records matching the filter
func (s *RecordService) List(ctx context.Context, filter domain.RecordFilter) (*driving.RecordList, error) {
	for _, ch := range domain.AllChannels() {
		for _, status := range filter.StatusesFor(ch) {
			if !status.IsValid() {
				return nil, fmt.Errorf("%w: unknown %s status %q", domain.ErrValidation, ch, status)
			}
		}
	}
	switch filter.Sort {
	case "":
		filter.Sort = domain.SortDescending
	case domain.SortAscending, domain.SortDescending:
	default:
		return nil, fmt.Errorf("%w: unknown sort %q", domain.ErrValidation, filter.Sort)
	}
	if filter.Limit <= 0 {
		filter.Limit = domain.DefaultPageLimit
	}
	if filter.Limit > domain.MaxPageLimit {
		filter.Limit = domain.MaxPageLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	records, total, err := s.records.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	details, err := s.withViews(ctx, records)
	if err != nil {
		return nil, err
	}
	return &driving.RecordList{Items: details, Total: total}, nil
}

// withViews attaches channel views, querying active owners once per channel
func (s *RecordService) withViews(ctx context.Context, records []*domain.Record) ([]*domain.RecordDetail, error) {
	ids := make([]int64, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}

	owners := make(map[domain.Channel]map[int64]*domain.TaskRef, len(domain.AllChannels()))
	if len(ids) > 0 {
		for _, ch := range domain.AllChannels() {
			o, err := s.tasks.ActiveOwners(ctx, domain.TaskTypesFor(ch), ids)
			if err != nil {
				return nil, fmt.Errorf("load active tasks: %w", err)
			}
			owners[ch] = o
		}
	}

	details := make([]*domain.RecordDetail, len(records))
	for i, r := range records {
		views := make([]domain.ChannelView, 0, len(domain.AllChannels()))
		for _, ch := range domain.AllChannels() {
			views = append(views, domain.NewChannelView(ch, r.ChannelStatus(ch), owners[ch][r.ID]))
		}
		details[i] = &domain.RecordDetail{Record: r, Channels: views}
	}
	return details, nil
}

// Delete removes a record
func (s *RecordService) Delete(ctx context.Context, id int64) error {
	if err := s.records.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("record deleted", "record_id", id)
	return nil
}

// Sync creates a single-record task for the record
func (s *RecordService) Sync(ctx context.Context, id int64, taskType domain.TaskType) (*domain.SyncTask, error) {
	if taskType.IsBatch() {
		return nil, fmt.Errorf("%w: %s cannot target a single record", domain.ErrValidation, taskType)
	}
	if _, err := s.records.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.syncs.Create(ctx, driving.CreateSyncTaskRequest{Type: taskType, RecordIDs: []int64{id}})
}
