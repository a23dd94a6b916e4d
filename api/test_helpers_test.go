package api

import (
	"context"

	"github.com/promptarena/promptarena/internal/store"
)

type fakeStore struct {
	SaveRunFunc          func(ctx context.Context, run *store.RunRecord) error
	IngestBatchFunc      func(ctx context.Context, runs []*store.RunRecord, results []*store.ResultRecord) error
	GetRunFunc           func(ctx context.Context, id string) (*store.RunRecord, error)
	ListRunsFunc         func(ctx context.Context, limit int) ([]*store.RunRecord, error)
	GetRunResultsFunc    func(ctx context.Context, runID string) ([]*store.ResultRecord, error)
	GetPromptHistoryFunc func(ctx context.Context, promptName string, limit int) ([]*store.RunRecord, error)
	CloseFunc            func() error
}

func (s *fakeStore) SaveRun(ctx context.Context, run *store.RunRecord) error {
	if s.SaveRunFunc != nil {
		return s.SaveRunFunc(ctx, run)
	}
	return nil
}

func (s *fakeStore) IngestBatch(ctx context.Context, runs []*store.RunRecord, results []*store.ResultRecord) error {
	if s.IngestBatchFunc != nil {
		return s.IngestBatchFunc(ctx, runs, results)
	}
	return nil
}

func (s *fakeStore) GetRun(ctx context.Context, id string) (*store.RunRecord, error) {
	if s.GetRunFunc != nil {
		return s.GetRunFunc(ctx, id)
	}
	return nil, nil
}

func (s *fakeStore) ListRuns(ctx context.Context, limit int) ([]*store.RunRecord, error) {
	if s.ListRunsFunc != nil {
		return s.ListRunsFunc(ctx, limit)
	}
	return nil, nil
}

func (s *fakeStore) GetRunResults(ctx context.Context, runID string) ([]*store.ResultRecord, error) {
	if s.GetRunResultsFunc != nil {
		return s.GetRunResultsFunc(ctx, runID)
	}
	return nil, nil
}

func (s *fakeStore) GetPromptHistory(ctx context.Context, promptName string, limit int) ([]*store.RunRecord, error) {
	if s.GetPromptHistoryFunc != nil {
		return s.GetPromptHistoryFunc(ctx, promptName, limit)
	}
	return nil, nil
}

func (s *fakeStore) Close() error {
	if s.CloseFunc != nil {
		return s.CloseFunc()
	}
	return nil
}
