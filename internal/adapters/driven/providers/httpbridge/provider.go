package httpbridge

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/xiaohuanlin/algoassistant-sync/internal/core/domain"
	"github.com/xiaohuanlin/algoassistant-sync/internal/core/ports/driven"
)

var (
	_ driven.ChannelProvider  = (*ChannelProvider)(nil)
	_ driven.SubmissionSource = (*SubmissionSource)(nil)
)

// syncRequest is the body of POST /sync/{channel}
type syncRequest struct {
	Record   *domain.Record    `json:"record"`
	Settings map[string]string `json:"settings,omitempty"`
}

// ChannelProvider forwards one channel's per-record sync to the bridge
type ChannelProvider struct {
	client   *client
	channel  domain.Channel
	settings map[string]string
}

// Channel returns the channel this provider writes
func (p *ChannelProvider) Channel() domain.Channel {
	return p.channel
}

// SyncOne posts the record and decodes the channel result
func (p *ChannelProvider) SyncOne(ctx context.Context, record *domain.Record) (*domain.ChannelResult, error) {
	var result domain.ChannelResult
	req := syncRequest{Record: record, Settings: p.settings}
	if err := p.client.do(ctx, "POST", "/sync/"+string(p.channel), req, &result); err != nil {
		return nil, err
	}
	if err := result.Validate(p.channel); err != nil {
		return nil, err
	}
	return &result, nil
}

// submissionPage is the body returned by GET /submissions
type submissionPage struct {
	Total       int                  `json:"total"`
	Submissions []*domain.Submission `json:"submissions"`
}

// SubmissionSource lists OJ submissions through the bridge
type SubmissionSource struct {
	client *client
}

// TotalSubmissions returns the total the OJ reports
func (s *SubmissionSource) TotalSubmissions(ctx context.Context) (int, error) {
	var page submissionPage
	if err := s.client.do(ctx, "GET", "/submissions?limit=0", nil, &page); err != nil {
		return 0, err
	}
	if page.Total < 0 {
		return 0, fmt.Errorf("%w: negative submission total %d", domain.ErrProviderError, page.Total)
	}
	return page.Total, nil
}

// ListSubmissions returns one page of submissions starting at offset
func (s *SubmissionSource) ListSubmissions(ctx context.Context, offset, limit int) ([]*domain.Submission, error) {
	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))

	var page submissionPage
	if err := s.client.do(ctx, "GET", "/submissions?"+q.Encode(), nil, &page); err != nil {
		return nil, err
	}
	if len(page.Submissions) > limit {
		page.Submissions = page.Submissions[:limit]
	}
	return page.Submissions, nil
}
