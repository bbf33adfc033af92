// Package history records completed generations in Elasticsearch.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"campaign-writer/internal/common/logger"
	"campaign-writer/internal/models"
)

// Record is the indexed form of one generation.
type Record struct {
	RunID          string    `json:"run_id"`
	RequestID      string    `json:"request_id,omitempty"`
	TenantID       string    `json:"tenant_id,omitempty"`
	TaskKind       string    `json:"task_kind"`
	Objective      string    `json:"objective"`
	Status         string    `json:"status"`
	Strategy       string    `json:"strategy"`
	ModelsUsed     []string  `json:"models_used"`
	Variants       []string  `json:"variants"`
	Confidence     float64   `json:"confidence"`
	Temperature    float64   `json:"temperature"`
	TokensUsed     int       `json:"tokens_used"`
	CacheHit       bool      `json:"cache_hit"`
	LatencyMs      int64     `json:"latency_ms"`
	Warnings       []string  `json:"warnings,omitempty"`
	GateStages     []string  `json:"gate_stages"`
	AwaitingReview bool      `json:"awaiting_review"`
	ReviewDecision string    `json:"review_decision,omitempty"`
	Timestamp      time.Time `json:"@timestamp"`
}

// NewRecord flattens a request and its result into a history record.
func NewRecord(req models.GenerationRequest, result *models.GenerationResult, now time.Time) Record {
	rec := Record{
		RunID:          result.RunID,
		RequestID:      req.RequestID,
		TenantID:       req.TenantID,
		TaskKind:       string(req.TaskKind),
		Objective:      req.Objective,
		Status:         string(result.Status),
		Strategy:       string(result.Strategy),
		ModelsUsed:     result.ModelsUsed,
		Confidence:     result.Confidence,
		Temperature:    result.Temperature,
		TokensUsed:     result.TokensUsed(),
		CacheHit:       result.CacheHit,
		LatencyMs:      result.Latency.Milliseconds(),
		Warnings:       result.Warnings,
		AwaitingReview: result.AwaitingApproval,
		Timestamp:      now.UTC(),
	}
	for _, v := range result.Variants {
		rec.Variants = append(rec.Variants, v.Text)
	}
	for _, s := range result.Report.Stages {
		rec.GateStages = append(rec.GateStages, s.Stage+":"+string(s.Status))
	}
	return rec
}

// Indexer writes and queries generation history. A nil client disables it.
type Indexer struct {
	es    *elasticsearch.Client
	index string
	log   logger.Logger
	now   func() time.Time
}

func NewIndexer(es *elasticsearch.Client, index string, log logger.Logger) *Indexer {
	if index == "" {
		index = "generation-history"
	}
	return &Indexer{es: es, index: index, log: logger.Component(log, "history"), now: time.Now}
}

// Enabled reports whether an Elasticsearch client is configured.
func (i *Indexer) Enabled() bool { return i != nil && i.es != nil }

// Index stores the result under its run ID, replacing any earlier record.
func (i *Indexer) Index(ctx context.Context, req models.GenerationRequest, result *models.GenerationResult) error {
	if !i.Enabled() || result == nil {
		return nil
	}
	return i.put(ctx, NewRecord(req, result, i.now()))
}

// MarkReviewed indexes the reviewed result with the decision attached.
func (i *Indexer) MarkReviewed(ctx context.Context, pending *models.PendingReview, decision models.ReviewDecision) error {
	if !i.Enabled() || pending == nil || pending.Result == nil {
		return nil
	}
	rec := NewRecord(pending.Request, pending.Result, i.now())
	rec.ReviewDecision = string(decision)
	return i.put(ctx, rec)
}

func (i *Indexer) put(ctx context.Context, rec Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      i.index,
		DocumentID: rec.RunID,
		Body:       strings.NewReader(string(body)),
	}
	res, err := req.Do(ctx, i.es)
	if err != nil {
		return fmt.Errorf("index generation %s: %w", rec.RunID, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index generation %s: %s", rec.RunID, res.String())
	}
	i.log.Debug("Generation indexed", map[string]interface{}{"runId": rec.RunID, "index": i.index})
	return nil
}

// Recent returns the newest records for a tenant, most recent first.
func (i *Indexer) Recent(ctx context.Context, tenantID string, size int) ([]Record, error) {
	if !i.Enabled() {
		return []Record{}, nil
	}
	if size <= 0 || size > 100 {
		size = 20
	}

	mustClauses := []interface{}{}
	if tenantID != "" {
		mustClauses = append(mustClauses, map[string]interface{}{
			"term": map[string]interface{}{"tenant_id": tenantID},
		})
	}
	queryBody := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{"must": mustClauses},
		},
		"sort": []interface{}{
			map[string]interface{}{"@timestamp": map[string]interface{}{"order": "desc"}},
		},
	}

	body, _ := json.Marshal(queryBody)
	req := esapi.SearchRequest{
		Index: []string{i.index},
		Body:  strings.NewReader(string(body)),
		Size:  &size,
	}

	res, err := req.Do(ctx, i.es)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search failed: %s", res.String())
	}

	var r struct {
		Hits struct {
			Hits []struct {
				Source Record `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(r.Hits.Hits))
	for _, h := range r.Hits.Hits {
		records = append(records, h.Source)
	}
	return records, nil
}
