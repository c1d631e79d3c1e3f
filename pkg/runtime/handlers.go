package runtime

import (
	"context"
	"sync"

	"github.com/bubblelabai/bubblelab/pkg/domain"
)

// SummaryCollector is an event handler that accumulates the execution
// summary as events flow past: line and bubble counts, warnings and errors,
// and the per-service usage and cost breakdown.
type SummaryCollector struct {
	mu sync.Mutex

	lineCount   int
	bubbleCount int
	errorCount  int
	warnCount   int

	serviceUsage  []domain.ServiceUsageRecord
	costByService map[string]float64
	totalCostUSD  float64
}

func NewSummaryCollector() *SummaryCollector {
	return &SummaryCollector{
		serviceUsage:  []domain.ServiceUsageRecord{},
		costByService: map[string]float64{},
	}
}

func (c *SummaryCollector) HandleEvent(ctx context.Context, event domain.StreamEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch e := event.(type) {
	case *domain.LineEvent:
		c.lineCount++
	case *domain.BubbleExecutionCompleteEvent:
		c.bubbleCount++

		for _, usage := range e.ServiceUsage {
			c.serviceUsage = append(c.serviceUsage, usage)
			c.costByService[usage.Service] += usage.CostUSD
			c.totalCostUSD += usage.CostUSD
		}
	case *domain.WarnEvent:
		c.warnCount++
	case *domain.ErrorEvent, *domain.FatalEvent:
		// Failed bubble actions emit an error event alongside their complete
		// event, so errors are counted here exactly once.
		c.errorCount++
	}

	return nil
}

// BuildSummary snapshots the collected state. Safe to call at any point of
// the run; pre-execution failures yield zero counts.
func (c *SummaryCollector) BuildSummary(durationMS int64) *domain.ExecutionSummary {
	c.mu.Lock()
	defer c.mu.Unlock()

	usage := make([]domain.ServiceUsageRecord, len(c.serviceUsage))
	copy(usage, c.serviceUsage)

	costByService := make(map[string]float64, len(c.costByService))
	for service, cost := range c.costByService {
		costByService[service] = cost
	}

	return &domain.ExecutionSummary{
		DurationMS:           durationMS,
		LineCount:            c.lineCount,
		BubbleExecutionCount: c.bubbleCount,
		ErrorCount:           c.errorCount,
		WarningCount:         c.warnCount,
		TotalCostUSD:         c.totalCostUSD,
		ServiceUsage:         usage,
		CostByService:        costByService,
	}
}

// ServiceUsage returns the accumulated usage rows for post-run accounting.
func (c *SummaryCollector) ServiceUsage() []domain.ServiceUsageRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	usage := make([]domain.ServiceUsageRecord, len(c.serviceUsage))
	copy(usage, c.serviceUsage)

	return usage
}
