// Package chain records settled gameplay events on an external ledger.
// Submissions go through one FIFO worker with a fixed inter-call delay,
// fully decoupled from the tick loop: a slow or absent endpoint never
// stalls the simulation. Without an endpoint configured, every event
// still lands in the local transactions table.
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Tx kinds.
const (
	TxRegister   = "REGISTER_AGENT"
	TxClaim      = "CLAIM_LAND"
	TxTrade      = "TRADE"
	TxBuild      = "BUILD"
	TxSettlement = "SETTLEMENT"
)

// Tx is one ledger submission.
type Tx struct {
	ID        string    `json:"id" db:"id"`
	Kind      string    `json:"kind" db:"kind"`
	AgentID   string    `json:"agent_id" db:"agent_id"`
	Detail    string    `json:"detail" db:"detail"`
	Tick      uint64    `json:"tick" db:"tick"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	Status    string    `json:"status" db:"status"`
}

// Stats is the queue health surfaced in world snapshots.
type Stats struct {
	QueueDepth int `json:"queue_depth"`
	Submitted  int `json:"submitted"`
	Failed     int `json:"failed"`
	Dropped    int `json:"dropped"`
}

// queueCap bounds the backlog. Overflow drops the oldest-style enqueue
// (the local record still happens) rather than blocking a tick.
const queueCap = 512

// Worker serializes ledger submissions.
type Worker struct {
	queue chan Tx
	delay time.Duration

	rpcURL     string
	httpClient *http.Client

	// record persists every tx locally regardless of remote outcome.
	record func(Tx)

	mu         sync.Mutex
	stats      Stats
	claimCount int
	batchSize  int
}

// New creates a worker. rpcURL may be empty for local-record mode;
// record may be nil when persistence is disabled.
func New(rpcURL string, delay time.Duration, claimBatchSize int, record func(Tx)) *Worker {
	if delay <= 0 {
		delay = 200 * time.Millisecond
	}
	if claimBatchSize <= 0 {
		claimBatchSize = 5
	}
	return &Worker{
		queue:      make(chan Tx, queueCap),
		delay:      delay,
		rpcURL:     rpcURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		record:     record,
		batchSize:  claimBatchSize,
	}
}

// Run drains the queue until the context ends. Call in its own
// goroutine.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case tx := <-w.queue:
			w.submit(tx)
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.delay):
			}
		}
	}
}

func (w *Worker) submit(tx Tx) {
	tx.Status = "confirmed"
	if w.rpcURL != "" {
		if err := w.post(tx); err != nil {
			tx.Status = "failed"
			w.mu.Lock()
			w.stats.Failed++
			w.mu.Unlock()
			slog.Warn("ledger submit failed", "kind", tx.Kind, "error", err)
		}
	}
	if tx.Status == "confirmed" {
		w.mu.Lock()
		w.stats.Submitted++
		w.mu.Unlock()
	}
	if w.record != nil {
		w.record(tx)
	}
}

func (w *Worker) post(tx Tx) error {
	body, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("marshal tx: %w", err)
	}
	resp, err := w.httpClient.Post(w.rpcURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("ledger status %d", resp.StatusCode)
	}
	return nil
}

// enqueue never blocks; a full queue counts a drop and moves on.
func (w *Worker) enqueue(kind, agentID, detail string, tick uint64) {
	tx := Tx{
		ID:        uuid.NewString(),
		Kind:      kind,
		AgentID:   agentID,
		Detail:    detail,
		Tick:      tick,
		CreatedAt: time.Now().UTC(),
		Status:    "pending",
	}
	select {
	case w.queue <- tx:
	default:
		w.mu.Lock()
		w.stats.Dropped++
		w.mu.Unlock()
		slog.Warn("ledger queue full, dropping tx", "kind", kind)
	}
}

// RecordRegistration notes a new agent deployment.
func (w *Worker) RecordRegistration(agentID, wallet string, tick uint64) {
	w.enqueue(TxRegister, agentID, fmt.Sprintf(`{"wallet":%q}`, wallet), tick)
}

// RecordClaim batches claims: every Nth claim submits the batch count.
// Individual claims still get a local record through the batch detail.
func (w *Worker) RecordClaim(agentID string, x, y int, tick uint64) {
	w.mu.Lock()
	w.claimCount++
	flush := w.claimCount%w.batchSize == 0
	count := w.claimCount
	w.mu.Unlock()
	if flush {
		w.enqueue(TxClaim, agentID, fmt.Sprintf(`{"x":%d,"y":%d,"batch_total":%d}`, x, y, count), tick)
	}
}

// RecordTrade notes a settled trade.
func (w *Worker) RecordTrade(fromID, toID string, value int, tick uint64) {
	w.enqueue(TxTrade, fromID, fmt.Sprintf(`{"to":%q,"value":%d}`, toID, value), tick)
}

// RecordBuild notes a completed structure.
func (w *Worker) RecordBuild(agentID string, building string, tick uint64) {
	w.enqueue(TxBuild, agentID, fmt.Sprintf(`{"building":%q}`, building), tick)
}

// RecordSettlement flushes a balance snapshot, run on its own slow
// interval by the scheduler.
func (w *Worker) RecordSettlement(balances map[string]int, tick uint64) {
	detail, err := json.Marshal(balances)
	if err != nil {
		return
	}
	w.enqueue(TxSettlement, "", string(detail), tick)
}

// StatsSnapshot returns current queue health.
func (w *Worker) StatsSnapshot() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	st := w.stats
	st.QueueDepth = len(w.queue)
	return st
}
