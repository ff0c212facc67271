package chain

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kyokan/statechannel/internal/chantypes"
	"github.com/kyokan/statechannel/internal/errs"
	"github.com/kyokan/statechannel/internal/events"
)

// DefaultWriteRetries is the bounded retry count for chain writes
// (spec.md §7: "1 by default for chain writes").
const DefaultWriteRetries = 1

type writeJob struct {
	submit func() (common.Hash, error)
	result chan error
	op     string
	signer common.Address
}

// TxQueue serializes on-chain writes per signer into a single-concurrency
// FIFO, per spec.md §5, to prevent nonce collisions between concurrent
// channel operations sharing a signing key. It is grounded on the
// teacher's Chainsaw poll-loop shape (internal/eth/chainsaw.go): one
// dedicated goroutine per resource, driven by a channel of work items,
// rather than a generic worker pool.
type TxQueue struct {
	bus     *events.Bus
	retries int

	mu      sync.Mutex
	queues  map[common.Address]chan *writeJob
}

func NewTxQueue(bus *events.Bus) *TxQueue {
	return &TxQueue{
		bus:     bus,
		retries: DefaultWriteRetries,
		queues:  make(map[common.Address]chan *writeJob),
	}
}

func (q *TxQueue) queueFor(signer common.Address) chan *writeJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	ch, ok := q.queues[signer]
	if !ok {
		ch = make(chan *writeJob, 64)
		q.queues[signer] = ch
		go q.run(signer, ch)
	}
	return ch
}

func (q *TxQueue) run(signer common.Address, jobs chan *writeJob) {
	for job := range jobs {
		job.result <- q.submitWithRetry(signer, job)
	}
}

func (q *TxQueue) submitWithRetry(signer common.Address, job *writeJob) error {
	var lastErr error
	for attempt := 0; attempt <= q.retries; attempt++ {
		hash, err := job.submit()
		if err == nil {
			q.bus.Publish(events.Event{
				Kind:      events.TransactionSubmitted,
				TxHash:    hash,
				Signer:    signer,
				Operation: job.op,
			})
			return nil
		}
		lastErr = err
		if !errs.Is(err, errs.Transient) {
			break
		}
	}
	q.bus.Publish(events.Event{
		Kind:      events.TransactionFailed,
		Signer:    signer,
		Operation: job.op,
		Err:       lastErr,
	})
	return errs.Wrap(errs.Transient, map[string]interface{}{"op": job.op, "signer": signer.Hex()}, lastErr)
}

// enqueue submits fn under signer's FIFO and blocks until the job has been
// dequeued and attempted (not until mined — mining is observed
// asynchronously via the event bus and persisted through
// store.Transactions).
func (q *TxQueue) enqueue(signer common.Address, op string, fn func() (common.Hash, error)) error {
	job := &writeJob{submit: fn, result: make(chan error, 1), op: op, signer: signer}
	q.queueFor(signer) <- job
	return <-job.result
}

// MarkMined and MarkFailed are called by whatever observes transaction
// receipts (a block-header subscription or polling loop, outside
// TxQueue's scope) to publish the remaining lifecycle events.
func (q *TxQueue) MarkMined(signer common.Address, txHash common.Hash, gasUsed *big.Int) {
	q.bus.Publish(events.Event{
		Kind:    events.TransactionMined,
		TxHash:  txHash,
		Signer:  signer,
		GasUsed: gasUsed,
	})
}

func (q *TxQueue) MarkFailed(signer common.Address, txHash common.Hash, err error) {
	q.bus.Publish(events.Event{
		Kind:   events.TransactionFailed,
		TxHash: txHash,
		Signer: signer,
		Err:    err,
	})
}

// QueuedWriter adapts a Writer so every write goes through the signer's
// FIFO queue instead of being submitted directly.
type QueuedWriter struct {
	inner Writer
	queue *TxQueue
}

func NewQueuedWriter(inner Writer, queue *TxQueue) *QueuedWriter {
	return &QueuedWriter{inner: inner, queue: queue}
}

func (w *QueuedWriter) Dispute(channel common.Address, state *chantypes.ChannelState, sig []byte) (common.Hash, error) {
	var hash common.Hash
	err := w.queue.enqueue(state.Alice, "dispute", func() (common.Hash, error) {
		var err error
		hash, err = w.inner.Dispute(channel, state, sig)
		return hash, err
	})
	return hash, err
}

func (w *QueuedWriter) Deploy(channel common.Address, alice, bob common.Address) (common.Hash, error) {
	var hash common.Hash
	err := w.queue.enqueue(alice, "deploy", func() (common.Hash, error) {
		var err error
		hash, err = w.inner.Deploy(channel, alice, bob)
		return hash, err
	})
	return hash, err
}

// Deposit's Writer signature carries no explicit depositor, so it queues
// by channel address instead of signer; a deposit from either
// participant into the same channel is still serialized against itself.
func (w *QueuedWriter) Deposit(channel common.Address, asset common.Address, amount *big.Int) (common.Hash, error) {
	var hash common.Hash
	err := w.queue.enqueue(channel, "deposit", func() (common.Hash, error) {
		var err error
		hash, err = w.inner.Deposit(channel, asset, amount)
		return hash, err
	})
	return hash, err
}

func (w *QueuedWriter) Withdraw(commitment *chantypes.WithdrawCommitment) (common.Hash, error) {
	var hash common.Hash
	err := w.queue.enqueue(commitment.Recipient, "withdraw", func() (common.Hash, error) {
		var err error
		hash, err = w.inner.Withdraw(commitment)
		return hash, err
	})
	return hash, err
}

func (w *QueuedWriter) Approve(spender common.Address, asset common.Address, amount *big.Int) (common.Hash, error) {
	var hash common.Hash
	err := w.queue.enqueue(spender, "approve", func() (common.Hash, error) {
		var err error
		hash, err = w.inner.Approve(spender, asset, amount)
		return hash, err
	})
	return hash, err
}
