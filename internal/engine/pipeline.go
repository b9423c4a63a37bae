package engine

import (
	"context"
	"encoding/json"
	"time"

	"github.com/r3e-network/intent-solver/internal/domain/chain"
	domainintent "github.com/r3e-network/intent-solver/internal/domain/intent"
	domainorder "github.com/r3e-network/intent-solver/internal/domain/order"
	"github.com/r3e-network/intent-solver/internal/solvererr"
	"github.com/r3e-network/intent-solver/internal/storage"
)

// onIntent implements §4.7.1.
func (e *Engine) onIntent(ctx context.Context, in domainintent.Intent) {
	ord, err := e.orders.ValidateIntent(ctx, &in)
	if err != nil {
		e.log.WithField("intent_id", in.ID).WithError(err).Warn("intent failed validation")
		reason := err.Error()
		if se, ok := err.(*solvererr.Error); ok {
			reason = se.Error()
		}
		_ = e.setStatus(ctx, in.ID, domainorder.StatusSkipped, reason)
		return
	}

	exists, err := storage.Exists(ctx, e.store, storage.NamespaceOrders, ord.ID)
	if err != nil {
		e.log.WithField("order_id", ord.ID).WithError(err).Error("storage exists check failed")
		return
	}
	if exists {
		// Replay of an already-seen intent id; idempotent no-op (I4).
		e.log.WithField("order_id", ord.ID).Info("duplicate intent, ignoring")
		return
	}

	if err := storage.SetJSON(ctx, e.store, storage.NamespaceOrders, ord.ID, ord, 0); err != nil {
		e.log.WithField("order_id", ord.ID).WithError(err).Error("failed to persist order")
		return
	}
	if err := e.setStatus(ctx, ord.ID, domainorder.StatusPending, ""); err != nil {
		e.log.WithField("order_id", ord.ID).WithError(err).Error("failed to persist initial status")
		return
	}

	e.considerExecution(ctx, ord)
}

// considerExecution implements §4.7.1 steps 4-5: build an ExecutionContext
// and consult the strategy.
func (e *Engine) considerExecution(ctx context.Context, ord *domainorder.Order) {
	gasPrice, err := e.delivery.CurrentGasPrice(ctx, ord.DestChain)
	if err != nil {
		e.log.WithField("order_id", ord.ID).WithError(err).Warn("failed to query destination gas price; deferring")
		time.AfterFunc(time.Minute, func() { e.emit(retryOrderEvent{orderID: ord.ID}) })
		return
	}

	ec := &domainorder.ExecutionContext{
		DestGasPrice:   gasPrice,
		Now:            time.Now(),
		SolverBalances: map[string]string{},
	}

	decision, err := e.orders.ShouldExecute(ctx, ord, ec)
	if err != nil {
		e.log.WithField("order_id", ord.ID).WithError(err).Error("strategy evaluation failed")
		_ = e.setStatus(ctx, ord.ID, domainorder.StatusFailed, err.Error())
		return
	}

	switch decision.Kind {
	case domainorder.DecisionSkip:
		_ = e.setStatus(ctx, ord.ID, domainorder.StatusSkipped, decision.Reason)
	case domainorder.DecisionDefer:
		after := decision.After
		if after <= 0 {
			after = time.Minute
		}
		orderID := ord.ID
		time.AfterFunc(after, func() { e.emit(retryOrderEvent{orderID: orderID}) })
	case domainorder.DecisionExecute:
		if err := e.setStatus(ctx, ord.ID, domainorder.StatusExecuting, ""); err != nil {
			e.log.WithField("order_id", ord.ID).WithError(err).Error("failed to persist executing status")
			return
		}
		e.startFill(ctx, ord, decision.Params)
	}
}

// onEvent implements §4.7.2.
func (e *Engine) onEvent(ctx context.Context, ev event) {
	switch v := ev.(type) {
	case retryOrderEvent:
		ord, err := e.loadOrder(ctx, v.orderID)
		if err != nil {
			e.log.WithField("order_id", v.orderID).WithError(err).Error("retry: failed to reload order")
			return
		}
		e.considerExecution(ctx, ord)

	case fillConfirmedEvent:
		if err := e.setStatus(ctx, v.orderID, domainorder.StatusFilled, ""); err != nil {
			e.log.WithField("order_id", v.orderID).WithError(err).Error("failed to persist filled status")
			return
		}
		e.startSettlementMonitor(ctx, v.orderID, v.receipt.Hash)

	case proofReadyEvent:
		if err := e.saveFillProof(ctx, v.orderID, v.proof); err != nil {
			e.log.WithField("order_id", v.orderID).WithError(err).Error("failed to persist fill proof")
			return
		}
		e.onProofReady(ctx, v.orderID, v.proof)

	case claimReadyRecheckEvent:
		proof, err := e.loadFillProof(ctx, v.orderID)
		if err != nil {
			e.log.WithField("order_id", v.orderID).WithError(err).Error("recheck: failed to reload fill proof")
			return
		}
		e.onProofReady(ctx, v.orderID, proof)

	case claimConfirmedEvent:
		if err := e.setStatus(ctx, v.orderID, domainorder.StatusCompleted, ""); err != nil {
			e.log.WithField("order_id", v.orderID).WithError(err).Error("failed to persist completed status")
		}

	case transactionFailedEvent:
		e.log.WithField("order_id", v.orderID).WithField("where", v.where).Warn("transaction failed: " + v.reason)
		_ = e.setStatus(ctx, v.orderID, domainorder.StatusFailed, v.where+": "+v.reason)
	}
}

// startFill implements §4.7.3.
func (e *Engine) startFill(ctx context.Context, ord *domainorder.Order, params domainorder.ExecutionParams) {
	tx, err := e.orders.GenerateFillTransaction(ctx, ord, params)
	if err != nil {
		e.log.WithField("order_id", ord.ID).WithError(err).Error("failed to build fill transaction")
		_ = e.setStatus(ctx, ord.ID, domainorder.StatusFailed, "build fill tx: "+err.Error())
		return
	}

	hash, err := e.delivery.Deliver(ctx, tx)
	if err != nil {
		e.log.WithField("order_id", ord.ID).WithError(err).Error("fill submission failed")
		_ = e.setStatus(ctx, ord.ID, domainorder.StatusFailed, "fill submit: "+err.Error())
		return
	}
	if err := e.saveFillHash(ctx, ord.ID, hash); err != nil {
		e.log.WithField("order_id", ord.ID).WithError(err).Error("failed to persist fill hash")
		return
	}

	orderID, destChain, confirmations, timeout := ord.ID, ord.DestChain, e.minConfirmations, e.fillTimeout
	e.spawn(ctx, orderID, func(taskCtx context.Context) {
		deadlineCtx, cancel := context.WithTimeout(taskCtx, timeout)
		defer cancel()
		receipt, err := e.delivery.Confirm(deadlineCtx, destChain, hash, confirmations)
		if err != nil {
			reason := err.Error()
			if solvererr.KindOf(err) == solvererr.KindCancellation && deadlineCtx.Err() == context.DeadlineExceeded {
				reason = "fill confirmation timeout"
			}
			e.emit(transactionFailedEvent{orderID: orderID, where: "fill", reason: reason})
			return
		}
		e.emit(fillConfirmedEvent{orderID: orderID, receipt: receipt})
	})
}

// startSettlementMonitor implements the settlement-monitor half of §4.7.2's
// FillConfirmed handling.
func (e *Engine) startSettlementMonitor(ctx context.Context, orderID string, fillHash chain.TransactionHash) {
	ord, err := e.loadOrder(ctx, orderID)
	if err != nil {
		e.log.WithField("order_id", orderID).WithError(err).Error("failed to reload order for settlement monitor")
		return
	}

	timeout := e.settlementTimeout
	e.spawn(ctx, orderID, func(taskCtx context.Context) {
		deadlineCtx, cancel := context.WithTimeout(taskCtx, timeout)
		defer cancel()
		proof, err := e.settlement.MonitorFill(deadlineCtx, ord, fillHash)
		if err != nil {
			reason := err.Error()
			if deadlineCtx.Err() == context.DeadlineExceeded {
				reason = "settlement monitoring timeout"
			}
			e.emit(transactionFailedEvent{orderID: orderID, where: "settlement", reason: reason})
			return
		}
		e.emit(proofReadyEvent{orderID: orderID, proof: proof})
	})
}

// onProofReady re-checks claim readiness for a just-attested (or
// just-resumed) fill proof and either starts the claim or schedules a
// recheck, shared by proofReadyEvent, claimReadyRecheckEvent, and
// resume's Filled-with-persisted-proof path.
func (e *Engine) onProofReady(ctx context.Context, orderID string, proof *chain.FillProof) {
	ord, err := e.loadOrder(ctx, orderID)
	if err != nil {
		e.log.WithField("order_id", orderID).WithError(err).Error("failed to reload order for claim check")
		return
	}
	canClaim, err := e.settlement.CanClaim(ctx, ord, proof)
	if err != nil {
		e.log.WithField("order_id", orderID).WithError(err).Error("can_claim check failed")
		return
	}
	if !canClaim {
		id := orderID
		time.AfterFunc(30*time.Second, func() { e.emit(claimReadyRecheckEvent{orderID: id}) })
		return
	}
	e.startClaim(ctx, ord, proof)
}

// startClaim implements §4.7.4.
func (e *Engine) startClaim(ctx context.Context, ord *domainorder.Order, proof *chain.FillProof) {
	tx, err := e.orders.GenerateClaimTransaction(ctx, ord, proof)
	if err != nil {
		e.log.WithField("order_id", ord.ID).WithError(err).Error("failed to build claim transaction")
		_ = e.setStatus(ctx, ord.ID, domainorder.StatusFailed, "build claim tx: "+err.Error())
		return
	}

	if err := e.setStatus(ctx, ord.ID, domainorder.StatusClaiming, ""); err != nil {
		e.log.WithField("order_id", ord.ID).WithError(err).Error("failed to persist claiming status")
		return
	}

	hash, err := e.delivery.Deliver(ctx, tx)
	if err != nil {
		e.log.WithField("order_id", ord.ID).WithError(err).Error("claim submission failed")
		_ = e.setStatus(ctx, ord.ID, domainorder.StatusFailed, "claim submit: "+err.Error())
		return
	}
	if err := e.saveClaimHash(ctx, ord.ID, hash); err != nil {
		e.log.WithField("order_id", ord.ID).WithError(err).Error("failed to persist claim hash")
		return
	}

	orderID, originChain, confirmations, timeout := ord.ID, ord.OriginChain, e.minConfirmations, e.claimTimeout
	e.spawn(ctx, orderID, func(taskCtx context.Context) {
		deadlineCtx, cancel := context.WithTimeout(taskCtx, timeout)
		defer cancel()
		receipt, err := e.delivery.Confirm(deadlineCtx, originChain, hash, confirmations)
		if err != nil {
			reason := err.Error()
			if deadlineCtx.Err() == context.DeadlineExceeded {
				reason = "claim confirmation timeout"
			}
			e.emit(transactionFailedEvent{orderID: orderID, where: "claim", reason: reason})
			return
		}
		e.emit(claimConfirmedEvent{orderID: orderID, receipt: receipt})
	})
}

// resume implements §7's restart recovery: scan the status namespace and
// re-enter the corresponding path for every order left in a non-terminal
// status, using already-persisted fills/fill_proofs rather than resubmitting.
func (e *Engine) resume(ctx context.Context) error {
	entries, err := e.store.ScanStatus(ctx)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		var rec domainorder.StatusRecord
		if err := json.Unmarshal(entry.Value, &rec); err != nil {
			e.log.WithField("order_id", entry.OrderID).WithError(err).Warn("resume: failed to decode status record")
			continue
		}
		if domainorder.IsTerminal(rec.Status) {
			continue
		}

		ord, err := e.loadOrder(ctx, entry.OrderID)
		if err != nil {
			e.log.WithField("order_id", entry.OrderID).WithError(err).Warn("resume: failed to load order")
			continue
		}

		switch rec.Status {
		case domainorder.StatusPending:
			e.considerExecution(ctx, ord)
		case domainorder.StatusExecuting:
			hash, err := e.loadFillHash(ctx, entry.OrderID)
			if err != nil {
				// No fill submitted yet before the crash; re-enter from the
				// top of the fill path via a fresh execution decision.
				e.considerExecution(ctx, ord)
				continue
			}
			e.startSettlementMonitorFromHash(ctx, ord, hash)
		case domainorder.StatusFilled:
			if proof, err := e.loadFillProof(ctx, entry.OrderID); err == nil {
				// A fill proof was already persisted before the crash
				// (§8 scenario 5): resume straight into the claim
				// path instead of re-polling the settlement oracle.
				e.onProofReady(ctx, entry.OrderID, proof)
				continue
			}
			hash, err := e.loadFillHash(ctx, entry.OrderID)
			if err != nil {
				e.log.WithField("order_id", entry.OrderID).WithError(err).Warn("resume: missing fill hash for filled order")
				continue
			}
			e.startSettlementMonitor(ctx, entry.OrderID, hash)
		case domainorder.StatusClaiming:
			if hash, err := e.loadClaimHash(ctx, entry.OrderID); err == nil {
				// A claim was already submitted before the crash;
				// resume confirmation instead of submitting a second
				// claim transaction.
				e.resumeClaimConfirmation(ctx, ord, hash)
				continue
			}
			proof, err := e.loadFillProof(ctx, entry.OrderID)
			if err != nil {
				e.log.WithField("order_id", entry.OrderID).WithError(err).Warn("resume: missing fill proof for claiming order")
				continue
			}
			e.startClaim(ctx, ord, proof)
		}
	}
	return nil
}

// startSettlementMonitorFromHash resumes waiting for fill confirmation
// before the settlement monitor would normally start, since the crash
// happened mid-fill-confirmation (status still Executing but a hash was
// already submitted).
func (e *Engine) startSettlementMonitorFromHash(ctx context.Context, ord *domainorder.Order, hash chain.TransactionHash) {
	orderID, destChain, confirmations, timeout := ord.ID, ord.DestChain, e.minConfirmations, e.fillTimeout
	e.spawn(ctx, orderID, func(taskCtx context.Context) {
		deadlineCtx, cancel := context.WithTimeout(taskCtx, timeout)
		defer cancel()
		receipt, err := e.delivery.Confirm(deadlineCtx, destChain, hash, confirmations)
		if err != nil {
			reason := err.Error()
			if deadlineCtx.Err() == context.DeadlineExceeded {
				reason = "fill confirmation timeout"
			}
			e.emit(transactionFailedEvent{orderID: orderID, where: "fill", reason: reason})
			return
		}
		e.emit(fillConfirmedEvent{orderID: orderID, receipt: receipt})
	})
}

// resumeClaimConfirmation resumes waiting for claim confirmation without
// resubmitting the claim transaction, since the crash happened after a
// claim hash was already persisted (status still Claiming but a
// transaction was already submitted).
func (e *Engine) resumeClaimConfirmation(ctx context.Context, ord *domainorder.Order, hash chain.TransactionHash) {
	orderID, originChain, confirmations, timeout := ord.ID, ord.OriginChain, e.minConfirmations, e.claimTimeout
	e.spawn(ctx, orderID, func(taskCtx context.Context) {
		deadlineCtx, cancel := context.WithTimeout(taskCtx, timeout)
		defer cancel()
		receipt, err := e.delivery.Confirm(deadlineCtx, originChain, hash, confirmations)
		if err != nil {
			reason := err.Error()
			if deadlineCtx.Err() == context.DeadlineExceeded {
				reason = "claim confirmation timeout"
			}
			e.emit(transactionFailedEvent{orderID: orderID, where: "claim", reason: reason})
			return
		}
		e.emit(claimConfirmedEvent{orderID: orderID, receipt: receipt})
	})
}

