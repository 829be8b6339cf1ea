package common

import (
	"sync"
	"time"
)

// PerformanceMetrics defines the interface for performance tracking
type PerformanceMetrics interface {
	GetMetrics() map[string]interface{}
}

// BaseMetrics provides common fields used across different metrics types
type BaseMetrics struct {
	TotalOperations int64
	SuccessfulOps   int64
	FailedOps       int64
	TotalDuration   time.Duration
	LastOperation   time.Time
	Mu              sync.RWMutex
}

// UpdateBaseMetrics updates common metrics fields
func (bm *BaseMetrics) UpdateBaseMetrics(start time.Time, success bool) {
	bm.Mu.Lock()
	defer bm.Mu.Unlock()

	bm.updateLocked(start, success)
}

func (bm *BaseMetrics) updateLocked(start time.Time, success bool) {
	bm.TotalOperations++
	if success {
		bm.SuccessfulOps++
	} else {
		bm.FailedOps++
	}
	bm.TotalDuration += time.Since(start)
	bm.LastOperation = time.Now()
}

// GetBaseMetrics returns the common metrics as a map
func (bm *BaseMetrics) GetBaseMetrics() map[string]interface{} {
	bm.Mu.RLock()
	defer bm.Mu.RUnlock()

	return bm.baseLocked()
}

func (bm *BaseMetrics) baseLocked() map[string]interface{} {
	var avg time.Duration
	if bm.TotalOperations > 0 {
		avg = bm.TotalDuration / time.Duration(bm.TotalOperations)
	}
	return map[string]interface{}{
		"total_operations": bm.TotalOperations,
		"successful_ops":   bm.SuccessfulOps,
		"failed_ops":       bm.FailedOps,
		"average_duration": avg,
		"last_operation":   bm.LastOperation,
	}
}

// PatchMetrics tracks patch applications against a live program
type PatchMetrics struct {
	BaseMetrics
	NamespacesTouched int64
	DefsInvalidated   int64
	LibsExempted      int64
}

// RecordPatch updates patch metrics after an apply/invalidate cycle
func (pm *PatchMetrics) RecordPatch(start time.Time, success bool, namespaces, defs, exempted int) {
	pm.Mu.Lock()
	defer pm.Mu.Unlock()

	pm.updateLocked(start, success)
	if success {
		pm.NamespacesTouched += int64(namespaces)
		pm.DefsInvalidated += int64(defs)
		pm.LibsExempted += int64(exempted)
	}
}

// GetMetrics returns all patch metrics as a map
func (pm *PatchMetrics) GetMetrics() map[string]interface{} {
	pm.Mu.RLock()
	defer pm.Mu.RUnlock()

	metrics := pm.baseLocked()
	metrics["namespaces_touched"] = pm.NamespacesTouched
	metrics["defs_invalidated"] = pm.DefsInvalidated
	metrics["libs_exempted"] = pm.LibsExempted
	return metrics
}
