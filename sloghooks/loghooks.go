// Package sloghooks logs aliascache.Hooks events through log/slog, with
// sampling for the noisy ones and key redaction.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/aliascache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	SelfHealEvery    uint64
	QueryRejectEvery uint64
	StaleWriteEvery  uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	selfHealCtr    atomic.Uint64
	queryRejectCtr atomic.Uint64
	staleWriteCtr  atomic.Uint64
}

var _ aliascache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) SelfHeal(storageKey, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("aliascache.self_heal",
		"key", h.redact(storageKey),
		"reason", reason)
}

func (h *Hooks) QueryRejected(ns string, members int, reason string) {
	if h.l == nil || !sample(h.opts.QueryRejectEvery, &h.queryRejectCtr) {
		return
	}
	h.l.Info("aliascache.query_rejected",
		"ns", ns,
		"members", members,
		"reason", reason)
}

func (h *Hooks) ProviderSetRejected(storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Warn("aliascache.provider_set_rejected", "key", h.redact(storageKey))
}

func (h *Hooks) StaleWriteSkipped(storageKey string) {
	if h.l == nil || !sample(h.opts.StaleWriteEvery, &h.staleWriteCtr) {
		return
	}
	h.l.Debug("aliascache.stale_write_skipped", "key", h.redact(storageKey))
}

func (h *Hooks) GenSnapshotError(count int, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("aliascache.gen_snapshot_error",
		"count", count,
		"err", err)
}

func (h *Hooks) GenBumpError(storageKey string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("aliascache.gen_bump_error",
		"key", h.redact(storageKey),
		"err", err)
}

// CleanOutage logs the alias ID unredacted; IDs are not sensitive.
func (h *Hooks) CleanOutage(id aliascache.ID, bumpErr, delErr error) {
	if h.l == nil {
		return
	}
	h.l.Error("aliascache.clean_outage",
		"id", int64(id),
		"bump_err", bumpErr,
		"del_err", delErr)
}

func (h *Hooks) StoreError(op string, count int, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("aliascache.store_error",
		"op", op,
		"count", count,
		"err", err)
}
