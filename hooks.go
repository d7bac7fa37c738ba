package aliascache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// The cache calls them on hot paths.
type Hooks interface {
	// An alias entry was deleted by the cache on read.
	// reason ∈ {"corrupt", "gen_mismatch", "value_decode"}
	SelfHeal(storageKey, reason string)

	// A cached query result was dropped.
	// reason ∈ {"decode_error", "stale_member"}
	QueryRejected(namespace string, members int, reason string)

	// Provider returned ok=false on Set (backpressure/eviction).
	ProviderSetRejected(storageKey string)

	// A populate write was skipped because the alias was cleaned after the
	// generation snapshot was taken.
	StaleWriteSkipped(storageKey string)

	// GenStore errors (snapshot or bump).
	// count is number of keys involved (1 for Snapshot/Bump, N for SnapshotMany).
	GenSnapshotError(count int, err error)
	GenBumpError(storageKey string, err error)

	// Both gen bump and delete failed during Clean (likely backend outage).
	CleanOutage(id ID, bumpErr, delErr error)

	// The backing store failed. op ∈ {"fetch", "resolve"}
	StoreError(op string, count int, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) SelfHeal(string, string)           {}
func (NopHooks) QueryRejected(string, int, string) {}
func (NopHooks) ProviderSetRejected(string)        {}
func (NopHooks) StaleWriteSkipped(string)          {}
func (NopHooks) GenSnapshotError(int, error)       {}
func (NopHooks) GenBumpError(string, error)        {}
func (NopHooks) CleanOutage(ID, error, error)      {}
func (NopHooks) StoreError(string, int, error)     {}
