package consent

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/gunjansamrit/GuardianVault01/internal/vault"
)

// fakeStore is an in-memory Ledger/Registry/Parties/History with the same
// guarded-transition semantics as the SQL store: a transition applies only
// while the record still carries the expected status and count, and every
// applied transition appends its history entry atomically.
type fakeStore struct {
	mu       sync.Mutex
	consents map[uuid.UUID]*Consent
	byTriple map[[3]uuid.UUID]uuid.UUID
	history  []HistoryEntry
	items    map[uuid.UUID]*DataItem
	parties  map[uuid.UUID]*Party
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		consents: make(map[uuid.UUID]*Consent),
		byTriple: make(map[[3]uuid.UUID]uuid.UUID),
		items:    make(map[uuid.UUID]*DataItem),
		parties:  make(map[uuid.UUID]*Party),
	}
}

func (f *fakeStore) FindByTriple(_ context.Context, itemID, seekerID, providerID uuid.UUID) (*Consent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byTriple[[3]uuid.UUID{itemID, seekerID, providerID}]
	if !ok {
		return nil, ErrConsentNotFound
	}
	c := *f.consents[id]
	return &c, nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*Consent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.consents[id]
	if !ok {
		return nil, ErrConsentNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeStore) CreateWithHistory(_ context.Context, c *Consent, changedBy, remarks string) (*Consent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	triple := [3]uuid.UUID{c.ItemID, c.SeekerID, c.ProviderID}
	if _, ok := f.byTriple[triple]; ok {
		return nil, ErrDuplicateConsent
	}
	created := *c
	created.ID = uuid.New()
	created.CreatedAt = time.Now()
	created.UpdatedAt = created.CreatedAt
	f.consents[created.ID] = &created
	f.byTriple[triple] = created.ID
	f.history = append(f.history, HistoryEntry{
		ID:        uuid.New(),
		ConsentID: created.ID,
		ChangedBy: changedBy,
		NewStatus: created.Status,
		Remarks:   remarks,
		Timestamp: created.CreatedAt,
	})
	cp := created
	return &cp, nil
}

func (f *fakeStore) ApplyTransition(_ context.Context, t Transition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.consents[t.ConsentID]
	if !ok {
		return ErrConsentNotFound
	}
	if c.Status != t.ExpectedStatus || c.AccessCount != t.ExpectedCount {
		return ErrStaleConsent
	}
	prev := c.Status
	c.Status = t.NewStatus
	c.AccessCount = t.NewCount
	c.ValidityPeriod = t.NewValidity
	c.UpdatedAt = time.Now()
	f.history = append(f.history, HistoryEntry{
		ID:             uuid.New(),
		ConsentID:      c.ID,
		ChangedBy:      t.ChangedBy,
		PreviousStatus: prev,
		NewStatus:      t.NewStatus,
		Remarks:        t.Remarks,
		Timestamp:      c.UpdatedAt,
	})
	return nil
}

func (f *fakeStore) ListPendingForOwner(_ context.Context, ownerID uuid.UUID) ([]PendingSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []PendingSummary
	for _, c := range f.consents {
		if c.ProviderID != ownerID || c.Status != StatusPending {
			continue
		}
		item := f.items[c.ItemID]
		seeker := f.parties[c.SeekerID]
		out = append(out, PendingSummary{
			ConsentID:   c.ID,
			ItemName:    item.Name,
			SeekerName:  seeker.DisplayName,
			SeekerEmail: seeker.Email,
			Status:      c.Status,
			CreatedAt:   c.CreatedAt,
		})
	}
	return out, nil
}

func (f *fakeStore) ListByProvider(_ context.Context, providerID uuid.UUID) ([]Consent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Consent
	for _, c := range f.consents {
		if c.ProviderID == providerID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeStore) ListByConsentIDs(_ context.Context, ids []uuid.UUID) ([]HistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []HistoryEntry
	for _, h := range f.history {
		if want[h.ConsentID] {
			out = append(out, h)
		}
	}
	return out, nil
}

func (f *fakeStore) GetItem(_ context.Context, id uuid.UUID) (*DataItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok {
		return nil, ErrItemNotFound
	}
	cp := *item
	return &cp, nil
}

func (f *fakeStore) GetParty(_ context.Context, id uuid.UUID) (*Party, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.parties[id]
	if !ok {
		return nil, ErrPartyNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) historyFor(id uuid.UUID) []HistoryEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []HistoryEntry
	for _, h := range f.history {
		if h.ConsentID == id {
			out = append(out, h)
		}
	}
	return out
}

// fakeVault stores plaintext per item id and checks the caller's key.
type fakeVault struct {
	mu      sync.Mutex
	key     []byte
	entries map[uuid.UUID][]byte
}

func (v *fakeVault) Get(ownerKey []byte, itemID uuid.UUID) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !bytes.Equal(ownerKey, v.key) {
		return nil, vault.ErrEntryNotFound
	}
	value, ok := v.entries[itemID]
	if !ok {
		return nil, vault.ErrEntryNotFound
	}
	return append([]byte(nil), value...), nil
}

// fakeKeys unwraps by stripping a one-byte prefix.
type fakeKeys struct{}

func (k *fakeKeys) Unwrap(wrapped []byte) ([]byte, error) {
	if len(wrapped) == 0 {
		return nil, errors.New("unwrap failed")
	}
	return append([]byte(nil), wrapped[1:]...), nil
}

type fixture struct {
	store  *fakeStore
	vault  *fakeVault
	engine *Engine

	ownerID  uuid.UUID
	seekerID uuid.UUID
	itemID   uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st := newFakeStore()
	ownerKey := bytes.Repeat([]byte{7}, 32)
	fv := &fakeVault{key: ownerKey, entries: make(map[uuid.UUID][]byte)}

	owner := &Party{ID: uuid.New(), Kind: PartyIndividual, DisplayName: "Asha", Email: "asha@example.com", WrappedKey: append([]byte{0}, ownerKey...)}
	seeker := &Party{ID: uuid.New(), Kind: PartyRequestor, DisplayName: "Acme Labs", Email: "ops@acme.example"}
	st.parties[owner.ID] = owner
	st.parties[seeker.ID] = seeker

	item := &DataItem{ID: uuid.New(), OwnerID: owner.ID, Name: "blood group", Kind: ItemRecord}
	st.items[item.ID] = item
	fv.entries[item.ID] = []byte("O negative")

	return &fixture{
		store:    st,
		vault:    fv,
		engine:   New(st, st, st, st, fv, &fakeKeys{}),
		ownerID:  owner.ID,
		seekerID: seeker.ID,
		itemID:   item.ID,
	}
}

func (fx *fixture) access(t *testing.T) *AccessResult {
	t.Helper()
	res, err := fx.engine.RequestOrAccess(context.Background(), fx.itemID, fx.seekerID)
	if err != nil {
		t.Fatalf("RequestOrAccess: %v", err)
	}
	return res
}

func (fx *fixture) grant(t *testing.T, consentID uuid.UUID, count *int32, validity *time.Time) {
	t.Helper()
	if _, err := fx.engine.Decide(context.Background(), consentID, fx.ownerID, ActionGrant, count, validity); err != nil {
		t.Fatalf("Decide grant: %v", err)
	}
}

func int32p(v int32) *int32 { return &v }

func TestRequestOrAccess_NewRequestFilesPending(t *testing.T) {
	fx := newFixture(t)

	res := fx.access(t)

	if res.Status != StatusPending {
		t.Fatalf("expected pending, got %s", res.Status)
	}
	if !res.RequestSent || res.Granted {
		t.Fatalf("expected request_sent without grant, got %+v", res)
	}
	if res.ItemValue != "" {
		t.Fatal("pending request must not carry the item value")
	}

	hist := fx.store.historyFor(res.ConsentID)
	if len(hist) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(hist))
	}
	if hist[0].PreviousStatus != "" || hist[0].NewStatus != StatusPending {
		t.Fatalf("unexpected creation entry: %+v", hist[0])
	}
}

func TestRequestOrAccess_RepeatWhilePending(t *testing.T) {
	fx := newFixture(t)

	first := fx.access(t)
	second := fx.access(t)

	if second.ConsentID != first.ConsentID {
		t.Fatal("repeat access should resolve to the same consent record")
	}
	if second.RequestSent {
		t.Fatal("repeat access must not file a second request")
	}
	if second.Status != StatusPending {
		t.Fatalf("expected pending, got %s", second.Status)
	}
	if len(fx.store.historyFor(first.ConsentID)) != 1 {
		t.Fatal("repeat access must not append history")
	}
}

func TestRequestOrAccess_ItemNotFound(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.engine.RequestOrAccess(context.Background(), uuid.New(), fx.seekerID)
	if !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
}

func TestRequestOrAccess_OwnerKeyMissing(t *testing.T) {
	fx := newFixture(t)
	fx.store.parties[fx.ownerID].WrappedKey = nil

	_, err := fx.engine.RequestOrAccess(context.Background(), fx.itemID, fx.seekerID)
	if !errors.Is(err, ErrOwnerKeyMissing) {
		t.Fatalf("expected ErrOwnerKeyMissing, got %v", err)
	}
}

func TestAccess_GrantedBudgetRunsOut(t *testing.T) {
	fx := newFixture(t)

	pending := fx.access(t)
	fx.grant(t, pending.ConsentID, int32p(2), nil)

	first := fx.access(t)
	if !first.Granted || first.ItemValue != "O negative" {
		t.Fatalf("first access should be granted with the item value, got %+v", first)
	}
	if first.Status != StatusApproved || first.AccessCount != 1 {
		t.Fatalf("expected approved with 1 remaining, got %s/%d", first.Status, first.AccessCount)
	}

	second := fx.access(t)
	if !second.Granted {
		t.Fatal("second access should be granted")
	}
	if second.Status != StatusCountExhausted || second.AccessCount != 0 {
		t.Fatalf("expected count_exhausted with 0 remaining, got %s/%d", second.Status, second.AccessCount)
	}

	third := fx.access(t)
	if third.Granted {
		t.Fatal("third access must be denied")
	}
	if third.Status != StatusCountExhausted {
		t.Fatalf("expected count_exhausted report, got %s", third.Status)
	}
	if third.ItemValue != "" {
		t.Fatal("denied access must not carry the item value")
	}
}

func TestAccess_ExpiryBeforeDecrement(t *testing.T) {
	fx := newFixture(t)

	pending := fx.access(t)
	past := time.Now().Add(-time.Hour)
	fx.grant(t, pending.ConsentID, int32p(3), &past)

	res := fx.access(t)
	if res.Granted {
		t.Fatal("expired consent must deny access")
	}
	if res.Status != StatusExpired {
		t.Fatalf("expected expired, got %s", res.Status)
	}
	if res.AccessCount != 3 {
		t.Fatalf("expiry must not consume the access budget, got %d", res.AccessCount)
	}

	hist := fx.store.historyFor(pending.ConsentID)
	last := hist[len(hist)-1]
	if last.ChangedBy != SystemActor || last.NewStatus != StatusExpired {
		t.Fatalf("expiry should be recorded by the system actor: %+v", last)
	}
}

func TestAccess_RejectedStaysRejected(t *testing.T) {
	fx := newFixture(t)

	pending := fx.access(t)
	if _, err := fx.engine.Decide(context.Background(), pending.ConsentID, fx.ownerID, ActionReject, nil, nil); err != nil {
		t.Fatalf("Decide reject: %v", err)
	}

	res := fx.access(t)
	if res.Granted || res.Status != StatusRejected {
		t.Fatalf("rejected consent must report itself and deny, got %+v", res)
	}

	// The record must not be silently reopened.
	c, err := fx.store.GetByID(context.Background(), pending.ConsentID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if c.Status != StatusRejected {
		t.Fatalf("access must not move a rejected record, got %s", c.Status)
	}
}

func TestAccess_VaultEntryMissing(t *testing.T) {
	fx := newFixture(t)

	pending := fx.access(t)
	fx.grant(t, pending.ConsentID, int32p(1), nil)
	delete(fx.vault.entries, fx.itemID)

	_, err := fx.engine.RequestOrAccess(context.Background(), fx.itemID, fx.seekerID)
	if !errors.Is(err, ErrVaultEntryMissing) {
		t.Fatalf("expected ErrVaultEntryMissing, got %v", err)
	}
}

func TestDecide_GrantDefaults(t *testing.T) {
	fx := newFixture(t)

	pending := fx.access(t)
	fx.grant(t, pending.ConsentID, nil, nil)

	c, err := fx.store.GetByID(context.Background(), pending.ConsentID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if c.Status != StatusApproved {
		t.Fatalf("expected approved, got %s", c.Status)
	}
	if c.AccessCount != DefaultAccessCount {
		t.Fatalf("expected default access count, got %d", c.AccessCount)
	}
	if !c.ValidityPeriod.Equal(NeverExpires) {
		t.Fatalf("expected unbounded validity, got %v", c.ValidityPeriod)
	}
}

func TestDecide_RegrantRefreshes(t *testing.T) {
	fx := newFixture(t)

	pending := fx.access(t)
	fx.grant(t, pending.ConsentID, int32p(1), nil)

	// Consume the budget.
	if res := fx.access(t); res.Status != StatusCountExhausted {
		t.Fatalf("expected count_exhausted, got %s", res.Status)
	}

	// Re-grant restores access.
	future := time.Now().Add(24 * time.Hour)
	fx.grant(t, pending.ConsentID, int32p(5), &future)

	res := fx.access(t)
	if !res.Granted {
		t.Fatal("re-granted consent should allow access")
	}
	if res.AccessCount != 4 {
		t.Fatalf("expected 4 remaining, got %d", res.AccessCount)
	}
}

func TestDecide_NoOpDecisions(t *testing.T) {
	fx := newFixture(t)

	pending := fx.access(t)
	before := len(fx.store.historyFor(pending.ConsentID))

	// Revoking a pending request is not a valid transition.
	_, err := fx.engine.Decide(context.Background(), pending.ConsentID, fx.ownerID, ActionRevoke, nil, nil)
	if !errors.Is(err, ErrNoOpDecision) {
		t.Fatalf("expected ErrNoOpDecision for revoke-on-pending, got %v", err)
	}

	if _, err := fx.engine.Decide(context.Background(), pending.ConsentID, fx.ownerID, ActionReject, nil, nil); err != nil {
		t.Fatalf("Decide reject: %v", err)
	}
	_, err = fx.engine.Decide(context.Background(), pending.ConsentID, fx.ownerID, ActionReject, nil, nil)
	if !errors.Is(err, ErrNoOpDecision) {
		t.Fatalf("expected ErrNoOpDecision for reject-on-rejected, got %v", err)
	}

	// One applied transition, two refused ones: exactly one new history entry.
	after := len(fx.store.historyFor(pending.ConsentID))
	if after != before+1 {
		t.Fatalf("refused decisions must not append history: %d -> %d", before, after)
	}
}

func TestDecide_RevokeOnRevoked(t *testing.T) {
	fx := newFixture(t)

	pending := fx.access(t)
	fx.grant(t, pending.ConsentID, nil, nil)

	if _, err := fx.engine.Decide(context.Background(), pending.ConsentID, fx.ownerID, ActionRevoke, nil, nil); err != nil {
		t.Fatalf("Decide revoke: %v", err)
	}
	_, err := fx.engine.Decide(context.Background(), pending.ConsentID, fx.ownerID, ActionRevoke, nil, nil)
	if !errors.Is(err, ErrNoOpDecision) {
		t.Fatalf("expected ErrNoOpDecision for revoke-on-revoked, got %v", err)
	}
}

func TestDecide_OnlyProviderDecides(t *testing.T) {
	fx := newFixture(t)

	pending := fx.access(t)
	before := len(fx.store.historyFor(pending.ConsentID))

	// The seeker must not be able to approve their own request.
	_, err := fx.engine.Decide(context.Background(), pending.ConsentID, fx.seekerID, ActionGrant, int32p(5), nil)
	if !errors.Is(err, ErrNotProvider) {
		t.Fatalf("expected ErrNotProvider, got %v", err)
	}

	c, err := fx.store.GetByID(context.Background(), pending.ConsentID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if c.Status != StatusPending {
		t.Fatalf("refused decision must not move the record, got %s", c.Status)
	}
	if len(fx.store.historyFor(pending.ConsentID)) != before {
		t.Fatal("refused decision must not append history")
	}

	// The follow-up access still reports pending and leaks nothing.
	res := fx.access(t)
	if res.Granted || res.Status != StatusPending || res.ItemValue != "" {
		t.Fatalf("expected pending report without value, got %+v", res)
	}

	// A third party is refused the same way.
	stranger := uuid.New()
	_, err = fx.engine.Decide(context.Background(), pending.ConsentID, stranger, ActionReject, nil, nil)
	if !errors.Is(err, ErrNotProvider) {
		t.Fatalf("expected ErrNotProvider for a third party, got %v", err)
	}
}

func TestDecide_InvalidInput(t *testing.T) {
	fx := newFixture(t)
	pending := fx.access(t)

	_, err := fx.engine.Decide(context.Background(), pending.ConsentID, fx.ownerID, Action("approve"), nil, nil)
	if !errors.Is(err, ErrInvalidAction) {
		t.Fatalf("expected ErrInvalidAction for unknown action, got %v", err)
	}

	_, err = fx.engine.Decide(context.Background(), pending.ConsentID, fx.ownerID, ActionGrant, int32p(-1), nil)
	if !errors.Is(err, ErrInvalidAction) {
		t.Fatalf("expected ErrInvalidAction for negative count, got %v", err)
	}

	_, err = fx.engine.Decide(context.Background(), uuid.New(), fx.ownerID, ActionGrant, nil, nil)
	if !errors.Is(err, ErrConsentNotFound) {
		t.Fatalf("expected ErrConsentNotFound, got %v", err)
	}
}

func TestConcurrentAccess_SingleBudgetAdmitsOne(t *testing.T) {
	fx := newFixture(t)

	pending := fx.access(t)
	fx.grant(t, pending.ConsentID, int32p(1), nil)

	const attempts = 8
	results := make(chan *AccessResult, attempts)
	errs := make(chan error, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := fx.engine.RequestOrAccess(context.Background(), fx.itemID, fx.seekerID)
			if err != nil {
				errs <- err
				return
			}
			results <- res
		}()
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		// Retry exhaustion under heavy contention is an acceptable outcome,
		// anything else is not.
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	granted := 0
	for res := range results {
		if res.Granted {
			granted++
		}
	}
	if granted != 1 {
		t.Fatalf("a budget of 1 must admit exactly one access, got %d", granted)
	}

	c, err := fx.store.GetByID(context.Background(), pending.ConsentID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if c.Status != StatusCountExhausted || c.AccessCount != 0 {
		t.Fatalf("expected count_exhausted/0, got %s/%d", c.Status, c.AccessCount)
	}
}

func TestListPendingForOwner(t *testing.T) {
	fx := newFixture(t)
	fx.access(t)

	summaries, err := fx.engine.ListPendingForOwner(context.Background(), fx.ownerID)
	if err != nil {
		t.Fatalf("ListPendingForOwner: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected 1 pending summary, got %d", len(summaries))
	}
	s := summaries[0]
	if s.ItemName != "blood group" || s.SeekerName != "Acme Labs" {
		t.Fatalf("summary should join item and seeker metadata: %+v", s)
	}
}

func TestListHistoryForOwner(t *testing.T) {
	fx := newFixture(t)

	pending := fx.access(t)
	fx.grant(t, pending.ConsentID, int32p(1), nil)
	fx.access(t)

	entries, err := fx.engine.ListHistoryForOwner(context.Background(), fx.ownerID)
	if err != nil {
		t.Fatalf("ListHistoryForOwner: %v", err)
	}
	// request + grant + access decrement
	if len(entries) != 3 {
		t.Fatalf("expected 3 history entries, got %d", len(entries))
	}
}

func TestListHistoryForConsentIDs_Empty(t *testing.T) {
	fx := newFixture(t)

	entries, err := fx.engine.ListHistoryForConsentIDs(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListHistoryForConsentIDs: %v", err)
	}
	if entries != nil {
		t.Fatalf("expected no entries, got %v", entries)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want Kind
	}{
		{ErrConsentNotFound, KindNotFound},
		{ErrItemNotFound, KindNotFound},
		{ErrVaultEntryMissing, KindNotFound},
		{ErrNoOpDecision, KindInvalidInput},
		{ErrInvalidAction, KindInvalidInput},
		{ErrNotProvider, KindForbidden},
		{ErrConflict, KindConflict},
		{vault.ErrEntryNotFound, KindNotFound},
		{errors.New("boom"), KindInternal},
	}
	for _, tc := range cases {
		if got := Classify(tc.err); got != tc.want {
			t.Errorf("Classify(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
