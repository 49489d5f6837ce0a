// Package memory provides an in-memory implementation of the core persistence
// store used for tests and ephemeral environments.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"themecore/pkg/domain"

	"github.com/google/uuid"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// User aliases domain.User for in-memory persistence operations.
	User = domain.User
	// Organization aliases domain.Organization.
	Organization = domain.Organization
	// OrganizationMember aliases domain.OrganizationMember.
	OrganizationMember = domain.OrganizationMember
	// Purchase aliases domain.Purchase.
	Purchase = domain.Purchase
	// PurchaseEvent aliases domain.PurchaseEvent.
	PurchaseEvent = domain.PurchaseEvent
	// Theme aliases domain.Theme.
	Theme = domain.Theme
	// GeneratedTheme aliases domain.GeneratedTheme.
	GeneratedTheme = domain.GeneratedTheme
	// ThemeShare aliases domain.ThemeShare.
	ThemeShare = domain.ThemeShare
	// ColorPalette aliases domain.ColorPalette.
	ColorPalette = domain.ColorPalette
	// NeutralPalette aliases domain.NeutralPalette.
	NeutralPalette = domain.NeutralPalette
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
	// PersistentStore aliases domain.PersistentStore abstraction.
	PersistentStore = domain.PersistentStore
)

type memoryState struct {
	users           map[string]User
	organizations   map[string]Organization
	members         map[string]OrganizationMember
	purchases       map[string]Purchase
	purchaseEvents  map[string]PurchaseEvent
	themes          map[string]Theme
	generated       map[string]GeneratedTheme
	shares          map[string]ThemeShare
	colorPalettes   map[string]ColorPalette
	neutralPalettes map[string]NeutralPalette
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Users           map[string]User               `json:"users"`
	Organizations   map[string]Organization       `json:"organizations"`
	Members         map[string]OrganizationMember `json:"members"`
	Purchases       map[string]Purchase           `json:"purchases"`
	PurchaseEvents  map[string]PurchaseEvent      `json:"purchase_events"`
	Themes          map[string]Theme              `json:"themes"`
	Generated       map[string]GeneratedTheme     `json:"generated"`
	Shares          map[string]ThemeShare         `json:"shares"`
	ColorPalettes   map[string]ColorPalette       `json:"color_palettes"`
	NeutralPalettes map[string]NeutralPalette     `json:"neutral_palettes"`
}

func newMemoryState() memoryState {
	return memoryState{
		users:           make(map[string]User),
		organizations:   make(map[string]Organization),
		members:         make(map[string]OrganizationMember),
		purchases:       make(map[string]Purchase),
		purchaseEvents:  make(map[string]PurchaseEvent),
		themes:          make(map[string]Theme),
		generated:       make(map[string]GeneratedTheme),
		shares:          make(map[string]ThemeShare),
		colorPalettes:   make(map[string]ColorPalette),
		neutralPalettes: make(map[string]NeutralPalette),
	}
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	s := Snapshot{
		Users:           make(map[string]User, len(state.users)),
		Organizations:   make(map[string]Organization, len(state.organizations)),
		Members:         make(map[string]OrganizationMember, len(state.members)),
		Purchases:       make(map[string]Purchase, len(state.purchases)),
		PurchaseEvents:  make(map[string]PurchaseEvent, len(state.purchaseEvents)),
		Themes:          make(map[string]Theme, len(state.themes)),
		Generated:       make(map[string]GeneratedTheme, len(state.generated)),
		Shares:          make(map[string]ThemeShare, len(state.shares)),
		ColorPalettes:   make(map[string]ColorPalette, len(state.colorPalettes)),
		NeutralPalettes: make(map[string]NeutralPalette, len(state.neutralPalettes)),
	}
	for k, v := range state.users {
		s.Users[k] = cloneUser(v)
	}
	for k, v := range state.organizations {
		s.Organizations[k] = v
	}
	for k, v := range state.members {
		s.Members[k] = v
	}
	for k, v := range state.purchases {
		s.Purchases[k] = clonePurchase(v)
	}
	for k, v := range state.purchaseEvents {
		s.PurchaseEvents[k] = v
	}
	for k, v := range state.themes {
		s.Themes[k] = cloneTheme(v)
	}
	for k, v := range state.generated {
		s.Generated[k] = cloneGeneratedTheme(v)
	}
	for k, v := range state.shares {
		s.Shares[k] = v
	}
	for k, v := range state.colorPalettes {
		s.ColorPalettes[k] = cloneColorPalette(v)
	}
	for k, v := range state.neutralPalettes {
		s.NeutralPalettes[k] = cloneNeutralPalette(v)
	}
	return s
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for k, v := range s.Users {
		state.users[k] = cloneUser(v)
	}
	for k, v := range s.Organizations {
		state.organizations[k] = v
	}
	for k, v := range s.Members {
		state.members[k] = v
	}
	for k, v := range s.Purchases {
		state.purchases[k] = clonePurchase(v)
	}
	for k, v := range s.PurchaseEvents {
		state.purchaseEvents[k] = v
	}
	for k, v := range s.Themes {
		state.themes[k] = cloneTheme(v)
	}
	for k, v := range s.Generated {
		state.generated[k] = cloneGeneratedTheme(v)
	}
	for k, v := range s.Shares {
		state.shares[k] = v
	}
	for k, v := range s.ColorPalettes {
		state.colorPalettes[k] = cloneColorPalette(v)
	}
	for k, v := range s.NeutralPalettes {
		state.neutralPalettes[k] = cloneNeutralPalette(v)
	}
	return state
}

func (s memoryState) clone() memoryState {
	return memoryStateFromSnapshot(snapshotFromMemoryState(s))
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneJSON(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}

func cloneUser(u User) User {
	u.StripeCustomerID = cloneString(u.StripeCustomerID)
	return u
}

func clonePurchase(p Purchase) Purchase {
	p.UserID = cloneString(p.UserID)
	p.OrganizationID = cloneString(p.OrganizationID)
	p.StripeSessionID = cloneString(p.StripeSessionID)
	p.StripePaymentIntentID = cloneString(p.StripePaymentIntentID)
	p.Seats = cloneInt(p.Seats)
	return p
}

func cloneTheme(t Theme) Theme {
	t.OrganizationID = cloneString(t.OrganizationID)
	t.ThemeData = cloneJSON(t.ThemeData)
	return t
}

func cloneGeneratedTheme(g GeneratedTheme) GeneratedTheme {
	g.GeneratedJSON = cloneJSON(g.GeneratedJSON)
	return g
}

func cloneColorPalette(p ColorPalette) ColorPalette {
	p.UserID = cloneString(p.UserID)
	p.Colors = cloneJSON(p.Colors)
	return p
}

func cloneNeutralPalette(p NeutralPalette) NeutralPalette {
	p.UserID = cloneString(p.UserID)
	p.Colors = cloneJSON(p.Colors)
	return p
}

// memberKey builds the unique (organization, user) composite key.
func memberKey(organizationID, userID string) string {
	return organizationID + "\x00" + userID
}

// shareKey builds the unique (theme, shared-with) composite key.
func shareKey(themeID, sharedWith string) string {
	return themeID + "\x00" + sharedWith
}

// Store is the in-memory transactional store. Transactions run serialized
// under one mutex against a cloned state, so every read-then-write sequence
// inside a transaction is atomic with respect to other writers.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
	idFn   func() string
}

// NewStore constructs an empty in-memory store evaluating the given rules engine.
func NewStore(engine *RulesEngine) *Store {
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
		idFn:   uuid.NewString,
	}
}

// ExportState returns a deep copy of the current state.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the current state with the snapshot contents.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(snapshot)
}

// RulesEngine returns the engine evaluated on each transaction.
func (s *Store) RulesEngine() *RulesEngine {
	return s.engine
}

// SetNowFunc overrides the transaction clock. Intended for tests.
func (s *Store) SetNowFunc(fn func() time.Time) {
	if fn != nil {
		s.nowFn = fn
	}
}

type transaction struct {
	store   *Store
	state   memoryState
	now     time.Time
	changes []Change
}

type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// RunInTransaction executes fn within a transactional copy of the store state.
// Rules are evaluated against the candidate state; blocking violations abort
// the commit and leave prior state unchanged.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	view := newTransactionView(&snapshot)
	return fn(view)
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// --- view accessors ---

func (v transactionView) ListUsers() []User {
	out := make([]User, 0, len(v.state.users))
	for _, u := range v.state.users {
		out = append(out, cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v transactionView) ListOrganizations() []Organization {
	out := make([]Organization, 0, len(v.state.organizations))
	for _, o := range v.state.organizations {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v transactionView) ListOrganizationMembers() []OrganizationMember {
	out := make([]OrganizationMember, 0, len(v.state.members))
	for _, m := range v.state.members {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v transactionView) ListPurchases() []Purchase {
	out := make([]Purchase, 0, len(v.state.purchases))
	for _, p := range v.state.purchases {
		out = append(out, clonePurchase(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v transactionView) ListPurchaseEvents() []PurchaseEvent {
	out := make([]PurchaseEvent, 0, len(v.state.purchaseEvents))
	for _, e := range v.state.purchaseEvents {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v transactionView) ListThemes() []Theme {
	out := make([]Theme, 0, len(v.state.themes))
	for _, t := range v.state.themes {
		out = append(out, cloneTheme(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v transactionView) ListGeneratedThemes() []GeneratedTheme {
	out := make([]GeneratedTheme, 0, len(v.state.generated))
	for _, g := range v.state.generated {
		out = append(out, cloneGeneratedTheme(g))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v transactionView) ListThemeShares() []ThemeShare {
	out := make([]ThemeShare, 0, len(v.state.shares))
	for _, s := range v.state.shares {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v transactionView) ListColorPalettes() []ColorPalette {
	out := make([]ColorPalette, 0, len(v.state.colorPalettes))
	for _, p := range v.state.colorPalettes {
		out = append(out, cloneColorPalette(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v transactionView) ListNeutralPalettes() []NeutralPalette {
	out := make([]NeutralPalette, 0, len(v.state.neutralPalettes))
	for _, p := range v.state.neutralPalettes {
		out = append(out, cloneNeutralPalette(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v transactionView) FindUser(id string) (User, bool) {
	u, ok := v.state.users[id]
	if !ok {
		return User{}, false
	}
	return cloneUser(u), true
}

func (v transactionView) FindUserByEmail(email string) (User, bool) {
	for _, u := range v.state.users {
		if u.Email == email {
			return cloneUser(u), true
		}
	}
	return User{}, false
}

func (v transactionView) FindOrganization(id string) (Organization, bool) {
	o, ok := v.state.organizations[id]
	return o, ok
}

func (v transactionView) FindOrganizationByClerkID(clerkOrgID string) (Organization, bool) {
	for _, o := range v.state.organizations {
		if o.ClerkOrgID == clerkOrgID {
			return o, true
		}
	}
	return Organization{}, false
}

func (v transactionView) FindOrganizationMember(organizationID, userID string) (OrganizationMember, bool) {
	m, ok := v.state.members[memberKey(organizationID, userID)]
	return m, ok
}

func (v transactionView) MembersOf(organizationID string) []OrganizationMember {
	var out []OrganizationMember
	for _, m := range v.state.members {
		if m.OrganizationID == organizationID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func (v transactionView) FindPurchase(id string) (Purchase, bool) {
	p, ok := v.state.purchases[id]
	if !ok {
		return Purchase{}, false
	}
	return clonePurchase(p), true
}

func (v transactionView) FindPurchaseEvent(id string) (PurchaseEvent, bool) {
	e, ok := v.state.purchaseEvents[id]
	return e, ok
}

func (v transactionView) FindTheme(id string) (Theme, bool) {
	t, ok := v.state.themes[id]
	if !ok {
		return Theme{}, false
	}
	return cloneTheme(t), true
}

func (v transactionView) FindGeneratedTheme(themeID, version string) (GeneratedTheme, bool) {
	for _, g := range v.state.generated {
		if g.ThemeID == themeID && g.Version == version {
			return cloneGeneratedTheme(g), true
		}
	}
	return GeneratedTheme{}, false
}

// GeneratedVersionsOf returns the snapshots of a theme ordered by version.
// Creation order and version order coincide; the store enforces that at
// insert time.
func (v transactionView) GeneratedVersionsOf(themeID string) []GeneratedTheme {
	var out []GeneratedTheme
	for _, g := range v.state.generated {
		if g.ThemeID == themeID {
			out = append(out, cloneGeneratedTheme(g))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		vi, erri := domain.ParseVersionTag(out[i].Version)
		vj, errj := domain.ParseVersionTag(out[j].Version)
		if erri != nil || errj != nil {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return vi < vj
	})
	return out
}

func (v transactionView) FindThemeShare(themeID, sharedWith string) (ThemeShare, bool) {
	s, ok := v.state.shares[shareKey(themeID, sharedWith)]
	return s, ok
}

func (v transactionView) SharesOf(themeID string) []ThemeShare {
	var out []ThemeShare
	for _, s := range v.state.shares {
		if s.ThemeID == themeID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SharedWith < out[j].SharedWith })
	return out
}

func (v transactionView) FindColorPalette(id string) (ColorPalette, bool) {
	p, ok := v.state.colorPalettes[id]
	if !ok {
		return ColorPalette{}, false
	}
	return cloneColorPalette(p), true
}

func (v transactionView) FindNeutralPalette(id string) (NeutralPalette, bool) {
	p, ok := v.state.neutralPalettes[id]
	if !ok {
		return NeutralPalette{}, false
	}
	return cloneNeutralPalette(p), true
}

// --- transaction operations ---

func validRole(role domain.MemberRole) bool {
	return role == domain.RoleAdmin || role == domain.RoleMember
}

func validVisibility(v domain.Visibility) bool {
	switch v {
	case domain.VisibilityPrivate, domain.VisibilityOrganization, domain.VisibilityPublic:
		return true
	}
	return false
}

func validPurchasePlan(p domain.PurchasePlan) bool {
	switch p {
	case domain.PurchasePlanPro, domain.PurchasePlanTeam5, domain.PurchasePlanTeam10:
		return true
	}
	return false
}

func validPurchaseStatus(s domain.PurchaseStatus) bool {
	switch s {
	case domain.PurchasePending, domain.PurchaseCompleted, domain.PurchaseFailed, domain.PurchaseRefunded:
		return true
	}
	return false
}

// CreateUser stores a new user record.
func (tx *transaction) CreateUser(u User) (User, error) {
	if u.ID == "" {
		u.ID = tx.store.idFn()
	}
	if _, exists := tx.state.users[u.ID]; exists {
		return User{}, fmt.Errorf("user %q already exists", u.ID)
	}
	if u.Email == "" {
		return User{}, errors.New("user requires email")
	}
	for _, existing := range tx.state.users {
		if existing.Email == u.Email {
			return User{}, fmt.Errorf("email %q already registered to user %q", u.Email, existing.ID)
		}
		if u.StripeCustomerID != nil && existing.StripeCustomerID != nil && *existing.StripeCustomerID == *u.StripeCustomerID {
			return User{}, fmt.Errorf("stripe customer %q already bound to user %q", *u.StripeCustomerID, existing.ID)
		}
	}
	if u.Plan == "" {
		u.Plan = domain.PlanPro
	}
	if u.Plan != domain.PlanPro && u.Plan != domain.PlanTeam {
		return User{}, fmt.Errorf("unknown plan %q", u.Plan)
	}
	u.CreatedAt = tx.now
	u.UpdatedAt = tx.now
	tx.state.users[u.ID] = cloneUser(u)
	tx.recordChange(Change{Entity: domain.EntityUser, Action: domain.ActionCreate, After: cloneUser(u)})
	return cloneUser(u), nil
}

// UpdateUser mutates a user using the provided mutator function.
func (tx *transaction) UpdateUser(id string, mutator func(*User) error) (User, error) {
	current, ok := tx.state.users[id]
	if !ok {
		return User{}, domain.NotFoundError{Entity: domain.EntityUser, ID: id}
	}
	before := cloneUser(current)
	if err := mutator(&current); err != nil {
		return User{}, err
	}
	if current.Email == "" {
		return User{}, errors.New("user requires email")
	}
	for otherID, existing := range tx.state.users {
		if otherID == id {
			continue
		}
		if existing.Email == current.Email {
			return User{}, fmt.Errorf("email %q already registered to user %q", current.Email, otherID)
		}
		if current.StripeCustomerID != nil && existing.StripeCustomerID != nil && *existing.StripeCustomerID == *current.StripeCustomerID {
			return User{}, fmt.Errorf("stripe customer %q already bound to user %q", *current.StripeCustomerID, otherID)
		}
	}
	if current.Plan != domain.PlanPro && current.Plan != domain.PlanTeam {
		return User{}, fmt.Errorf("unknown plan %q", current.Plan)
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.users[id] = cloneUser(current)
	tx.recordChange(Change{Entity: domain.EntityUser, Action: domain.ActionUpdate, Before: before, After: cloneUser(current)})
	return cloneUser(current), nil
}

// CreateOrganization stores a new organization record.
func (tx *transaction) CreateOrganization(o Organization) (Organization, error) {
	if o.ID == "" {
		o.ID = tx.store.idFn()
	}
	if _, exists := tx.state.organizations[o.ID]; exists {
		return Organization{}, fmt.Errorf("organization %q already exists", o.ID)
	}
	if o.ClerkOrgID == "" {
		return Organization{}, errors.New("organization requires clerk org id")
	}
	for _, existing := range tx.state.organizations {
		if existing.ClerkOrgID == o.ClerkOrgID {
			return Organization{}, fmt.Errorf("clerk org %q already bound to organization %q", o.ClerkOrgID, existing.ID)
		}
	}
	if o.Seats < 0 {
		return Organization{}, fmt.Errorf("organization seats must not be negative, got %d", o.Seats)
	}
	o.CreatedAt = tx.now
	o.UpdatedAt = tx.now
	tx.state.organizations[o.ID] = o
	tx.recordChange(Change{Entity: domain.EntityOrganization, Action: domain.ActionCreate, After: o})
	return o, nil
}

// UpdateOrganization mutates an organization. Seat reductions below current
// membership are rolled back by the seat capacity rule at commit.
func (tx *transaction) UpdateOrganization(id string, mutator func(*Organization) error) (Organization, error) {
	current, ok := tx.state.organizations[id]
	if !ok {
		return Organization{}, domain.NotFoundError{Entity: domain.EntityOrganization, ID: id}
	}
	before := current
	if err := mutator(&current); err != nil {
		return Organization{}, err
	}
	if current.ClerkOrgID == "" {
		return Organization{}, errors.New("organization requires clerk org id")
	}
	if current.Seats < 0 {
		return Organization{}, fmt.Errorf("organization seats must not be negative, got %d", current.Seats)
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.organizations[id] = current
	tx.recordChange(Change{Entity: domain.EntityOrganization, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// CreateOrganizationMember stores a membership row. The (organization, user)
// pair is unique; callers wanting idempotent adds check for the pair first.
func (tx *transaction) CreateOrganizationMember(m OrganizationMember) (OrganizationMember, error) {
	if m.OrganizationID == "" || m.UserID == "" {
		return OrganizationMember{}, errors.New("membership requires organization and user ids")
	}
	if _, ok := tx.state.organizations[m.OrganizationID]; !ok {
		return OrganizationMember{}, domain.NotFoundError{Entity: domain.EntityOrganization, ID: m.OrganizationID}
	}
	if _, ok := tx.state.users[m.UserID]; !ok {
		return OrganizationMember{}, domain.NotFoundError{Entity: domain.EntityUser, ID: m.UserID}
	}
	key := memberKey(m.OrganizationID, m.UserID)
	if _, exists := tx.state.members[key]; exists {
		return OrganizationMember{}, fmt.Errorf("user %q is already a member of organization %q", m.UserID, m.OrganizationID)
	}
	if m.Role == "" {
		m.Role = domain.RoleMember
	}
	if !validRole(m.Role) {
		return OrganizationMember{}, fmt.Errorf("unknown member role %q", m.Role)
	}
	if m.ID == "" {
		m.ID = tx.store.idFn()
	}
	m.CreatedAt = tx.now
	m.UpdatedAt = tx.now
	tx.state.members[key] = m
	tx.recordChange(Change{Entity: domain.EntityOrganizationMember, Action: domain.ActionCreate, After: m})
	return m, nil
}

// DeleteOrganizationMember removes a membership row, reporting whether it existed.
func (tx *transaction) DeleteOrganizationMember(organizationID, userID string) (bool, error) {
	key := memberKey(organizationID, userID)
	current, ok := tx.state.members[key]
	if !ok {
		return false, nil
	}
	delete(tx.state.members, key)
	tx.recordChange(Change{Entity: domain.EntityOrganizationMember, Action: domain.ActionDelete, Before: current})
	return true, nil
}

func validatePurchaseOwner(tx *transaction, p Purchase) error {
	if (p.UserID == nil) == (p.OrganizationID == nil) {
		return domain.InvalidStateError{
			Entity: domain.EntityPurchase,
			ID:     p.ID,
			Reason: "purchase must belong to exactly one of user or organization",
		}
	}
	if p.UserID != nil {
		if _, ok := tx.state.users[*p.UserID]; !ok {
			return domain.NotFoundError{Entity: domain.EntityUser, ID: *p.UserID}
		}
	}
	if p.OrganizationID != nil {
		if _, ok := tx.state.organizations[*p.OrganizationID]; !ok {
			return domain.NotFoundError{Entity: domain.EntityOrganization, ID: *p.OrganizationID}
		}
	}
	return nil
}

// CreatePurchase stores a checkout record. New purchases are always PENDING.
func (tx *transaction) CreatePurchase(p Purchase) (Purchase, error) {
	if p.ID == "" {
		p.ID = tx.store.idFn()
	}
	if _, exists := tx.state.purchases[p.ID]; exists {
		return Purchase{}, fmt.Errorf("purchase %q already exists", p.ID)
	}
	if err := validatePurchaseOwner(tx, p); err != nil {
		return Purchase{}, err
	}
	if !validPurchasePlan(p.Plan) {
		return Purchase{}, fmt.Errorf("unknown purchase plan %q", p.Plan)
	}
	if p.Plan.IsTeam() {
		if p.Seats == nil {
			seats := p.Plan.SeatCount()
			p.Seats = &seats
		} else if *p.Seats != p.Plan.SeatCount() {
			return Purchase{}, fmt.Errorf("plan %s carries %d seats, got %d", p.Plan, p.Plan.SeatCount(), *p.Seats)
		}
	} else if p.Seats != nil {
		return Purchase{}, fmt.Errorf("plan %s does not carry seats", p.Plan)
	}
	if p.Status == "" {
		p.Status = domain.PurchasePending
	}
	if p.Status != domain.PurchasePending {
		return Purchase{}, domain.InvalidStateError{
			Entity: domain.EntityPurchase,
			ID:     p.ID,
			Reason: fmt.Sprintf("new purchases start %s, got %s", domain.PurchasePending, p.Status),
		}
	}
	if p.Currency == "" {
		p.Currency = "usd"
	}
	p.CreatedAt = tx.now
	p.UpdatedAt = tx.now
	tx.state.purchases[p.ID] = clonePurchase(p)
	tx.recordChange(Change{Entity: domain.EntityPurchase, Action: domain.ActionCreate, After: clonePurchase(p)})
	return clonePurchase(p), nil
}

// UpdatePurchase mutates a purchase. Status transition legality is the
// caller's concern; ownership and plan shape are re-validated here.
func (tx *transaction) UpdatePurchase(id string, mutator func(*Purchase) error) (Purchase, error) {
	current, ok := tx.state.purchases[id]
	if !ok {
		return Purchase{}, domain.NotFoundError{Entity: domain.EntityPurchase, ID: id}
	}
	before := clonePurchase(current)
	if err := mutator(&current); err != nil {
		return Purchase{}, err
	}
	current.ID = id
	if err := validatePurchaseOwner(tx, current); err != nil {
		return Purchase{}, err
	}
	if !validPurchasePlan(current.Plan) {
		return Purchase{}, fmt.Errorf("unknown purchase plan %q", current.Plan)
	}
	if !validPurchaseStatus(current.Status) {
		return Purchase{}, fmt.Errorf("unknown purchase status %q", current.Status)
	}
	current.UpdatedAt = tx.now
	tx.state.purchases[id] = clonePurchase(current)
	tx.recordChange(Change{Entity: domain.EntityPurchase, Action: domain.ActionUpdate, Before: before, After: clonePurchase(current)})
	return clonePurchase(current), nil
}

// CreatePurchaseEvent records an applied payment-provider event. The row ID
// is the provider event id; duplicates are rejected so idempotency checks
// stay in one place.
func (tx *transaction) CreatePurchaseEvent(e PurchaseEvent) (PurchaseEvent, error) {
	if e.ID == "" {
		return PurchaseEvent{}, errors.New("purchase event requires the provider event id")
	}
	if _, exists := tx.state.purchaseEvents[e.ID]; exists {
		return PurchaseEvent{}, fmt.Errorf("purchase event %q already applied", e.ID)
	}
	if _, ok := tx.state.purchases[e.PurchaseID]; !ok {
		return PurchaseEvent{}, domain.NotFoundError{Entity: domain.EntityPurchase, ID: e.PurchaseID}
	}
	if !validPurchaseStatus(e.Status) {
		return PurchaseEvent{}, fmt.Errorf("unknown purchase status %q", e.Status)
	}
	e.CreatedAt = tx.now
	e.UpdatedAt = tx.now
	tx.state.purchaseEvents[e.ID] = e
	tx.recordChange(Change{Entity: domain.EntityPurchaseEvent, Action: domain.ActionCreate, After: e})
	return e, nil
}

func validateThemeVisibility(tx *transaction, t Theme) error {
	if !validVisibility(t.Visibility) {
		return fmt.Errorf("unknown visibility %q", t.Visibility)
	}
	if t.Visibility == domain.VisibilityOrganization {
		if t.OrganizationID == nil {
			return domain.InvalidStateError{
				Entity: domain.EntityTheme,
				ID:     t.ID,
				Reason: "organization visibility requires an organization reference",
			}
		}
		if _, ok := tx.state.organizations[*t.OrganizationID]; !ok {
			return domain.NotFoundError{Entity: domain.EntityOrganization, ID: *t.OrganizationID}
		}
		return nil
	}
	if t.OrganizationID != nil {
		return domain.InvalidStateError{
			Entity: domain.EntityTheme,
			ID:     t.ID,
			Reason: fmt.Sprintf("%s themes carry no organization reference", t.Visibility),
		}
	}
	return nil
}

// CreateTheme stores a new working theme.
func (tx *transaction) CreateTheme(t Theme) (Theme, error) {
	if t.ID == "" {
		t.ID = tx.store.idFn()
	}
	if _, exists := tx.state.themes[t.ID]; exists {
		return Theme{}, fmt.Errorf("theme %q already exists", t.ID)
	}
	if t.Name == "" {
		return Theme{}, errors.New("theme requires a name")
	}
	if _, ok := tx.state.users[t.UserID]; !ok {
		return Theme{}, domain.NotFoundError{Entity: domain.EntityUser, ID: t.UserID}
	}
	if t.Visibility == "" {
		t.Visibility = domain.VisibilityPrivate
	}
	if err := validateThemeVisibility(tx, t); err != nil {
		return Theme{}, err
	}
	t.CreatedAt = tx.now
	t.UpdatedAt = tx.now
	tx.state.themes[t.ID] = cloneTheme(t)
	tx.recordChange(Change{Entity: domain.EntityTheme, Action: domain.ActionCreate, After: cloneTheme(t)})
	return cloneTheme(t), nil
}

// UpdateTheme mutates a working theme using the provided mutator function.
func (tx *transaction) UpdateTheme(id string, mutator func(*Theme) error) (Theme, error) {
	current, ok := tx.state.themes[id]
	if !ok {
		return Theme{}, domain.NotFoundError{Entity: domain.EntityTheme, ID: id}
	}
	before := cloneTheme(current)
	if err := mutator(&current); err != nil {
		return Theme{}, err
	}
	if current.Name == "" {
		return Theme{}, errors.New("theme requires a name")
	}
	if _, ok := tx.state.users[current.UserID]; !ok {
		return Theme{}, domain.NotFoundError{Entity: domain.EntityUser, ID: current.UserID}
	}
	current.ID = id
	if err := validateThemeVisibility(tx, current); err != nil {
		return Theme{}, err
	}
	current.UpdatedAt = tx.now
	tx.state.themes[id] = cloneTheme(current)
	tx.recordChange(Change{Entity: domain.EntityTheme, Action: domain.ActionUpdate, Before: before, After: cloneTheme(current)})
	return cloneTheme(current), nil
}

// DeleteTheme removes a theme together with its snapshots and share grants,
// which have no life independent of the theme.
func (tx *transaction) DeleteTheme(id string) error {
	current, ok := tx.state.themes[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityTheme, ID: id}
	}
	for gid, g := range tx.state.generated {
		if g.ThemeID == id {
			delete(tx.state.generated, gid)
			tx.recordChange(Change{Entity: domain.EntityGeneratedTheme, Action: domain.ActionDelete, Before: cloneGeneratedTheme(g)})
		}
	}
	for key, s := range tx.state.shares {
		if s.ThemeID == id {
			delete(tx.state.shares, key)
			tx.recordChange(Change{Entity: domain.EntityThemeShare, Action: domain.ActionDelete, Before: s})
		}
	}
	delete(tx.state.themes, id)
	tx.recordChange(Change{Entity: domain.EntityTheme, Action: domain.ActionDelete, Before: cloneTheme(current)})
	return nil
}

// CreateGeneratedTheme appends an immutable snapshot. The version tag must be
// strictly greater than every existing tag for the theme; anything else is a
// version conflict surfaced to the caller for retry with a recomputed tag.
func (tx *transaction) CreateGeneratedTheme(g GeneratedTheme) (GeneratedTheme, error) {
	if _, ok := tx.state.themes[g.ThemeID]; !ok {
		return GeneratedTheme{}, domain.NotFoundError{Entity: domain.EntityTheme, ID: g.ThemeID}
	}
	tag, err := domain.ParseVersionTag(g.Version)
	if err != nil {
		return GeneratedTheme{}, err
	}
	for _, existing := range tx.state.generated {
		if existing.ThemeID != g.ThemeID {
			continue
		}
		if n, err := domain.ParseVersionTag(existing.Version); err == nil && n >= tag {
			return GeneratedTheme{}, domain.VersionConflictError{ThemeID: g.ThemeID, Version: g.Version}
		}
	}
	if len(g.GeneratedJSON) == 0 {
		return GeneratedTheme{}, errors.New("generated theme requires rendered json")
	}
	if g.ID == "" {
		g.ID = tx.store.idFn()
	}
	if _, exists := tx.state.generated[g.ID]; exists {
		return GeneratedTheme{}, fmt.Errorf("generated theme %q already exists", g.ID)
	}
	g.CreatedAt = tx.now
	g.UpdatedAt = tx.now
	tx.state.generated[g.ID] = cloneGeneratedTheme(g)
	tx.recordChange(Change{Entity: domain.EntityGeneratedTheme, Action: domain.ActionCreate, After: cloneGeneratedTheme(g)})
	return cloneGeneratedTheme(g), nil
}

// UpsertThemeShare stores a share grant. Re-sharing with the same target is a
// no-op returning the existing grant.
func (tx *transaction) UpsertThemeShare(s ThemeShare) (ThemeShare, error) {
	theme, ok := tx.state.themes[s.ThemeID]
	if !ok {
		return ThemeShare{}, domain.NotFoundError{Entity: domain.EntityTheme, ID: s.ThemeID}
	}
	if _, ok := tx.state.users[s.SharedBy]; !ok {
		return ThemeShare{}, domain.NotFoundError{Entity: domain.EntityUser, ID: s.SharedBy}
	}
	if _, ok := tx.state.users[s.SharedWith]; !ok {
		return ThemeShare{}, domain.NotFoundError{Entity: domain.EntityUser, ID: s.SharedWith}
	}
	if s.SharedWith == theme.UserID {
		return ThemeShare{}, domain.InvalidStateError{
			Entity: domain.EntityThemeShare,
			ID:     s.ThemeID,
			Reason: "theme owner already holds full access",
		}
	}
	key := shareKey(s.ThemeID, s.SharedWith)
	if existing, ok := tx.state.shares[key]; ok {
		return existing, nil
	}
	if s.ID == "" {
		s.ID = tx.store.idFn()
	}
	s.CreatedAt = tx.now
	s.UpdatedAt = tx.now
	tx.state.shares[key] = s
	tx.recordChange(Change{Entity: domain.EntityThemeShare, Action: domain.ActionCreate, After: s})
	return s, nil
}

// DeleteThemeShare removes a grant, reporting whether it existed. Revoking an
// absent grant is not an error.
func (tx *transaction) DeleteThemeShare(themeID, sharedWith string) (bool, error) {
	key := shareKey(themeID, sharedWith)
	current, ok := tx.state.shares[key]
	if !ok {
		return false, nil
	}
	delete(tx.state.shares, key)
	tx.recordChange(Change{Entity: domain.EntityThemeShare, Action: domain.ActionDelete, Before: current})
	return true, nil
}

func validatePaletteOwner(tx *transaction, entity domain.EntityType, id string, userID *string, builtIn bool) error {
	if builtIn && userID != nil {
		return domain.InvalidStateError{Entity: entity, ID: id, Reason: "built-in palettes have no owner"}
	}
	if userID != nil {
		if _, ok := tx.state.users[*userID]; !ok {
			return domain.NotFoundError{Entity: domain.EntityUser, ID: *userID}
		}
	}
	return nil
}

// CreateColorPalette stores a color palette record.
func (tx *transaction) CreateColorPalette(p ColorPalette) (ColorPalette, error) {
	if p.ID == "" {
		p.ID = tx.store.idFn()
	}
	if _, exists := tx.state.colorPalettes[p.ID]; exists {
		return ColorPalette{}, fmt.Errorf("color palette %q already exists", p.ID)
	}
	if p.Name == "" {
		return ColorPalette{}, errors.New("color palette requires a name")
	}
	if err := validatePaletteOwner(tx, domain.EntityColorPalette, p.ID, p.UserID, p.IsBuiltIn); err != nil {
		return ColorPalette{}, err
	}
	p.CreatedAt = tx.now
	p.UpdatedAt = tx.now
	tx.state.colorPalettes[p.ID] = cloneColorPalette(p)
	tx.recordChange(Change{Entity: domain.EntityColorPalette, Action: domain.ActionCreate, After: cloneColorPalette(p)})
	return cloneColorPalette(p), nil
}

// UpdateColorPalette mutates a user-owned palette. Built-ins are immutable.
func (tx *transaction) UpdateColorPalette(id string, mutator func(*ColorPalette) error) (ColorPalette, error) {
	current, ok := tx.state.colorPalettes[id]
	if !ok {
		return ColorPalette{}, domain.NotFoundError{Entity: domain.EntityColorPalette, ID: id}
	}
	if current.IsBuiltIn {
		return ColorPalette{}, domain.InvalidStateError{Entity: domain.EntityColorPalette, ID: id, Reason: "built-in palettes are immutable"}
	}
	before := cloneColorPalette(current)
	if err := mutator(&current); err != nil {
		return ColorPalette{}, err
	}
	if current.Name == "" {
		return ColorPalette{}, errors.New("color palette requires a name")
	}
	current.ID = id
	if err := validatePaletteOwner(tx, domain.EntityColorPalette, id, current.UserID, current.IsBuiltIn); err != nil {
		return ColorPalette{}, err
	}
	current.UpdatedAt = tx.now
	tx.state.colorPalettes[id] = cloneColorPalette(current)
	tx.recordChange(Change{Entity: domain.EntityColorPalette, Action: domain.ActionUpdate, Before: before, After: cloneColorPalette(current)})
	return cloneColorPalette(current), nil
}

// DeleteColorPalette removes a user-owned palette. Built-ins are undeletable.
func (tx *transaction) DeleteColorPalette(id string) error {
	current, ok := tx.state.colorPalettes[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityColorPalette, ID: id}
	}
	if current.IsBuiltIn {
		return domain.InvalidStateError{Entity: domain.EntityColorPalette, ID: id, Reason: "built-in palettes are undeletable"}
	}
	delete(tx.state.colorPalettes, id)
	tx.recordChange(Change{Entity: domain.EntityColorPalette, Action: domain.ActionDelete, Before: cloneColorPalette(current)})
	return nil
}

// CreateNeutralPalette stores a neutral palette record.
func (tx *transaction) CreateNeutralPalette(p NeutralPalette) (NeutralPalette, error) {
	if p.ID == "" {
		p.ID = tx.store.idFn()
	}
	if _, exists := tx.state.neutralPalettes[p.ID]; exists {
		return NeutralPalette{}, fmt.Errorf("neutral palette %q already exists", p.ID)
	}
	if p.Name == "" {
		return NeutralPalette{}, errors.New("neutral palette requires a name")
	}
	if err := validatePaletteOwner(tx, domain.EntityNeutralPalette, p.ID, p.UserID, p.IsBuiltIn); err != nil {
		return NeutralPalette{}, err
	}
	p.CreatedAt = tx.now
	p.UpdatedAt = tx.now
	tx.state.neutralPalettes[p.ID] = cloneNeutralPalette(p)
	tx.recordChange(Change{Entity: domain.EntityNeutralPalette, Action: domain.ActionCreate, After: cloneNeutralPalette(p)})
	return cloneNeutralPalette(p), nil
}

// UpdateNeutralPalette mutates a user-owned palette. Built-ins are immutable.
func (tx *transaction) UpdateNeutralPalette(id string, mutator func(*NeutralPalette) error) (NeutralPalette, error) {
	current, ok := tx.state.neutralPalettes[id]
	if !ok {
		return NeutralPalette{}, domain.NotFoundError{Entity: domain.EntityNeutralPalette, ID: id}
	}
	if current.IsBuiltIn {
		return NeutralPalette{}, domain.InvalidStateError{Entity: domain.EntityNeutralPalette, ID: id, Reason: "built-in palettes are immutable"}
	}
	before := cloneNeutralPalette(current)
	if err := mutator(&current); err != nil {
		return NeutralPalette{}, err
	}
	if current.Name == "" {
		return NeutralPalette{}, errors.New("neutral palette requires a name")
	}
	current.ID = id
	if err := validatePaletteOwner(tx, domain.EntityNeutralPalette, id, current.UserID, current.IsBuiltIn); err != nil {
		return NeutralPalette{}, err
	}
	current.UpdatedAt = tx.now
	tx.state.neutralPalettes[id] = cloneNeutralPalette(current)
	tx.recordChange(Change{Entity: domain.EntityNeutralPalette, Action: domain.ActionUpdate, Before: before, After: cloneNeutralPalette(current)})
	return cloneNeutralPalette(current), nil
}

// DeleteNeutralPalette removes a user-owned palette. Built-ins are undeletable.
func (tx *transaction) DeleteNeutralPalette(id string) error {
	current, ok := tx.state.neutralPalettes[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityNeutralPalette, ID: id}
	}
	if current.IsBuiltIn {
		return domain.InvalidStateError{Entity: domain.EntityNeutralPalette, ID: id, Reason: "built-in palettes are undeletable"}
	}
	delete(tx.state.neutralPalettes, id)
	tx.recordChange(Change{Entity: domain.EntityNeutralPalette, Action: domain.ActionDelete, Before: cloneNeutralPalette(current)})
	return nil
}

// --- store accessors ---

// GetUser retrieves a user by ID.
func (s *Store) GetUser(id string) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.state.users[id]
	if !ok {
		return User{}, false
	}
	return cloneUser(u), true
}

// GetOrganization retrieves an organization by ID.
func (s *Store) GetOrganization(id string) (Organization, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.state.organizations[id]
	return o, ok
}

// GetTheme retrieves a theme by ID.
func (s *Store) GetTheme(id string) (Theme, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.state.themes[id]
	if !ok {
		return Theme{}, false
	}
	return cloneTheme(t), true
}

// GetPurchase retrieves a purchase by ID.
func (s *Store) GetPurchase(id string) (Purchase, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.state.purchases[id]
	if !ok {
		return Purchase{}, false
	}
	return clonePurchase(p), true
}

// ListUsers returns all users.
func (s *Store) ListUsers() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListUsers()
}

// ListOrganizations returns all organizations.
func (s *Store) ListOrganizations() []Organization {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListOrganizations()
}

// ListThemes returns all themes.
func (s *Store) ListThemes() []Theme {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListThemes()
}

// ListColorPalettes returns all color palettes.
func (s *Store) ListColorPalettes() []ColorPalette {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListColorPalettes()
}

// ListNeutralPalettes returns all neutral palettes.
func (s *Store) ListNeutralPalettes() []NeutralPalette {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newTransactionView(&s.state).ListNeutralPalettes()
}
