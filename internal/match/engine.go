package match

import (
	"context"
	"fmt"
	"log"
	"maps"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/ernie/shoot-or-shield/internal/ai"
	"github.com/ernie/shoot-or-shield/internal/catalog"
	"github.com/ernie/shoot-or-shield/internal/combat"
	"github.com/ernie/shoot-or-shield/internal/domain"
	"github.com/ernie/shoot-or-shield/internal/progression"
)

// Timings are the fixed phase durations. The decision window comes from
// the match time format instead.
type Timings struct {
	Intro       time.Duration `yaml:"intro"`
	Shopping    time.Duration `yaml:"shopping"`
	Resolution  time.Duration `yaml:"resolution"`
	Preparation time.Duration `yaml:"preparation"`
	RoundOver   time.Duration `yaml:"round_over"`
}

// DefaultTimings returns the standard phase durations
func DefaultTimings() Timings {
	return Timings{
		Intro:       2 * time.Second,
		Shopping:    15 * time.Second,
		Resolution:  5 * time.Second,
		Preparation: 3 * time.Second,
		RoundOver:   5 * time.Second,
	}
}

// Config configures an Engine
type Config struct {
	MatchID  string
	Mode     domain.GameMode
	Settings domain.Settings
	Timings  Timings
	// resolve as soon as every dueling combatant has committed
	EarlyResolve bool
	Clock        clockwork.Clock
	RNG          combat.RNG
	// nil leaves bots on the SHOOT default
	AI ai.Provider
}

// shownGear is what other players were last shown of a combatant's
// equipment and the resources and cash that come with it
type shownGear struct {
	gun, shield, armor *domain.Item
	armorPts, maxArmor float64
	ammo, maxAmmo      int
	charges, maxCharge int
	cash               int
}

func gearOf(c domain.Combatant) shownGear {
	return shownGear{
		gun: c.Gun, shield: c.Shield, armor: c.ArmorItem,
		armorPts: c.Armor, maxArmor: c.MaxArmor,
		ammo: c.Ammo, maxAmmo: c.MaxAmmo,
		charges: c.ShieldCharges, maxCharge: c.MaxShieldCharges,
		cash: c.MatchCash,
	}
}

func (g shownGear) apply(c *domain.Combatant) {
	c.Gun, c.Shield, c.ArmorItem = g.gun, g.shield, g.armor
	c.Armor, c.MaxArmor = g.armorPts, g.maxArmor
	c.Ammo, c.MaxAmmo = g.ammo, g.maxAmmo
	c.ShieldCharges, c.MaxShieldCharges = g.charges, g.maxCharge
	c.MatchCash = g.cash
}

// Engine is the authoritative match state machine. All state lives behind
// mu; phase changes happen only when the single deadline fires, and every
// transition bumps gen so a stale wake-up does nothing.
type Engine struct {
	cfg    Config
	clock  clockwork.Clock
	rng    combat.RNG
	events chan domain.Event
	wake   chan struct{}
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	started    bool
	closed     bool
	phase      domain.Phase
	sub        domain.SubPhase
	round      int
	players    []domain.Combatant
	matchups   map[string]string
	moves      map[string]domain.Move
	turnLog    []domain.TurnResult
	message    string
	deadline   time.Time
	gen        uint64
	winner     int
	summary    *domain.MatchSummary
	roundKills map[string]int
	fallen     map[string]bool
	opponents  map[string]string
	shown      map[string]shownGear
	revealed   bool
	subs       map[int]chan domain.Snapshot
	nextSub    int
}

// NewEngine creates an engine for a balanced roster
func NewEngine(cfg Config, roster []domain.Combatant) (*Engine, error) {
	if !Balanced(roster) {
		return nil, ErrUnbalancedTeams
	}
	if cfg.MatchID == "" {
		cfg.MatchID = uuid.NewString()
	}
	if cfg.Mode == "" {
		cfg.Mode = domain.ModeMultiplayer
	}
	if cfg.Timings == (Timings{}) {
		cfg.Timings = DefaultTimings()
	}
	cfg.Settings = normalizeSettings(cfg.Settings)
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.RNG == nil {
		cfg.RNG = combat.DefaultRNG{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		cfg:        cfg,
		clock:      cfg.Clock,
		rng:        cfg.RNG,
		events:     make(chan domain.Event, 100),
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
		phase:      domain.PhaseLobbyRoom,
		players:    slices.Clone(roster),
		matchups:   make(map[string]string),
		moves:      make(map[string]domain.Move),
		roundKills: make(map[string]int),
		fallen:     make(map[string]bool),
		opponents:  make(map[string]string),
		shown:      make(map[string]shownGear),
		subs:       make(map[int]chan domain.Snapshot),
	}, nil
}

// NewSolo creates a solo engine pitting human against one bot of the same level
func NewSolo(cfg Config, human domain.Combatant, rng *rand.Rand) (*Engine, error) {
	cfg.Mode = domain.ModeSolo
	cfg.Settings.MatchType = domain.Match1v1
	human.TeamID = Team1
	human.IsHost = true
	bot := NewBot(human.Level, Team2, rng)
	return NewEngine(cfg, []domain.Combatant{human, bot})
}

// ID returns the match id
func (e *Engine) ID() string {
	return e.cfg.MatchID
}

// Mode returns the game mode
func (e *Engine) Mode() domain.GameMode {
	return e.cfg.Mode
}

// Events returns the event channel for observers
func (e *Engine) Events() <-chan domain.Event {
	return e.events
}

// Done is closed when the engine is closed
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Start begins the match at round 1 INTRO
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if e.started {
		return ErrAlreadyStarted
	}
	e.started = true
	e.phase = domain.PhaseCombat
	e.round = 1
	for i := range e.players {
		c := &e.players[i]
		c.RoundsWon = 0
		c.MatchCash = catalog.MatchStartingCash
		c.CumulativeHealth = 0
		c.SuccessfulActions = 0
		c.Stats = domain.MatchStats{}
		c.Resupply()
	}
	e.matchups = Matchups(e.players)
	log.Printf("Match %s: starting with %d combatants", e.cfg.MatchID, len(e.players))
	e.emitEvent(domain.EventMatchStart, nil)
	e.enterLocked(domain.SubIntro)
	return nil
}

// Commit locks a combatant's move for the current decision window.
// Unaffordable moves are downgraded to IDLE rather than rejected.
func (e *Engine) Commit(id string, action domain.Action, intensity int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if e.phase != domain.PhaseCombat || e.sub != domain.SubDecision {
		return ErrWrongPhase
	}
	i := e.indexLocked(id)
	if i < 0 {
		return ErrUnknownCombatant
	}
	c := e.players[i]
	if !c.Alive() || c.Forfeited {
		return ErrEliminated
	}
	if _, ok := e.moves[id]; ok {
		return ErrAlreadyCommitted
	}
	e.moves[id] = Validate(c, domain.Move{Action: action, Intensity: intensity, Round: e.round})
	e.maybeResolveEarlyLocked()
	return nil
}

// Buy spends match cash on a catalog item during SHOPPING
func (e *Engine) Buy(id, itemID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if e.phase != domain.PhaseCombat || e.sub != domain.SubShopping {
		return ErrWrongPhase
	}
	i := e.indexLocked(id)
	if i < 0 {
		return ErrUnknownCombatant
	}
	it := catalog.Item(itemID)
	if it == nil {
		return ErrUnknownItem
	}
	c := &e.players[i]
	if c.MatchCash < it.MatchCost {
		return ErrInsufficientFunds
	}
	c.MatchCash -= it.MatchCost
	c.Equip(it)
	log.Printf("Match %s: %s bought %s", e.cfg.MatchID, c.Name, it.Name)
	e.publishLocked()
	return nil
}

// Loot takes an item from the duel opponent defeated this round. Only
// strict upgrades can be taken.
func (e *Engine) Loot(id, itemID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if e.phase != domain.PhaseCombat || e.sub != domain.SubRoundOver {
		return ErrWrongPhase
	}
	i := e.indexLocked(id)
	if i < 0 {
		return ErrUnknownCombatant
	}
	oppID, ok := e.opponents[id]
	if !ok || !e.fallen[oppID] || e.fallen[id] {
		return ErrNotDefeated
	}
	it := catalog.Item(itemID)
	if it == nil {
		return ErrUnknownItem
	}
	opp := e.players[e.indexLocked(oppID)]
	if opp.Slot(it.Kind) != it {
		return ErrNotOwned
	}
	c := &e.players[i]
	if cur := c.Slot(it.Kind); cur != nil && domain.CompareItems(it, cur) <= 0 {
		return ErrNotBetter
	}
	c.Equip(it)
	log.Printf("Match %s: %s looted %s from %s", e.cfg.MatchID, c.Name, it.Name, opp.Name)
	e.publishLocked()
	return nil
}

// Forfeit removes a combatant from play. Its team loses the round when no
// one else is left standing and the match when no one is left at all.
func (e *Engine) Forfeit(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	i := e.indexLocked(id)
	if i < 0 {
		return ErrUnknownCombatant
	}
	c := &e.players[i]
	if c.Forfeited {
		return nil
	}
	c.Forfeited = true
	c.Health = 0
	if opp, ok := e.matchups[id]; ok {
		delete(e.matchups, opp)
		delete(e.matchups, id)
	}
	delete(e.moves, id)
	log.Printf("Match %s: %s forfeited", e.cfg.MatchID, c.Name)
	e.emitEvent(domain.EventPlayerLeave, domain.PlayerLeaveEvent{PlayerID: id, Name: c.Name, Forfeited: true})

	if !e.started || e.phase != domain.PhaseCombat {
		e.publishLocked()
		return nil
	}
	team := c.TeamID
	other := otherTeam(team)
	remaining := 0
	for _, p := range e.players {
		if p.TeamID == team && !p.Forfeited {
			remaining++
		}
	}
	switch {
	case remaining == 0:
		e.endMatchLocked(other)
	case AliveCount(e.players, team) == 0 && e.sub != domain.SubRoundOver:
		e.endRoundLocked(other)
	case e.sub == domain.SubDecision:
		e.publishLocked()
		e.maybeResolveEarlyLocked()
	default:
		e.publishLocked()
	}
	return nil
}

// Leave handles a combatant walking away. In solo play, or when the host
// leaves, the whole match is torn down; otherwise the combatant forfeits.
func (e *Engine) Leave(id string) error {
	e.mu.Lock()
	i := e.indexLocked(id)
	teardown := e.cfg.Mode == domain.ModeSolo || (i >= 0 && e.players[i].IsHost)
	e.mu.Unlock()
	if i < 0 {
		return ErrUnknownCombatant
	}
	if teardown {
		e.Close()
		return nil
	}
	return e.Forfeit(id)
}

// Close cancels the pending deadline and any in-flight bot decisions.
// Nothing transitions after Close returns.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.gen++
	e.deadline = time.Time{}
	if e.summary == nil {
		e.phase = domain.PhaseMainMenu
		e.message = "MATCH ABANDONED"
	}
	e.publishLocked()
	close(e.done)
	e.cancel()
	e.mu.Unlock()

	e.wg.Wait()
	log.Printf("Match %s: closed", e.cfg.MatchID)
}

// Poll runs every transition whose deadline has passed. It reports whether
// anything changed.
func (e *Engine) Poll() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.advanceDueLocked()
}

// NextDeadline returns the pending deadline and its generation
func (e *Engine) NextDeadline() (time.Time, uint64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.deadline.IsZero() {
		return time.Time{}, e.gen, false
	}
	return e.deadline, e.gen, true
}

// fire is the runner's wake-up. A generation mismatch means the deadline
// it waited on was replaced.
func (e *Engine) fire(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.gen {
		return
	}
	e.advanceDueLocked()
}

func (e *Engine) advanceDueLocked() bool {
	changed := false
	for !e.closed && !e.deadline.IsZero() && !e.clock.Now().Before(e.deadline) {
		e.advanceLocked()
		changed = true
	}
	return changed
}

// advanceLocked leaves the current sub-phase
func (e *Engine) advanceLocked() {
	switch e.sub {
	case domain.SubIntro:
		e.enterLocked(domain.SubShopping)
	case domain.SubShopping:
		e.enterLocked(domain.SubDecision)
	case domain.SubDecision:
		e.resolveLocked()
		e.enterLocked(domain.SubResolution)
	case domain.SubResolution:
		if !e.checkRoundLocked() {
			e.enterLocked(domain.SubPreparation)
		}
	case domain.SubPreparation:
		e.enterLocked(domain.SubDecision)
	case domain.SubRoundOver:
		e.round++
		e.enterLocked(domain.SubIntro)
	}
}

// enterLocked switches sub-phase and arms the one deadline
func (e *Engine) enterLocked(sub domain.SubPhase) {
	e.sub = sub
	var d time.Duration
	switch sub {
	case domain.SubIntro:
		d = e.cfg.Timings.Intro
		e.message = fmt.Sprintf("ROUND %d", e.round)
		e.turnLog = nil
		e.roundKills = make(map[string]int)
		e.fallen = make(map[string]bool)
		e.revealed = false
		for _, c := range e.players {
			e.shown[c.ID] = gearOf(c)
		}
		e.emitEvent(domain.EventRoundStart, map[string]int{"round": e.round})
	case domain.SubShopping:
		d = e.cfg.Timings.Shopping
		e.message = "TACTICAL SHOP OPEN"
	case domain.SubDecision:
		d = e.cfg.Settings.TimeFormat.Duration()
		e.message = "MAKE YOUR MOVE"
		clear(e.moves)
		e.matchups = Rematch(e.players, e.matchups)
	case domain.SubResolution:
		d = e.cfg.Timings.Resolution
		e.message = "TURN RESOLVED"
	case domain.SubPreparation:
		d = e.cfg.Timings.Preparation
		e.message = "PREPARE"
	case domain.SubRoundOver:
		d = e.cfg.Timings.RoundOver
	}
	e.setDeadlineLocked(e.clock.Now().Add(d))
	e.publishLocked()
	if sub == domain.SubDecision {
		e.requestBotMovesLocked()
	}
}

func (e *Engine) setDeadlineLocked(t time.Time) {
	e.gen++
	e.deadline = t
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// maybeResolveEarlyLocked ends DECISION once every dueling combatant has a
// move. Bots count as committed when no provider will answer for them.
func (e *Engine) maybeResolveEarlyLocked() {
	if !e.cfg.EarlyResolve || e.sub != domain.SubDecision || len(e.matchups) == 0 {
		return
	}
	for id := range e.matchups {
		if _, ok := e.moves[id]; ok {
			continue
		}
		i := e.indexLocked(id)
		if i >= 0 && e.players[i].IsBot && e.cfg.AI == nil {
			continue
		}
		return
	}
	e.advanceLocked()
}

func (e *Engine) requestBotMovesLocked() {
	if e.cfg.AI == nil {
		return
	}
	gen := e.gen
	for id, oppID := range e.matchups {
		i := e.indexLocked(id)
		if i < 0 || !e.players[i].IsBot {
			continue
		}
		self := e.players[i]
		opp := e.players[e.indexLocked(oppID)]
		var history []domain.TurnResult
		for _, tr := range e.turnLog {
			if tr.Involves(id) {
				history = append(history, tr)
			}
		}
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			d, err := e.cfg.AI.Move(e.ctx, self, opp, history)
			if err != nil {
				log.Printf("Warning: no AI move for %s: %v", self.Name, err)
				return
			}
			e.commitBot(gen, self.ID, d)
		}()
	}
}

func (e *Engine) commitBot(gen uint64, id string, d ai.Decision) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || gen != e.gen || e.sub != domain.SubDecision {
		return
	}
	if _, ok := e.moves[id]; ok {
		return
	}
	i := e.indexLocked(id)
	if i < 0 {
		return
	}
	e.moves[id] = Validate(e.players[i], domain.Move{Action: d.Action, Intensity: d.Intensity, Round: e.round})
	e.maybeResolveEarlyLocked()
}

// resolveLocked takes the moves committed so far and resolves every duel
func (e *Engine) resolveLocked() {
	for _, d := range CollectAndPair(e.moves, e.matchups, e.players) {
		out := combat.Resolve(d.A, d.B, e.rng)
		a, b := d.A.Combatant, d.B.Combatant
		if b.Alive() && !out.B.Alive() {
			out.A.Stats.Kills++
			e.roundKills[a.ID]++
		}
		if a.Alive() && !out.A.Alive() {
			out.B.Stats.Kills++
			e.roundKills[b.ID]++
		}
		e.players[d.AIndex] = out.A
		e.players[d.BIndex] = out.B
		e.opponents[a.ID] = b.ID
		e.opponents[b.ID] = a.ID

		tr := domain.TurnResult{
			Round:       e.round,
			AID:         a.ID,
			BID:         b.ID,
			AAction:     d.A.Action,
			BAction:     d.B.Action,
			AIntensity:  d.A.Intensity,
			BIntensity:  d.B.Intensity,
			DamageA:     out.DamageA,
			DamageB:     out.DamageB,
			PenaltyA:    out.PenaltyA,
			PenaltyB:    out.PenaltyB,
			Events:      out.Events,
			Description: fmt.Sprintf("%s %s vs %s %s", a.Name, d.A.Action, b.Name, d.B.Action),
		}
		e.turnLog = append(e.turnLog, tr)
		e.emitEvent(domain.EventTurnResolved, tr)
	}
	e.revealed = true
}

// checkRoundLocked ends the round when a team has nobody standing
func (e *Engine) checkRoundLocked() bool {
	t1 := AliveCount(e.players, Team1)
	t2 := AliveCount(e.players, Team2)
	if t1 > 0 && t2 > 0 {
		return false
	}
	winner := 0
	switch {
	case t1 > 0:
		winner = Team1
	case t2 > 0:
		winner = Team2
	}
	e.endRoundLocked(winner)
	return true
}

// endRoundLocked pays out the round. winner 0 is a double elimination:
// nobody scores and the round is replayed.
func (e *Engine) endRoundLocked(winner int) {
	for i := range e.players {
		c := &e.players[i]
		won := winner != 0 && c.TeamID == winner
		cash := catalog.RoundLossCash
		if won {
			c.RoundsWon++
			cash = catalog.RoundWinCash
		}
		if c.Alive() {
			cash += catalog.SurvivalBonus
		}
		cash += catalog.KillBonus * e.roundKills[c.ID]
		c.MatchCash += cash
		e.fallen[c.ID] = !c.Alive()
	}
	e.emitEvent(domain.EventRoundEnd, domain.RoundEndEvent{Round: e.round, WinnerTeam: winner, Draw: winner == 0})
	log.Printf("Match %s: round %d over, winner team %d", e.cfg.MatchID, e.round, winner)

	if winner != 0 && e.teamWinsLocked(winner) >= e.cfg.Settings.WinThreshold() {
		e.endMatchLocked(winner)
		return
	}
	if e.round >= 2*e.cfg.Settings.MaxRounds {
		e.endMatchLocked(e.tiebreakLocked())
		return
	}

	for i := range e.players {
		if !e.players[i].Forfeited {
			e.players[i].Resupply()
		}
	}
	if winner == 0 {
		e.message = fmt.Sprintf("ROUND %d DRAWN", e.round)
	} else {
		e.message = fmt.Sprintf("ROUND %d OVER", e.round)
	}
	e.enterLocked(domain.SubRoundOver)
}

func (e *Engine) teamWinsLocked(team int) int {
	wins := 0
	for _, c := range e.players {
		if c.TeamID == team {
			wins = max(wins, c.RoundsWon)
		}
	}
	return wins
}

// tiebreakLocked decides a match that hit the round cap: most rounds won,
// then most cumulative health, then team 1.
func (e *Engine) tiebreakLocked() int {
	w1, w2 := e.teamWinsLocked(Team1), e.teamWinsLocked(Team2)
	if w1 != w2 {
		if w1 > w2 {
			return Team1
		}
		return Team2
	}
	var h1, h2 float64
	for _, c := range e.players {
		if c.TeamID == Team1 {
			h1 += c.CumulativeHealth
		} else {
			h2 += c.CumulativeHealth
		}
	}
	if h2 > h1 {
		return Team2
	}
	return Team1
}

// endMatchLocked builds the summary and moves to the outer end phase
func (e *Engine) endMatchLocked(winner int) {
	avgElo := func(team int) int {
		members := TeamMembers(e.players, team)
		if len(members) == 0 {
			return catalog.StartingElo
		}
		total := 0
		for _, c := range members {
			total += c.Elo
		}
		return total / len(members)
	}

	summary := &domain.MatchSummary{
		MatchID:    e.cfg.MatchID,
		Mode:       e.cfg.Mode,
		WinnerTeam: winner,
		Rounds:     e.round,
		EndedAt:    e.clock.Now(),
	}
	humanWon := false
	for _, c := range e.players {
		won := c.TeamID == winner && !c.Forfeited
		oppName := ""
		if i := e.indexLocked(e.opponents[c.ID]); i >= 0 {
			oppName = e.players[i].Name
		}
		summary.Outcomes = append(summary.Outcomes, domain.CombatantOutcome{
			ID:           c.ID,
			Name:         c.Name,
			TeamID:       c.TeamID,
			IsBot:        c.IsBot,
			Won:          won,
			EloChange:    progression.EloDelta(c.Elo, avgElo(otherTeam(c.TeamID)), won),
			OpponentName: oppName,
			Stats:        c.Stats,
		})
		if !c.IsBot && won {
			humanWon = true
		}
	}

	e.summary = summary
	e.winner = winner
	e.sub = domain.SubRoundOver
	e.gen++
	e.deadline = time.Time{}
	switch {
	case e.cfg.Mode == domain.ModeSolo && humanWon:
		e.phase = domain.PhaseVictory
		e.message = "VICTORY"
	case e.cfg.Mode == domain.ModeSolo:
		e.phase = domain.PhaseGameOver
		e.message = "DEFEAT"
	default:
		e.phase = domain.PhasePostMatch
		e.message = fmt.Sprintf("TEAM %d WINS", winner)
	}
	log.Printf("Match %s: over after %d rounds, team %d wins", e.cfg.MatchID, e.round, winner)
	e.emitEvent(domain.EventMatchEnd, summary)
	e.publishLocked()
}

// Snapshot returns the full authoritative state
func (e *Engine) Snapshot() domain.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// SnapshotFor returns the state as one viewer may see it: until the first
// resolution of a round, other players' gear, ammo, armor and cash show
// what they entered the round with, hiding fresh purchases.
func (e *Engine) SnapshotFor(viewerID string) domain.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.snapshotLocked()
	if e.revealed || (e.sub != domain.SubShopping && e.sub != domain.SubDecision) {
		return s
	}
	for i := range s.Players {
		p := &s.Players[i]
		if p.ID == viewerID {
			continue
		}
		if g, ok := e.shown[p.ID]; ok {
			g.apply(p)
		}
	}
	return s
}

func (e *Engine) snapshotLocked() domain.Snapshot {
	now := e.clock.Now()
	s := domain.Snapshot{
		MatchID:     e.cfg.MatchID,
		Phase:       e.phase,
		SubPhase:    e.sub,
		Mode:        e.cfg.Mode,
		Round:       e.round,
		MaxRounds:   e.cfg.Settings.MaxRounds,
		Players:     slices.Clone(e.players),
		Matchups:    maps.Clone(e.matchups),
		TurnLog:     slices.Clone(e.turnLog),
		Message:     e.message,
		PhaseEndsAt: e.deadline,
		WinnerTeam:  e.winner,
		Summary:     e.summary,
	}
	s.TimeLeft = s.Remaining(now).Seconds()
	return s
}

// Subscribe returns a channel that always holds the latest snapshot. A
// slow reader skips intermediate states. The returned func unsubscribes.
func (e *Engine) Subscribe() (<-chan domain.Snapshot, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ch := make(chan domain.Snapshot, 1)
	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch
	if e.started {
		ch <- e.snapshotLocked()
	}
	return ch, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.subs, id)
	}
}

// publishLocked replaces whatever each subscriber has not read yet
func (e *Engine) publishLocked() {
	if len(e.subs) == 0 {
		return
	}
	s := e.snapshotLocked()
	for _, ch := range e.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}

// emitEvent sends an event to the event channel
func (e *Engine) emitEvent(typ string, data any) {
	event := domain.Event{Type: typ, MatchID: e.cfg.MatchID, Timestamp: e.clock.Now(), Data: data}
	select {
	case e.events <- event:
	default:
		// Channel full, drop event
	}
}

func (e *Engine) indexLocked(id string) int {
	return slices.IndexFunc(e.players, func(c domain.Combatant) bool { return c.ID == id })
}

func otherTeam(team int) int {
	if team == Team1 {
		return Team2
	}
	return Team1
}
