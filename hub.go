package main

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxNameLength caps player display names.
const maxNameLength = 8

// chatHistoryLimit bounds the public chat buffer replayed to fresh logins.
const chatHistoryLimit = 100

// pairKey identifies a match by its unordered participant pair.
type pairKey struct {
	a, b string
}

func newPairKey(x, y string) pairKey {
	if x > y {
		x, y = y, x
	}
	return pairKey{a: x, b: y}
}

func (k pairKey) other(name string) string {
	if k.a == name {
		return k.b
	}
	return k.a
}

// challengeKey is a pending, directed challenge intent.
type challengeKey struct {
	challenger, target string
}

func (k challengeKey) mentions(name string) bool {
	return k.challenger == name || k.target == name
}

// match is an active two-player race: the shared maze, each player's last
// reported tile, and the winner once someone reaches the goal.
type match struct {
	maze      *Maze
	positions map[string]Tile
	winner    string
}

// delivery pairs an envelope with its target so handlers can collect
// outbound traffic under the lock and send it after release.
type delivery struct {
	to  *client
	env Envelope
}

// Hub owns every piece of shared state: the presence registry, challenge
// table, match table, chat history, and liveness timestamps. All mutation
// happens under one mutex; socket I/O never does. Handlers snapshot their
// targets while locked, unlock, then enqueue, and a failed enqueue removes
// only that one target via the same teardown path as a disconnect.
type Hub struct {
	cfg *Config
	log *zap.SugaredLogger

	mu          sync.Mutex
	clients     map[uuid.UUID]*client
	names       map[string]*client
	owners      map[uuid.UUID]string
	scores      map[string]int
	challenges  map[challengeKey]struct{}
	matches     map[pairKey]*match
	playerMatch map[string]pairKey
	chat        []string
	lastSeen    map[uuid.UUID]time.Time

	rng *rand.Rand
}

func NewHub(cfg *Config, log *zap.SugaredLogger) *Hub {
	return &Hub{
		cfg:         cfg,
		log:         log,
		clients:     make(map[uuid.UUID]*client),
		names:       make(map[string]*client),
		owners:      make(map[uuid.UUID]string),
		scores:      make(map[string]int),
		challenges:  make(map[challengeKey]struct{}),
		matches:     make(map[pairKey]*match),
		playerMatch: make(map[string]pairKey),
		lastSeen:    make(map[uuid.UUID]time.Time),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// register adds a freshly accepted connection to the live set.
func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.lastSeen[c.id] = time.Now()
	h.mu.Unlock()

	h.log.Infow("connection registered", "client", c.id, "remote", c.wire.RemoteAddr())
}

// ClientCount reports how many sockets are currently registered, logged in
// or not. The accept loop uses it to enforce the connection cap.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// dispatch routes one inbound envelope to its handler. Every inbound
// message, whatever its tag, refreshes the sender's liveness timestamp.
// Unknown tags are ignored, not faulted.
func (h *Hub) dispatch(c *client, env Envelope) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; ok {
		h.lastSeen[c.id] = time.Now()
	}
	h.mu.Unlock()

	switch env.Tag {
	case TagLoginAttempt:
		h.handleLogin(c, env)
	case TagDisconnect:
		h.handleDisconnect(c, env)
	case TagCreateChallenge:
		h.handleCreateChallenge(c, env)
	case TagDeleteChallenge:
		h.handleDeleteChallenge(c, env)
	case TagAcceptChallenge:
		h.handleAcceptChallenge(c, env)
	case TagChangePosition:
		h.handleChangePosition(c, env)
	case TagLeavingGame:
		h.handleLeavingGame(c, env)
	case TagWonReport:
		h.handleWinReport(c)
	case TagPublicMessage:
		h.handlePublicMessage(c, env)
	case TagPrivateMessage:
		h.handlePrivateMessage(c, env)
	case TagHeartbeat:
		h.handleHeartbeat(c)
	default:
		h.log.Debugw("ignoring unknown tag", "tag", env.Tag, "client", c.id)
	}
}

// deliver enqueues each envelope independently. A full or dead target is
// removed from all registries without aborting delivery to the rest.
func (h *Hub) deliver(ds []delivery) {
	var failed []*client

	for _, d := range ds {
		if !d.to.enqueue(d.env) {
			failed = append(failed, d.to)
		}
	}

	for _, c := range failed {
		h.log.Warnw("delivery failed, removing client", "client", c.id)
		h.teardown(c)
	}
}

// teardown removes a connection from every registry, cascades match and
// challenge invalidation if it owned a player, notifies the affected peers,
// and closes the socket. Idempotent: the reader path and the heartbeat
// monitor may both invoke it for the same connection.
func (h *Hub) teardown(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; !ok {
		h.mu.Unlock()
		c.close()
		return
	}

	delete(h.clients, c.id)
	delete(h.lastSeen, c.id)

	var ds []delivery
	name := h.owners[c.id]
	if name != "" {
		delete(h.owners, c.id)
		ds = h.removePlayerLocked(name, c)
	}
	h.mu.Unlock()

	c.close()
	h.log.Infow("connection torn down", "client", c.id, "player", name)
	h.deliver(ds)
}

// removePlayerLocked cascades a player's removal: every match containing
// them is closed with the opponent notified and freed, every challenge
// mentioning them is invalidated, and the remaining sockets get a fresh
// presence snapshot. Caller holds the lock.
func (h *Hub) removePlayerLocked(name string, departing *client) []delivery {
	delete(h.names, name)
	delete(h.scores, name)

	var ds []delivery

	if key, ok := h.playerMatch[name]; ok {
		opponent := key.other(name)
		delete(h.matches, key)
		delete(h.playerMatch, name)
		delete(h.playerMatch, opponent)

		if oc, ok := h.names[opponent]; ok {
			ds = append(ds, delivery{to: oc, env: envelopeOf(TagLeftGame, name)})
		}
	}

	for key := range h.challenges {
		if !key.mentions(name) {
			continue
		}
		delete(h.challenges, key)

		// The withdrawn side learns about it the same way an explicit
		// withdrawal would tell them.
		if key.challenger == name {
			if tc, ok := h.names[key.target]; ok {
				ds = append(ds, delivery{to: tc, env: envelopeOf(TagDeleteChallenge, name)})
			}
		}
	}

	update := envelopeOf(TagUserCountChange, h.presenceLocked())
	for _, other := range h.clients {
		if departing != nil && other.id == departing.id {
			continue
		}
		ds = append(ds, delivery{to: other, env: update})
	}

	return ds
}

func (h *Hub) presenceLocked() PresenceUpdate {
	names := make([]string, 0, len(h.names))
	for name := range h.names {
		names = append(names, name)
	}
	sort.Strings(names)

	scores := make(map[string]int, len(h.scores))
	for name, score := range h.scores {
		scores[name] = score
	}

	return PresenceUpdate{Names: names, Scores: scores}
}

func (h *Hub) handleLogin(c *client, env Envelope) {
	var name string
	if err := env.decode(&name); err != nil {
		h.log.Debugw("bad login payload", "client", c.id, "error", err)
		return
	}

	h.mu.Lock()

	if name == "" || len(name) > maxNameLength {
		h.mu.Unlock()
		h.log.Debugw("login rejected", "name", name, "error", ErrNameInvalid)
		h.deliver([]delivery{{to: c, env: envelopeOf(TagWrongLoginName, nil)}})
		return
	}
	if _, taken := h.names[name]; taken {
		h.mu.Unlock()
		h.log.Debugw("login rejected", "name", name, "error", ErrNameTaken)
		h.deliver([]delivery{{to: c, env: envelopeOf(TagWrongLoginName, nil)}})
		return
	}

	h.names[name] = c
	h.owners[c.id] = name
	h.scores[name] = 0

	presence := h.presenceLocked()
	snapshot := LoginSnapshot{
		Names:  presence.Names,
		Scores: presence.Scores,
		Chat:   append([]string(nil), h.chat...),
	}
	for key := range h.matches {
		snapshot.Matches = append(snapshot.Matches, [2]string{key.a, key.b})
	}

	ds := []delivery{{to: c, env: envelopeOf(TagLoginSuccessful, snapshot)}}

	update := envelopeOf(TagUserCountChange, presence)
	for _, other := range h.clients {
		if other.id == c.id {
			continue
		}
		ds = append(ds, delivery{to: other, env: update})
	}
	h.mu.Unlock()

	h.log.Infow("player logged in", "player", name, "client", c.id)
	h.deliver(ds)
}

// handleDisconnect is the explicit logout path; the cascade is the same one
// an I/O fault triggers.
func (h *Hub) handleDisconnect(c *client, env Envelope) {
	var name string
	_ = env.decode(&name)

	h.teardown(c)
}

func (h *Hub) handleCreateChallenge(c *client, env Envelope) {
	var target string
	if err := env.decode(&target); err != nil {
		return
	}

	h.mu.Lock()
	challenger, ok := h.owners[c.id]
	if !ok {
		h.mu.Unlock()
		return
	}

	h.challenges[challengeKey{challenger: challenger, target: target}] = struct{}{}

	// The target may have just disconnected; the challenge notice is then
	// dropped silently, not faulted.
	tc, online := h.names[target]
	h.mu.Unlock()

	h.log.Infow("challenge created", "challenger", challenger, "target", target)

	if online {
		h.deliver([]delivery{{to: tc, env: envelopeOf(TagReceivedChallenge, challenger)}})
	}
}

func (h *Hub) handleDeleteChallenge(c *client, env Envelope) {
	var target string
	if err := env.decode(&target); err != nil {
		return
	}

	h.mu.Lock()
	challenger, ok := h.owners[c.id]
	if !ok {
		h.mu.Unlock()
		return
	}

	delete(h.challenges, challengeKey{challenger: challenger, target: target})
	tc, online := h.names[target]
	h.mu.Unlock()

	h.log.Infow("challenge withdrawn", "challenger", challenger, "target", target)

	if online {
		h.deliver([]delivery{{to: tc, env: envelopeOf(TagDeleteChallenge, challenger)}})
	}
}

// handleAcceptChallenge promotes a pending challenge into a match. The only
// precondition is that neither party currently owns a match; acceptance
// while either does is rejected so a player is never in two matches at
// once.
func (h *Hub) handleAcceptChallenge(c *client, env Envelope) {
	var challenger string
	if err := env.decode(&challenger); err != nil {
		return
	}

	h.mu.Lock()
	acceptor, ok := h.owners[c.id]
	if !ok {
		h.mu.Unlock()
		return
	}

	cc, online := h.names[challenger]
	if !online || challenger == acceptor {
		h.mu.Unlock()
		h.log.Debugw("accept dropped", "acceptor", acceptor, "challenger", challenger, "error", ErrUnknownPeer)
		return
	}

	if _, busy := h.playerMatch[acceptor]; busy {
		h.mu.Unlock()
		h.log.Warnw("accept rejected", "player", acceptor, "error", ErrAlreadyInMatch)
		return
	}
	if _, busy := h.playerMatch[challenger]; busy {
		h.mu.Unlock()
		h.log.Warnw("accept rejected", "player", challenger, "error", ErrAlreadyInMatch)
		return
	}

	size := h.cfg.mazeMin + 2*h.rng.Intn((h.cfg.mazeMax-h.cfg.mazeMin)/2+1)
	maze, err := GenerateMaze(size, h.rng)
	if err != nil {
		h.mu.Unlock()
		h.log.Errorw("maze generation failed", "size", size, "error", err)
		return
	}

	starts := map[string]Tile{
		challenger: maze.Starts[0],
		acceptor:   maze.Starts[1],
	}

	key := newPairKey(challenger, acceptor)
	h.matches[key] = &match{
		maze: maze,
		positions: map[string]Tile{
			challenger: maze.Starts[0],
			acceptor:   maze.Starts[1],
		},
	}
	h.playerMatch[challenger] = key
	h.playerMatch[acceptor] = key

	// Both participants leave the challenge pool entirely; anyone still
	// holding a challenge that references either of them gets told to prune
	// it.
	voidTargets := make(map[string]*client)
	for ck := range h.challenges {
		if !ck.mentions(challenger) && !ck.mentions(acceptor) {
			continue
		}
		delete(h.challenges, ck)

		for _, party := range []string{ck.challenger, ck.target} {
			if party == challenger || party == acceptor {
				continue
			}
			if pc, ok := h.names[party]; ok {
				voidTargets[party] = pc
			}
		}
	}
	h.mu.Unlock()

	ds := []delivery{
		{to: cc, env: envelopeOf(TagAcceptedChallenge, AcceptedChallenge{
			Opponent: acceptor,
			Maze:     maze.payload(starts),
		})},
		{to: c, env: envelopeOf(TagAcceptedChallenge, AcceptedChallenge{
			Opponent: challenger,
			Maze:     maze.payload(starts),
		})},
	}

	void := envelopeOf(TagChallengeVoid, ChallengeVoid{Players: [2]string{challenger, acceptor}})
	for _, pc := range voidTargets {
		ds = append(ds, delivery{to: pc, env: void})
	}

	h.log.Infow("match started", "players", []string{challenger, acceptor}, "maze", size)
	h.deliver(ds)
}

// handleChangePosition records the mover's reported tile and relays it to
// the opponent. Tile adjacency and walkability are not re-checked here; the
// client validated the move against its own copy of the maze, and the
// server only evaluates the win condition. Deliberate trust boundary.
func (h *Hub) handleChangePosition(c *client, env Envelope) {
	var tile Tile
	if err := env.decode(&tile); err != nil {
		return
	}

	h.mu.Lock()
	name, ok := h.owners[c.id]
	if !ok {
		h.mu.Unlock()
		return
	}

	key, ok := h.playerMatch[name]
	if !ok {
		h.mu.Unlock()
		return
	}

	m := h.matches[key]
	m.positions[name] = tile

	won := tile == m.maze.Goal && m.winner == ""
	if won {
		m.winner = name
		h.scores[name]++
	}

	opponent, online := h.names[key.other(name)]

	var everyone []*client
	if won {
		everyone = make([]*client, 0, len(h.clients))
		for _, cl := range h.clients {
			everyone = append(everyone, cl)
		}
	}
	h.mu.Unlock()

	var ds []delivery
	if online {
		ds = append(ds, delivery{to: opponent, env: envelopeOf(TagOpponentMoved, tile)})
	}
	if won {
		h.log.Infow("player won", "player", name)
		winEnv := envelopeOf(TagPlayerWon, name)
		for _, cl := range everyone {
			ds = append(ds, delivery{to: cl, env: winEnv})
		}
	}

	h.deliver(ds)
}

// handleLeavingGame closes the leaver's match, freeing both players to
// accept new challenges. Unrelated sockets are not notified.
func (h *Hub) handleLeavingGame(c *client, env Envelope) {
	var opponentName string
	_ = env.decode(&opponentName)

	h.mu.Lock()
	name, ok := h.owners[c.id]
	if !ok {
		h.mu.Unlock()
		return
	}

	key, ok := h.playerMatch[name]
	if !ok {
		h.mu.Unlock()
		return
	}

	opponent := key.other(name)
	delete(h.matches, key)
	delete(h.playerMatch, name)
	delete(h.playerMatch, opponent)

	oc, online := h.names[opponent]
	h.mu.Unlock()

	h.log.Infow("player left match", "player", name, "opponent", opponent)

	if online {
		h.deliver([]delivery{{to: oc, env: envelopeOf(TagLeftGame, name)}})
	}
}

// handleWinReport is the manual win path: the client declares it reached
// the goal. The winner's score goes up and every connected socket hears
// about it.
func (h *Hub) handleWinReport(c *client) {
	h.mu.Lock()
	name, ok := h.owners[c.id]
	if !ok {
		h.mu.Unlock()
		return
	}

	h.scores[name]++
	if key, ok := h.playerMatch[name]; ok {
		if m := h.matches[key]; m.winner == "" {
			m.winner = name
		}
	}

	ds := make([]delivery, 0, len(h.clients))
	winEnv := envelopeOf(TagPlayerWon, name)
	for _, cl := range h.clients {
		ds = append(ds, delivery{to: cl, env: winEnv})
	}
	h.mu.Unlock()

	h.log.Infow("player reported win", "player", name)
	h.deliver(ds)
}

func (h *Hub) handlePublicMessage(c *client, env Envelope) {
	var text string
	if err := env.decode(&text); err != nil {
		return
	}

	h.mu.Lock()
	h.chat = append(h.chat, text)
	if len(h.chat) > chatHistoryLimit {
		h.chat = h.chat[len(h.chat)-chatHistoryLimit:]
	}

	ds := make([]delivery, 0, len(h.clients))
	for _, cl := range h.clients {
		if cl.id == c.id {
			continue
		}
		ds = append(ds, delivery{to: cl, env: env})
	}
	h.mu.Unlock()

	h.deliver(ds)
}

// handlePrivateMessage relays to the sender's current opponent only. With
// no active match, or an opponent that just vanished, the message is
// dropped rather than faulted.
func (h *Hub) handlePrivateMessage(c *client, env Envelope) {
	var text string
	if err := env.decode(&text); err != nil {
		return
	}

	h.mu.Lock()
	name, ok := h.owners[c.id]
	if !ok {
		h.mu.Unlock()
		return
	}

	key, ok := h.playerMatch[name]
	if !ok {
		h.mu.Unlock()
		return
	}

	oc, online := h.names[key.other(name)]
	h.mu.Unlock()

	if online {
		h.deliver([]delivery{{to: oc, env: env}})
	}
}

// handleHeartbeat echoes so the client can detect a dead server
// symmetrically. The liveness refresh already happened in dispatch.
func (h *Hub) handleHeartbeat(c *client) {
	h.deliver([]delivery{{to: c, env: envelopeOf(TagHeartbeat, nil)}})
}

// Stats summarizes the registries for the admin surface.
func (h *Hub) Stats() map[string]int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return map[string]int{
		"connections":        len(h.clients),
		"players":            len(h.names),
		"pending_challenges": len(h.challenges),
		"active_matches":     len(h.matches),
	}
}

// closeAll tears down every connection; used on shutdown.
func (h *Hub) closeAll() {
	h.mu.Lock()
	all := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		all = append(all, c)
	}
	h.mu.Unlock()

	for _, c := range all {
		h.teardown(c)
	}
}
