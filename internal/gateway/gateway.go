package gateway

import (
	"context"
	"fmt"

	"github.com/atriumverse/atrium/internal/presence"
	"github.com/atriumverse/atrium/internal/rooms"
	"github.com/atriumverse/atrium/internal/session"
	"github.com/atriumverse/atrium/internal/voice"
	"go.uber.org/zap"
)

// Gateway wires decoded events to the registries and computes the audience
// for every resulting emission. It holds no per-connection state of its
// own; everything lives in the registries and the hub.
type Gateway struct {
	hub      *Hub
	sessions *session.Registry
	rooms    *rooms.Registry
	voice    *voice.Registry
	presence *presence.Broadcaster
	logger   *zap.Logger
}

func New(hub *Hub, sessions *session.Registry, roomReg *rooms.Registry, voiceReg *voice.Registry, pb *presence.Broadcaster, logger *zap.Logger) *Gateway {
	return &Gateway{
		hub:      hub,
		sessions: sessions,
		rooms:    roomReg,
		voice:    voiceReg,
		presence: pb,
		logger:   logger,
	}
}

// HandleEvent dispatches one decoded inbound event. Events from the same
// connection arrive here sequentially (single read pump), which is the
// only ordering guarantee the service makes.
func (g *Gateway) HandleEvent(ctx context.Context, c *Client, ev Inbound) {
	switch e := ev.(type) {
	case PlayerCreate:
		g.handlePlayerCreate(ctx, c, e)
	case PlayerUpdate:
		g.handlePlayerUpdate(c, e)
	case PlayerDisconnect:
		g.handlePlayerDisconnect(c, e)
	case RoomCreate:
		g.handleRoomCreate(c, e)
	case RoomJoin:
		g.handleRoomJoin(c, e)
	case RoomLeave:
		g.handleRoomLeave(c, e)
	case RoomRoster:
		g.handleRoomRoster(c, e)
	case RPCRelay:
		g.handleRPCRelay(c, e)
	case VoiceJoin:
		g.handleVoiceJoin(c, e)
	case VoiceOffer:
		g.relaySignal(c, e.UserID, e.TargetUserID, EventVoiceOffer, VoiceOfferPayload{UserID: e.UserID, Offer: e.Offer})
	case VoiceAnswer:
		g.relaySignal(c, e.UserID, e.TargetUserID, EventVoiceAnswer, VoiceAnswerPayload{UserID: e.UserID, Answer: e.Answer})
	case VoiceCandidate:
		g.relaySignal(c, e.UserID, e.TargetUserID, EventVoiceCandidate, VoiceCandidatePayload{UserID: e.UserID, Candidate: e.Candidate})
	case VoiceMute:
		g.handleVoiceMute(c, e)
	case VoiceLeave:
		g.handleVoiceLeave(c, e)
	case Hello:
		g.hub.Emit(c.ID, AllOthers(), Event{Name: EventHello, Data: HelloPayload{
			Message: fmt.Sprintf("Hello from server! Received: %s", e.Value),
		}})
	}
}

// handlePlayerCreate announces a user. The social lookup happens before
// any registry mutation: if it fails, nothing changed and the client sees
// no reply.
func (g *Gateway) handlePlayerCreate(ctx context.Context, c *Client, e PlayerCreate) {
	snap, err := g.presence.Snapshot(ctx, e.UserID)
	if err != nil {
		g.logger.Error("presence snapshot failed, player not announced",
			zap.String("user_id", e.UserID),
			zap.Error(err),
		)
		return
	}

	g.sessions.CreateOrReplace(e.UserID, c.ID, e.Online)
	if e.AvatarID != "" {
		g.sessions.SetAvatar(e.UserID, e.AvatarID)
	}

	g.hub.Emit(c.ID, Self(), Event{Name: EventPlayerCreated, Data: PlayerCreated{
		UserID:      e.UserID,
		Friends:     snap.Friends,
		Invitations: snap.Invitations,
	}})

	if !e.Online {
		return
	}
	status := FriendStatusChanged{UserID: e.UserID, Online: true}
	for _, t := range g.presence.OnlineTargets(snap) {
		g.hub.Emit(c.ID, Peer(t.ConnectionID), Event{Name: EventFriendStatusChanged, Data: status})
	}
}

func (g *Gateway) handlePlayerUpdate(c *Client, e PlayerUpdate) {
	g.sessions.UpdatePosition(e.UserID, e.RoomID, c.ID, e.Position, e.Rotation)
	g.hub.Emit(c.ID, RoomOthers(e.RoomID), Event{Name: EventPlayerMoved, Data: PlayerMoved{
		UserID:   e.UserID,
		Position: e.Position,
		Rotation: e.Rotation,
	}})
}

func (g *Gateway) handlePlayerDisconnect(c *Client, e PlayerDisconnect) {
	g.sessions.Remove(e.UserID)
	g.rooms.RemoveMember(e.RoomID, e.UserID)
	g.hub.Emit(c.ID, RoomOthers(e.RoomID), Event{Name: EventPlayerDisconnected, Data: PlayerDisconnected{
		UserID: e.UserID,
	}})
	g.hub.Unsubscribe(c.ID, e.RoomID)
}

func (g *Gateway) handleRoomCreate(c *Client, e RoomCreate) {
	room := g.rooms.Create(e.UserID, c.ID, e.DisplayName)
	g.hub.Subscribe(c.ID, room.ID)
	g.hub.Emit(c.ID, Self(), Event{Name: EventRoomCreated, Data: RoomCreated{RoomID: room.ID}})
	g.logger.Info("room created",
		zap.String("room_id", room.ID),
		zap.String("user_id", e.UserID),
	)
}

func (g *Gateway) handleRoomJoin(c *Client, e RoomJoin) {
	var others []string
	for _, roomID := range g.rooms.MembershipsOf(e.UserID) {
		if roomID != e.RoomID {
			others = append(others, roomID)
		}
	}
	if len(others) > 0 {
		g.logger.Warn("user joining room while member of another",
			zap.String("user_id", e.UserID),
			zap.String("room_id", e.RoomID),
			zap.Strings("other_rooms", others),
		)
	}

	if !g.rooms.AddMember(e.RoomID, c.ID, e.UserID, e.DisplayName) {
		g.hub.Emit(c.ID, Self(), Event{Name: EventError, Data: ErrorPayload{
			Code:    "room_not_found",
			Message: "room " + e.RoomID + " does not exist",
		}})
		return
	}

	g.hub.Subscribe(c.ID, e.RoomID)
	g.hub.Emit(c.ID, RoomOthers(e.RoomID), Event{Name: EventRoomJoined, Data: RoomJoinedPeer{
		UserID:      e.UserID,
		DisplayName: e.DisplayName,
	}})
	g.hub.Emit(c.ID, Self(), Event{Name: EventRoomJoined, Data: RoomJoinedSelf{RoomID: e.RoomID}})
}

// handleRoomLeave also tears down voice participation: leaving a room
// implies leaving its voice chat.
func (g *Gateway) handleRoomLeave(c *Client, e RoomLeave) {
	if peer, ok := g.voice.GetPeer(c.ID); ok && peer.RoomID == e.RoomID {
		g.voice.RemovePeer(c.ID)
		g.hub.Emit(c.ID, RoomOthers(e.RoomID), Event{Name: EventVoiceUserLeft, Data: VoiceUserLeft{UserID: peer.UserID}})
	}
	g.rooms.RemoveMember(e.RoomID, e.UserID)
	g.hub.Emit(c.ID, RoomOthers(e.RoomID), Event{Name: EventRoomLeft, Data: RoomLeft{UserID: e.UserID}})
	g.hub.Unsubscribe(c.ID, e.RoomID)
}

func (g *Gateway) handleRoomRoster(c *Client, e RoomRoster) {
	room, ok := g.rooms.Get(e.RoomID)
	if !ok {
		return
	}

	members := g.rooms.ListMembers(e.RoomID)
	players := make([]RoomUserEntry, 0, len(members))
	for _, m := range members {
		players = append(players, RoomUserEntry{
			UserID:       m.UserID,
			ConnectionID: m.ConnectionID,
			DisplayName:  m.DisplayName,
		})
	}
	g.hub.Emit(c.ID, Self(), Event{Name: EventRoomUsers, Data: RoomUsers{
		Room: RoomInfo{
			RoomID:    room.ID,
			Timestamp: room.CreatedAt.UnixMilli(),
			Players:   players,
		},
	}})
}

func (g *Gateway) handleRPCRelay(c *Client, e RPCRelay) {
	payload := RPCPayload{
		Method:      e.Method,
		Value:       e.Value,
		UserID:      e.UserID,
		DisplayName: e.DisplayName,
	}
	ev := Event{Name: EventRPCRelay, Data: payload}

	switch e.Target {
	case "me":
		g.hub.Emit(c.ID, Self(), ev)
	case "others":
		g.hub.Emit(c.ID, RoomOthers(e.RoomID), ev)
	case "all":
		g.hub.Emit(c.ID, RoomAll(e.RoomID), ev)
	default:
		g.logger.Warn("rpc relay with unknown target",
			zap.String("target", e.Target),
			zap.String("connection_id", c.ID),
		)
	}
}

// handleVoiceJoin snapshots the room before adding the peer, so the
// joiner's existing-peers reply never includes the joiner itself.
func (g *Gateway) handleVoiceJoin(c *Client, e VoiceJoin) {
	existing := g.voice.PeersInRoom(e.RoomID)
	g.voice.AddPeer(c.ID, e.UserID, e.RoomID, e.Muted)
	g.hub.Subscribe(c.ID, e.RoomID)

	peers := make([]VoicePeerInfo, 0, len(existing))
	for _, p := range existing {
		peers = append(peers, VoicePeerInfo{
			UserID:       p.UserID,
			ConnectionID: p.ConnectionID,
			Muted:        p.Muted,
		})
	}
	g.hub.Emit(c.ID, Self(), Event{Name: EventVoiceExistingPeers, Data: VoiceExistingPeers{Peers: peers}})
	g.hub.Emit(c.ID, RoomOthers(e.RoomID), Event{Name: EventVoiceUserJoined, Data: VoiceUserJoined{
		UserID:       e.UserID,
		ConnectionID: c.ID,
		Muted:        e.Muted,
	}})
}

// relaySignal forwards an SDP or ICE payload to the target user's live
// voice connection. A missing target drops the message silently; WebRTC
// renegotiation recovers on its own.
func (g *Gateway) relaySignal(c *Client, fromUserID, targetUserID, event string, payload any) {
	peer, ok := g.voice.GetPeerByUserID(targetUserID)
	if !ok {
		g.logger.Debug("signal target not in voice, dropping",
			zap.String("event", event),
			zap.String("from", fromUserID),
			zap.String("target", targetUserID),
		)
		return
	}
	g.hub.Emit(c.ID, Peer(peer.ConnectionID), Event{Name: event, Data: payload})
}

func (g *Gateway) handleVoiceMute(c *Client, e VoiceMute) {
	if _, ok := g.voice.ToggleMute(c.ID, e.Muted); !ok {
		return
	}
	g.hub.Emit(c.ID, RoomOthers(e.RoomID), Event{Name: EventVoiceUserMuted, Data: VoiceUserMuted{
		UserID: e.UserID,
		Muted:  e.Muted,
	}})
}

// handleVoiceLeave drops the peer but keeps the room subscription: voice
// participation is a sub-state of room membership.
func (g *Gateway) handleVoiceLeave(c *Client, e VoiceLeave) {
	g.voice.RemovePeer(c.ID)
	g.hub.Emit(c.ID, RoomOthers(e.RoomID), Event{Name: EventVoiceUserLeft, Data: VoiceUserLeft{UserID: e.UserID}})
}

// HandleDisconnect runs the transport-level cleanup chain: voice first,
// then the session. Both announcements stay scoped to the rooms the
// connection was actually in.
func (g *Gateway) HandleDisconnect(c *Client) {
	if peer, ok := g.voice.GetPeer(c.ID); ok {
		g.hub.Emit(c.ID, RoomOthers(peer.RoomID), Event{Name: EventVoiceUserLeft, Data: VoiceUserLeft{
			UserID: peer.UserID,
		}})
		g.voice.RemovePeer(c.ID)
	}

	userID, ok := g.sessions.GetUserID(c.ID)
	if !ok {
		return
	}
	sess, _ := g.sessions.Get(userID)
	g.sessions.Remove(userID)

	// The session's last-reported room only covers users that sent a
	// position update; the membership index covers joins that never did.
	roomIDs := make(map[string]bool)
	for _, roomID := range g.rooms.MembershipsOf(userID) {
		roomIDs[roomID] = true
	}
	if sess.RoomID != "" {
		roomIDs[sess.RoomID] = true
	}
	for roomID := range roomIDs {
		g.rooms.RemoveMember(roomID, userID)
		g.hub.Emit(c.ID, RoomOthers(roomID), Event{Name: EventPlayerDisconnected, Data: PlayerDisconnected{
			UserID:       userID,
			ConnectionID: c.ID,
		}})
	}

	g.logger.Info("connection cleaned up",
		zap.String("connection_id", c.ID),
		zap.String("user_id", userID),
	)
}

// NotifyUser pushes a social event to a user's live connection, if any.
// Satisfies social.Notifier.
func (g *Gateway) NotifyUser(userID, event string, payload any) bool {
	connID, ok := g.sessions.GetConnectionID(userID)
	if !ok {
		return false
	}
	g.hub.Emit("", Peer(connID), Event{Name: event, Data: payload})
	return true
}
