package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/atriumverse/atrium/internal/presence"
	"github.com/atriumverse/atrium/internal/session"
)

// Envelope is the wire frame in both directions: an event name plus an
// event-specific payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Event is an outbound event before serialization. The payload stays a
// typed struct until the write pump marshals it, so handlers and tests
// never deal in raw JSON.
type Event struct {
	Name string
	Data any
}

// Inbound event names.
const (
	EventPlayerCreate     = "player:create"
	EventPlayerUpdate     = "player:update"
	EventPlayerDisconnect = "player:disconnect"
	EventRoomCreate       = "room:create"
	EventRoomJoin         = "room:join"
	EventRoomLeave        = "room:left"
	EventRoomRoster       = "room:getusers"
	EventRPCRelay         = "rpc:callback"
	EventVoiceJoin        = "voice:join"
	EventVoiceOffer       = "voice:offer"
	EventVoiceAnswer      = "voice:answer"
	EventVoiceCandidate   = "voice:ice-candidate"
	EventVoiceMute        = "voice:toggle-mute"
	EventVoiceLeave       = "voice:leave"
	EventHello            = "hello"
)

// Outbound event names.
const (
	EventPlayerCreated       = "player:created"
	EventPlayerMoved         = "player:moved"
	EventPlayerDisconnected  = "player:disconnected"
	EventFriendStatusChanged = "friend:status-changed"
	EventFriendInvited       = "friend:invited"
	EventFriendAdded         = "friend:added"
	EventRoomCreated         = "room:created"
	EventRoomJoined          = "room:joined"
	EventRoomLeft            = "room:lefted"
	EventRoomUsers           = "room:users"
	EventVoiceExistingPeers  = "voice:existing-peers"
	EventVoiceUserJoined     = "voice:user-joined"
	EventVoiceUserMuted      = "voice:user-muted"
	EventVoiceUserLeft       = "voice:user-left"
	EventError               = "error"
)

// Inbound is the closed union of events a client may send. Anything
// outside the decode table is rejected at the boundary.
type Inbound interface {
	inbound()
}

type PlayerCreate struct {
	UserID   string `json:"userId"`
	Online   bool   `json:"online"`
	AvatarID string `json:"avatarId,omitempty"`
}

type PlayerUpdate struct {
	UserID   string             `json:"userId"`
	RoomID   string             `json:"roomId"`
	Position session.Vector3    `json:"position"`
	Rotation session.Quaternion `json:"rotation"`
}

type PlayerDisconnect struct {
	UserID string `json:"userId"`
	RoomID string `json:"roomId"`
}

type RoomCreate struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"nameSurname"`
}

type RoomJoin struct {
	RoomID      string `json:"roomId"`
	UserID      string `json:"userId"`
	DisplayName string `json:"nameSurname"`
}

type RoomLeave struct {
	UserID string `json:"userId"`
	RoomID string `json:"roomId"`
}

type RoomRoster struct {
	RoomID string `json:"roomId"`
}

// RPCRelay carries an application-defined method call to an audience the
// sender picks: "me", "others" (room minus sender) or "all" (everyone
// minus sender).
type RPCRelay struct {
	Target      string `json:"target"`
	Method      string `json:"method"`
	Value       string `json:"value"`
	RoomID      string `json:"roomId,omitempty"`
	UserID      string `json:"userId,omitempty"`
	DisplayName string `json:"nameSurname,omitempty"`
}

type VoiceJoin struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
	Muted  bool   `json:"isMuted"`
}

// Voice SDP and ICE payloads are relayed verbatim; the gateway never
// inspects them.
type VoiceOffer struct {
	UserID       string          `json:"userId"`
	TargetUserID string          `json:"targetUserId"`
	Offer        json.RawMessage `json:"offer"`
}

type VoiceAnswer struct {
	UserID       string          `json:"userId"`
	TargetUserID string          `json:"targetUserId"`
	Answer       json.RawMessage `json:"answer"`
}

type VoiceCandidate struct {
	UserID       string          `json:"userId"`
	TargetUserID string          `json:"targetUserId"`
	Candidate    json.RawMessage `json:"candidate"`
}

type VoiceMute struct {
	UserID string `json:"userId"`
	RoomID string `json:"roomId"`
	Muted  bool   `json:"isMuted"`
}

type VoiceLeave struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

type Hello struct {
	Value string `json:"value"`
}

func (PlayerCreate) inbound()     {}
func (PlayerUpdate) inbound()     {}
func (PlayerDisconnect) inbound() {}
func (RoomCreate) inbound()       {}
func (RoomJoin) inbound()         {}
func (RoomLeave) inbound()        {}
func (RoomRoster) inbound()       {}
func (RPCRelay) inbound()         {}
func (VoiceJoin) inbound()        {}
func (VoiceOffer) inbound()       {}
func (VoiceAnswer) inbound()      {}
func (VoiceCandidate) inbound()   {}
func (VoiceMute) inbound()        {}
func (VoiceLeave) inbound()       {}
func (Hello) inbound()            {}

func decodeAs[T Inbound](data json.RawMessage) (Inbound, error) {
	var v T
	if len(data) > 0 {
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
	}
	return v, nil
}

var decoders = map[string]func(json.RawMessage) (Inbound, error){
	EventPlayerCreate:     decodeAs[PlayerCreate],
	EventPlayerUpdate:     decodeAs[PlayerUpdate],
	EventPlayerDisconnect: decodeAs[PlayerDisconnect],
	EventRoomCreate:       decodeAs[RoomCreate],
	EventRoomJoin:         decodeAs[RoomJoin],
	EventRoomLeave:        decodeAs[RoomLeave],
	EventRoomRoster:       decodeAs[RoomRoster],
	EventRPCRelay:         decodeAs[RPCRelay],
	EventVoiceJoin:        decodeAs[VoiceJoin],
	EventVoiceOffer:       decodeAs[VoiceOffer],
	EventVoiceAnswer:      decodeAs[VoiceAnswer],
	EventVoiceCandidate:   decodeAs[VoiceCandidate],
	EventVoiceMute:        decodeAs[VoiceMute],
	EventVoiceLeave:       decodeAs[VoiceLeave],
	EventHello:            decodeAs[Hello],
}

// DecodeInbound maps an envelope to its typed event. Unknown event names
// and malformed payloads are both errors; neither reaches a handler.
func DecodeInbound(env Envelope) (Inbound, error) {
	dec, ok := decoders[env.Event]
	if !ok {
		return nil, fmt.Errorf("unknown event %q", env.Event)
	}
	ev, err := dec(env.Data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", env.Event, err)
	}
	return ev, nil
}

// Outbound payloads.

type PlayerCreated struct {
	UserID      string                   `json:"userId"`
	Friends     []presence.FriendStatus  `json:"friends"`
	Invitations []presence.PendingInvite `json:"invitations"`
}

type FriendStatusChanged struct {
	UserID string `json:"userId"`
	Online bool   `json:"online"`
}

type PlayerMoved struct {
	UserID   string             `json:"userId"`
	Position session.Vector3    `json:"position"`
	Rotation session.Quaternion `json:"rotation"`
}

type PlayerDisconnected struct {
	UserID       string `json:"userId"`
	ConnectionID string `json:"connectionId,omitempty"`
}

type RoomCreated struct {
	RoomID string `json:"roomId"`
}

// RoomJoinedSelf acknowledges the join to the joiner; RoomJoinedPeer
// announces it to everyone already in the room. Same event name, two
// payload shapes.
type RoomJoinedSelf struct {
	RoomID string `json:"roomId"`
}

type RoomJoinedPeer struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"nameSurname"`
}

type RoomLeft struct {
	UserID string `json:"userId"`
}

type RoomUserEntry struct {
	UserID       string `json:"userId"`
	ConnectionID string `json:"connectionId"`
	DisplayName  string `json:"nameSurname"`
}

// RoomUsers wraps the roster in a room object; the timestamp is the
// room's creation time, not the query time.
type RoomUsers struct {
	Room RoomInfo `json:"room"`
}

type RoomInfo struct {
	RoomID    string          `json:"roomId"`
	Timestamp int64           `json:"timestamp"`
	Players   []RoomUserEntry `json:"players"`
}

type RPCPayload struct {
	Method      string `json:"method"`
	Value       string `json:"value"`
	UserID      string `json:"userId,omitempty"`
	DisplayName string `json:"nameSurname,omitempty"`
}

type VoicePeerInfo struct {
	UserID       string `json:"userId"`
	ConnectionID string `json:"connectionId"`
	Muted        bool   `json:"isMuted"`
}

type VoiceExistingPeers struct {
	Peers []VoicePeerInfo `json:"peers"`
}

type VoiceUserJoined struct {
	UserID       string `json:"userId"`
	ConnectionID string `json:"connectionId"`
	Muted        bool   `json:"isMuted"`
}

type VoiceOfferPayload struct {
	UserID string          `json:"userId"`
	Offer  json.RawMessage `json:"offer"`
}

type VoiceAnswerPayload struct {
	UserID string          `json:"userId"`
	Answer json.RawMessage `json:"answer"`
}

type VoiceCandidatePayload struct {
	UserID    string          `json:"userId"`
	Candidate json.RawMessage `json:"candidate"`
}

type VoiceUserMuted struct {
	UserID string `json:"userId"`
	Muted  bool   `json:"isMuted"`
}

type VoiceUserLeft struct {
	UserID string `json:"userId"`
}

type HelloPayload struct {
	Message string `json:"message"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
