package gateway

import (
	"encoding/json"

	"github.com/chatterbox-server/chatterbox/internal/database/models"
)

// Event names consumed from clients.
const (
	evUserOnline     = "user_online"
	evGetOnlineUsers = "get_online_users"
	evPrivateMessage = "private_message"
	evFileTransfer   = "file_transfer"
	evTyping         = "typing"
	evInitiateCall   = "initiate_call"
	evAcceptCall     = "accept_call"
	evRejectCall     = "reject_call"
	evEndCall        = "end_call"
	evRegisterUDP    = "register_udp"
	evGetChatHistory = "get_chat_history"
)

// Event names pushed to clients.
const (
	evConnectionResponse   = "connection_response"
	evOnlineUsers          = "online_users"
	evUserStatusChanged    = "user_status_changed"
	evMessageSent          = "message_sent"
	evUserTyping           = "user_typing"
	evFileReceived         = "file_received"
	evFileSent             = "file_sent"
	evIncomingCall         = "incoming_call"
	evCallInitiated        = "call_initiated"
	evCallAccepted         = "call_accepted"
	evCallStarted          = "call_started"
	evCallRejected         = "call_rejected"
	evCallEnded            = "call_ended"
	evUDPRegistrationReady = "udp_registration_ready"
	evChatHistory          = "chat_history"
	evError                = "error"
)

// inboundEnvelope is the wire shape of every client event: a name plus an
// event-specific data object.
type inboundEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// outboundEnvelope mirrors inboundEnvelope for pushed events.
type outboundEnvelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Inbound payloads.

type userOnlineRequest struct {
	Username string `json:"username"`
}

type privateMessageRequest struct {
	Sender    string `json:"sender"`
	Receiver  string `json:"receiver"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type fileTransferRequest struct {
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
	FileData string `json:"file_data"`
}

type typingRequest struct {
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
	IsTyping bool   `json:"is_typing"`
}

type initiateCallRequest struct {
	Caller   string `json:"caller"`
	Receiver string `json:"receiver"`
}

type callActionRequest struct {
	CallID   string `json:"call_id"`
	Username string `json:"username"`
}

type chatHistoryRequest struct {
	User1 string `json:"user1"`
	User2 string `json:"user2"`
}

// Outbound payloads.

type connectionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type onlineUsersEvent struct {
	Users []string `json:"users"`
}

type userStatusChangedEvent struct {
	Username    string   `json:"username"`
	Status      string   `json:"status"`
	OnlineUsers []string `json:"online_users"`
}

type privateMessageEvent struct {
	Sender    string `json:"sender"`
	Receiver  string `json:"receiver"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
}

type messageSentEvent struct {
	Success   bool   `json:"success"`
	Timestamp string `json:"timestamp"`
	Receiver  string `json:"receiver"`
}

type userTypingEvent struct {
	Username string `json:"username"`
	IsTyping bool   `json:"is_typing"`
}

type fileReceivedEvent struct {
	Type      string `json:"type"`
	Sender    string `json:"sender"`
	Receiver  string `json:"receiver"`
	FileName  string `json:"file_name"`
	FileSize  int64  `json:"file_size"`
	FileData  string `json:"file_data"`
	Timestamp string `json:"timestamp"`
}

type fileSentEvent struct {
	Success  bool   `json:"success"`
	FileName string `json:"file_name"`
	Receiver string `json:"receiver"`
}

type incomingCallEvent struct {
	CallID string `json:"call_id"`
	Caller string `json:"caller"`
	Status string `json:"status"`
}

type callInitiatedEvent struct {
	Success  bool   `json:"success"`
	CallID   string `json:"call_id"`
	Caller   string `json:"caller"`
	Receiver string `json:"receiver"`
	Status   string `json:"status"`
}

type callAcceptedEvent struct {
	CallID  string `json:"call_id"`
	Status  string `json:"status"`
	UDPPort int    `json:"udp_port"`
}

type callRejectedEvent struct {
	CallID string `json:"call_id"`
	Status string `json:"status"`
}

type callEndedEvent struct {
	CallID string `json:"call_id"`
	Status string `json:"status"`
}

type udpRegistrationReadyEvent struct {
	UDPPort int `json:"udp_port"`
}

type chatHistoryEvent struct {
	Messages []models.Message `json:"messages"`
}

type errorEvent struct {
	Message string `json:"message"`
}
