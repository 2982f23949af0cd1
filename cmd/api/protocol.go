package main

import (
	"github.com/praveshmishra-coder/WebChat-Docker/internal/data"
)

// Frame types received from clients. Each one is a routed call on the
// connection.
const (
	frameAnnounce = "announce"
	frameSend     = "send"
	frameHistory  = "history"
	frameChats    = "chats"
)

// Frame types pushed by the server.
const (
	frameRosterUpdated   = "rosterUpdated"
	frameMessageReceived = "messageReceived"
	frameError           = "error"
)

// Error codes carried on error frames.
const (
	codeBadFrame       = "bad_frame"
	codeAnnounceFailed = "announce_failed"
	codeSendFailed     = "send_failed"
	codeHistoryFailed  = "history_failed"
	codeChatsFailed    = "chats_failed"
)

// ClientFrame is the JSON envelope for client-invoked operations. Type
// selects the operation; the remaining fields are its parameters.
type ClientFrame struct {
	Type string `json:"type"`
	To   string `json:"to,omitempty"`
	Text string `json:"text,omitempty"`
	With string `json:"with,omitempty"`
}

// ServerFrame is the JSON envelope for server-pushed events and call
// results. Type selects the event; unused fields are omitted on the wire.
type ServerFrame struct {
	Type          string               `json:"type"`
	Usernames     []string             `json:"usernames,omitempty"`
	From          string               `json:"from,omitempty"`
	Text          string               `json:"text,omitempty"`
	With          string               `json:"with,omitempty"`
	Messages      []*data.Message      `json:"messages,omitempty"`
	Conversations []*data.Conversation `json:"conversations,omitempty"`
	Code          string               `json:"code,omitempty"`
	Message       string               `json:"message,omitempty"`
}
