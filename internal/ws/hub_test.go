package ws

import (
	"testing"

	"chat-app/internal/models"
)

func messageViewFixture() models.MessageView {
	content := "hi"
	return models.MessageView{
		Message:    models.Message{ID: 1, ChatID: 1, SenderID: 5, Content: &content, MessageType: models.MessageTypeText},
		SenderName: "alice",
	}
}

func TestHubJoinAndLeaveRoom(t *testing.T) {
	hub := NewHub()

	hub.JoinRoom(1, nil, ConnInfo{UserID: 1})
	if hub.RoomSize(1) != 1 {
		t.Fatalf("expected room to be created")
	}

	hub.LeaveRoom(1, nil)
	if hub.RoomSize(1) != 0 {
		t.Fatalf("expected room to be removed")
	}
}

func TestHubRemoveConnLeavesAllRooms(t *testing.T) {
	hub := NewHub()

	hub.JoinRoom(1, nil, ConnInfo{UserID: 1})
	hub.JoinRoom(2, nil, ConnInfo{UserID: 1})

	hub.RemoveConn(nil)
	if hub.RoomSize(1) != 0 || hub.RoomSize(2) != 0 {
		t.Fatalf("expected connection removed from every room")
	}
}

func TestBroadcastSkipsSenderConnections(t *testing.T) {
	hub := NewHub()

	// The only room member is the sender; the broadcast must not attempt a
	// write (a write on the nil conn would panic).
	hub.JoinRoom(1, nil, ConnInfo{UserID: 5})
	hub.BroadcastNewMessage(1, 5, messageViewFixture())

	if hub.RoomSize(1) != 1 {
		t.Fatalf("expected sender connection to stay registered")
	}
}
