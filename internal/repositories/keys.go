package repositories

// Logical key layout shared by the room directory and the message log.

func RoomUsersKey(roomID string) string { return "chat:" + roomID + ":users" }

func RoomMessagesKey(roomID string) string { return "chat:" + roomID + ":messages" }

func RoomNameKey(roomID string) string { return "chat:" + roomID + ":name" }

func UserRoomsKey(userID string) string { return "user:" + userID + ":chats" }
