// Copyright 2024-2026 Aiku AI

package connector

import (
	"github.com/aiku/galene-ircbridge/pkg/chat"
)

// formatGaleneChat renders a group chat message for the IRC channel.
func formatGaleneChat(evt *chat.Chat) string {
	if evt.Kind == chat.KindAction {
		return evt.Username + " " + evt.Text
	}
	return "<" + evt.Username + "> " + evt.Text
}

func formatJoined(username string) string {
	return username + " joined"
}

func formatLeft(username string) string {
	return username + " left"
}
