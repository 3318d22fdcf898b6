// Copyright 2024-2026 Aiku AI

// Package ircfmt converts IRC formatted text to plain text.
package ircfmt

import (
	"regexp"
	"strings"

	ergofmt "github.com/ergochat/irc-go/ircfmt"
)

// hexColorRe matches the \x04 hex color extension, which ergofmt leaves in
// place.
var hexColorRe = regexp.MustCompile(`\x04(?:[0-9a-fA-F]{6}(?:,[0-9a-fA-F]{6})?)?`)

const ctcpDelim = "\x01"

// Strip removes mIRC color and style control codes from text.
func Strip(text string) string {
	if strings.IndexByte(text, '\x04') >= 0 {
		text = hexColorRe.ReplaceAllString(text, "")
	}
	return ergofmt.Strip(text)
}

// ParseAction returns the action text of a CTCP ACTION ("/me") message.
func ParseAction(text string) (string, bool) {
	if !strings.HasPrefix(text, ctcpDelim+"ACTION") {
		return "", false
	}
	body := strings.TrimPrefix(text, ctcpDelim+"ACTION")
	body = strings.TrimSuffix(body, ctcpDelim)
	return strings.TrimPrefix(body, " "), true
}

// IsCTCP reports whether text is a CTCP request or reply other than plain text.
func IsCTCP(text string) bool {
	return strings.HasPrefix(text, ctcpDelim)
}
