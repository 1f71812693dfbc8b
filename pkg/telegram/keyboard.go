// Copyright 2025 The Communitybot Authors
// SPDX-License-Identifier: Apache-2.0

package telegram

// Keyboard builds an InlineKeyboardMarkup from button rows.
func Keyboard(rows ...[]InlineKeyboardButton) *InlineKeyboardMarkup {
	return &InlineKeyboardMarkup{InlineKeyboard: rows}
}

// Row groups buttons onto a single keyboard row.
func Row(buttons ...InlineKeyboardButton) []InlineKeyboardButton {
	return buttons
}

// URLButton is a button that opens a link.
func URLButton(text, url string) InlineKeyboardButton {
	return InlineKeyboardButton{Text: text, URL: url}
}

// CallbackButton is a button that fires a callback query with the given data.
func CallbackButton(text, data string) InlineKeyboardButton {
	return InlineKeyboardButton{Text: text, CallbackData: data}
}
