// Package tgui holds small helpers for Telegram HTML messages: escaping,
// inline tags and rune-safe truncation.
package tgui
