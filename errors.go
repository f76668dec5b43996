/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import "errors"

var (
	// ErrBadFrameLength signals a zero or oversized declared frame length;
	// fatal for the offending connection only.
	ErrBadFrameLength = errors.New("invalid frame length")

	// ErrNameTaken is returned when a login name is already registered.
	ErrNameTaken = errors.New("name already taken")

	// ErrNameInvalid is returned for empty names or names over the length cap.
	ErrNameInvalid = errors.New("invalid name")

	// ErrUnknownPeer is returned when a handler resolves a player name that
	// is not currently registered.
	ErrUnknownPeer = errors.New("player not connected")

	// ErrAlreadyInMatch rejects challenge acceptance while either party is
	// still in a match.
	ErrAlreadyInMatch = errors.New("player already in a match")

	// ErrMazeSize rejects even or too-small maze dimensions.
	ErrMazeSize = errors.New("maze size must be odd and at least 5")
)
