package presence

import (
	"fmt"

	nanoid "github.com/jaevor/go-nanoid"
)

const (
	// DefaultRoomIDLength matches the six character tokens handed out to
	// clients since the first release.
	DefaultRoomIDLength = 6

	roomIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

	// maxIDAttempts bounds collision retries when minting a room id.
	maxIDAttempts = 32
)

// IDGenerator returns a fresh random token on every call.
type IDGenerator func() string

// NewRoomIDGenerator returns a generator of lowercase base36 tokens of the
// given length. Non-positive lengths fall back to DefaultRoomIDLength.
func NewRoomIDGenerator(length int) (IDGenerator, error) {
	if length <= 0 {
		length = DefaultRoomIDLength
	}
	gen, err := nanoid.CustomASCII(roomIDAlphabet, length)
	if err != nil {
		return nil, fmt.Errorf("room id generator: %w", err)
	}
	return IDGenerator(gen), nil
}
