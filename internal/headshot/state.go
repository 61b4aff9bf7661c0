package headshot

import (
	"errors"
	"fmt"
)

// SlotCount is the number of selfies a session captures before generation.
const SlotCount = 3

// Photo is one captured selfie, held in memory for the life of the session.
type Photo struct {
	DataBase64 string
	MimeType   string
}

func (p Photo) Empty() bool {
	return p.DataBase64 == ""
}

// Step is the position of a session in the capture sequence.
type Step string

const (
	StepAwaitingPhoto1 Step = "awaiting_photo_1"
	StepAwaitingPhoto2 Step = "awaiting_photo_2"
	StepAwaitingPhoto3 Step = "awaiting_photo_3"
	StepReady          Step = "ready"
)

var (
	ErrSlotLocked  = errors.New("previous photo slot is still empty")
	ErrEmptyPhoto  = errors.New("photo is empty")
	ErrInvalidSlot = fmt.Errorf("photo slot must be between 1 and %d", SlotCount)
	ErrNotReady    = fmt.Errorf("all %d photos must be captured before generating", SlotCount)
)

// CaptureState holds the three photo slots of one session. The step is
// derived purely from which slots are filled: slot N opens only once slot
// N-1 holds a photo. There is no back transition; retaking an already
// reachable slot is allowed and never regresses the step.
type CaptureState struct {
	Slots [SlotCount]Photo
}

// Step returns the current sequencer state.
func (s *CaptureState) Step() Step {
	switch {
	case s.Slots[0].Empty():
		return StepAwaitingPhoto1
	case s.Slots[1].Empty():
		return StepAwaitingPhoto2
	case s.Slots[2].Empty():
		return StepAwaitingPhoto3
	default:
		return StepReady
	}
}

// Ready reports whether all slots are filled and generation may start.
func (s *CaptureState) Ready() bool {
	return s.Step() == StepReady
}

// Filled reports slot presence, 1-indexed positions mapped to [0..2].
func (s *CaptureState) Filled() [SlotCount]bool {
	var out [SlotCount]bool
	for i := range s.Slots {
		out[i] = !s.Slots[i].Empty()
	}
	return out
}

// SetPhoto stores a photo into slot (1-based). A slot is writable once its
// predecessor is filled, so a single slot can be retaken without touching
// the rest of the sequence.
func (s *CaptureState) SetPhoto(slot int, p Photo) error {
	if slot < 1 || slot > SlotCount {
		return ErrInvalidSlot
	}
	if p.Empty() {
		return ErrEmptyPhoto
	}
	if slot > 1 && s.Slots[slot-2].Empty() {
		return fmt.Errorf("slot %d: %w", slot, ErrSlotLocked)
	}

	s.Slots[slot-1] = p
	return nil
}

// Photos returns the three captured photos, erroring unless the session
// is in the ready state.
func (s *CaptureState) Photos() ([SlotCount]Photo, error) {
	if !s.Ready() {
		return [SlotCount]Photo{}, ErrNotReady
	}
	return s.Slots, nil
}
