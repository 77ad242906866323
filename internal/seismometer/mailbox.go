package seismometer

// windowMailbox hands window snapshots to the evaluation worker without
// ever blocking the sampling loop. It holds one window: a snapshot the
// worker did not pick up in time is replaced by the newer one, never
// queued behind it.
type windowMailbox struct {
	slot chan Window
}

func newWindowMailbox() *windowMailbox {
	return &windowMailbox{slot: make(chan Window, 1)}
}

// post is only called from the sampling loop, so after the stale
// snapshot is drained nobody else can fill the slot before us.
func (m *windowMailbox) post(w Window) {
	select {
	case m.slot <- w:
		return
	default:
	}

	select {
	case <-m.slot:
	default:
	}

	select {
	case m.slot <- w:
	default:
	}
}

func (m *windowMailbox) recv() <-chan Window {
	return m.slot
}
