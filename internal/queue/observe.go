package queue

type subscription struct {
	id int
	fn func(Snapshot)
}

// Subscribe registers fn to receive every published snapshot and returns a
// function that removes it. Snapshots are shared between observers and must
// be treated as read-only. fn runs on the goroutine that made the change.
func (r *Runner) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	r.subMu.Lock()
	r.nextSub++
	id := r.nextSub
	r.subs = append(r.subs, subscription{id: id, fn: fn})
	r.subMu.Unlock()

	return func() {
		r.subMu.Lock()
		defer r.subMu.Unlock()
		for i, sub := range r.subs {
			if sub.id == id {
				r.subs = append(r.subs[:i:i], r.subs[i+1:]...)
				return
			}
		}
	}
}

// publish delivers snap unless a newer snapshot already went out.
func (r *Runner) publish(snap Snapshot) {
	r.subMu.Lock()
	if snap.Version <= r.published {
		r.subMu.Unlock()
		return
	}
	r.published = snap.Version
	fns := make([]func(Snapshot), len(r.subs))
	for i, sub := range r.subs {
		fns[i] = sub.fn
	}
	r.subMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}
