package engine

// Cursor turns a style's live op stream into a gap-free one for a single
// follower. The bus drops ops for slow subscribers; when the next op is not
// the successor of the last one delivered, the cursor answers with an
// OpResync and a full replay instead.
type Cursor struct {
	style *Style
	last  uint64
}

// Follow starts a cursor and returns the replay of the current style.
// Subscribe to s.Ops() before calling it so no op falls between the two.
func Follow(s *Style) (*Cursor, []Op) {
	c := &Cursor{style: s}
	seq, ops := s.Checkpoint()
	c.last = seq
	return c, ops
}

// Last is the sequence number of the newest op delivered.
func (c *Cursor) Last() uint64 { return c.last }

// Next returns the ops to deliver for op: none when the replay already
// covered it, op itself when it is next in sequence, or a resync otherwise.
func (c *Cursor) Next(op Op) []Op {
	switch {
	case op.Seq <= c.last:
		return nil
	case op.Seq == c.last+1:
		c.last = op.Seq
		return []Op{op}
	}
	return c.resync()
}

// Catchup detects ops lost at the tail of the stream, which Next cannot see
// until another op arrives. pending is the number of ops still queued for
// the follower; with nothing queued and the style ahead of the cursor, the
// missing ops were dropped and a resync is returned.
func (c *Cursor) Catchup(pending int) []Op {
	if c.style.Seq() <= c.last || pending > 0 {
		return nil
	}
	return c.resync()
}

func (c *Cursor) resync() []Op {
	seq, replay := c.style.Checkpoint()
	c.last = seq
	return append([]Op{{Seq: seq, Kind: OpResync}}, replay...)
}
