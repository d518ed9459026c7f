package session

// Cursor is the current question index within an ordered question sequence
// of fixed length.
type Cursor struct {
	index int
	total int
}

func NewCursor(total int) *Cursor {
	if total < 0 {
		total = 0
	}
	return &Cursor{total: total}
}

func (c *Cursor) Index() int { return c.index }

// Number is the 1-based question number of the cursor.
func (c *Cursor) Number() int { return c.index + 1 }

func (c *Cursor) Total() int { return c.total }

func (c *Cursor) IsFirst() bool { return c.index == 0 }

func (c *Cursor) IsLast() bool { return c.total == 0 || c.index == c.total-1 }

// Prev moves one question back. It reports whether the cursor moved.
func (c *Cursor) Prev() bool {
	if c.IsFirst() {
		return false
	}
	c.index--
	return true
}

// Next moves one question forward. It reports whether the cursor moved.
func (c *Cursor) Next() bool {
	if c.IsLast() {
		return false
	}
	c.index++
	return true
}

// JumpTo moves to the 1-based question number n, clamped to the sequence.
func (c *Cursor) JumpTo(n int) {
	c.index = c.clamp(n - 1)
}

func (c *Cursor) Reset() { c.index = 0 }

func (c *Cursor) clamp(i int) int {
	if c.total == 0 || i < 0 {
		return 0
	}
	if i > c.total-1 {
		return c.total - 1
	}
	return i
}
