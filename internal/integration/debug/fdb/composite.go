package fdb

// composite is the sub-command list and cursor of a KindComposite command.
type composite struct {
	subs     []*Command
	cursor   int
	obsolete func() bool
	onFinish func(ran int)
	finished bool
}

// Composite groups subs into one queue item. The subs run in order; before
// each one the obsolete callback is consulted and, once it reports true,
// the remaining subs are skipped. onFinish runs exactly once with the number
// of subs that were dispatched.
func Composite(subs []*Command, obsolete func() bool, onFinish func(ran int)) *Command {
	c := New(KindComposite, "", OutputSpecial, Suspended, Suspended, nil)
	c.composite = &composite{subs: subs, obsolete: obsolete, onFinish: onFinish}
	return c
}

// NextSub returns the sub-command to dispatch next and advances the cursor.
// It returns nil, after finishing the composite, once the list is exhausted
// or the owner became obsolete.
func (c *Command) NextSub() *Command {
	cc := c.composite
	if cc == nil || cc.finished {
		return nil
	}
	if cc.cursor >= len(cc.subs) || (cc.obsolete != nil && cc.obsolete()) {
		cc.finish()
		return nil
	}
	sub := cc.subs[cc.cursor]
	cc.cursor++
	return sub
}

// Dispatched returns how many subs have been handed out.
func (c *Command) Dispatched() int {
	if c.composite == nil {
		return 0
	}
	return c.composite.cursor
}

func (cc *composite) finish() {
	if cc.finished {
		return
	}
	cc.finished = true
	if cc.onFinish != nil {
		cc.onFinish(cc.cursor)
	}
}
