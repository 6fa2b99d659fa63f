package marker

// Clone returns a deep copy of the definition. The server stores and
// publishes copies so a caller mutating its own Definition after staging
// cannot reach the registry.
func (d Definition) Clone() Definition {
	out := d
	if d.Controls != nil {
		out.Controls = make([]Control, len(d.Controls))
		for i, c := range d.Controls {
			cc := c
			if c.Shapes != nil {
				cc.Shapes = append([]Shape(nil), c.Shapes...)
			}
			out.Controls[i] = cc
		}
	}
	if d.MenuEntries != nil {
		out.MenuEntries = append([]MenuEntry(nil), d.MenuEntries...)
	}
	return out
}
