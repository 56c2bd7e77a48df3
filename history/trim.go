package history

// trim implements §4.7.3: starting from the current base, extend the trim
// prefix with every upload-skippable entry (empty, or of remote origin)
// until a non-skippable (local, non-empty) entry is reached; erase the
// prefix and advance the base.
//
// The open question about the sentinel C = max(download.last_integrated_client_version,
// initial_version) is ported as observed: the reference implementation
// never uses C to bound the scan beyond "stop at the first non-skippable
// entry", so neither does this port (see DESIGN.md's open-question
// decisions).
func (c *Client) trim(r *root) error {
	i := 0
	for i < len(r.entries) {
		skip, err := r.entries[i].uploadSkippable()
		if err != nil {
			return err
		}
		if !skip {
			break
		}
		i++
	}
	if i == 0 {
		return nil
	}
	r.entries = append([]entry(nil), r.entries[i:]...)
	r.base += uint64(i)
	return nil
}
