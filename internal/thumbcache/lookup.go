package thumbcache

// NearestAtOrBefore returns the thumbnail to display at the given playback
// position: the last record, scanning forward, whose timestamp does not
// exceed seconds. A query before every record yields the first record. Out
// of order timestamps are tolerated: a record that qualifies still wins over
// an earlier one even when a later timestamp sits between them.
func NearestAtOrBefore(records []Record, seconds float64) (Record, bool) {
	if len(records) == 0 {
		return Record{}, false
	}
	best := 0
	for i, r := range records {
		if r.Timestamp <= seconds {
			best = i
		}
	}
	return records[best], true
}
