package compliance

// CategoryCount is a labelled tally feeding the chart layouts.
type CategoryCount struct {
	Label string `json:"label"`
	Value int    `json:"value"`
}

// AggregateByStatus counts records per status. Entries appear in the order
// each status is first seen; statuses with no records are omitted.
func AggregateByStatus(records []RequestRecord) []CategoryCount {
	index := make(map[Status]int)
	counts := make([]CategoryCount, 0, len(Statuses))
	for _, rec := range records {
		pos, ok := index[rec.Status]
		if !ok {
			pos = len(counts)
			index[rec.Status] = pos
			counts = append(counts, CategoryCount{Label: string(rec.Status)})
		}
		counts[pos].Value++
	}
	return counts
}

// AggregateByRiskBucket counts records per risk bucket. The result always has
// one entry per bucket, in Low, Medium, High order.
func AggregateByRiskBucket(records []RequestRecord) []CategoryCount {
	counts := make([]CategoryCount, len(Buckets))
	pos := make(map[string]int, len(Buckets))
	for i, label := range Buckets {
		counts[i] = CategoryCount{Label: label}
		pos[label] = i
	}
	for _, rec := range records {
		counts[pos[RiskBucket(rec.RiskScore)]].Value++
	}
	return counts
}
