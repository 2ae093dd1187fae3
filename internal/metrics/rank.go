package metrics

import "sort"

// Rank orders the snapshot by the chosen metric, descending. A missing
// reading ranks as zero rather than excluding the user. Equal values order
// by user id ascending, so repeated calls on the same snapshot always
// produce the same sequence. Ranks are 1-based and strictly sequential;
// ties do not share a rank number.
func Rank(snapshot Snapshot, metric Metric) []RankedEntry {
	entries := make([]RankedEntry, 0, len(snapshot))
	for userID, rec := range snapshot {
		entries = append(entries, RankedEntry{UserID: userID, Value: metricValue(rec, metric)})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Value != entries[j].Value {
			return entries[i].Value > entries[j].Value
		}
		return entries[i].UserID < entries[j].UserID
	})

	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

func metricValue(rec Record, metric Metric) float64 {
	switch metric {
	case MetricEnergy:
		return valueOrZero(rec.EnergyKcal)
	case MetricDistance:
		return valueOrZero(rec.DistanceM)
	case MetricHeartRate:
		return valueOrZero(rec.HeartRate)
	case MetricElapsedTime:
		return rec.ElapsedSec
	}
	return 0
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
