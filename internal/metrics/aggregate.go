package metrics

// Aggregate computes group totals over a snapshot. Sums skip absent
// readings; the heart-rate average counts only users with a reading, and
// is 0 when nobody has one.
func Aggregate(snapshot Snapshot) AggregateMetrics {
	agg := AggregateMetrics{ParticipantCount: len(snapshot)}

	var hrSum float64
	var hrCount int
	for _, rec := range snapshot {
		if rec.EnergyKcal != nil {
			agg.TotalEnergyKcal += *rec.EnergyKcal
		}
		if rec.DistanceM != nil {
			agg.TotalDistanceM += *rec.DistanceM
		}
		if rec.HeartRate != nil {
			hrSum += *rec.HeartRate
			hrCount++
		}
		if rec.Active {
			agg.ActiveCount++
		}
	}
	if hrCount > 0 {
		agg.AvgHeartRate = hrSum / float64(hrCount)
	}
	return agg
}
