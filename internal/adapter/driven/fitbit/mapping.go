package fitbit

import (
	"strings"

	"github.com/ericfisherdev/fitsync/internal/domain/model"
)

// Measurement names written to the time-series database. Heart data shares
// the activities measurement and sleep stages get their own, matching the
// series existing dashboards query.
const (
	measurementActivities  = "activities"
	measurementProfile     = "profile"
	measurementGoals       = "goals"
	measurementSleep       = "sleep"
	measurementSleepLevels = "sleep_levels"
	measurementBodyLog     = "body_log"
)

type activityPayload struct {
	Summary struct {
		Steps                float64 `json:"steps"`
		CaloriesOut          float64 `json:"caloriesOut"`
		ActivityCalories     float64 `json:"activityCalories"`
		CaloriesBMR          float64 `json:"caloriesBMR"`
		Floors               float64 `json:"floors"`
		Elevation            float64 `json:"elevation"`
		SedentaryMinutes     float64 `json:"sedentaryMinutes"`
		LightlyActiveMinutes float64 `json:"lightlyActiveMinutes"`
		FairlyActiveMinutes  float64 `json:"fairlyActiveMinutes"`
		VeryActiveMinutes    float64 `json:"veryActiveMinutes"`
		Distances            []struct {
			Activity string  `json:"activity"`
			Distance float64 `json:"distance"`
		} `json:"distances"`
	} `json:"summary"`
}

type heartPayload struct {
	ActivitiesHeart []struct {
		DateTime string `json:"dateTime"`
		Value    struct {
			RestingHeartRate *float64 `json:"restingHeartRate"`
			HeartRateZones   []struct {
				Name        string  `json:"name"`
				Min         float64 `json:"min"`
				Max         float64 `json:"max"`
				Minutes     float64 `json:"minutes"`
				CaloriesOut float64 `json:"caloriesOut"`
			} `json:"heartRateZones"`
		} `json:"value"`
	} `json:"activities-heart"`
}

type profilePayload struct {
	User struct {
		Age                 float64 `json:"age"`
		Height              float64 `json:"height"`
		Weight              float64 `json:"weight"`
		StrideLengthWalking float64 `json:"strideLengthWalking"`
		StrideLengthRunning float64 `json:"strideLengthRunning"`
	} `json:"user"`
}

type goalsPayload struct {
	Goals struct {
		ActiveMinutes float64 `json:"activeMinutes"`
		CaloriesOut   float64 `json:"caloriesOut"`
		Distance      float64 `json:"distance"`
		Floors        float64 `json:"floors"`
		Steps         float64 `json:"steps"`
	} `json:"goals"`
}

// sleepLevel is one entry of a sleep log's levels summary. Classic logs
// carry no thirty-day average.
type sleepLevel struct {
	Count               *float64 `json:"count"`
	Minutes             *float64 `json:"minutes"`
	ThirtyDayAvgMinutes *float64 `json:"thirtyDayAvgMinutes"`
}

type sleepPayload struct {
	Sleep []struct {
		IsMainSleep         bool    `json:"isMainSleep"`
		Efficiency          float64 `json:"efficiency"`
		Duration            float64 `json:"duration"` // milliseconds
		TimeInBed           float64 `json:"timeInBed"`
		MinutesAsleep       float64 `json:"minutesAsleep"`
		MinutesAwake        float64 `json:"minutesAwake"`
		MinutesToFallAsleep float64 `json:"minutesToFallAsleep"`
		MinutesAfterWakeup  float64 `json:"minutesAfterWakeup"`
		Levels              struct {
			Summary map[string]sleepLevel `json:"summary"`
		} `json:"levels"`
	} `json:"sleep"`
	Summary struct {
		TotalMinutesAsleep float64 `json:"totalMinutesAsleep"`
		TotalTimeInBed     float64 `json:"totalTimeInBed"`
		TotalSleepRecords  float64 `json:"totalSleepRecords"`
	} `json:"summary"`
}

type weightPayload struct {
	Weight []struct {
		LogID  int64    `json:"logId"`
		Date   string   `json:"date"`
		Time   string   `json:"time"`
		Weight float64  `json:"weight"`
		BMI    float64  `json:"bmi"`
		Fat    *float64 `json:"fat"`
	} `json:"weight"`
}

func mapActivity(p activityPayload, day model.Day, units model.UnitSystem) []model.Point {
	s := p.Summary
	fields := map[string]float64{
		"steps":                s.Steps,
		"calories":             s.CaloriesOut,
		"activityCalories":     s.ActivityCalories,
		"caloriesBMR":          s.CaloriesBMR,
		"floors":               s.Floors,
		"elevation":            s.Elevation,
		"minutesSedentary":     s.SedentaryMinutes,
		"minutesLightlyActive": s.LightlyActiveMinutes,
		"minutesFairlyActive":  s.FairlyActiveMinutes,
		"minutesVeryActive":    s.VeryActiveMinutes,
	}
	for _, d := range s.Distances {
		if d.Activity == "total" {
			fields["distance"] = d.Distance
		}
	}

	return []model.Point{{
		Measurement: measurementActivities,
		Time:        day.Time(),
		Fields:      fields,
		Unit:        units,
	}}
}

// mapHeart flattens the zone list into hrz_<zone>_<metric> fields of the
// activities measurement. A day without any heart data yields no points.
func mapHeart(p heartPayload, day model.Day) []model.Point {
	fields := make(map[string]float64)
	for _, entry := range p.ActivitiesHeart {
		if entry.Value.RestingHeartRate != nil {
			fields["restingHeartRate"] = *entry.Value.RestingHeartRate
		}
		for _, zone := range entry.Value.HeartRateZones {
			prefix := "hrz_" + strings.ToLower(strings.ReplaceAll(zone.Name, " ", "_")) + "_"
			fields[prefix+"caloriesOut"] = zone.CaloriesOut
			fields[prefix+"max"] = zone.Max
			fields[prefix+"min"] = zone.Min
			fields[prefix+"minutes"] = zone.Minutes
		}
	}
	if len(fields) == 0 {
		return nil
	}

	return []model.Point{{
		Measurement: measurementActivities,
		Time:        day.Time(),
		Fields:      fields,
	}}
}

func mapProfile(p profilePayload, day model.Day, units model.UnitSystem) []model.Point {
	u := p.User
	return []model.Point{{
		Measurement: measurementProfile,
		Time:        day.Time(),
		Fields: map[string]float64{
			"age":                 u.Age,
			"height":              u.Height,
			"weight":              u.Weight,
			"strideLengthWalking": u.StrideLengthWalking,
			"strideLengthRunning": u.StrideLengthRunning,
		},
		Unit: units,
	}}
}

func mapGoals(p goalsPayload, day model.Day, units model.UnitSystem) []model.Point {
	g := p.Goals
	return []model.Point{{
		Measurement: measurementGoals,
		Time:        day.Time(),
		Fields: map[string]float64{
			"activeMinutes": g.ActiveMinutes,
			"caloriesOut":   g.CaloriesOut,
			"distance":      g.Distance,
			"floors":        g.Floors,
			"steps":         g.Steps,
		},
		Unit: units,
	}}
}

// mapSleep combines the day summary with the main sleep record, and writes
// the main record's stage summary as <level>_<metric> fields of a separate
// sleep_levels point. A night with no sleep logs yields no points.
func mapSleep(p sleepPayload, day model.Day) []model.Point {
	if p.Summary.TotalSleepRecords == 0 && len(p.Sleep) == 0 {
		return nil
	}

	fields := map[string]float64{
		"totalMinutesAsleep": p.Summary.TotalMinutesAsleep,
		"totalTimeInBed":     p.Summary.TotalTimeInBed,
		"totalSleepRecords":  p.Summary.TotalSleepRecords,
	}
	levels := make(map[string]float64)
	for _, s := range p.Sleep {
		if !s.IsMainSleep {
			continue
		}
		fields["isMainSleep"] = 1
		fields["efficiency"] = s.Efficiency
		fields["duration"] = s.Duration / 1000
		fields["timeInBed"] = s.TimeInBed
		fields["minutesAsleep"] = s.MinutesAsleep
		fields["minutesAwake"] = s.MinutesAwake
		fields["minutesToFallAsleep"] = s.MinutesToFallAsleep
		fields["minutesAfterWakeup"] = s.MinutesAfterWakeup

		for name, level := range s.Levels.Summary {
			prefix := strings.ToLower(name) + "_"
			setIfPresent(levels, prefix+"count", level.Count)
			setIfPresent(levels, prefix+"minutes", level.Minutes)
			setIfPresent(levels, prefix+"thirtyDayAvgMinutes", level.ThirtyDayAvgMinutes)
		}
		break
	}

	points := []model.Point{{
		Measurement: measurementSleep,
		Time:        day.Time(),
		Fields:      fields,
	}}
	if len(levels) > 0 {
		points = append(points, model.Point{
			Measurement: measurementSleepLevels,
			Time:        day.Time(),
			Fields:      levels,
		})
	}
	return points
}

func setIfPresent(fields map[string]float64, key string, v *float64) {
	if v != nil {
		fields[key] = *v
	}
}

// mapWeight keeps the latest weigh-in of the day. Logs are ordered by their
// log ID, which the vendor derives from the log timestamp. Field names carry
// the log resource as a prefix, so body fat appears as both weight_fat and
// fat_fat.
func mapWeight(p weightPayload, day model.Day, units model.UnitSystem) []model.Point {
	if len(p.Weight) == 0 {
		return nil
	}

	latest := p.Weight[0]
	for _, w := range p.Weight[1:] {
		if w.LogID > latest.LogID {
			latest = w
		}
	}

	fields := map[string]float64{
		"weight_weight": latest.Weight,
		"weight_bmi":    latest.BMI,
	}
	if latest.Fat != nil {
		fields["weight_fat"] = *latest.Fat
		fields["fat_fat"] = *latest.Fat
	}

	return []model.Point{{
		Measurement: measurementBodyLog,
		Time:        day.Time(),
		Fields:      fields,
		Unit:        units,
	}}
}
