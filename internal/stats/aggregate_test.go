package stats

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"prod-watch/internal/models"
)

var day = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func at(h, m, s int) time.Time {
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second)
}

func alarm(code string, start, end time.Time) models.AlarmRecord {
	return models.AlarmRecord{Code: code, Start: start, End: end, DurationSeconds: int(end.Sub(start) / time.Second)}
}

func TestAggregateHourly_OverlapMergedNotSummed(t *testing.T) {
	records := []models.AlarmRecord{
		alarm("E1", at(8, 10, 0), at(8, 25, 0)),
		alarm("E1", at(8, 20, 0), at(8, 40, 0)),
	}
	hours := AggregateHourly(records, day)
	if hours[8].UnionDurationSeconds != 1800 {
		t.Fatalf("期望 8 点并集为 1800 秒，实际为 %d", hours[8].UnionDurationSeconds)
	}
	if hours[8].PerCodeUnionSeconds["E1"] != 1800 {
		t.Fatalf("期望 E1 并集为 1800 秒，实际为 %d", hours[8].PerCodeUnionSeconds["E1"])
	}
	if hours[8].Count != 2 || hours[8].PerCodeCount["E1"] != 2 {
		t.Fatalf("期望 8 点计数为 2，实际为 %d", hours[8].Count)
	}
}

func TestAggregateHourly_SpanningAlarmCountsEachHour(t *testing.T) {
	hours := AggregateHourly([]models.AlarmRecord{
		alarm("E2", at(8, 50, 0), at(10, 5, 0)),
	}, day)
	want := map[int]int{8: 600, 9: 3600, 10: 300}
	for h, sec := range want {
		if hours[h].Count != 1 {
			t.Fatalf("期望 %d 点计数为 1，实际为 %d", h, hours[h].Count)
		}
		if hours[h].UnionDurationSeconds != sec {
			t.Fatalf("期望 %d 点并集为 %d 秒，实际为 %d", h, sec, hours[h].UnionDurationSeconds)
		}
	}
	if hours[11].Count != 0 || hours[7].Count != 0 {
		t.Fatalf("报警不应计入未触及的小时")
	}
}

func TestAggregateHourly_ClipsToDay(t *testing.T) {
	hours := AggregateHourly([]models.AlarmRecord{
		alarm("E3", day.Add(-30*time.Minute), at(0, 15, 0)),
		alarm("E4", at(23, 50, 0), day.Add(24*time.Hour+time.Hour)),
		alarm("E5", day.Add(-3*time.Hour), day.Add(-2*time.Hour)),
	}, day)
	if hours[0].UnionDurationSeconds != 900 {
		t.Fatalf("期望 0 点裁剪后为 900 秒，实际为 %d", hours[0].UnionDurationSeconds)
	}
	if hours[23].UnionDurationSeconds != 600 {
		t.Fatalf("期望 23 点裁剪后为 600 秒，实际为 %d", hours[23].UnionDurationSeconds)
	}
	count, _ := DayTotals(hours)
	if count != 2 {
		t.Fatalf("期望当天外的报警被忽略，实际计数为 %d", count)
	}
}

func TestAggregateHourly_ZeroLengthAlarm(t *testing.T) {
	hours := AggregateHourly([]models.AlarmRecord{
		alarm("E6", at(14, 30, 0), at(14, 30, 0)),
	}, day)
	if hours[14].Count != 1 || hours[14].UnionDurationSeconds != 0 {
		t.Fatalf("期望零时长报警计数 1 时长 0，实际为 %d/%d", hours[14].Count, hours[14].UnionDurationSeconds)
	}
	if _, ok := hours[14].PerCodeUnionSeconds["E6"]; !ok {
		t.Fatalf("期望零时长报警出现在按代码统计中")
	}
}

func TestAggregateHourly_MultipleCodesUnionBounded(t *testing.T) {
	hours := AggregateHourly([]models.AlarmRecord{
		alarm("A", at(9, 0, 0), at(10, 0, 0)),
		alarm("B", at(9, 0, 0), at(10, 0, 0)),
		alarm("C", at(9, 30, 0), at(9, 45, 0)),
	}, day)
	if hours[9].UnionDurationSeconds != 3600 {
		t.Fatalf("期望并集不超过 3600 秒，实际为 %d", hours[9].UnionDurationSeconds)
	}
	code, sec := hours[9].TopCode()
	if code != "A" || sec != 3600 {
		t.Fatalf("期望并列时取字典序较小的代码 A，实际为 %s/%d", code, sec)
	}
	if hours[10].Count != 0 {
		t.Fatalf("整点结束的报警不应计入下一小时")
	}
}

// 随机生成区间 用逐秒标记的方式校验并集长度
func TestUnionSeconds_RandomProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 500; round++ {
		n := rng.Intn(12)
		segs := make([]Segment, 0, n)
		var covered [secondsPerHour]bool
		for i := 0; i < n; i++ {
			a := rng.Intn(secondsPerHour + 1)
			b := rng.Intn(secondsPerHour + 1)
			if a > b {
				a, b = b, a
			}
			segs = append(segs, Segment{Start: a, End: b})
			for s := a; s < b; s++ {
				covered[s] = true
			}
		}
		want := 0
		for _, c := range covered {
			if c {
				want++
			}
		}
		got := UnionSeconds(segs)
		if got != want {
			t.Fatalf("第 %d 轮: 期望并集 %d 秒，实际为 %d", round, want, got)
		}
		if got > secondsPerHour {
			t.Fatalf("第 %d 轮: 并集超过 3600 秒", round)
		}
	}
}

func TestAggregateHourly_RandomAlarmsWithinBound(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	records := make([]models.AlarmRecord, 0, 200)
	for i := 0; i < 200; i++ {
		start := day.Add(time.Duration(rng.Intn(24*3600)) * time.Second)
		end := start.Add(time.Duration(rng.Intn(7200)) * time.Second)
		records = append(records, alarm(string(rune('A'+rng.Intn(5))), start, end))
	}
	hours := AggregateHourly(records, day)
	for h, agg := range hours {
		if agg.UnionDurationSeconds < 0 || agg.UnionDurationSeconds > secondsPerHour {
			t.Fatalf("%d 点并集越界: %d", h, agg.UnionDurationSeconds)
		}
		for code, sec := range agg.PerCodeUnionSeconds {
			if sec > agg.UnionDurationSeconds {
				t.Fatalf("%d 点代码 %s 的并集 %d 超过总并集 %d", h, code, sec, agg.UnionDurationSeconds)
			}
		}
	}
}

func TestPearson(t *testing.T) {
	if got := Pearson([]float64{1, 2, 3}, []float64{2, 4, 6}); math.Abs(got-1) > 1e-9 {
		t.Fatalf("期望完全正相关为 1，实际为 %v", got)
	}
	if got := Pearson([]float64{1, 2, 3}, []float64{3, 2, 1}); math.Abs(got+1) > 1e-9 {
		t.Fatalf("期望完全负相关为 -1，实际为 %v", got)
	}
	if got := Pearson([]float64{100, 200, 300}, []float64{96.15, 96.15, 96.15}); got != 0 {
		t.Fatalf("期望常数序列相关系数为 0，实际为 %v", got)
	}
	if got := Pearson([]float64{1}, []float64{2}); got != 0 {
		t.Fatalf("期望样本不足时为 0，实际为 %v", got)
	}
}
