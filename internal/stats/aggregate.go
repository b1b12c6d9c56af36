// 本文件用于把报警记录按小时聚合为区间并集统计
package stats

import (
	"sort"
	"time"

	"prod-watch/internal/models"
)

// HoursPerDay 为一天的小时数
const HoursPerDay = 24

const secondsPerHour = 3600

// Segment 表示小时内的一段区间 偏移量为距离整点的秒数 左闭右开
type Segment struct {
	Start int
	End   int
}

type hourBucket struct {
	all     []Segment
	perCode map[string][]Segment
	count   int
	counts  map[string]int
}

// AggregateHourly 把一天的报警记录聚合为 24 个小时槽
// 报警先裁剪到当天 再按整点切分 每个小时内分别求全部代码与单个代码的并集长度
// 跨越多个小时的报警在每个触及的小时各计数一次
func AggregateHourly(records []models.AlarmRecord, date time.Time) [HoursPerDay]models.HourlyAlarmAggregate {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	var buckets [HoursPerDay]hourBucket
	for _, rec := range records {
		code := rec.Code
		start := rec.Start
		end := rec.End
		if end.Before(start) {
			end = start
		}
		if end.Equal(start) {
			// 零时长报警只在开始所在小时计数 不贡献时长
			if start.Before(dayStart) || !start.Before(dayEnd) {
				continue
			}
			buckets[hourIndex(dayStart, start)].touch(code, Segment{})
			continue
		}
		if start.Before(dayStart) {
			start = dayStart
		}
		if end.After(dayEnd) {
			end = dayEnd
		}
		if !end.After(start) {
			continue
		}
		first := hourIndex(dayStart, start)
		last := hourIndex(dayStart, end.Add(-time.Nanosecond))
		for h := first; h <= last; h++ {
			hourStart := dayStart.Add(time.Duration(h) * time.Hour)
			hourEnd := hourStart.Add(time.Hour)
			segStart := start
			if segStart.Before(hourStart) {
				segStart = hourStart
			}
			segEnd := end
			if segEnd.After(hourEnd) {
				segEnd = hourEnd
			}
			buckets[h].touch(code, Segment{
				Start: int(segStart.Sub(hourStart) / time.Second),
				End:   int(segEnd.Sub(hourStart) / time.Second),
			})
		}
	}

	var out [HoursPerDay]models.HourlyAlarmAggregate
	for h := range out {
		b := buckets[h]
		agg := models.HourlyAlarmAggregate{
			Hour:                 h,
			Count:                b.count,
			UnionDurationSeconds: UnionSeconds(b.all),
			PerCodeCount:         make(map[string]int, len(b.counts)),
			PerCodeUnionSeconds:  make(map[string]int, len(b.perCode)),
		}
		for code, n := range b.counts {
			agg.PerCodeCount[code] = n
		}
		for code, segs := range b.perCode {
			agg.PerCodeUnionSeconds[code] = UnionSeconds(segs)
		}
		out[h] = agg
	}
	return out
}

func (b *hourBucket) touch(code string, seg Segment) {
	if b.perCode == nil {
		b.perCode = make(map[string][]Segment)
		b.counts = make(map[string]int)
	}
	b.count++
	b.counts[code]++
	b.all = append(b.all, seg)
	b.perCode[code] = append(b.perCode[code], seg)
}

func hourIndex(dayStart, t time.Time) int {
	h := int(t.Sub(dayStart) / time.Hour)
	if h < 0 {
		return 0
	}
	if h >= HoursPerDay {
		return HoursPerDay - 1
	}
	return h
}

// UnionSeconds 计算区间并集的长度 结果钳制到 [0,3600]
// 按开始排序后合并重叠或相接的区间
func UnionSeconds(segments []Segment) int {
	if len(segments) == 0 {
		return 0
	}
	sorted := make([]Segment, 0, len(segments))
	for _, seg := range segments {
		if seg.End > seg.Start {
			sorted = append(sorted, seg)
		}
	}
	if len(sorted) == 0 {
		return 0
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	total := 0
	cur := sorted[0]
	for _, seg := range sorted[1:] {
		if seg.Start <= cur.End {
			if seg.End > cur.End {
				cur.End = seg.End
			}
			continue
		}
		total += cur.End - cur.Start
		cur = seg
	}
	total += cur.End - cur.Start
	if total < 0 {
		return 0
	}
	if total > secondsPerHour {
		return secondsPerHour
	}
	return total
}

// DayTotals 汇总一天 24 个小时槽的报警次数与并集秒数
func DayTotals(hours [HoursPerDay]models.HourlyAlarmAggregate) (count, seconds int) {
	for _, h := range hours {
		count += h.Count
		seconds += h.UnionDurationSeconds
	}
	return count, seconds
}
