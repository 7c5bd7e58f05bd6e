// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backend

import "fmt"

// RecentCall is the denormalized view of one call record joined with the
// play's name and icon. Lists of RecentCall are always newest-first.
type RecentCall struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"createdAt"`
	Yards     int    `json:"yards"`
	PlayName  string `json:"playName"`
	Icon      string `json:"icon"`
	GameID    string `json:"gameId"`
}

// PlayStat is the per-play aggregate over the recent-calls window.
type PlayStat struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
	Avg   string `json:"avg"`
}

// AggregateCalls derives per-play statistics from a recent-calls list.
// Calls are grouped by play NAME, not id: two plays sharing a display name
// merge into one line. Groups are emitted in first-occurrence order of the
// input, which is newest-first for a recent-calls list. Avg is formatted to
// exactly one decimal place.
func AggregateCalls(calls []RecentCall) []PlayStat {
	type group struct {
		count int
		sum   int
	}
	index := make(map[string]int)
	names := make([]string, 0, len(calls))
	groups := make([]group, 0, len(calls))

	for _, c := range calls {
		i, ok := index[c.PlayName]
		if !ok {
			i = len(groups)
			index[c.PlayName] = i
			names = append(names, c.PlayName)
			groups = append(groups, group{})
		}
		groups[i].count++
		groups[i].sum += c.Yards
	}

	stats := make([]PlayStat, 0, len(groups))
	for i, g := range groups {
		stats = append(stats, PlayStat{
			Name:  names[i],
			Count: g.count,
			Avg:   fmt.Sprintf("%.1f", float64(g.sum)/float64(g.count)),
		})
	}
	return stats
}
