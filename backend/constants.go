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

// Schema Versions
const (
	SchemaVersionV1 = 1
)

// Play icon categories. The catalog is fixed: every play belongs to exactly
// one of these six buckets.
const (
	IconRun        = "run"
	IconPass       = "pass"
	IconOption     = "option"
	IconPlayAction = "play-action"
	IconScreen     = "screen"
	IconSpecial    = "special"
)

// PlayIcons lists the valid icon categories in display order.
var PlayIcons = []string{
	IconRun,
	IconPass,
	IconOption,
	IconPlayAction,
	IconScreen,
	IconSpecial,
}

// Yardage bounds for a single play call.
const (
	MinYards = -99
	MaxYards = 99
)

// RecentCallLimit is the number of call records kept in the recent-calls view.
const RecentCallLimit = 10

// Length limits for user-provided strings.
const (
	MaxNameLen     = 50
	MaxTeamNameLen = 50
)

// DefaultTeamName is used when a profile is saved with a blank team name.
const DefaultTeamName = "My Team"
