// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package history 会话级问答历史：登录后累积，登出时清空
package history

import (
	"time"
)

// 历史条目的交互模式
const (
	ModeText    = "text"
	ModeTalk    = "talk"
	ModeVision  = "vision"
	ModeSummary = "summary"
	ModeCompare = "compare"
	ModeSearch  = "search"
	ModeMedia   = "media"
)

// Entry 一次问答
type Entry struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Thoughts  string    `json:"thoughts"`
	Mode      string    `json:"mode"`
	CreatedAt time.Time `json:"created_at"`
}
